package broker

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clawlet-dev/clawlet/internal/amountfmt"
	"github.com/clawlet-dev/clawlet/internal/apperror"
	"github.com/clawlet-dev/clawlet/internal/chainreg"
	"github.com/clawlet-dev/clawlet/internal/eip3009"
	"github.com/clawlet-dev/clawlet/internal/ledger"
	"github.com/clawlet-dev/clawlet/internal/store"
	"github.com/clawlet-dev/clawlet/internal/x402wire"
)

// Fetch performs the single-shot flow for server-signable adapters (spec
// §4.6.2): negotiate, construct and sign an ERC-3009 authorization, retry
// with the signed payload, and settle the ledger entry from the response.
func (b *Broker) Fetch(ctx context.Context, url string, opts FetchOptions) (*Result, error) {
	active, err := b.requireUnfrozen()
	if err != nil {
		return nil, err
	}

	passthrough, neg, err := b.negotiate(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	if passthrough != nil {
		return &Result{Status: passthrough.Status, Headers: passthrough.Headers, Body: passthrough.Body}, nil
	}

	adapter, err := b.manager.Adapter()
	if err != nil {
		return nil, err
	}
	address, err := adapter.Address()
	if err != nil {
		return nil, err
	}

	value, ok := new(big.Int).SetString(neg.Accepted.Amount, 10)
	if !ok {
		return nil, apperror.ErrValidation("malformed payment amount")
	}

	auth, err := eip3009.NewAuthorization(common.HexToAddress(address), common.HexToAddress(neg.Accepted.PayTo), value, neg.Accepted.MaxTimeoutSeconds)
	if err != nil {
		return nil, apperror.ErrInternal("construct authorization", err)
	}

	humanAmount := amountfmt.FormatAtomic(value, chainreg.Decimals)
	txRecord, err := b.ledger.Add(ledger.NewEntry{
		Payee:   neg.Accepted.PayTo,
		Service: neg.Service,
		Amount:  humanAmount,
		Asset:   neg.Accepted.Asset,
		Network: neg.Accepted.Network,
		Status:  store.TxPending,
	})
	if err != nil {
		return nil, err
	}

	tokenAddress := common.HexToAddress(neg.Chain.USDCAddress)
	fields := eip3009.ForExternalSigning(tokenAddress, neg.Chain.ChainID, auth, neg.Chain.EIP3009Name, neg.Chain.EIP3009Version)

	b.emit(PaymentEvent{
		Type:      PaymentEventAttempt,
		URL:       url,
		Service:   neg.Service,
		Amount:    humanAmount,
		Asset:     neg.Accepted.Asset,
		Network:   neg.Accepted.Network,
		Payer:     address,
		Recipient: neg.Accepted.PayTo,
	})

	signature, err := adapter.SignTypedData(ctx, fields)
	if err != nil {
		b.failEntry(txRecord.ID, err.Error())
		b.emit(PaymentEvent{
			Type:      PaymentEventFailure,
			URL:       url,
			Service:   neg.Service,
			Amount:    humanAmount,
			Asset:     neg.Accepted.Asset,
			Network:   neg.Accepted.Network,
			Payer:     address,
			Recipient: neg.Accepted.PayTo,
			Err:       err,
		})
		return nil, err
	}

	result, err := b.retryAndSettle(ctx, url, opts, neg, auth, signature, txRecord.ID, active, humanAmount)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// failEntry marks a ledger entry failed with a human-readable reason,
// swallowing the persistence error (the original error is what the caller
// actually returns).
func (b *Broker) failEntry(id, reason string) {
	failed := store.TxFailed
	_, _ = b.ledger.Update(id, ledger.Patch{Status: &failed, Reason: &reason})
}

// retryAndSettle re-issues the upstream request with the signed payment
// header, extracts the receipt, settles the ledger entry, and builds the
// normalized Result (spec §4.6.2 steps 5-10).
func (b *Broker) retryAndSettle(ctx context.Context, url string, opts FetchOptions, neg *negotiated, auth *eip3009.Authorization, signature, txID string, active *store.WalletEntry, humanAmount string) (*Result, error) {
	var resourceURL *string
	if neg.Required != nil && neg.Required.Resource != nil && neg.Required.Resource.URL != "" {
		u := neg.Required.Resource.URL
		resourceURL = &u
	}

	payload := x402wire.PaymentPayload{
		X402Version: 2,
		Resource:    resourceURL,
		Accepted:    neg.Accepted,
		Payload: x402wire.EVMPayload{
			Signature: signature,
			Authorization: x402wire.EVMAuthorization{
				From:        auth.From.Hex(),
				To:          auth.To.Hex(),
				Value:       auth.Value.String(),
				ValidAfter:  auth.ValidAfter.String(),
				ValidBefore: auth.ValidBefore.String(),
				Nonce:       common.BytesToHash(auth.Nonce[:]).Hex(),
			},
		},
	}

	encoded, err := x402wire.EncodePaymentPayload(payload)
	if err != nil {
		b.failEntry(txID, "failed to encode payment payload")
		b.emitSettleFailure(neg, auth, humanAmount, err)
		return nil, apperror.ErrInternal("encode payment payload", err)
	}

	req, err := newUpstreamRequest(ctx, url, opts)
	if err != nil {
		b.failEntry(txID, err.Error())
		b.emitSettleFailure(neg, auth, humanAmount, err)
		return nil, apperror.ErrValidation(err.Error())
	}
	x402wire.SetPaymentHeaders(req, encoded)
	addAgentHeaders(req, active)

	resp, err := b.client.Do(req)
	if err != nil {
		b.failEntry(txID, fmt.Sprintf("retry request failed: %v", err))
		b.emitSettleFailure(neg, auth, humanAmount, err)
		return nil, apperror.ErrUpstream("retry request failed", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		b.failEntry(txID, "failed to read retry response body")
		b.emitSettleFailure(neg, auth, humanAmount, err)
		return nil, apperror.ErrUpstream("read retry response", err)
	}

	receipt := x402wire.ParseReceipt(resp.Header)
	var txHash *string
	if receipt != nil && receipt.Hash() != "" {
		h := receipt.Hash()
		txHash = &h
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		settled := store.TxSettled
		if _, err := b.ledger.Update(txID, ledger.Patch{Status: &settled, TxHash: txHash}); err != nil {
			return nil, err
		}
		txHashValue := ""
		if txHash != nil {
			txHashValue = *txHash
		}
		b.emit(PaymentEvent{
			Type:        PaymentEventSuccess,
			URL:         url,
			Service:     neg.Service,
			Amount:      humanAmount,
			Asset:       neg.Accepted.Asset,
			Network:     neg.Accepted.Network,
			Payer:       auth.From.Hex(),
			Recipient:   neg.Accepted.PayTo,
			Transaction: txHashValue,
		})
	} else {
		reason := fmt.Sprintf("retry responded with status %d", resp.StatusCode)
		b.failEntry(txID, reason)
		b.emitSettleFailure(neg, auth, humanAmount, apperror.ErrUpstream(reason, nil))
	}

	return &Result{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    string(bodyBytes),
		Payment: &PaymentInfo{TxHash: txHash, HumanAmount: humanAmount, PayTo: neg.Accepted.PayTo},
	}, nil
}

// emitSettleFailure reports a payment-lifecycle failure event for the
// retry/settle stage, shared by the single-shot and two-phase flows.
func (b *Broker) emitSettleFailure(neg *negotiated, auth *eip3009.Authorization, humanAmount string, err error) {
	b.emit(PaymentEvent{
		Type:      PaymentEventFailure,
		Service:   neg.Service,
		Amount:    humanAmount,
		Asset:     neg.Accepted.Asset,
		Network:   neg.Accepted.Network,
		Payer:     auth.From.Hex(),
		Recipient: neg.Accepted.PayTo,
		Err:       err,
	})
}

// addAgentHeaders attaches the optional agent-identity headers when the
// active wallet has both agentId and agentRegistry set (spec §4.6.2 step
// 6; per §9 open questions, name-only identities do not announce
// themselves).
func addAgentHeaders(req *http.Request, active *store.WalletEntry) {
	id := active.AgentIdentity
	if id == nil || id.AgentID == nil || id.AgentRegistry == nil {
		return
	}
	req.Header.Set("X-AGENT-ID", *id.AgentID)
	req.Header.Set("X-AGENT-REGISTRY", *id.AgentRegistry)
	if id.Name != "" {
		req.Header.Set("X-AGENT-NAME", id.Name)
	}
}
