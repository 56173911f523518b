package broker

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clawlet-dev/clawlet/internal/amountfmt"
	"github.com/clawlet-dev/clawlet/internal/apperror"
	"github.com/clawlet-dev/clawlet/internal/chainreg"
	"github.com/clawlet-dev/clawlet/internal/eip3009"
	"github.com/clawlet-dev/clawlet/internal/ledger"
	"github.com/clawlet-dev/clawlet/internal/store"
)

// PrepareResult is the session descriptor handed to an externally-signing
// wallet (spec §4.6.3 prepare).
type PrepareResult struct {
	SessionID   string
	Domain      map[string]interface{}
	Types       map[string][]eip3009.TypeField
	PrimaryType string
	Message     map[string]string
	HumanAmount string
	PayTo       string
	Network     string
}

// Prepare performs negotiation and authorization construction, then stops
// short of signing: it stores a session and returns the typed data for an
// external signer to produce a signature over (spec §4.6.3).
func (b *Broker) Prepare(ctx context.Context, url string, opts FetchOptions) (*PrepareResult, error) {
	if _, err := b.requireUnfrozen(); err != nil {
		return nil, err
	}

	passthrough, neg, err := b.negotiate(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	if passthrough != nil {
		// A passthrough at this stage is a programming error: prepare is
		// only ever called after a 402 was already observed by the caller.
		return nil, apperror.ErrNot402()
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

	sessionID := store.NewSessionID()
	expiresAt := time.Unix(auth.ValidBefore.Int64(), 0)
	b.sessions.put(&session{
		SessionID:  sessionID,
		URL:        url,
		Opts:       opts,
		Accepted:   neg.Accepted,
		Required:   neg.Required,
		Auth:       auth,
		Chain:      neg.Chain,
		TxRecordID: txRecord.ID,
		ExpiresAt:  expiresAt,
	})

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

	return &PrepareResult{
		SessionID:   sessionID,
		Domain:      fields.Domain,
		Types:       fields.Types,
		PrimaryType: fields.PrimaryType,
		Message:     fields.Message,
		HumanAmount: humanAmount,
		PayTo:       neg.Accepted.PayTo,
		Network:     neg.Accepted.Network,
	}, nil
}

// Complete consumes a prepared session with a caller-supplied signature,
// issues the retry, and returns the same result shape Fetch does (spec
// §4.6.3 complete). Double-submit and post-expiry completion both fail
// with *session-not-found*.
func (b *Broker) Complete(ctx context.Context, sessionID, signature string) (*Result, error) {
	active, err := b.requireUnfrozen()
	if err != nil {
		return nil, err
	}

	sess, valid, err := b.sessions.takeIfValid(sessionID, time.Now())
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperror.ErrSessionNotFound()
	}
	if !valid {
		reason := "Payment session expired"
		b.failEntry(sess.TxRecordID, reason)
		b.emit(PaymentEvent{
			Type:      PaymentEventFailure,
			URL:       sess.URL,
			Service:   sess.Accepted.PayTo,
			Amount:    sess.Accepted.Amount,
			Asset:     sess.Accepted.Asset,
			Network:   sess.Accepted.Network,
			Recipient: sess.Accepted.PayTo,
			Err:       apperror.ErrSessionExpired(),
		})
		return nil, apperror.ErrSessionNotFound()
	}

	neg := &negotiated{Accepted: sess.Accepted, Required: sess.Required, Chain: sess.Chain}
	humanAmount := amountfmt.FormatAtomic(sess.Auth.Value, chainreg.Decimals)

	return b.retryAndSettle(ctx, sess.URL, sess.Opts, neg, sess.Auth, signature, sess.TxRecordID, active, humanAmount)
}
