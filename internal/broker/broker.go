// Package broker implements the x402 negotiation and retry engine (spec
// §4.6, the hardest component): a private negotiate primitive shared by a
// single-shot fetch for server-signable adapters and a two-phase
// prepare/complete flow for externally-signing adapters, with ledger
// bookkeeping and receipt extraction throughout.
package broker

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/clawlet-dev/clawlet/internal/apperror"
	"github.com/clawlet-dev/clawlet/internal/chainreg"
	"github.com/clawlet-dev/clawlet/internal/ledger"
	"github.com/clawlet-dev/clawlet/internal/rules"
	"github.com/clawlet-dev/clawlet/internal/store"
	"github.com/clawlet-dev/clawlet/internal/walletmanager"
	"github.com/clawlet-dev/clawlet/internal/x402wire"
)

// sweepInterval is how often the session sweeper runs (spec §4.6.3).
const sweepInterval = 60 * time.Second

// FetchOptions carries the caller-supplied request shape for pay/prepare.
type FetchOptions struct {
	Method  string
	Headers map[string]string
	Body    []byte
	Reason  string
}

// Result is the normalized payment envelope (spec §7): negotiation and
// signing failures surface as an error from the call instead of a
// populated Result, matching "{status:0, error, body:null, payment:null}".
type Result struct {
	Status  int
	Headers http.Header
	Body    string
	Payment *PaymentInfo
}

// PaymentInfo summarizes the on-chain side of a completed payment attempt.
type PaymentInfo struct {
	TxHash      *string
	HumanAmount string
	PayTo       string
}

// Broker wires the store, ledger, rules engine, and wallet manager into
// the x402 handshake.
type Broker struct {
	store    *store.Store
	ledger   *ledger.Ledger
	rules    *rules.Engine
	manager  *walletmanager.Manager
	client   *http.Client
	selector OfferSelector
	onEvent  PaymentCallback
	log      zerolog.Logger

	sessions *sessionTable
}

// Option configures optional Broker behavior at construction time.
type Option func(*Broker)

// WithPaymentCallback registers a callback invoked synchronously at each
// payment lifecycle event (attempt, success, failure). Callbacks should be
// fast; slow work should be handed off to a goroutine within the callback.
func WithPaymentCallback(cb PaymentCallback) Option {
	return func(b *Broker) { b.onEvent = cb }
}

// WithLogger attaches a logger the broker uses to record payment
// attempt/settle/fail events (spec §10.2).
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Broker) { b.log = logger }
}

func New(s *store.Store, l *ledger.Ledger, r *rules.Engine, m *walletmanager.Manager, opts ...Option) *Broker {
	b := &Broker{
		store:    s,
		ledger:   l,
		rules:    r,
		manager:  m,
		client:   &http.Client{},
		selector: firstCompatible{},
		log:      zerolog.Nop(),
		sessions: newSessionTable(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// emit invokes the registered payment callback, if any, and logs the event,
// filling in the timestamp.
func (b *Broker) emit(evt PaymentEvent) {
	evt.Timestamp = time.Now()

	logEvt := b.log.Debug()
	if evt.Type == PaymentEventFailure {
		logEvt = b.log.Warn()
	}
	logEvt.Str("event", string(evt.Type)).
		Str("service", evt.Service).
		Str("amount", evt.Amount).
		Str("network", evt.Network).
		Str("recipient", evt.Recipient)
	if evt.Err != nil {
		logEvt = logEvt.Err(evt.Err)
	}
	logEvt.Msg("payment event")

	if b.onEvent != nil {
		b.onEvent(evt)
	}
}

// StartSweeper launches the periodic session sweeper (spec §4.6.3) in a
// goroutine and returns immediately. The sweeper exits when ctx is cancelled.
func (b *Broker) StartSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.sweep()
			}
		}
	}()
}

func (b *Broker) sweep() {
	expired := b.sessions.removeExpired(time.Now())
	for _, sess := range expired {
		reason := "Payment session expired"
		settled := store.TxFailed
		_, _ = b.ledger.Update(sess.TxRecordID, ledger.Patch{Status: &settled, Reason: &reason})
		b.emit(PaymentEvent{
			Type:      PaymentEventFailure,
			Service:   sess.Accepted.PayTo,
			Amount:    sess.Accepted.Amount,
			Asset:     sess.Accepted.Asset,
			Network:   sess.Accepted.Network,
			Recipient: sess.Accepted.PayTo,
			Err:       apperror.ErrSessionExpired(),
		})
	}
}

// requireUnfrozen fails fast if the active wallet is frozen — every
// broker operation refuses work in that state (spec §4.6 preamble).
func (b *Broker) requireUnfrozen() (*store.WalletEntry, error) {
	active, err := b.store.RequireActive()
	if err != nil {
		return nil, err
	}
	if active.Frozen {
		return nil, apperror.ErrFrozen()
	}
	return active, nil
}

// negotiated is the private result of the negotiate primitive (spec
// §4.6.1), shared by the single-shot and two-phase flows.
type negotiated struct {
	Accepted x402wire.PaymentRequirements
	Required *x402wire.PaymentRequired
	Service  string
	Chain    chainreg.ChainConfig
}

// passthroughResult wraps an upstream non-402 response verbatim.
type passthroughResult struct {
	Status  int
	Headers http.Header
	Body    string
}

// negotiate issues the upstream request once, parses a 402 if present,
// selects a compatible offer, enforces the network guard, and enforces
// spending rules. Returns exactly one of (passthrough, negotiated).
func (b *Broker) negotiate(ctx context.Context, url string, opts FetchOptions) (*passthroughResult, *negotiated, error) {
	req, err := newUpstreamRequest(ctx, url, opts)
	if err != nil {
		return nil, nil, apperror.ErrValidation(err.Error())
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, nil, apperror.ErrUpstream("upstream request failed", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, apperror.ErrUpstream("read upstream response", err)
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		return &passthroughResult{Status: resp.StatusCode, Headers: resp.Header, Body: string(bodyBytes)}, nil, nil
	}

	doc, err := x402wire.ParsePaymentRequired(resp.Header, bodyBytes)
	if err != nil {
		return nil, nil, apperror.ErrUpstream("malformed 402 document", err)
	}

	accepted, chain, err := b.selector.Select(doc.Accepts)
	if err != nil {
		return nil, nil, err
	}

	selectedCaip2, err := b.store.GetNetworkCaip2()
	if err != nil {
		return nil, nil, err
	}
	if accepted.Network != selectedCaip2 {
		return nil, nil, apperror.ErrNetworkMismatch(selectedCaip2, accepted.Network)
	}

	service := x402wire.HostOf(url)

	atomic, err := parseAtomicAmount(accepted.Amount)
	if err != nil {
		return nil, nil, apperror.ErrValidation("malformed payment amount")
	}
	if err := b.rules.Enforce(atomic, service); err != nil {
		return nil, nil, err
	}

	return nil, &negotiated{Accepted: accepted, Required: doc, Service: service, Chain: chain}, nil
}

// OfferSelector picks a single accept entry from a 402 document's list of
// payment options (spec §4.6.1 step 4). It exists as an interface, rather
// than a bare function, so a future multi-offer policy can be swapped in
// without touching negotiate — generalized from the notion of ranking
// signer/requirement candidates down to this broker's single-signer case.
type OfferSelector interface {
	Select(accepts []x402wire.PaymentRequirements) (x402wire.PaymentRequirements, chainreg.ChainConfig, error)
}

// firstCompatible selects the first accept entry this broker can satisfy:
// scheme "exact", a recognized EVM network, and the USDC asset for that
// network.
type firstCompatible struct{}

func (firstCompatible) Select(accepts []x402wire.PaymentRequirements) (x402wire.PaymentRequirements, chainreg.ChainConfig, error) {
	for _, opt := range accepts {
		if opt.Scheme != "exact" {
			continue
		}
		chain, err := chainreg.ByCAIP2(opt.Network)
		if err != nil {
			continue
		}
		if !equalFoldAddress(opt.Asset, chain.USDCAddress) {
			continue
		}
		return opt, chain, nil
	}
	return x402wire.PaymentRequirements{}, chainreg.ChainConfig{}, apperror.ErrNoCompatibleOption()
}

func equalFoldAddress(a, b string) bool {
	return common.HexToAddress(a) == common.HexToAddress(b)
}

func parseAtomicAmount(amount string) (int64, error) {
	return strconv.ParseInt(amount, 10, 64)
}

func newUpstreamRequest(ctx context.Context, url string, opts FetchOptions) (*http.Request, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	var bodyReader io.Reader
	if len(opts.Body) > 0 {
		bodyReader = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}
