package broker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clawlet-dev/clawlet/internal/chainreg"
	"github.com/clawlet-dev/clawlet/internal/ledger"
	"github.com/clawlet-dev/clawlet/internal/rules"
	"github.com/clawlet-dev/clawlet/internal/store"
	"github.com/clawlet-dev/clawlet/internal/walletmanager"
	"github.com/clawlet-dev/clawlet/internal/x402wire"
)

func newTestBroker(t *testing.T) (*Broker, *store.Store) {
	t.Helper()
	s, err := store.Load(t.TempDir())
	require.NoError(t, err)

	mgr := walletmanager.New(s, nil)
	_, err = mgr.Create(context.Background(), walletmanager.CreateRequest{
		Kind:     store.AdapterLocalKey,
		LocalKey: &store.LocalKeyConfig{},
		Label:    "Wallet 1",
	})
	require.NoError(t, err)

	l := ledger.New(s)
	r := rules.New(s, l)
	return New(s, l, r, mgr), s
}

func base402Payload(payTo, amount string) x402wire.PaymentRequired {
	return x402wire.PaymentRequired{
		X402Version: 2,
		Accepts: []x402wire.PaymentRequirements{
			{
				Scheme:            "exact",
				Network:           "eip155:8453",
				Asset:             chainregUSDC(),
				Amount:            amount,
				PayTo:             payTo,
				MaxTimeoutSeconds: 60,
			},
		},
		Resource: &x402wire.Resource{URL: "https://example.test/resource"},
	}
}

func chainregUSDC() string {
	cfg, _ := chainreg.ByNetwork(chainreg.NetworkBase)
	return cfg.USDCAddress
}

func TestFetchPassthroughOnNon402(t *testing.T) {
	b, _ := newTestBroker(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	result, err := b.Fetch(context.Background(), srv.URL, FetchOptions{})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, result.Status)
	require.Nil(t, result.Payment)
}

func TestFetchSignsAndSettlesOnSuccess(t *testing.T) {
	b, _ := newTestBroker(t)
	var gotSignature bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-PAYMENT") != "" {
			gotSignature = true
			receipt, _ := json.Marshal(x402wire.Receipt{TxHash: "0xdeadbeef"})
			w.Header().Set("x-payment-response", base64.StdEncoding.EncodeToString(receipt))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("paid"))
			return
		}
		doc := base402Payload("0x000000000000000000000000000000000000aa", "100000")
		raw, _ := json.Marshal(doc)
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	result, err := b.Fetch(context.Background(), srv.URL, FetchOptions{})
	require.NoError(t, err)
	require.True(t, gotSignature)
	require.Equal(t, http.StatusOK, result.Status)
	require.NotNil(t, result.Payment)
	require.Equal(t, "0xdeadbeef", *result.Payment.TxHash)
	require.Equal(t, "0.1", result.Payment.HumanAmount)
}

func TestFetchNetworkMismatch(t *testing.T) {
	b, s := newTestBroker(t)
	require.NoError(t, s.SetNetwork("base-sepolia"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc := base402Payload("0x000000000000000000000000000000000000aa", "100000")
		raw, _ := json.Marshal(doc)
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	_, err := b.Fetch(context.Background(), srv.URL, FetchOptions{})
	require.Error(t, err)
}

func TestFetchFrozenWalletRejected(t *testing.T) {
	b, s := newTestBroker(t)
	active := s.GetActive()
	require.NotNil(t, active)
	err := s.Update(func(doc *store.Document) error {
		store.FindWallet(doc, active.ID).Frozen = true
		return nil
	})
	require.NoError(t, err)

	_, err = b.Fetch(context.Background(), "http://example.invalid/x", FetchOptions{})
	require.Error(t, err)
}

func TestPrepareCompleteRoundTrip(t *testing.T) {
	b, _ := newTestBroker(t)
	var gotSignature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sig := r.Header.Get("X-PAYMENT"); sig != "" {
			gotSignature = sig
			receipt, _ := json.Marshal(x402wire.Receipt{Transaction: "0xcafebabe"})
			w.Header().Set("payment-response", base64.StdEncoding.EncodeToString(receipt))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("paid"))
			return
		}
		doc := base402Payload("0x000000000000000000000000000000000000aa", "50000")
		raw, _ := json.Marshal(doc)
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	prep, err := b.Prepare(context.Background(), srv.URL, FetchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, prep.SessionID)
	require.Equal(t, "TransferWithAuthorization", prep.PrimaryType)
	require.Equal(t, "0.05", prep.HumanAmount)

	result, err := b.Complete(context.Background(), prep.SessionID, "0xsignedbyexternalwallet")
	require.NoError(t, err)
	require.NotEmpty(t, gotSignature)
	require.Equal(t, http.StatusOK, result.Status)
	require.Equal(t, "0xcafebabe", *result.Payment.TxHash)

	// one-shot: completing again must fail with session-not-found
	_, err = b.Complete(context.Background(), prep.SessionID, "0xreplay")
	require.Error(t, err)
}

func TestPreparePassthroughFailsWithNot402(t *testing.T) {
	b, _ := newTestBroker(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := b.Prepare(context.Background(), srv.URL, FetchOptions{})
	require.Error(t, err)
}

func TestCompleteUnknownSessionFails(t *testing.T) {
	b, _ := newTestBroker(t)
	_, err := b.Complete(context.Background(), "no-such-session", "0xsig")
	require.Error(t, err)
}

func TestSweepExpiresSessionAndFailsLedger(t *testing.T) {
	b, _ := newTestBroker(t)

	l := b.ledger
	rec, err := l.Add(ledger.NewEntry{Service: "svc", Amount: "0.01", Status: store.TxPending})
	require.NoError(t, err)

	b.sessions.put(&session{
		SessionID:  "expired-session",
		TxRecordID: rec.ID,
		ExpiresAt:  time.Now().Add(-time.Minute),
	})

	b.sweep()

	_, ok, err := b.sessions.takeIfValid("expired-session", time.Now())
	require.NoError(t, err)
	require.False(t, ok, "sweep should have removed the expired session")

	txs, err := l.List(1)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, store.TxFailed, txs[0].Status)
}
