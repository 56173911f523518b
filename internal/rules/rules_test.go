package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clawlet-dev/clawlet/internal/ledger"
	"github.com/clawlet-dev/clawlet/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *ledger.Ledger, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Load(dir)
	require.NoError(t, err)

	err = s.Update(func(doc *store.Document) error {
		id := store.NewWalletID()
		doc.Wallets = append(doc.Wallets, &store.WalletEntry{
			ID:           id,
			Label:        "Wallet 1",
			CreatedAt:    store.NowISO(),
			Transactions: []store.Transaction{},
		})
		doc.ActiveWalletID = &id
		return nil
	})
	require.NoError(t, err)

	l := ledger.New(s)
	return New(s, l), l, s
}

func str(s string) *string { return &s }

func TestEnforcePerTransactionLimit(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.Set(Patch{MaxPerTransaction: str("5.00")})
	require.NoError(t, err)

	require.NoError(t, e.Enforce(5_000_000, "api.example.com"))
	err = e.Enforce(5_000_001, "api.example.com")
	require.Error(t, err)
}

func TestEnforceDailyCapBoundary(t *testing.T) {
	e, l, _ := newTestEngine(t)
	_, err := e.Set(Patch{DailyCap: str("0.10")})
	require.NoError(t, err)

	_, err = l.Add(ledger.NewEntry{Service: "svc", Amount: "0.09", Status: store.TxSettled})
	require.NoError(t, err)

	// 0.10 - 0.09 = 0.01 => 10000 atomic is permitted
	require.NoError(t, e.Enforce(10_000, "api.example.com"))
	// one more atomic unit over the cap fails
	err = e.Enforce(10_001, "api.example.com")
	require.Error(t, err)
}

func TestEnforceBlockedTakesPrecedenceOverAllowed(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.Set(Patch{
		HasAllowedServices: true,
		AllowedServices:    []string{"evil.example"},
		HasBlockedServices: true,
		BlockedServices:    []string{"evil.example"},
	})
	require.NoError(t, err)

	err = e.Enforce(1, "api.evil.example")
	require.Error(t, err)
}

func TestEnforceAllowlistRejectsUnlisted(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.Set(Patch{HasAllowedServices: true, AllowedServices: []string{"good.example"}})
	require.NoError(t, err)

	require.Error(t, e.Enforce(1, "other.example"))
	require.NoError(t, e.Enforce(1, "api.good.example"))
}
