package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clawlet-dev/clawlet/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
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
	return s
}

func TestAddAppendsAndPersists(t *testing.T) {
	s := newTestStore(t)
	l := New(s)

	rec, err := l.Add(NewEntry{
		Payee:   "0xabc",
		Service: "api.example.com",
		Amount:  "0.1",
		Asset:   "0xusdc",
		Network: "eip155:84532",
		Status:  store.TxPending,
	})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.NotEmpty(t, rec.Timestamp)

	txs, err := l.List(10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, rec.ID, txs[0].ID)
}

func TestListNewestFirstAndCapped(t *testing.T) {
	s := newTestStore(t)
	l := New(s)

	for i := 0; i < 5; i++ {
		_, err := l.Add(NewEntry{Service: "svc", Amount: "0.1", Status: store.TxSettled})
		require.NoError(t, err)
	}

	txs, err := l.List(3)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	for i := 0; i < len(txs)-1; i++ {
		require.GreaterOrEqual(t, txs[i].Timestamp, txs[i+1].Timestamp)
	}
}

func TestUpdateAppliesPatch(t *testing.T) {
	s := newTestStore(t)
	l := New(s)

	rec, err := l.Add(NewEntry{Service: "svc", Amount: "0.1", Status: store.TxPending})
	require.NoError(t, err)

	hash := "0xdeadbeef"
	settled := store.TxSettled
	updated, err := l.Update(rec.ID, Patch{Status: &settled, TxHash: &hash})
	require.NoError(t, err)
	require.Equal(t, store.TxSettled, updated.Status)
	require.Equal(t, &hash, updated.TxHash)
}

func TestUpdateUnknownIDFails(t *testing.T) {
	s := newTestStore(t)
	l := New(s)

	_, err := l.Update("nope", Patch{})
	require.Error(t, err)
}

func TestTodaySpentSumsSettledOnly(t *testing.T) {
	s := newTestStore(t)
	l := New(s)

	_, err := l.Add(NewEntry{Service: "svc", Amount: "0.09", Status: store.TxSettled})
	require.NoError(t, err)
	_, err = l.Add(NewEntry{Service: "svc", Amount: "5.00", Status: store.TxPending})
	require.NoError(t, err)
	_, err = l.Add(NewEntry{Service: "svc", Amount: "1.00", Status: store.TxFailed})
	require.NoError(t, err)

	spent, err := l.TodaySpent()
	require.NoError(t, err)
	require.Equal(t, int64(90000), spent)
}
