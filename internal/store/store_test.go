package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMigratesLegacyDocument(t *testing.T) {
	dir := t.TempDir()
	legacy := map[string]any{
		"adapterConfig": map[string]any{
			"kind":     "local-key",
			"localKey": map[string]any{"privateKeyHex": "0xdead"},
		},
		"wallet": map[string]any{"label": ""},
		"rules": map[string]any{
			"maxPerTransaction": nil,
			"dailyCap":          nil,
			"allowedServices":   []string{},
			"blockedServices":   []string{},
		},
		"transactions": []any{},
	}
	raw, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), raw, 0o644))

	s, err := Load(dir)
	require.NoError(t, err)

	doc := s.Get()
	require.Len(t, doc.Wallets, 1)
	require.NotNil(t, doc.ActiveWalletID)
	require.Equal(t, doc.Wallets[0].ID, *doc.ActiveWalletID)
	require.Equal(t, "Wallet 1", doc.Wallets[0].Label)
	require.Equal(t, "base", doc.Network)
	require.Equal(t, AdapterLocalKey, doc.Wallets[0].Adapter.Kind)
	require.NotNil(t, doc.Wallets[0].Adapter.LocalKey)
	require.Equal(t, "0xdead", doc.Wallets[0].Adapter.LocalKey.PrivateKeyHex)
	require.Empty(t, doc.Wallets[0].Transactions)

	// migration persists the upgraded document, so a fresh Load sees the
	// "wallets" key and does not migrate again.
	persisted, err := os.ReadFile(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	var probe map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(persisted, &probe))
	_, hasWallets := probe["wallets"]
	require.True(t, hasWallets)
}

func TestLoadMigratesLegacyDocumentWithLabel(t *testing.T) {
	dir := t.TempDir()
	legacy := legacyDocument{
		AdapterConfig: AdapterConfig{Kind: AdapterLocalKey, LocalKey: &LocalKeyConfig{PrivateKeyHex: "0xabc"}},
		Rules:         Rules{AllowedServices: []string{}, BlockedServices: []string{}},
		Transactions: []Transaction{
			{ID: "tx-1", Timestamp: "2024-01-01T00:00:00Z", Amount: "0.01", Status: TxSettled},
		},
	}
	legacy.Wallet.Label = "My Wallet"

	raw, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), raw, 0o644))

	s, err := Load(dir)
	require.NoError(t, err)

	doc := s.Get()
	require.Len(t, doc.Wallets, 1)
	require.Equal(t, "My Wallet", doc.Wallets[0].Label)
	require.Len(t, doc.Wallets[0].Transactions, 1)
	require.Equal(t, "tx-1", doc.Wallets[0].Transactions[0].ID)
}

func TestLoadIsIdempotentAcrossReload(t *testing.T) {
	dir := t.TempDir()

	s, err := Load(dir)
	require.NoError(t, err)

	err = s.Update(func(doc *Document) error {
		id := NewWalletID()
		doc.ActiveWalletID = &id
		doc.Network = "base-sepolia"
		doc.Wallets = append(doc.Wallets, &WalletEntry{
			ID:           id,
			Label:        "Wallet 1",
			CreatedAt:    NowISO(),
			Adapter:      AdapterConfig{Kind: AdapterLocalKey, LocalKey: &LocalKeyConfig{PrivateKeyHex: "0xfeed"}},
			Transactions: []Transaction{},
		})
		return nil
	})
	require.NoError(t, err)

	before := s.Get()

	reloaded, err := Load(dir)
	require.NoError(t, err)
	after := reloaded.Get()

	require.Equal(t, before.Network, after.Network)
	require.Equal(t, *before.ActiveWalletID, *after.ActiveWalletID)
	require.Len(t, after.Wallets, 1)
	require.Equal(t, before.Wallets[0].ID, after.Wallets[0].ID)
	require.Equal(t, before.Wallets[0].Label, after.Wallets[0].Label)
	require.Equal(t, before.Wallets[0].Adapter, after.Wallets[0].Adapter)

	// a second Load of an already-current document must not re-migrate or
	// otherwise mutate the file on disk.
	rawBefore, err := os.ReadFile(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	_, err = Load(dir)
	require.NoError(t, err)

	rawAfter, err := os.ReadFile(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	require.JSONEq(t, string(rawBefore), string(rawAfter))
}
