package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clawlet-dev/clawlet/internal/broker"
	"github.com/clawlet-dev/clawlet/internal/ledger"
	"github.com/clawlet-dev/clawlet/internal/rules"
	"github.com/clawlet-dev/clawlet/internal/store"
	"github.com/clawlet-dev/clawlet/internal/walletmanager"
)

func newTestCatalog(t *testing.T, demoMode bool) *Catalog {
	t.Helper()
	s, err := store.Load(t.TempDir())
	require.NoError(t, err)

	l := ledger.New(s)
	r := rules.New(s, l)
	m := walletmanager.New(s, nil)
	b := broker.New(s, l, r, m)
	return New(s, l, r, m, b, demoMode)
}

func TestConfigReportsDemoMode(t *testing.T) {
	c := newTestCatalog(t, true)
	require.True(t, c.Config().DemoMode)
}

func TestCreateWalletRequiresAdapterKind(t *testing.T) {
	c := newTestCatalog(t, false)
	_, err := c.CreateWallet(context.Background(), CreateWalletInput{})
	require.Error(t, err)
}

func TestCreateWalletMakesItActive(t *testing.T) {
	c := newTestCatalog(t, false)
	summary, err := c.CreateWallet(context.Background(), CreateWalletInput{
		Adapter:  store.AdapterLocalKey,
		LocalKey: &store.LocalKeyConfig{},
		Label:    "Primary",
	})
	require.NoError(t, err)
	require.NotEmpty(t, summary.Address)

	got, err := c.GetWallet()
	require.NoError(t, err)
	require.NotNil(t, got.Wallet)
	require.Equal(t, summary.ID, got.Wallet.ID)
}

func TestDemoModeRejectsWrites(t *testing.T) {
	c := newTestCatalog(t, true)
	_, err := c.CreateWallet(context.Background(), CreateWalletInput{Adapter: store.AdapterLocalKey, LocalKey: &store.LocalKeyConfig{}})
	require.Error(t, err)

	_, err = c.SetNetwork("base-sepolia")
	require.Error(t, err)

	_, err = c.Freeze(true)
	require.Error(t, err)
}

func TestDemoModeAllowsReads(t *testing.T) {
	c := newTestCatalog(t, true)
	_ = c.Config()
	_, err := c.ListWallets()
	require.NoError(t, err)
	_, err = c.GetRules()
	require.NoError(t, err)
}

func TestSetNetworkRejectsUnknown(t *testing.T) {
	c := newTestCatalog(t, false)
	_, err := c.SetNetwork("ethereum-mainnet")
	require.Error(t, err)
}

func TestGetBalanceWithNetworkOverride(t *testing.T) {
	c := newTestCatalog(t, false)
	_, err := c.GetBalance(context.Background(), "not-a-network")
	require.Error(t, err)
}

func TestFreezeRoundTrip(t *testing.T) {
	c := newTestCatalog(t, false)
	_, err := c.CreateWallet(context.Background(), CreateWalletInput{Adapter: store.AdapterLocalKey, LocalKey: &store.LocalKeyConfig{}})
	require.NoError(t, err)

	res, err := c.Freeze(true)
	require.NoError(t, err)
	require.True(t, res.Frozen)

	got, err := c.GetWallet()
	require.NoError(t, err)
	require.True(t, got.Wallet.Frozen)
}
