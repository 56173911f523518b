// Package tools implements the fixed operation catalog (spec §4.7, C8):
// the single contract consumed by both the JSON-HTTP binding and the MCP
// tool-protocol binding (served over streamable HTTP). Grounded on the teacher pack's v2/mcp and
// v2/http handlers, which both sit on the same underlying client calls —
// here that shared underlying layer is this Catalog.
package tools

import (
	"context"

	"github.com/clawlet-dev/clawlet/internal/apperror"
	"github.com/clawlet-dev/clawlet/internal/broker"
	"github.com/clawlet-dev/clawlet/internal/chainreg"
	"github.com/clawlet-dev/clawlet/internal/ledger"
	"github.com/clawlet-dev/clawlet/internal/rules"
	"github.com/clawlet-dev/clawlet/internal/store"
	"github.com/clawlet-dev/clawlet/internal/walletmanager"
)

// Catalog wires every dependency the tool operations need and enforces the
// demo-mode write gate ahead of every mutating operation (spec §4.7: "when
// true, every non-read operation returns write-disabled").
type Catalog struct {
	store    *store.Store
	ledger   *ledger.Ledger
	rules    *rules.Engine
	manager  *walletmanager.Manager
	broker   *broker.Broker
	demoMode bool
}

func New(s *store.Store, l *ledger.Ledger, r *rules.Engine, m *walletmanager.Manager, b *broker.Broker, demoMode bool) *Catalog {
	return &Catalog{store: s, ledger: l, rules: r, manager: m, broker: b, demoMode: demoMode}
}

func (c *Catalog) guardWrite() error {
	if c.demoMode {
		return apperror.ErrDemoWrite()
	}
	return nil
}

// ConfigResult is the `config` operation's output.
type ConfigResult struct {
	DemoMode bool `json:"demoMode"`
}

func (c *Catalog) Config() ConfigResult {
	return ConfigResult{DemoMode: c.demoMode}
}

// ListWalletsResult is the `listWallets` operation's output.
type ListWalletsResult struct {
	Wallets        []walletmanager.Summary `json:"wallets"`
	ActiveWalletID *string                 `json:"activeWalletId"`
}

func (c *Catalog) ListWallets() (ListWalletsResult, error) {
	summaries, activeID, err := c.manager.List()
	if err != nil {
		return ListWalletsResult{}, err
	}
	return ListWalletsResult{Wallets: summaries, ActiveWalletID: activeID}, nil
}

// CreateWalletInput is the `createWallet` operation's input.
type CreateWalletInput struct {
	Adapter     store.AdapterKind
	Label       string
	LocalKey    *store.LocalKeyConfig
	Privy       *store.PrivyConfig
	CoinbaseCDP *store.CoinbaseCDPConfig
	Crossmint   *store.CrossmintConfig
	Browser     *store.BrowserConfig
}

func (c *Catalog) CreateWallet(ctx context.Context, in CreateWalletInput) (walletmanager.Summary, error) {
	if err := c.guardWrite(); err != nil {
		return walletmanager.Summary{}, err
	}
	if in.Adapter == "" {
		return walletmanager.Summary{}, apperror.ErrValidation("createWallet requires an adapter kind")
	}
	return c.manager.Create(ctx, walletmanager.CreateRequest{
		Kind:        in.Adapter,
		Label:       in.Label,
		LocalKey:    in.LocalKey,
		Privy:       in.Privy,
		CoinbaseCDP: in.CoinbaseCDP,
		Crossmint:   in.Crossmint,
		Browser:     in.Browser,
	})
}

// SwitchWalletResult is the `switchWallet` operation's output.
type SwitchWalletResult struct {
	ActiveWalletID string `json:"activeWalletId"`
	Label          string `json:"label"`
}

func (c *Catalog) SwitchWallet(walletID string) (SwitchWalletResult, error) {
	if err := c.guardWrite(); err != nil {
		return SwitchWalletResult{}, err
	}
	if walletID == "" {
		return SwitchWalletResult{}, apperror.ErrValidation("switchWallet requires walletId")
	}
	summary, err := c.manager.Switch(walletID)
	if err != nil {
		return SwitchWalletResult{}, err
	}
	return SwitchWalletResult{ActiveWalletID: summary.ID, Label: summary.Label}, nil
}

// RenameWalletResult is the `renameWallet` operation's output.
type RenameWalletResult struct {
	Label string `json:"label"`
}

func (c *Catalog) RenameWallet(label string) (RenameWalletResult, error) {
	if err := c.guardWrite(); err != nil {
		return RenameWalletResult{}, err
	}
	if label == "" {
		return RenameWalletResult{}, apperror.ErrValidation("renameWallet requires label")
	}
	applied, err := c.manager.Rename(label)
	if err != nil {
		return RenameWalletResult{}, err
	}
	return RenameWalletResult{Label: applied}, nil
}

// RemoveWalletResult is the `removeWallet` operation's output.
type RemoveWalletResult struct {
	Deleted bool `json:"deleted"`
}

func (c *Catalog) RemoveWallet(walletID string) (RemoveWalletResult, error) {
	if err := c.guardWrite(); err != nil {
		return RemoveWalletResult{}, err
	}
	if walletID == "" {
		return RemoveWalletResult{}, apperror.ErrValidation("removeWallet requires walletId")
	}
	if err := c.manager.Remove(walletID); err != nil {
		return RemoveWalletResult{}, err
	}
	return RemoveWalletResult{Deleted: true}, nil
}

// GetWalletResult is the `getWallet` operation's output: nil fields when no
// wallet is active rather than an error (spec §4.7).
type GetWalletResult struct {
	Wallet  *walletmanager.Summary `json:"wallet"`
	Adapter *store.AdapterKind     `json:"adapter"`
}

func (c *Catalog) GetWallet() (GetWalletResult, error) {
	summaries, activeID, err := c.manager.List()
	if err != nil {
		return GetWalletResult{}, err
	}
	if activeID == nil {
		return GetWalletResult{}, nil
	}
	for i := range summaries {
		if summaries[i].ID == *activeID {
			kind := summaries[i].Adapter
			return GetWalletResult{Wallet: &summaries[i], Adapter: &kind}, nil
		}
	}
	return GetWalletResult{}, nil
}

// NetworkResult is the `getNetwork`/`setNetwork` operation's output.
type NetworkResult struct {
	Network string `json:"network"`
}

func (c *Catalog) GetNetwork() NetworkResult {
	return NetworkResult{Network: c.store.Network()}
}

func (c *Catalog) SetNetwork(network string) (NetworkResult, error) {
	if err := c.guardWrite(); err != nil {
		return NetworkResult{}, err
	}
	if err := c.store.SetNetwork(network); err != nil {
		return NetworkResult{}, err
	}
	return NetworkResult{Network: network}, nil
}

// BalanceResult is the `getBalance` operation's output.
type BalanceResult struct {
	Balance string `json:"balance"`
	Network string `json:"network"`
}

func (c *Catalog) GetBalance(ctx context.Context, networkOverride string) (BalanceResult, error) {
	caip2, network, err := c.resolveNetwork(networkOverride)
	if err != nil {
		return BalanceResult{}, err
	}
	balance, err := c.manager.Balance(ctx, caip2)
	if err != nil {
		return BalanceResult{}, err
	}
	return BalanceResult{Balance: balance, Network: network}, nil
}

func (c *Catalog) resolveNetwork(override string) (caip2, network string, err error) {
	if override == "" {
		network = c.store.Network()
		caip2, err = c.store.GetNetworkCaip2()
		return caip2, network, err
	}
	if !chainreg.IsValidNetwork(override) {
		return "", "", apperror.ErrValidation("unsupported network override")
	}
	caip2, err = chainreg.CAIP2ForNetwork(chainreg.Network(override))
	return caip2, override, err
}

func (c *Catalog) GetRules() (store.Rules, error) {
	return c.rules.Get()
}

func (c *Catalog) SetRules(p rules.Patch) (store.Rules, error) {
	if err := c.guardWrite(); err != nil {
		return store.Rules{}, err
	}
	return c.rules.Set(p)
}

// ListTransactionsResult is the `listTransactions` operation's output.
type ListTransactionsResult struct {
	Transactions []store.Transaction `json:"transactions"`
}

func (c *Catalog) ListTransactions(limit int) (ListTransactionsResult, error) {
	txs, err := c.ledger.List(limit)
	if err != nil {
		return ListTransactionsResult{}, err
	}
	return ListTransactionsResult{Transactions: txs}, nil
}

// TodaySpentResult is the `todaySpent` operation's output.
type TodaySpentResult struct {
	Spent int64 `json:"spent"`
}

func (c *Catalog) TodaySpent() (TodaySpentResult, error) {
	spent, err := c.ledger.TodaySpent()
	if err != nil {
		return TodaySpentResult{}, err
	}
	return TodaySpentResult{Spent: spent}, nil
}

func (c *Catalog) GetAgentIdentity() (*store.AgentIdentity, error) {
	return c.manager.GetAgentIdentity()
}

func (c *Catalog) SetAgentIdentity(patch walletmanager.IdentityPatch) (*store.AgentIdentity, error) {
	if err := c.guardWrite(); err != nil {
		return nil, err
	}
	return c.manager.SetAgentIdentity(patch)
}

// PayInput is the shared input shape for `pay` and `payPrepare`.
type PayInput struct {
	URL     string
	Method  string
	Body    []byte
	Headers map[string]string
	Reason  string
}

func (in PayInput) toFetchOptions() broker.FetchOptions {
	return broker.FetchOptions{Method: in.Method, Headers: in.Headers, Body: in.Body, Reason: in.Reason}
}

func (c *Catalog) Pay(ctx context.Context, in PayInput) (*broker.Result, error) {
	if err := c.guardWrite(); err != nil {
		return nil, err
	}
	if in.URL == "" {
		return nil, apperror.ErrValidation("pay requires url")
	}
	return c.broker.Fetch(ctx, in.URL, in.toFetchOptions())
}

func (c *Catalog) PayPrepare(ctx context.Context, in PayInput) (*broker.PrepareResult, error) {
	if err := c.guardWrite(); err != nil {
		return nil, err
	}
	if in.URL == "" {
		return nil, apperror.ErrValidation("payPrepare requires url")
	}
	return c.broker.Prepare(ctx, in.URL, in.toFetchOptions())
}

func (c *Catalog) PayComplete(ctx context.Context, sessionID, signature string) (*broker.Result, error) {
	if err := c.guardWrite(); err != nil {
		return nil, err
	}
	if sessionID == "" || signature == "" {
		return nil, apperror.ErrValidation("payComplete requires sessionId and signature")
	}
	return c.broker.Complete(ctx, sessionID, signature)
}

// FreezeResult is the `freeze`/`unfreeze` operation's output.
type FreezeResult struct {
	Frozen bool `json:"frozen"`
}

func (c *Catalog) Freeze(frozen bool) (FreezeResult, error) {
	if err := c.guardWrite(); err != nil {
		return FreezeResult{}, err
	}
	applied, err := c.manager.Freeze(frozen)
	if err != nil {
		return FreezeResult{}, err
	}
	return FreezeResult{Frozen: applied}, nil
}
