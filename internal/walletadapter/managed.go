package walletadapter

import (
	"context"
	"sync"

	"github.com/clawlet-dev/clawlet/internal/apperror"
	"github.com/clawlet-dev/clawlet/internal/store"
)

// providerSDK is the capability a managed-wallet provider's optional SDK
// must expose. Each variant's lazy loader resolves to this shape, or
// reports absent so the adapter can surface *sdk-not-installed* (spec
// §4.4, §9 "Dynamic dispatch / SDK loading").
type providerSDK interface {
	// Provision creates or claims a wallet under credentials, returning
	// its provider-assigned id and address.
	Provision(ctx context.Context, credentials map[string]string, existingWalletID *string) (walletID, address string, err error)

	// Sign delegates EIP-712 signing to the provider for a wallet id.
	Sign(ctx context.Context, walletID string, data TypedData) (signature string, err error)

	// Balance queries the provider's own balance endpoint when it offers
	// one; providers that don't still fall back to on-chain reads in
	// Balance() below.
	Balance(ctx context.Context, walletID string, network string) (balance string, ok bool, err error)
}

// sdkLoader resolves the optional SDK for a provider. Overridable in tests;
// in production every provider's loader reports not-installed, since none
// of these optional SDKs are vendored dependencies of this module (spec
// §9: "a missing-SDK error at load time must surface as sdk-not-installed").
type sdkLoader func() (providerSDK, error)

func notInstalledLoader(provider string) sdkLoader {
	return func() (providerSDK, error) {
		return nil, apperror.ErrSDKNotInstalled(provider)
	}
}

// managedAdapter factors the shared lazy-SDK, provision/address/balance/
// sign/serialize plumbing common to privy, coinbase-cdp, and crossmint —
// the three provider-managed variants differ only in their credential
// shape and provider name.
type managedAdapter struct {
	mu sync.Mutex

	provider    string
	credentials map[string]string
	walletID    *string
	address     *string

	loader sdkLoader
	sdk    providerSDK

	chain chainBalancer
}

func newManagedAdapter(provider string, credentials map[string]string, walletID, address *string, chain chainBalancer, loader sdkLoader) *managedAdapter {
	return &managedAdapter{
		provider:    provider,
		credentials: credentials,
		walletID:    walletID,
		address:     address,
		loader:      loader,
		chain:       chain,
	}
}

func (a *managedAdapter) resolveSDK() (providerSDK, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sdk != nil {
		return a.sdk, nil
	}
	sdk, err := a.loader()
	if err != nil {
		return nil, err
	}
	a.sdk = sdk
	return sdk, nil
}

func (a *managedAdapter) Provision(ctx context.Context) (string, error) {
	a.mu.Lock()
	if a.address != nil {
		addr := *a.address
		a.mu.Unlock()
		return addr, nil
	}
	a.mu.Unlock()

	sdk, err := a.resolveSDK()
	if err != nil {
		return "", err
	}

	walletID, address, err := sdk.Provision(ctx, a.credentials, a.walletID)
	if err != nil {
		return "", apperror.ErrUpstream("provision "+a.provider+" wallet", err)
	}

	a.mu.Lock()
	a.walletID = &walletID
	a.address = &address
	a.mu.Unlock()
	return address, nil
}

func (a *managedAdapter) Address() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.address == nil {
		return "", apperror.ErrNotInitialized(a.provider + " wallet has not been provisioned")
	}
	return *a.address, nil
}

func (a *managedAdapter) IsInitialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.address != nil
}

func (a *managedAdapter) Balance(ctx context.Context, network string) (string, error) {
	addr, err := a.Address()
	if err != nil {
		return "", err
	}

	if sdk, err := a.resolveSDK(); err == nil {
		if bal, ok, err := sdk.Balance(ctx, a.walletIDOrEmpty(), network); err == nil && ok {
			return bal, nil
		}
	}
	return balanceOf(ctx, a.chain, network, addr)
}

func (a *managedAdapter) walletIDOrEmpty() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.walletID == nil {
		return ""
	}
	return *a.walletID
}

// snapshot returns the current walletID/address pointers under lock, for
// Serialize implementations in the concrete provider types.
func (a *managedAdapter) snapshot() (walletID, address *string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.walletID, a.address
}

func (a *managedAdapter) SignTypedData(ctx context.Context, data TypedData) (string, error) {
	if !a.IsInitialized() {
		return "", apperror.ErrNotInitialized(a.provider + " wallet has not been provisioned")
	}
	sdk, err := a.resolveSDK()
	if err != nil {
		return "", err
	}
	sig, err := sdk.Sign(ctx, a.walletIDOrEmpty(), data)
	if err != nil {
		return "", apperror.ErrUpstream("sign via "+a.provider, err)
	}
	return sig, nil
}

// --- Privy ---

type Privy struct {
	*managedAdapter
	cfg store.PrivyConfig
}

func NewPrivy(cfg *store.PrivyConfig, chain chainBalancer) *Privy {
	if cfg == nil {
		cfg = &store.PrivyConfig{}
	}
	creds := map[string]string{"appId": cfg.AppID, "appSecret": cfg.AppSecret}
	return &Privy{
		managedAdapter: newManagedAdapter("privy", creds, cfg.WalletID, cfg.Address, chain, notInstalledLoader("privy")),
		cfg:            *cfg,
	}
}

func (a *Privy) Serialize() store.AdapterConfig {
	cfg := a.cfg
	cfg.WalletID, cfg.Address = a.snapshot()
	return store.AdapterConfig{Kind: store.AdapterPrivy, Privy: &cfg}
}

// --- Coinbase CDP ---

type CoinbaseCDP struct {
	*managedAdapter
	cfg store.CoinbaseCDPConfig
}

func NewCoinbaseCDP(cfg *store.CoinbaseCDPConfig, chain chainBalancer) *CoinbaseCDP {
	if cfg == nil {
		cfg = &store.CoinbaseCDPConfig{}
	}
	creds := map[string]string{"apiKeyId": cfg.APIKeyID, "apiKeySecret": cfg.APIKeySecret}
	return &CoinbaseCDP{
		managedAdapter: newManagedAdapter("coinbase-cdp", creds, cfg.WalletID, cfg.Address, chain, notInstalledLoader("coinbase-cdp")),
		cfg:            *cfg,
	}
}

func (a *CoinbaseCDP) Serialize() store.AdapterConfig {
	cfg := a.cfg
	cfg.WalletID, cfg.Address = a.snapshot()
	return store.AdapterConfig{Kind: store.AdapterCoinbaseCDP, CoinbaseCDP: &cfg}
}

// --- Crossmint ---

type Crossmint struct {
	*managedAdapter
	cfg store.CrossmintConfig
}

func NewCrossmint(cfg *store.CrossmintConfig, chain chainBalancer) *Crossmint {
	if cfg == nil {
		cfg = &store.CrossmintConfig{}
	}
	creds := map[string]string{"apiKey": cfg.APIKey}
	return &Crossmint{
		managedAdapter: newManagedAdapter("crossmint", creds, cfg.WalletID, cfg.Address, chain, notInstalledLoader("crossmint")),
		cfg:            *cfg,
	}
}

func (a *Crossmint) Serialize() store.AdapterConfig {
	cfg := a.cfg
	cfg.WalletID, cfg.Address = a.snapshot()
	return store.AdapterConfig{Kind: store.AdapterCrossmint, Crossmint: &cfg}
}
