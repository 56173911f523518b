package walletadapter

import (
	"context"

	"github.com/clawlet-dev/clawlet/internal/apperror"
	"github.com/clawlet-dev/clawlet/internal/store"
)

// Browser is the externally-signing variant: the address is supplied up
// front by a connected browser wallet, and signing always happens outside
// this process via the two-phase broker flow (spec §4.4, §4.6.3).
type Browser struct {
	address string
	chain   chainBalancer
}

func NewBrowser(cfg *store.BrowserConfig, chain chainBalancer) (*Browser, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, apperror.ErrValidation("browser adapter requires an address")
	}
	return &Browser{address: cfg.Address, chain: chain}, nil
}

// Provision is a no-op: the address was supplied at construction.
func (a *Browser) Provision(ctx context.Context) (string, error) {
	return a.address, nil
}

func (a *Browser) Address() (string, error) {
	return a.address, nil
}

func (a *Browser) IsInitialized() bool {
	return a.address != ""
}

func (a *Browser) Balance(ctx context.Context, network string) (string, error) {
	return balanceOf(ctx, a.chain, network, a.address)
}

// SignTypedData always fails: the browser variant cannot sign server-side.
// The two-phase broker flow hands the same typed data to the external
// signer directly instead of calling this method.
func (a *Browser) SignTypedData(ctx context.Context, data TypedData) (string, error) {
	return "", apperror.ErrMustSignClientSide()
}

func (a *Browser) Serialize() store.AdapterConfig {
	return store.AdapterConfig{
		Kind:    store.AdapterBrowser,
		Browser: &store.BrowserConfig{Address: a.address},
	}
}
