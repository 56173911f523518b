package walletadapter

import (
	"github.com/clawlet-dev/clawlet/internal/apperror"
	"github.com/clawlet-dev/clawlet/internal/store"
)

// FromConfig builds the concrete adapter for a persisted AdapterConfig,
// wiring in chain for on-chain balance fallbacks.
func FromConfig(cfg store.AdapterConfig, chain chainBalancer) (Adapter, error) {
	switch cfg.Kind {
	case store.AdapterLocalKey:
		return NewLocalKey(cfg.LocalKey, chain)
	case store.AdapterPrivy:
		return NewPrivy(cfg.Privy, chain), nil
	case store.AdapterCoinbaseCDP:
		return NewCoinbaseCDP(cfg.CoinbaseCDP, chain), nil
	case store.AdapterCrossmint:
		return NewCrossmint(cfg.Crossmint, chain), nil
	case store.AdapterBrowser:
		return NewBrowser(cfg.Browser, chain)
	default:
		return nil, apperror.ErrValidation("unknown adapter kind " + string(cfg.Kind))
	}
}
