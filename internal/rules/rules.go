// Package rules enforces the active wallet's spending rules (spec §4.3):
// per-transaction limit, rolling daily cap, blocklist, allowlist, checked
// in that fixed order so the first violation wins.
package rules

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/clawlet-dev/clawlet/internal/amountfmt"
	"github.com/clawlet-dev/clawlet/internal/apperror"
	"github.com/clawlet-dev/clawlet/internal/chainreg"
	"github.com/clawlet-dev/clawlet/internal/ledger"
	"github.com/clawlet-dev/clawlet/internal/store"
)

// Engine enforces and edits the rules of the wallet active at call time.
type Engine struct {
	store  *store.Store
	ledger *ledger.Ledger
}

func New(s *store.Store, l *ledger.Ledger) *Engine {
	return &Engine{store: s, ledger: l}
}

// Get returns the active wallet's rules.
func (e *Engine) Get() (store.Rules, error) {
	active, err := e.store.RequireActive()
	if err != nil {
		return store.Rules{}, err
	}
	return active.Rules, nil
}

// Patch is a partial rules update — each field is replaced only when the
// caller supplies it (spec §4.3: "each of the four fields is individually
// replaced when present").
type Patch struct {
	MaxPerTransaction *string
	DailyCap          *string
	AllowedServices   []string
	BlockedServices   []string

	HasAllowedServices bool
	HasBlockedServices bool
}

// Set applies patch to the active wallet's rules and returns the full,
// updated record. Service lists are normalized to lowercase (I6).
func (e *Engine) Set(p Patch) (store.Rules, error) {
	var result store.Rules
	err := e.store.Update(func(doc *store.Document) error {
		active := store.FindWallet(doc, activeID(doc))
		if active == nil {
			return apperror.ErrNotInitialized("no active wallet")
		}
		if p.MaxPerTransaction != nil {
			active.Rules.MaxPerTransaction = p.MaxPerTransaction
		}
		if p.DailyCap != nil {
			active.Rules.DailyCap = p.DailyCap
		}
		if p.HasAllowedServices {
			active.Rules.AllowedServices = normalize(p.AllowedServices)
		}
		if p.HasBlockedServices {
			active.Rules.BlockedServices = normalize(p.BlockedServices)
		}
		result = active.Rules
		return nil
	})
	if err != nil {
		return store.Rules{}, err
	}
	return result, nil
}

// Enforce checks a pending payment of amountAtomic (atomic USDC units)
// against the active wallet's rules, in the fixed order: per-transaction,
// daily cap, blocklist, allowlist. The first violation fails fast.
func (e *Engine) Enforce(amountAtomic int64, service string) error {
	rulesRec, err := e.Get()
	if err != nil {
		return err
	}
	service = strings.ToLower(service)

	if rulesRec.MaxPerTransaction != nil {
		limit, err := toAtomic(*rulesRec.MaxPerTransaction)
		if err != nil {
			return apperror.ErrValidation("malformed maxPerTransaction rule")
		}
		if amountAtomic > limit {
			return apperror.ErrOverPerTx(*rulesRec.MaxPerTransaction, formatAtomic(amountAtomic))
		}
	}

	if rulesRec.DailyCap != nil {
		cap, err := toAtomic(*rulesRec.DailyCap)
		if err != nil {
			return apperror.ErrValidation("malformed dailyCap rule")
		}
		spent, err := e.ledger.TodaySpent()
		if err != nil {
			return err
		}
		wouldBe := spent + amountAtomic
		if wouldBe > cap {
			return apperror.ErrOverDailyCap(*rulesRec.DailyCap, formatAtomic(wouldBe))
		}
	}

	for _, pattern := range rulesRec.BlockedServices {
		if strings.Contains(service, pattern) {
			return apperror.ErrBlocked(service, pattern)
		}
	}

	if len(rulesRec.AllowedServices) > 0 {
		allowed := false
		for _, pattern := range rulesRec.AllowedServices {
			if strings.Contains(service, pattern) {
				allowed = true
				break
			}
		}
		if !allowed {
			return apperror.ErrNotAllowed(service)
		}
	}

	return nil
}

func activeID(doc *store.Document) string {
	if doc.ActiveWalletID == nil {
		return ""
	}
	return *doc.ActiveWalletID
}

func normalize(patterns []string) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = strings.ToLower(p)
	}
	return out
}

// toAtomic converts a decimal-USDC rule string into atomic units by
// multiplying by 10^decimals, matching §4.3's "both compared as integers".
func toAtomic(amount string) (int64, error) {
	atomic, err := amountfmt.ParseToAtomic(amount, chainreg.Decimals)
	if err != nil {
		return 0, apperror.ErrValidation("amount has more precision than USDC supports")
	}
	return atomic, nil
}

// formatAtomic renders atomic units as a decimal string for error messages.
func formatAtomic(atomic int64) string {
	d := decimal.New(atomic, -int32(chainreg.Decimals))
	return d.StringFixed(int32(chainreg.Decimals))
}
