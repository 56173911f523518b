// Package ledger appends to and queries the active wallet's transaction
// list (spec §4.2). It has no state of its own: every operation runs
// through the store's Update/View so the document stays the single
// source of truth.
package ledger

import (
	"sort"

	"github.com/clawlet-dev/clawlet/internal/amountfmt"
	"github.com/clawlet-dev/clawlet/internal/apperror"
	"github.com/clawlet-dev/clawlet/internal/chainreg"
	"github.com/clawlet-dev/clawlet/internal/store"
)

// maxList caps list results regardless of the caller-supplied limit.
const maxList = 200

// NewEntry describes the fields of a transaction yet to be assigned an id
// or timestamp.
type NewEntry struct {
	Payee   string
	Service string
	Amount  string
	Asset   string
	Network string
	TxHash  *string
	Status  store.TxStatus
	Reason  string
}

// Patch is a partial update applied to an existing transaction by id. Nil
// fields are left untouched.
type Patch struct {
	Status *store.TxStatus
	TxHash *string
	Reason *string
}

// Ledger operates on the wallet that is active at call time.
type Ledger struct {
	store *store.Store
}

func New(s *store.Store) *Ledger {
	return &Ledger{store: s}
}

// Add appends a fresh transaction to the active wallet and persists it.
func (l *Ledger) Add(e NewEntry) (store.Transaction, error) {
	var record store.Transaction
	err := l.store.Update(func(doc *store.Document) error {
		active, err := requireActiveLocked(doc)
		if err != nil {
			return err
		}
		record = store.Transaction{
			ID:        store.NewTxID(),
			Timestamp: store.NowISO(),
			Payee:     e.Payee,
			Service:   e.Service,
			Amount:    e.Amount,
			Asset:     e.Asset,
			Network:   e.Network,
			TxHash:    e.TxHash,
			Status:    e.Status,
			Reason:    e.Reason,
		}
		active.Transactions = append(active.Transactions, record)
		return nil
	})
	if err != nil {
		return store.Transaction{}, err
	}
	return record, nil
}

// Update applies patch to the transaction with the given id on the active
// wallet, persists, and returns the updated record.
func (l *Ledger) Update(id string, patch Patch) (store.Transaction, error) {
	var updated store.Transaction
	err := l.store.Update(func(doc *store.Document) error {
		active, err := requireActiveLocked(doc)
		if err != nil {
			return err
		}
		for i := range active.Transactions {
			tx := &active.Transactions[i]
			if tx.ID != id {
				continue
			}
			if patch.Status != nil {
				tx.Status = *patch.Status
			}
			if patch.TxHash != nil {
				tx.TxHash = patch.TxHash
			}
			if patch.Reason != nil {
				tx.Reason = *patch.Reason
			}
			updated = *tx
			return nil
		}
		return apperror.ErrNotFound("transaction")
	})
	if err != nil {
		return store.Transaction{}, err
	}
	return updated, nil
}

// List returns the active wallet's transactions, newest first, capped at
// 200 regardless of the requested limit.
func (l *Ledger) List(limit int) ([]store.Transaction, error) {
	if limit <= 0 || limit > maxList {
		limit = maxList
	}

	var result []store.Transaction
	var outerErr error
	l.store.View(func(doc *store.Document) {
		active := store.FindWallet(doc, activeIDOrEmpty(doc))
		if active == nil {
			outerErr = apperror.ErrNotInitialized("no active wallet")
			return
		}
		// copy in reverse append order so entries sharing a timestamp
		// (second resolution) still come out newest first after the
		// stable sort.
		n := len(active.Transactions)
		result = make([]store.Transaction, n)
		for i, tx := range active.Transactions {
			result[n-1-i] = tx
		}
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].Timestamp > result[j].Timestamp
		})
		if len(result) > limit {
			result = result[:limit]
		}
	})
	return result, outerErr
}

// TodaySpent sums, in atomic USDC units, the settled transactions whose
// timestamp's UTC date prefix matches today. It is always recomputed from
// the ledger, never cached (spec §4.2/§4.3).
func (l *Ledger) TodaySpent() (int64, error) {
	today := store.NowISO()[:10] // YYYY-MM-DD

	var total int64
	var outerErr error
	l.store.View(func(doc *store.Document) {
		active := store.FindWallet(doc, activeIDOrEmpty(doc))
		if active == nil {
			outerErr = apperror.ErrNotInitialized("no active wallet")
			return
		}
		for _, tx := range active.Transactions {
			if tx.Status != store.TxSettled {
				continue
			}
			if len(tx.Timestamp) < 10 || tx.Timestamp[:10] != today {
				continue
			}
			atomic, err := amountfmt.ParseToAtomic(tx.Amount, chainreg.Decimals)
			if err != nil {
				continue
			}
			total += atomic
		}
	})
	if outerErr != nil {
		return 0, outerErr
	}
	return total, nil
}

func requireActiveLocked(doc *store.Document) (*store.WalletEntry, error) {
	active := store.FindWallet(doc, activeIDOrEmpty(doc))
	if active == nil {
		return nil, apperror.ErrNotInitialized("no active wallet")
	}
	return active, nil
}

func activeIDOrEmpty(doc *store.Document) string {
	if doc.ActiveWalletID == nil {
		return ""
	}
	return *doc.ActiveWalletID
}
