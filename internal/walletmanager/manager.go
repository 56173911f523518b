// Package walletmanager is the thin façade over the state store and the
// wallet-adapter factory (spec §4.5): create/list/switch/remove/rename,
// freeze/unfreeze, agent-identity edits, and balance lookups delegated to
// the active wallet's adapter. Every mutation persists through the store.
package walletmanager

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/clawlet-dev/clawlet/internal/apperror"
	"github.com/clawlet-dev/clawlet/internal/chainio"
	"github.com/clawlet-dev/clawlet/internal/store"
	"github.com/clawlet-dev/clawlet/internal/walletadapter"
)

// Manager wires the store to the adapter factory, keeping one hydrated
// adapter instance per wallet id so rehydration from persistence is a
// one-time cost (spec §4.4: "Adapters are cached per wallet-id").
type Manager struct {
	store *store.Store
	chain *chainio.Client
	log   zerolog.Logger

	mu       sync.Mutex
	adapters map[string]walletadapter.Adapter
}

// Option configures optional Manager behavior at construction time.
type Option func(*Manager)

// WithLogger attaches a logger the manager uses to record freeze/unfreeze
// events (spec §10.2).
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.log = logger }
}

func New(s *store.Store, chain *chainio.Client, opts ...Option) *Manager {
	m := &Manager{store: s, chain: chain, log: zerolog.Nop(), adapters: map[string]walletadapter.Adapter{}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateRequest describes a new wallet's adapter kind and credentials.
type CreateRequest struct {
	Kind        store.AdapterKind
	LocalKey    *store.LocalKeyConfig
	Privy       *store.PrivyConfig
	CoinbaseCDP *store.CoinbaseCDPConfig
	Crossmint   *store.CrossmintConfig
	Browser     *store.BrowserConfig
	Label       string
}

// Summary is the read-facing view of a wallet (spec §4.7 listWallets).
type Summary struct {
	ID            string
	Label         string
	Address       string
	Frozen        bool
	Adapter       store.AdapterKind
	CreatedAt     string
	AgentIdentity *store.AgentIdentity
}

// Create provisions a new adapter, persists a wallet entry with default
// rules, and makes it active.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (Summary, error) {
	cfg := store.AdapterConfig{
		Kind:        req.Kind,
		LocalKey:    req.LocalKey,
		Privy:       req.Privy,
		CoinbaseCDP: req.CoinbaseCDP,
		Crossmint:   req.Crossmint,
		Browser:     req.Browser,
	}

	adapter, err := walletadapter.FromConfig(cfg, m.chain)
	if err != nil {
		return Summary{}, err
	}
	address, err := adapter.Provision(ctx)
	if err != nil {
		return Summary{}, err
	}

	label := req.Label
	if label == "" {
		label = "Wallet"
	}

	id := store.NewWalletID()
	entry := &store.WalletEntry{
		ID:        id,
		Label:     label,
		CreatedAt: store.NowISO(),
		Adapter:   adapter.Serialize(),
		Rules: store.Rules{
			AllowedServices: []string{},
			BlockedServices: []string{},
		},
		Transactions: []store.Transaction{},
	}

	err = m.store.Update(func(doc *store.Document) error {
		doc.Wallets = append(doc.Wallets, entry)
		activeID := id
		doc.ActiveWalletID = &activeID
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	m.mu.Lock()
	m.adapters[id] = adapter
	m.mu.Unlock()

	return Summary{ID: id, Label: label, Address: address, Adapter: req.Kind, CreatedAt: entry.CreatedAt}, nil
}

// List returns every wallet's summary and the active wallet id.
func (m *Manager) List() ([]Summary, *string, error) {
	doc := m.store.Get()
	summaries := make([]Summary, 0, len(doc.Wallets))
	for _, w := range doc.Wallets {
		adapter, err := m.hydrate(w)
		if err != nil {
			return nil, nil, err
		}
		addr, _ := adapter.Address()
		summaries = append(summaries, Summary{
			ID: w.ID, Label: w.Label, Address: addr, Frozen: w.Frozen,
			Adapter: w.Adapter.Kind, CreatedAt: w.CreatedAt, AgentIdentity: w.AgentIdentity,
		})
	}
	return summaries, doc.ActiveWalletID, nil
}

// Switch makes walletId the active wallet, failing with *not-found* if it
// does not exist.
func (m *Manager) Switch(walletID string) (Summary, error) {
	var result Summary
	err := m.store.Update(func(doc *store.Document) error {
		w := store.FindWallet(doc, walletID)
		if w == nil {
			return apperror.ErrNotFound("wallet")
		}
		doc.ActiveWalletID = &walletID
		result = Summary{ID: w.ID, Label: w.Label, Frozen: w.Frozen}
		return nil
	})
	return result, err
}

// Remove deletes walletId. If it was active, the first remaining wallet
// (if any) becomes active (spec §3 lifecycle).
func (m *Manager) Remove(walletID string) error {
	err := m.store.Update(func(doc *store.Document) error {
		idx := -1
		for i, w := range doc.Wallets {
			if w.ID == walletID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return apperror.ErrNotFound("wallet")
		}

		wasActive := doc.ActiveWalletID != nil && *doc.ActiveWalletID == walletID
		doc.Wallets = append(doc.Wallets[:idx], doc.Wallets[idx+1:]...)

		if wasActive {
			if len(doc.Wallets) > 0 {
				id := doc.Wallets[0].ID
				doc.ActiveWalletID = &id
			} else {
				doc.ActiveWalletID = nil
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.adapters, walletID)
	m.mu.Unlock()
	return nil
}

// Rename relabels the active wallet.
func (m *Manager) Rename(label string) (string, error) {
	err := m.store.Update(func(doc *store.Document) error {
		active := store.FindWallet(doc, activeID(doc))
		if active == nil {
			return apperror.ErrNotInitialized("no active wallet")
		}
		active.Label = label
		return nil
	})
	return label, err
}

// Freeze/Unfreeze toggle the active wallet's frozen gate.
func (m *Manager) Freeze(frozen bool) (bool, error) {
	var walletID string
	err := m.store.Update(func(doc *store.Document) error {
		active := store.FindWallet(doc, activeID(doc))
		if active == nil {
			return apperror.ErrNotInitialized("no active wallet")
		}
		active.Frozen = frozen
		walletID = active.ID
		return nil
	})
	if err != nil {
		return frozen, err
	}
	m.log.Info().Str("event", "freeze").Str("walletId", walletID).Bool("frozen", frozen).Msg("wallet freeze state changed")
	return frozen, nil
}

// GetAgentIdentity returns the active wallet's agent identity, if any.
func (m *Manager) GetAgentIdentity() (*store.AgentIdentity, error) {
	active, err := m.store.RequireActive()
	if err != nil {
		return nil, err
	}
	return active.AgentIdentity, nil
}

// IdentityPatch partially updates an agent identity; Name is required on
// every call and replaces the stored name, while nil optional fields are
// left unchanged.
type IdentityPatch struct {
	Name          string  `json:"name"`
	Description   *string `json:"description"`
	AgentID       *string `json:"agentId"`
	AgentRegistry *string `json:"agentRegistry"`
	MetadataURI   *string `json:"metadataUri"`
}

// SetAgentIdentity creates or updates the active wallet's agent identity.
func (m *Manager) SetAgentIdentity(patch IdentityPatch) (*store.AgentIdentity, error) {
	if patch.Name == "" {
		return nil, apperror.ErrValidation("agent identity requires a name")
	}
	var result *store.AgentIdentity
	err := m.store.Update(func(doc *store.Document) error {
		active := store.FindWallet(doc, activeID(doc))
		if active == nil {
			return apperror.ErrNotInitialized("no active wallet")
		}
		id := active.AgentIdentity
		if id == nil {
			id = &store.AgentIdentity{}
		}
		id.Name = patch.Name
		if patch.Description != nil {
			id.Description = *patch.Description
		}
		if patch.AgentID != nil {
			id.AgentID = patch.AgentID
		}
		if patch.AgentRegistry != nil {
			id.AgentRegistry = patch.AgentRegistry
		}
		if patch.MetadataURI != nil {
			id.MetadataURI = patch.MetadataURI
		}
		active.AgentIdentity = id
		result = id
		return nil
	})
	return result, err
}

// Balance delegates to the active wallet's adapter on the given CAIP-2
// network.
func (m *Manager) Balance(ctx context.Context, network string) (string, error) {
	active, err := m.store.RequireActive()
	if err != nil {
		return "", err
	}
	adapter, err := m.hydrate(active)
	if err != nil {
		return "", err
	}
	return adapter.Balance(ctx, network)
}

// Adapter returns the hydrated adapter for the active wallet, for the
// broker's signing calls.
func (m *Manager) Adapter() (walletadapter.Adapter, error) {
	active, err := m.store.RequireActive()
	if err != nil {
		return nil, err
	}
	return m.hydrate(active)
}

func (m *Manager) hydrate(w *store.WalletEntry) (walletadapter.Adapter, error) {
	m.mu.Lock()
	if a, ok := m.adapters[w.ID]; ok {
		m.mu.Unlock()
		return a, nil
	}
	m.mu.Unlock()

	adapter, err := walletadapter.FromConfig(w.Adapter, m.chain)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.adapters[w.ID] = adapter
	m.mu.Unlock()
	return adapter, nil
}

func activeID(doc *store.Document) string {
	if doc.ActiveWalletID == nil {
		return ""
	}
	return *doc.ActiveWalletID
}
