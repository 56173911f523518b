package store

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clawlet-dev/clawlet/internal/apperror"
	"github.com/clawlet-dev/clawlet/internal/chainreg"
)

// fileName is the persisted document's file name under the data directory.
const fileName = "state.json"

// Store holds the in-memory document and serializes it to disk. A single
// mutex guards both the in-memory mutation and the atomic write, per spec §5:
// readers take the read lock, mutators take the write lock across the mutate
// and persist steps, and no I/O outside of the write itself happens while
// held.
type Store struct {
	mu   sync.RWMutex
	doc  *Document
	path string
	log  zerolog.Logger
}

// Load reads the document from <dataDir>/state.json, migrating a schema V1
// document if found, or creates a fresh empty document if no file exists.
// Either way the result is persisted before Load returns, so a second Load
// of the same directory is a no-op (spec P1/P2).
func Load(dataDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, apperror.ErrPersistence("create data directory", err)
	}

	path := filepath.Join(dataDir, fileName)
	s := &Store{path: path, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		s.doc = &Document{Wallets: []*WalletEntry{}, ActiveWalletID: nil, Network: "base"}
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, apperror.ErrPersistence("read state file", err)
	}

	doc, migrated, err := decode(raw)
	if err != nil {
		return nil, err
	}
	s.doc = doc
	if migrated {
		s.log.Info().Str("event", "migration").Msg("migrated legacy single-wallet document to multi-wallet schema")
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Option configures optional Store behavior at construction time.
type Option func(*Store)

// WithLogger attaches a logger the store uses to record schema migration
// (spec §10.2).
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.log = logger }
}

// decode parses raw state-file bytes, migrating a V1 document if the
// "wallets" key is absent (spec §6).
func decode(raw []byte) (*Document, bool, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, false, apperror.ErrPersistence("parse state file", err)
	}

	if _, hasWallets := probe["wallets"]; hasWallets {
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, false, apperror.ErrPersistence("parse state file", err)
		}
		return &doc, false, nil
	}

	var legacy legacyDocument
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, false, apperror.ErrPersistence("parse legacy state file", err)
	}

	label := legacy.Wallet.Label
	if label == "" {
		label = "Wallet 1"
	}

	entry := &WalletEntry{
		ID:           newID(8),
		Label:        label,
		CreatedAt:    nowISO(),
		Frozen:       false,
		Adapter:      legacy.AdapterConfig,
		Rules:        legacy.Rules,
		Transactions: legacy.Transactions,
	}
	if entry.Transactions == nil {
		entry.Transactions = []Transaction{}
	}

	activeID := entry.ID
	doc := &Document{
		Wallets:        []*WalletEntry{entry},
		ActiveWalletID: &activeID,
		Network:        "base",
	}
	return doc, true, nil
}

// persistLocked writes the document atomically (temp file + rename), so the
// file on disk is always either the previous valid document or the new one
// (spec I7). Callers must hold s.mu for writing.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return apperror.ErrInternal("marshal state document", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "state-*.json.tmp")
	if err != nil {
		return apperror.ErrPersistence("create temp state file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperror.ErrPersistence("write temp state file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperror.ErrPersistence("close temp state file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return apperror.ErrPersistence("rename temp state file", err)
	}
	return nil
}

// Update runs fn with exclusive access to the document, then persists the
// result. fn should only touch in-memory state — no outbound I/O — so the
// mutex is held for the shortest possible span (spec §5).
func (s *Store) Update(fn func(*Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.doc); err != nil {
		return err
	}
	return s.persistLocked()
}

// View runs fn with read access to the document. Safe to call concurrently
// with other View calls and serialized against Update.
func (s *Store) View(fn func(*Document)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.doc)
}

// Get returns a snapshot copy of the active document's top-level fields
// (the wallet list is the live slice header — callers must not mutate
// entries outside of Update).
func (s *Store) Get() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.doc
}

// FindWallet returns the wallet with the given id, or nil.
func FindWallet(doc *Document, id string) *WalletEntry {
	for _, w := range doc.Wallets {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// GetActive returns the active wallet, or nil if none is selected or the
// selection is stale.
func (s *Store) GetActive() *WalletEntry {
	var active *WalletEntry
	s.View(func(doc *Document) {
		if doc.ActiveWalletID == nil {
			return
		}
		active = FindWallet(doc, *doc.ActiveWalletID)
	})
	return active
}

// RequireActive returns the active wallet or a not-initialized error if
// none is selected.
func (s *Store) RequireActive() (*WalletEntry, error) {
	active := s.GetActive()
	if active == nil {
		return nil, apperror.ErrNotInitialized("no active wallet")
	}
	return active, nil
}

// GetNetworkCaip2 maps the persisted network selection to its CAIP-2 id.
func (s *Store) GetNetworkCaip2() (string, error) {
	doc := s.Get()
	return chainreg.CAIP2ForNetwork(chainreg.Network(doc.Network))
}

// Network returns the current short network selector.
func (s *Store) Network() string {
	return s.Get().Network
}

// SetNetwork validates and persists a new network selection.
func (s *Store) SetNetwork(network string) error {
	if !chainreg.IsValidNetwork(network) {
		return apperror.ErrValidation(fmt.Sprintf("unsupported network %q", network))
	}
	return s.Update(func(doc *Document) error {
		doc.Network = network
		return nil
	})
}

// newID returns n random bytes rendered as lowercase hex, used for wallet,
// transaction, and session identifiers (spec §3: "opaque 16-hex",
// "16-byte hex").
func newID(n int) string {
	id := uuid.New()
	b := id[:]
	if n <= len(b) {
		return hex.EncodeToString(b[:n])
	}
	// extend deterministically-but-uniquely with a second uuid if more
	// bytes are ever requested than a single uuid provides.
	extra := uuid.New()
	full := append(append([]byte{}, b...), extra[:]...)
	return hex.EncodeToString(full[:n])
}

// NewWalletID returns a fresh 16-hex wallet id (8 bytes).
func NewWalletID() string { return newID(8) }

// NewTxID returns a fresh 16-byte-hex transaction id (32 hex chars).
func NewTxID() string { return newID(16) }

// NewSessionID returns a fresh 16-byte session id (32 hex chars).
func NewSessionID() string { return newID(16) }

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NowISO is the shared ISO-8601 UTC timestamp formatter used across the
// ledger and transaction records.
func NowISO() string { return nowISO() }
