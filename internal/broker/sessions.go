package broker

import (
	"sync"
	"time"

	"github.com/clawlet-dev/clawlet/internal/chainreg"
	"github.com/clawlet-dev/clawlet/internal/eip3009"
	"github.com/clawlet-dev/clawlet/internal/x402wire"
)

// session is a prepared-but-unsigned payment awaiting an externally
// supplied signature (spec §4.6.3). Never persisted: a restart loses
// in-flight sessions intentionally, and the pending ledger entry plus
// expiry-based cleanup converge the state.
type session struct {
	SessionID string
	URL       string
	Opts      FetchOptions
	Accepted  x402wire.PaymentRequirements
	Required  *x402wire.PaymentRequired
	Auth      *eip3009.Authorization
	Chain     chainreg.ChainConfig
	TxRecordID string
	ExpiresAt  time.Time
}

// sessionTable is the broker's sole mutator of in-flight payment sessions,
// guarded by its own mutex (spec §9: "a finer-grained mutex in the session
// table if contention matters").
type sessionTable struct {
	mu   sync.Mutex
	byID map[string]*session
}

func newSessionTable() *sessionTable {
	return &sessionTable{byID: map[string]*session{}}
}

func (t *sessionTable) put(s *session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[s.SessionID] = s
}

// takeIfValid removes and returns the session if present and not expired
// as of now. Session removal is atomic with the validity check, so a
// racing complete/sweep either wins outright or observes absence (spec
// P6/§5 ordering guarantee 3).
func (t *sessionTable) takeIfValid(id string, now time.Time) (*session, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.byID[id]
	if !ok {
		return nil, false, nil
	}
	if now.After(s.ExpiresAt) {
		delete(t.byID, id)
		return s, false, nil
	}
	delete(t.byID, id)
	return s, true, nil
}

// removeExpired deletes and returns every session whose expiry has
// passed, for the periodic sweeper.
func (t *sessionTable) removeExpired(now time.Time) []*session {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []*session
	for id, s := range t.byID {
		if now.After(s.ExpiresAt) {
			expired = append(expired, s)
			delete(t.byID, id)
		}
	}
	return expired
}
