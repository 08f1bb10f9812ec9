package composer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mind-engage/testcraft/internal/backend"
	"github.com/mind-engage/testcraft/internal/draft"
)

// Manager holds the live sessions, one per (user, course), and owns their
// autosave goroutines.
type Manager struct {
	backend backend.Service
	store   draft.Store
	clock   draft.Clock

	// Autosave cadence applied to new sessions; zero keeps the defaults.
	AutosaveDebounce  time.Duration
	AutosaveHeartbeat time.Duration

	mu       sync.Mutex
	sessions map[string]*managed
}

// managed is either a live session or an open in progress. The entry is
// inserted under the manager lock before the slow open path (backend fetch,
// draft load) runs, so a second Open for the same key waits on ready and
// shares the result instead of building a rival session.
type managed struct {
	userID  string
	session *Session
	cancel  context.CancelFunc
	ready   chan struct{} // closed once the open attempt finished
	err     error         // set before ready closes when the open failed
}

func NewManager(svc backend.Service, store draft.Store, clock draft.Clock) *Manager {
	return &Manager{
		backend:  svc,
		store:    store,
		clock:    clock,
		sessions: map[string]*managed{},
	}
}

func skey(userID, courseID string) string { return userID + "|" + courseID }

// Open returns the existing session for (user, course) or creates one,
// loading banks and the latest draft. Concurrent Opens for the same key
// collapse onto one session, so at most one syncer ever runs per course key.
// Opening a second course for the same user retires the first session.
func (m *Manager) Open(ctx context.Context, userID, courseID string) (*Session, error) {
	if userID == "" || courseID == "" {
		return nil, fmt.Errorf("session: user and course required")
	}
	key := skey(userID, courseID)

	m.mu.Lock()
	if mg, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		select {
		case <-mg.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if mg.err != nil {
			return nil, mg.err
		}
		return mg.session, nil
	}
	// one open course per user: retire any other course's session
	for k, other := range m.sessions {
		if other.userID == userID {
			if other.cancel != nil {
				other.cancel()
			}
			delete(m.sessions, k)
		}
	}
	mg := &managed{userID: userID, ready: make(chan struct{})}
	m.sessions[key] = mg
	m.mu.Unlock()

	s := New(userID, courseID, m.backend, m.store, m.clock)
	s.SetAutosaveIntervals(m.AutosaveDebounce, m.AutosaveHeartbeat)
	if err := s.Open(ctx); err != nil {
		m.mu.Lock()
		if m.sessions[key] == mg {
			delete(m.sessions, key)
		}
		m.mu.Unlock()
		mg.err = err
		close(mg.ready)
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	mg.session = s
	mg.cancel = cancel
	retired := m.sessions[key] != mg // Close or Shutdown ran mid-open
	m.mu.Unlock()
	close(mg.ready)
	if retired {
		cancel()
		return s, nil
	}
	go s.RunAutosave(runCtx)
	return s, nil
}

// Get returns the live session, if any. An open still in flight does not
// count as live.
func (m *Manager) Get(userID, courseID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mg, ok := m.sessions[skey(userID, courseID)]
	if !ok || mg.session == nil {
		return nil, false
	}
	return mg.session, true
}

// Close stops a session's autosave loop and forgets it.
func (m *Manager) Close(userID, courseID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mg, ok := m.sessions[skey(userID, courseID)]; ok {
		if mg.cancel != nil {
			mg.cancel()
		}
		delete(m.sessions, skey(userID, courseID))
	}
}

// Shutdown stops every session's autosave loop.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, mg := range m.sessions {
		if mg.cancel != nil {
			mg.cancel()
		}
		delete(m.sessions, k)
	}
}
