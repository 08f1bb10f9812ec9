package draft

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Clock is injected so tests drive time instead of sleeping.
type Clock func() time.Time

// ErrStaleLoad marks a load whose result arrived after the session had moved
// to a different course. The caller must drop the result, not apply it.
var ErrStaleLoad = errors.New("draft load superseded by course switch")

// SyncError wraps a store failure. Sync errors are never fatal to editing:
// the UI shows a dismissible notice and the syncer retries on the next tick.
type SyncError struct {
	Op  string // load|save|delete
	Err error
}

func (e *SyncError) Error() string { return fmt.Sprintf("draft %s: %v", e.Op, e.Err) }
func (e *SyncError) Unwrap() error { return e.Err }

// State of the per-course sync machine:
// Idle -> Loading -> {Loaded, NotFound}; Loaded -> Saving -> Loaded;
// Loaded -> Deleting -> Idle.
type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StateLoaded   State = "loaded"
	StateNotFound State = "not_found"
	StateSaving   State = "saving"
	StateDeleting State = "deleting"
)

// Status is what the UI renders next to the editor.
type Status struct {
	State       State     `json:"state"`
	LastSavedAt time.Time `json:"last_saved_at,omitempty"`
	Pending     bool      `json:"pending"`
	LastErr     string    `json:"last_err,omitempty"`
}

const (
	DefaultDebounce  = 5 * time.Second
	DefaultHeartbeat = 2 * time.Minute
)

// Syncer reconciles one composer session against the draft store. Saves are
// serialized: while one is in flight, newer snapshots coalesce into a single
// pending slot, so the store only ever sees the most recent state and never
// two concurrent writes for the same course.
type Syncer struct {
	store     Store
	now       Clock
	debounce  time.Duration
	heartbeat time.Duration

	mu       sync.Mutex
	state    State
	userID   string
	courseID string
	gen      int // load generation; bumped on every course switch

	pending     *Draft // latest unsaved snapshot
	dirtyAt     time.Time
	last        *Draft // latest snapshot ever seen, for the heartbeat
	saving      bool
	lastSavedAt time.Time
	lastErr     string
}

func NewSyncer(store Store, userID string, now Clock) *Syncer {
	if now == nil {
		now = time.Now
	}
	return &Syncer{
		store:     store,
		now:       now,
		debounce:  DefaultDebounce,
		heartbeat: DefaultHeartbeat,
		state:     StateIdle,
		userID:    userID,
	}
}

// SetIntervals overrides the debounce/heartbeat periods (zero keeps the
// current value). Run reads the heartbeat once at startup, so call this
// before Run for the new heartbeat to take effect.
func (s *Syncer) SetIntervals(debounce, heartbeat time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if debounce > 0 {
		s.debounce = debounce
	}
	if heartbeat > 0 {
		s.heartbeat = heartbeat
	}
}

// Load fetches the draft for courseID ("latest" resolves the user's most
// recently updated draft across courses). A NotFound store answer is a normal
// fresh-session state. If the session switched courses while the fetch was in
// flight, the result is discarded and ErrStaleLoad returned.
func (s *Syncer) Load(ctx context.Context, courseID string) (Draft, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state = StateLoading
	s.courseID = courseID
	s.pending = nil
	s.last = nil
	s.lastErr = ""
	s.mu.Unlock()

	var (
		d   Draft
		err error
	)
	if courseID == "latest" {
		d, err = s.store.LoadLatest(ctx, s.userID)
	} else {
		d, err = s.store.Load(ctx, s.userID, courseID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return Draft{}, ErrStaleLoad
	}
	switch {
	case errors.Is(err, ErrNotFound):
		s.state = StateNotFound
		return Draft{}, ErrNotFound
	case err != nil:
		s.state = StateNotFound
		s.lastErr = err.Error()
		return Draft{}, &SyncError{Op: "load", Err: err}
	}
	if courseID != "latest" {
		d.CourseID = courseID
	}
	s.courseID = d.CourseID
	s.state = StateLoaded
	s.last = &d
	return d, nil
}

// NotifyChange records the newest composite snapshot. The actual write
// happens after the debounce window, on the heartbeat, or on Flush; a
// snapshot queued behind an in-flight save replaces any previously queued
// one.
func (s *Syncer) NotifyChange(d Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.UserID = s.userID
	if d.CourseID == "" {
		d.CourseID = s.courseID
	}
	s.pending = &d
	s.last = &d
	s.dirtyAt = s.now()
	if s.state == StateIdle || s.state == StateNotFound {
		s.state = StateLoaded
	}
}

// Flush writes the pending snapshot now, draining anything queued while the
// write was in flight. Concurrent Flushes collapse: the second caller finds
// saving in progress and returns, leaving its snapshot in the pending slot.
func (s *Syncer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return nil
	}
	s.saving = true
	s.mu.Unlock()

	var firstErr error
	for {
		s.mu.Lock()
		if s.pending == nil {
			s.saving = false
			if s.state == StateSaving {
				s.state = StateLoaded
			}
			s.mu.Unlock()
			return firstErr
		}
		d := *s.pending
		s.pending = nil
		s.state = StateSaving
		s.mu.Unlock()

		d.UpdatedAt = s.now().UTC()
		err := s.store.Save(ctx, d)

		s.mu.Lock()
		if err != nil {
			// retry on the next tick with the freshest snapshot
			if s.pending == nil {
				s.pending = &d
			}
			s.lastErr = err.Error()
			if firstErr == nil {
				firstErr = &SyncError{Op: "save", Err: err}
			}
			s.saving = false
			s.state = StateLoaded
			s.mu.Unlock()
			return firstErr
		}
		s.lastSavedAt = d.UpdatedAt
		s.lastErr = ""
		s.mu.Unlock()
	}
}

// Delete removes the persisted draft and resets the machine to Idle.
// afterCommit marks the cleanup path: the test is already created, so a
// failed delete only logs and the action still succeeds. An explicit discard
// must surface the failure so the user knows the draft may still exist.
func (s *Syncer) Delete(ctx context.Context, afterCommit bool) error {
	s.mu.Lock()
	courseID := s.courseID
	s.state = StateDeleting
	s.mu.Unlock()

	err := s.store.Delete(ctx, s.userID, courseID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.pending = nil
	s.last = nil
	if err != nil {
		s.lastErr = err.Error()
		if afterCommit {
			return nil
		}
		return &SyncError{Op: "delete", Err: err}
	}
	s.lastErr = ""
	return nil
}

// Status returns a snapshot of the sync state for the UI.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:       s.state,
		LastSavedAt: s.lastSavedAt,
		Pending:     s.pending != nil,
		LastErr:     s.lastErr,
	}
}

// Run drives the debounce and heartbeat timers until ctx is done. Save
// failures are swallowed here; they stay visible through Status and retry on
// the next tick.
func (s *Syncer) Run(ctx context.Context) {
	s.mu.Lock()
	hb := s.heartbeat
	s.mu.Unlock()

	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	heartbeat := time.NewTicker(hb)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			// best-effort final flush so a clean shutdown loses nothing
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = s.Flush(flushCtx)
			cancel()
			return
		case <-tick.C:
			if s.debounceDue() {
				_ = s.Flush(ctx)
			}
		case <-heartbeat.C:
			s.queueHeartbeat()
			_ = s.Flush(ctx)
		}
	}
}

func (s *Syncer) debounceDue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil && s.now().Sub(s.dirtyAt) >= s.debounce
}

// queueHeartbeat re-queues the last known snapshot so long-lived sessions
// keep a fresh updated_at even without edits. Empty compositions are skipped.
func (s *Syncer) queueHeartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil || s.last == nil || s.last.Empty() {
		return
	}
	s.pending = s.last
	s.dirtyAt = s.now()
}
