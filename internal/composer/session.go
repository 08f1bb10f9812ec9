// Package composer orchestrates one instructor's test-composition session:
// the bank forest, candidate filtering, the selection and its overrides, the
// distribution matrix, shuffling, and draft autosave.
package composer

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/mind-engage/testcraft/internal/backend"
	"github.com/mind-engage/testcraft/internal/bank"
	"github.com/mind-engage/testcraft/internal/compose"
	"github.com/mind-engage/testcraft/internal/draft"
)

// Session is the in-memory composition state for one (user, course) pair.
// All exported methods serialize on the session mutex, so every mutation is
// atomic with respect to a single UI event; network calls (backend, draft
// store) happen outside the lock and never block filtering or selection.
type Session struct {
	UserID   string
	CourseID string

	mu        sync.Mutex
	forest    *bank.Forest
	all       []bank.Question          // flattened candidate pool
	questions map[string]bank.Question // by id
	filter    compose.Filter
	pager     compose.Pager
	sel       *compose.SelectionStore
	config    compose.TestConfig
	view      compose.DetailView
	rng       *rand.Rand

	syncer  *draft.Syncer
	backend backend.Service
}

// New builds a session; Open must be called before use.
func New(userID, courseID string, svc backend.Service, store draft.Store, clock draft.Clock) *Session {
	if clock == nil {
		clock = time.Now
	}
	return &Session{
		UserID:   userID,
		CourseID: courseID,
		pager:    compose.NewPager(10),
		sel:      compose.NewSelectionStore(),
		config:   compose.DefaultTestConfig(),
		view:     compose.NewDetailView(),
		rng:      rand.New(rand.NewSource(clock().UnixNano())),
		syncer:   draft.NewSyncer(store, userID, clock),
		backend:  svc,
	}
}

// SetAutosaveIntervals forwards the configured cadence to the syncer.
func (s *Session) SetAutosaveIntervals(debounce, heartbeat time.Duration) {
	s.syncer.SetIntervals(debounce, heartbeat)
}

// Seed re-seeds the shuffle source; tests use it for determinism.
func (s *Session) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewSource(seed))
}

// Open fetches the course's banks, indexes them, and restores the latest
// draft if one exists. A missing draft leaves a fresh session; a draft load
// failure is non-fatal and only surfaces through DraftStatus.
func (s *Session) Open(ctx context.Context) error {
	nodes, err := s.backend.ListBanks(ctx, s.CourseID)
	if err != nil {
		return fmt.Errorf("open course %s: %w", s.CourseID, err)
	}
	forest, err := bank.NewForest(nodes)
	if err != nil {
		return fmt.Errorf("open course %s: %w", s.CourseID, err)
	}
	all := forest.Flatten()
	byID := make(map[string]bank.Question, len(all))
	for _, q := range all {
		byID[q.ID] = q
	}

	s.mu.Lock()
	s.forest = forest
	s.all = all
	s.questions = byID
	s.mu.Unlock()

	d, err := s.syncer.Load(ctx, s.CourseID)
	switch err {
	case nil:
		s.restore(d)
	case draft.ErrNotFound, draft.ErrStaleLoad:
		// fresh session / superseded load: nothing to restore
	default:
		// non-fatal: editing continues, status carries the error
	}
	return nil
}

// RunAutosave drives the syncer's debounce/heartbeat loop until ctx is done.
func (s *Session) RunAutosave(ctx context.Context) { s.syncer.Run(ctx) }

func (s *Session) restore(d draft.Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = d.Config
	s.filter = d.FilterState
	if d.Pager.PageSize > 0 {
		s.pager = d.Pager
	}
	s.sel.Restore(d.Selection, d.DisplayOrder, d.Overrides)
}

// snapshotLocked builds a Draft from the current state. Callers hold s.mu.
func (s *Session) snapshotLocked() draft.Draft {
	d := draft.Draft{
		UserID:      s.UserID,
		CourseID:    s.CourseID,
		Config:      s.config,
		Selection:   s.sel.IDs(),
		Overrides:   s.sel.Overrides(),
		FilterState: s.filter,
		Pager:       s.pager,
	}
	if disp := s.sel.DisplayOrder(); !sameOrder(disp, d.Selection) {
		d.DisplayOrder = disp
	}
	return d
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// notifyLocked hands the current snapshot to the syncer. Callers hold s.mu;
// NotifyChange only records the snapshot, the actual save happens on the
// autosave loop's own goroutine.
func (s *Session) notifyLocked() {
	s.syncer.NotifyChange(s.snapshotLocked())
}

/* ---------------- candidate list ---------------- */

// CandidatePage is one page of the available-questions view.
type CandidatePage struct {
	Questions  []bank.Question `json:"questions"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalItems int             `json:"total_items"`
}

// Candidates returns the current page of filtered, not-yet-selected
// questions.
func (s *Session) Candidates() CandidatePage {
	s.mu.Lock()
	defer s.mu.Unlock()
	avail := s.availableLocked()
	return CandidatePage{
		Questions:  compose.Page(avail, s.pager.AvailablePage, s.pager.PageSize),
		Page:       s.pager.AvailablePage,
		PageSize:   s.pager.PageSize,
		TotalItems: len(avail),
	}
}

func (s *Session) availableLocked() []bank.Question {
	filtered := compose.ApplyFilter(s.all, s.filter, s.forest)
	out := filtered[:0:0]
	for _, q := range filtered {
		if !s.sel.Selected(q.ID) {
			out = append(out, q)
		}
	}
	return out
}

// SetFilter replaces the filter state and resets the available cursor.
func (s *Session) SetFilter(f compose.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
	s.pager.AvailablePage = 1
	s.notifyLocked()
}

// Filter returns the current filter state.
func (s *Session) Filter() compose.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// SetPageSize changes the page size, resetting both cursors.
func (s *Session) SetPageSize(size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pager.SetPageSize(size)
	s.notifyLocked()
}

// SetAvailablePage moves the available-list cursor.
func (s *Session) SetAvailablePage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page >= 1 {
		s.pager.AvailablePage = page
	}
}

// SetSelectedPage moves the selected-list cursor.
func (s *Session) SetSelectedPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page >= 1 {
		s.pager.SelectedPage = page
	}
}

/* ---------------- selection ---------------- */

// Toggle flips a question's membership and reports the new state.
func (s *Session) Toggle(questionID string) (selected bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[questionID]; !ok {
		return false, fmt.Errorf("unknown question %q", questionID)
	}
	selected = s.sel.Toggle(questionID)
	s.notifyLocked()
	return selected, nil
}

// AddAllFiltered selects every question the current filter shows ("Add all").
func (s *Session) AddAllFiltered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	avail := s.availableLocked()
	ids := make([]string, len(avail))
	for i, q := range avail {
		ids[i] = q.ID
	}
	s.sel.BulkAdd(ids)
	s.notifyLocked()
	return len(ids)
}

// RemoveAll clears the whole selection ("Remove all"). Overrides stay.
func (s *Session) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.BulkRemove(s.sel.IDs())
	s.notifyLocked()
}

// SelectedPage is one page of the selected-questions view, in display order
// with overrides resolved.
type SelectedPage struct {
	Questions  []compose.EffectiveQuestion `json:"questions"`
	Page       int                         `json:"page"`
	PageSize   int                         `json:"page_size"`
	TotalItems int                         `json:"total_items"`
}

// Selected returns the current page of the selection in display order.
func (s *Session) Selected() SelectedPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	views := s.effectiveLocked()
	page := s.pager.SelectedPage
	size := s.pager.PageSize
	last := (len(views) + size - 1) / size
	if last < 1 {
		last = 1
	}
	if page > last {
		page = last
	}
	start := (page - 1) * size
	end := start + size
	if start > len(views) {
		start = len(views)
	}
	if end > len(views) {
		end = len(views)
	}
	return SelectedPage{
		Questions:  views[start:end],
		Page:       page,
		PageSize:   size,
		TotalItems: len(views),
	}
}

func (s *Session) effectiveLocked() []compose.EffectiveQuestion {
	order := s.sel.DisplayOrder()
	out := make([]compose.EffectiveQuestion, 0, len(order))
	for _, id := range order {
		q, ok := s.questions[id]
		if !ok {
			continue
		}
		ov, hasOv := s.sel.Override(id)
		out = append(out, compose.Effective(q, ov, hasOv))
	}
	return out
}

/* ---------------- overrides and detail view ---------------- */

// SetOverride merges a partial override into a question's local edits.
func (s *Session) SetOverride(questionID string, partial compose.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[questionID]; !ok {
		return fmt.Errorf("unknown question %q", questionID)
	}
	s.sel.SetOverride(questionID, partial)
	s.notifyLocked()
	return nil
}

// PurgeOverride discards a question's local edits.
func (s *Session) PurgeOverride(questionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.PurgeOverride(questionID)
	s.notifyLocked()
}

// OpenDetail, EditDetail, CloseDetail drive the detail-view state machine.
func (s *Session) OpenDetail(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[questionID]; !ok {
		return fmt.Errorf("unknown question %q", questionID)
	}
	v, err := s.view.Open(questionID)
	if err != nil {
		return err
	}
	s.view = v
	return nil
}

func (s *Session) EditDetail() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.view.Edit()
	if err != nil {
		return err
	}
	s.view = v
	return nil
}

func (s *Session) FinishDetailEdit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.view.Done()
	if err != nil {
		return err
	}
	s.view = v
	return nil
}

func (s *Session) CloseDetail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = s.view.Close()
}

// DetailView returns the current detail-view state.
func (s *Session) DetailView() compose.DetailView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

/* ---------------- config, distribution, shuffle ---------------- */

// SetConfig replaces the test configuration.
func (s *Session) SetConfig(cfg compose.TestConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.AnswerCase == "" {
		cfg.AnswerCase = compose.AnswerCaseUpper
	}
	s.config = cfg
	s.notifyLocked()
}

// Config returns the current test configuration.
func (s *Session) Config() compose.TestConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Distribution computes the taxonomy × difficulty matrix for the selection.
func (s *Session) Distribution() compose.Distribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return compose.ComputeDistribution(s.sel.IDs(), s.questions, s.sel.Overrides())
}

// ShuffleQuestions installs a fresh random display order.
func (s *Session) ShuffleQuestions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := compose.ShuffleQuestionOrder(s.sel.IDs(), s.rng)
	s.sel.SetDisplayOrder(order)
	s.notifyLocked()
	return order
}

// ShuffleAnswers permutes one question's answer order, keeping the hidden
// mask aligned.
func (s *Session) ShuffleAnswers(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[questionID]
	if !ok {
		return fmt.Errorf("unknown question %q", questionID)
	}
	ov, _ := s.sel.Override(questionID)
	shuffled := compose.ShuffleAnswerOrder(len(q.Answers), ov, s.rng)
	s.sel.SetOverride(questionID, compose.Override{
		AnswerOrder:      shuffled.AnswerOrder,
		HiddenAnswerMask: shuffled.HiddenAnswerMask,
	})
	s.notifyLocked()
	return nil
}

/* ---------------- draft and commit ---------------- */

// DraftStatus exposes the sync machine's state for the UI.
func (s *Session) DraftStatus() draft.Status { return s.syncer.Status() }

// SaveDraftNow flushes the pending snapshot on demand.
func (s *Session) SaveDraftNow(ctx context.Context) error {
	s.mu.Lock()
	s.notifyLocked()
	s.mu.Unlock()
	return s.syncer.Flush(ctx)
}

// DiscardDraft deletes the persisted draft and resets the composition. The
// store failure is surfaced: the user must know the draft may still exist.
func (s *Session) DiscardDraft(ctx context.Context) error {
	if err := s.syncer.Delete(ctx, false); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = compose.DefaultTestConfig()
	s.filter = compose.Filter{}
	s.pager = compose.NewPager(s.pager.PageSize)
	s.sel = compose.NewSelectionStore()
	s.view = compose.NewDetailView()
	return nil
}

// Commit validates the composition, creates the test on the platform, and
// cleans up the draft. A draft-delete failure after a successful create is
// swallowed: the test exists, the stale draft record is harmless.
func (s *Session) Commit(ctx context.Context) (string, error) {
	s.mu.Lock()
	cfg := s.config
	views := s.effectiveLocked()
	s.mu.Unlock()

	if err := cfg.ValidateForCommit(len(views)); err != nil {
		return "", err
	}
	testID, err := s.backend.CreateTest(ctx, s.CourseID, backend.CreateTestRequest{
		Title:     cfg.Title,
		Config:    cfg,
		Questions: views,
	})
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	_ = s.syncer.Delete(ctx, true)
	return testID, nil
}
