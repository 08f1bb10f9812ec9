package composer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mind-engage/testcraft/internal/backend"
	"github.com/mind-engage/testcraft/internal/bank"
	"github.com/mind-engage/testcraft/internal/compose"
	"github.com/mind-engage/testcraft/internal/composer"
	"github.com/mind-engage/testcraft/internal/draft"
)

/* ---------------- fakes ---------------- */

type fakeBackend struct {
	banks      map[string][]bank.Node
	createdReq *backend.CreateTestRequest
	createErr  error
}

func (f *fakeBackend) ListCourses(context.Context) ([]backend.Course, error) {
	return []backend.Course{{ID: "c1", Name: "Biology"}}, nil
}

func (f *fakeBackend) ListBanks(_ context.Context, courseID string) ([]bank.Node, error) {
	nodes, ok := f.banks[courseID]
	if !ok {
		return nil, errors.New("course not found")
	}
	return nodes, nil
}

func (f *fakeBackend) CreateTest(_ context.Context, _ string, req backend.CreateTestRequest) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.createdReq = &req
	return "test-1", nil
}

type memStore struct {
	mu     sync.Mutex
	drafts map[string]draft.Draft
}

func newMemStore() *memStore { return &memStore{drafts: map[string]draft.Draft{}} }

func (s *memStore) key(u, c string) string { return u + "|" + c }

func (s *memStore) Load(_ context.Context, u, c string) (draft.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[s.key(u, c)]
	if !ok {
		return draft.Draft{}, draft.ErrNotFound
	}
	return d, nil
}

func (s *memStore) LoadLatest(_ context.Context, u string) (draft.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best draft.Draft
	found := false
	for _, d := range s.drafts {
		if d.UserID == u && (!found || d.UpdatedAt.After(best.UpdatedAt)) {
			best, found = d, true
		}
	}
	if !found {
		return draft.Draft{}, draft.ErrNotFound
	}
	return best, nil
}

func (s *memStore) Save(_ context.Context, d draft.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[s.key(d.UserID, d.CourseID)] = d
	return nil
}

func (s *memStore) Delete(_ context.Context, u, c string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, s.key(u, c))
	return nil
}

func courseBanks() map[string][]bank.Node {
	qs := func(ids ...string) []bank.Question {
		out := make([]bank.Question, len(ids))
		for i, id := range ids {
			out[i] = bank.Question{
				ID:   id,
				Text: "stem " + id,
				Answers: []bank.Answer{
					{Text: "right", Correct: true},
					{Text: "wrong a"},
					{Text: "wrong b"},
				},
				TaxonomyLevels: []string{"Apply"},
				Difficulty:     "medium",
			}
		}
		return out
	}
	return map[string][]bank.Node{
		"c1": {
			{ID: "A", Name: "Unit"},
			{ID: "B", Name: "Ch 1", ParentID: "A", Questions: qs("q1", "q2", "q3")},
			{ID: "C", Name: "Ch 2", ParentID: "A", Questions: qs("q4")},
		},
	}
}

func openSession(t *testing.T, be *fakeBackend, st draft.Store) *composer.Session {
	t.Helper()
	s := composer.New("teach", "c1", be, st, nil)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Seed(1)
	return s
}

/* ---------------- tests ---------------- */

func TestCandidatesExcludeSelected(t *testing.T) {
	s := openSession(t, &fakeBackend{banks: courseBanks()}, newMemStore())

	if got := s.Candidates(); got.TotalItems != 4 {
		t.Fatalf("candidates = %d", got.TotalItems)
	}
	if _, err := s.Toggle("q2"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	got := s.Candidates()
	if got.TotalItems != 3 {
		t.Fatalf("selected question still listed: %+v", got)
	}
	for _, q := range got.Questions {
		if q.ID == "q2" {
			t.Fatalf("q2 must be excluded from available view")
		}
	}
	sel := s.Selected()
	if sel.TotalItems != 1 || sel.Questions[0].ID != "q2" {
		t.Fatalf("selected view = %+v", sel)
	}
}

func TestFilterScopeAndAddAll(t *testing.T) {
	s := openSession(t, &fakeBackend{banks: courseBanks()}, newMemStore())

	s.SetFilter(compose.Filter{BankScopeID: "B"})
	if got := s.Candidates(); got.TotalItems != 3 {
		t.Fatalf("scope B candidates = %d", got.TotalItems)
	}

	if n := s.AddAllFiltered(); n != 3 {
		t.Fatalf("add all added %d", n)
	}
	if got := s.Candidates(); got.TotalItems != 0 {
		t.Fatalf("available after add-all = %d", got.TotalItems)
	}

	s.SetFilter(compose.Filter{})
	if got := s.Candidates(); got.TotalItems != 1 || got.Questions[0].ID != "q4" {
		t.Fatalf("only q4 should remain available: %+v", got)
	}

	s.RemoveAll()
	if got := s.Selected(); got.TotalItems != 0 {
		t.Fatalf("remove-all left %d selected", got.TotalItems)
	}
}

func TestShuffleQuestionsKeepsSelectionOrderSeparate(t *testing.T) {
	s := openSession(t, &fakeBackend{banks: courseBanks()}, newMemStore())
	s.AddAllFiltered()

	order := s.ShuffleQuestions()
	if len(order) != 4 {
		t.Fatalf("shuffled order = %v", order)
	}
	// filtering must not disturb the shuffled order
	s.SetFilter(compose.Filter{SearchText: "stem q1"})
	sel := s.Selected()
	for i, q := range sel.Questions {
		if q.ID != order[i] {
			t.Fatalf("display order perturbed by filter: %v vs %v", q.ID, order[i])
		}
	}
}

func TestShuffleAnswersKeepsHiddenAligned(t *testing.T) {
	s := openSession(t, &fakeBackend{banks: courseBanks()}, newMemStore())
	s.Toggle("q1")

	// hide the answer currently at position 1 ("wrong a")
	if err := s.SetOverride("q1", compose.Override{HiddenAnswerMask: []bool{false, true, false}}); err != nil {
		t.Fatalf("override: %v", err)
	}
	if err := s.ShuffleAnswers("q1"); err != nil {
		t.Fatalf("shuffle answers: %v", err)
	}

	sel := s.Selected()
	var hidden []string
	for _, a := range sel.Questions[0].Answers {
		if a.Hidden {
			hidden = append(hidden, a.Text)
		}
	}
	if len(hidden) != 1 || hidden[0] != "wrong a" {
		t.Fatalf("hidden answer drifted after shuffle: %v", hidden)
	}
}

func TestDraftRoundTripAcrossSessions(t *testing.T) {
	be := &fakeBackend{banks: courseBanks()}
	st := newMemStore()

	s := openSession(t, be, st)
	s.Toggle("q3")
	s.Toggle("q1")
	text := "rewritten"
	s.SetOverride("q3", compose.Override{EditedText: &text})
	cfg := s.Config()
	cfg.Title = "Unit test"
	s.SetConfig(cfg)
	if err := s.SaveDraftNow(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}

	// a brand-new session over the same store restores everything
	s2 := openSession(t, be, st)
	if got := s2.Config().Title; got != "Unit test" {
		t.Fatalf("config not restored: %q", got)
	}
	sel := s2.Selected()
	if sel.TotalItems != 2 || sel.Questions[0].ID != "q3" {
		t.Fatalf("selection not restored in order: %+v", sel)
	}
	if sel.Questions[0].Text != "rewritten" {
		t.Fatalf("override not restored: %+v", sel.Questions[0])
	}
}

func TestCommitValidatesCreatesAndCleansUp(t *testing.T) {
	be := &fakeBackend{banks: courseBanks()}
	st := newMemStore()
	s := openSession(t, be, st)

	if _, err := s.Commit(context.Background()); err == nil {
		t.Fatalf("empty composition must not commit")
	}

	s.Toggle("q1")
	s.Toggle("q2")
	cfg := s.Config()
	cfg.Title = "Final"
	s.SetConfig(cfg)
	if err := s.SaveDraftNow(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}

	id, err := s.Commit(context.Background())
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if id != "test-1" {
		t.Fatalf("test id = %q", id)
	}
	if be.createdReq == nil || len(be.createdReq.Questions) != 2 || be.createdReq.Title != "Final" {
		t.Fatalf("create request = %+v", be.createdReq)
	}
	// draft cleaned up after commit
	if _, err := st.Load(context.Background(), "teach", "c1"); !errors.Is(err, draft.ErrNotFound) {
		t.Fatalf("draft should be deleted after commit, got %v", err)
	}
}

func TestDistributionThroughSession(t *testing.T) {
	s := openSession(t, &fakeBackend{banks: courseBanks()}, newMemStore())
	s.Toggle("q1")
	s.Toggle("q2")
	lvl, hard := "Analyze", "hard"
	s.SetOverride("q2", compose.Override{TaxonomyLevel: &lvl, Difficulty: &hard})

	m := s.Distribution()
	if m["Apply"].Medium != 1 || m["Analyze"].Hard != 1 || m.GrandTotal() != 2 {
		t.Fatalf("distribution = %+v", m)
	}
}

// gatedBackend holds every ListBanks call until the gate opens, so tests can
// park several Opens inside the slow path at once.
type gatedBackend struct {
	fakeBackend
	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func (g *gatedBackend) ListBanks(ctx context.Context, courseID string) ([]bank.Node, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	<-g.gate
	return g.fakeBackend.ListBanks(ctx, courseID)
}

func TestManagerCoalescesConcurrentOpens(t *testing.T) {
	be := &gatedBackend{
		fakeBackend: fakeBackend{banks: courseBanks()},
		gate:        make(chan struct{}),
	}
	m := composer.NewManager(be, newMemStore(), nil)

	results := make(chan *composer.Session, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.Open(context.Background(), "teach", "c1")
			if err != nil {
				t.Errorf("open: %v", err)
				return
			}
			results <- s
		}()
	}
	// give both goroutines time to enter Open before the backend answers
	time.Sleep(20 * time.Millisecond)
	close(be.gate)
	wg.Wait()
	close(results)

	var sessions []*composer.Session
	for s := range results {
		sessions = append(sessions, s)
	}
	if len(sessions) != 2 || sessions[0] != sessions[1] {
		t.Fatalf("concurrent opens must share one session, got %v", sessions)
	}
	be.mu.Lock()
	calls := be.calls
	be.mu.Unlock()
	if calls != 1 {
		t.Fatalf("backend hit %d times for one course, want 1", calls)
	}
	m.Shutdown()
}

func TestManagerRetiresPreviousCourseSession(t *testing.T) {
	be := &fakeBackend{banks: map[string][]bank.Node{
		"c1": courseBanks()["c1"],
		"c2": {{ID: "Z", Questions: []bank.Question{{ID: "z1", Text: "zq"}}}},
	}}
	m := composer.NewManager(be, newMemStore(), nil)

	s1, err := m.Open(context.Background(), "teach", "c1")
	if err != nil {
		t.Fatalf("open c1: %v", err)
	}
	again, err := m.Open(context.Background(), "teach", "c1")
	if err != nil || again != s1 {
		t.Fatalf("reopen must return the same session")
	}

	if _, err := m.Open(context.Background(), "teach", "c2"); err != nil {
		t.Fatalf("open c2: %v", err)
	}
	if _, ok := m.Get("teach", "c1"); ok {
		t.Fatalf("c1 session should be retired after switching to c2")
	}
	m.Shutdown()
}
