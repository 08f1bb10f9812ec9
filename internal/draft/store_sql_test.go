package draft_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/testcraft/internal/compose"
	"github.com/mind-engage/testcraft/internal/db"
	"github.com/mind-engage/testcraft/internal/draft"
)

func openTestStore(t *testing.T) *draft.SQLStore {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return draft.NewSQLStore(dbh)
}

func TestSQLStoreSaveLoadRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	text := "edited"
	cfg := compose.DefaultTestConfig()
	cfg.Title = "Quiz 1"
	cfg.ShuffleAnswers = true
	d := draft.Draft{
		UserID:       "t-1",
		CourseID:     "bio-101",
		Config:       cfg,
		Selection:    []string{"q1", "q2", "q3"},
		DisplayOrder: []string{"q3", "q1", "q2"},
		Overrides: map[string]compose.Override{
			"q2": {EditedText: &text, HiddenAnswerMask: []bool{false, true}},
		},
		FilterState: compose.Filter{TaxonomyLevels: []string{"Analyze"}},
		Pager:       compose.NewPager(20),
	}
	if err := st.Save(ctx, d); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := st.Load(ctx, "t-1", "bio-101")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Config.Title != "Quiz 1" || !got.Config.ShuffleAnswers {
		t.Fatalf("config lost: %+v", got.Config)
	}
	if len(got.Selection) != 3 || got.DisplayOrder[0] != "q3" {
		t.Fatalf("selection/display order lost: %+v", got)
	}
	ov := got.Overrides["q2"]
	if ov.EditedText == nil || *ov.EditedText != "edited" || len(ov.HiddenAnswerMask) != 2 {
		t.Fatalf("override lost: %+v", ov)
	}
	if got.Pager.PageSize != 20 {
		t.Fatalf("pager lost: %+v", got.Pager)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("updated_at not populated")
	}
}

func TestSQLStoreUpsertsOnUserCourse(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	d := draft.Draft{UserID: "t-1", CourseID: "c-1", Selection: []string{"a"}}
	if err := st.Save(ctx, d); err != nil {
		t.Fatalf("first save: %v", err)
	}
	d.Selection = []string{"a", "b"}
	d.UpdatedAt = time.Unix(2_000_000_000, 0)
	if err := st.Save(ctx, d); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := st.Load(ctx, "t-1", "c-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Selection) != 2 {
		t.Fatalf("upsert did not replace: %+v", got.Selection)
	}
}

func TestSQLStoreLoadLatestAndDelete(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	older := draft.Draft{UserID: "t-1", CourseID: "c-old", UpdatedAt: time.Unix(1000, 0)}
	newer := draft.Draft{UserID: "t-1", CourseID: "c-new", UpdatedAt: time.Unix(2000, 0)}
	other := draft.Draft{UserID: "t-2", CourseID: "c-x", UpdatedAt: time.Unix(9000, 0)}
	for _, d := range []draft.Draft{older, newer, other} {
		if err := st.Save(ctx, d); err != nil {
			t.Fatalf("seed save: %v", err)
		}
	}

	got, err := st.LoadLatest(ctx, "t-1")
	if err != nil {
		t.Fatalf("load latest: %v", err)
	}
	if got.CourseID != "c-new" {
		t.Fatalf("latest picked %q", got.CourseID)
	}

	if err := st.Delete(ctx, "t-1", "c-new"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Load(ctx, "t-1", "c-new"); !errors.Is(err, draft.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	// deleting a missing draft is not an error
	if err := st.Delete(ctx, "t-1", "c-new"); err != nil {
		t.Fatalf("re-delete: %v", err)
	}
}
