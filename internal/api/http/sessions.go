package http

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/testcraft/internal/auth/middleware"
	"github.com/mind-engage/testcraft/internal/backend"
	"github.com/mind-engage/testcraft/internal/compose"
	"github.com/mind-engage/testcraft/internal/composer"
	"github.com/mind-engage/testcraft/internal/draft"
)

// Handlers only — routes remain in main.go

func writeJSON(w nethttp.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps engine errors onto HTTP statuses: validation errors are the
// caller's fault, sync errors are upstream trouble, the rest is a 500.
func writeErr(w nethttp.ResponseWriter, err error) {
	var ve *compose.ValidationError
	var se *draft.SyncError
	switch {
	case errors.As(err, &ve):
		nethttp.Error(w, ve.Error(), nethttp.StatusUnprocessableEntity)
	case errors.As(err, &se):
		nethttp.Error(w, se.Error(), nethttp.StatusBadGateway)
	default:
		nethttp.Error(w, err.Error(), nethttp.StatusInternalServerError)
	}
}

// session resolves the caller's live session for the course in the URL.
func session(m *composer.Manager, w nethttp.ResponseWriter, r *nethttp.Request) (*composer.Session, bool) {
	sub := authmw.SubjectFromContext(r.Context())
	courseID := chi.URLParam(r, "courseID")
	if sub == "" || courseID == "" {
		nethttp.Error(w, "unauthorized", nethttp.StatusUnauthorized)
		return nil, false
	}
	s, ok := m.Get(sub, courseID)
	if !ok {
		nethttp.Error(w, "no open session for course", nethttp.StatusNotFound)
		return nil, false
	}
	return s, true
}

// ListCoursesHandler proxies the platform's course list for the course
// picker.
func ListCoursesHandler(svc backend.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		courses, err := svc.ListCourses(r.Context())
		if err != nil {
			nethttp.Error(w, "platform unavailable", nethttp.StatusBadGateway)
			return
		}
		writeJSON(w, courses)
	}
}

// OpenSessionHandler opens (or resumes) the composition session for a course,
// loading banks and the latest draft.
func OpenSessionHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		var req struct {
			CourseID string `json:"course_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.CourseID) == "" {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		s, err := m.Open(r.Context(), sub, req.CourseID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]any{
			"course_id": s.CourseID,
			"config":    s.Config(),
			"filter":    s.Filter(),
			"selection": s.Selected(),
			"draft":     s.DraftStatus(),
		})
	}
}

// CloseSessionHandler retires the session (final autosave flush included).
func CloseSessionHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		m.Close(sub, chi.URLParam(r, "courseID"))
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// CandidatesHandler returns the filtered, paginated available questions.
func CandidatesHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
			s.SetAvailablePage(v)
		}
		writeJSON(w, s.Candidates())
	}
}

// SelectionHandler returns the selection page in display order with overrides
// applied.
func SelectionHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
			s.SetSelectedPage(v)
		}
		writeJSON(w, s.Selected())
	}
}

// ToggleHandler flips one question in or out of the selection.
func ToggleHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		var req struct {
			QuestionID string `json:"question_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuestionID == "" {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		selected, err := s.Toggle(req.QuestionID)
		if err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusNotFound)
			return
		}
		writeJSON(w, map[string]bool{"selected": selected})
	}
}

// BulkSelectHandler handles "Add all" / "Remove all".
func BulkSelectHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		switch chi.URLParam(r, "op") {
		case "add-all":
			writeJSON(w, map[string]int{"added": s.AddAllFiltered()})
		case "remove-all":
			s.RemoveAll()
			w.WriteHeader(nethttp.StatusNoContent)
		default:
			nethttp.Error(w, "unknown bulk op", nethttp.StatusBadRequest)
		}
	}
}

// SetFilterHandler replaces the candidate filter.
func SetFilterHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		var f compose.Filter
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		s.SetFilter(f)
		writeJSON(w, s.Candidates())
	}
}

// SetPageSizeHandler changes items-per-page; both cursors reset.
func SetPageSizeHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		var req struct {
			PageSize int `json:"page_size"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PageSize <= 0 {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		s.SetPageSize(req.PageSize)
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// SetConfigHandler replaces the test configuration.
func SetConfigHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		var cfg compose.TestConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		s.SetConfig(cfg)
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// SetOverrideHandler merges a partial override into one question's edits.
func SetOverrideHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		qid := chi.URLParam(r, "questionID")
		var ov compose.Override
		if err := json.NewDecoder(r.Body).Decode(&ov); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		if err := s.SetOverride(qid, ov); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusNotFound)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// PurgeOverrideHandler discards one question's local edits.
func PurgeOverrideHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		s.PurgeOverride(chi.URLParam(r, "questionID"))
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// DistributionHandler returns the taxonomy × difficulty matrix.
func DistributionHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		dist := s.Distribution()
		writeJSON(w, map[string]any{
			"matrix":      dist,
			"grand_total": dist.GrandTotal(),
		})
	}
}

// ShuffleQuestionsHandler installs a fresh random display order.
func ShuffleQuestionsHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		writeJSON(w, map[string]any{"display_order": s.ShuffleQuestions()})
	}
}

// ShuffleAnswersHandler permutes one question's answer order.
func ShuffleAnswersHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		if err := s.ShuffleAnswers(chi.URLParam(r, "questionID")); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusNotFound)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// DraftStatusHandler reports lastSavedAt / pending / error for the UI badge.
func DraftStatusHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		writeJSON(w, s.DraftStatus())
	}
}

// SaveDraftHandler flushes the pending snapshot on demand.
func SaveDraftHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		if err := s.SaveDraftNow(r.Context()); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, s.DraftStatus())
	}
}

// DiscardDraftHandler deletes the persisted draft and resets the session. A
// store failure is an error here: the user must know the draft may survive.
func DiscardDraftHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		if err := s.DiscardDraft(r.Context()); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// CommitHandler creates the test on the platform and cleans up the draft.
func CommitHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		testID, err := s.Commit(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]string{"test_id": testID})
	}
}

// DetailViewHandler drives the detail-view state machine.
func DetailViewHandler(m *composer.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		var req struct {
			Action     string `json:"action"` // open|edit|done|close
			QuestionID string `json:"question_id,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		var err error
		switch req.Action {
		case "open":
			err = s.OpenDetail(req.QuestionID)
		case "edit":
			err = s.EditDetail()
		case "done":
			err = s.FinishDetailEdit()
		case "close":
			s.CloseDetail()
		default:
			nethttp.Error(w, "unknown action", nethttp.StatusBadRequest)
			return
		}
		if err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusConflict)
			return
		}
		writeJSON(w, s.DetailView())
	}
}
