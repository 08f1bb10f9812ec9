package compose

import "fmt"

// ViewState is the explicit detail-view state machine of the composer screen:
// Browsing -> DetailOpen -> {Editing, Browsing}. Modeling it as a value the
// handlers pass around (instead of scattered booleans) lets tests drive each
// transition directly.
type ViewState string

const (
	ViewBrowsing   ViewState = "browsing"
	ViewDetailOpen ViewState = "detail_open"
	ViewEditing    ViewState = "editing"
)

// DetailView tracks which question the instructor has open and in what mode.
type DetailView struct {
	State      ViewState `json:"state"`
	QuestionID string    `json:"question_id,omitempty"`
}

func NewDetailView() DetailView { return DetailView{State: ViewBrowsing} }

// Open moves Browsing -> DetailOpen. Opening a different question while a
// detail is already open is allowed and just retargets the view.
func (d DetailView) Open(questionID string) (DetailView, error) {
	if questionID == "" {
		return d, validationf("question_id", "question id required")
	}
	if d.State == ViewEditing {
		return d, fmt.Errorf("detail view: finish editing before opening another question")
	}
	return DetailView{State: ViewDetailOpen, QuestionID: questionID}, nil
}

// Edit moves DetailOpen -> Editing.
func (d DetailView) Edit() (DetailView, error) {
	if d.State != ViewDetailOpen {
		return d, fmt.Errorf("detail view: no question open")
	}
	return DetailView{State: ViewEditing, QuestionID: d.QuestionID}, nil
}

// Done moves Editing -> DetailOpen (edit finished, override applied by the
// caller).
func (d DetailView) Done() (DetailView, error) {
	if d.State != ViewEditing {
		return d, fmt.Errorf("detail view: not editing")
	}
	return DetailView{State: ViewDetailOpen, QuestionID: d.QuestionID}, nil
}

// Close returns to Browsing from any state. Closing mid-edit abandons the
// in-flight form, not the stored override.
func (d DetailView) Close() DetailView { return DetailView{State: ViewBrowsing} }
