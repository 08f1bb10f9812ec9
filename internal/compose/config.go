package compose

// AnswerCase controls the lettering style on the rendered test.
type AnswerCase string

const (
	AnswerCaseUpper AnswerCase = "upper"
	AnswerCaseLower AnswerCase = "lower"
)

// TestConfig is the presentation configuration of the test being composed.
// The UI mutates it directly; only defaults are enforced here.
type TestConfig struct {
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	AnswerCase       AnswerCase `json:"answer_case"`
	Separator        string     `json:"separator"`
	IncludeAnswerKey bool       `json:"include_answer_key"`
	ShuffleQuestions bool       `json:"shuffle_questions"`
	ShuffleAnswers   bool       `json:"shuffle_answers"`
}

func DefaultTestConfig() TestConfig {
	return TestConfig{
		AnswerCase: AnswerCaseUpper,
		Separator:  ")",
	}
}

// ValidateForCommit gates test creation: a title and a nonempty selection are
// required before the composer may hand the test to the backend.
func (c TestConfig) ValidateForCommit(selectionLen int) error {
	if c.Title == "" {
		return validationf("title", "a test title is required")
	}
	if selectionLen == 0 {
		return validationf("selection", "select at least one question")
	}
	return nil
}
