package compose

import "github.com/mind-engage/testcraft/internal/bank"

// Canonical Bloom taxonomy levels, in presentation order.
var TaxonomyLevels = []string{"Remember", "Understand", "Apply", "Analyze", "Evaluate", "Create"}

const (
	DefaultTaxonomyLevel = "Remember"
	DefaultDifficulty    = "medium"
)

// EffectiveAnswer is an answer as it will appear on the test: reordered by
// the answer shuffle and carrying its hidden flag.
type EffectiveAnswer struct {
	Text    string `json:"text"`
	Correct bool   `json:"is_correct"`
	Hidden  bool   `json:"hidden"`
}

// EffectiveQuestion is the override-resolved view of a selected question.
type EffectiveQuestion struct {
	ID            string            `json:"id"`
	Text          string            `json:"text"`
	Answers       []EffectiveAnswer `json:"answers"`
	TaxonomyLevel string            `json:"taxonomy_level"`
	Difficulty    string            `json:"difficulty"`
	BankID        string            `json:"bank_id,omitempty"`
	Edited        bool              `json:"edited"`
}

// Effective resolves a question through its override: override field →
// canonical question → default. Answer order and hidden flags follow the
// override's permutation and mask, which are kept index-aligned by the
// shuffle engine.
func Effective(q bank.Question, ov Override, hasOverride bool) EffectiveQuestion {
	eq := EffectiveQuestion{
		ID:            q.ID,
		Text:          q.Text,
		TaxonomyLevel: firstOrDefault(q.TaxonomyLevels, DefaultTaxonomyLevel),
		Difficulty:    defaultIfEmpty(q.Difficulty, DefaultDifficulty),
		BankID:        q.BankID,
	}
	order := identityOrder(len(q.Answers))
	var mask []bool
	if hasOverride {
		eq.Edited = !ov.IsZero()
		if ov.EditedText != nil {
			eq.Text = *ov.EditedText
		}
		if ov.TaxonomyLevel != nil {
			eq.TaxonomyLevel = *ov.TaxonomyLevel
		}
		if ov.Difficulty != nil {
			eq.Difficulty = *ov.Difficulty
		}
		if len(ov.AnswerOrder) == len(q.Answers) {
			order = ov.AnswerOrder
		}
		mask = ov.HiddenAnswerMask
	}
	eq.Answers = make([]EffectiveAnswer, 0, len(q.Answers))
	for pos, idx := range order {
		if idx < 0 || idx >= len(q.Answers) {
			continue
		}
		a := q.Answers[idx]
		ea := EffectiveAnswer{Text: a.Text, Correct: a.Correct}
		if pos < len(mask) {
			ea.Hidden = mask[pos]
		}
		eq.Answers = append(eq.Answers, ea)
	}
	return eq
}

func identityOrder(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func firstOrDefault(ss []string, def string) string {
	if len(ss) > 0 && ss[0] != "" {
		return ss[0]
	}
	return def
}

func defaultIfEmpty(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
