package bank

// Answer is one option on a question. Order matters: position drives the
// A/B/C lettering on the rendered test. Duplicate texts are allowed.
type Answer struct {
	Text    string `json:"text"`
	Correct bool   `json:"is_correct"`
}

// Question as delivered by the course backend. The composer never mutates a
// Question in place; per-question edits live in compose.Override.
type Question struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"` // may contain HTML from the bank editor
	Answers        []Answer `json:"answers,omitempty"`
	TaxonomyLevels []string `json:"taxonomy_levels,omitempty"` // Bloom levels, possibly several
	Difficulty     string   `json:"difficulty,omitempty"`      // easy|medium|hard
	BankID         string   `json:"bank_id,omitempty"`
}

// Node is one bank in the course's bank hierarchy. Questions belong
// exclusively to their node; ancestors do not inherit them.
type Node struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	ParentID  string     `json:"parent_id,omitempty"` // "" for roots
	Questions []Question `json:"questions,omitempty"`
}
