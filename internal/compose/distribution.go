package compose

import "github.com/mind-engage/testcraft/internal/bank"

// DifficultyCount is one row cell group of the distribution matrix.
type DifficultyCount struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

// Total is derived, never stored.
func (d DifficultyCount) Total() int { return d.Easy + d.Medium + d.Hard }

// Distribution is the taxonomy-level × difficulty matrix for the current
// selection. All six canonical levels are always present as keys so the
// summary table renders uniformly even for empty rows.
type Distribution map[string]DifficultyCount

// GrandTotal sums every cell.
func (m Distribution) GrandTotal() int {
	n := 0
	for _, row := range m {
		n += row.Total()
	}
	return n
}

// ComputeDistribution aggregates the selection using effective (override-
// resolved) taxonomy and difficulty. Questions resolving to a level outside
// the canonical six are dropped rather than invented as new rows; an unknown
// difficulty buckets as medium, the default.
func ComputeDistribution(selection []string, questions map[string]bank.Question, overrides map[string]Override) Distribution {
	m := Distribution{}
	for _, lvl := range TaxonomyLevels {
		m[lvl] = DifficultyCount{}
	}
	for _, id := range selection {
		q, ok := questions[id]
		if !ok {
			continue
		}
		ov, hasOv := overrides[id]
		eq := Effective(q, ov, hasOv)
		row, ok := m[eq.TaxonomyLevel]
		if !ok {
			continue
		}
		switch eq.Difficulty {
		case "easy":
			row.Easy++
		case "hard":
			row.Hard++
		default:
			row.Medium++
		}
		m[eq.TaxonomyLevel] = row
	}
	return m
}
