package compose

import (
	"regexp"
	"strings"

	"github.com/mind-engage/testcraft/internal/bank"
)

// Filter is the candidate-list filter state. Zero value passes everything.
type Filter struct {
	SearchText     string   `json:"search_text,omitempty"`
	TaxonomyLevels []string `json:"taxonomy_levels,omitempty"`
	BankScopeID    string   `json:"bank_scope_id,omitempty"`
}

var tagRE = regexp.MustCompile(`<[^>]*>`)

// stripTags flattens bank-editor HTML to plain text for searching.
func stripTags(s string) string {
	return tagRE.ReplaceAllString(s, "")
}

// ApplyFilter returns the questions passing all three predicates: search text
// (case-insensitive substring over de-tagged text), taxonomy (a question
// passes if any of its levels matches any selected level; empty selection
// passes all), and bank scope (the scoped bank or any descendant).
func ApplyFilter(all []bank.Question, f Filter, forest *bank.Forest) []bank.Question {
	search := strings.ToLower(strings.TrimSpace(f.SearchText))

	var scope map[string]bool
	if f.BankScopeID != "" {
		scope = map[string]bool{}
		if forest != nil {
			for _, id := range forest.SubtreeIDs(f.BankScopeID) {
				scope[id] = true
			}
		}
	}

	var out []bank.Question
	for _, q := range all {
		if search != "" && !strings.Contains(strings.ToLower(stripTags(q.Text)), search) {
			continue
		}
		if len(f.TaxonomyLevels) > 0 && !anyLevelMatches(q.TaxonomyLevels, f.TaxonomyLevels) {
			continue
		}
		if scope != nil && !scope[q.BankID] {
			continue
		}
		out = append(out, q)
	}
	return out
}

func anyLevelMatches(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

// Page slices one page out of list. pageNumber is 1-based and clamped to the
// valid range, so a stale cursor can never produce an out-of-range slice.
func Page(list []bank.Question, pageNumber, pageSize int) []bank.Question {
	if pageSize <= 0 || len(list) == 0 {
		return nil
	}
	last := (len(list) + pageSize - 1) / pageSize
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageNumber > last {
		pageNumber = last
	}
	start := (pageNumber - 1) * pageSize
	end := start + pageSize
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}

// Pager tracks the two page cursors of the composer screen: the available
// (unselected) list and the selected list.
type Pager struct {
	PageSize      int `json:"page_size"`
	AvailablePage int `json:"available_page"`
	SelectedPage  int `json:"selected_page"`
}

func NewPager(pageSize int) Pager {
	if pageSize <= 0 {
		pageSize = 10
	}
	return Pager{PageSize: pageSize, AvailablePage: 1, SelectedPage: 1}
}

// SetPageSize changes the page size and resets both cursors. Keeping a cursor
// after a resize can point past the shrunken page count.
func (p *Pager) SetPageSize(size int) {
	if size <= 0 {
		return
	}
	p.PageSize = size
	p.AvailablePage = 1
	p.SelectedPage = 1
}
