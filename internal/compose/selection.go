package compose

// Override is a per-question diff layered over the canonical question. Fields
// are pointers/nil-able so a merge can tell "not touched" from "set to zero".
// Overrides are keyed independently of selection membership: deselecting a
// question keeps its edits so reselecting restores them.
type Override struct {
	EditedText       *string `json:"edited_text,omitempty"`
	HiddenAnswerMask []bool  `json:"hidden_answer_mask,omitempty"`
	AnswerOrder      []int   `json:"answer_order,omitempty"`
	TaxonomyLevel    *string `json:"taxonomy_level,omitempty"`
	Difficulty       *string `json:"difficulty,omitempty"`
}

// merge folds o2 into o, field-wise, o2 winning where set.
func (o Override) merge(o2 Override) Override {
	if o2.EditedText != nil {
		o.EditedText = o2.EditedText
	}
	if o2.HiddenAnswerMask != nil {
		o.HiddenAnswerMask = o2.HiddenAnswerMask
	}
	if o2.AnswerOrder != nil {
		o.AnswerOrder = o2.AnswerOrder
	}
	if o2.TaxonomyLevel != nil {
		o.TaxonomyLevel = o2.TaxonomyLevel
	}
	if o2.Difficulty != nil {
		o.Difficulty = o2.Difficulty
	}
	return o
}

// IsZero reports whether the override carries no diff at all.
func (o Override) IsZero() bool {
	return o.EditedText == nil && o.HiddenAnswerMask == nil &&
		o.AnswerOrder == nil && o.TaxonomyLevel == nil && o.Difficulty == nil
}

// SelectionStore owns the ordered duplicate-free selection, the optional
// shuffled display order, and the override map. All mutations are synchronous;
// callers serialize access (one session, one event at a time).
type SelectionStore struct {
	order        []string // insertion order
	member       map[string]bool
	displayOrder []string // set only after a question shuffle
	overrides    map[string]Override
}

func NewSelectionStore() *SelectionStore {
	return &SelectionStore{
		member:    map[string]bool{},
		overrides: map[string]Override{},
	}
}

// Toggle adds the id at the end if absent, removes it if present. Removal
// leaves the override untouched.
func (s *SelectionStore) Toggle(id string) (selected bool) {
	if s.member[id] {
		s.remove(id)
		return false
	}
	s.append(id)
	return true
}

// BulkAdd appends the given ids in order, skipping ones already selected.
func (s *SelectionStore) BulkAdd(ids []string) {
	for _, id := range ids {
		if !s.member[id] {
			s.append(id)
		}
	}
}

// BulkRemove removes the given ids, keeping the order of the rest.
func (s *SelectionStore) BulkRemove(ids []string) {
	for _, id := range ids {
		if s.member[id] {
			s.remove(id)
		}
	}
}

func (s *SelectionStore) append(id string) {
	s.member[id] = true
	s.order = append(s.order, id)
	if s.displayOrder != nil {
		s.displayOrder = append(s.displayOrder, id)
	}
}

func (s *SelectionStore) remove(id string) {
	delete(s.member, id)
	s.order = removeID(s.order, id)
	if s.displayOrder != nil {
		s.displayOrder = removeID(s.displayOrder, id)
	}
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Selected reports membership.
func (s *SelectionStore) Selected(id string) bool { return s.member[id] }

// Len returns the selection size.
func (s *SelectionStore) Len() int { return len(s.order) }

// IDs returns the selection in insertion order.
func (s *SelectionStore) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// DisplayOrder returns the presentation order: the shuffled order if one has
// been applied, insertion order otherwise. Re-filtering the candidate list
// never perturbs this.
func (s *SelectionStore) DisplayOrder() []string {
	if s.displayOrder != nil {
		out := make([]string, len(s.displayOrder))
		copy(out, s.displayOrder)
		return out
	}
	return s.IDs()
}

// SetDisplayOrder installs a shuffled order. The ids must be a permutation of
// the current selection; anything else is a programming error and is ignored
// fail-closed (the previous order stands).
func (s *SelectionStore) SetDisplayOrder(ids []string) bool {
	if len(ids) != len(s.order) {
		return false
	}
	seen := map[string]bool{}
	for _, id := range ids {
		if !s.member[id] || seen[id] {
			return false
		}
		seen[id] = true
	}
	s.displayOrder = append([]string(nil), ids...)
	return true
}

// ClearDisplayOrder reverts presentation to insertion order.
func (s *SelectionStore) ClearDisplayOrder() { s.displayOrder = nil }

// SetOverride shallow-merges partial into the question's override, creating
// the record on first edit. Merging an empty partial onto nothing is a no-op.
func (s *SelectionStore) SetOverride(id string, partial Override) {
	merged := s.overrides[id].merge(partial)
	if merged.IsZero() {
		return
	}
	s.overrides[id] = merged
}

// Override returns the question's override, if any.
func (s *SelectionStore) Override(id string) (Override, bool) {
	o, ok := s.overrides[id]
	return o, ok
}

// PurgeOverride drops a question's local edits. Used when the user discards
// edits on deselect instead of keeping them.
func (s *SelectionStore) PurgeOverride(id string) { delete(s.overrides, id) }

// Overrides returns a copy of the override map for snapshotting.
func (s *SelectionStore) Overrides() map[string]Override {
	out := make(map[string]Override, len(s.overrides))
	for k, v := range s.overrides {
		out[k] = v
	}
	return out
}

// Restore replaces the whole store state from a loaded draft. displayOrder
// may be nil when no shuffle had been applied.
func (s *SelectionStore) Restore(ids []string, displayOrder []string, overrides map[string]Override) {
	s.order = nil
	s.member = map[string]bool{}
	s.displayOrder = nil
	for _, id := range ids {
		if !s.member[id] {
			s.member[id] = true
			s.order = append(s.order, id)
		}
	}
	if len(displayOrder) > 0 {
		s.SetDisplayOrder(displayOrder)
	}
	s.overrides = map[string]Override{}
	for k, v := range overrides {
		if !v.IsZero() {
			s.overrides[k] = v
		}
	}
}
