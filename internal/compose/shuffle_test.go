package compose_test

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/mind-engage/testcraft/internal/bank"
	"github.com/mind-engage/testcraft/internal/compose"
)

func TestShuffleQuestionOrderPreservesIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}

	for i := 0; i < 200; i++ {
		got := compose.ShuffleQuestionOrder(ids, rng)
		if len(got) != len(ids) {
			t.Fatalf("length changed: %v", got)
		}
		a := append([]string(nil), ids...)
		b := append([]string(nil), got...)
		sort.Strings(a)
		sort.Strings(b)
		for j := range a {
			if a[j] != b[j] {
				t.Fatalf("multiset changed: %v vs %v", ids, got)
			}
		}
	}

	// input must not be mutated
	if ids[0] != "a" || ids[6] != "g" {
		t.Fatalf("input mutated: %v", ids)
	}
}

func TestShuffleAnswerOrderKeepsHiddenMaskAligned(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n = 6

	for trial := 0; trial < 150; trial++ {
		// random starting state: maybe a prior permutation, random mask
		ov := compose.Override{HiddenAnswerMask: make([]bool, n)}
		if trial%2 == 1 {
			ov.AnswerOrder = rng.Perm(n)
		}
		for i := range ov.HiddenAnswerMask {
			ov.HiddenAnswerMask[i] = rng.Intn(2) == 0
		}

		// which canonical answers are hidden before the shuffle
		before := hiddenSet(ov, n)

		got := compose.ShuffleAnswerOrder(n, ov, rng)
		if len(got.AnswerOrder) != n {
			t.Fatalf("permutation length = %d", len(got.AnswerOrder))
		}
		if after := hiddenSet(got, n); !equalBools(before, after) {
			t.Fatalf("hidden answers changed identity: before %v after %v (order %v mask %v)",
				before, after, got.AnswerOrder, got.HiddenAnswerMask)
		}
	}
}

// hiddenSet maps canonical answer index -> hidden, resolving the override's
// permutation the same way the effective view does.
func hiddenSet(ov compose.Override, n int) []bool {
	out := make([]bool, n)
	order := ov.AnswerOrder
	if len(order) != n {
		order = make([]int, n)
		for i := range order {
			order[i] = i
		}
	}
	for pos, idx := range order {
		if pos < len(ov.HiddenAnswerMask) {
			out[idx] = ov.HiddenAnswerMask[pos]
		}
	}
	return out
}

func equalBools(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestShuffleAnswerOrderReplacesPriorPermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ov := compose.Override{AnswerOrder: []int{2, 0, 1}}

	got := compose.ShuffleAnswerOrder(3, ov, rng)
	seen := map[int]bool{}
	for _, idx := range got.AnswerOrder {
		if idx < 0 || idx >= 3 || seen[idx] {
			t.Fatalf("result is not a permutation of canonical indices: %v", got.AnswerOrder)
		}
		seen[idx] = true
	}
	// no mask existed, none should be invented
	if got.HiddenAnswerMask != nil {
		t.Fatalf("mask invented by shuffle: %v", got.HiddenAnswerMask)
	}
}

func TestEffectiveAppliesOrderAndMask(t *testing.T) {
	q := bank.Question{
		ID: "q",
		Answers: []bank.Answer{
			{Text: "first", Correct: true},
			{Text: "second"},
			{Text: "third"},
		},
	}
	ov := compose.Override{
		AnswerOrder:      []int{2, 0, 1},
		HiddenAnswerMask: []bool{false, true, false}, // hides "first" at display pos 1
	}
	eq := compose.Effective(q, ov, true)

	if eq.Answers[0].Text != "third" || eq.Answers[1].Text != "first" || eq.Answers[2].Text != "second" {
		t.Fatalf("answer order wrong: %+v", eq.Answers)
	}
	if !eq.Answers[1].Hidden || eq.Answers[0].Hidden || eq.Answers[2].Hidden {
		t.Fatalf("mask misapplied: %+v", eq.Answers)
	}
	if !eq.Answers[1].Correct {
		t.Fatalf("correctness must travel with the answer: %+v", eq.Answers)
	}
}

func TestEffectiveDefaults(t *testing.T) {
	eq := compose.Effective(bank.Question{ID: "q"}, compose.Override{}, false)
	if eq.TaxonomyLevel != compose.DefaultTaxonomyLevel || eq.Difficulty != compose.DefaultDifficulty {
		t.Fatalf("defaults not applied: %+v", eq)
	}
	if eq.Edited {
		t.Fatalf("no override means not edited")
	}
}
