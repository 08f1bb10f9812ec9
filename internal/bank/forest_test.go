package bank_test

import (
	"sort"
	"testing"

	"github.com/mind-engage/testcraft/internal/bank"
)

func q(id string) bank.Question { return bank.Question{ID: id, Text: "q-" + id} }

func sampleForest(t *testing.T) *bank.Forest {
	t.Helper()
	// A -> [B, C]; B has 2 questions, C has 1, A has none of its own.
	f, err := bank.NewForest([]bank.Node{
		{ID: "A", Name: "Unit"},
		{ID: "B", Name: "Chapter 1", ParentID: "A", Questions: []bank.Question{q("q1"), q("q2")}},
		{ID: "C", Name: "Chapter 2", ParentID: "A", Questions: []bank.Question{q("q3")}},
	})
	if err != nil {
		t.Fatalf("NewForest: %v", err)
	}
	return f
}

func TestFlattenCollectsAllDescendantQuestions(t *testing.T) {
	f := sampleForest(t)
	qs := f.Flatten()
	if len(qs) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(qs))
	}
	ids := map[string]string{}
	for _, qq := range qs {
		ids[qq.ID] = qq.BankID
	}
	if ids["q1"] != "B" || ids["q2"] != "B" || ids["q3"] != "C" {
		t.Fatalf("bank annotations wrong: %v", ids)
	}
}

func TestFlattenFollowsTreeDisplayOrder(t *testing.T) {
	// a second root's questions must come after the first root's whole
	// subtree, not interleave with it
	f, err := bank.NewForest([]bank.Node{
		{ID: "A", Name: "Unit"},
		{ID: "B", ParentID: "A", Questions: []bank.Question{q("q1"), q("q2")}},
		{ID: "C", ParentID: "A", Questions: []bank.Question{q("q3")}},
		{ID: "D", Name: "Extras", Questions: []bank.Question{q("q4")}},
	})
	if err != nil {
		t.Fatalf("NewForest: %v", err)
	}
	want := []string{"q1", "q2", "q3", "q4"}
	qs := f.Flatten()
	if len(qs) != len(want) {
		t.Fatalf("flatten = %+v", qs)
	}
	for i, w := range want {
		if qs[i].ID != w {
			t.Fatalf("flatten order = %v at %d, want %v", qs[i].ID, i, w)
		}
	}
}

func TestFlattenDeepNesting(t *testing.T) {
	// chain of 50 nodes, one question at the bottom
	nodes := []bank.Node{{ID: "n0"}}
	for i := 1; i < 50; i++ {
		n := bank.Node{ID: nodeID(i), ParentID: nodeID(i - 1)}
		if i == 49 {
			n.Questions = []bank.Question{q("leaf")}
		}
		nodes = append(nodes, n)
	}
	f, err := bank.NewForest(nodes)
	if err != nil {
		t.Fatalf("NewForest: %v", err)
	}
	qs := f.Flatten()
	if len(qs) != 1 || qs[0].ID != "leaf" || qs[0].BankID != nodeID(49) {
		t.Fatalf("deep flatten wrong: %+v", qs)
	}
}

func nodeID(i int) string {
	if i == 0 {
		return "n0"
	}
	return "n" + string(rune('0'+i/10)) + string(rune('0'+i%10))
}

func TestSubtreeIDs(t *testing.T) {
	f := sampleForest(t)

	got := f.SubtreeIDs("A")
	sort.Strings(got)
	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("subtree(A) = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("subtree(A) = %v, want %v", got, want)
		}
	}

	if got := f.SubtreeIDs("B"); len(got) != 1 || got[0] != "B" {
		t.Fatalf("subtree(B) = %v", got)
	}
	if got := f.SubtreeIDs("nope"); len(got) != 0 {
		t.Fatalf("unknown id should yield empty subtree, got %v", got)
	}
}

func TestNewForestRejectsCycle(t *testing.T) {
	_, err := bank.NewForest([]bank.Node{
		{ID: "x", ParentID: "y"},
		{ID: "y", ParentID: "x"},
	})
	if err == nil {
		t.Fatalf("expected cycle error")
	}
}

func TestNewForestRejectsDuplicateID(t *testing.T) {
	_, err := bank.NewForest([]bank.Node{{ID: "x"}, {ID: "x"}})
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestDanglingParentBecomesRoot(t *testing.T) {
	f, err := bank.NewForest([]bank.Node{
		{ID: "orphan", ParentID: "gone", Questions: []bank.Question{q("q9")}},
	})
	if err != nil {
		t.Fatalf("NewForest: %v", err)
	}
	if qs := f.Flatten(); len(qs) != 1 || qs[0].ID != "q9" {
		t.Fatalf("orphan subtree should stay reachable, got %v", qs)
	}
}
