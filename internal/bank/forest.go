package bank

import "fmt"

// Forest indexes a course's bank nodes as a flat arena keyed by id with a
// parent/children adjacency map. Flattening and subtree collection walk the
// index iteratively, so arbitrarily deep hierarchies cost no stack.
type Forest struct {
	nodes    map[string]Node
	children map[string][]string
	roots    []string
}

// NewForest builds the arena from the nodes the backend returned. Duplicate
// ids and parent cycles are rejected outright: a bank tree the backend
// corrupted is not worth guessing about. A node whose parent is missing from
// the batch is kept and treated as a root.
func NewForest(nodes []Node) (*Forest, error) {
	f := &Forest{
		nodes:    make(map[string]Node, len(nodes)),
		children: make(map[string][]string, len(nodes)),
	}
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("bank: node %q has empty id", n.Name)
		}
		if _, dup := f.nodes[n.ID]; dup {
			return nil, fmt.Errorf("bank: duplicate node id %q", n.ID)
		}
		f.nodes[n.ID] = n
	}
	for _, n := range nodes {
		if n.ParentID == "" || n.ParentID == n.ID {
			if n.ParentID == n.ID && n.ParentID != "" {
				return nil, fmt.Errorf("bank: node %q is its own parent", n.ID)
			}
			f.roots = append(f.roots, n.ID)
			continue
		}
		if _, ok := f.nodes[n.ParentID]; !ok {
			// dangling parent reference: keep the subtree reachable
			f.roots = append(f.roots, n.ID)
			continue
		}
		f.children[n.ParentID] = append(f.children[n.ParentID], n.ID)
	}
	if err := f.checkAcyclic(); err != nil {
		return nil, err
	}
	return f, nil
}

// checkAcyclic walks every ancestor chain; a revisit means the parent links
// loop. Nodes in a cycle are never registered as roots, so a cycle also
// manifests as nodes unreachable from any root.
func (f *Forest) checkAcyclic() error {
	for id, n := range f.nodes {
		seen := map[string]bool{id: true}
		for p := n.ParentID; p != ""; {
			if seen[p] {
				return fmt.Errorf("bank: cycle through node %q", p)
			}
			seen[p] = true
			next, ok := f.nodes[p]
			if !ok {
				break
			}
			p = next.ParentID
		}
	}
	return nil
}

// Node returns the node by id.
func (f *Forest) Node(id string) (Node, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

// Roots returns the root ids in input order.
func (f *Forest) Roots() []string {
	out := make([]string, len(f.roots))
	copy(out, f.roots)
	return out
}

// Flatten returns every node's own questions across the whole forest, each
// annotated with its originating bank id. Order is a depth-first preorder
// walk from the roots in input order, so questions come out exactly as the
// bank tree displays them and the candidate list is stable between reloads.
func (f *Forest) Flatten() []Question {
	var out []Question
	stack := make([]string, len(f.roots))
	for i, id := range f.roots {
		stack[len(f.roots)-1-i] = id
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := f.nodes[id]
		for _, q := range n.Questions {
			q.BankID = n.ID
			out = append(out, q)
		}
		kids := f.children[id]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return out
}

// SubtreeIDs returns id plus every descendant id. An unknown id yields an
// empty slice: scope filters over a stale bank reference match nothing
// rather than failing the whole view.
func (f *Forest) SubtreeIDs(id string) []string {
	if _, ok := f.nodes[id]; !ok {
		return nil
	}
	var out []string
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		queue = append(queue, f.children[cur]...)
	}
	return out
}
