package standards

import (
	"fmt"
	"sort"

	"github.com/curricula/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CodeInvalidObjectiveTree is returned when a flat objective list cannot form a tree
const CodeInvalidObjectiveTree = "INVALID_OBJECTIVE_TREE"

// ObjectiveTree is an index-keyed view over a framework's objectives.
// It is validated once on construction; traversals never revisit a node.
type ObjectiveTree struct {
	frameworkID uuid.UUID
	nodes       map[uuid.UUID]*Objective
	children    map[uuid.UUID][]uuid.UUID
	roots       []uuid.UUID
}

// BuildObjectiveTree indexes objectives into an adjacency map and rejects
// duplicates, objectives from another framework, dangling or cross-framework
// parents, and cycles.
func BuildObjectiveTree(frameworkID uuid.UUID, objectives []*Objective) (*ObjectiveTree, error) {
	t := &ObjectiveTree{
		frameworkID: frameworkID,
		nodes:       make(map[uuid.UUID]*Objective, len(objectives)),
		children:    make(map[uuid.UUID][]uuid.UUID),
	}

	for _, o := range objectives {
		if o.FrameworkID != frameworkID {
			return nil, treeError("objective %s belongs to framework %s", o.Code, o.FrameworkID)
		}
		if _, dup := t.nodes[o.ID]; dup {
			return nil, treeError("duplicate objective id %s", o.ID)
		}
		t.nodes[o.ID] = o
	}

	for _, o := range objectives {
		if o.ParentID == nil {
			t.roots = append(t.roots, o.ID)
			continue
		}
		if *o.ParentID == o.ID {
			return nil, treeError("objective %s is its own parent", o.Code)
		}
		if _, ok := t.nodes[*o.ParentID]; !ok {
			return nil, treeError("objective %s references parent %s outside framework", o.Code, *o.ParentID)
		}
		t.children[*o.ParentID] = append(t.children[*o.ParentID], o.ID)
	}

	t.sortByCode(t.roots)
	for id := range t.children {
		t.sortByCode(t.children[id])
	}

	// Every node has at most one parent, so anything not reachable from a
	// root sits on (or below) a cycle.
	reached := 0
	queue := append([]uuid.UUID(nil), t.roots...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		reached++
		queue = append(queue, t.children[id]...)
	}
	if reached != len(t.nodes) {
		return nil, treeError("objective hierarchy contains a cycle (%d of %d objectives reachable)", reached, len(t.nodes))
	}

	return t, nil
}

func treeError(format string, args ...any) error {
	return shared.NewDomainError(CodeInvalidObjectiveTree, fmt.Sprintf(format, args...))
}

func (t *ObjectiveTree) sortByCode(ids []uuid.UUID) {
	sort.SliceStable(ids, func(i, j int) bool {
		return t.nodes[ids[i]].Code < t.nodes[ids[j]].Code
	})
}

// FrameworkID returns the framework the tree was built for
func (t *ObjectiveTree) FrameworkID() uuid.UUID {
	return t.frameworkID
}

// Len returns the number of objectives in the tree
func (t *ObjectiveTree) Len() int {
	return len(t.nodes)
}

// Get returns the objective with the given id
func (t *ObjectiveTree) Get(id uuid.UUID) (*Objective, bool) {
	o, ok := t.nodes[id]
	return o, ok
}

// Contains reports whether id is part of the tree
func (t *ObjectiveTree) Contains(id uuid.UUID) bool {
	_, ok := t.nodes[id]
	return ok
}

// Roots returns root objectives ordered by code
func (t *ObjectiveTree) Roots() []*Objective {
	return t.resolve(t.roots)
}

// Children returns the direct children of id ordered by code
func (t *ObjectiveTree) Children(id uuid.UUID) []*Objective {
	return t.resolve(t.children[id])
}

// Ancestors returns the chain from the direct parent up to the root
func (t *ObjectiveTree) Ancestors(id uuid.UUID) []*Objective {
	var out []*Objective
	o, ok := t.nodes[id]
	for ok && o.ParentID != nil {
		o, ok = t.nodes[*o.ParentID]
		if ok {
			out = append(out, o)
		}
	}
	return out
}

// Walk visits objectives depth-first in code order. Returning false from fn
// skips the node's subtree.
func (t *ObjectiveTree) Walk(fn func(o *Objective, depth int) bool) {
	type frame struct {
		id    uuid.UUID
		depth int
	}
	stack := make([]frame, 0, len(t.roots))
	for i := len(t.roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{id: t.roots[i]})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(t.nodes[f.id], f.depth) {
			continue
		}
		kids := t.children[f.id]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: kids[i], depth: f.depth + 1})
		}
	}
}

// Objectives returns every objective in walk order
func (t *ObjectiveTree) Objectives() []*Objective {
	out := make([]*Objective, 0, len(t.nodes))
	t.Walk(func(o *Objective, _ int) bool {
		out = append(out, o)
		return true
	})
	return out
}

func (t *ObjectiveTree) resolve(ids []uuid.UUID) []*Objective {
	out := make([]*Objective, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.nodes[id])
	}
	return out
}
