package standards

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func objective(fwID uuid.UUID, code string, parent *Objective) *Objective {
	o := &Objective{ID: uuid.New(), FrameworkID: fwID, Code: code, Title: "Objective " + code}
	if parent != nil {
		o.ParentID = &parent.ID
	}
	return o
}

func TestBuildObjectiveTree(t *testing.T) {
	fwID := uuid.New()
	root1 := objective(fwID, "2", nil)
	root0 := objective(fwID, "1", nil)
	childB := objective(fwID, "1.2", root0)
	childA := objective(fwID, "1.1", root0)
	grand := objective(fwID, "1.1.1", childA)

	tree, err := BuildObjectiveTree(fwID, []*Objective{root1, childB, grand, root0, childA})
	require.NoError(t, err)

	assert.Equal(t, 5, tree.Len())
	assert.Equal(t, fwID, tree.FrameworkID())

	roots := tree.Roots()
	require.Len(t, roots, 2)
	assert.Equal(t, "1", roots[0].Code)
	assert.Equal(t, "2", roots[1].Code)

	kids := tree.Children(root0.ID)
	require.Len(t, kids, 2)
	assert.Equal(t, "1.1", kids[0].Code)
	assert.Equal(t, "1.2", kids[1].Code)
	assert.Empty(t, tree.Children(root1.ID))

	ancestors := tree.Ancestors(grand.ID)
	require.Len(t, ancestors, 2)
	assert.Equal(t, childA.ID, ancestors[0].ID)
	assert.Equal(t, root0.ID, ancestors[1].ID)

	var codes []string
	var depths []int
	tree.Walk(func(o *Objective, depth int) bool {
		codes = append(codes, o.Code)
		depths = append(depths, depth)
		return true
	})
	assert.Equal(t, []string{"1", "1.1", "1.1.1", "1.2", "2"}, codes)
	assert.Equal(t, []int{0, 1, 2, 1, 0}, depths)

	assert.True(t, tree.Contains(grand.ID))
	assert.False(t, tree.Contains(uuid.New()))
}

func TestObjectiveTree_WalkSkipsSubtree(t *testing.T) {
	fwID := uuid.New()
	root := objective(fwID, "A", nil)
	child := objective(fwID, "A.1", root)
	other := objective(fwID, "B", nil)

	tree, err := BuildObjectiveTree(fwID, []*Objective{root, child, other})
	require.NoError(t, err)

	var codes []string
	tree.Walk(func(o *Objective, _ int) bool {
		codes = append(codes, o.Code)
		return o.Code != "A"
	})
	assert.Equal(t, []string{"A", "B"}, codes)
}

func TestBuildObjectiveTree_Rejects(t *testing.T) {
	fwID := uuid.New()

	t.Run("cycle", func(t *testing.T) {
		a := objective(fwID, "a", nil)
		b := objective(fwID, "b", a)
		a.ParentID = &b.ID
		root := objective(fwID, "root", nil)

		_, err := BuildObjectiveTree(fwID, []*Objective{a, b, root})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle")
	})

	t.Run("self parent", func(t *testing.T) {
		a := objective(fwID, "a", nil)
		a.ParentID = &a.ID
		_, err := BuildObjectiveTree(fwID, []*Objective{a})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "its own parent")
	})

	t.Run("dangling parent", func(t *testing.T) {
		missing := uuid.New()
		a := objective(fwID, "a", nil)
		a.ParentID = &missing
		_, err := BuildObjectiveTree(fwID, []*Objective{a})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside framework")
	})

	t.Run("parent in other framework", func(t *testing.T) {
		foreign := objective(uuid.New(), "x", nil)
		a := objective(fwID, "a", foreign)
		_, err := BuildObjectiveTree(fwID, []*Objective{a})
		require.Error(t, err)
	})

	t.Run("objective of other framework", func(t *testing.T) {
		_, err := BuildObjectiveTree(fwID, []*Objective{objective(uuid.New(), "x", nil)})
		require.Error(t, err)
	})

	t.Run("duplicate id", func(t *testing.T) {
		a := objective(fwID, "a", nil)
		_, err := BuildObjectiveTree(fwID, []*Objective{a, a})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})
}

func TestBuildObjectiveTree_Empty(t *testing.T) {
	tree, err := BuildObjectiveTree(uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Len())
	assert.Empty(t, tree.Roots())
	assert.Empty(t, tree.Objectives())
}
