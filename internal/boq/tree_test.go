package boq

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/snowops-boq/internal/model"
)

func TestTreeOrdersSiblingsAndFindsLeaves(t *testing.T) {
	s := newSampleTree()
	tree := s.tree()

	assert.Equal(t, 6, tree.Len())
	assert.Equal(t, []uuid.UUID{s.S1, s.S2}, tree.Roots())
	assert.Equal(t, []uuid.UUID{s.A, s.B}, tree.Children(s.G1))

	leaves := tree.Leaves()
	require.Len(t, leaves, 3)
	assert.Equal(t, "1.1.1", leaves[0].Code)
	assert.Equal(t, "1.1.2", leaves[1].Code)
	assert.Equal(t, "1.2", leaves[2].Code)
}

func TestTreeDescendantsAndSubtree(t *testing.T) {
	s := newSampleTree()
	tree := s.tree()

	assert.True(t, tree.IsDescendant(s.A, s.S1))
	assert.True(t, tree.IsDescendant(s.A, s.G1))
	assert.False(t, tree.IsDescendant(s.S1, s.A))
	assert.False(t, tree.IsDescendant(s.A, s.A))

	assert.ElementsMatch(t, []uuid.UUID{s.S1, s.G1, s.C, s.A, s.B}, tree.Subtree(s.S1))
	assert.Nil(t, tree.Subtree(uuid.New()))
}

func TestTreeTreatsDanglingParentAsRoot(t *testing.T) {
	orphan := leaf(uuid.New(), ptr(uuid.New()), "9", "1", "1")
	tree := NewTree([]model.ContractItem{orphan})

	assert.Equal(t, []uuid.UUID{orphan.ID}, tree.Roots())
	assert.Nil(t, tree.Parent(orphan.ID))
}

func TestCheckParent(t *testing.T) {
	stage := container(uuid.New(), nil, model.ItemTypeStage, "1")
	group := container(uuid.New(), nil, model.ItemTypeGroup, "1")
	item := leaf(uuid.New(), nil, "1", "1", "1")

	tests := []struct {
		name   string
		parent *model.ContractItem
		child  model.ItemType
		want   error
	}{
		{"root stage", nil, model.ItemTypeStage, nil},
		{"root item", nil, model.ItemTypeItem, nil},
		{"skip ranks", &stage, model.ItemTypeSubgroup, nil},
		{"same rank", &group, model.ItemTypeGroup, nil},
		{"item under group", &group, model.ItemTypeItem, nil},
		{"inversion", &group, model.ItemTypeStage, ErrTypeHierarchy},
		{"under item", &item, model.ItemTypeItem, ErrTypeHierarchy},
		{"unknown type", nil, model.ItemType("FLOOR"), ErrTypeHierarchy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckParent(tt.parent, tt.child)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCheckReparent(t *testing.T) {
	s := newSampleTree()
	tree := s.tree()

	assert.NoError(t, CheckReparent(tree, s.C, ptr(s.G1)))
	assert.NoError(t, CheckReparent(tree, s.G1, nil))
	assert.NoError(t, CheckReparent(tree, s.G1, ptr(s.S2)))

	assert.ErrorIs(t, CheckReparent(tree, s.S1, ptr(s.S1)), ErrCycle)
	assert.ErrorIs(t, CheckReparent(tree, s.S1, ptr(s.G1)), ErrCycle)
	assert.ErrorIs(t, CheckReparent(tree, s.S1, ptr(s.A)), ErrCycle)
	assert.ErrorIs(t, CheckReparent(tree, s.B, ptr(s.A)), ErrTypeHierarchy)
	assert.ErrorIs(t, CheckReparent(tree, s.S2, ptr(s.G1)), ErrTypeHierarchy)
	assert.ErrorIs(t, CheckReparent(tree, uuid.New(), nil), ErrNotFound)
	assert.ErrorIs(t, CheckReparent(tree, s.A, ptr(uuid.New())), ErrNotFound)
}

func TestCheckInsertRejectsForeignParent(t *testing.T) {
	s := newSampleTree()
	tree := s.tree()

	err := CheckInsert(tree, uuid.New(), ptr(s.G1), model.ItemTypeItem)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NoError(t, CheckInsert(tree, testContractID, ptr(s.G1), model.ItemTypeItem))
	assert.ErrorIs(t, CheckInsert(tree, testContractID, ptr(s.A), model.ItemTypeItem), ErrTypeHierarchy)
}

func TestCheckRetype(t *testing.T) {
	s := newSampleTree()
	tree := s.tree()

	assert.NoError(t, CheckRetype(tree, s.G1, model.ItemTypeSubgroup))
	assert.NoError(t, CheckRetype(tree, s.G1, model.ItemTypeSubstage))
	assert.ErrorIs(t, CheckRetype(tree, s.G1, model.ItemTypeItem), ErrTypeHierarchy)
	assert.ErrorIs(t, CheckRetype(tree, s.S1, model.ItemTypeSubgroup), ErrTypeHierarchy)
	assert.NoError(t, CheckRetype(tree, s.S2, model.ItemTypeItem))
}

func TestCheckLeafFields(t *testing.T) {
	unit := "m2"
	qty := decimal10()

	assert.NoError(t, CheckLeafFields(model.ItemTypeItem, &unit, qty, qty))
	assert.ErrorIs(t, CheckLeafFields(model.ItemTypeGroup, &unit, nullDecimal(), nullDecimal()), ErrInvalidInput)
	assert.ErrorIs(t, CheckLeafFields(model.ItemTypeStage, nil, qty, nullDecimal()), ErrInvalidInput)
	assert.NoError(t, CheckLeafFields(model.ItemTypeStage, nil, nullDecimal(), nullDecimal()))

	negative := qty
	negative.Decimal = negative.Decimal.Neg()
	err := CheckLeafFields(model.ItemTypeItem, &unit, negative, qty)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
