package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/snowops-boq/internal/model"
	"github.com/nurpe/snowops-boq/internal/repository"
	"github.com/nurpe/snowops-boq/internal/testutil"
)

func manager() EditOptions {
	return EditOptions{Principal: testutil.Manager()}
}

func leafInput(parent *uuid.UUID, code, quantity, price string) ItemInput {
	unit := "m2"
	return ItemInput{
		ParentID:  parent,
		Type:      model.ItemTypeItem,
		Code:      code,
		Unit:      &unit,
		Quantity:  amount(quantity),
		UnitPrice: amount(price),
	}
}

func TestTreeService_CreateContract(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contract, err := f.tree.CreateContract(ctx, CreateContractInput{Code: " CT-77 ", Name: "Bridge", Principal: testutil.Manager()})
	require.NoError(t, err)
	assert.Equal(t, "CT-77", contract.Code)
	assert.Equal(t, "user-manager", contract.CreatedBy)

	_, err = f.tree.CreateContract(ctx, CreateContractInput{Code: "CT-77", Name: "Again", Principal: testutil.Manager()})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.tree.CreateContract(ctx, CreateContractInput{Code: "CT-78", Principal: testutil.Manager()})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.tree.CreateContract(ctx, CreateContractInput{Code: "CT-79", Name: "x", Principal: testutil.Viewer()})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	loaded, err := f.tree.GetContract(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bridge", loaded.Name)
}

func TestTreeService_Insert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contractID := f.sample.Contract.ID

	item, err := f.tree.Insert(ctx, contractID, leafInput(&f.sample.Group.ID, "D", "3", "10"), manager())
	require.NoError(t, err)
	assert.Equal(t, 2, item.OrderIndex)

	subgroup, err := f.tree.Insert(ctx, contractID, ItemInput{ParentID: &f.sample.Stage.ID, Type: model.ItemTypeSubgroup, Code: "SG"}, manager())
	require.NoError(t, err)
	assert.Equal(t, 2, subgroup.OrderIndex)

	unit := "m"
	tests := []struct {
		name  string
		input ItemInput
		err   error
	}{
		{"stage under group", ItemInput{ParentID: &f.sample.Group.ID, Type: model.ItemTypeStage, Code: "S9"}, ErrTypeHierarchy},
		{"child of an item", leafInput(&f.sample.A.ID, "A1", "1", "1"), ErrTypeHierarchy},
		{"unknown parent", leafInput(ptrUUID(uuid.New()), "Q", "1", "1"), ErrNotFound},
		{"container with unit", ItemInput{Type: model.ItemTypeStage, Code: "S3", Unit: &unit}, ErrInvalidInput},
		{"negative price", leafInput(nil, "Q", "1", "-5"), ErrInvalidInput},
		{"missing code", ItemInput{Type: model.ItemTypeStage}, ErrInvalidInput},
		{"unknown type", ItemInput{Type: "BLOCK", Code: "B"}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tree.Insert(ctx, contractID, tt.input, manager())
			assert.ErrorIs(t, err, tt.err)
		})
	}

	rollup, err := f.tree.BaseTree(ctx, contractID)
	require.NoError(t, err)
	requireDecimal(t, "1430", rollup.BaseTotal)
}

func TestTreeService_ReparentIntoDescendantFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tree.Reparent(ctx, f.sample.Stage.ID, &f.sample.Group.ID, manager())
	require.ErrorIs(t, err, ErrCycle)

	_, err = f.tree.Reparent(ctx, f.sample.Group.ID, &f.sample.Group.ID, manager())
	require.ErrorIs(t, err, ErrCycle)

	rollup, err := f.tree.BaseTree(ctx, f.sample.Contract.ID)
	require.NoError(t, err)
	require.Len(t, rollup.Roots, 1)
	assert.Equal(t, f.sample.Stage.ID, rollup.Roots[0].ID)
	group := rollup.Find(f.sample.Group.ID)
	require.NotNil(t, group)
	require.NotNil(t, group.ParentID)
	assert.Equal(t, f.sample.Stage.ID, *group.ParentID)
}

func TestTreeService_Reparent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	moved, err := f.tree.Reparent(ctx, f.sample.C.ID, &f.sample.Group.ID, manager())
	require.NoError(t, err)
	assert.Equal(t, 2, moved.OrderIndex)

	rollup, err := f.tree.BaseTree(ctx, f.sample.Contract.ID)
	require.NoError(t, err)
	requireDecimal(t, "1400", rollup.Find(f.sample.Group.ID).BaseSubtotal)

	_, err = f.tree.Reparent(ctx, f.sample.B.ID, &f.sample.A.ID, manager())
	assert.ErrorIs(t, err, ErrTypeHierarchy)

	_, err = f.tree.Reparent(ctx, f.sample.Group.ID, nil, manager())
	require.NoError(t, err)
	rollup, err = f.tree.BaseTree(ctx, f.sample.Contract.ID)
	require.NoError(t, err)
	assert.Len(t, rollup.Roots, 2)
}

func TestTreeService_UpdateAndRetype(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := leafInput(nil, "A-2", "12", "100")
	updated, err := f.tree.Update(ctx, f.sample.A.ID, input, manager())
	require.NoError(t, err)
	assert.Equal(t, "A-2", updated.Code)
	require.NotNil(t, updated.ParentID)
	assert.Equal(t, f.sample.Group.ID, *updated.ParentID)

	_, err = f.tree.Update(ctx, f.sample.Group.ID, leafInput(nil, "G1", "1", "1"), manager())
	assert.ErrorIs(t, err, ErrTypeHierarchy)

	_, err = f.tree.Update(ctx, f.sample.Group.ID, ItemInput{Type: model.ItemTypeLevel, Code: "G1"}, manager())
	require.NoError(t, err)

	_, err = f.tree.Update(ctx, uuid.New(), input, manager())
	assert.ErrorIs(t, err, ErrNotFound)

	rollup, err := f.tree.BaseTree(ctx, f.sample.Contract.ID)
	require.NoError(t, err)
	requireDecimal(t, "1600", rollup.BaseTotal)
}

func TestTreeService_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.tree.Delete(ctx, f.sample.Group.ID, manager()))

	rollup, err := f.tree.BaseTree(ctx, f.sample.Contract.ID)
	require.NoError(t, err)
	requireDecimal(t, "300", rollup.BaseTotal)
	assert.Nil(t, rollup.Find(f.sample.A.ID))
	assert.Nil(t, rollup.Find(f.sample.Group.ID))

	assert.ErrorIs(t, f.tree.Delete(ctx, f.sample.A.ID, manager()), ErrNotFound)
}

func TestTreeService_Reorder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contractID := f.sample.Contract.ID
	group := f.sample.Group.ID

	err := f.tree.Reorder(ctx, contractID, &group, []uuid.UUID{f.sample.B.ID}, manager())
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = f.tree.Reorder(ctx, contractID, &group, []uuid.UUID{f.sample.B.ID, f.sample.B.ID}, manager())
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = f.tree.Reorder(ctx, contractID, &group, []uuid.UUID{f.sample.B.ID, f.sample.C.ID}, manager())
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, f.tree.Reorder(ctx, contractID, &group, []uuid.UUID{f.sample.B.ID, f.sample.A.ID}, manager()))

	rollup, err := f.tree.BaseTree(ctx, contractID)
	require.NoError(t, err)
	children := rollup.Find(group).Children
	require.Len(t, children, 2)
	assert.Equal(t, "B", children[0].Code)
	assert.Equal(t, "A", children[1].Code)
}

func TestTreeService_EditLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	addendum := f.draft(t)
	f.attach(t, addendum.ID, modifyQty(f.sample.B.ID, "3"))
	f.approve(t, addendum.ID)

	locked, err := f.tree.IsEditLocked(ctx, f.sample.Contract.ID)
	require.NoError(t, err)
	assert.True(t, locked)

	input := leafInput(nil, "C", "2", "300")
	_, err = f.tree.Update(ctx, f.sample.C.ID, input, manager())
	assert.ErrorIs(t, err, ErrEditLocked)

	unlocked := manager()
	unlocked.UnlockEditing = true
	_, err = f.tree.Update(ctx, f.sample.C.ID, input, unlocked)
	require.NoError(t, err)

	view := f.view(t)
	requireDecimal(t, "1750", view.ActiveTotal)

	_, err = f.tree.Update(ctx, f.sample.C.ID, input, EditOptions{Principal: testutil.Viewer(), UnlockEditing: true})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestTreeService_EditLockCheckedUnderContractLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contractID := f.sample.Contract.ID

	addendum := f.draft(t)
	f.attach(t, addendum.ID, modifyQty(f.sample.B.ID, "3"))

	unlock, err := f.locker.Lock(ctx, contractID)
	require.NoError(t, err)

	result := make(chan error, 1)
	go func() {
		_, err := f.tree.Update(ctx, f.sample.C.ID, leafInput(nil, "C", "2", "300"), manager())
		result <- err
	}()
	require.Eventually(t, func() bool {
		return f.locker.waiters(contractID) == 2
	}, time.Second, time.Millisecond)

	// an approval commits while the edit waits for the lock
	require.NoError(t, f.db.Model(&model.Addendum{}).
		Where("id = ?", addendum.ID).
		Update("status", model.AddendumStatusApproved).Error)
	unlock()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrEditLocked)
	case <-time.After(5 * time.Second):
		t.Fatal("update did not finish")
	}
	assert.Equal(t, 0, f.locker.held())

	item, err := repository.NewItemRepository(f.db).Get(ctx, f.sample.C.ID)
	require.NoError(t, err)
	assert.True(t, item.Quantity.Decimal.Equal(decimal.NewFromInt(1)))
}

func TestTreeService_BaseTreeIgnoresAddendums(t *testing.T) {
	f := newFixture(t)

	addendum := f.draft(t)
	f.attach(t, addendum.ID, suppress(f.sample.C.ID))
	f.approve(t, addendum.ID)

	rollup, err := f.tree.BaseTree(context.Background(), f.sample.Contract.ID)
	require.NoError(t, err)
	assert.True(t, rollup.BaseTotal.Equal(decimal.NewFromInt(1400)))
	assert.True(t, rollup.ActiveTotal.Equal(decimal.NewFromInt(1400)))
}
