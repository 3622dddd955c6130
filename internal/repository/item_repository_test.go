package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/snowops-boq/internal/boq"
	"github.com/nurpe/snowops-boq/internal/model"
	"github.com/nurpe/snowops-boq/internal/testutil"
)

func TestItemRepository_ListAndGet(t *testing.T) {
	database := testutil.SetupTestDB(t)
	sample := testutil.SeedSample(t, database)
	repo := NewItemRepository(database)
	ctx := context.Background()

	items, err := repo.ListByContract(ctx, sample.Contract.ID)
	require.NoError(t, err)
	assert.Len(t, items, 5)

	item, err := repo.Get(ctx, sample.A.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", item.Code)
	assert.True(t, item.Quantity.Decimal.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, item.ParentID)
	assert.Equal(t, sample.Group.ID, *item.ParentID)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, boq.ErrNotFound)
}

func TestItemRepository_SoftDelete(t *testing.T) {
	database := testutil.SetupTestDB(t)
	sample := testutil.SeedSample(t, database)
	repo := NewItemRepository(database)
	ctx := context.Background()

	require.NoError(t, repo.Delete(ctx, []uuid.UUID{sample.Group.ID, sample.A.ID, sample.B.ID}))

	items, err := repo.ListByContract(ctx, sample.Contract.ID)
	require.NoError(t, err)
	codes := make([]string, 0, len(items))
	for _, item := range items {
		codes = append(codes, item.Code)
	}
	assert.ElementsMatch(t, []string{"S1", "C"}, codes)

	_, err = repo.Get(ctx, sample.A.ID)
	assert.ErrorIs(t, err, boq.ErrNotFound)

	var raw int64
	require.NoError(t, database.Unscoped().Model(&model.ContractItem{}).Where("id = ?", sample.A.ID).Count(&raw).Error)
	assert.EqualValues(t, 1, raw)
}

func TestItemRepository_UpdateClearsLeafFields(t *testing.T) {
	database := testutil.SetupTestDB(t)
	sample := testutil.SeedSample(t, database)
	repo := NewItemRepository(database)
	ctx := context.Background()

	item, err := repo.Get(ctx, sample.A.ID)
	require.NoError(t, err)
	item.Type = model.ItemTypeSubgroup
	item.Unit = nil
	item.Quantity = decimal.NullDecimal{}
	item.UnitPrice = decimal.NullDecimal{}
	require.NoError(t, repo.Update(ctx, item))

	reloaded, err := repo.Get(ctx, sample.A.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemTypeSubgroup, reloaded.Type)
	assert.Nil(t, reloaded.Unit)
	assert.False(t, reloaded.Quantity.Valid)
	assert.False(t, reloaded.UnitPrice.Valid)
}

func TestItemRepository_OrderIndexes(t *testing.T) {
	database := testutil.SetupTestDB(t)
	sample := testutil.SeedSample(t, database)
	repo := NewItemRepository(database)
	ctx := context.Background()

	next, err := repo.NextOrderIndex(ctx, sample.Contract.ID, &sample.Group.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, next)

	next, err = repo.NextOrderIndex(ctx, sample.Contract.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	next, err = repo.NextOrderIndex(ctx, sample.Contract.ID, &sample.A.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, next)

	require.NoError(t, repo.Reorder(ctx, []uuid.UUID{sample.B.ID, sample.A.ID}))
	a, err := repo.Get(ctx, sample.A.ID)
	require.NoError(t, err)
	b, err := repo.Get(ctx, sample.B.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a.OrderIndex)
	assert.Equal(t, 0, b.OrderIndex)

	require.NoError(t, repo.Reparent(ctx, sample.C.ID, &sample.Group.ID, 2))
	c, err := repo.Get(ctx, sample.C.ID)
	require.NoError(t, err)
	require.NotNil(t, c.ParentID)
	assert.Equal(t, sample.Group.ID, *c.ParentID)
	assert.Equal(t, 2, c.OrderIndex)
}
