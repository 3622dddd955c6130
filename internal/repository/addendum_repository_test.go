package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nurpe/snowops-boq/internal/boq"
	"github.com/nurpe/snowops-boq/internal/model"
	"github.com/nurpe/snowops-boq/internal/testutil"
)

func newAddendum(contractID uuid.UUID) *model.Addendum {
	return &model.Addendum{
		ID:          uuid.New(),
		ContractID:  contractID,
		Description: "change order",
		Date:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:      model.AddendumStatusDraft,
	}
}

func createAddendum(t *testing.T, repo *AddendumRepository, contractID uuid.UUID) *model.Addendum {
	t.Helper()
	addendum := newAddendum(contractID)
	require.NoError(t, repo.Create(context.Background(), addendum))
	return addendum
}

func modifyQty(addendumID, target uuid.UUID, quantity int64) *model.AddendumOperation {
	return &model.AddendumOperation{
		ID:           uuid.New(),
		AddendumID:   addendumID,
		Type:         model.OperationModifyQty,
		TargetItemID: &target,
		NewQuantity:  decimal.NewNullDecimal(decimal.NewFromInt(quantity)),
	}
}

func TestAddendumRepository_NumbersPerContract(t *testing.T) {
	database := testutil.SetupTestDB(t)
	first := testutil.SeedContract(t, database, "CT-1")
	second := testutil.SeedContract(t, database, "CT-2")
	repo := NewAddendumRepository(database)

	a1 := createAddendum(t, repo, first.ID)
	a2 := createAddendum(t, repo, first.ID)
	b1 := createAddendum(t, repo, second.ID)

	assert.Equal(t, 1, a1.Number)
	assert.Equal(t, 2, a2.Number)
	assert.Equal(t, 1, b1.Number)

	stored, err := repo.Get(context.Background(), a2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AddendumStatusDraft, stored.Status)
	assert.Equal(t, "2026-03-01", stored.Date.Format("2006-01-02"))
}

func TestAddendumRepository_Operations(t *testing.T) {
	database := testutil.SetupTestDB(t)
	sample := testutil.SeedSample(t, database)
	repo := NewAddendumRepository(database)
	ctx := context.Background()

	addendum := createAddendum(t, repo, sample.Contract.ID)
	first := modifyQty(addendum.ID, sample.A.ID, 15)
	second := modifyQty(addendum.ID, sample.B.ID, 3)
	require.NoError(t, repo.AddOperation(ctx, first))
	require.NoError(t, repo.AddOperation(ctx, second))
	assert.Equal(t, 1, first.Sequence)
	assert.Equal(t, 2, second.Sequence)

	loaded, err := repo.GetWithOperations(ctx, addendum.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Operations, 2)
	assert.Equal(t, first.ID, loaded.Operations[0].ID)
	assert.True(t, loaded.Operations[0].NewQuantity.Decimal.Equal(decimal.NewFromInt(15)))

	require.NoError(t, repo.DeleteOperation(ctx, first.ID))
	err = repo.DeleteOperation(ctx, first.ID)
	assert.ErrorIs(t, err, boq.ErrNotFound)

	_, err = repo.GetOperation(ctx, first.ID)
	assert.ErrorIs(t, err, boq.ErrNotFound)

	third := modifyQty(addendum.ID, sample.A.ID, 20)
	require.NoError(t, repo.AddOperation(ctx, third))
	assert.Equal(t, 3, third.Sequence)
}

func TestAddendumRepository_ApproveAndList(t *testing.T) {
	database := testutil.SetupTestDB(t)
	sample := testutil.SeedSample(t, database)
	repo := NewAddendumRepository(database)
	ctx := context.Background()

	approved := createAddendum(t, repo, sample.Contract.ID)
	op := modifyQty(approved.ID, sample.A.ID, 15)
	require.NoError(t, repo.AddOperation(ctx, op))
	draft := createAddendum(t, repo, sample.Contract.ID)
	require.NoError(t, repo.AddOperation(ctx, modifyQty(draft.ID, sample.B.ID, 4)))

	now := time.Now().UTC()
	by := "user-1"
	approved.TotalAddition = decimal.NewFromInt(500)
	approved.TotalSuppression = decimal.Zero
	approved.NetValue = decimal.NewFromInt(500)
	approved.TotalsVersion = boq.Version
	approved.ApprovedAt = &now
	approved.ApprovedBy = &by
	require.NoError(t, repo.MarkApproved(ctx, approved, map[uuid.UUID]decimal.Decimal{op.ID: decimal.NewFromInt(500)}))

	err := repo.MarkApproved(ctx, approved, nil)
	assert.ErrorIs(t, err, ErrStatusChanged)

	maxNumber, err := repo.MaxApprovedNumber(ctx, sample.Contract.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, maxNumber)

	count, err := repo.CountApproved(ctx, sample.Contract.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	list, err := repo.ListByContract(ctx, sample.Contract.ID, model.AddendumStatusApproved)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, approved.ID, list[0].ID)
	assert.True(t, list[0].NetValue.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, boq.Version, list[0].TotalsVersion)
	require.Len(t, list[0].Operations, 1)
	assert.True(t, list[0].Operations[0].Value.Equal(decimal.NewFromInt(500)))

	all, err := repo.ListByContract(ctx, sample.Contract.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].Number)
	assert.Equal(t, 2, all[1].Number)
	assert.Len(t, all[1].Operations, 1)
}

func TestAddendumRepository_Cancel(t *testing.T) {
	database := testutil.SetupTestDB(t)
	sample := testutil.SeedSample(t, database)
	repo := NewAddendumRepository(database)
	ctx := context.Background()

	draft := createAddendum(t, repo, sample.Contract.ID)
	require.NoError(t, repo.AddOperation(ctx, modifyQty(draft.ID, sample.A.ID, 1)))

	now := time.Now().UTC()
	by := "user-1"
	draft.CancelledAt = &now
	draft.CancelledBy = &by
	require.NoError(t, repo.MarkCancelled(ctx, draft, model.AddendumStatusDraft))

	stored, err := repo.GetWithOperations(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AddendumStatusCancelled, stored.Status)
	assert.Empty(t, stored.Operations)
	require.NotNil(t, stored.CancelledBy)
	assert.Equal(t, "user-1", *stored.CancelledBy)

	err = repo.MarkCancelled(ctx, draft, model.AddendumStatusDraft)
	assert.ErrorIs(t, err, ErrStatusChanged)
}

func TestContractRepository(t *testing.T) {
	database := testutil.SetupTestDB(t)
	repo := NewContractRepository(database)
	ctx := context.Background()

	contract := &model.Contract{ID: uuid.New(), Code: "CT-9", Name: "Road works"}
	require.NoError(t, repo.Create(ctx, contract))

	exists, err := repo.ExistsByCode(ctx, "CT-9")
	require.NoError(t, err)
	assert.True(t, exists)

	loaded, err := repo.Get(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, "Road works", loaded.Name)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, boq.ErrNotFound)
	assert.NotErrorIs(t, err, gorm.ErrRecordNotFound)
}
