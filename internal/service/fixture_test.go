package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nurpe/snowops-boq/internal/boq"
	"github.com/nurpe/snowops-boq/internal/model"
	"github.com/nurpe/snowops-boq/internal/repository"
	"github.com/nurpe/snowops-boq/internal/testutil"
)

type fixture struct {
	db        *gorm.DB
	sample    testutil.SampleContract
	cache     *MemoryVigentCache
	locker    *ContractLocker
	vigent    *VigentService
	tree      *TreeService
	addendums *AddendumService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := testutil.SetupTestDB(t)
	log := testutil.Logger()

	contracts := repository.NewContractRepository(database)
	items := repository.NewItemRepository(database)
	addendums := repository.NewAddendumRepository(database)
	locker := NewContractLocker()
	cache := NewMemoryVigentCache(time.Minute)
	vigent := NewVigentService(contracts, items, addendums, cache, log)

	return &fixture{
		db:        database,
		sample:    testutil.SeedSample(t, database),
		cache:     cache,
		locker:    locker,
		vigent:    vigent,
		tree:      NewTreeService(contracts, items, addendums, locker, vigent, log),
		addendums: NewAddendumService(contracts, items, addendums, locker, vigent, log),
	}
}

func (f *fixture) draft(t *testing.T) *model.Addendum {
	t.Helper()
	addendum, err := f.addendums.Create(context.Background(), CreateAddendumInput{
		ContractID:  f.sample.Contract.ID,
		Description: "change order",
		Date:        time.Date(2026, 5, 4, 15, 30, 0, 0, time.UTC),
		Principal:   testutil.Manager(),
	})
	require.NoError(t, err)
	return addendum
}

func (f *fixture) attach(t *testing.T, addendumID uuid.UUID, input OperationInput) *model.AddendumOperation {
	t.Helper()
	input.Principal = testutil.Manager()
	op, err := f.addendums.AddOperation(context.Background(), addendumID, input)
	require.NoError(t, err)
	return op
}

func (f *fixture) approve(t *testing.T, addendumID uuid.UUID) *model.Addendum {
	t.Helper()
	addendum, err := f.addendums.Approve(context.Background(), addendumID, testutil.Manager())
	require.NoError(t, err)
	return addendum
}

func (f *fixture) view(t *testing.T) *VigentView {
	t.Helper()
	view, err := f.vigent.Compute(context.Background(), f.sample.Contract.ID)
	require.NoError(t, err)
	return view
}

func modifyQty(target uuid.UUID, quantity string) OperationInput {
	return OperationInput{
		Type:         model.OperationModifyQty,
		TargetItemID: &target,
		NewQuantity:  amount(quantity),
	}
}

func modifyPrice(target uuid.UUID, price string) OperationInput {
	return OperationInput{
		Type:         model.OperationModifyPrice,
		TargetItemID: &target,
		NewUnitPrice: amount(price),
	}
}

func suppress(target uuid.UUID) OperationInput {
	return OperationInput{Type: model.OperationSuppress, TargetItemID: &target}
}

func addItem(parent *uuid.UUID, code, quantity, price string) OperationInput {
	unit := "pcs"
	return OperationInput{
		Type:         model.OperationAdd,
		NewQuantity:  amount(quantity),
		NewUnitPrice: amount(price),
		NewItem: &NewItemInput{
			Type:        model.ItemTypeItem,
			Code:        code,
			Description: "added " + code,
			Unit:        &unit,
			ParentID:    parent,
		},
	}
}

func amount(raw string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(raw))
}

func requireDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.Truef(t, actual.Equal(decimal.RequireFromString(expected)), "expected %s, got %s", expected, actual)
}

func findNode(nodes []*boq.Node, id uuid.UUID) *boq.Node {
	for _, node := range nodes {
		if node.ID == id {
			return node
		}
		if found := findNode(node.Children, id); found != nil {
			return found
		}
	}
	return nil
}
