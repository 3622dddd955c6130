package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/snowops-boq/internal/boq"
	"github.com/nurpe/snowops-boq/internal/model"
	"github.com/nurpe/snowops-boq/internal/repository"
)

// TreeService edits the base bill of quantities of a contract.
type TreeService struct {
	contracts *repository.ContractRepository
	items     *repository.ItemRepository
	addendums *repository.AddendumRepository
	locker    *ContractLocker
	vigent    *VigentService
	log       zerolog.Logger
}

// EditOptions carries the caller of a tree mutation. Contracts with approved
// addendums accept edits only with UnlockEditing set.
type EditOptions struct {
	Principal     model.Principal
	UnlockEditing bool
}

type CreateContractInput struct {
	Code      string
	Name      string
	Principal model.Principal
}

// ItemInput describes a node. ParentID is used by Insert only; moves go
// through Reparent.
type ItemInput struct {
	ParentID            *uuid.UUID
	Type                model.ItemType
	Code                string
	Description         string
	Unit                *string
	Quantity            decimal.NullDecimal
	UnitPrice           decimal.NullDecimal
	MeasurementCriteria *string
}

func NewTreeService(
	contracts *repository.ContractRepository,
	items *repository.ItemRepository,
	addendums *repository.AddendumRepository,
	locker *ContractLocker,
	vigent *VigentService,
	log zerolog.Logger,
) *TreeService {
	return &TreeService{
		contracts: contracts,
		items:     items,
		addendums: addendums,
		locker:    locker,
		vigent:    vigent,
		log:       log,
	}
}

func (s *TreeService) CreateContract(ctx context.Context, input CreateContractInput) (*model.Contract, error) {
	if input.Principal.IsReadOnly() {
		return nil, ErrPermissionDenied
	}
	code := strings.TrimSpace(input.Code)
	name := strings.TrimSpace(input.Name)
	if code == "" || name == "" {
		return nil, fmt.Errorf("%w: code and name are required", ErrInvalidInput)
	}

	exists, err := s.contracts.ExistsByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: contract %s already exists", ErrInvalidInput, code)
	}

	contract := &model.Contract{
		ID:        uuid.New(),
		Code:      code,
		Name:      name,
		CreatedBy: input.Principal.UserID,
	}
	if err := s.contracts.Create(ctx, contract); err != nil {
		return nil, err
	}
	return contract, nil
}

func (s *TreeService) GetContract(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	return s.contracts.Get(ctx, id)
}

// BaseTree returns the contract tree without any addendum applied.
func (s *TreeService) BaseTree(ctx context.Context, contractID uuid.UUID) (*boq.Rollup, error) {
	if _, err := s.contracts.Get(ctx, contractID); err != nil {
		return nil, err
	}
	rows, err := s.items.ListByContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	tree := boq.NewTree(rows)
	return boq.Aggregate(tree, boq.Replay(tree, nil)), nil
}

func (s *TreeService) IsEditLocked(ctx context.Context, contractID uuid.UUID) (bool, error) {
	count, err := s.addendums.CountApproved(ctx, contractID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *TreeService) Insert(ctx context.Context, contractID uuid.UUID, input ItemInput, opts EditOptions) (*model.ContractItem, error) {
	if err := normalizeItemInput(&input); err != nil {
		return nil, err
	}
	tree, unlock, err := s.begin(ctx, contractID, opts)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := boq.CheckInsert(tree, contractID, input.ParentID, input.Type); err != nil {
		return nil, err
	}
	if err := boq.CheckLeafFields(input.Type, input.Unit, input.Quantity, input.UnitPrice); err != nil {
		return nil, err
	}

	order, err := s.items.NextOrderIndex(ctx, contractID, input.ParentID)
	if err != nil {
		return nil, err
	}
	item := &model.ContractItem{
		ID:                  uuid.New(),
		ContractID:          contractID,
		ParentID:            input.ParentID,
		Type:                input.Type,
		Code:                input.Code,
		Description:         input.Description,
		Unit:                input.Unit,
		Quantity:            input.Quantity,
		UnitPrice:           input.UnitPrice,
		OrderIndex:          order,
		MeasurementCriteria: input.MeasurementCriteria,
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	s.vigent.Invalidate(ctx, contractID)
	return item, nil
}

// Update replaces the fields of an item. Retyping is checked against both the
// parent and the current children.
func (s *TreeService) Update(ctx context.Context, id uuid.UUID, input ItemInput, opts EditOptions) (*model.ContractItem, error) {
	if err := normalizeItemInput(&input); err != nil {
		return nil, err
	}
	existing, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tree, unlock, err := s.begin(ctx, existing.ContractID, opts)
	if err != nil {
		return nil, err
	}
	defer unlock()

	item, ok := tree.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	if input.Type != item.Type {
		if err := boq.CheckRetype(tree, id, input.Type); err != nil {
			return nil, err
		}
	}
	if err := boq.CheckLeafFields(input.Type, input.Unit, input.Quantity, input.UnitPrice); err != nil {
		return nil, err
	}

	item.Type = input.Type
	item.Code = input.Code
	item.Description = input.Description
	item.Unit = input.Unit
	item.Quantity = input.Quantity
	item.UnitPrice = input.UnitPrice
	item.MeasurementCriteria = input.MeasurementCriteria
	if err := s.items.Update(ctx, &item); err != nil {
		return nil, err
	}
	s.vigent.Invalidate(ctx, item.ContractID)
	return &item, nil
}

// Reparent moves an item, with its subtree, under parentID or to the root
// when parentID is nil. The item is appended after its new siblings.
func (s *TreeService) Reparent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID, opts EditOptions) (*model.ContractItem, error) {
	existing, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tree, unlock, err := s.begin(ctx, existing.ContractID, opts)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := boq.CheckReparent(tree, id, parentID); err != nil {
		return nil, err
	}
	item, _ := tree.Get(id)
	if sameParent(tree.Parent(id), parentID) {
		return &item, nil
	}

	order, err := s.items.NextOrderIndex(ctx, item.ContractID, parentID)
	if err != nil {
		return nil, err
	}
	if err := s.items.Reparent(ctx, id, parentID, order); err != nil {
		return nil, err
	}
	item.ParentID = parentID
	item.OrderIndex = order
	s.vigent.Invalidate(ctx, item.ContractID)
	return &item, nil
}

// Delete removes an item together with its descendants.
func (s *TreeService) Delete(ctx context.Context, id uuid.UUID, opts EditOptions) error {
	existing, err := s.items.Get(ctx, id)
	if err != nil {
		return err
	}
	tree, unlock, err := s.begin(ctx, existing.ContractID, opts)
	if err != nil {
		return err
	}
	defer unlock()

	ids := tree.Subtree(id)
	if len(ids) == 0 {
		return fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	if err := s.items.Delete(ctx, ids); err != nil {
		return err
	}
	s.vigent.Invalidate(ctx, existing.ContractID)
	s.log.Info().
		Str("contract_id", existing.ContractID.String()).
		Str("item_id", id.String()).
		Int("removed", len(ids)).
		Msg("item subtree deleted")
	return nil
}

// Reorder sets the sibling order under parentID (nil for the roots). ids must
// list every sibling exactly once.
func (s *TreeService) Reorder(ctx context.Context, contractID uuid.UUID, parentID *uuid.UUID, ids []uuid.UUID, opts EditOptions) error {
	tree, unlock, err := s.begin(ctx, contractID, opts)
	if err != nil {
		return err
	}
	defer unlock()

	var siblings []uuid.UUID
	if parentID == nil {
		siblings = tree.Roots()
	} else {
		if _, ok := tree.Get(*parentID); !ok {
			return fmt.Errorf("%w: parent item %s", ErrNotFound, *parentID)
		}
		siblings = tree.Children(*parentID)
	}

	if len(ids) != len(siblings) {
		return fmt.Errorf("%w: expected %d sibling ids, got %d", ErrInvalidInput, len(siblings), len(ids))
	}
	expected := make(map[uuid.UUID]bool, len(siblings))
	for _, id := range siblings {
		expected[id] = true
	}
	for _, id := range ids {
		if !expected[id] {
			return fmt.Errorf("%w: item %s is not a sibling or is listed twice", ErrInvalidInput, id)
		}
		expected[id] = false
	}

	if err := s.items.Reorder(ctx, ids); err != nil {
		return err
	}
	s.vigent.Invalidate(ctx, contractID)
	return nil
}

// begin checks the caller may edit the contract, takes its lock, checks the
// edit lock under it and loads the current tree.
func (s *TreeService) begin(ctx context.Context, contractID uuid.UUID, opts EditOptions) (*boq.Tree, func(), error) {
	if opts.Principal.IsReadOnly() {
		return nil, nil, ErrPermissionDenied
	}
	if _, err := s.contracts.Get(ctx, contractID); err != nil {
		return nil, nil, err
	}

	unlock, err := s.locker.Lock(ctx, contractID)
	if err != nil {
		return nil, nil, err
	}
	if !opts.UnlockEditing {
		locked, err := s.IsEditLocked(ctx, contractID)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		if locked {
			unlock()
			return nil, nil, ErrEditLocked
		}
	}
	rows, err := s.items.ListByContract(ctx, contractID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return boq.NewTree(rows), unlock, nil
}

func normalizeItemInput(input *ItemInput) error {
	input.Code = strings.TrimSpace(input.Code)
	input.Description = strings.TrimSpace(input.Description)
	if input.Code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if !input.Type.Valid() {
		return fmt.Errorf("%w: unknown item type %q", ErrInvalidInput, input.Type)
	}
	if input.Unit != nil {
		unit := strings.TrimSpace(*input.Unit)
		if unit == "" {
			input.Unit = nil
		} else {
			input.Unit = &unit
		}
	}
	return nil
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
