package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/snowops-boq/internal/boq"
	"github.com/nurpe/snowops-boq/internal/model"
	"github.com/nurpe/snowops-boq/internal/repository"
)

// AddendumService owns the addendum lifecycle: drafting operations, approval
// with frozen totals and cancellation.
type AddendumService struct {
	contracts *repository.ContractRepository
	items     *repository.ItemRepository
	addendums *repository.AddendumRepository
	locker    *ContractLocker
	vigent    *VigentService
	log       zerolog.Logger
	now       func() time.Time
}

type CreateAddendumInput struct {
	ContractID  uuid.UUID
	Description string
	Date        time.Time
	Principal   model.Principal
}

// NewItemInput describes the item introduced by an ADD operation.
type NewItemInput struct {
	Type        model.ItemType
	Code        string
	Description string
	Unit        *string
	ParentID    *uuid.UUID
}

type OperationInput struct {
	Type         model.OperationType
	TargetItemID *uuid.UUID
	NewQuantity  decimal.NullDecimal
	NewUnitPrice decimal.NullDecimal
	NewItem      *NewItemInput
	Principal    model.Principal
}

func NewAddendumService(
	contracts *repository.ContractRepository,
	items *repository.ItemRepository,
	addendums *repository.AddendumRepository,
	locker *ContractLocker,
	vigent *VigentService,
	log zerolog.Logger,
) *AddendumService {
	return &AddendumService{
		contracts: contracts,
		items:     items,
		addendums: addendums,
		locker:    locker,
		vigent:    vigent,
		log:       log,
		now:       time.Now,
	}
}

func (s *AddendumService) Create(ctx context.Context, input CreateAddendumInput) (*model.Addendum, error) {
	if input.Principal.IsReadOnly() {
		return nil, ErrPermissionDenied
	}
	if input.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if _, err := s.contracts.Get(ctx, input.ContractID); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, input.ContractID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	addendum := &model.Addendum{
		ID:          uuid.New(),
		ContractID:  input.ContractID,
		Description: strings.TrimSpace(input.Description),
		Date:        dateOnly(input.Date),
		Status:      model.AddendumStatusDraft,
	}
	if err := s.addendums.Create(ctx, addendum); err != nil {
		return nil, err
	}
	addendum.Operations = []model.AddendumOperation{}

	s.log.Info().
		Str("contract_id", addendum.ContractID.String()).
		Str("addendum_id", addendum.ID.String()).
		Int("number", addendum.Number).
		Msg("addendum drafted")
	return addendum, nil
}

func (s *AddendumService) Get(ctx context.Context, id uuid.UUID) (*model.Addendum, error) {
	addendum, err := s.addendums.GetWithOperations(ctx, id)
	if err != nil {
		return nil, err
	}
	if addendum.Operations == nil {
		addendum.Operations = []model.AddendumOperation{}
	}
	return addendum, nil
}

// List returns every addendum of a contract ordered by number.
func (s *AddendumService) List(ctx context.Context, contractID uuid.UUID) ([]model.Addendum, error) {
	if _, err := s.contracts.Get(ctx, contractID); err != nil {
		return nil, err
	}
	addendums, err := s.addendums.ListByContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	for i := range addendums {
		if addendums[i].Operations == nil {
			addendums[i].Operations = []model.AddendumOperation{}
		}
	}
	return addendums, nil
}

// AddOperation validates op against the approved ledger and the pending
// drafts, then attaches it with a provisional value. The value is recomputed
// and frozen on approval.
func (s *AddendumService) AddOperation(ctx context.Context, addendumID uuid.UUID, input OperationInput) (*model.AddendumOperation, error) {
	if input.Principal.IsReadOnly() {
		return nil, ErrPermissionDenied
	}
	addendum, err := s.addendums.Get(ctx, addendumID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, addendum.ContractID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	l, err := loadLedger(ctx, s.items, s.addendums, addendum.ContractID)
	if err != nil {
		return nil, err
	}
	current := l.find(addendumID)
	if current == nil {
		return nil, fmt.Errorf("%w: addendum %s", ErrNotFound, addendumID)
	}
	if !current.IsDraft() {
		return nil, fmt.Errorf("%w: addendum #%d is %s", ErrInvalidState, current.Number, current.Status)
	}

	row := input.row(addendumID)
	op, err := boq.Decode(row)
	if err != nil {
		return nil, err
	}
	existing, err := boq.DecodeAll(current.Operations)
	if err != nil {
		return nil, err
	}

	validator := boq.NewValidator(l.tree, l.approved, l.drafts)
	if err := validator.Check(addendumID, existing, op); err != nil {
		return nil, err
	}

	preview := boq.Replay(l.tree, l.withEntry(boq.Entry{
		AddendumID: addendumID,
		Number:     current.Number,
		Ops:        append(existing, op),
	}))
	row.Value, _ = preview.OperationValue(op.OpID())

	if err := s.addendums.AddOperation(ctx, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *AddendumService) RemoveOperation(ctx context.Context, operationID uuid.UUID, principal model.Principal) error {
	if principal.IsReadOnly() {
		return ErrPermissionDenied
	}
	op, err := s.addendums.GetOperation(ctx, operationID)
	if err != nil {
		return err
	}
	addendum, err := s.addendums.Get(ctx, op.AddendumID)
	if err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, addendum.ContractID)
	if err != nil {
		return err
	}
	defer unlock()

	addendum, err = s.addendums.Get(ctx, op.AddendumID)
	if err != nil {
		return err
	}
	if !addendum.IsDraft() {
		return fmt.Errorf("%w: addendum #%d is %s", ErrInvalidState, addendum.Number, addendum.Status)
	}
	return s.addendums.DeleteOperation(ctx, operationID)
}

// Approve replays the ledger up to and including the addendum, freezes its
// operation values and totals and marks it APPROVED. Approving an approved
// addendum returns it unchanged.
func (s *AddendumService) Approve(ctx context.Context, addendumID uuid.UUID, principal model.Principal) (*model.Addendum, error) {
	if principal.IsReadOnly() {
		return nil, ErrPermissionDenied
	}
	addendum, err := s.addendums.Get(ctx, addendumID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, addendum.ContractID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	l, err := loadLedger(ctx, s.items, s.addendums, addendum.ContractID)
	if err != nil {
		return nil, err
	}
	current := l.find(addendumID)
	if current == nil {
		return nil, fmt.Errorf("%w: addendum %s", ErrNotFound, addendumID)
	}
	switch current.Status {
	case model.AddendumStatusApproved:
		return current, nil
	case model.AddendumStatusCancelled:
		return nil, fmt.Errorf("%w: addendum #%d is CANCELLED", ErrInvalidState, current.Number)
	}
	if len(current.Operations) == 0 {
		return nil, fmt.Errorf("%w: addendum #%d", ErrEmptyAddendum, current.Number)
	}
	if highest := maxApprovedNumber(l.addendums); highest > current.Number {
		return nil, fmt.Errorf("%w: addendum #%d is already approved, approve addendums in order", ErrInvalidState, highest)
	}

	ops, err := boq.DecodeAll(current.Operations)
	if err != nil {
		return nil, err
	}
	if err := boq.NewValidator(l.tree, l.approved, nil).CheckAll(addendumID, ops); err != nil {
		return nil, err
	}

	start := time.Now()
	entry := boq.Entry{AddendumID: addendumID, Number: current.Number, Ops: ops}
	vigent := boq.Replay(l.tree, l.withEntry(entry))
	replayDuration.Observe(time.Since(start).Seconds())

	values := make(map[uuid.UUID]decimal.Decimal, len(current.Operations))
	for i := range current.Operations {
		value, _ := vigent.OperationValue(current.Operations[i].ID)
		current.Operations[i].Value = value
		values[current.Operations[i].ID] = value
	}

	totals := vigent.AddendumTotals(addendumID)
	now := s.now().UTC()
	approvedBy := principal.UserID
	current.TotalAddition = totals.TotalAddition
	current.TotalSuppression = totals.TotalSuppression
	current.NetValue = totals.NetValue
	current.TotalsVersion = boq.Version
	current.ApprovedAt = &now
	current.ApprovedBy = &approvedBy

	if err := s.addendums.MarkApproved(ctx, current, values); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, fmt.Errorf("%w: addendum #%d is no longer a draft", ErrInvalidState, current.Number)
		}
		return nil, err
	}
	current.Status = model.AddendumStatusApproved
	current.UpdatedAt = now

	addendumTransitions.WithLabelValues("approved").Inc()
	s.vigent.Invalidate(ctx, current.ContractID)
	s.log.Info().
		Str("contract_id", current.ContractID.String()).
		Str("addendum_id", current.ID.String()).
		Int("number", current.Number).
		Str("net_value", current.NetValue.String()).
		Msg("addendum approved")
	return current, nil
}

// Cancel marks an addendum CANCELLED. Drafts lose their operations. Approved
// addendums need confirm and drop out of future replays; nothing recorded
// against them elsewhere is reversed. Cancelling a cancelled addendum returns
// it unchanged.
func (s *AddendumService) Cancel(ctx context.Context, addendumID uuid.UUID, confirm bool, principal model.Principal) (*model.Addendum, error) {
	if principal.IsReadOnly() {
		return nil, ErrPermissionDenied
	}
	addendum, err := s.addendums.Get(ctx, addendumID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, addendum.ContractID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.addendums.GetWithOperations(ctx, addendumID)
	if err != nil {
		return nil, err
	}
	from := current.Status
	switch from {
	case model.AddendumStatusCancelled:
		return current, nil
	case model.AddendumStatusApproved:
		if !confirm {
			return nil, fmt.Errorf("%w: addendum #%d", ErrConfirmationRequired, current.Number)
		}
	}

	now := s.now().UTC()
	cancelledBy := principal.UserID
	current.CancelledAt = &now
	current.CancelledBy = &cancelledBy
	if err := s.addendums.MarkCancelled(ctx, current, from); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, fmt.Errorf("%w: addendum #%d changed status", ErrInvalidState, current.Number)
		}
		return nil, err
	}
	current.Status = model.AddendumStatusCancelled
	current.UpdatedAt = now
	if from == model.AddendumStatusDraft || current.Operations == nil {
		current.Operations = []model.AddendumOperation{}
	}

	addendumTransitions.WithLabelValues("cancelled").Inc()
	level := zerolog.InfoLevel
	if from == model.AddendumStatusApproved {
		s.vigent.Invalidate(ctx, current.ContractID)
		level = zerolog.WarnLevel
	}
	s.log.WithLevel(level).
		Str("contract_id", current.ContractID.String()).
		Str("addendum_id", current.ID.String()).
		Int("number", current.Number).
		Str("from", string(from)).
		Msg("addendum cancelled")
	return current, nil
}

// Summary builds the printable summary of an addendum. Item details come from
// the vigent state just before the addendum.
func (s *AddendumService) Summary(ctx context.Context, addendumID uuid.UUID) (*model.AddendumDocument, error) {
	addendum, err := s.Get(ctx, addendumID)
	if err != nil {
		return nil, err
	}
	contract, err := s.contracts.Get(ctx, addendum.ContractID)
	if err != nil {
		return nil, err
	}
	l, err := loadLedger(ctx, s.items, s.addendums, addendum.ContractID)
	if err != nil {
		return nil, err
	}
	before := boq.Replay(l.tree, l.approvedBefore(addendum.Number))

	doc := &model.AddendumDocument{
		Contract: *contract,
		Addendum: *addendum,
		Lines:    make([]model.AddendumLine, 0, len(addendum.Operations)),
	}
	for _, row := range addendum.Operations {
		op, err := boq.Decode(row)
		if err != nil {
			return nil, err
		}
		line := model.AddendumLine{Operation: op.Kind(), Value: row.Value}
		switch o := op.(type) {
		case boq.Add:
			line.Code, line.Description, line.Unit = o.Code, o.Description, o.Unit
			line.Quantity, line.UnitPrice = decimalPtr(o.Quantity), decimalPtr(o.UnitPrice)
		case boq.Suppress:
			line.Code, line.Description, line.Unit = describeTarget(before, o.Target)
		case boq.ModifyQty:
			line.Code, line.Description, line.Unit = describeTarget(before, o.Target)
			line.Quantity = decimalPtr(o.Quantity)
		case boq.ModifyPrice:
			line.Code, line.Description, line.Unit = describeTarget(before, o.Target)
			line.UnitPrice = decimalPtr(o.UnitPrice)
		case boq.ModifyBoth:
			line.Code, line.Description, line.Unit = describeTarget(before, o.Target)
			line.Quantity, line.UnitPrice = decimalPtr(o.Quantity), decimalPtr(o.UnitPrice)
		}
		doc.Lines = append(doc.Lines, line)
	}
	return doc, nil
}

func describeTarget(v *boq.Vigent, target uuid.UUID) (code, description, unit string) {
	state, ok := v.State(target)
	if !ok {
		return target.String(), "", ""
	}
	return state.Code, state.Description, state.Unit
}

func (in OperationInput) row(addendumID uuid.UUID) model.AddendumOperation {
	row := model.AddendumOperation{
		ID:           uuid.New(),
		AddendumID:   addendumID,
		Type:         in.Type,
		TargetItemID: in.TargetItemID,
		NewQuantity:  in.NewQuantity,
		NewUnitPrice: in.NewUnitPrice,
	}
	if in.NewItem != nil {
		itemType := in.NewItem.Type
		if itemType == "" {
			itemType = model.ItemTypeItem
		}
		code := strings.TrimSpace(in.NewItem.Code)
		description := strings.TrimSpace(in.NewItem.Description)
		row.NewItemType = &itemType
		row.NewItemCode = &code
		row.NewItemDescription = &description
		row.NewItemUnit = in.NewItem.Unit
		row.NewItemParentID = in.NewItem.ParentID
	}
	return row
}

func decimalPtr(value decimal.Decimal) *decimal.Decimal {
	return &value
}

func dateOnly(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}
