package boq

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/snowops-boq/internal/model"
)

// Op is one decoded addendum operation. The concrete types are Suppress, Add,
// ModifyQty, ModifyPrice and ModifyBoth.
type Op interface {
	OpID() uuid.UUID
	Kind() model.OperationType
	isOp()
}

type Suppress struct {
	ID     uuid.UUID
	Target uuid.UUID
}

// Add introduces a new ITEM. Its id in vigent state is the operation id.
type Add struct {
	ID          uuid.UUID
	Parent      *uuid.UUID
	Code        string
	Description string
	Unit        string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

type ModifyQty struct {
	ID       uuid.UUID
	Target   uuid.UUID
	Quantity decimal.Decimal
}

type ModifyPrice struct {
	ID        uuid.UUID
	Target    uuid.UUID
	UnitPrice decimal.Decimal
}

type ModifyBoth struct {
	ID        uuid.UUID
	Target    uuid.UUID
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

func (o Suppress) OpID() uuid.UUID    { return o.ID }
func (o Add) OpID() uuid.UUID         { return o.ID }
func (o ModifyQty) OpID() uuid.UUID   { return o.ID }
func (o ModifyPrice) OpID() uuid.UUID { return o.ID }
func (o ModifyBoth) OpID() uuid.UUID  { return o.ID }

func (Suppress) Kind() model.OperationType    { return model.OperationSuppress }
func (Add) Kind() model.OperationType         { return model.OperationAdd }
func (ModifyQty) Kind() model.OperationType   { return model.OperationModifyQty }
func (ModifyPrice) Kind() model.OperationType { return model.OperationModifyPrice }
func (ModifyBoth) Kind() model.OperationType  { return model.OperationModifyBoth }

func (Suppress) isOp()    {}
func (Add) isOp()         {}
func (ModifyQty) isOp()   {}
func (ModifyPrice) isOp() {}
func (ModifyBoth) isOp()  {}

// TargetOf returns the existing item an operation acts on. ADD has none.
func TargetOf(op Op) (uuid.UUID, bool) {
	switch o := op.(type) {
	case Suppress:
		return o.Target, true
	case ModifyQty:
		return o.Target, true
	case ModifyPrice:
		return o.Target, true
	case ModifyBoth:
		return o.Target, true
	default:
		return uuid.Nil, false
	}
}

// Decode turns a persisted operation row into its typed form, rejecting rows
// whose fields do not match the operation type.
func Decode(row model.AddendumOperation) (Op, error) {
	switch row.Type {
	case model.OperationSuppress:
		if err := rejectFields(row, true, true); err != nil {
			return nil, err
		}
		target, err := requireTarget(row)
		if err != nil {
			return nil, err
		}
		return Suppress{ID: row.ID, Target: target}, nil

	case model.OperationAdd:
		if row.TargetItemID != nil {
			return nil, fmt.Errorf("%w: ADD does not take a target item", ErrInvalidInput)
		}
		if row.NewItemType != nil && *row.NewItemType != model.ItemTypeItem {
			return nil, fmt.Errorf("%w: ADD introduces ITEM nodes only, got %s", ErrTypeHierarchy, *row.NewItemType)
		}
		if row.NewItemCode == nil || *row.NewItemCode == "" {
			return nil, fmt.Errorf("%w: ADD requires a code", ErrInvalidInput)
		}
		quantity, err := requireAmount(row.NewQuantity, "new_quantity")
		if err != nil {
			return nil, err
		}
		price, err := requireAmount(row.NewUnitPrice, "new_unit_price")
		if err != nil {
			return nil, err
		}
		return Add{
			ID:          row.ID,
			Parent:      row.NewItemParentID,
			Code:        *row.NewItemCode,
			Description: deref(row.NewItemDescription),
			Unit:        deref(row.NewItemUnit),
			Quantity:    quantity,
			UnitPrice:   price,
		}, nil

	case model.OperationModifyQty:
		if err := rejectFields(row, false, true); err != nil {
			return nil, err
		}
		target, err := requireTarget(row)
		if err != nil {
			return nil, err
		}
		quantity, err := requireAmount(row.NewQuantity, "new_quantity")
		if err != nil {
			return nil, err
		}
		return ModifyQty{ID: row.ID, Target: target, Quantity: quantity}, nil

	case model.OperationModifyPrice:
		if err := rejectFields(row, true, false); err != nil {
			return nil, err
		}
		target, err := requireTarget(row)
		if err != nil {
			return nil, err
		}
		price, err := requireAmount(row.NewUnitPrice, "new_unit_price")
		if err != nil {
			return nil, err
		}
		return ModifyPrice{ID: row.ID, Target: target, UnitPrice: price}, nil

	case model.OperationModifyBoth:
		if err := rejectFields(row, false, false); err != nil {
			return nil, err
		}
		target, err := requireTarget(row)
		if err != nil {
			return nil, err
		}
		quantity, err := requireAmount(row.NewQuantity, "new_quantity")
		if err != nil {
			return nil, err
		}
		price, err := requireAmount(row.NewUnitPrice, "new_unit_price")
		if err != nil {
			return nil, err
		}
		return ModifyBoth{ID: row.ID, Target: target, Quantity: quantity, UnitPrice: price}, nil

	default:
		return nil, fmt.Errorf("%w: unknown operation type %q", ErrInvalidInput, row.Type)
	}
}

// DecodeAll decodes rows in order, stopping at the first malformed one.
func DecodeAll(rows []model.AddendumOperation) ([]Op, error) {
	ops := make([]Op, 0, len(rows))
	for _, row := range rows {
		op, err := Decode(row)
		if err != nil {
			return nil, fmt.Errorf("operation %s: %w", row.ID, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// rejectFields fails when a non-ADD row carries a new item descriptor, or an
// amount its type does not apply.
func rejectFields(row model.AddendumOperation, quantity, price bool) error {
	if row.NewItemType != nil || row.NewItemCode != nil || row.NewItemDescription != nil ||
		row.NewItemUnit != nil || row.NewItemParentID != nil {
		return fmt.Errorf("%w: %s does not take a new item", ErrInvalidInput, row.Type)
	}
	if quantity && row.NewQuantity.Valid {
		return fmt.Errorf("%w: %s does not take new_quantity", ErrInvalidInput, row.Type)
	}
	if price && row.NewUnitPrice.Valid {
		return fmt.Errorf("%w: %s does not take new_unit_price", ErrInvalidInput, row.Type)
	}
	return nil
}

func requireTarget(row model.AddendumOperation) (uuid.UUID, error) {
	if row.TargetItemID == nil || *row.TargetItemID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %s requires target_item_id", ErrInvalidInput, row.Type)
	}
	return *row.TargetItemID, nil
}

func requireAmount(value decimal.NullDecimal, field string) (decimal.Decimal, error) {
	if !value.Valid {
		return decimal.Zero, fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if value.Decimal.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s must be non-negative", ErrInvalidInput, field)
	}
	return value.Decimal, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
