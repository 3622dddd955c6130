package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OperationType string

const (
	OperationSuppress    OperationType = "SUPPRESS"
	OperationAdd         OperationType = "ADD"
	OperationModifyQty   OperationType = "MODIFY_QTY"
	OperationModifyPrice OperationType = "MODIFY_PRICE"
	OperationModifyBoth  OperationType = "MODIFY_BOTH"
)

func (t OperationType) Valid() bool {
	switch t {
	case OperationSuppress, OperationAdd, OperationModifyQty, OperationModifyPrice, OperationModifyBoth:
		return true
	}
	return false
}

// AddendumOperation is the persisted row of a single addendum operation. The
// NewItem* fields are used only by ADD; TargetItemID by every other type.
// Value is the signed monetary impact, provisional while the addendum is a
// draft and frozen on approval.
type AddendumOperation struct {
	ID                 uuid.UUID           `json:"id" gorm:"type:uuid;primaryKey"`
	AddendumID         uuid.UUID           `json:"addendum_id" gorm:"type:uuid;not null;index"`
	Sequence           int                 `json:"sequence" gorm:"not null"`
	Type               OperationType       `json:"operation_type" gorm:"size:16;not null"`
	TargetItemID       *uuid.UUID          `json:"target_item_id,omitempty" gorm:"type:uuid;index"`
	NewItemType        *ItemType           `json:"new_item_type,omitempty" gorm:"size:16"`
	NewItemCode        *string             `json:"new_item_code,omitempty" gorm:"size:64"`
	NewItemDescription *string             `json:"new_item_description,omitempty" gorm:"type:text"`
	NewItemUnit        *string             `json:"new_item_unit,omitempty" gorm:"size:32"`
	NewItemParentID    *uuid.UUID          `json:"new_item_parent_id,omitempty" gorm:"type:uuid"`
	NewQuantity        decimal.NullDecimal `json:"new_quantity" gorm:"type:numeric(20,4)"`
	NewUnitPrice       decimal.NullDecimal `json:"new_unit_price" gorm:"type:numeric(20,4)"`
	Value              decimal.Decimal     `json:"value" gorm:"type:numeric(20,4);not null;default:0"`
	CreatedAt          time.Time           `json:"created_at"`
}

func (AddendumOperation) TableName() string {
	return "addendum_operations"
}
