package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ItemType string

const (
	ItemTypeStage    ItemType = "STAGE"
	ItemTypeSubstage ItemType = "SUBSTAGE"
	ItemTypeLevel    ItemType = "LEVEL"
	ItemTypeSublevel ItemType = "SUBLEVEL"
	ItemTypeGroup    ItemType = "GROUP"
	ItemTypeSubgroup ItemType = "SUBGROUP"
	ItemTypeItem     ItemType = "ITEM"
)

// itemTypeOrder is the nesting order of the bill of quantities, outermost first.
var itemTypeOrder = []ItemType{
	ItemTypeStage,
	ItemTypeSubstage,
	ItemTypeLevel,
	ItemTypeSublevel,
	ItemTypeGroup,
	ItemTypeSubgroup,
	ItemTypeItem,
}

// Rank returns the position of t in the nesting order, or -1 for unknown types.
func (t ItemType) Rank() int {
	for i, candidate := range itemTypeOrder {
		if candidate == t {
			return i
		}
	}
	return -1
}

func (t ItemType) Valid() bool {
	return t.Rank() >= 0
}

// IsLeaf reports whether nodes of this type carry quantity, unit and price.
func (t ItemType) IsLeaf() bool {
	return t == ItemTypeItem
}

func ParseItemType(raw string) (ItemType, bool) {
	t := ItemType(strings.ToUpper(strings.TrimSpace(raw)))
	return t, t.Valid()
}

// ContractItem is a node of a contract's bill of quantities.
type ContractItem struct {
	ID                  uuid.UUID           `json:"id" gorm:"type:uuid;primaryKey"`
	ContractID          uuid.UUID           `json:"contract_id" gorm:"type:uuid;not null;index"`
	ParentID            *uuid.UUID          `json:"parent_id" gorm:"type:uuid;index"`
	Type                ItemType            `json:"type" gorm:"size:16;not null"`
	Code                string              `json:"code" gorm:"size:64"`
	Description         string              `json:"description" gorm:"type:text"`
	Unit                *string             `json:"unit,omitempty" gorm:"size:32"`
	Quantity            decimal.NullDecimal `json:"quantity" gorm:"type:numeric(20,4)"`
	UnitPrice           decimal.NullDecimal `json:"unit_price" gorm:"type:numeric(20,4)"`
	OrderIndex          int                 `json:"order_index" gorm:"not null;default:0"`
	MeasurementCriteria *string             `json:"measurement_criteria,omitempty" gorm:"type:text"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
	DeletedAt           gorm.DeletedAt      `json:"-" gorm:"index"`
}

func (ContractItem) TableName() string {
	return "contract_items"
}

// BaseQuantity returns the leaf quantity, zero for containers.
func (i ContractItem) BaseQuantity() decimal.Decimal {
	if !i.Type.IsLeaf() || !i.Quantity.Valid {
		return decimal.Zero
	}
	return i.Quantity.Decimal
}

func (i ContractItem) BaseUnitPrice() decimal.Decimal {
	if !i.Type.IsLeaf() || !i.UnitPrice.Valid {
		return decimal.Zero
	}
	return i.UnitPrice.Decimal
}

func (i ContractItem) BaseValue() decimal.Decimal {
	return i.BaseQuantity().Mul(i.BaseUnitPrice())
}
