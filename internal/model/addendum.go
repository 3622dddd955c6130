package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AddendumStatus string

const (
	AddendumStatusDraft     AddendumStatus = "DRAFT"
	AddendumStatusApproved  AddendumStatus = "APPROVED"
	AddendumStatusCancelled AddendumStatus = "CANCELLED"
)

// Addendum is an amendment to a contract grouping a batch of operations.
// TotalAddition, TotalSuppression and NetValue are frozen when the addendum is
// approved; TotalsVersion records the replay version that produced them.
type Addendum struct {
	ID               uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey"`
	ContractID       uuid.UUID          `json:"contract_id" gorm:"type:uuid;not null;uniqueIndex:uq_addendum_contract_number,priority:1"`
	Number           int                `json:"number" gorm:"not null;uniqueIndex:uq_addendum_contract_number,priority:2"`
	Description      string             `json:"description" gorm:"type:text"`
	Date             time.Time          `json:"date" gorm:"type:date;not null"`
	Status           AddendumStatus     `json:"status" gorm:"size:16;not null;default:DRAFT;index"`
	TotalAddition    decimal.Decimal    `json:"total_addition" gorm:"type:numeric(20,4);not null;default:0"`
	TotalSuppression decimal.Decimal    `json:"total_suppression" gorm:"type:numeric(20,4);not null;default:0"`
	NetValue         decimal.Decimal    `json:"net_value" gorm:"type:numeric(20,4);not null;default:0"`
	TotalsVersion    int                `json:"totals_version" gorm:"not null;default:0"`
	ApprovedAt       *time.Time         `json:"approved_at,omitempty"`
	ApprovedBy       *string            `json:"approved_by,omitempty" gorm:"size:64"`
	CancelledAt      *time.Time         `json:"cancelled_at,omitempty"`
	CancelledBy      *string            `json:"cancelled_by,omitempty" gorm:"size:64"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	Operations       []AddendumOperation `json:"operations,omitempty" gorm:"-"`
}

func (Addendum) TableName() string {
	return "addendums"
}

func (a Addendum) IsDraft() bool {
	return a.Status == AddendumStatusDraft
}
