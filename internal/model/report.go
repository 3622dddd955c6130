package model

import (
	"github.com/shopspring/decimal"
)

// AddendumDocument is the input of the addendum summary sheet.
type AddendumDocument struct {
	Contract Contract
	Addendum Addendum
	Lines    []AddendumLine
}

type AddendumLine struct {
	Operation   OperationType
	Code        string
	Description string
	Unit        string
	Quantity    *decimal.Decimal
	UnitPrice   *decimal.Decimal
	Value       decimal.Decimal
}
