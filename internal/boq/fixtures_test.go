package boq

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/snowops-boq/internal/model"
)

var testContractID = uuid.MustParse("5a1d0c3e-0000-4000-8000-000000000001")

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func container(id uuid.UUID, parent *uuid.UUID, itemType model.ItemType, code string) model.ContractItem {
	return model.ContractItem{
		ID:         id,
		ContractID: testContractID,
		ParentID:   parent,
		Type:       itemType,
		Code:       code,
	}
}

func leaf(id uuid.UUID, parent *uuid.UUID, code, quantity, price string) model.ContractItem {
	unit := "m3"
	return model.ContractItem{
		ID:         id,
		ContractID: testContractID,
		ParentID:   parent,
		Type:       model.ItemTypeItem,
		Code:       code,
		Unit:       &unit,
		Quantity:   decimal.NewNullDecimal(dec(quantity)),
		UnitPrice:  decimal.NewNullDecimal(dec(price)),
	}
}

func ptr(id uuid.UUID) *uuid.UUID {
	return &id
}

// sampleTree:
//
//	stage S1
//	  group G1
//	    item A (10 x 100)
//	    item B (2 x 50)
//	  item C (1 x 300)
//	stage S2 (empty)
type sampleTree struct {
	S1, G1, A, B, C, S2 uuid.UUID
	Items               []model.ContractItem
}

func newSampleTree() sampleTree {
	s := sampleTree{
		S1: uuid.New(), G1: uuid.New(), A: uuid.New(), B: uuid.New(), C: uuid.New(), S2: uuid.New(),
	}
	a := leaf(s.A, ptr(s.G1), "1.1.1", "10", "100")
	a.OrderIndex = 1
	b := leaf(s.B, ptr(s.G1), "1.1.2", "2", "50")
	b.OrderIndex = 2
	s2 := container(s.S2, nil, model.ItemTypeStage, "2")
	s2.OrderIndex = 2
	s.Items = []model.ContractItem{
		container(s.S1, nil, model.ItemTypeStage, "1"),
		container(s.G1, ptr(s.S1), model.ItemTypeGroup, "1.1"),
		a,
		b,
		leaf(s.C, ptr(s.S1), "1.2", "1", "300"),
		s2,
	}
	return s
}

func (s sampleTree) tree() *Tree {
	return NewTree(s.Items)
}

func entry(number int, ops ...Op) Entry {
	return Entry{AddendumID: uuid.New(), Number: number, Ops: ops}
}

func decimal10() decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(10))
}

func nullDecimal() decimal.NullDecimal {
	return decimal.NullDecimal{}
}
