package boq

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/snowops-boq/internal/model"
)

// Version identifies the replay rules used to freeze addendum totals. Bump it
// whenever Replay changes how operation values are computed.
const Version = 1

// Entry is one approved addendum with its operations in application order.
type Entry struct {
	AddendumID uuid.UUID
	Number     int
	Ops        []Op
}

// Snapshot is the state of an item right after one addendum touched it, with
// the change relative to the previous snapshot (or the base values).
type Snapshot struct {
	AddendumID     uuid.UUID           `json:"addendum_id"`
	AddendumNumber int                 `json:"addendum_number"`
	Operation      model.OperationType `json:"operation_type"`
	Quantity       decimal.Decimal     `json:"quantity"`
	UnitPrice      decimal.Decimal     `json:"unit_price"`
	TotalValue     decimal.Decimal     `json:"total_value"`
	QuantityDelta  decimal.Decimal     `json:"quantity_delta"`
	ValueDelta     decimal.Decimal     `json:"value_delta"`
}

// ItemState is the vigent state of a leaf item.
type ItemState struct {
	ItemID        uuid.UUID       `json:"item_id"`
	ParentID      *uuid.UUID      `json:"parent_id"`
	Code          string          `json:"code"`
	Description   string          `json:"description"`
	Unit          string          `json:"unit"`
	BaseQuantity  decimal.Decimal `json:"base_quantity"`
	BaseUnitPrice decimal.Decimal `json:"base_unit_price"`
	BaseValue     decimal.Decimal `json:"base_value"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalValue    decimal.Decimal `json:"total_value"`
	Suppressed    bool            `json:"suppressed"`
	Added         bool            `json:"added"`
	AddedBy       *uuid.UUID      `json:"added_by,omitempty"`
	History       []Snapshot      `json:"history"`
}

// Delta returns the snapshot recorded for addendumID, if the addendum touched
// this item.
func (s ItemState) Delta(addendumID uuid.UUID) (Snapshot, bool) {
	for _, snap := range s.History {
		if snap.AddendumID == addendumID {
			return snap, true
		}
	}
	return Snapshot{}, false
}

func (s *ItemState) record(entry Entry, kind model.OperationType) {
	prevQuantity, prevValue := s.BaseQuantity, s.BaseValue
	if n := len(s.History); n > 0 {
		prevQuantity, prevValue = s.History[n-1].Quantity, s.History[n-1].TotalValue
	}
	s.History = append(s.History, Snapshot{
		AddendumID:     entry.AddendumID,
		AddendumNumber: entry.Number,
		Operation:      kind,
		Quantity:       s.Quantity,
		UnitPrice:      s.UnitPrice,
		TotalValue:     s.TotalValue,
		QuantityDelta:  s.Quantity.Sub(prevQuantity),
		ValueDelta:     s.TotalValue.Sub(prevValue),
	})
}

// Vigent is the outcome of replaying a ledger over a base tree.
type Vigent struct {
	states     map[uuid.UUID]*ItemState
	order      []uuid.UUID
	opValues   map[uuid.UUID]decimal.Decimal
	byAddendum map[uuid.UUID][]uuid.UUID
}

// Replay folds the ledger, ordered by addendum number, over the ITEM nodes of
// tree. It reads nothing but its arguments, so equal inputs give equal output.
// Operations whose target is unknown or already suppressed have no effect and
// a zero value.
func Replay(tree *Tree, ledger []Entry) *Vigent {
	v := &Vigent{
		states:     make(map[uuid.UUID]*ItemState),
		opValues:   make(map[uuid.UUID]decimal.Decimal),
		byAddendum: make(map[uuid.UUID][]uuid.UUID),
	}

	for _, item := range tree.Leaves() {
		state := &ItemState{
			ItemID:        item.ID,
			ParentID:      tree.Parent(item.ID),
			Code:          item.Code,
			Description:   item.Description,
			Unit:          deref(item.Unit),
			BaseQuantity:  item.BaseQuantity(),
			BaseUnitPrice: item.BaseUnitPrice(),
			BaseValue:     item.BaseValue(),
			Quantity:      item.BaseQuantity(),
			UnitPrice:     item.BaseUnitPrice(),
			TotalValue:    item.BaseValue(),
			History:       []Snapshot{},
		}
		v.states[item.ID] = state
		v.order = append(v.order, item.ID)
	}

	ordered := make([]Entry, len(ledger))
	copy(ordered, ledger)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Number < ordered[j].Number
	})

	for _, entry := range ordered {
		for _, op := range entry.Ops {
			v.byAddendum[entry.AddendumID] = append(v.byAddendum[entry.AddendumID], op.OpID())
			v.opValues[op.OpID()] = v.apply(tree, entry, op)
		}
	}
	return v
}

func (v *Vigent) apply(tree *Tree, entry Entry, op Op) decimal.Decimal {
	if add, ok := op.(Add); ok {
		return v.applyAdd(tree, entry, add)
	}

	target, _ := TargetOf(op)
	state, ok := v.states[target]
	if !ok || state.Suppressed {
		return decimal.Zero
	}
	before := state.TotalValue

	switch o := op.(type) {
	case Suppress:
		state.Suppressed = true
		state.Quantity = decimal.Zero
		state.TotalValue = decimal.Zero
	case ModifyQty:
		state.Quantity = o.Quantity
		state.TotalValue = state.Quantity.Mul(state.UnitPrice)
	case ModifyPrice:
		state.UnitPrice = o.UnitPrice
		state.TotalValue = state.Quantity.Mul(state.UnitPrice)
	case ModifyBoth:
		state.Quantity = o.Quantity
		state.UnitPrice = o.UnitPrice
		state.TotalValue = state.Quantity.Mul(state.UnitPrice)
	}

	state.record(entry, op.Kind())
	return state.TotalValue.Sub(before)
}

func (v *Vigent) applyAdd(tree *Tree, entry Entry, op Add) decimal.Decimal {
	var parent *uuid.UUID
	if op.Parent != nil {
		if item, ok := tree.Get(*op.Parent); ok && !item.Type.IsLeaf() {
			id := *op.Parent
			parent = &id
		}
	}
	addedBy := entry.AddendumID
	state := &ItemState{
		ItemID:      op.ID,
		ParentID:    parent,
		Code:        op.Code,
		Description: op.Description,
		Unit:        op.Unit,
		Quantity:    op.Quantity,
		UnitPrice:   op.UnitPrice,
		TotalValue:  op.Quantity.Mul(op.UnitPrice),
		Added:       true,
		AddedBy:     &addedBy,
		History:     []Snapshot{},
	}
	state.record(entry, op.Kind())
	v.states[op.ID] = state
	v.order = append(v.order, op.ID)
	return state.TotalValue
}

// State returns a copy of the vigent state of an item.
func (v *Vigent) State(id uuid.UUID) (ItemState, bool) {
	state, ok := v.states[id]
	if !ok {
		return ItemState{}, false
	}
	return state.clone(), true
}

// Items returns every item state: base leaves in tree order, then added items
// in the order they were introduced.
func (v *Vigent) Items() []ItemState {
	items := make([]ItemState, 0, len(v.order))
	for _, id := range v.order {
		items = append(items, v.states[id].clone())
	}
	return items
}

// OperationValue is the signed monetary impact of an applied operation.
func (v *Vigent) OperationValue(opID uuid.UUID) (decimal.Decimal, bool) {
	value, ok := v.opValues[opID]
	return value, ok
}

// AddendumTotals sums the operation values of one replayed addendum.
func (v *Vigent) AddendumTotals(addendumID uuid.UUID) Totals {
	values := make([]decimal.Decimal, 0, len(v.byAddendum[addendumID]))
	for _, opID := range v.byAddendum[addendumID] {
		values = append(values, v.opValues[opID])
	}
	return SumValues(values)
}

func (s *ItemState) clone() ItemState {
	out := *s
	out.History = make([]Snapshot, len(s.History))
	copy(out.History, s.History)
	return out
}
