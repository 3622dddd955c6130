package boq

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/snowops-boq/internal/model"
)

// Totals are the frozen aggregates of one addendum. TotalSuppression is the
// sum of negative operation values and is therefore never positive.
type Totals struct {
	TotalAddition    decimal.Decimal `json:"total_addition"`
	TotalSuppression decimal.Decimal `json:"total_suppression"`
	NetValue         decimal.Decimal `json:"net_value"`
}

func SumValues(values []decimal.Decimal) Totals {
	totals := Totals{
		TotalAddition:    decimal.Zero,
		TotalSuppression: decimal.Zero,
	}
	for _, value := range values {
		switch value.Sign() {
		case 1:
			totals.TotalAddition = totals.TotalAddition.Add(value)
		case -1:
			totals.TotalSuppression = totals.TotalSuppression.Add(value)
		}
	}
	totals.NetValue = totals.TotalAddition.Add(totals.TotalSuppression)
	return totals
}

// Node is one row of the aggregated bill of quantities. Leaves carry their
// vigent state in Item.
type Node struct {
	ID             uuid.UUID       `json:"id"`
	ParentID       *uuid.UUID      `json:"parent_id"`
	Type           model.ItemType  `json:"type"`
	Code           string          `json:"code"`
	Description    string          `json:"description"`
	OrderIndex     int             `json:"order_index"`
	BaseSubtotal   decimal.Decimal `json:"base_subtotal"`
	ActiveSubtotal decimal.Decimal `json:"active_subtotal"`
	Item           *ItemState      `json:"item,omitempty"`
	Children       []*Node         `json:"children"`
}

// Rollup is the aggregated tree with contract level totals.
type Rollup struct {
	Roots       []*Node         `json:"items"`
	BaseTotal   decimal.Decimal `json:"base_total"`
	ActiveTotal decimal.Decimal `json:"active_total"`
}

// Aggregate builds the tree-shaped view of v and rolls leaf values up to every
// container. Items added by an addendum count only toward active subtotals and
// suppressed items only toward base subtotals.
func Aggregate(tree *Tree, v *Vigent) *Rollup {
	added := make(map[uuid.UUID][]ItemState)
	for _, state := range v.Items() {
		if !state.Added {
			continue
		}
		key := uuid.Nil
		if state.ParentID != nil {
			key = *state.ParentID
		}
		added[key] = append(added[key], state)
	}

	var build func(ids []uuid.UUID, parent uuid.UUID) []*Node
	build = func(ids []uuid.UUID, parent uuid.UUID) []*Node {
		nodes := make([]*Node, 0, len(ids)+len(added[parent]))
		for _, id := range ids {
			item, _ := tree.Get(id)
			node := &Node{
				ID:          item.ID,
				ParentID:    tree.Parent(item.ID),
				Type:        item.Type,
				Code:        item.Code,
				Description: item.Description,
				OrderIndex:  item.OrderIndex,
			}
			if item.Type.IsLeaf() {
				if state, ok := v.State(item.ID); ok {
					node.Item = &state
				}
				node.Children = []*Node{}
			} else {
				node.Children = build(tree.Children(id), id)
			}
			nodes = append(nodes, node)
		}
		for i := range added[parent] {
			state := added[parent][i]
			nodes = append(nodes, &Node{
				ID:          state.ItemID,
				ParentID:    state.ParentID,
				Type:        model.ItemTypeItem,
				Code:        state.Code,
				Description: state.Description,
				OrderIndex:  len(nodes),
				Item:        &state,
				Children:    []*Node{},
			})
		}
		return nodes
	}

	rollup := &Rollup{Roots: build(tree.Roots(), uuid.Nil)}
	rollup.BaseTotal, rollup.ActiveTotal = sumNodes(rollup.Roots)
	return rollup
}

// sumNodes fills subtotals bottom-up and returns the sums of nodes.
func sumNodes(nodes []*Node) (base, active decimal.Decimal) {
	base, active = decimal.Zero, decimal.Zero
	for _, node := range nodes {
		if node.Item != nil {
			node.BaseSubtotal, node.ActiveSubtotal = leafSubtotals(node.Item)
		} else {
			node.BaseSubtotal, node.ActiveSubtotal = sumNodes(node.Children)
		}
		base = base.Add(node.BaseSubtotal)
		active = active.Add(node.ActiveSubtotal)
	}
	return base, active
}

func leafSubtotals(state *ItemState) (base, active decimal.Decimal) {
	base, active = state.BaseValue, state.TotalValue
	if state.Added {
		base = decimal.Zero
	}
	if state.Suppressed {
		active = decimal.Zero
	}
	return base, active
}

// Find returns the node with the given id, searching depth first.
func (r *Rollup) Find(id uuid.UUID) *Node {
	var search func(nodes []*Node) *Node
	search = func(nodes []*Node) *Node {
		for _, node := range nodes {
			if node.ID == id {
				return node
			}
			if found := search(node.Children); found != nil {
				return found
			}
		}
		return nil
	}
	return search(r.Roots)
}
