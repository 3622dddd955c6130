package boq

import (
	"sort"

	"github.com/google/uuid"

	"github.com/nurpe/snowops-boq/internal/model"
)

// Tree is a flat arena of contract items keyed by id with parent back-references.
// Children are kept in sibling order (order index, then code, then id).
type Tree struct {
	nodes    map[uuid.UUID]model.ContractItem
	children map[uuid.UUID][]uuid.UUID
}

// NewTree indexes items. Items whose parent is not part of the set are treated
// as roots.
func NewTree(items []model.ContractItem) *Tree {
	t := &Tree{
		nodes:    make(map[uuid.UUID]model.ContractItem, len(items)),
		children: make(map[uuid.UUID][]uuid.UUID),
	}
	for _, item := range items {
		t.nodes[item.ID] = item
	}
	for _, item := range items {
		key := t.parentKey(item.ParentID)
		t.children[key] = append(t.children[key], item.ID)
	}
	for key := range t.children {
		t.sortSiblings(key)
	}
	return t
}

func (t *Tree) parentKey(parentID *uuid.UUID) uuid.UUID {
	if parentID == nil {
		return uuid.Nil
	}
	if _, ok := t.nodes[*parentID]; !ok {
		return uuid.Nil
	}
	return *parentID
}

func (t *Tree) sortSiblings(key uuid.UUID) {
	ids := t.children[key]
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := t.nodes[ids[i]], t.nodes[ids[j]]
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.ID.String() < b.ID.String()
	})
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) Get(id uuid.UUID) (model.ContractItem, bool) {
	item, ok := t.nodes[id]
	return item, ok
}

func (t *Tree) Roots() []uuid.UUID {
	return t.children[uuid.Nil]
}

// Children returns the ordered children of id; uuid.Nil yields the roots.
func (t *Tree) Children(id uuid.UUID) []uuid.UUID {
	return t.children[id]
}

// Parent returns the effective parent of id, nil for roots.
func (t *Tree) Parent(id uuid.UUID) *uuid.UUID {
	item, ok := t.nodes[id]
	if !ok {
		return nil
	}
	key := t.parentKey(item.ParentID)
	if key == uuid.Nil {
		return nil
	}
	return &key
}

// IsDescendant reports whether id lies strictly below ancestor. The walk
// follows parent references and stops on a repeated node.
func (t *Tree) IsDescendant(id, ancestor uuid.UUID) bool {
	seen := make(map[uuid.UUID]struct{})
	current := t.Parent(id)
	for current != nil {
		if *current == ancestor {
			return true
		}
		if _, dup := seen[*current]; dup {
			return false
		}
		seen[*current] = struct{}{}
		current = t.Parent(*current)
	}
	return false
}

// Subtree returns id followed by all of its descendants, breadth first.
func (t *Tree) Subtree(id uuid.UUID) []uuid.UUID {
	if _, ok := t.nodes[id]; !ok {
		return nil
	}
	result := []uuid.UUID{id}
	for i := 0; i < len(result); i++ {
		result = append(result, t.children[result[i]]...)
	}
	return result
}

// Walk visits every node in pre-order, siblings in order.
func (t *Tree) Walk(fn func(item model.ContractItem, depth int)) {
	var visit func(ids []uuid.UUID, depth int)
	visit = func(ids []uuid.UUID, depth int) {
		for _, id := range ids {
			fn(t.nodes[id], depth)
			visit(t.children[id], depth+1)
		}
	}
	visit(t.Roots(), 0)
}

// Leaves returns every ITEM node in pre-order.
func (t *Tree) Leaves() []model.ContractItem {
	var leaves []model.ContractItem
	t.Walk(func(item model.ContractItem, _ int) {
		if item.Type.IsLeaf() {
			leaves = append(leaves, item)
		}
	})
	return leaves
}
