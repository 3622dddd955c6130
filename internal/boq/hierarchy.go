package boq

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/snowops-boq/internal/model"
)

// CheckParent verifies that a node of childType may sit directly under parent.
// Ranks may be skipped but never inverted, and ITEM nodes have no children.
// A nil parent places the node at the root.
func CheckParent(parent *model.ContractItem, childType model.ItemType) error {
	if !childType.Valid() {
		return fmt.Errorf("%w: unknown item type %q", ErrTypeHierarchy, childType)
	}
	if parent == nil {
		return nil
	}
	if parent.Type.IsLeaf() {
		return fmt.Errorf("%w: %s %s cannot contain other items", ErrTypeHierarchy, parent.Type, parent.Code)
	}
	if childType.Rank() < parent.Type.Rank() {
		return fmt.Errorf("%w: %s cannot be nested under %s", ErrTypeHierarchy, childType, parent.Type)
	}
	return nil
}

// CheckInsert validates a new node against the tree it is inserted into.
func CheckInsert(t *Tree, contractID uuid.UUID, parentID *uuid.UUID, itemType model.ItemType) error {
	if parentID == nil {
		return CheckParent(nil, itemType)
	}
	parent, ok := t.Get(*parentID)
	if !ok {
		return fmt.Errorf("%w: parent item %s", ErrNotFound, *parentID)
	}
	if parent.ContractID != contractID {
		return fmt.Errorf("%w: parent belongs to another contract", ErrInvalidInput)
	}
	return CheckParent(&parent, itemType)
}

// CheckReparent validates moving id under newParent (nil moves it to the root).
func CheckReparent(t *Tree, id uuid.UUID, newParent *uuid.UUID) error {
	item, ok := t.Get(id)
	if !ok {
		return fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	if newParent == nil {
		return nil
	}
	if *newParent == id {
		return fmt.Errorf("%w: item %s", ErrCycle, item.Code)
	}
	parent, ok := t.Get(*newParent)
	if !ok {
		return fmt.Errorf("%w: parent item %s", ErrNotFound, *newParent)
	}
	if parent.ContractID != item.ContractID {
		return fmt.Errorf("%w: parent belongs to another contract", ErrInvalidInput)
	}
	if t.IsDescendant(*newParent, id) {
		return fmt.Errorf("%w: %s is a descendant of %s", ErrCycle, parent.Code, item.Code)
	}
	return CheckParent(&parent, item.Type)
}

// CheckRetype validates changing the type of an existing node against both its
// parent and its current children.
func CheckRetype(t *Tree, id uuid.UUID, newType model.ItemType) error {
	item, ok := t.Get(id)
	if !ok {
		return fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	var parent *model.ContractItem
	if parentID := t.Parent(id); parentID != nil {
		p, _ := t.Get(*parentID)
		parent = &p
	}
	if err := CheckParent(parent, newType); err != nil {
		return err
	}
	retyped := item
	retyped.Type = newType
	for _, childID := range t.Children(id) {
		child, _ := t.Get(childID)
		if err := CheckParent(&retyped, child.Type); err != nil {
			return err
		}
	}
	return nil
}

// CheckLeafFields enforces that only ITEM nodes carry unit, quantity and price,
// and that those values are non-negative.
func CheckLeafFields(itemType model.ItemType, unit *string, quantity, unitPrice decimal.NullDecimal) error {
	if !itemType.IsLeaf() {
		if unit != nil || quantity.Valid || unitPrice.Valid {
			return fmt.Errorf("%w: %s items cannot carry unit, quantity or price", ErrInvalidInput, itemType)
		}
		return nil
	}
	if quantity.Valid && quantity.Decimal.IsNegative() {
		return fmt.Errorf("%w: quantity must be non-negative", ErrInvalidInput)
	}
	if unitPrice.Valid && unitPrice.Decimal.IsNegative() {
		return fmt.Errorf("%w: unit price must be non-negative", ErrInvalidInput)
	}
	return nil
}
