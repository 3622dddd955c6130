package boq

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nurpe/snowops-boq/internal/model"
)

// Validator checks operations before they are attached to a draft addendum and
// again when the addendum is approved.
type Validator struct {
	tree            *Tree
	approved        *Vigent
	pendingSuppress map[uuid.UUID]uuid.UUID
}

// NewValidator builds a validator over the base tree, the approved ledger and
// the operations of draft addendums. drafts may be nil, which is what approval
// uses: by then only the approved ledger decides.
func NewValidator(tree *Tree, approved []Entry, drafts []Entry) *Validator {
	v := &Validator{
		tree:            tree,
		approved:        Replay(tree, approved),
		pendingSuppress: make(map[uuid.UUID]uuid.UUID),
	}
	for _, draft := range drafts {
		for _, op := range draft.Ops {
			if s, ok := op.(Suppress); ok {
				v.pendingSuppress[s.Target] = draft.AddendumID
			}
		}
	}
	return v
}

// Approved exposes the vigent state the validator checks against.
func (v *Validator) Approved() *Vigent {
	return v.approved
}

// Check validates op for addendumID given the operations already in that
// addendum.
func (v *Validator) Check(addendumID uuid.UUID, existing []Op, op Op) error {
	if add, ok := op.(Add); ok {
		if add.Parent == nil {
			return nil
		}
		parent, ok := v.tree.Get(*add.Parent)
		if !ok {
			return fmt.Errorf("%w: parent item %s", ErrNotFound, *add.Parent)
		}
		return CheckParent(&parent, model.ItemTypeItem)
	}

	target, _ := TargetOf(op)
	if err := v.checkTarget(target); err != nil {
		return err
	}

	for _, prior := range existing {
		if prior.OpID() == op.OpID() {
			continue
		}
		if id, ok := TargetOf(prior); ok && id == target {
			return fmt.Errorf("%w: item %s already has a %s operation in this addendum", ErrIllegalOperation, target, prior.Kind())
		}
	}

	if state, ok := v.approved.State(target); ok && state.Suppressed {
		return fmt.Errorf("%w: item %s was suppressed by addendum #%d", ErrIllegalOperation, state.Code, suppressedBy(state))
	}

	if _, ok := op.(Suppress); ok {
		if other, pending := v.pendingSuppress[target]; pending && other != addendumID {
			return fmt.Errorf("%w: item %s is already being suppressed by draft addendum %s", ErrIllegalOperation, target, other)
		}
	}
	return nil
}

// CheckAll validates ops in order as if each were attached after the previous.
func (v *Validator) CheckAll(addendumID uuid.UUID, ops []Op) error {
	for i, op := range ops {
		if err := v.Check(addendumID, ops[:i], op); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) checkTarget(target uuid.UUID) error {
	if item, ok := v.tree.Get(target); ok {
		if !item.Type.IsLeaf() {
			return fmt.Errorf("%w: %s %s is not an ITEM", ErrIllegalOperation, item.Type, item.Code)
		}
		return nil
	}
	if state, ok := v.approved.State(target); ok && state.Added {
		return nil
	}
	return fmt.Errorf("%w: target item %s", ErrNotFound, target)
}

func suppressedBy(state ItemState) int {
	for i := len(state.History) - 1; i >= 0; i-- {
		if state.History[i].Operation == model.OperationSuppress {
			return state.History[i].AddendumNumber
		}
	}
	return 0
}
