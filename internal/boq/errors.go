package boq

import "errors"

// Error kinds surfaced to callers. Wrap with fmt.Errorf("%w: ...") to add
// detail and match with errors.Is.
var (
	ErrCycle                = errors.New("item cannot be moved under itself or its descendant")
	ErrTypeHierarchy        = errors.New("invalid item type hierarchy")
	ErrInvalidState         = errors.New("invalid addendum state")
	ErrIllegalOperation     = errors.New("illegal operation")
	ErrEmptyAddendum        = errors.New("addendum has no operations")
	ErrConfirmationRequired = errors.New("cancelling an approved addendum requires confirmation")
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
)
