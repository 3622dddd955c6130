package service

import (
	"errors"

	"github.com/nurpe/snowops-boq/internal/boq"
)

var (
	ErrCycle                = boq.ErrCycle
	ErrTypeHierarchy        = boq.ErrTypeHierarchy
	ErrInvalidState         = boq.ErrInvalidState
	ErrIllegalOperation     = boq.ErrIllegalOperation
	ErrEmptyAddendum        = boq.ErrEmptyAddendum
	ErrConfirmationRequired = boq.ErrConfirmationRequired
	ErrNotFound             = boq.ErrNotFound
	ErrInvalidInput         = boq.ErrInvalidInput
	ErrPermissionDenied     = errors.New("permission denied")
	ErrEditLocked           = errors.New("contract has approved addendums, editing is locked")
)
