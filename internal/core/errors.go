package core

import "errors"

// Domain errors. Callers match them with errors.Is; messages are stable
// because MapError keys user-facing codes off them.
var (
	// ErrNotFound is returned when an import does not exist or belongs to
	// another organization. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("import not found")

	// ErrRowNotFound is returned when an import has no row with the
	// requested row number.
	ErrRowNotFound = errors.New("row result not found")

	ErrInvalidEntityType = errors.New("invalid entity type")
	ErrInvalidStatus     = errors.New("invalid import status")
	ErrInvalidRowStatus  = errors.New("invalid row status")
	ErrInvalidRowNumber  = errors.New("invalid row number")
	ErrInvalidPatch      = errors.New("invalid import update")
	ErrInvalidInput      = errors.New("invalid import input")

	ErrDuplicateRowNumber = errors.New("duplicate row number")
	ErrRowCountMismatch   = errors.New("row count mismatch")
	ErrRowsAlreadyCreated = errors.New("row results already created")
	ErrTotalRowsLocked    = errors.New("total rows already set")

	// ErrDispatch wraps failures handing a job descriptor to the worker queue.
	ErrDispatch = errors.New("dispatch failed")
)

// IsInvalidInput reports whether err is caused by a value outside the
// accepted domain of an operation.
func IsInvalidInput(err error) bool {
	for _, target := range []error{
		ErrInvalidEntityType,
		ErrInvalidStatus,
		ErrInvalidRowStatus,
		ErrInvalidRowNumber,
		ErrInvalidPatch,
		ErrInvalidInput,
		ErrDuplicateRowNumber,
		ErrRowCountMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict reports whether err is caused by the current state of an import.
func IsConflict(err error) bool {
	return errors.Is(err, ErrRowsAlreadyCreated) || errors.Is(err, ErrTotalRowsLocked)
}
