package service

import (
	"github.com/pkg/errors"
)

// Error kinds reported by every service operation.  The HTTP boundary maps
// them to status codes; callers test for them with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
	ErrLockTimeout  = errors.New("section is busy, try again")
)

// kindError is a specific error that belongs to one of the kinds above.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	ErrTicketNotFound   = newKindError(ErrNotFound, "ticket not found")
	ErrMemberNotQueued  = newKindError(ErrNotFound, "no ticket found for membership number")
	ErrEntryNotFound    = newKindError(ErrNotFound, "check-status entry not found")
	ErrSectionNotFound  = newKindError(ErrNotFound, "section not found")
	ErrCustomerNotFound = newKindError(ErrNotFound, "customer not found")

	ErrEntryExists     = newKindError(ErrConflict, "check-status entry already exists for membership number")
	ErrSectionExists   = newKindError(ErrConflict, "section name already exists")
	ErrCustomerExists  = newKindError(ErrConflict, "customer with membership number already exists")
	ErrSectionOccupied = newKindError(ErrConflict, "target section already has tickets")
	ErrConcurrentWrite = newKindError(ErrConflict, "section was modified concurrently")

	ErrNoActiveService = newKindError(ErrInvalidState, "no active service")
)

// validationError reports a missing or malformed input field.
func validationError(msg string) error {
	return newKindError(ErrValidation, msg)
}

// IsKind reports whether err belongs to kind.
func IsKind(err, kind error) bool { return errors.Is(err, kind) }
