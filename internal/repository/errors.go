package repository

import "errors"

// Sentinel errors returned by the repositories. Services and handlers use
// errors.Is against these to pick the right HTTP status and error code
// instead of parsing driver messages.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailExists     = errors.New("email already registered")
	ErrMachineNotFound = errors.New("machine not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrWalletNotFound  = errors.New("wallet not found")
	ErrContactNotFound = errors.New("contact submission not found")
	ErrLegalNotFound   = errors.New("legal document not found")
	ErrForbidden       = errors.New("operation not permitted")
	ErrConflict        = errors.New("conflicting state")
	ErrInvalidState    = errors.New("invalid state for operation")
)
