package core

import "errors"

// Error kinds surfaced by the ledger and backup services. Callers match them
// with errors.Is; lower layers wrap them with context.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidFormat       = errors.New("invalid format")
	ErrInvalidConfirmation = errors.New("invalid confirmation")
	ErrStorageFailure      = errors.New("storage failure")
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidDate     = errors.New("invalid date")
	ErrEmptyName       = errors.New("empty name")
)

// IsValidation reports whether err comes from user input rather than the store.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrEmptyName)
}
