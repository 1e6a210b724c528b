// internal/apperrors/errors.go
package apperrors

import "errors"

// Business errors returned by the payment and purchase services. Handlers
// map these to transport responses; anything not listed here is treated as
// an internal error.
var (
	ErrGatewayDisabled       = errors.New("gateway payments are not enabled")
	ErrItemNotFound          = errors.New("item not found")
	ErrAlreadyPurchased      = errors.New("item already purchased")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrCannotCancelCompleted = errors.New("cannot cancel a completed transaction")

	// ErrTransactionFinalized is returned by the store when a compare-and-set
	// completion finds the row already in a terminal state. Callers inspect
	// the current state to decide between idempotent success and rejection.
	ErrTransactionFinalized = errors.New("transaction already finalized")
)
