package services

import "errors"

// Not-found and infrastructure errors are returned to the caller. Business
// rule violations on the transfer path are not errors at all: they are
// recorded as FAILED transaction rows (see TransferOutcome). Lifecycle
// operations (block, activate, create) raise business errors directly.
var (
	ErrCardNotFound        = errors.New("card not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrForbidden           = errors.New("insufficient privileges")
	ErrCardBlocked         = errors.New("card is already blocked")
	ErrCardAlreadyActive   = errors.New("card is already active")
	ErrCardExpired         = errors.New("card has expired")
	ErrInvalidExpiration   = errors.New("expiration date must be in the future")
	ErrNegativeBalance     = errors.New("initial balance cannot be negative")
	ErrGenerationExhausted = errors.New("card number generation exhausted")
)

// Failure reasons persisted on FAILED transaction rows, in validation
// order. The first failing check wins.
const (
	ReasonCrossOwner          = "transfers allowed only between own cards"
	ReasonNotOwnedByActor     = "source card does not belong to acting user"
	ReasonSameCard            = "cannot transfer to the same card"
	ReasonNonPositiveAmount   = "amount must be positive"
	ReasonSourceUnusable      = "source card is not usable for operations"
	ReasonDestinationUnusable = "destination card is not usable for operations"
	ReasonInsufficientBalance = "insufficient balance"
	// ReasonInternal is the only detail an unexpected persistence failure
	// leaks to the user; the full error goes to the log.
	ReasonInternal = "internal error while executing transfer"
)
