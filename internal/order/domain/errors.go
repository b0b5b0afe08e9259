package domain

import "errors"

var (
	ErrInvalidOrder      = errors.New("invalid order")
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnavailable       = errors.New("collaborator unavailable")

	// ErrConflict is returned by a repository when the stored version moved
	// past the snapshot being saved.
	ErrConflict = errors.New("order was modified concurrently")

	// ErrDuplicateClientReference signals the (user, client reference) key is
	// already taken by another order.
	ErrDuplicateClientReference = errors.New("client reference already used")
)

// Money errors
var (
	ErrInvalidAmount     = errors.New("amount must be a non-negative integer in minor units")
	ErrInvalidCurrency   = errors.New("currency must be a 3-letter ISO code")
	ErrInvalidMultiplier = errors.New("multiplier must be a positive integer")
	ErrCurrencyMismatch  = errors.New("currency mismatch")
)
