package models

import "errors"

var (
	// ErrEmptyModelName is returned when usage or a price entry has no model name
	ErrEmptyModelName = errors.New("model name is required")

	// ErrDuplicateModel is returned when a price list names the same model twice
	ErrDuplicateModel = errors.New("duplicate model in price list")

	// ErrNegativePrice is returned when a price entry carries a negative price
	ErrNegativePrice = errors.New("price must not be negative")

	// ErrNonPositiveAmount is returned for top-ups, debits and credits <= 0
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrPositiveUsageCost is returned when a usage transaction would add credits
	ErrPositiveUsageCost = errors.New("usage cost must not be positive")

	// ErrInvalidTransition is returned when a terminal transaction changes status
	ErrInvalidTransition = errors.New("transaction is not pending")

	// ErrTooManyActiveKeys is returned when an account already holds the maximum number of active keys
	ErrTooManyActiveKeys = errors.New("too many active API keys")

	// ErrAPIKeyNotFound is returned when an account does not own the given key
	ErrAPIKeyNotFound = errors.New("API key not found")
)
