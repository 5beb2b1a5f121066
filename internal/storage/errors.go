package storage

import "errors"

var (
	// ErrUserNotFound is returned when no account matches the lookup
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists is returned when a telegram id is registered twice
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrNoActivePriceList is returned when no price list has been published
	ErrNoActivePriceList = errors.New("no active price list")

	// ErrDuplicateTransaction is returned when a transaction id is appended twice
	ErrDuplicateTransaction = errors.New("transaction already recorded")
)
