package models

import "errors"

var (
	// ErrInvalidRecurrence rejects rules that can never fire (empty weekday
	// set, one-shot instants in the past, unknown timezone).
	ErrInvalidRecurrence = errors.New("invalid recurrence")

	// ErrInstanceNotDeliverable rejects a resolution for an instance that has
	// not been delivered yet.
	ErrInstanceNotDeliverable = errors.New("instance not delivered")

	// ErrAlreadyResolved rejects a duplicate resolution attempt.
	ErrAlreadyResolved = errors.New("instance already resolved")

	// ErrNotFound covers unknown definitions and instances.
	ErrNotFound = errors.New("not found")

	// ErrDefinitionInactive rejects operations on deactivated definitions.
	ErrDefinitionInactive = errors.New("definition inactive")
)
