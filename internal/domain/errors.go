package domain

import "errors"

// Error categories used across the onboarding and call flows. Handlers map
// these to HTTP statuses; services wrap them with fmt.Errorf("...: %w", err).
var (
	// ErrConfiguration indicates a required provider key is missing. Fails closed.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation indicates malformed input (work hours, phone, deadline).
	ErrValidation = errors.New("validation error")

	// ErrAuth indicates a missing or expired token after retry exhaustion.
	ErrAuth = errors.New("authentication error")

	// ErrConnection indicates the realtime session failed to start or errored.
	ErrConnection = errors.New("connection error")

	// ErrPersistence indicates a user-record read or write failed.
	ErrPersistence = errors.New("persistence error")

	// ErrNotFound indicates a referenced user or account is absent.
	ErrNotFound = errors.New("not found")
)
