package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrDecode is returned when a JSON mapping cannot be turned into an entity,
	// either because a required field is missing or because it has the wrong type.
	// It is always wrapped with the underlying decoder or validator message.
	ErrDecode = errors.New("decode failed")

	// ErrEmptyAccessToken is returned when an account is built without a token.
	ErrEmptyAccessToken = errors.New("access token cannot be empty")

	// ErrInvalidExpiration is returned when an account expiration is not positive.
	ErrInvalidExpiration = errors.New("expiration must be positive")

	// ErrEmptyBusinessID is returned when an operation needs a business identity
	// and the business has none.
	ErrEmptyBusinessID = errors.New("business ID cannot be empty")
)
