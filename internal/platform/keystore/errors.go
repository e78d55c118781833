package keystore

import (
	"errors"
	"fmt"
)

// Common credential store errors.
var (
	// ErrInvalidAccount is returned when an account fails validation before
	// being stored. Check the wrapped error for details.
	ErrInvalidAccount = errors.New("invalid account")

	// ErrCorruptRecord is returned when a stored record cannot be opened or
	// decoded, for example because it was sealed with a different secret.
	ErrCorruptRecord = errors.New("corrupt credential record")

	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("credential store unavailable")

	// ErrInvalidSecret is returned when a store is built without a secret.
	ErrInvalidSecret = errors.New("store secret cannot be empty")
)

// StoreError reports which operation on which record key failed.
type StoreError struct {
	Key       string
	Operation string // "save", "load" or "delete"
	Message   string
	Err       error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s of %s failed: %s: %v", e.Operation, e.Key, e.Message, e.Err)
	}
	return fmt.Sprintf("%s of %s failed: %s", e.Operation, e.Key, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(key, operation, message string, err error) *StoreError {
	return &StoreError{
		Key:       key,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
