package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrNotFound             = errors.New("not found")
	ErrInsufficientQuantity = errors.New("insufficient quantity")

	ErrInvalidQuantity  = fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	ErrInvalidID        = fmt.Errorf("%w: id must be positive", ErrInvalidArgument)
	ErrSelfTransfer     = fmt.Errorf("%w: source and target user are the same", ErrInvalidArgument)
	ErrNameRequired     = fmt.Errorf("%w: username is required", ErrInvalidArgument)
	ErrQuantityTooLarge = fmt.Errorf("%w: balance would exceed the maximum quantity", ErrInvalidArgument)
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
)

// StorageKind classifies a store failure.
type StorageKind int

const (
	KindFailure StorageKind = iota
	KindTimeout
	KindConflict
	KindUnavailable
)

func (k StorageKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "failure"
	}
}

// StorageError reports a failure of the underlying store. It is never
// retried by the ledger; callers may retry whole operations since those are
// atomic.
type StorageError struct {
	Op   string
	Kind StorageKind
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a lock wait or statement timeout.
func (e *StorageError) Timeout() bool {
	return e.Kind == KindTimeout
}

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
