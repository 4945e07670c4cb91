package store

import (
	"errors"
	"fmt"
)

// ErrValidation marks a caller-fault error: malformed owner or concept id,
// missing timestamp, or an operation using the wrong clock mode for an
// owner. Never retried by the store.
var ErrValidation = errors.New("validation error")

// ErrStorage marks an I/O or transaction failure from the underlying
// database. Surfaced as-is and not retried internally; retry policy is a
// caller concern.
var ErrStorage = errors.New("storage error")

// validationErrf wraps ErrValidation with context. errors.Is(err,
// ErrValidation) holds for the result.
func validationErrf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storageErr wraps a database failure so errors.Is(err, ErrStorage) holds
// while the original error text is preserved.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
