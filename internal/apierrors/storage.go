package apierrors

import (
	"errors"
	"fmt"
)

var (
	ErrValueNotFound     = errors.New("value not found")
	ErrDuplicateValue    = errors.New("duplicate value")
	ErrConcurrentUpdate  = errors.New("record was modified concurrently")
	ErrIllegalTransition = errors.New("illegal status transition")
)

// StorageError wraps a persistence failure with the operation being attempted.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrValueNotFound)
}

func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateValue)
}
