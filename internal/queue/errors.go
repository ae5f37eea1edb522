package queue

import (
	"errors"
	"fmt"
)

// ErrStorageUnavailable is matched by every failure to read or write the
// durable store. Callers of Enqueue must treat it as a lost write.
var ErrStorageUnavailable = errors.New("queue storage unavailable")

// ErrInvalidRecord reports a log record rejected before it reached storage.
var ErrInvalidRecord = errors.New("invalid log record")

// StorageError wraps a database failure with the store operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is reports ErrStorageUnavailable so callers can match with errors.Is.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
