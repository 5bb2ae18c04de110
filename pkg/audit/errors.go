package audit

import "fmt"

// StorageError represents a failure in a ledger storage backend.
type StorageError struct {
	Backend   string // "memory", "sqlite"
	Operation string // "append", "record", "range", "open", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

// NotFoundError indicates a requested sequence number does not exist.
type NotFoundError struct {
	Sequence uint64
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("audit record %d not found", e.Sequence)
}
