package database

import (
	"errors"
	"fmt"
	"time"
)

// ValidationKind enumerates why a block, header, or transaction was
// rejected by the ledger. These are reported back to the source (peer or
// miner) and the offending item is dropped, never retried.
type ValidationKind string

// The exhaustive set of validation failure kinds.
const (
	ValidationBadPoW        ValidationKind = "BadPoW"
	ValidationBadDeps       ValidationKind = "BadDeps"
	ValidationBadTimestamp  ValidationKind = "BadTimestamp"
	ValidationUnknownParent ValidationKind = "UnknownParent"
	ValidationBadSignature  ValidationKind = "BadSignature"
	ValidationBadMerkleRoot ValidationKind = "BadMerkleRoot"
)

// ValidationError reports a rejected block, header, or transaction.
type ValidationError struct {
	Kind ValidationKind
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [%s]: %s", e.Kind, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError wraps err with a ValidationKind for callers that need
// to branch on the failure category rather than match error strings.
func NewValidationError(kind ValidationKind, err error) *ValidationError {
	return &ValidationError{Kind: kind, Err: err}
}

// =============================================================================

// StorageKind enumerates the ways the KVStore collaborator can fail.
type StorageKind string

// The exhaustive set of storage failure kinds.
const (
	StorageIOFailure  StorageKind = "IOFailure"
	StorageCorruption StorageKind = "Corruption"
	StorageNotFound   StorageKind = "NotFound"
)

// StorageError reports a failure reading or writing persisted chain state.
// IOFailure is expected to be retried by the caller with bounded backoff;
// Corruption is fatal and should terminate the node with a diagnostic.
type StorageError struct {
	Kind StorageKind
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [%s]: %s", e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err with a StorageKind.
func NewStorageError(kind StorageKind, err error) *StorageError {
	return &StorageError{Kind: kind, Err: err}
}

// IsStorageCorruption reports whether err carries the Corruption kind,
// the one storage failure a node must not survive.
func IsStorageCorruption(err error) bool {
	var serr *StorageError
	return errors.As(err, &serr) && serr.Kind == StorageCorruption
}

// RetryStorage runs op, retrying IOFailure with a bounded exponential
// backoff; errors carrying no StorageKind are treated as transient too.
// Corruption and NotFound return immediately: retrying cannot repair a
// corrupt record, and an absent one will not appear. The last failure is
// returned once attempts are exhausted.
func RetryStorage(attempts int, backoff time.Duration, op func() error) error {
	var err error

	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}

		var serr *StorageError
		if errors.As(err, &serr) && serr.Kind != StorageIOFailure {
			return err
		}

		if i < attempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	return err
}
