package database_test

import (
	"errors"
	"testing"
	"time"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
)

func Test_RetryStorageRetriesIOFailure(t *testing.T) {
	calls := 0
	err := database.RetryStorage(3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return database.NewStorageError(database.StorageIOFailure, errors.New("disk hiccup"))
		}
		return nil
	})

	if err != nil {
		t.Fatalf("should succeed once the transient failure clears: %s", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func Test_RetryStorageGivesUpAfterBoundedAttempts(t *testing.T) {
	calls := 0
	err := database.RetryStorage(3, time.Millisecond, func() error {
		calls++
		return database.NewStorageError(database.StorageIOFailure, errors.New("disk gone"))
	})

	if err == nil {
		t.Fatal("should report the failure once attempts are exhausted")
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
}

func Test_RetryStorageDoesNotRetryCorruption(t *testing.T) {
	calls := 0
	err := database.RetryStorage(3, time.Millisecond, func() error {
		calls++
		return database.NewStorageError(database.StorageCorruption, errors.New("bad record"))
	})

	if !database.IsStorageCorruption(err) {
		t.Fatalf("should surface the corruption, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("corruption must not be retried, got %d attempts", calls)
	}
}
