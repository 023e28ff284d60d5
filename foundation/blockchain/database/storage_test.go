package database_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
)

func Test_MemoryKVStorePutGetDelete(t *testing.T) {
	store := database.NewMemoryKVStore()

	if _, ok, err := store.Get(database.CFTrie, []byte("k")); err != nil || ok {
		t.Fatalf("expected miss on empty store, got ok=%t err=%v", ok, err)
	}

	if err := store.Put(database.CFTrie, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("should be able to put: %s", err)
	}

	v, ok, err := store.Get(database.CFTrie, []byte("k"))
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("expected hit v=%q, got v=%q ok=%t err=%v", "v", v, ok, err)
	}

	if err := store.Delete(database.CFTrie, []byte("k")); err != nil {
		t.Fatalf("should be able to delete: %s", err)
	}

	if _, ok, _ := store.Get(database.CFTrie, []byte("k")); ok {
		t.Fatal("expected miss after delete")
	}
}

func Test_MemoryKVStoreBatchIsAtomicWithRespectToReaders(t *testing.T) {
	store := database.NewMemoryKVStore()

	ops := []database.KVOp{
		{Kind: database.KVOpPut, CF: database.CFBlock, Key: []byte("a"), Value: []byte("1")},
		{Kind: database.KVOpPut, CF: database.CFBlock, Key: []byte("b"), Value: []byte("2")},
	}

	if err := store.Batch(ops); err != nil {
		t.Fatalf("should apply a batch: %s", err)
	}

	for _, op := range ops {
		v, ok, err := store.Get(op.CF, op.Key)
		if err != nil || !ok || string(v) != string(op.Value) {
			t.Fatalf("batch op for key %q did not apply", op.Key)
		}
	}
}

func Test_FilesStorageWriteAndGetBlockRoundTrip(t *testing.T) {
	dir := t.TempDir()

	storage, err := database.NewFilesStorage(filepath.Join(dir, "chains", "0-0"))
	if err != nil {
		t.Fatalf("should construct files storage: %s", err)
	}
	defer storage.Close()

	block := database.BlockFS{
		Hash:  "0xabc",
		Block: database.BlockHeader{Number: 1},
	}

	if err := storage.Write(block); err != nil {
		t.Fatalf("should write a block: %s", err)
	}

	got, err := storage.GetBlock(1)
	if err != nil {
		t.Fatalf("should read the written block: %s", err)
	}

	if got.Hash != block.Hash {
		t.Fatalf("round tripped hash mismatch: got %s, exp %s", got.Hash, block.Hash)
	}
}

func Test_FilesStorageGetBlockNotFound(t *testing.T) {
	dir := t.TempDir()

	storage, err := database.NewFilesStorage(filepath.Join(dir, "chains", "1-2"))
	if err != nil {
		t.Fatalf("should construct files storage: %s", err)
	}
	defer storage.Close()

	_, err = storage.GetBlock(42)
	if err == nil {
		t.Fatal("should fail to read a block that was never written")
	}

	var se *database.StorageError
	if !errors.As(err, &se) || se.Kind != database.StorageNotFound {
		t.Fatalf("expected a StorageError{Kind: NotFound}, got %v", err)
	}
}

func Test_FilesIteratorStopsAtFirstMissingBlock(t *testing.T) {
	dir := t.TempDir()

	storage, err := database.NewFilesStorage(filepath.Join(dir, "chains", "2-2"))
	if err != nil {
		t.Fatalf("should construct files storage: %s", err)
	}
	defer storage.Close()

	for i := uint64(1); i <= 3; i++ {
		if err := storage.Write(database.BlockFS{Hash: "h", Block: database.BlockHeader{Number: i}}); err != nil {
			t.Fatalf("should write block %d: %s", i, err)
		}
	}

	iter := storage.Foreach()

	var count int
	for {
		_, err := iter.Next()
		if iter.Done() {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error walking chain log: %s", err)
		}
		count++
	}

	if count != 3 {
		t.Fatalf("expected to iterate 3 blocks, got %d", count)
	}
}
