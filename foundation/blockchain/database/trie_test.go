package database_test

import (
	"errors"
	"testing"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
)

func Test_TrieGetMissingKey(t *testing.T) {
	trie := database.NewTrie(database.NewMemoryKVStore(), database.CFTrie)

	_, err := trie.Get([]byte("nope"))
	if !errors.Is(err, database.ErrTrieKeyNotFound) {
		t.Fatalf("expected ErrTrieKeyNotFound, got %v", err)
	}
}

func Test_TriePutThenGet(t *testing.T) {
	trie := database.NewTrie(database.NewMemoryKVStore(), database.CFTrie)

	updated, err := trie.Put([]byte("alpha"), []byte("1"))
	if err != nil {
		t.Fatalf("should be able to put: %s", err)
	}

	got, err := updated.Get([]byte("alpha"))
	if err != nil {
		t.Fatalf("should be able to get what was put: %s", err)
	}

	if string(got) != "1" {
		t.Fatalf("got %q, want %q", got, "1")
	}
}

func Test_TriePutIsImmutable(t *testing.T) {
	store := database.NewMemoryKVStore()
	original := database.NewTrie(store, database.CFTrie)

	updated, err := original.Put([]byte("alpha"), []byte("1"))
	if err != nil {
		t.Fatalf("should be able to put: %s", err)
	}

	if original.Root() == updated.Root() {
		t.Fatal("putting a value should produce a different root than the original trie")
	}

	if _, err := original.Get([]byte("alpha")); !errors.Is(err, database.ErrTrieKeyNotFound) {
		t.Fatal("the original trie should be unaffected by Put on the returned trie")
	}
}

func Test_TrieRootDeterministicForSameContent(t *testing.T) {
	store := database.NewMemoryKVStore()

	t1 := database.NewTrie(store, database.CFTrie)
	t1, err := t1.Put([]byte("a"), []byte("1"))
	if err != nil {
		t.Fatalf("put failed: %s", err)
	}
	t1, err = t1.Put([]byte("b"), []byte("2"))
	if err != nil {
		t.Fatalf("put failed: %s", err)
	}

	t2 := database.NewTrie(store, database.CFTrie)
	t2, err = t2.Put([]byte("a"), []byte("1"))
	if err != nil {
		t.Fatalf("put failed: %s", err)
	}
	t2, err = t2.Put([]byte("b"), []byte("2"))
	if err != nil {
		t.Fatalf("put failed: %s", err)
	}

	if t1.Root() != t2.Root() {
		t.Fatalf("two tries built from the same puts should commit to the same root: %s vs %s", t1.Root(), t2.Root())
	}
}

func Test_TrieOverwriteValue(t *testing.T) {
	trie := database.NewTrie(database.NewMemoryKVStore(), database.CFTrie)

	trie, err := trie.Put([]byte("alpha"), []byte("1"))
	if err != nil {
		t.Fatalf("put failed: %s", err)
	}
	trie, err = trie.Put([]byte("alpha"), []byte("2"))
	if err != nil {
		t.Fatalf("put failed: %s", err)
	}

	got, err := trie.Get([]byte("alpha"))
	if err != nil {
		t.Fatalf("get failed: %s", err)
	}

	if string(got) != "2" {
		t.Fatalf("expected overwritten value %q, got %q", "2", got)
	}
}
