package database

import (
	"encoding/binary"
	"fmt"
)

// Single-byte key postfixes scoping one chain's metadata inside a column
// family. A metadata key is the chain's flattened grid position followed
// by the postfix, so every chain's state clusters under a common prefix.
const (
	KeyIsInitialized byte = 0
	KeyBlockState    byte = 1
	KeyTrieHash      byte = 2
	KeyHeight        byte = 3
	KeyChainState    byte = 4
	KeyDBVersion     byte = 5
	KeyBootstrapInfo byte = 6
)

// MetadataKey builds the key for one chain's metadata slot: the flattened
// chain position big-endian, then the postfix byte.
func MetadataKey(flattenedChain int, postfix byte) []byte {
	return []byte{byte(flattenedChain >> 8), byte(flattenedChain), postfix}
}

// ChainCursor persists one chain's tip hash, height, and world-state root
// under the chain's metadata keys, every save applied as one atomic batch
// so a crash never leaves the cursor pointing at a tip whose height or
// trie root was not recorded with it.
type ChainCursor struct {
	store KVStore
	chain int
}

// NewChainCursor constructs a cursor for the chain at flattenedChain.
func NewChainCursor(store KVStore, flattenedChain int) *ChainCursor {
	return &ChainCursor{store: store, chain: flattenedChain}
}

// Save records the chain's current tip, height, and trie root atomically.
func (c *ChainCursor) Save(tipHash string, height uint64, trieRoot string) error {
	heightBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBytes, height)

	ops := []KVOp{
		{Kind: KVOpPut, CF: CFAll, Key: MetadataKey(c.chain, KeyIsInitialized), Value: []byte{1}},
		{Kind: KVOpPut, CF: CFAll, Key: MetadataKey(c.chain, KeyChainState), Value: []byte(tipHash)},
		{Kind: KVOpPut, CF: CFAll, Key: MetadataKey(c.chain, KeyHeight), Value: heightBytes},
		{Kind: KVOpPut, CF: CFAll, Key: MetadataKey(c.chain, KeyTrieHash), Value: []byte(trieRoot)},
	}

	if err := c.store.Batch(ops); err != nil {
		return NewStorageError(StorageIOFailure, err)
	}
	return nil
}

// Load reads the cursor back. initialized is false for a chain that has
// never been saved.
func (c *ChainCursor) Load() (tipHash string, height uint64, trieRoot string, initialized bool, err error) {
	flag, ok, err := c.store.Get(CFAll, MetadataKey(c.chain, KeyIsInitialized))
	if err != nil {
		return "", 0, "", false, NewStorageError(StorageIOFailure, err)
	}
	if !ok || len(flag) == 0 || flag[0] == 0 {
		return "", 0, "", false, nil
	}

	tip, ok, err := c.store.Get(CFAll, MetadataKey(c.chain, KeyChainState))
	if err != nil || !ok {
		return "", 0, "", false, NewStorageError(StorageCorruption, fmt.Errorf("initialized chain %d has no chain state: %v", c.chain, err))
	}

	heightBytes, ok, err := c.store.Get(CFAll, MetadataKey(c.chain, KeyHeight))
	if err != nil || !ok || len(heightBytes) != 8 {
		return "", 0, "", false, NewStorageError(StorageCorruption, fmt.Errorf("initialized chain %d has no height: %v", c.chain, err))
	}

	root, _, err := c.store.Get(CFAll, MetadataKey(c.chain, KeyTrieHash))
	if err != nil {
		return "", 0, "", false, NewStorageError(StorageIOFailure, err)
	}

	return string(tip), binary.BigEndian.Uint64(heightBytes), string(root), true, nil
}
