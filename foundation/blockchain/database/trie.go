package database

import (
	"encoding/hex"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// ErrTrieKeyNotFound is returned by Trie.Get when no value is stored at key.
var ErrTrieKeyNotFound = errors.New("trie: key not found")

// trieDepth is the number of bits addressed by the sparse trie, matching
// the 256-bit digest produced by blake2b-256.
const trieDepth = 256

// trieNode is one node of the sparse merkle trie. Leaf nodes carry a value;
// internal nodes carry the hashes of their two children. Nodes are
// content-addressed: their storage key is the blake2b-256 hash of their
// serialized form, so two subtrees with identical contents always share
// one copy regardless of which version of the trie references them.
type trieNode struct {
	Leaf  bool   `json:"leaf"`
	Value []byte `json:"value,omitempty"`
	Left  string `json:"left,omitempty"`
	Right string `json:"right,omitempty"`
}

func (n trieNode) hash() string {
	data, _ := json.Marshal(n)
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// emptyNodeHashes[d] is the hash of an empty subtree of depth d, cached so
// Get and Put never hash the same empty placeholder twice per lookup.
var emptyNodeHashes = computeEmptyNodeHashes()

func computeEmptyNodeHashes() []string {
	hashes := make([]string, trieDepth+1)
	hashes[0] = trieNode{Leaf: true}.hash()

	for d := 1; d <= trieDepth; d++ {
		hashes[d] = trieNode{Left: hashes[d-1], Right: hashes[d-1]}.hash()
	}

	return hashes
}

// Trie is a Sparse-Merkle-Trie over 256-bit keys, backed by a content
// addressed KVStore column family. Root pins the current world-state
// commitment; it is what the block header's world-state root references.
type Trie struct {
	store KVStore
	cf    string
	root  string
}

// NewTrie constructs an empty trie rooted at the canonical empty-tree hash,
// persisting its nodes into cf within store.
func NewTrie(store KVStore, cf string) *Trie {
	return &Trie{store: store, cf: cf, root: emptyNodeHashes[trieDepth]}
}

// OpenTrie resumes a trie previously committed to root.
func OpenTrie(store KVStore, cf string, root string) *Trie {
	return &Trie{store: store, cf: cf, root: root}
}

// Root returns the current commitment hash of the trie.
func (t *Trie) Root() string {
	return t.root
}

// Get looks up the value stored at key, hashed down to a fixed 256-bit
// path. Returns ErrTrieKeyNotFound if the key was never set.
func (t *Trie) Get(key []byte) ([]byte, error) {
	path := keyPath(key)

	node, err := t.loadNode(t.root)
	if err != nil {
		return nil, err
	}

	for depth := trieDepth; depth > 0; depth-- {
		bit := path[trieDepth-depth]

		var childHash string
		if bit == 0 {
			childHash = node.Left
		} else {
			childHash = node.Right
		}

		if childHash == "" || childHash == emptyNodeHashes[depth-1] {
			return nil, ErrTrieKeyNotFound
		}

		node, err = t.loadNode(childHash)
		if err != nil {
			return nil, err
		}
	}

	if !node.Leaf || node.Value == nil {
		return nil, ErrTrieKeyNotFound
	}

	return node.Value, nil
}

// Put writes value at key and returns the new trie rooted at the updated
// commitment. The receiver is left untouched; callers chain Put calls or
// reassign the returned trie to build up a new version.
func (t *Trie) Put(key, value []byte) (*Trie, error) {
	path := keyPath(key)

	newRoot, ops, err := t.putAt(t.root, path, 0, value)
	if err != nil {
		return nil, err
	}

	if err := t.store.Batch(ops); err != nil {
		return nil, NewStorageError(StorageIOFailure, err)
	}

	return &Trie{store: t.store, cf: t.cf, root: newRoot}, nil
}

func (t *Trie) putAt(nodeHash string, path []byte, bitIndex int, value []byte) (string, []KVOp, error) {
	if bitIndex == trieDepth {
		leaf := trieNode{Leaf: true, Value: value}
		h := leaf.hash()
		data, _ := json.Marshal(leaf)
		return h, []KVOp{{Kind: KVOpPut, CF: t.cf, Key: []byte(h), Value: data}}, nil
	}

	node, err := t.loadNode(nodeHash)
	if err != nil {
		return "", nil, err
	}

	bit := path[bitIndex]

	var ops []KVOp
	if bit == 0 {
		childHash := node.Left
		if childHash == "" {
			childHash = emptyNodeHashes[trieDepth-bitIndex-1]
		}

		newChildHash, childOps, err := t.putAt(childHash, path, bitIndex+1, value)
		if err != nil {
			return "", nil, err
		}
		node.Left = newChildHash
		ops = append(ops, childOps...)
	} else {
		childHash := node.Right
		if childHash == "" {
			childHash = emptyNodeHashes[trieDepth-bitIndex-1]
		}

		newChildHash, childOps, err := t.putAt(childHash, path, bitIndex+1, value)
		if err != nil {
			return "", nil, err
		}
		node.Right = newChildHash
		ops = append(ops, childOps...)
	}

	node.Leaf = false
	node.Value = nil

	h := node.hash()
	data, _ := json.Marshal(node)
	ops = append(ops, KVOp{Kind: KVOpPut, CF: t.cf, Key: []byte(h), Value: data})

	return h, ops, nil
}

func (t *Trie) loadNode(hash string) (trieNode, error) {
	for depth := 0; depth <= trieDepth; depth++ {
		if hash == emptyNodeHashes[depth] {
			if depth == 0 {
				return trieNode{Leaf: true}, nil
			}
			return trieNode{Left: emptyNodeHashes[depth-1], Right: emptyNodeHashes[depth-1]}, nil
		}
	}

	data, ok, err := t.store.Get(t.cf, []byte(hash))
	if err != nil {
		return trieNode{}, NewStorageError(StorageIOFailure, err)
	}
	if !ok {
		return trieNode{}, NewStorageError(StorageCorruption, errors.New("trie node referenced by hash is missing from storage"))
	}

	var node trieNode
	if err := json.Unmarshal(data, &node); err != nil {
		return trieNode{}, NewStorageError(StorageCorruption, err)
	}

	return node, nil
}

// keyPath hashes key with blake2b-256 and expands it into one bit per byte,
// most significant bit first, for a fixed 256-entry descent path.
func keyPath(key []byte) []byte {
	sum := blake2b.Sum256(key)

	path := make([]byte, trieDepth)
	for i, b := range sum {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<(7-bit)) != 0 {
				path[i*8+bit] = 1
			}
		}
	}

	return path
}
