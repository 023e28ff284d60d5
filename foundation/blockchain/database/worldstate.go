package database

import "encoding/json"

// WorldState is the persistent map from address to account/contract state
// backed by a Sparse-Merkle-Trie. The VM package is the only consumer that
// knows the shape of the values stored here (asset balances, contract
// fields); this package only knows how to address and authenticate them.
type WorldState struct {
	trie *Trie
}

// NewWorldState constructs an empty world state over store.
func NewWorldState(store KVStore) *WorldState {
	return &WorldState{trie: NewTrie(store, CFTrie)}
}

// OpenWorldState resumes a world state previously committed to root, as
// referenced by a block header's world-state root.
func OpenWorldState(store KVStore, root string) *WorldState {
	return &WorldState{trie: OpenTrie(store, CFTrie, root)}
}

// Root returns the current world-state commitment. Block producers pin
// this value into the block they mine once all transactions apply cleanly.
func (w *WorldState) Root() string {
	return w.trie.Root()
}

// Get decodes the JSON-encoded state stored at address into out. Returns
// ErrTrieKeyNotFound if the address has no state.
func (w *WorldState) Get(address AccountID, out any) error {
	data, err := w.trie.Get([]byte(address))
	if err != nil {
		return err
	}

	return json.Unmarshal(data, out)
}

// Put JSON-encodes value and writes it at address, returning a new
// WorldState rooted at the updated commitment. The receiver is left
// untouched.
func (w *WorldState) Put(address AccountID, value any) (*WorldState, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	newTrie, err := w.trie.Put([]byte(address), data)
	if err != nil {
		return nil, err
	}

	return &WorldState{trie: newTrie}, nil
}
