package syncproto

import (
	"sync"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
)

// BodySource resolves a block's transaction list by hash. The sync server
// consults it when a peer fetches a chain this broker stores in full;
// chains tracked only by header return found == false and are served
// header-only.
type BodySource interface {
	GetBlockBody(hash string) (trans []database.BlockTx, found bool)
}

// MemoryBodyStore is an in-memory BodySource. The node records every full
// block it accepts (mined or synced) so later sync sessions can serve the
// body back out.
type MemoryBodyStore struct {
	mu     sync.RWMutex
	bodies map[string][]database.BlockTx
}

// NewMemoryBodyStore constructs an empty body store.
func NewMemoryBodyStore() *MemoryBodyStore {
	return &MemoryBodyStore{bodies: make(map[string][]database.BlockTx)}
}

// Record stores block's transaction list under its hash.
func (s *MemoryBodyStore) Record(block database.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bodies[block.Hash()] = block.Trans.Values()
}

// GetBlockBody implements BodySource.
func (s *MemoryBodyStore) GetBlockBody(hash string) ([]database.BlockTx, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trans, ok := s.bodies[hash]
	return trans, ok
}
