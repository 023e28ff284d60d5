package main

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/genesis"
)

// Storage failure policy for the persistence path: transient write
// failures are attempted this many times in total, with doubling backoff
// between attempts, before the block is dropped; corruption is never retried and terminates the node.
const (
	persistAttempts = 4
	persistBackoff  = 250 * time.Millisecond
)

// blockPersister writes every accepted full block to its chain's on-disk
// log and advances that chain's cursor. IOFailure is retried with bounded
// backoff and the block dropped if the disk never recovers; Corruption is
// escalated through the fatal channel so the node terminates with a
// diagnostic instead of mining on top of state it cannot trust.
type blockPersister struct {
	storages map[chainindex.ChainIndex]database.Storage
	cursors  map[chainindex.ChainIndex]*database.ChainCursor

	fatal chan<- error
	log   *zap.SugaredLogger
}

// newBlockPersister creates one file-per-block store per chain under
// dbPath and one cursor per chain in the node's KV engine.
func newBlockPersister(dbPath string, gen genesis.Genesis, kv database.KVStore, fatal chan<- error, log *zap.SugaredLogger) (*blockPersister, error) {
	p := &blockPersister{
		storages: make(map[chainindex.ChainIndex]database.Storage),
		cursors:  make(map[chainindex.ChainIndex]*database.ChainCursor),
		fatal:    fatal,
		log:      log,
	}

	for _, idx := range chainindex.All(gen.GroupCount) {
		st, err := database.NewFilesStorage(filepath.Join(dbPath, fmt.Sprintf("%d-%d", idx.From, idx.To)))
		if err != nil {
			return nil, fmt.Errorf("opening chain storage for %s: %w", idx, err)
		}
		p.storages[idx] = st
		p.cursors[idx] = database.NewChainCursor(kv, idx.Flattened(gen.GroupCount))
	}

	return p, nil
}

// OnBlockStored is registered as a handler-mesh hook and runs after a
// chain handler accepts a full block.
func (p *blockPersister) OnBlockStored(block database.Block) {
	idx := chainindex.ChainIndex{From: block.Header.ChainFrom, To: block.Header.ChainTo}

	st, ok := p.storages[idx]
	if !ok {
		return
	}

	err := database.RetryStorage(persistAttempts, persistBackoff, func() error {
		return st.Write(database.NewBlockFS(block))
	})
	if err == nil {
		err = database.RetryStorage(persistAttempts, persistBackoff, func() error {
			return p.cursors[idx].Save(block.Hash(), block.Header.Number, "")
		})
	}

	switch {
	case err == nil:

	case database.IsStorageCorruption(err):
		select {
		case p.fatal <- err:
		default:
		}

	default:
		p.log.Infow("persist", "status", "block dropped after bounded retries", "chain", idx.String(), "block", block.Hash(), "ERROR", err)
	}
}
