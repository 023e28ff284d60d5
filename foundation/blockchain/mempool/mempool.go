// Package mempool maintains the pending transaction pool for every chain in
// the grid, scoped by the (from, to) chain pair each transaction targets.
package mempool

import (
	"fmt"
	"sync"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/mempool/selector"
)

// Mempool represents a cache of pending transactions organized per chain
// pair, with a second key on the transaction hash.
type Mempool struct {
	mu       sync.RWMutex
	pools    map[chainindex.ChainIndex]map[string]database.BlockTx
	selectFn selector.Func
}

// New constructs a new mempool using the default select strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyGasPrice)
}

// NewWithStrategy constructs a new mempool with the specified select
// strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pools:    make(map[chainindex.ChainIndex]map[string]database.BlockTx),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transactions pending for chainIndex.
func (mp *Mempool) Count(chainIndex chainindex.ChainIndex) int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pools[chainIndex])
}

// Upsert adds or replaces a transaction in the pool of the chain pair it
// targets.
func (mp *Mempool) Upsert(tx database.BlockTx) (int, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	idx, key, err := mapKey(tx)
	if err != nil {
		return 0, err
	}

	pool := mp.pools[idx]
	if pool == nil {
		pool = make(map[string]database.BlockTx)
		mp.pools[idx] = pool
	}
	pool[key] = tx

	return len(pool), nil
}

// Delete removes a transaction from the pool of the chain pair it targets.
func (mp *Mempool) Delete(tx database.BlockTx) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	idx, key, err := mapKey(tx)
	if err != nil {
		return err
	}

	delete(mp.pools[idx], key)

	return nil
}

// Truncate clears every pending transaction for chainIndex.
func (mp *Mempool) Truncate(chainIndex chainindex.ChainIndex) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pools, chainIndex)
}

// PickBest uses the configured select strategy to return the next set of
// transactions for a block template on chainIndex. Passing -1 for howMany
// returns every pending transaction for that chain pair.
func (mp *Mempool) PickBest(chainIndex chainindex.ChainIndex, howMany int) []database.BlockTx {

	// Group the chain's pending transactions by their first signer so the
	// selector can be fair across signers.
	m := make(map[database.AccountID][]database.BlockTx)
	mp.mu.RLock()
	{
		pool := mp.pools[chainIndex]
		if howMany == -1 {
			howMany = len(pool)
		}

		for _, tx := range pool {
			signer, err := firstSigner(tx)
			if err != nil {
				continue
			}
			m[signer] = append(m[signer], tx)
		}
	}
	mp.mu.RUnlock()

	return mp.selectFn(m, howMany)
}

// =============================================================================

// mapKey identifies the chain pool a transaction belongs to and the key it
// occupies within that pool.
func mapKey(tx database.BlockTx) (chainindex.ChainIndex, string, error) {
	// Group count validation happens when the block producer validates the
	// transaction against the grid; the mempool only needs the pair itself
	// to route the transaction to its pool.
	idx := chainindex.ChainIndex{From: tx.ChainFrom, To: tx.ChainTo}

	return idx, tx.UnsignedTx.Hash(), nil
}

// firstSigner returns the transaction's first signing account, used to
// group transactions for the select strategy. A coinbase transaction has
// no signer and is grouped under its beneficiary instead.
func firstSigner(tx database.BlockTx) (database.AccountID, error) {
	if tx.IsCoinbase() {
		if len(tx.Outputs) == 0 {
			return "", fmt.Errorf("coinbase transaction %s has no outputs", tx.UnsignedTx.Hash())
		}
		return tx.Outputs[0].Address, nil
	}

	accounts, err := tx.FromAccounts()
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "", fmt.Errorf("transaction %s resolved no signer", tx.UnsignedTx.Hash())
	}

	return accounts[0], nil
}
