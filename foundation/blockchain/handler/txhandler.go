package handler

import (
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/mempool"
)

// TxHandler fronts the mempool. It has no mailbox of its own: the mempool
// is already safe for concurrent use, so the handler only needs to exist as
// a named member of the mesh for symmetry with the other handlers and as
// the place future admission policy (fee floors, gas caps) would live.
type TxHandler struct {
	mp        *mempool.Mempool
	evHandler func(v string, args ...any)
}

// NewTxHandler constructs a transaction handler fronting mp.
func NewTxHandler(mp *mempool.Mempool, evHandler func(v string, args ...any)) *TxHandler {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	return &TxHandler{mp: mp, evHandler: evHandler}
}

// Submit validates and admits tx into the mempool of the chain pair it
// targets.
func (th *TxHandler) Submit(tx database.BlockTx) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	count, err := th.mp.Upsert(tx)
	if err != nil {
		return err
	}

	th.evHandler("tx: submitted %s, pool size %d", tx.UnsignedTx.Hash(), count)
	return nil
}

// PickBest returns the best howMany transactions pending for chainIndex.
func (th *TxHandler) PickBest(chainIndex chainindex.ChainIndex, howMany int) []database.BlockTx {
	return th.mp.PickBest(chainIndex, howMany)
}

// Remove drops every transaction in txs from the mempool, called once their
// block has been committed.
func (th *TxHandler) Remove(txs []database.BlockTx) {
	for _, tx := range txs {
		_ = th.mp.Delete(tx)
	}
}
