package mempool_test

import (
	"testing"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/mempool"
)

func coinbase(t *testing.T, beneficiary database.AccountID, gasPrice uint64) database.BlockTx {
	t.Helper()

	unsigned, err := database.NewUnsignedTx(0, 0, nil, []database.TxOutput{
		{Amount: 100, Address: beneficiary},
	}, gasPrice, 0)
	if err != nil {
		t.Fatalf("should construct unsigned tx: %s", err)
	}

	return database.NewBlockTx(database.SignedTx{UnsignedTx: unsigned})
}

func Test_UpsertAndCount(t *testing.T) {
	mp, err := mempool.New()
	if err != nil {
		t.Fatalf("should construct a mempool: %s", err)
	}

	idx := chainindex.ChainIndex{From: 0, To: 0}
	tx := coinbase(t, "0x000000000000000000000000000000000000aaaa", 10)

	if _, err := mp.Upsert(tx); err != nil {
		t.Fatalf("should upsert: %s", err)
	}

	if count := mp.Count(idx); count != 1 {
		t.Fatalf("expected 1 pending transaction, got %d", count)
	}

	// Upserting the same transaction again must not grow the pool.
	if _, err := mp.Upsert(tx); err != nil {
		t.Fatalf("should upsert again: %s", err)
	}
	if count := mp.Count(idx); count != 1 {
		t.Fatalf("expected upsert to replace, got %d", count)
	}
}

func Test_DeleteRemovesTransaction(t *testing.T) {
	mp, err := mempool.New()
	if err != nil {
		t.Fatalf("should construct a mempool: %s", err)
	}

	idx := chainindex.ChainIndex{From: 0, To: 0}
	tx := coinbase(t, "0x000000000000000000000000000000000000aaaa", 10)

	if _, err := mp.Upsert(tx); err != nil {
		t.Fatalf("should upsert: %s", err)
	}
	if err := mp.Delete(tx); err != nil {
		t.Fatalf("should delete: %s", err)
	}
	if count := mp.Count(idx); count != 0 {
		t.Fatalf("expected empty pool after delete, got %d", count)
	}
}

func Test_PickBestFavorsHigherGasPrice(t *testing.T) {
	mp, err := mempool.New()
	if err != nil {
		t.Fatalf("should construct a mempool: %s", err)
	}

	idx := chainindex.ChainIndex{From: 0, To: 0}

	cheap := coinbase(t, "0x000000000000000000000000000000000000aaaa", 1)
	rich := coinbase(t, "0x000000000000000000000000000000000000bbbb", 100)

	if _, err := mp.Upsert(cheap); err != nil {
		t.Fatalf("should upsert cheap: %s", err)
	}
	if _, err := mp.Upsert(rich); err != nil {
		t.Fatalf("should upsert rich: %s", err)
	}

	best := mp.PickBest(idx, 1)
	if len(best) != 1 {
		t.Fatalf("expected exactly 1 transaction, got %d", len(best))
	}
	if best[0].GasPrice != 100 {
		t.Fatalf("expected the higher gas price transaction to win, got gas price %d", best[0].GasPrice)
	}
}

func Test_PickBestAllReturnsEveryPendingTransaction(t *testing.T) {
	mp, err := mempool.New()
	if err != nil {
		t.Fatalf("should construct a mempool: %s", err)
	}

	idx := chainindex.ChainIndex{From: 0, To: 0}

	for i, addr := range []database.AccountID{
		"0x000000000000000000000000000000000000aaaa",
		"0x000000000000000000000000000000000000bbbb",
		"0x000000000000000000000000000000000000cccc",
	} {
		if _, err := mp.Upsert(coinbase(t, addr, uint64(i+1))); err != nil {
			t.Fatalf("should upsert: %s", err)
		}
	}

	all := mp.PickBest(idx, -1)
	if len(all) != 3 {
		t.Fatalf("expected all 3 pending transactions, got %d", len(all))
	}
}

func Test_TruncateClearsTheChainPool(t *testing.T) {
	mp, err := mempool.New()
	if err != nil {
		t.Fatalf("should construct a mempool: %s", err)
	}

	idx := chainindex.ChainIndex{From: 0, To: 0}
	if _, err := mp.Upsert(coinbase(t, "0x000000000000000000000000000000000000aaaa", 5)); err != nil {
		t.Fatalf("should upsert: %s", err)
	}

	mp.Truncate(idx)
	if count := mp.Count(idx); count != 0 {
		t.Fatalf("expected empty pool after truncate, got %d", count)
	}
}
