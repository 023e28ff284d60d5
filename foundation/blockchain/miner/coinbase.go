package miner

import (
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
)

// newCoinbase constructs the synthetic zero-input transaction every mined
// block opens with, paying reward to beneficiary. It carries no signature:
// SignedTx.Validate special-cases IsCoinbase and skips signature checks.
func newCoinbase(idx chainindex.ChainIndex, beneficiary database.AccountID, reward uint64) (database.BlockTx, error) {
	unsigned, err := database.NewUnsignedTx(idx.From, idx.To, nil, []database.TxOutput{
		{Amount: reward, Address: beneficiary},
	}, 0, 0)
	if err != nil {
		return database.BlockTx{}, err
	}

	return database.NewBlockTx(database.SignedTx{UnsignedTx: unsigned}), nil
}
