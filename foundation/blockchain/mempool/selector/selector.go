// Package selector provides different transaction selecting algorithms for
// the mempool to turn a pool of pending transactions into a block template.
package selector

import (
	"fmt"
	"sort"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyGasPrice = "gasprice"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyGasPrice: gasPriceSelect,
}

// Func defines a function that takes a mempool of transactions grouped by
// their first signer and selects howMany of them in an order based on the
// function's strategy. Receiving -1 for howMany must return all the
// transactions in the strategy's ordering.
type Func func(transactions map[database.AccountID][]database.BlockTx, howMany int) []database.BlockTx

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// byGasPrice provides sorting support by the transaction's gas price, the
// fee a signer is willing to pay per unit of gas.
type byGasPrice []database.BlockTx

func (bg byGasPrice) Len() int      { return len(bg) }
func (bg byGasPrice) Swap(i, j int) { bg[i], bg[j] = bg[j], bg[i] }

// Less sorts in descending order so the best paying transaction comes
// first.
func (bg byGasPrice) Less(i, j int) bool {
	return bg[i].GasPrice > bg[j].GasPrice
}

// sortByGasPrice sorts txs in place, highest gas price first.
func sortByGasPrice(txs []database.BlockTx) {
	sort.Sort(byGasPrice(txs))
}
