package selector

import "github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"

// gasPriceSelect returns transactions favoring the best gas price while
// giving every signer a fair shot at each row of the block template: one
// transaction per signer per round, highest gas price within a round wins
// when the round must be cut short.
var gasPriceSelect = func(m map[database.AccountID][]database.BlockTx, howMany int) []database.BlockTx {

	// Pick one transaction per signer per round until every signer's queue
	// is drained. Round 0 holds each signer's first transaction, round 1
	// their second, and so on.
	var rounds [][]database.BlockTx
	for {
		var round []database.BlockTx
		for key := range m {
			if len(m[key]) > 0 {
				round = append(round, m[key][0])
				m[key] = m[key][1:]
			}
		}
		if round == nil {
			break
		}
		rounds = append(rounds, round)
	}

	// Walk the rounds in order, taking whole rounds until the requested
	// count would be exceeded, then fill the remainder with the highest
	// paying transactions from the final partial round.
	final := []database.BlockTx{}
done:
	for _, round := range rounds {
		need := howMany - len(final)
		if howMany >= 0 && len(round) > need {
			sortByGasPrice(round)
			final = append(final, round[:need]...)
			break done
		}
		final = append(final, round...)
	}

	return final
}
