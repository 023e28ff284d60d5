package miner

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
	"github.com/blockflow-labs/blockflow-node/foundation/events"
)

// runSubMiner is the goroutine body for one target group to. It cycles:
// request the best template for chain (mainGroup,to), assemble a
// candidate block, scan bounded nonce slices until solved, submit the
// solution, then wait for its own BlockAdded occurrence before requesting
// a fresh template. On a failed slice it re-dispatches the same template
// with a freshly randomized nonce start.
func (m *Miner) runSubMiner(to uint16) {
	defer m.wg.Done()

	idx, err := chainindex.New(m.mainGroup, to, m.groupCount)
	if err != nil {
		m.evHandler("miner: sub[%d]: invalid chain index: %s", to, err)
		return
	}

	sub := subscriberID(idx)
	added := m.bus.Subscribe(sub)
	defer m.bus.Unsubscribe(sub)

	for !m.isShutdown() {
		if err := m.mineOneBlock(idx, added); err != nil {
			m.evHandler("miner: sub[%s]: round failed: %s", idx, err)

			select {
			case <-m.shut:
				return
			case <-time.After(250 * time.Millisecond):
			}
		}
	}
}

// mineOneBlock drives exactly one request-template/mine/submit/wait cycle
// for chainIndex.
func (m *Miner) mineOneBlock(idx chainindex.ChainIndex, added <-chan events.Event) error {
	deps, target, err := m.handlers.Flow.RequestTemplate(idx)
	if err != nil {
		return err
	}

	prevBlock, err := m.previousBlock(deps.PrevBlockHash)
	if err != nil {
		return err
	}

	trans := m.handlers.Tx.PickBest(idx, int(m.gen.TransPerBlock)-1)
	coinbase, err := newCoinbase(idx, m.beneficiary, m.reward)
	if err != nil {
		return err
	}
	blockTrans := append([]database.BlockTx{coinbase}, trans...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		if m.isShutdown() {
			return nil
		}

		nonceStart, err := randomUint64()
		if err != nil {
			return err
		}

		block, err := database.POWRange(ctx, m.beneficiary, idx.From, idx.To, target, prevBlock, deps.OtherDeps, blockTrans, nonceStart, m.nonceStep, m.evHandler)
		m.addMiningCount(idx.To, m.nonceStep)

		switch {
		case err == database.ErrNoSolutionInRange:
			continue
		case err != nil:
			return err
		default:
			return m.submitAndWait(idx, block, blockTrans, added)
		}
	}
}

func (m *Miner) submitAndWait(idx chainindex.ChainIndex, block database.Block, trans []database.BlockTx, added <-chan events.Event) error {
	if err := m.handlers.SubmitBlock(idx, block); err != nil {
		return err
	}

	m.handlers.Tx.Remove(trans[1:]) // trans[0] is the coinbase, never pooled.

	hash := block.Hash()
	want := blockAddedKind(idx)

	for {
		select {
		case <-m.shut:
			return nil
		case ev, ok := <-added:
			if !ok {
				return nil
			}
			if ev.Kind != want {
				continue
			}
			if seen, _ := ev.Data.(string); seen == hash {
				return nil
			}
		}
	}
}

// previousBlock resolves hash to a Block carrying only the header fields
// POWRange's candidate assembly needs (Number, and Hash() itself, which
// operates on the header alone); the transaction tree of an ancestor block
// is never required to mine on top of it.
func (m *Miner) previousBlock(hash string) (database.Block, error) {
	header, found := m.handlers.Flow.RequestHeader(hash)
	if !found {
		return database.Block{}, fmt.Errorf("miner: unknown previous block %s", hash)
	}

	return database.Block{Header: header}, nil
}

func randomUint64() (uint64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 0, err
	}

	return n.Uint64(), nil
}
