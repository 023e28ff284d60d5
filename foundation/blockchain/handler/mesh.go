package handler

import (
	"fmt"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/blockflow"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/mempool"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/retarget"
)

// AllHandlers composes one chain handler per (from, to) pair, the single
// flow handler serializing DAG mutations, and the transaction handler.
type AllHandlers struct {
	Flow  *FlowHandler
	Tx    *TxHandler
	chain map[chainindex.ChainIndex]*ChainHandler

	stored []func(database.Block)
}

// NewAllHandlers wires the mesh for a broker storing full blocks on every
// chain broker.RelatesTo reports true for and headers everywhere else.
func NewAllHandlers(bf *blockflow.BlockFlow, broker chainindex.BrokerConfig, mp *mempool.Mempool, evHandler func(v string, args ...any)) *AllHandlers {
	groups := bf.GenesisConfig().GroupCount

	flow := NewFlowHandler(bf, retarget.NewSlidingWindow(bf.GenesisConfig()), evHandler)

	chains := make(map[chainindex.ChainIndex]*ChainHandler)
	for _, idx := range chainindex.All(groups) {
		local := broker.RelatesTo(idx)
		chains[idx] = NewChainHandler(idx, local, groups, flow, evHandler)
	}

	return &AllHandlers{
		Flow:  flow,
		Tx:    NewTxHandler(mp, evHandler),
		chain: chains,
	}
}

// SeedGenesis records every chain's genesis header in its chain handler so
// local parent lookups agree with the flow's DAG. Must run before Start,
// alongside the flow's own Genesis seeding.
func (ah *AllHandlers) SeedGenesis(hashes map[chainindex.ChainIndex]string) error {
	for idx, hash := range hashes {
		ch, ok := ah.chain[idx]
		if !ok {
			return fmt.Errorf("no chain handler registered for %s", idx)
		}
		if err := ch.SeedGenesis(hash, blockflow.GenesisHeader(idx)); err != nil {
			return err
		}
	}
	return nil
}

// Chain returns the handler owning idx.
func (ah *AllHandlers) Chain(idx chainindex.ChainIndex) (*ChainHandler, bool) {
	ch, ok := ah.chain[idx]
	return ch, ok
}

// Start launches every handler's mailbox loop.
func (ah *AllHandlers) Start() {
	ah.Flow.Start()
	for _, ch := range ah.chain {
		ch.Start()
	}
}

// Shutdown stops every handler's mailbox loop, flow handler last so chain
// handlers never submit to a closed mailbox mid-shutdown.
func (ah *AllHandlers) Shutdown() {
	for _, ch := range ah.chain {
		ch.Shutdown()
	}
	ah.Flow.Shutdown()
}

// OnBlockStored registers fn to run after a full block is accepted by its
// chain handler. The sync server's body store hooks in here so fetched and
// mined bodies can be served back out to other peers. Registration must
// happen before Start.
func (ah *AllHandlers) OnBlockStored(fn func(database.Block)) {
	ah.stored = append(ah.stored, fn)
}

// SubmitBlock routes a full block to its owning chain handler.
func (ah *AllHandlers) SubmitBlock(idx chainindex.ChainIndex, block database.Block) error {
	ch, ok := ah.chain[idx]
	if !ok {
		return fmt.Errorf("no chain handler registered for %s", idx)
	}

	if err := ch.Submit(block.Hash(), block.Header, &block); err != nil {
		return err
	}

	for _, fn := range ah.stored {
		fn(block)
	}

	return nil
}

// SubmitHeader routes a header-only announcement to its owning chain
// handler.
func (ah *AllHandlers) SubmitHeader(idx chainindex.ChainIndex, hash string, header database.BlockHeader) error {
	ch, ok := ah.chain[idx]
	if !ok {
		return fmt.Errorf("no chain handler registered for %s", idx)
	}

	return ch.Submit(hash, header, nil)
}
