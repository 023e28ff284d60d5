package handler

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chain"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
)

// ChainHandler owns a single (from, to) chain. It deduplicates inbound
// blocks/headers by hash, enforces that full blocks only arrive on chains
// this broker stores in full, validates against its local tip, and forwards
// validated headers to the flow handler.
type ChainHandler struct {
	index  chainindex.ChainIndex
	local  bool // true if this broker stores full blocks for this chain
	chain  *chain.Chain
	flow   *FlowHandler
	groups uint16

	evHandler func(v string, args ...any)

	inbox chan inboundBlock
	shut  chan struct{}
	wg    sync.WaitGroup
}

// NewChainHandler constructs a handler for index, storing full blocks when
// local is true and only headers otherwise.
func NewChainHandler(index chainindex.ChainIndex, local bool, groups uint16, flow *FlowHandler, evHandler func(v string, args ...any)) *ChainHandler {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	return &ChainHandler{
		index:     index,
		local:     local,
		groups:    groups,
		chain:     chain.New(index),
		flow:      flow,
		evHandler: evHandler,
		inbox:     make(chan inboundBlock, 256),
		shut:      make(chan struct{}),
	}
}

// Index returns the chain pair this handler owns.
func (ch *ChainHandler) Index() chainindex.ChainIndex {
	return ch.index
}

// Start runs the handler's mailbox loop in its own goroutine. Items for the
// same chain are served strictly FIFO; across chain handlers there is no
// ordering guarantee.
func (ch *ChainHandler) Start() {
	ch.wg.Add(1)
	go func() {
		defer ch.wg.Done()
		ch.run()
	}()
}

// Shutdown stops the mailbox loop and waits for it to drain.
func (ch *ChainHandler) Shutdown() {
	close(ch.shut)
	ch.wg.Wait()
}

func (ch *ChainHandler) run() {
	for {
		select {
		case item := <-ch.inbox:
			item.Reply <- ch.handle(item)
		case <-ch.shut:
			return
		}
	}
}

func (ch *ChainHandler) handle(item inboundBlock) error {
	if ch.chain.Contains(item.Hash) {
		return nil
	}

	if ch.local && item.Full == nil {
		return fmt.Errorf("chain[%s] requires full blocks but received a header-only submission for %s", ch.index, item.Hash)
	}
	if !ch.local && item.Full != nil {
		return fmt.Errorf("chain[%s] is header-only but received a full block for %s", ch.index, item.Hash)
	}

	if item.Full != nil {
		if previousHash := item.Header.PrevBlockHash; previousHash != "" {
			if previous, ok := ch.chain.Get(previousHash); ok {
				if err := item.Full.ValidateBlock(database.Block{Header: previous}, ch.groups, ch.evHandler); err != nil {
					return err
				}
			}
		}
	}

	result := ch.flow.RequestAdd(ch.index, item.Hash, item.Header)
	if result.Err != nil {
		return result.Err
	}
	if !result.Accepted && !result.Pending {
		return fmt.Errorf("chain[%s]: block %s neither accepted nor parked", ch.index, item.Hash)
	}

	if result.Accepted {
		if err := ch.chain.Add(item.Hash, item.Header); err != nil {
			return err
		}
	}

	return nil
}

// SeedGenesis records the chain's genesis header directly, bypassing the
// mailbox. Callers must do this before Start.
func (ch *ChainHandler) SeedGenesis(hash string, header database.BlockHeader) error {
	return ch.chain.Add(hash, header)
}

// Submit enqueues a header (and, on a full-storage chain, its body) for
// validation. The caller blocks only on the reply channel it owns.
func (ch *ChainHandler) Submit(hash string, header database.BlockHeader, full *database.Block) error {
	reply := make(chan error, 1)
	ch.inbox <- inboundBlock{
		RequestID: uuid.New(),
		Hash:      hash,
		Header:    header,
		Full:      full,
		Reply:     reply,
	}
	return <-reply
}
