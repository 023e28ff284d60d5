package handler

import (
	"sync"

	"github.com/google/uuid"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/blockflow"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/retarget"
)

// BlockAddedFunc is invoked, in BlockAdded order, every time the flow
// handler commits a new header into the DAG.
type BlockAddedFunc func(chainIndex chainindex.ChainIndex, hash string)

// FlowHandler is the sole mutator of the BlockFlow DAG. It is logically
// single-threaded: every request is served from the same goroutine loop, so
// cross-chain consistency checks always see a globally consistent tips
// snapshot without fine-grained locking.
type FlowHandler struct {
	bf        *blockflow.BlockFlow
	evHandler func(v string, args ...any)

	// retargeter computes the next difficulty target per chain; targets
	// caches the value currently in force. Both are touched only from the
	// handler's single goroutine loop.
	retargeter retarget.Strategy
	targets    map[chainindex.ChainIndex]uint16

	templates chan templateRequest
	adds      chan addBlockRequest
	headers   chan headerRequest
	shut      chan struct{}
	wg        sync.WaitGroup

	listenersMu sync.Mutex
	listeners   []BlockAddedFunc
}

// NewFlowHandler constructs a flow handler bound to bf. A nil strategy
// falls back to the network's sliding-window retargeter.
func NewFlowHandler(bf *blockflow.BlockFlow, strategy retarget.Strategy, evHandler func(v string, args ...any)) *FlowHandler {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}
	if strategy == nil {
		strategy = retarget.NewSlidingWindow(bf.GenesisConfig())
	}

	return &FlowHandler{
		bf:         bf,
		evHandler:  evHandler,
		retargeter: strategy,
		targets:    make(map[chainindex.ChainIndex]uint16),
		templates:  make(chan templateRequest, 64),
		adds:       make(chan addBlockRequest, 64),
		headers:    make(chan headerRequest, 64),
		shut:       make(chan struct{}),
	}
}

// OnBlockAdded registers fn to run, in commit order, after every accepted
// AddBlock. Registration must happen before Start.
func (fh *FlowHandler) OnBlockAdded(fn BlockAddedFunc) {
	fh.listenersMu.Lock()
	defer fh.listenersMu.Unlock()

	fh.listeners = append(fh.listeners, fn)
}

// Start runs the handler's mailbox loop in its own goroutine.
func (fh *FlowHandler) Start() {
	fh.wg.Add(1)
	go func() {
		defer fh.wg.Done()
		fh.run()
	}()
}

// Shutdown stops the mailbox loop and waits for it to drain.
func (fh *FlowHandler) Shutdown() {
	close(fh.shut)
	fh.wg.Wait()
}

func (fh *FlowHandler) run() {
	for {
		select {
		case req := <-fh.templates:
			fh.handleTemplate(req)
		case req := <-fh.adds:
			fh.handleAdd(req)
		case req := <-fh.headers:
			fh.handleHeader(req)
		case <-fh.shut:
			return
		}
	}
}

func (fh *FlowHandler) handleTemplate(req templateRequest) {
	deps, err := fh.bf.GetBestDeps(req.ChainIndex)
	req.Reply <- templateReply{
		RequestID: req.RequestID,
		Template:  deps,
		Target:    fh.nextTarget(req.ChainIndex),
		Err:       err,
	}
}

// nextTarget retargets the chain's difficulty from the sliding window of
// recent timestamps and caches the result for the next template.
func (fh *FlowHandler) nextTarget(idx chainindex.ChainIndex) uint16 {
	gen := fh.bf.GenesisConfig()

	current, ok := fh.targets[idx]
	if !ok {
		current = gen.NumZerosAtLeastInHash
	}

	stamps := fh.bf.RecentTimestamps(idx, int(gen.RetargetWindow))
	next := fh.retargeter.NextTarget(stamps, current)
	if next != current {
		fh.evHandler("flow: retarget: chain[%s]: %d -> %d", idx, current, next)
	}
	fh.targets[idx] = next

	return next
}

func (fh *FlowHandler) handleAdd(req addBlockRequest) {
	result := fh.bf.Add(req.Hash, req.ChainIndex, req.Header)

	if result.Accepted {
		fh.evHandler("flow: BlockAdded: chain[%s]: %s", req.ChainIndex, req.Hash)

		fh.listenersMu.Lock()
		listeners := append([]BlockAddedFunc(nil), fh.listeners...)
		fh.listenersMu.Unlock()

		for _, fn := range listeners {
			fn(req.ChainIndex, req.Hash)
		}
	}

	req.Reply <- addBlockReply{RequestID: req.RequestID, Result: result}
}

func (fh *FlowHandler) handleHeader(req headerRequest) {
	idx, header, found := fh.bf.GetHeader(req.Hash)
	req.Reply <- headerReply{RequestID: req.RequestID, Index: idx, Header: header, Found: found}
}

// RequestTemplate asks the flow handler for the best deps/target pair for
// chainIndex and blocks only on the reply channel it owns, never on the
// handler's mailbox.
func (fh *FlowHandler) RequestTemplate(chainIndex chainindex.ChainIndex) (blockflow.BlockDeps, uint16, error) {
	reply := make(chan templateReply, 1)
	fh.templates <- templateRequest{
		RequestID:  uuid.New(),
		ChainIndex: chainIndex,
		Reply:      reply,
	}
	r := <-reply
	return r.Template, r.Target, r.Err
}

// RequestAdd asks the flow handler to commit header into the DAG.
func (fh *FlowHandler) RequestAdd(chainIndex chainindex.ChainIndex, hash string, header database.BlockHeader) blockflow.AddResult {
	reply := make(chan addBlockReply, 1)
	fh.adds <- addBlockRequest{
		RequestID:  uuid.New(),
		ChainIndex: chainIndex,
		Hash:       hash,
		Header:     header,
		Reply:      reply,
	}
	r := <-reply
	return r.Result
}

// RequestHeader asks the flow handler for a previously committed header by
// hash, found reporting whether it is known.
func (fh *FlowHandler) RequestHeader(hash string) (database.BlockHeader, bool) {
	reply := make(chan headerReply, 1)
	fh.headers <- headerRequest{
		RequestID: uuid.New(),
		Hash:      hash,
		Reply:     reply,
	}
	r := <-reply
	return r.Header, r.Found
}
