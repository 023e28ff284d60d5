// Package miner implements the fair miner: a group-parallel coordinator
// owned by the node's own mining group, with one sub-miner goroutine per
// target group. Every target receives equal dispatch opportunity, so a
// hard-to-mine target never starves the others.
package miner

import (
	"fmt"
	"sync"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/genesis"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/handler"
	"github.com/blockflow-labs/blockflow-node/foundation/events"
)

// Miner is the coordinator for one node's mining group. It owns exactly
// one beneficiary address, constructed once and validated to satisfy the
// publicKeyToGroupIndex invariant: the address's own GroupIndex must equal
// the group this miner produces blocks for.
type Miner struct {
	mainGroup   uint16
	groupCount  uint16
	beneficiary database.AccountID
	reward      uint64
	nonceStep   uint64

	handlers *handler.AllHandlers
	bus      *events.Events
	gen      genesis.Genesis

	evHandler func(v string, args ...any)

	shut chan struct{}
	wg   sync.WaitGroup

	statsMu sync.Mutex
	stats   map[uint16]uint64 // to -> total nonces tried, for fairness observability.
}

// New constructs a Miner for mainGroup, paying every mined block's coinbase
// to beneficiary. Construction fails if beneficiary does not belong to
// mainGroup: per-group addresses must map back to their own group.
func New(mainGroup uint16, beneficiary database.AccountID, gen genesis.Genesis, handlers *handler.AllHandlers, bus *events.Events, evHandler func(v string, args ...any)) (*Miner, error) {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	if got := beneficiary.GroupIndex(gen.GroupCount); got != mainGroup {
		return nil, fmt.Errorf("miner: beneficiary %s maps to group %d, want %d", beneficiary, got, mainGroup)
	}

	nonceStep := gen.NonceStep
	if nonceStep == 0 {
		nonceStep = 1_000_000
	}

	return &Miner{
		mainGroup:   mainGroup,
		groupCount:  gen.GroupCount,
		beneficiary: beneficiary,
		reward:      gen.MiningReward,
		nonceStep:   nonceStep,
		handlers:    handlers,
		bus:         bus,
		gen:         gen,
		evHandler:   evHandler,
		shut:        make(chan struct{}),
		stats:       make(map[uint16]uint64),
	}, nil
}

// Start launches one sub-miner goroutine per target group to ∈ [0,
// groupCount), each independently cycling through request-template,
// mine, submit, wait-for-BlockAdded.
func (m *Miner) Start() {
	m.wg.Add(int(m.groupCount))
	for to := uint16(0); to < m.groupCount; to++ {
		go m.runSubMiner(to)
	}
}

// Shutdown signals every sub-miner goroutine to stop and waits for them to
// drain.
func (m *Miner) Shutdown() {
	m.evHandler("miner: Shutdown: started")
	defer m.evHandler("miner: Shutdown: completed")

	close(m.shut)
	m.wg.Wait()
}

// MiningCount returns the total nonces tried so far for target group to,
// the coordinator's fairness metric.
func (m *Miner) MiningCount(to uint16) uint64 {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats[to]
}

func (m *Miner) addMiningCount(to uint16, n uint64) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	m.stats[to] += n
}

func (m *Miner) isShutdown() bool {
	select {
	case <-m.shut:
		return true
	default:
		return false
	}
}

func subscriberID(idx chainindex.ChainIndex) string {
	return fmt.Sprintf("miner:blockAdded:%s", idx)
}

func blockAddedKind(idx chainindex.ChainIndex) string {
	return fmt.Sprintf("BlockAdded:%s", idx)
}

// OnBlockAdded publishes idx's BlockAdded occurrence onto the miner's event
// bus. Wired as a handler.BlockAddedFunc listener by the node's startup
// code so a sub-miner waiting on its own chain's next block learns about
// it regardless of whether the miner or the sync protocol produced it.
func (m *Miner) OnBlockAdded(idx chainindex.ChainIndex, hash string) {
	m.bus.Publish(blockAddedKind(idx), hash)
}
