// Package chain maintains the ordered DAG of headers belonging to a single
// (from, to) shard of the blockflow grid. Forks are allowed: a chain keeps
// every header it has seen and the set of current tips, leaving weight
// computation and cross-chain dependency resolution to the blockflow
// package that owns every chain at once.
package chain

import (
	"errors"
	"sync"
	"time"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/signature"
)

// ErrUnknownParent is returned by Add when the header's intra-chain parent
// has not been seen by this chain yet.
var ErrUnknownParent = errors.New("chain: intra-chain parent is unknown")

// ErrAlreadyKnown is returned by Add when the header's hash is already
// present in the chain.
var ErrAlreadyKnown = errors.New("chain: header already known")

// entry pairs a header with the bookkeeping the chain needs to maintain
// tips and prune them over time.
type entry struct {
	header   database.BlockHeader
	hash     string
	lastSeen time.Time
	hasChild bool
}

// Chain is the ordered DAG of headers sharing one ChainIndex.
type Chain struct {
	mu sync.RWMutex

	index   chainindex.ChainIndex
	headers map[string]*entry
	height  map[uint64][]string // index by block number to find forks fast.
	tips    map[string]struct{}
}

// New constructs an empty chain for index.
func New(index chainindex.ChainIndex) *Chain {
	return &Chain{
		index:   index,
		headers: make(map[string]*entry),
		height:  make(map[uint64][]string),
		tips:    make(map[string]struct{}),
	}
}

// Index returns the ChainIndex this chain tracks.
func (c *Chain) Index() chainindex.ChainIndex {
	return c.index
}

// Add installs header, identified by hash, into the chain. The genesis
// header (Number == 0, PrevBlockHash == signature.ZeroHash) is accepted
// unconditionally; every other header must reference a parent already
// known to this chain.
func (c *Chain) Add(hash string, header database.BlockHeader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.headers[hash]; exists {
		return ErrAlreadyKnown
	}

	if header.Number > 0 {
		parent, ok := c.headers[header.PrevBlockHash]
		if !ok {
			return ErrUnknownParent
		}
		parent.hasChild = true
		delete(c.tips, header.PrevBlockHash)
	}

	c.headers[hash] = &entry{header: header, hash: hash, lastSeen: time.Now()}
	c.height[header.Number] = append(c.height[header.Number], hash)
	c.tips[hash] = struct{}{}

	return nil
}

// Contains reports whether hash has already been added to this chain.
func (c *Chain) Contains(hash string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.headers[hash]
	return ok
}

// Get returns the header stored under hash.
func (c *Chain) Get(hash string) (database.BlockHeader, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.headers[hash]
	if !ok {
		return database.BlockHeader{}, false
	}
	return e.header, true
}

// AtHeight returns every header hash known at the given block number,
// which is more than one whenever the chain has forked at that height.
func (c *Chain) AtHeight(number uint64) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hashes := c.height[number]
	out := make([]string, len(hashes))
	copy(out, hashes)
	return out
}

// Tips returns every current tip hash: headers with no known child.
func (c *Chain) Tips() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tips := make([]string, 0, len(c.tips))
	for hash := range c.tips {
		tips = append(tips, hash)
	}
	return tips
}

// BestTip returns the tip with the greatest block number, tie-broken by the
// lexicographically smallest hash, matching blockflow's best-deps
// tie-break rule.
func (c *Chain) BestTip() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best string
	var bestNumber uint64
	found := false

	for hash := range c.tips {
		e := c.headers[hash]
		switch {
		case !found:
			best, bestNumber, found = hash, e.header.Number, true
		case e.header.Number > bestNumber:
			best, bestNumber = hash, e.header.Number
		case e.header.Number == bestNumber && hash < best:
			best = hash
		}
	}

	return best, found
}

// Len returns how many headers this chain holds.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.headers)
}

// PrunedTips discards tips older than pruneDuration, as long as a newer tip
// dominates them (has a strictly greater block number). The genesis tip of
// an otherwise empty chain is never pruned.
func (c *Chain) PrunedTips(now time.Time, pruneDuration time.Duration) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.tips) <= 1 {
		return nil
	}

	var maxNumber uint64
	for hash := range c.tips {
		if n := c.headers[hash].header.Number; n > maxNumber {
			maxNumber = n
		}
	}

	var pruned []string
	for hash := range c.tips {
		e := c.headers[hash]
		if e.header.Number < maxNumber && now.Sub(e.lastSeen) > pruneDuration {
			delete(c.tips, hash)
			pruned = append(pruned, hash)
		}
	}

	return pruned
}

// GenesisHash returns the zero-value parent hash used by every chain's
// first block.
func GenesisHash() string {
	return signature.ZeroHash
}
