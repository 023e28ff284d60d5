// Package blockflow maintains the full G*G grid of per-chain DAGs, computes
// the cross-chain dependency set for new block templates, and is the
// single place that resolves conflicts between chains. Every mutation to
// the grid goes through this package so cross-chain consistency checks see
// one globally consistent snapshot.
package blockflow

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chain"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/genesis"
)

// AddResult reports the outcome of adding a header to the flow.
type AddResult struct {
	Accepted bool
	Pending  bool // Waiting on an unresolved dependency; buffered as an orphan.
	Err      error
}

// headerRecord is a header plus the chain it belongs to, so the flow can
// resolve a bare hash to both without the caller repeating ChainIndex.
type headerRecord struct {
	index  chainindex.ChainIndex
	header database.BlockHeader
}

// orphanEntry is a header parked in the bounded orphan buffer while it
// waits for an unresolved dependency to arrive.
type orphanEntry struct {
	hash      string
	index     chainindex.ChainIndex
	header    database.BlockHeader
	missing   []string
	receivedAt time.Time
}

// BlockFlow owns every chain in the G*G grid.
type BlockFlow struct {
	mu sync.RWMutex

	genesis    genesis.Genesis
	groupCount uint16

	chains  map[chainindex.ChainIndex]*chain.Chain
	headers map[string]headerRecord
	weights map[string]uint64

	orphans      map[string]*orphanEntry
	orphanOrder  []string
	waitingOn    map[string][]string // dependency hash -> orphan hashes waiting on it.

	// sincePrune counts accepted blocks since the last tip sweep; the
	// sweep itself runs inside Add, never on a background timer.
	sincePrune int

	evHandler func(v string, args ...any)
}

// New constructs a BlockFlow with an empty chain for every ChainIndex in
// the grid.
func New(gen genesis.Genesis, evHandler func(v string, args ...any)) *BlockFlow {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	bf := &BlockFlow{
		genesis:     gen,
		groupCount:  gen.GroupCount,
		chains:      make(map[chainindex.ChainIndex]*chain.Chain),
		headers:     make(map[string]headerRecord),
		weights:     make(map[string]uint64),
		orphans:     make(map[string]*orphanEntry),
		waitingOn:   make(map[string][]string),
		evHandler:   evHandler,
	}

	for _, idx := range chainindex.All(gen.GroupCount) {
		bf.chains[idx] = chain.New(idx)
	}

	return bf
}

// GenesisHashes returns the canonical genesis hash for every chain in the
// grid: the hash of the exact header Genesis seeds for that chain. Every
// node in a network derives the same map, so mined blocks referencing a
// genesis parent resolve on any peer.
func GenesisHashes(gen genesis.Genesis) map[chainindex.ChainIndex]string {
	hashes := make(map[chainindex.ChainIndex]string, int(gen.GroupCount)*int(gen.GroupCount))
	for _, idx := range chainindex.All(gen.GroupCount) {
		hashes[idx] = database.Block{Header: GenesisHeader(idx)}.Hash()
	}
	return hashes
}

// GenesisHeader returns the deterministic genesis header for one chain.
// Chain handlers seed the same header so their local parent lookups agree
// with the flow's DAG.
func GenesisHeader(idx chainindex.ChainIndex) database.BlockHeader {
	return database.BlockHeader{ChainFrom: idx.From, ChainTo: idx.To, Number: 0, PrevBlockHash: chain.GenesisHash()}
}

// Genesis seeds every chain's genesis header, identified by hash, so each
// of the G*G chains starts from a distinct root. Hashes normally come from
// GenesisHashes; tests may seed synthetic names.
func (bf *BlockFlow) Genesis(hashes map[chainindex.ChainIndex]string) error {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	for idx, hash := range hashes {
		c, ok := bf.chains[idx]
		if !ok {
			return fmt.Errorf("unknown chain index %s", idx)
		}

		header := GenesisHeader(idx)
		if err := c.Add(hash, header); err != nil {
			return err
		}

		bf.headers[hash] = headerRecord{index: idx, header: header}
		bf.weights[hash] = 0
	}

	return nil
}

// GenesisConfig returns the network genesis parameters this flow was
// constructed with.
func (bf *BlockFlow) GenesisConfig() genesis.Genesis {
	return bf.genesis
}

// Weight returns the weight of a known block: the number of non-genesis
// blocks transitively reachable from it via its intra-chain parent and its
// cross-chain deps, itself included. Genesis blocks weigh zero. Weight is
// monotone along any DAG path because a descendant's reachable set always
// strictly contains its ancestor's, plus the descendant itself.
func (bf *BlockFlow) Weight(hash string) (uint64, bool) {
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	w, ok := bf.weights[hash]
	return w, ok
}

// GetHeader returns a known header by hash, along with the chain it
// belongs to.
func (bf *BlockFlow) GetHeader(hash string) (chainindex.ChainIndex, database.BlockHeader, bool) {
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	rec, ok := bf.headers[hash]
	return rec.index, rec.header, ok
}

// =============================================================================

// BlockDeps is the set of parent hashes a new block on some chain
// references: the intra-chain parent plus, in OtherDeps, one best tip per
// other group followed by one tip per sibling chain sharing the block's
// From group. OtherDeps has length chainindex.DepsLength(groupCount), so
// a block references 2G-1 hashes across the grid in total.
type BlockDeps struct {
	PrevBlockHash string
	OtherDeps     []string
}

// GetBestDeps returns the locally preferred dependency set for a new block
// on chainIndex: for each other group the tip that maximizes weight across
// that group's chains, then each sibling chain's heaviest tip, tie-broken
// by lexicographic hash order, skipping any tip whose own references
// contradict a dependency already chosen.
func (bf *BlockFlow) GetBestDeps(index chainindex.ChainIndex) (BlockDeps, error) {
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	selfChain, ok := bf.chains[index]
	if !ok {
		return BlockDeps{}, fmt.Errorf("unknown chain index %s", index)
	}

	prevHash, ok := selfChain.BestTip()
	if !ok {
		return BlockDeps{}, fmt.Errorf("chain %s has no tip to extend", index)
	}

	chosen := map[chainindex.ChainIndex]string{index: prevHash}
	deps := make([]string, 0, chainindex.DepsLength(bf.groupCount))

	for _, group := range chainindex.OutGroups(index, bf.groupCount) {
		candidate, err := bf.bestGroupTip(group, chosen)
		if err != nil {
			return BlockDeps{}, err
		}

		chosen[bf.headers[candidate].index] = candidate
		deps = append(deps, candidate)
	}

	for _, sibling := range chainindex.InDepChains(index, bf.groupCount) {
		candidate, err := bf.bestConsistentTip(bf.chains[sibling].Tips(), sibling.String(), chosen)
		if err != nil {
			return BlockDeps{}, err
		}

		chosen[sibling] = candidate
		deps = append(deps, candidate)
	}

	return BlockDeps{PrevBlockHash: prevHash, OtherDeps: deps}, nil
}

// bestGroupTip picks the out dependency for group: the best tip pooled
// across every chain the group mines.
func (bf *BlockFlow) bestGroupTip(group uint16, chosen map[chainindex.ChainIndex]string) (string, error) {
	var tips []string
	for to := uint16(0); to < bf.groupCount; to++ {
		tips = append(tips, bf.chains[chainindex.ChainIndex{From: group, To: to}].Tips()...)
	}

	return bf.bestConsistentTip(tips, fmt.Sprintf("group %d", group), chosen)
}

// bestConsistentTip ranks tips by weight descending, hash ascending, and
// returns the first one that does not contradict any already chosen
// dependency.
func (bf *BlockFlow) bestConsistentTip(tips []string, what string, chosen map[chainindex.ChainIndex]string) (string, error) {
	if len(tips) == 0 {
		return "", fmt.Errorf("%s has no tip to reference", what)
	}

	sort.Slice(tips, func(i, j int) bool {
		wi := bf.weights[tips[i]]
		wj := bf.weights[tips[j]]
		if wi != wj {
			return wi > wj
		}
		return tips[i] < tips[j]
	})

	for _, candidate := range tips {
		if bf.consistentWithChosen(candidate, chosen) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no consistent tip found for %s", what)
}

// consistentWithChosen reports whether candidate's direct references agree
// with every dependency already chosen: wherever candidate's parent or
// deps name a block on a chain that has been decided, the two hashes must
// sit on one lineage, never on conflicting forks.
func (bf *BlockFlow) consistentWithChosen(candidate string, chosen map[chainindex.ChainIndex]string) bool {
	rec, ok := bf.headers[candidate]
	if !ok {
		return false
	}

	refs := make([]string, 0, len(rec.header.BlockDeps)+1)
	if rec.header.Number > 0 {
		refs = append(refs, rec.header.PrevBlockHash)
	}
	refs = append(refs, rec.header.BlockDeps...)

	for _, ref := range refs {
		refRec, ok := bf.headers[ref]
		if !ok {
			return false
		}

		chosenHash, decided := chosen[refRec.index]
		if !decided || chosenHash == ref {
			continue
		}

		if !bf.isAncestorOrSelf(ref, chosenHash, refRec.index) && !bf.isAncestorOrSelf(chosenHash, ref, refRec.index) {
			return false
		}
	}

	// The already-chosen blocks must also agree with candidate about
	// candidate's own chain.
	for _, chosenHash := range chosen {
		crec, ok := bf.headers[chosenHash]
		if !ok {
			continue
		}

		crefs := make([]string, 0, len(crec.header.BlockDeps)+1)
		if crec.header.Number > 0 {
			crefs = append(crefs, crec.header.PrevBlockHash)
		}
		crefs = append(crefs, crec.header.BlockDeps...)

		for _, cref := range crefs {
			crefRec, ok := bf.headers[cref]
			if !ok || crefRec.index != rec.index || cref == candidate {
				continue
			}

			if !bf.isAncestorOrSelf(cref, candidate, rec.index) && !bf.isAncestorOrSelf(candidate, cref, rec.index) {
				return false
			}
		}
	}

	return true
}

// isAncestorOrSelf walks ancestorCandidate's intra-chain parent links on
// chain idx to see whether it reaches target, bounded by the chain's
// current length to guarantee termination.
func (bf *BlockFlow) isAncestorOrSelf(ancestorCandidate, target string, idx chainindex.ChainIndex) bool {
	if ancestorCandidate == target {
		return true
	}

	c := bf.chains[idx]
	bound := c.Len() + 1

	cur := target
	for i := 0; i < bound; i++ {
		rec, ok := bf.headers[cur]
		if !ok || rec.header.Number == 0 {
			return false
		}
		if rec.header.PrevBlockHash == ancestorCandidate {
			return true
		}
		cur = rec.header.PrevBlockHash
	}

	return false
}

// =============================================================================

// Add validates and installs a header, returning whether it was accepted
// outright, parked pending a missing dependency, or rejected. Only the
// header is kept here; block bodies are never passed to the flow.
func (bf *BlockFlow) Add(hash string, index chainindex.ChainIndex, header database.BlockHeader) AddResult {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if _, known := bf.headers[hash]; known {
		return AddResult{Accepted: true}
	}

	missing := bf.missingDeps(header)
	if len(missing) > 0 {
		bf.parkOrphan(hash, index, header, missing)
		return AddResult{Pending: true}
	}

	c, ok := bf.chains[index]
	if !ok {
		return AddResult{Err: fmt.Errorf("unknown chain index %s", index)}
	}

	if err := c.Add(hash, header); err != nil {
		return AddResult{Err: err}
	}

	bf.headers[hash] = headerRecord{index: index, header: header}
	bf.weights[hash] = bf.computeWeight(hash, header)

	bf.resolveWaiters(hash)

	bf.sincePrune++
	if n := int(bf.genesis.TipsPruneInterval); n > 0 && bf.sincePrune >= n {
		bf.sincePrune = 0
		bf.pruneTips(time.Now())
	}

	return AddResult{Accepted: true}
}

// missingDeps returns every dependency hash of header that this flow does
// not yet know about.
func (bf *BlockFlow) missingDeps(header database.BlockHeader) []string {
	var missing []string

	if header.Number > 0 {
		if _, ok := bf.headers[header.PrevBlockHash]; !ok {
			missing = append(missing, header.PrevBlockHash)
		}
	}

	for _, dep := range header.BlockDeps {
		if _, ok := bf.headers[dep]; !ok {
			missing = append(missing, dep)
		}
	}

	return missing
}

// computeWeight counts the distinct non-genesis blocks reachable from the
// new header: itself plus the union of everything reachable from its
// intra-chain parent and its cross-chain deps. Every dependency is known
// by the time this runs, so the walk never dead-ends.
func (bf *BlockFlow) computeWeight(hash string, header database.BlockHeader) uint64 {
	seen := make(map[string]struct{})
	stack := make([]string, 0, len(header.BlockDeps)+1)

	if header.Number > 0 {
		stack = append(stack, header.PrevBlockHash)
	}
	stack = append(stack, header.BlockDeps...)

	count := uint64(1)

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, visited := seen[cur]; visited {
			continue
		}
		seen[cur] = struct{}{}

		rec, ok := bf.headers[cur]
		if !ok || rec.header.Number == 0 {
			continue
		}

		count++
		stack = append(stack, rec.header.PrevBlockHash)
		stack = append(stack, rec.header.BlockDeps...)
	}

	return count
}

// parkOrphan buffers header pending its missing dependencies. When the
// buffer is full, the oldest orphan is evicted to make room.
func (bf *BlockFlow) parkOrphan(hash string, index chainindex.ChainIndex, header database.BlockHeader, missing []string) {
	if _, already := bf.orphans[hash]; already {
		return
	}

	if bf.genesis.MaxOrphanBlocks > 0 && len(bf.orphans) >= bf.genesis.MaxOrphanBlocks {
		oldest := bf.orphanOrder[0]
		bf.orphanOrder = bf.orphanOrder[1:]
		delete(bf.orphans, oldest)
		bf.evHandler("blockflow: parkOrphan: evicted oldest orphan: hash[%s]", oldest)
	}

	bf.orphans[hash] = &orphanEntry{hash: hash, index: index, header: header, missing: missing, receivedAt: time.Now()}
	bf.orphanOrder = append(bf.orphanOrder, hash)

	for _, dep := range missing {
		bf.waitingOn[dep] = append(bf.waitingOn[dep], hash)
	}
}

// resolveWaiters retries every orphan waiting on newlyKnown, re-adding it
// if every one of its dependencies is now satisfied.
func (bf *BlockFlow) resolveWaiters(newlyKnown string) {
	waiters, ok := bf.waitingOn[newlyKnown]
	if !ok {
		return
	}
	delete(bf.waitingOn, newlyKnown)

	for _, hash := range waiters {
		entry, ok := bf.orphans[hash]
		if !ok {
			continue
		}

		if len(bf.missingDeps(entry.header)) > 0 {
			continue
		}

		delete(bf.orphans, hash)
		bf.removeFromOrder(hash)

		c := bf.chains[entry.index]
		if err := c.Add(entry.hash, entry.header); err != nil {
			bf.evHandler("blockflow: resolveWaiters: hash[%s]: ERROR: %s", hash, err)
			continue
		}

		bf.headers[entry.hash] = headerRecord{index: entry.index, header: entry.header}
		bf.weights[entry.hash] = bf.computeWeight(entry.hash, entry.header)
		bf.resolveWaiters(entry.hash)
	}
}

func (bf *BlockFlow) removeFromOrder(hash string) {
	for i, h := range bf.orphanOrder {
		if h == hash {
			bf.orphanOrder = append(bf.orphanOrder[:i], bf.orphanOrder[i+1:]...)
			return
		}
	}
}

// =============================================================================

// PruneTips sweeps every chain's tip set, discarding dominated stale tips.
func (bf *BlockFlow) PruneTips(now time.Time) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	bf.pruneTips(now)
}

func (bf *BlockFlow) pruneTips(now time.Time) {
	for _, c := range bf.chains {
		pruned := c.PrunedTips(now, bf.genesis.TipsPruneDuration)
		for _, hash := range pruned {
			bf.evHandler("blockflow: pruneTips: chain[%s]: pruned[%s]", c.Index(), hash)
		}
	}
}

// =============================================================================

// GetSyncLocators returns one locator list per chain in canonical
// row-major order: a skip list of hashes walking back from the best tip
// with exponentially increasing gaps, ending at genesis. Recent history is
// dense and deep history sparse, so a peer can place our view with a
// bounded number of hashes no matter how long the chain is.
func (bf *BlockFlow) GetSyncLocators() [][]string {
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	locators := make([][]string, 0, len(bf.chains))
	for _, idx := range chainindex.All(bf.groupCount) {
		locators = append(locators, bf.chainLocators(idx))
	}

	return locators
}

// chainLocators builds one chain's skip list. Gaps double after every
// recorded hash: depths 0, 1, 3, 7, 15, ... down to genesis.
func (bf *BlockFlow) chainLocators(idx chainindex.ChainIndex) []string {
	tip, ok := bf.chains[idx].BestTip()
	if !ok {
		return nil
	}

	var locators []string
	cur := tip
	step := 1

	for {
		locators = append(locators, cur)

		rec, ok := bf.headers[cur]
		if !ok || rec.header.Number == 0 {
			return locators
		}

		for i := 0; i < step; i++ {
			cur = rec.header.PrevBlockHash
			rec, ok = bf.headers[cur]
			if !ok {
				return locators
			}
			if rec.header.Number == 0 {
				break
			}
		}
		step *= 2
	}
}

// GetSyncInventories returns, for every chain, the best-lineage hashes
// this node knows beyond the peer's locators, oldest first so the peer can
// apply them in order. An empty list on every chain tells the peer it is
// fully caught up.
func (bf *BlockFlow) GetSyncInventories(locators [][]string) [][]string {
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	inventories := make([][]string, 0, len(bf.chains))
	for i, idx := range chainindex.All(bf.groupCount) {
		known := make(map[string]struct{})
		if i < len(locators) {
			for _, hash := range locators[i] {
				known[hash] = struct{}{}
			}
		}

		inventories = append(inventories, bf.chainInventory(idx, known))
	}

	return inventories
}

// chainInventory walks one chain's best lineage from tip back to the
// first hash the peer already knows, or to genesis. Genesis itself is
// never served: every node in the network seeds the same genesis headers.
func (bf *BlockFlow) chainInventory(idx chainindex.ChainIndex, known map[string]struct{}) []string {
	tip, ok := bf.chains[idx].BestTip()
	if !ok {
		return nil
	}

	var missing []string
	cur := tip

	for {
		if _, shared := known[cur]; shared {
			break
		}

		rec, ok := bf.headers[cur]
		if !ok || rec.header.Number == 0 {
			break
		}

		missing = append(missing, cur)
		cur = rec.header.PrevBlockHash
	}

	for i, j := 0, len(missing)-1; i < j; i, j = i+1, j-1 {
		missing[i], missing[j] = missing[j], missing[i]
	}

	return missing
}

// RecentTimestamps returns up to n timestamps from the best lineage of
// idx, ascending, for the flow handler's difficulty retargeting. Genesis
// is skipped: it carries no mining timestamp.
func (bf *BlockFlow) RecentTimestamps(idx chainindex.ChainIndex, n int) []time.Time {
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	c, ok := bf.chains[idx]
	if !ok {
		return nil
	}
	tip, ok := c.BestTip()
	if !ok {
		return nil
	}

	var stamps []time.Time
	cur := tip

	for len(stamps) < n {
		rec, ok := bf.headers[cur]
		if !ok || rec.header.Number == 0 {
			break
		}

		stamps = append(stamps, time.Unix(int64(rec.header.TimeStamp), 0))
		cur = rec.header.PrevBlockHash
	}

	for i, j := 0, len(stamps)-1; i < j; i, j = i+1, j-1 {
		stamps[i], stamps[j] = stamps[j], stamps[i]
	}

	return stamps
}
