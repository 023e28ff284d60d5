// Package chainindex implements the addressing scheme for the G x G grid of
// chains that make up a blockflow ledger, along with the broker ownership
// predicate used to decide which chains a node stores in full.
package chainindex

import "fmt"

// ChainIndex identifies one of the G*G chains in the grid by a (From, To)
// group pair. From is the mining group that produces blocks on this chain;
// To is the group that receives value moved by those blocks.
type ChainIndex struct {
	From uint16
	To   uint16
}

// New constructs a ChainIndex, asserting both coordinates are within the
// grid described by groupCount.
func New(from, to, groupCount uint16) (ChainIndex, error) {
	if from >= groupCount || to >= groupCount {
		return ChainIndex{}, fmt.Errorf("chain index (%d,%d) out of range for group count %d", from, to, groupCount)
	}

	return ChainIndex{From: from, To: to}, nil
}

// Flattened returns the canonical row-major position of this chain among
// the G*G chains: from*groupCount + to. Storage layers use this value to
// index persisted chain state.
func (c ChainIndex) Flattened(groupCount uint16) int {
	return int(c.From)*int(groupCount) + int(c.To)
}

// String renders the chain index for logging.
func (c ChainIndex) String() string {
	return fmt.Sprintf("(%d,%d)", c.From, c.To)
}

// All returns every ChainIndex in the grid in canonical row-major order.
// The result always has length groupCount*groupCount.
func All(groupCount uint16) []ChainIndex {
	all := make([]ChainIndex, 0, int(groupCount)*int(groupCount))

	for from := uint16(0); from < groupCount; from++ {
		for to := uint16(0); to < groupCount; to++ {
			all = append(all, ChainIndex{From: from, To: to})
		}
	}

	return all
}

// OutGroups returns every mining group other than c.From, ascending. A
// header carries one out dependency per entry: the referenced group's
// best tip, on whichever of that group's chains it sits.
func OutGroups(c ChainIndex, groupCount uint16) []uint16 {
	groups := make([]uint16, 0, int(groupCount)-1)

	for g := uint16(0); g < groupCount; g++ {
		if g == c.From {
			continue
		}
		groups = append(groups, g)
	}

	return groups
}

// InDepChains returns the chains sharing c's From group other than c
// itself, ascending by To. A header carries one in dependency per entry:
// that sibling chain's tip.
func InDepChains(c ChainIndex, groupCount uint16) []ChainIndex {
	siblings := make([]ChainIndex, 0, int(groupCount)-1)

	for to := uint16(0); to < groupCount; to++ {
		if to == c.To {
			continue
		}
		siblings = append(siblings, ChainIndex{From: c.From, To: to})
	}

	return siblings
}

// DepsLength returns the number of dependency hashes a header carries
// besides its intra-chain parent: one per other group plus one per
// sibling chain, 2G-2 in total. Together with the parent that is the
// 2G-1 references a block makes across the grid.
func DepsLength(groupCount uint16) int {
	return 2*int(groupCount) - 2
}

// =============================================================================

// BrokerConfig identifies the contiguous range of groups, [From, Until), a
// broker is responsible for hosting in full.
type BrokerConfig struct {
	From  uint16
	Until uint16
}

// NewBrokerConfig constructs a BrokerConfig, asserting From < Until and
// that the range fits within groupCount.
func NewBrokerConfig(from, until, groupCount uint16) (BrokerConfig, error) {
	if from >= until {
		return BrokerConfig{}, fmt.Errorf("broker range [%d,%d) is empty or inverted", from, until)
	}

	if until > groupCount {
		return BrokerConfig{}, fmt.Errorf("broker range [%d,%d) exceeds group count %d", from, until, groupCount)
	}

	return BrokerConfig{From: from, Until: until}, nil
}

// owns reports whether group g falls in this broker's range.
func (b BrokerConfig) owns(g uint16) bool {
	return g >= b.From && g < b.Until
}

// RelatesTo decides whether this broker stores full blocks (true) or only
// headers (false) for chainIndex. A broker relates to a chain, and so
// stores it in full, when it owns either the From group or the To group.
func (b BrokerConfig) RelatesTo(chainIndex ChainIndex) bool {
	return b.owns(chainIndex.From) || b.owns(chainIndex.To)
}

// Groups returns every group number this broker owns, in ascending order.
func (b BrokerConfig) Groups() []uint16 {
	groups := make([]uint16, 0, int(b.Until)-int(b.From))
	for g := b.From; g < b.Until; g++ {
		groups = append(groups, g)
	}
	return groups
}
