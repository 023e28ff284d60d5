package chainindex_test

import (
	"testing"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
)

func Test_NewRejectsOutOfRange(t *testing.T) {
	if _, err := chainindex.New(4, 0, 4); err == nil {
		t.Fatal("should reject a from coordinate equal to group count")
	}

	if _, err := chainindex.New(0, 4, 4); err == nil {
		t.Fatal("should reject a to coordinate equal to group count")
	}

	if _, err := chainindex.New(1, 2, 4); err != nil {
		t.Fatalf("should accept an in-range chain index: %s", err)
	}
}

func Test_FlattenedIsRowMajor(t *testing.T) {
	tests := []struct {
		from, to   uint16
		groupCount uint16
		want       int
	}{
		{0, 0, 4, 0},
		{0, 3, 4, 3},
		{1, 0, 4, 4},
		{3, 3, 4, 15},
	}

	for _, tt := range tests {
		idx, err := chainindex.New(tt.from, tt.to, tt.groupCount)
		if err != nil {
			t.Fatalf("should construct chain index: %s", err)
		}

		if got := idx.Flattened(tt.groupCount); got != tt.want {
			t.Fatalf("Flattened(%d,%d) = %d, want %d", tt.from, tt.to, got, tt.want)
		}
	}
}

func Test_AllHasGroupCountSquaredEntries(t *testing.T) {
	const groupCount = 4

	all := chainindex.All(groupCount)
	if len(all) != groupCount*groupCount {
		t.Fatalf("All() returned %d entries, want %d", len(all), groupCount*groupCount)
	}

	seen := make(map[chainindex.ChainIndex]bool)
	for _, idx := range all {
		if seen[idx] {
			t.Fatalf("All() produced a duplicate chain index: %s", idx)
		}
		seen[idx] = true
	}
}

func Test_OutGroupsExcludesOwnGroup(t *testing.T) {
	const groupCount = 4

	self, err := chainindex.New(2, 1, groupCount)
	if err != nil {
		t.Fatalf("should construct chain index: %s", err)
	}

	groups := chainindex.OutGroups(self, groupCount)
	want := []uint16{0, 1, 3}

	if len(groups) != len(want) {
		t.Fatalf("OutGroups() returned %d entries, want %d", len(groups), len(want))
	}
	for i := range want {
		if groups[i] != want[i] {
			t.Fatalf("OutGroups()[%d] = %d, want %d", i, groups[i], want[i])
		}
	}
}

func Test_InDepChainsAreSiblingsOfSelf(t *testing.T) {
	const groupCount = 4

	self, err := chainindex.New(2, 1, groupCount)
	if err != nil {
		t.Fatalf("should construct chain index: %s", err)
	}

	siblings := chainindex.InDepChains(self, groupCount)
	if len(siblings) != groupCount-1 {
		t.Fatalf("InDepChains() returned %d entries, want %d", len(siblings), groupCount-1)
	}

	for _, idx := range siblings {
		if idx == self {
			t.Fatal("InDepChains() should not include the chain index itself")
		}
		if idx.From != self.From {
			t.Fatalf("InDepChains() should stay within group %d, got %s", self.From, idx)
		}
	}
}

func Test_DepsLengthIsTwoGMinusTwo(t *testing.T) {
	if got := chainindex.DepsLength(4); got != 6 {
		t.Fatalf("DepsLength(4) = %d, want 6", got)
	}
	if got := chainindex.DepsLength(1); got != 0 {
		t.Fatalf("DepsLength(1) = %d, want 0", got)
	}
}

func Test_BrokerConfigRelatesTo(t *testing.T) {
	broker, err := chainindex.NewBrokerConfig(1, 3, 4)
	if err != nil {
		t.Fatalf("should construct broker config: %s", err)
	}

	tests := []struct {
		name string
		idx  chainindex.ChainIndex
		want bool
	}{
		{"from owned", chainindex.ChainIndex{From: 1, To: 0}, true},
		{"to owned", chainindex.ChainIndex{From: 0, To: 2}, true},
		{"both owned", chainindex.ChainIndex{From: 1, To: 2}, true},
		{"neither owned", chainindex.ChainIndex{From: 0, To: 3}, false},
	}

	for _, tt := range tests {
		if got := broker.RelatesTo(tt.idx); got != tt.want {
			t.Fatalf("%s: RelatesTo(%s) = %t, want %t", tt.name, tt.idx, got, tt.want)
		}
	}
}

func Test_NewBrokerConfigRejectsInvertedOrOutOfRange(t *testing.T) {
	if _, err := chainindex.NewBrokerConfig(3, 1, 4); err == nil {
		t.Fatal("should reject an inverted range")
	}

	if _, err := chainindex.NewBrokerConfig(0, 0, 4); err == nil {
		t.Fatal("should reject an empty range")
	}

	if _, err := chainindex.NewBrokerConfig(0, 5, 4); err == nil {
		t.Fatal("should reject a range exceeding group count")
	}
}

func Test_BrokerConfigGroups(t *testing.T) {
	broker, err := chainindex.NewBrokerConfig(1, 4, 4)
	if err != nil {
		t.Fatalf("should construct broker config: %s", err)
	}

	want := []uint16{1, 2, 3}
	got := broker.Groups()

	if len(got) != len(want) {
		t.Fatalf("Groups() length = %d, want %d", len(got), len(want))
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Groups()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
