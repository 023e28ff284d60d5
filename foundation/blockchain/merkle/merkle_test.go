package merkle_test

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/merkle"
)

// testContent is a minimal Hashable implementation used to exercise the
// tree without depending on the database package's BlockTx type.
type testContent struct {
	data string
}

func (t testContent) Hash() ([]byte, error) {
	h := sha256.Sum256([]byte(t.data))
	return h[:], nil
}

func (t testContent) Equals(other testContent) bool {
	return t.data == other.data
}

func newList(values ...string) []testContent {
	list := make([]testContent, len(values))
	for i, v := range values {
		list[i] = testContent{data: v}
	}
	return list
}

func Test_NewTreeOddLeafCount(t *testing.T) {
	list := newList("alpha", "beta", "gamma")

	tree, err := merkle.NewTree(list)
	if err != nil {
		t.Fatalf("should be able to construct a tree: %s", err)
	}

	if len(tree.Leafs) != 4 {
		t.Fatalf("odd leaf count should be padded to even: got %d, exp 4", len(tree.Leafs))
	}

	values := tree.Values()
	if len(values) != 3 {
		t.Fatalf("Values should strip the duplicated padding leaf: got %d, exp 3", len(values))
	}
}

func Test_NewTreeEvenLeafCount(t *testing.T) {
	list := newList("alpha", "beta", "gamma", "delta")

	tree, err := merkle.NewTree(list)
	if err != nil {
		t.Fatalf("should be able to construct a tree: %s", err)
	}

	if len(tree.Leafs) != 4 {
		t.Fatalf("even leaf count should not be padded: got %d, exp 4", len(tree.Leafs))
	}

	values := tree.Values()
	if len(values) != 4 {
		t.Fatalf("Values should return every leaf when the count is even: got %d, exp 4", len(values))
	}
}

func Test_GenerateRejectsEmptyInput(t *testing.T) {
	tree := merkle.Tree[testContent]{}

	if err := tree.Generate(nil); err == nil {
		t.Fatal("should not be able to generate a tree with no content")
	}
}

func Test_TreeVerify(t *testing.T) {
	list := newList("alpha", "beta", "gamma", "delta", "epsilon")

	tree, err := merkle.NewTree(list)
	if err != nil {
		t.Fatalf("should be able to construct a tree: %s", err)
	}

	if err := tree.Verify(); err != nil {
		t.Fatalf("should be able to verify a freshly built tree: %s", err)
	}
}

func Test_TreeVerifyDetectsTamperedRoot(t *testing.T) {
	list := newList("alpha", "beta", "gamma", "delta")

	tree, err := merkle.NewTree(list)
	if err != nil {
		t.Fatalf("should be able to construct a tree: %s", err)
	}

	tree.MerkleRoot[0] ^= 0xFF

	if err := tree.Verify(); err == nil {
		t.Fatal("should detect a tampered merkle root")
	}
}

func Test_VerifyData(t *testing.T) {
	list := newList("alpha", "beta", "gamma", "delta")

	tree, err := merkle.NewTree(list)
	if err != nil {
		t.Fatalf("should be able to construct a tree: %s", err)
	}

	for _, content := range list {
		if err := tree.VerifyData(content); err != nil {
			t.Fatalf("should verify data %q is a member of the tree: %s", content.data, err)
		}
	}

	absent := testContent{data: "omega"}
	if err := tree.VerifyData(absent); err == nil {
		t.Fatal("should not verify data that was never added to the tree")
	}
}

func Test_Proof(t *testing.T) {
	list := newList("alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta")

	tree, err := merkle.NewTree(list)
	if err != nil {
		t.Fatalf("should be able to construct a tree: %s", err)
	}

	for _, content := range list {
		proof, order, err := tree.Proof(content)
		if err != nil {
			t.Fatalf("should be able to build a proof for %q: %s", content.data, err)
		}

		if len(proof) != len(order) {
			t.Fatalf("proof hashes and order slices should be the same length: got %d and %d", len(proof), len(order))
		}

		if len(proof) == 0 {
			t.Fatal("proof for a tree with more than one leaf should not be empty")
		}
	}
}

func Test_RootHex(t *testing.T) {
	list := newList("alpha", "beta")

	tree, err := merkle.NewTree(list)
	if err != nil {
		t.Fatalf("should be able to construct a tree: %s", err)
	}

	got := tree.RootHex()
	want := fmt.Sprintf("0x%x", tree.MerkleRoot)

	if got != want {
		t.Fatalf("RootHex mismatch: got %s, exp %s", got, want)
	}
}

func Test_RebuildProducesSameRoot(t *testing.T) {
	list := newList("alpha", "beta", "gamma")

	tree, err := merkle.NewTree(list)
	if err != nil {
		t.Fatalf("should be able to construct a tree: %s", err)
	}

	original := tree.RootHex()

	if err := tree.Rebuild(); err != nil {
		t.Fatalf("should be able to rebuild the tree: %s", err)
	}

	if tree.RootHex() != original {
		t.Fatalf("rebuilding from the same leaves should produce the same root: got %s, exp %s", tree.RootHex(), original)
	}
}

func Test_MarshalTextPanics(t *testing.T) {
	list := newList("alpha", "beta")

	tree, err := merkle.NewTree(list)
	if err != nil {
		t.Fatalf("should be able to construct a tree: %s", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("MarshalText should panic to steer callers toward Values")
		}
	}()

	tree.MarshalText()
}
