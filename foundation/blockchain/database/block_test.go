package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
)

const beneficiary = database.AccountID("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")

func noopEv(v string, args ...any) {}

func mineGenesisSuccessor(t *testing.T, target uint16) database.Block {
	t.Helper()

	deps := make([]string, 6) // groupCount=4 -> 2*4-2 = 6
	for i := range deps {
		deps[i] = "0x0000000000000000000000000000000000000000000000000000000000000000"
	}

	tx, err := database.NewUnsignedTx(0, 0, nil, []database.TxOutput{
		{Amount: 100, Address: beneficiary},
	}, 0, 0)
	if err != nil {
		t.Fatalf("should construct coinbase tx: %s", err)
	}

	blockTx := database.NewBlockTx(database.SignedTx{UnsignedTx: tx})

	block, err := database.POW(context.Background(), beneficiary, 0, 0, target, database.Block{}, deps, []database.BlockTx{blockTx}, noopEv)
	if err != nil {
		t.Fatalf("should be able to mine a block: %s", err)
	}

	return block
}

func Test_POWProducesSolvedHash(t *testing.T) {
	block := mineGenesisSuccessor(t, 1)

	if block.Header.Number != 1 {
		t.Fatalf("mined block should be number 1, got %d", block.Header.Number)
	}

	if block.Hash()[2] != '0' {
		t.Fatalf("mined block hash should have a leading zero nibble: %s", block.Hash())
	}
}

func Test_ValidateBlockAcceptsASolvedSuccessor(t *testing.T) {
	block := mineGenesisSuccessor(t, 1)

	if err := block.ValidateBlock(database.Block{}, 4, noopEv); err != nil {
		t.Fatalf("should validate a freshly mined block against genesis: %s", err)
	}
}

func Test_ValidateBlockRejectsWrongDepsCount(t *testing.T) {
	block := mineGenesisSuccessor(t, 1)
	block.Header.BlockDeps = block.Header.BlockDeps[:len(block.Header.BlockDeps)-1]

	if err := block.ValidateBlock(database.Block{}, 4, noopEv); err == nil {
		t.Fatal("should reject a block with the wrong number of dependencies")
	}
}

func Test_ValidateBlockRejectsTamperedMerkleRoot(t *testing.T) {
	block := mineGenesisSuccessor(t, 1)
	block.Header.TxMerkleRoot = "0xbad"

	if err := block.ValidateBlock(database.Block{}, 4, noopEv); err == nil {
		t.Fatal("should reject a block whose header merkle root does not match its transactions")
	}
}

func Test_ValidateBlockRejectsWrongParentHash(t *testing.T) {
	block := mineGenesisSuccessor(t, 1)
	block.Header.PrevBlockHash = "0xnotreal"

	if err := block.ValidateBlock(database.Block{}, 4, noopEv); err == nil {
		t.Fatal("should reject a block whose parent hash does not match the known parent")
	}
}

func Test_ValidateBlockReportsFailureKind(t *testing.T) {
	block := mineGenesisSuccessor(t, 1)
	block.Header.BlockDeps = block.Header.BlockDeps[:len(block.Header.BlockDeps)-1]

	err := block.ValidateBlock(database.Block{}, 4, noopEv)

	var verr *database.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a ValidationError, got %v", err)
	}
	if verr.Kind != database.ValidationBadDeps {
		t.Fatalf("expected a BadDeps rejection, got %s", verr.Kind)
	}
}

func Test_BlockFSRoundTrip(t *testing.T) {
	block := mineGenesisSuccessor(t, 1)

	fs := database.NewBlockFS(block)
	back, err := database.ToBlock(fs)
	if err != nil {
		t.Fatalf("should be able to convert a BlockFS back into a Block: %s", err)
	}

	if back.Hash() != block.Hash() {
		t.Fatalf("round tripped block should hash the same: got %s, exp %s", back.Hash(), block.Hash())
	}
}
