package chain_test

import (
	"testing"
	"time"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chain"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
)

func Test_AddGenesisThenChild(t *testing.T) {
	c := chain.New(chainindex.ChainIndex{From: 0, To: 0})

	genesis := database.BlockHeader{Number: 0, PrevBlockHash: chain.GenesisHash()}
	if err := c.Add("genesis", genesis); err != nil {
		t.Fatalf("should be able to add the genesis header: %s", err)
	}

	child := database.BlockHeader{Number: 1, PrevBlockHash: "genesis"}
	if err := c.Add("child", child); err != nil {
		t.Fatalf("should be able to add a child of a known header: %s", err)
	}

	tips := c.Tips()
	if len(tips) != 1 || tips[0] != "child" {
		t.Fatalf("expected exactly the child to be the tip, got %v", tips)
	}
}

func Test_AddRejectsUnknownParent(t *testing.T) {
	c := chain.New(chainindex.ChainIndex{From: 0, To: 0})

	orphan := database.BlockHeader{Number: 5, PrevBlockHash: "missing"}
	if err := c.Add("orphan", orphan); err != chain.ErrUnknownParent {
		t.Fatalf("expected ErrUnknownParent, got %v", err)
	}
}

func Test_AddRejectsDuplicateHash(t *testing.T) {
	c := chain.New(chainindex.ChainIndex{From: 0, To: 0})

	genesis := database.BlockHeader{Number: 0, PrevBlockHash: chain.GenesisHash()}
	if err := c.Add("genesis", genesis); err != nil {
		t.Fatalf("should add genesis: %s", err)
	}

	if err := c.Add("genesis", genesis); err != chain.ErrAlreadyKnown {
		t.Fatalf("expected ErrAlreadyKnown, got %v", err)
	}
}

func Test_ForkProducesTwoTips(t *testing.T) {
	c := chain.New(chainindex.ChainIndex{From: 0, To: 0})

	genesis := database.BlockHeader{Number: 0, PrevBlockHash: chain.GenesisHash()}
	if err := c.Add("genesis", genesis); err != nil {
		t.Fatalf("should add genesis: %s", err)
	}

	left := database.BlockHeader{Number: 1, PrevBlockHash: "genesis"}
	right := database.BlockHeader{Number: 1, PrevBlockHash: "genesis"}

	if err := c.Add("left", left); err != nil {
		t.Fatalf("should add left fork: %s", err)
	}
	if err := c.Add("right", right); err != nil {
		t.Fatalf("should add right fork: %s", err)
	}

	tips := c.Tips()
	if len(tips) != 2 {
		t.Fatalf("expected two tips after a fork, got %d", len(tips))
	}

	atHeight := c.AtHeight(1)
	if len(atHeight) != 2 {
		t.Fatalf("expected two headers at height 1, got %d", len(atHeight))
	}
}

func Test_BestTipTieBreaksLexicographically(t *testing.T) {
	c := chain.New(chainindex.ChainIndex{From: 0, To: 0})

	genesis := database.BlockHeader{Number: 0, PrevBlockHash: chain.GenesisHash()}
	if err := c.Add("genesis", genesis); err != nil {
		t.Fatalf("should add genesis: %s", err)
	}

	if err := c.Add("bbb", database.BlockHeader{Number: 1, PrevBlockHash: "genesis"}); err != nil {
		t.Fatalf("should add bbb: %s", err)
	}
	if err := c.Add("aaa", database.BlockHeader{Number: 1, PrevBlockHash: "genesis"}); err != nil {
		t.Fatalf("should add aaa: %s", err)
	}

	best, ok := c.BestTip()
	if !ok {
		t.Fatal("expected a best tip")
	}
	if best != "aaa" {
		t.Fatalf("expected lexicographically smaller hash to win a tie, got %s", best)
	}
}

func Test_PrunedTipsDiscardsDominatedStaleTips(t *testing.T) {
	c := chain.New(chainindex.ChainIndex{From: 0, To: 0})

	if err := c.Add("genesis", database.BlockHeader{Number: 0, PrevBlockHash: chain.GenesisHash()}); err != nil {
		t.Fatalf("should add genesis: %s", err)
	}
	if err := c.Add("stale", database.BlockHeader{Number: 1, PrevBlockHash: "genesis"}); err != nil {
		t.Fatalf("should add stale fork: %s", err)
	}
	if err := c.Add("mid", database.BlockHeader{Number: 1, PrevBlockHash: "genesis"}); err != nil {
		t.Fatalf("should add mid fork: %s", err)
	}
	if err := c.Add("ahead", database.BlockHeader{Number: 2, PrevBlockHash: "mid"}); err != nil {
		t.Fatalf("should add ahead block: %s", err)
	}

	pruned := c.PrunedTips(time.Now().Add(time.Hour), time.Minute)

	found := false
	for _, hash := range pruned {
		if hash == "stale" {
			found = true
		}
		if hash == "ahead" {
			t.Fatal("the dominant tip should never be pruned")
		}
	}
	if !found {
		t.Fatal("expected the dominated stale tip to be pruned")
	}
}
