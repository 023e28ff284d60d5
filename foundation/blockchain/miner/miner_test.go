package miner_test

import (
	"testing"
	"time"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/blockflow"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/genesis"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/handler"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/mempool"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/miner"
	"github.com/blockflow-labs/blockflow-node/foundation/events"
)

func testGenesis(groupCount uint16) genesis.Genesis {
	return genesis.Genesis{
		GroupCount:            groupCount,
		MaxMiningTarget:        0,
		NumZerosAtLeastInHash:  0,
		RetargetWindow:         10,
		TargetBlockTime:        time.Second,
		NonceStep:              50,
		TransPerBlock:          4,
		MiningReward:           100,
	}
}

// beneficiaryFor returns an address whose GroupIndex maps to group, relying
// on GroupIndex reading the account's trailing hex byte modulo groupCount.
func beneficiaryFor(group, groupCount uint16) database.AccountID {
	last := byte(group)
	for uint16(last)%groupCount != group {
		last++
	}
	hex := "00000000000000000000000000000000000000" + byteToHex(last)
	return database.AccountID("0x" + hex)
}

func byteToHex(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0xf]})
}

func Test_NewRejectsMismatchedGroup(t *testing.T) {
	gen := testGenesis(2)
	bad := beneficiaryFor(1, 2)

	if _, err := miner.New(0, bad, gen, nil, events.New(), nil); err == nil {
		t.Fatalf("expected an error constructing a miner with a mismatched beneficiary group")
	}
}

func Test_NewAcceptsMatchingGroup(t *testing.T) {
	gen := testGenesis(2)
	good := beneficiaryFor(0, 2)

	if _, err := miner.New(0, good, gen, nil, events.New(), nil); err != nil {
		t.Fatalf("should construct a miner with a matching beneficiary group: %s", err)
	}
}

func Test_OnBlockAddedPublishesToBus(t *testing.T) {
	gen := testGenesis(2)
	beneficiary := beneficiaryFor(0, 2)
	bus := events.New()

	m, err := miner.New(0, beneficiary, gen, nil, bus, nil)
	if err != nil {
		t.Fatalf("should construct a miner: %s", err)
	}

	idx := chainindex.ChainIndex{From: 0, To: 1}
	sub := bus.Subscribe("test:" + idx.String())
	defer bus.Unsubscribe("test:" + idx.String())

	m.OnBlockAdded(idx, "0xdeadbeef")

	select {
	case ev := <-sub:
		if ev.Data.(string) != "0xdeadbeef" {
			t.Fatalf("got event data %v, want 0xdeadbeef", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the published event")
	}
}

func Test_MiningEndToEndProducesABlock(t *testing.T) {
	gen := testGenesis(1)
	beneficiary := beneficiaryFor(0, 1)

	bf := blockflow.New(gen, nil)

	idx := chainindex.ChainIndex{From: 0, To: 0}
	genHashes := blockflow.GenesisHashes(gen)
	if err := bf.Genesis(genHashes); err != nil {
		t.Fatalf("should seed genesis: %s", err)
	}
	genesisHash := genHashes[idx]

	broker, err := chainindex.NewBrokerConfig(0, 1, 1)
	if err != nil {
		t.Fatalf("should construct a broker config: %s", err)
	}

	mp, err := mempool.New()
	if err != nil {
		t.Fatalf("should construct a mempool: %s", err)
	}

	handlers := handler.NewAllHandlers(bf, broker, mp, nil)
	if err := handlers.SeedGenesis(genHashes); err != nil {
		t.Fatalf("should seed chain handler genesis: %s", err)
	}
	bus := events.New()

	m, err := miner.New(0, beneficiary, gen, handlers, bus, nil)
	if err != nil {
		t.Fatalf("should construct a miner: %s", err)
	}
	handlers.Flow.OnBlockAdded(m.OnBlockAdded)

	handlers.Start()
	defer handlers.Shutdown()

	m.Start()
	defer m.Shutdown()

	deadline := time.After(5 * time.Second)
	for {
		w, _ := bf.Weight(genesisHash)
		if w > 0 {
			t.Fatalf("unexpected: genesis weight should never change, got %d", w)
		}

		mined := false
		for _, loc := range bf.GetSyncLocators() {
			for _, h := range loc {
				if h != genesisHash && h != "" {
					mined = true
				}
			}
		}
		if mined {
			return
		}

		select {
		case <-deadline:
			t.Fatalf("timed out waiting for the miner to produce a block")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
