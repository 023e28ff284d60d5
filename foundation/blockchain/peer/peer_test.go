package peer_test

import (
	"testing"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/peer"
)

func Test_HandshakeFSMHappyPath(t *testing.T) {
	status := peer.NewStatus()

	if status.State() != peer.Handshaking {
		t.Fatalf("expected initial state Handshaking, got %s", status.State())
	}

	if err := status.Transition(peer.Exchanging); err != nil {
		t.Fatalf("should move Handshaking -> Exchanging: %s", err)
	}

	if err := status.Transition(peer.Syncing); err != nil {
		t.Fatalf("should move Exchanging -> Syncing: %s", err)
	}

	if err := status.Transition(peer.Synced); err != nil {
		t.Fatalf("should move Syncing -> Synced: %s", err)
	}

	if err := status.Transition(peer.Syncing); err != nil {
		t.Fatalf("should move Synced -> Syncing on new work: %s", err)
	}
}

func Test_HandshakeFSMRejectsSkippingExchanging(t *testing.T) {
	status := peer.NewStatus()

	if err := status.Transition(peer.Syncing); err == nil {
		t.Fatal("should reject Handshaking -> Syncing directly")
	}
}

func Test_HandshakeFSMRejectsGoingBackwards(t *testing.T) {
	status := peer.NewStatus()

	if err := status.Transition(peer.Exchanging); err != nil {
		t.Fatalf("should move to Exchanging: %s", err)
	}
	if err := status.Transition(peer.Syncing); err != nil {
		t.Fatalf("should move to Syncing: %s", err)
	}

	if err := status.Transition(peer.Handshaking); err == nil {
		t.Fatal("should reject moving back to Handshaking")
	}
}

func Test_IsCaughtUpOnEmptyInventories(t *testing.T) {
	status := peer.NewStatus()

	inventories := [][]string{{}, {}, {}}
	if !status.IsCaughtUp(inventories) {
		t.Fatal("should be caught up when every chain's inventory is empty")
	}

	inventories = [][]string{{}, {"missing-hash"}, {}}
	if status.IsCaughtUp(inventories) {
		t.Fatal("should not be caught up when any chain has a missing hash")
	}
}

func Test_PeerSetAddRemove(t *testing.T) {
	set := peer.NewPeerSet()
	p := peer.New("broker-a:9000")

	if !set.Add(p) {
		t.Fatal("should add a new peer")
	}
	if set.Add(p) {
		t.Fatal("should not re-add an already known peer")
	}

	if _, ok := set.Status(p); !ok {
		t.Fatal("should track status for an added peer")
	}

	set.Remove(p)
	if _, ok := set.Status(p); ok {
		t.Fatal("should not track status for a removed peer")
	}
}

func Test_PeerSetCopyExcludesSelf(t *testing.T) {
	set := peer.NewPeerSet()
	set.Add(peer.New("self:9000"))
	set.Add(peer.New("other:9000"))

	peers := set.Copy("self:9000")
	if len(peers) != 1 || peers[0].Host != "other:9000" {
		t.Fatalf("expected Copy to exclude self, got %v", peers)
	}
}
