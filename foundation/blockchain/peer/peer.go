// Package peer maintains the set of known brokers in the network and the
// per-broker handshake/sync state machine described by the sync protocol.
package peer

import (
	"fmt"
	"sync"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
)

// Peer represents a remote broker reachable at Host.
type Peer struct {
	Host string
}

// New constructs a peer value.
func New(host string) Peer {
	return Peer{Host: host}
}

// Match reports whether host identifies this peer.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// =============================================================================

// State is a stage in a broker's handshake/sync state machine.
type State string

// The state machine driving every peer connection: Handshaking exchanges
// chain ids and broker configs; Exchanging is the state after a completed
// handshake, before the first sync request (no further messages are
// exchanged in it); Syncing repeatedly publishes locators until the peer reports nothing
// missing, at which point the connection settles into Synced.
const (
	Handshaking State = "Handshaking"
	Exchanging  State = "Exchanging"
	Syncing     State = "Syncing"
	Synced      State = "Synced"
)

// transitions enumerates every state change this FSM permits. An attempt
// to move outside this table is a protocol error.
var transitions = map[State][]State{
	Handshaking: {Exchanging},
	Exchanging:  {Syncing},
	Syncing:     {Syncing, Synced},
	Synced:      {Syncing},
}

// ErrInvalidTransition is returned when a caller asks for a state change
// this FSM does not permit.
type ErrInvalidTransition struct {
	From, To State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("peer: invalid state transition from %s to %s", e.From, e.To)
}

// =============================================================================

// Status describes a peer's handshake progress and chain tip view.
type Status struct {
	mu sync.RWMutex

	state    State
	broker   chainindex.BrokerConfig
	locators [][]string
}

// NewStatus constructs a peer status starting in Handshaking.
func NewStatus() *Status {
	return &Status{state: Handshaking}
}

// State returns the current FSM state.
func (s *Status) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// Transition moves the peer to next, rejecting moves not present in the
// transition table.
func (s *Status) Transition(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, allowed := range transitions[s.state] {
		if allowed == next {
			s.state = next
			return nil
		}
	}

	return &ErrInvalidTransition{From: s.state, To: next}
}

// SetBroker records the broker range the peer announced in its handshake.
func (s *Status) SetBroker(broker chainindex.BrokerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.broker = broker
}

// Broker returns the peer's announced broker range.
func (s *Status) Broker() chainindex.BrokerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.broker
}

// RecordLocators stores the peer's most recently published locator set,
// one skip list per chain.
func (s *Status) RecordLocators(locators [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locators = locators
}

// IsCaughtUp reports whether inventories, one per chain, list nothing
// missing on every chain. It reads no recorded state.
func (s *Status) IsCaughtUp(inventories [][]string) bool {
	for _, inv := range inventories {
		if len(inv) > 0 {
			return false
		}
	}
	return true
}

// =============================================================================

// PeerSet tracks the known peers and their handshake status.
type PeerSet struct {
	mu  sync.RWMutex
	set map[Peer]*Status
}

// NewPeerSet constructs an empty peer set.
func NewPeerSet() *PeerSet {
	return &PeerSet{set: make(map[Peer]*Status)}
}

// Add registers peer with a fresh Handshaking status, returning false if
// the peer was already known.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.set[peer]; exists {
		return false
	}

	ps.set[peer] = NewStatus()
	return true
}

// Remove drops peer from the set.
func (ps *PeerSet) Remove(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, peer)
}

// Status returns the handshake status tracked for peer, if known.
func (ps *PeerSet) Status(peer Peer) (*Status, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	s, ok := ps.set[peer]
	return s, ok
}

// Copy returns every known peer other than host.
func (ps *PeerSet) Copy(host string) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var peers []Peer
	for peer := range ps.set {
		if !peer.Match(host) {
			peers = append(peers, peer)
		}
	}

	return peers
}
