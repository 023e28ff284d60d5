package syncproto

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/peer"
)

// Sink funnels fetched items into the handler mesh: full blocks for chains
// this broker stores in full, headers everywhere else.
type Sink interface {
	SubmitBlock(idx chainindex.ChainIndex, block database.Block) error
	SubmitHeader(idx chainindex.ChainIndex, hash string, header database.BlockHeader) error
}

// Session is one outbound sync connection to a remote broker. It owns the
// websocket and the peer's handshake/sync state machine; all methods must
// be called from a single goroutine.
type Session struct {
	conn   *websocket.Conn
	status *peer.Status
	broker chainindex.BrokerConfig
	flow   Flow
	sink   Sink

	evHandler func(v string, args ...any)
}

// Dial connects to a remote broker's sync endpoint and performs the
// handshake, leaving the session in the Exchanging state.
func Dial(url string, chainID uint16, broker chainindex.BrokerConfig, flow Flow, sink Sink, evHandler func(v string, args ...any)) (*Session, error) {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}

	s := &Session{
		conn:      conn,
		status:    peer.NewStatus(),
		broker:    broker,
		flow:      flow,
		sink:      sink,
		evHandler: evHandler,
	}

	if err := s.handshake(chainID); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

// Close tears down the connection. Pending inventories are simply dropped,
// matching the cancellation rule for sync sessions.
func (s *Session) Close() error {
	return s.conn.Close()
}

// State returns the peer state machine's current stage.
func (s *Session) State() peer.State {
	return s.status.State()
}

func (s *Session) handshake(chainID uint16) error {
	env, err := Seal(TypeHandshake, Handshake{
		ChainID:     chainID,
		BrokerFrom:  s.broker.From,
		BrokerUntil: s.broker.Until,
	})
	if err != nil {
		return err
	}
	if err := s.conn.WriteJSON(env); err != nil {
		return err
	}

	if err := s.conn.ReadJSON(&env); err != nil {
		return err
	}

	var hs Handshake
	if err := Open(env, TypeHandshake, &hs); err != nil {
		return err
	}
	if hs.ChainID != chainID {
		return &ProtocolError{Reason: fmt.Sprintf("peer is on chain %d, want %d", hs.ChainID, chainID)}
	}

	peerBroker, err := chainindex.NewBrokerConfig(hs.BrokerFrom, hs.BrokerUntil, groupCountOf(s.flow))
	if err != nil {
		return &ProtocolError{Reason: fmt.Sprintf("peer announced an invalid broker range: %s", err)}
	}
	s.status.SetBroker(peerBroker)

	return s.status.Transition(peer.Exchanging)
}

// SyncOnce publishes this node's locators and applies whatever the peer
// reports missing. It returns true when the peer had nothing to serve on
// any chain, at which point the session settles into Synced.
func (s *Session) SyncOnce() (bool, error) {
	if s.status.State() != peer.Syncing {
		if err := s.status.Transition(peer.Syncing); err != nil {
			return false, err
		}
	}

	env, err := Seal(TypeSyncRequest, SyncRequest{Locators: s.flow.GetSyncLocators()})
	if err != nil {
		return false, err
	}
	if err := s.conn.WriteJSON(env); err != nil {
		return false, err
	}

	if err := s.conn.ReadJSON(&env); err != nil {
		return false, err
	}
	var resp SyncResponse
	if err := Open(env, TypeSyncResponse, &resp); err != nil {
		return false, err
	}

	if s.status.IsCaughtUp(resp.Inventories) {
		return true, s.status.Transition(peer.Synced)
	}

	var hashes []string
	for _, inv := range resp.Inventories {
		hashes = append(hashes, inv...)
	}

	if err := s.fetch(hashes); err != nil {
		return false, err
	}

	return false, nil
}

// fetch retrieves the listed hashes and funnels each through the sink.
func (s *Session) fetch(hashes []string) error {
	env, err := Seal(TypeGetBlocks, GetBlocks{Hashes: hashes})
	if err != nil {
		return err
	}
	if err := s.conn.WriteJSON(env); err != nil {
		return err
	}

	if err := s.conn.ReadJSON(&env); err != nil {
		return err
	}
	var blocks Blocks
	if err := Open(env, TypeBlocks, &blocks); err != nil {
		return err
	}

	for _, msg := range blocks.Blocks {
		if err := s.apply(msg); err != nil {
			s.evHandler("sync: session: apply %s: ERROR: %s", msg.Hash, err)
		}
	}

	return nil
}

func (s *Session) apply(msg BlockMsg) error {
	idx, err := chainindex.New(msg.Header.ChainFrom, msg.Header.ChainTo, groupCountOf(s.flow))
	if err != nil {
		return &ProtocolError{Reason: fmt.Sprintf("block %s names an invalid chain: %s", msg.Hash, err)}
	}

	if !s.broker.RelatesTo(idx) {
		return s.sink.SubmitHeader(idx, msg.Hash, msg.Header)
	}

	// A full-storage chain needs the body. A peer that only tracked the
	// chain by header cannot serve it; leave the hash for a better peer.
	if len(msg.Trans) == 0 {
		return fmt.Errorf("peer served no body for %s on full-storage chain %s", msg.Hash, idx)
	}

	block, err := database.ToBlock(database.BlockFS{Hash: msg.Hash, Block: msg.Header, Trans: msg.Trans})
	if err != nil {
		return err
	}

	return s.sink.SubmitBlock(idx, block)
}

// Sync drives SyncOnce on a fixed cadence until the session reports
// Synced or ctx is cancelled. Once synced it keeps polling: a peer that
// mines new blocks moves the session back into Syncing.
func (s *Session) Sync(ctx context.Context, poll time.Duration) error {
	for {
		synced, err := s.SyncOnce()
		if err != nil {
			return err
		}
		if synced {
			s.evHandler("sync: session: synced")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}
