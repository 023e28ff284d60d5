package syncproto

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/peer"
)

// Flow is the view of the local DAG both ends of a sync session need:
// locator/inventory computation and header resolution by hash.
type Flow interface {
	GetSyncLocators() [][]string
	GetSyncInventories(locators [][]string) [][]string
	GetHeader(hash string) (chainindex.ChainIndex, database.BlockHeader, bool)
}

// groupCountOf derives G from the locator shape, avoiding a second
// configuration parameter that could drift from the flow's own.
func groupCountOf(flow Flow) uint16 {
	n := len(flow.GetSyncLocators())
	for g := uint16(1); ; g++ {
		if int(g)*int(g) >= n {
			return g
		}
	}
}

// Server answers inbound sync sessions: it upgrades the HTTP request to a
// websocket, exchanges handshakes, then serves inventories and block
// bodies until the peer disconnects.
type Server struct {
	chainID uint16
	broker  chainindex.BrokerConfig
	flow    Flow
	bodies  BodySource

	upgrader  websocket.Upgrader
	evHandler func(v string, args ...any)
}

// NewServer constructs a sync server for the given broker identity.
func NewServer(chainID uint16, broker chainindex.BrokerConfig, flow Flow, bodies BodySource, evHandler func(v string, args ...any)) *Server {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	return &Server{
		chainID:   chainID,
		broker:    broker,
		flow:      flow,
		bodies:    bodies,
		evHandler: evHandler,
	}
}

// ServeHTTP implements http.Handler. Each connection is served on the
// caller's goroutine until the peer disconnects or breaks protocol.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.evHandler("sync: server: upgrade failed: %s", err)
		return
	}
	defer conn.Close()

	if err := s.serve(conn); err != nil {
		s.evHandler("sync: server: session with %s ended: %s", conn.RemoteAddr(), err)
	}
}

func (s *Server) serve(conn *websocket.Conn) error {
	status := peer.NewStatus()

	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return err
	}

	var hs Handshake
	if err := Open(env, TypeHandshake, &hs); err != nil {
		return err
	}
	if hs.ChainID != s.chainID {
		return &ProtocolError{Reason: fmt.Sprintf("peer is on chain %d, this node is on chain %d", hs.ChainID, s.chainID)}
	}

	if peerBroker, err := chainindex.NewBrokerConfig(hs.BrokerFrom, hs.BrokerUntil, groupCountOf(s.flow)); err == nil {
		status.SetBroker(peerBroker)
	}

	reply, err := Seal(TypeHandshake, Handshake{
		ChainID:     s.chainID,
		BrokerFrom:  s.broker.From,
		BrokerUntil: s.broker.Until,
	})
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(reply); err != nil {
		return err
	}
	if err := status.Transition(peer.Exchanging); err != nil {
		return err
	}

	s.evHandler("sync: server: peer %s handshake complete: broker[%d,%d)", conn.RemoteAddr(), hs.BrokerFrom, hs.BrokerUntil)

	for {
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}

		switch env.Type {
		case TypeSyncRequest:
			err = s.handleSyncRequest(conn, env, status)
		case TypeGetBlocks:
			err = s.handleGetBlocks(conn, env)
		default:
			err = &ProtocolError{Reason: fmt.Sprintf("unexpected message type %q", env.Type)}
		}
		if err != nil {
			return err
		}
	}
}

func (s *Server) handleSyncRequest(conn *websocket.Conn, env Envelope, status *peer.Status) error {
	var req SyncRequest
	if err := Open(env, TypeSyncRequest, &req); err != nil {
		return err
	}

	if status.State() != peer.Syncing {
		if err := status.Transition(peer.Syncing); err != nil {
			return err
		}
	}
	status.RecordLocators(req.Locators)

	inventories := s.flow.GetSyncInventories(req.Locators)
	if status.IsCaughtUp(inventories) {
		if err := status.Transition(peer.Synced); err != nil {
			return err
		}
	}

	reply, err := Seal(TypeSyncResponse, SyncResponse{Inventories: inventories})
	if err != nil {
		return err
	}

	return conn.WriteJSON(reply)
}

func (s *Server) handleGetBlocks(conn *websocket.Conn, env Envelope) error {
	var req GetBlocks
	if err := Open(env, TypeGetBlocks, &req); err != nil {
		return err
	}

	blocks := make([]BlockMsg, 0, len(req.Hashes))
	for _, hash := range req.Hashes {
		idx, header, found := s.flow.GetHeader(hash)
		if !found {
			continue
		}

		msg := BlockMsg{Hash: hash, Header: header}
		if s.broker.RelatesTo(idx) && s.bodies != nil {
			if trans, ok := s.bodies.GetBlockBody(hash); ok {
				msg.Trans = trans
			}
		}

		blocks = append(blocks, msg)
	}

	reply, err := Seal(TypeBlocks, Blocks{Blocks: blocks})
	if err != nil {
		return err
	}

	return conn.WriteJSON(reply)
}
