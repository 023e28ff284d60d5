// Package syncproto implements the inter-clique synchronization protocol:
// brokers exchange per-chain locator skip lists and inventories over a
// persistent websocket connection, then fetch the block bodies and headers
// they are missing and funnel them through the handler mesh.
package syncproto

import (
	"encoding/json"
	"fmt"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
)

// The message types a sync connection carries. Handshake must be the first
// message in each direction; everything after is request/response driven
// by the syncing side.
const (
	TypeHandshake    = "handshake"
	TypeSyncRequest  = "sync-request"
	TypeSyncResponse = "sync-response"
	TypeGetBlocks    = "get-blocks"
	TypeBlocks       = "blocks"
)

// Envelope frames every message on the wire: a type tag and the typed
// payload, JSON-encoded.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handshake announces a broker's identity: the network it believes it is
// on and the contiguous group range it hosts in full.
type Handshake struct {
	ChainID     uint16 `json:"chain_id"`
	BrokerFrom  uint16 `json:"broker_from"`
	BrokerUntil uint16 `json:"broker_until"`
}

// SyncRequest carries the requesting broker's locators: one skip list per
// chain in canonical row-major order.
type SyncRequest struct {
	Locators [][]string `json:"locators"`
}

// SyncResponse carries the responding broker's inventories: per chain, the
// hashes the requester is missing, oldest first. Empty on every chain
// means the requester is fully caught up.
type SyncResponse struct {
	Inventories [][]string `json:"inventories"`
}

// GetBlocks requests the bodies (or headers, for chains the responder only
// tracks by header) for a list of hashes taken from an inventory.
type GetBlocks struct {
	Hashes []string `json:"hashes"`
}

// BlockMsg is one fetched item: always the header, plus the transaction
// list on chains the responding broker stores in full.
type BlockMsg struct {
	Hash   string                 `json:"hash"`
	Header database.BlockHeader   `json:"header"`
	Trans  []database.BlockTx     `json:"trans,omitempty"`
}

// Blocks answers a GetBlocks request, in the requested order.
type Blocks struct {
	Blocks []BlockMsg `json:"blocks"`
}

// Seal wraps a typed payload into an Envelope.
func Seal(msgType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Payload: data}, nil
}

// Open unpacks an Envelope's payload into out, checking the type tag.
func Open(env Envelope, msgType string, out any) error {
	if env.Type != msgType {
		return &ProtocolError{Reason: fmt.Sprintf("expected %s message, got %s", msgType, env.Type)}
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return &ProtocolError{Reason: fmt.Sprintf("malformed %s payload: %s", msgType, err)}
	}
	return nil
}

// ProtocolError reports a malformed or out-of-sequence peer message. The
// server ends that peer's session on it, a failed handshake fails Dial, and
// a bad item in a reply is logged and skipped. No peer score is kept; the
// error never panics or retries.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("syncproto: protocol error: %s", e.Reason)
}
