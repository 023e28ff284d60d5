// Package handler implements the mesh of actor-like handlers driving
// BlockFlow: one handler per chain, a single flow handler serializing DAG
// mutations, and a transaction handler fronting the mempool. Handlers talk
// to each other only through mailboxes. Every request is tagged with an id
// and carries its own reply channel, on which the caller waits for the
// answer.
package handler

import (
	"github.com/google/uuid"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/blockflow"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
)

// templateRequest asks the flow handler for the best known deps and mining
// target for a chain, the first step of the fair miner's per-round cycle.
type templateRequest struct {
	RequestID  uuid.UUID
	ChainIndex chainindex.ChainIndex
	Reply      chan templateReply
}

type templateReply struct {
	RequestID uuid.UUID
	Template  blockflow.BlockDeps
	Target    uint16
	Err       error
}

// addBlockRequest asks the flow handler to fold a validated header into the
// DAG. Only a chain handler ever sends this, after its own validation pass.
type addBlockRequest struct {
	RequestID  uuid.UUID
	ChainIndex chainindex.ChainIndex
	Hash       string
	Header     database.BlockHeader
	Reply      chan addBlockReply
}

type addBlockReply struct {
	RequestID uuid.UUID
	Result    blockflow.AddResult
}

// headerRequest asks the flow handler for a previously committed header by
// hash, the lookup the fair miner performs to learn a dependency's block
// number before building its own header on top of it.
type headerRequest struct {
	RequestID uuid.UUID
	Hash      string
	Reply     chan headerReply
}

type headerReply struct {
	RequestID uuid.UUID
	Index     chainindex.ChainIndex
	Header    database.BlockHeader
	Found     bool
}

// inboundBlock is submitted to a chain handler by the miner or by the sync
// protocol. Full carries the complete block body on chains this broker owns
// and is nil on header-only chains.
type inboundBlock struct {
	RequestID uuid.UUID
	Hash      string
	Header    database.BlockHeader
	Full      *database.Block
	Reply     chan error
}
