package database

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/merkle"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/signature"
)

// ErrChainForked is returned from ValidateBlock when a candidate block's
// number leaves no room for our current chain tip, signalling the caller
// should resync rather than keep validating blocks one at a time.
var ErrChainForked = errors.New("chain forked, start resync")

// ErrNoSolutionInRange is returned by POWRange when none of the nonces in
// the scanned range solve the target, so the caller (the fair miner's
// sub-miner loop) can check for new work or cancellation and rescan a
// fresh range.
var ErrNoSolutionInRange = errors.New("no solution found in nonce range")

// =============================================================================

// BlockHeader carries everything needed to verify a block without its
// transaction bodies: the cross-chain dependency set, the intra-chain
// parent, the transaction commitment, and the proof-of-work fields.
type BlockHeader struct {
	ChainFrom     uint16    `json:"chain_from"`
	ChainTo       uint16    `json:"chain_to"`
	Number        uint64    `json:"number"`          // Position of this block on its own chain.
	PrevBlockHash string    `json:"prev_block_hash"` // Intra-chain parent.
	BlockDeps     []string  `json:"block_deps"`      // One best tip per other group, then one tip per sibling chain.
	TxMerkleRoot  string    `json:"tx_merkle_root"`
	TimeStamp     uint64    `json:"timestamp"`
	BeneficiaryID AccountID `json:"beneficiary"`
	Target        uint16    `json:"target"` // Required leading zero hex nibbles in the block hash.
	Nonce         uint64    `json:"nonce"`
}

// Block represents a group of transactions batched together under a header.
type Block struct {
	Header BlockHeader
	Trans  *merkle.Tree[BlockTx]
}

// POW constructs a new Block for chainIndex and performs the work to find a
// nonce that solves the cryptographic POW puzzle given by target.
func POW(ctx context.Context, beneficiaryID AccountID, chainFrom, chainTo uint16, target uint16, prevBlock Block, blockDeps []string, trans []BlockTx, evHandler func(v string, args ...any)) (Block, error) {
	nb, err := newCandidateBlock(beneficiaryID, chainFrom, chainTo, target, prevBlock, blockDeps, trans)
	if err != nil {
		return Block{}, err
	}

	if err := nb.performPOW(ctx, evHandler); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// POWRange constructs a new Block and scans exactly nonceCount nonces
// starting at nonceStart, the shape the fair miner's per-group sub-miners
// use to partition the nonce space: each sub-miner owns a
// disjoint [nonceStart, nonceStart+nonceCount) range and returns control to
// its coordinator with ErrNoSolutionInRange to check for new work or
// cancellation between ranges, rather than scanning forever in one call.
func POWRange(ctx context.Context, beneficiaryID AccountID, chainFrom, chainTo uint16, target uint16, prevBlock Block, blockDeps []string, trans []BlockTx, nonceStart, nonceCount uint64, evHandler func(v string, args ...any)) (Block, error) {
	nb, err := newCandidateBlock(beneficiaryID, chainFrom, chainTo, target, prevBlock, blockDeps, trans)
	if err != nil {
		return Block{}, err
	}

	if err := nb.performPOWRange(ctx, nonceStart, nonceCount, evHandler); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// newCandidateBlock assembles the header/transaction-tree pair POW and
// POWRange both mine over, with the nonce left unset.
func newCandidateBlock(beneficiaryID AccountID, chainFrom, chainTo uint16, target uint16, prevBlock Block, blockDeps []string, trans []BlockTx) (Block, error) {
	tree, err := merkle.NewTree(trans)
	if err != nil {
		return Block{}, err
	}

	prevBlockHash := prevBlock.Hash()

	return Block{
		Header: BlockHeader{
			ChainFrom:     chainFrom,
			ChainTo:       chainTo,
			Number:        prevBlock.Header.Number + 1,
			PrevBlockHash: prevBlockHash,
			BlockDeps:     blockDeps,
			TxMerkleRoot:  tree.RootHex(),
			TimeStamp:     uint64(time.Now().UTC().Unix()),
			BeneficiaryID: beneficiaryID,
			Target:        target,
			Nonce:         0,
		},
		Trans: tree,
	}, nil
}

// performPOW does the work of mining to find a valid hash for this block.
// Pointer semantics are used since the nonce is being discovered in place.
func (b *Block) performPOW(ctx context.Context, ev func(v string, args ...any)) error {
	ev("miner: performPOW: started: chain[%d,%d]", b.Header.ChainFrom, b.Header.ChainTo)
	defer ev("miner: performPOW: completed: chain[%d,%d]", b.Header.ChainFrom, b.Header.ChainTo)

	nBig, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return ctx.Err()
	}
	b.Header.Nonce = nBig.Uint64()

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("miner: performPOW: attempts[%d]", attempts)
		}

		if ctx.Err() != nil {
			ev("miner: performPOW: cancelled")
			return ctx.Err()
		}

		hash := b.Hash()
		if !isHashSolved(b.Header.Target, hash) {
			b.Header.Nonce++
			continue
		}

		ev("miner: performPOW: solved: prevBlk[%s]: newBlk[%s]: attempts[%d]", b.Header.PrevBlockHash, hash, attempts)
		return nil
	}
}

// performPOWRange scans exactly nonceCount nonces starting at nonceStart,
// returning ErrNoSolutionInRange if none of them solve the target.
func (b *Block) performPOWRange(ctx context.Context, nonceStart, nonceCount uint64, ev func(v string, args ...any)) error {
	ev("miner: performPOWRange: started: chain[%d,%d]: nonce[%d,+%d)", b.Header.ChainFrom, b.Header.ChainTo, nonceStart, nonceCount)
	defer ev("miner: performPOWRange: completed: chain[%d,%d]", b.Header.ChainFrom, b.Header.ChainTo)

	b.Header.Nonce = nonceStart

	for i := uint64(0); i < nonceCount; i++ {
		if ctx.Err() != nil {
			ev("miner: performPOWRange: cancelled")
			return ctx.Err()
		}

		hash := b.Hash()
		if isHashSolved(b.Header.Target, hash) {
			ev("miner: performPOWRange: solved: prevBlk[%s]: newBlk[%s]: nonce[%d]", b.Header.PrevBlockHash, hash, b.Header.Nonce)
			return nil
		}

		b.Header.Nonce++
	}

	return ErrNoSolutionInRange
}

// Hash returns the unique Blake2b-256 hash of the block header. Only the
// header is hashed, never the transaction bodies, so pruned nodes holding
// only headers for non-local chains can still validate downstream blocks
// that depend on this one. Genesis headers hash like any other, which
// gives every chain in the grid a distinct genesis hash.
func (b Block) Hash() string {
	return signature.Hash256(b.Header)
}

// ValidateBlock checks this block's header-local invariants against its
// known intra-chain parent. Cross-chain dependency consistency is the
// responsibility of the blockflow package, which has visibility into every
// chain in the grid.
func (b Block) ValidateBlock(previousBlock Block, groupCount uint16, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: blk[%d]: check: block is not forked", b.Header.Number)

	nextNumber := previousBlock.Header.Number + 1
	if b.Header.Number >= nextNumber+2 {
		return ErrChainForked
	}

	evHandler("database: ValidateBlock: blk[%d]: check: block number is the next number", b.Header.Number)

	if b.Header.Number != nextNumber {
		return fmt.Errorf("this block is not the next number, got %d, exp %d", b.Header.Number, nextNumber)
	}

	evHandler("database: ValidateBlock: blk[%d]: check: parent hash matches known parent", b.Header.Number)

	if b.Header.PrevBlockHash != previousBlock.Hash() {
		return NewValidationError(ValidationUnknownParent, fmt.Errorf("parent block hash doesn't match our known parent, got %s, exp %s", b.Header.PrevBlockHash, previousBlock.Hash()))
	}

	evHandler("database: ValidateBlock: blk[%d]: check: block deps count matches the grid", b.Header.Number)

	want := 2*int(groupCount) - 2
	if len(b.Header.BlockDeps) != want {
		return NewValidationError(ValidationBadDeps, fmt.Errorf("block deps has %d entries, want %d", len(b.Header.BlockDeps), want))
	}

	evHandler("database: ValidateBlock: blk[%d]: check: proof of work is solved", b.Header.Number)

	hash := b.Hash()
	if !isHashSolved(b.Header.Target, hash) {
		return NewValidationError(ValidationBadPoW, fmt.Errorf("%s invalid block hash for target %d", hash, b.Header.Target))
	}

	if previousBlock.Header.TimeStamp > 0 {
		evHandler("database: ValidateBlock: blk[%d]: check: timestamp is strictly greater than parent's", b.Header.Number)

		parentTime := time.Unix(int64(previousBlock.Header.TimeStamp), 0)
		blockTime := time.Unix(int64(b.Header.TimeStamp), 0)
		if !blockTime.After(parentTime) {
			return NewValidationError(ValidationBadTimestamp, fmt.Errorf("block timestamp is not after parent block, parent %s, block %s", parentTime, blockTime))
		}
	}

	evHandler("database: ValidateBlock: blk[%d]: check: merkle root matches transactions", b.Header.Number)

	if b.Header.TxMerkleRoot != b.Trans.RootHex() {
		return NewValidationError(ValidationBadMerkleRoot, fmt.Errorf("merkle root does not match transactions, got %s, exp %s", b.Trans.RootHex(), b.Header.TxMerkleRoot))
	}

	return nil
}

// isHashSolved checks the hash against the target number of leading zero
// hex nibbles required.
func isHashSolved(target uint16, hash string) bool {
	h := trimHexPrefix(hash)
	if int(target) > len(h) {
		return false
	}

	return strings.Count(h[:target], "0") == int(target)
}

// =============================================================================

// BlockFS represents what is written to the DB file for a single chain.
type BlockFS struct {
	Hash  string      `json:"hash"`
	Block BlockHeader `json:"block"`
	Trans []BlockTx   `json:"trans"`
}

// NewBlockFS constructs the value to serialize to disk.
func NewBlockFS(block Block) BlockFS {
	return BlockFS{
		Hash:  block.Hash(),
		Block: block.Header,
		Trans: block.Trans.Values(),
	}
}

// ToBlock converts a BlockFS back into a Block.
func ToBlock(blockFS BlockFS) (Block, error) {
	tree, err := merkle.NewTree(blockFS.Trans)
	if err != nil {
		return Block{}, err
	}

	return Block{
		Header: blockFS.Block,
		Trans:  tree,
	}, nil
}
