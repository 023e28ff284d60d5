package vm

import (
	"github.com/holiman/uint256"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
)

// assetBalance is the pair of native-asset and token balances an address
// holds inside a BalanceState.
type assetBalance struct {
	alph   *uint256.Int
	tokens map[string]*uint256.Int
}

func newAssetBalance() *assetBalance {
	return &assetBalance{alph: uint256.NewInt(0), tokens: make(map[string]*uint256.Int)}
}

func (b *assetBalance) clone() *assetBalance {
	out := &assetBalance{alph: b.alph.Clone(), tokens: make(map[string]*uint256.Int, len(b.tokens))}
	for id, amt := range b.tokens {
		out.tokens[id] = amt.Clone()
	}
	return out
}

// BalanceState holds the approved and remaining asset balances flowing
// through a payable call tree. Entering a payable method
// consumes the caller-provided Approved balance into the callee's
// Remaining; Approved+Remaining is conserved across a call tree absent an
// explicit TransferAlph/TransferToken burn to an address outside the tree.
type BalanceState struct {
	approved  map[database.AccountID]*assetBalance
	remaining map[database.AccountID]*assetBalance
}

// NewBalanceState constructs an empty balance state.
func NewBalanceState() *BalanceState {
	return &BalanceState{
		approved:  make(map[database.AccountID]*assetBalance),
		remaining: make(map[database.AccountID]*assetBalance),
	}
}

// Approve records that address has approved amount of the native asset for
// consumption by the method currently entering.
func (bs *BalanceState) Approve(address database.AccountID, amount *uint256.Int) {
	b, ok := bs.approved[address]
	if !ok {
		b = newAssetBalance()
		bs.approved[address] = b
	}
	b.alph.Add(b.alph, amount)
}

// ApproveToken records a token approval analogous to Approve.
func (bs *BalanceState) ApproveToken(address database.AccountID, tokenID string, amount *uint256.Int) {
	b, ok := bs.approved[address]
	if !ok {
		b = newAssetBalance()
		bs.approved[address] = b
	}
	existing, ok := b.tokens[tokenID]
	if !ok {
		existing = uint256.NewInt(0)
		b.tokens[tokenID] = existing
	}
	existing.Add(existing, amount)
}

// consumeApproved moves every approved balance belonging to address into
// remaining, the step a payable method entry performs on the callee's
// BalanceState.
func (bs *BalanceState) consumeApproved(address database.AccountID) {
	approved, ok := bs.approved[address]
	if !ok {
		return
	}
	delete(bs.approved, address)

	rem, ok := bs.remaining[address]
	if !ok {
		rem = newAssetBalance()
		bs.remaining[address] = rem
	}
	rem.alph.Add(rem.alph, approved.alph)
	for id, amt := range approved.tokens {
		existing, ok := rem.tokens[id]
		if !ok {
			existing = uint256.NewInt(0)
			rem.tokens[id] = existing
		}
		existing.Add(existing, amt)
	}
}

// RemainingAlph returns the native-asset balance still available to spend
// for address.
func (bs *BalanceState) RemainingAlph(address database.AccountID) *uint256.Int {
	b, ok := bs.remaining[address]
	if !ok {
		return uint256.NewInt(0)
	}
	return b.alph.Clone()
}

// isEmpty reports whether address has no approved or remaining balance at
// all, the condition that makes a payable call EmptyBalanceForPayableMethod.
func (bs *BalanceState) isEmpty(address database.AccountID) bool {
	if b, ok := bs.approved[address]; ok && (b.alph.Sign() > 0 || len(b.tokens) > 0) {
		return false
	}
	if b, ok := bs.remaining[address]; ok && (b.alph.Sign() > 0 || len(b.tokens) > 0) {
		return false
	}
	return true
}

// pullOnChainAlph adds amount directly into address's remaining balance,
// bypassing Approve: the step a payable CallExternal performs for a
// contract-owned method, which pulls the callee's own on-chain asset into
// its remaining balance in addition to whatever the caller approved.
func (bs *BalanceState) pullOnChainAlph(address database.AccountID, amount uint64) {
	rem, ok := bs.remaining[address]
	if !ok {
		rem = newAssetBalance()
		bs.remaining[address] = rem
	}
	rem.alph.Add(rem.alph, uint256.NewInt(amount))
}

// transferAlph moves amount of the native asset from from's remaining
// balance to to's remaining balance, used by the TransferAlph opcode.
func (bs *BalanceState) transferAlph(from, to database.AccountID, amount *uint256.Int) error {
	src, ok := bs.remaining[from]
	if !ok || src.alph.Cmp(amount) < 0 {
		return NewExecutionError(ErrArithmeticError, errInsufficientBalance)
	}

	src.alph.Sub(src.alph, amount)

	dst, ok := bs.remaining[to]
	if !ok {
		dst = newAssetBalance()
		bs.remaining[to] = dst
	}
	dst.alph.Add(dst.alph, amount)

	return nil
}

// transferToken is transferAlph's token-balance analogue.
func (bs *BalanceState) transferToken(from, to database.AccountID, tokenID string, amount *uint256.Int) error {
	src, ok := bs.remaining[from]
	if !ok {
		return NewExecutionError(ErrArithmeticError, errInsufficientBalance)
	}
	srcAmt, ok := src.tokens[tokenID]
	if !ok || srcAmt.Cmp(amount) < 0 {
		return NewExecutionError(ErrArithmeticError, errInsufficientBalance)
	}
	srcAmt.Sub(srcAmt, amount)

	dst, ok := bs.remaining[to]
	if !ok {
		dst = newAssetBalance()
		bs.remaining[to] = dst
	}
	dstAmt, ok := dst.tokens[tokenID]
	if !ok {
		dstAmt = uint256.NewInt(0)
		dst.tokens[tokenID] = dstAmt
	}
	dstAmt.Add(dstAmt, amount)

	return nil
}
