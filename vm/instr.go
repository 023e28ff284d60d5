package vm

// OpCode identifies one VM instruction. The compiler's codegen package
// emits sequences of these; offsets used by Jump/IfTrue/IfFalse are single-
// byte signed values bounded by ±0xff.
type OpCode byte

// The instruction set, grouped by category:
// constants, I256/U256 arithmetic, byte-vec ops, control flow, local/field
// load-store, method call, return, event emit, crypto primitives, and
// balance ops.
const (
	OpConstBool OpCode = iota
	OpConstI256
	OpConstU256
	OpConstByteVec
	OpConstAddress

	OpI256Add
	OpI256Sub
	OpI256Mul
	OpI256Div
	OpI256Mod
	OpI256Eq
	OpI256Neq
	OpI256Lt
	OpI256Le
	OpI256Gt
	OpI256Ge
	OpI256Neg

	OpU256Add
	OpU256Sub
	OpU256Mul
	OpU256Div
	OpU256Mod
	OpU256Eq
	OpU256Neq
	OpU256Lt
	OpU256Le
	OpU256Gt
	OpU256Ge

	OpBoolAnd
	OpBoolOr
	OpBoolNot
	OpBoolEq

	OpByteVecConcat
	OpByteVecEq
	OpByteVecNeq
	OpByteVecLength
	OpByteVecSlice

	OpAddressEq
	OpAddressNeq

	OpJump
	OpIfTrue
	OpIfFalse

	OpLoadLocal
	OpStoreLocal
	OpLoadField
	OpStoreField

	OpCallLocal
	OpCallExternal
	OpReturn

	OpPop
	OpDup
	OpSwap

	OpEventEmit

	OpHash
	OpVerifySignature

	OpApprove
	OpTransferAlph
	OpTransferToken

	OpCallerAddress
	OpContractAddress

	opCodeCount
)

// Instr is one emitted instruction. IntOperand is interpreted per Op: a
// local/field/method slot index, an instruction offset relative to the jump
// itself for jumps, start<<32|end for ByteVecSlice bounds, or the event id
// for EventEmit. Const carries the
// literal value for the Const* family.
type Instr struct {
	Op         OpCode
	IntOperand int64
	Const      Val
}

// instrCost declares the fixed gas price of every opcode. Calls carry
// their own additional callGas on top of the table entry:
// "charge callGas; push new frame".
var instrCost = map[OpCode]uint64{
	OpConstBool:    1,
	OpConstI256:    1,
	OpConstU256:    1,
	OpConstByteVec: 3,
	OpConstAddress: 1,

	OpI256Add: 3, OpI256Sub: 3, OpI256Mul: 5, OpI256Div: 5, OpI256Mod: 5,
	OpI256Eq: 3, OpI256Neq: 3, OpI256Lt: 3, OpI256Le: 3, OpI256Gt: 3, OpI256Ge: 3, OpI256Neg: 2,

	OpU256Add: 3, OpU256Sub: 3, OpU256Mul: 5, OpU256Div: 5, OpU256Mod: 5,
	OpU256Eq: 3, OpU256Neq: 3, OpU256Lt: 3, OpU256Le: 3, OpU256Gt: 3, OpU256Ge: 3,

	OpBoolAnd: 2, OpBoolOr: 2, OpBoolNot: 2, OpBoolEq: 2,

	OpByteVecConcat: 6, OpByteVecEq: 3, OpByteVecNeq: 3, OpByteVecLength: 2, OpByteVecSlice: 6,

	OpAddressEq: 3, OpAddressNeq: 3,

	OpJump: 4, OpIfTrue: 4, OpIfFalse: 4,

	OpLoadLocal: 3, OpStoreLocal: 3, OpLoadField: 5, OpStoreField: 5,

	OpCallLocal: 10, OpCallExternal: 20, OpReturn: 2,

	OpPop: 1, OpDup: 2, OpSwap: 2,

	OpEventEmit: 1,

	OpHash: 30, OpVerifySignature: 200,

	OpApprove: 30, OpTransferAlph: 30, OpTransferToken: 30,

	OpCallerAddress: 3, OpContractAddress: 3,
}

func costOf(op OpCode) uint64 {
	if c, ok := instrCost[op]; ok {
		return c
	}
	return baseGas
}

// maxJumpOffset bounds a single jump's byte offset to what fits in a
// signed byte, matching the compiler's "Too many instrs for
// branches" check.
const maxJumpOffset = 0xff
