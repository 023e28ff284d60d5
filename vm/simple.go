package vm

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// execSimple runs every opcode that neither pushes/pops a frame nor
// branches the program counter: constants, arithmetic, bool/byte-vec/
// address comparisons, local/field load-store, stack shuffling, crypto
// primitives, and balance ops. Gas is charged before the opcode's
// semantics run.
func (e *Executor) execSimple(f *Frame, instr Instr) error {
	if err := e.gas.Charge(costOf(instr.Op)); err != nil {
		return err
	}

	switch instr.Op {
	case OpConstBool, OpConstI256, OpConstU256, OpConstByteVec, OpConstAddress:
		e.push(instr.Const)
		return nil

	case OpI256Add, OpI256Sub, OpI256Mul, OpI256Div, OpI256Mod,
		OpI256Eq, OpI256Neq, OpI256Lt, OpI256Le, OpI256Gt, OpI256Ge:
		return e.execI256Binary(f, instr.Op)
	case OpI256Neg:
		v, err := e.pop(f)
		if err != nil {
			return err
		}
		n, err := v.AsI256()
		if err != nil {
			return err
		}
		neg, err := subI256(big.NewInt(0), n)
		if err != nil {
			return err
		}
		e.push(I256Val(neg))
		return nil

	case OpU256Add, OpU256Sub, OpU256Mul, OpU256Div, OpU256Mod,
		OpU256Eq, OpU256Neq, OpU256Lt, OpU256Le, OpU256Gt, OpU256Ge:
		return e.execU256Binary(f, instr.Op)

	case OpBoolAnd, OpBoolOr, OpBoolNot, OpBoolEq:
		return e.execBool(f, instr.Op)

	case OpByteVecConcat, OpByteVecEq, OpByteVecNeq, OpByteVecLength, OpByteVecSlice:
		return e.execByteVec(f, instr)

	case OpAddressEq, OpAddressNeq:
		return e.execAddress(f, instr.Op)

	case OpLoadLocal:
		index := int(instr.IntOperand)
		if index < 0 || index >= len(f.locals) {
			return NewExecutionError(ErrInvalidLocalIndex, errLocalIndex(index, len(f.locals)))
		}
		e.push(f.locals[index])
		return nil
	case OpStoreLocal:
		index := int(instr.IntOperand)
		if index < 0 || index >= len(f.locals) {
			return NewExecutionError(ErrInvalidLocalIndex, errLocalIndex(index, len(f.locals)))
		}
		v, err := e.pop(f)
		if err != nil {
			return err
		}
		f.locals[index] = v
		return nil
	case OpLoadField:
		v, err := e.loadField(f, int(instr.IntOperand))
		if err != nil {
			return err
		}
		e.push(v)
		return nil
	case OpStoreField:
		v, err := e.pop(f)
		if err != nil {
			return err
		}
		return e.storeField(f, int(instr.IntOperand), v)

	case OpPop:
		_, err := e.pop(f)
		return err
	case OpDup:
		v, err := e.pop(f)
		if err != nil {
			return err
		}
		e.push(v)
		e.push(v)
		return nil
	case OpSwap:
		b, err := e.pop(f)
		if err != nil {
			return err
		}
		a, err := e.pop(f)
		if err != nil {
			return err
		}
		e.push(b)
		e.push(a)
		return nil

	case OpEventEmit:
		_, err := e.pop(f)
		if err != nil {
			return err
		}
		e.evHandler("vm: execSimple: EventEmit: event %d raised by %s", instr.IntOperand, f.contractAddr)
		return nil

	case OpHash:
		b, err := e.pop(f)
		if err != nil {
			return err
		}
		bv, err := b.AsByteVec()
		if err != nil {
			return err
		}
		e.push(ByteVecVal(hashBytes(bv)))
		return nil

	case OpVerifySignature:
		sig, err := e.pop(f)
		if err != nil {
			return err
		}
		pubKey, err := e.pop(f)
		if err != nil {
			return err
		}
		msgHash, err := e.pop(f)
		if err != nil {
			return err
		}
		sigBytes, err := sig.AsByteVec()
		if err != nil {
			return err
		}
		pubKeyBytes, err := pubKey.AsByteVec()
		if err != nil {
			return err
		}
		msgHashBytes, err := msgHash.AsByteVec()
		if err != nil {
			return err
		}
		e.push(BoolVal(verifySignature(pubKeyBytes, msgHashBytes, sigBytes)))
		return nil

	case OpApprove:
		amount, err := e.pop(f)
		if err != nil {
			return err
		}
		addr, err := e.pop(f)
		if err != nil {
			return err
		}
		u, err := amount.AsU256()
		if err != nil {
			return err
		}
		a, err := addr.AsAddress()
		if err != nil {
			return err
		}
		e.requireBalance()
		e.balance.Approve(a, u)
		return nil

	case OpTransferAlph:
		amount, err := e.pop(f)
		if err != nil {
			return err
		}
		to, err := e.pop(f)
		if err != nil {
			return err
		}
		from, err := e.pop(f)
		if err != nil {
			return err
		}
		u, err := amount.AsU256()
		if err != nil {
			return err
		}
		toAddr, err := to.AsAddress()
		if err != nil {
			return err
		}
		fromAddr, err := from.AsAddress()
		if err != nil {
			return err
		}
		e.requireBalance()
		return e.balance.transferAlph(fromAddr, toAddr, u)

	case OpTransferToken:
		amount, err := e.pop(f)
		if err != nil {
			return err
		}
		tokenID, err := e.pop(f)
		if err != nil {
			return err
		}
		to, err := e.pop(f)
		if err != nil {
			return err
		}
		from, err := e.pop(f)
		if err != nil {
			return err
		}
		u, err := amount.AsU256()
		if err != nil {
			return err
		}
		tokenBytes, err := tokenID.AsByteVec()
		if err != nil {
			return err
		}
		toAddr, err := to.AsAddress()
		if err != nil {
			return err
		}
		fromAddr, err := from.AsAddress()
		if err != nil {
			return err
		}
		e.requireBalance()
		return e.balance.transferToken(fromAddr, toAddr, string(tokenBytes), u)

	case OpCallerAddress:
		e.push(AddressVal(e.ctx.Caller))
		return nil
	case OpContractAddress:
		e.push(AddressVal(f.contractAddr))
		return nil

	default:
		return NewExecutionError(ErrInvalidType, errUnknownOpcode(instr.Op))
	}
}

func errUnknownOpcode(op OpCode) error {
	return fmt.Errorf("unrecognized opcode %d", op)
}

func errByteVecSlice(start, end, length int) error {
	return fmt.Errorf("slice [%d:%d] out of range for byte vector of length %d", start, end, length)
}

// requireBalance lazily allocates a BalanceState for stateless scripts that
// only want to stage transfers scoped to their own execution.
func (e *Executor) requireBalance() {
	if e.balance == nil {
		e.balance = NewBalanceState()
	}
}

func (e *Executor) execI256Binary(f *Frame, op OpCode) error {
	b, err := e.pop(f)
	if err != nil {
		return err
	}
	a, err := e.pop(f)
	if err != nil {
		return err
	}
	x, err := a.AsI256()
	if err != nil {
		return err
	}
	y, err := b.AsI256()
	if err != nil {
		return err
	}

	switch op {
	case OpI256Add:
		r, err := addI256(x, y)
		if err != nil {
			return err
		}
		e.push(I256Val(r))
	case OpI256Sub:
		r, err := subI256(x, y)
		if err != nil {
			return err
		}
		e.push(I256Val(r))
	case OpI256Mul:
		r, err := mulI256(x, y)
		if err != nil {
			return err
		}
		e.push(I256Val(r))
	case OpI256Div:
		r, err := divI256(x, y)
		if err != nil {
			return err
		}
		e.push(I256Val(r))
	case OpI256Mod:
		r, err := modI256(x, y)
		if err != nil {
			return err
		}
		e.push(I256Val(r))
	case OpI256Eq:
		e.push(BoolVal(x.Cmp(y) == 0))
	case OpI256Neq:
		e.push(BoolVal(x.Cmp(y) != 0))
	case OpI256Lt:
		e.push(BoolVal(x.Cmp(y) < 0))
	case OpI256Le:
		e.push(BoolVal(x.Cmp(y) <= 0))
	case OpI256Gt:
		e.push(BoolVal(x.Cmp(y) > 0))
	case OpI256Ge:
		e.push(BoolVal(x.Cmp(y) >= 0))
	}
	return nil
}

func (e *Executor) execU256Binary(f *Frame, op OpCode) error {
	b, err := e.pop(f)
	if err != nil {
		return err
	}
	a, err := e.pop(f)
	if err != nil {
		return err
	}
	x, err := a.AsU256()
	if err != nil {
		return err
	}
	y, err := b.AsU256()
	if err != nil {
		return err
	}

	switch op {
	case OpU256Add:
		r, err := addU256(x, y)
		if err != nil {
			return err
		}
		e.push(U256Val(r))
	case OpU256Sub:
		r, err := subU256(x, y)
		if err != nil {
			return err
		}
		e.push(U256Val(r))
	case OpU256Mul:
		r, err := mulU256(x, y)
		if err != nil {
			return err
		}
		e.push(U256Val(r))
	case OpU256Div:
		r, err := divU256(x, y)
		if err != nil {
			return err
		}
		e.push(U256Val(r))
	case OpU256Mod:
		r, err := modU256(x, y)
		if err != nil {
			return err
		}
		e.push(U256Val(r))
	case OpU256Eq:
		e.push(BoolVal(x.Eq(y)))
	case OpU256Neq:
		e.push(BoolVal(!x.Eq(y)))
	case OpU256Lt:
		e.push(BoolVal(x.Lt(y)))
	case OpU256Le:
		e.push(BoolVal(x.Lt(y) || x.Eq(y)))
	case OpU256Gt:
		e.push(BoolVal(x.Gt(y)))
	case OpU256Ge:
		e.push(BoolVal(x.Gt(y) || x.Eq(y)))
	}
	return nil
}

func (e *Executor) execBool(f *Frame, op OpCode) error {
	if op == OpBoolNot {
		v, err := e.pop(f)
		if err != nil {
			return err
		}
		b, err := v.AsBool()
		if err != nil {
			return err
		}
		e.push(BoolVal(!b))
		return nil
	}

	b, err := e.pop(f)
	if err != nil {
		return err
	}
	a, err := e.pop(f)
	if err != nil {
		return err
	}
	x, err := a.AsBool()
	if err != nil {
		return err
	}
	y, err := b.AsBool()
	if err != nil {
		return err
	}

	switch op {
	case OpBoolAnd:
		e.push(BoolVal(x && y))
	case OpBoolOr:
		e.push(BoolVal(x || y))
	case OpBoolEq:
		e.push(BoolVal(x == y))
	}
	return nil
}

func (e *Executor) execByteVec(f *Frame, instr Instr) error {
	switch instr.Op {
	case OpByteVecLength:
		v, err := e.pop(f)
		if err != nil {
			return err
		}
		bv, err := v.AsByteVec()
		if err != nil {
			return err
		}
		e.push(U256Val(uint256.NewInt(uint64(len(bv)))))
		return nil

	case OpByteVecSlice:
		v, err := e.pop(f)
		if err != nil {
			return err
		}
		bv, err := v.AsByteVec()
		if err != nil {
			return err
		}
		start := int(instr.IntOperand >> 32)
		end := int(instr.IntOperand & 0xffffffff)
		if start < 0 || end > len(bv) || start > end {
			return NewExecutionError(ErrInvalidType, errByteVecSlice(start, end, len(bv)))
		}
		e.push(ByteVecVal(bv[start:end]))
		return nil
	}

	b, err := e.pop(f)
	if err != nil {
		return err
	}
	a, err := e.pop(f)
	if err != nil {
		return err
	}
	x, err := a.AsByteVec()
	if err != nil {
		return err
	}
	y, err := b.AsByteVec()
	if err != nil {
		return err
	}

	switch instr.Op {
	case OpByteVecConcat:
		out := make([]byte, 0, len(x)+len(y))
		out = append(out, x...)
		out = append(out, y...)
		e.push(ByteVecVal(out))
	case OpByteVecEq:
		e.push(BoolVal(string(x) == string(y)))
	case OpByteVecNeq:
		e.push(BoolVal(string(x) != string(y)))
	}
	return nil
}

func (e *Executor) execAddress(f *Frame, op OpCode) error {
	b, err := e.pop(f)
	if err != nil {
		return err
	}
	a, err := e.pop(f)
	if err != nil {
		return err
	}
	x, err := a.AsAddress()
	if err != nil {
		return err
	}
	y, err := b.AsAddress()
	if err != nil {
		return err
	}

	switch op {
	case OpAddressEq:
		e.push(BoolVal(x == y))
	case OpAddressNeq:
		e.push(BoolVal(x != y))
	}
	return nil
}
