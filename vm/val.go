// Package vm implements the stack-based virtual machine that executes
// compiled method bytecode: a shared operand stack, a stack of call frames,
// gas accounting, and the stateless/stateful execution contexts described
// by the language compiler in the sibling compiler package.
package vm

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
)

// Kind tags the variant held by a Val.
type Kind int

// The five value kinds the VM's operand stack and locals/fields can hold.
const (
	KindBool Kind = iota
	KindI256
	KindU256
	KindByteVec
	KindAddress
)

// String renders a Kind for error messages.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindI256:
		return "I256"
	case KindU256:
		return "U256"
	case KindByteVec:
		return "ByteVec"
	case KindAddress:
		return "Address"
	default:
		return "Unknown"
	}
}

var (
	i256Min = new(big.Int).Lsh(big.NewInt(-1), 255)
	i256Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
)

// Val is the tagged union every VM opcode consumes and produces. Exactly
// one of the typed fields is meaningful, selected by Kind.
type Val struct {
	Kind    Kind
	boolV   bool
	i256V   *big.Int
	u256V   *uint256.Int
	bytesV  []byte
	addrV   database.AccountID
}

// BoolVal constructs a Bool value.
func BoolVal(b bool) Val { return Val{Kind: KindBool, boolV: b} }

// I256Val constructs a signed 256-bit integer value.
func I256Val(v *big.Int) Val { return Val{Kind: KindI256, i256V: new(big.Int).Set(v)} }

// U256Val constructs an unsigned 256-bit integer value.
func U256Val(v *uint256.Int) Val { return Val{Kind: KindU256, u256V: v.Clone()} }

// ByteVecVal constructs a byte vector value.
func ByteVecVal(b []byte) Val {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Val{Kind: KindByteVec, bytesV: cp}
}

// AddressVal constructs an address value.
func AddressVal(a database.AccountID) Val { return Val{Kind: KindAddress, addrV: a} }

// AsBool returns the boolean held by v, or InvalidType if v is not a Bool.
func (v Val) AsBool() (bool, error) {
	if v.Kind != KindBool {
		return false, NewExecutionError(ErrInvalidType, errKindMismatch(KindBool, v.Kind))
	}
	return v.boolV, nil
}

// AsI256 returns the signed integer held by v, or InvalidType otherwise.
func (v Val) AsI256() (*big.Int, error) {
	if v.Kind != KindI256 {
		return nil, NewExecutionError(ErrInvalidType, errKindMismatch(KindI256, v.Kind))
	}
	return v.i256V, nil
}

// AsU256 returns the unsigned integer held by v, or InvalidType otherwise.
func (v Val) AsU256() (*uint256.Int, error) {
	if v.Kind != KindU256 {
		return nil, NewExecutionError(ErrInvalidType, errKindMismatch(KindU256, v.Kind))
	}
	return v.u256V, nil
}

// AsByteVec returns the bytes held by v, or InvalidType otherwise.
func (v Val) AsByteVec() ([]byte, error) {
	if v.Kind != KindByteVec {
		return nil, NewExecutionError(ErrInvalidType, errKindMismatch(KindByteVec, v.Kind))
	}
	return v.bytesV, nil
}

// AsAddress returns the address held by v, or InvalidType otherwise.
func (v Val) AsAddress() (database.AccountID, error) {
	if v.Kind != KindAddress {
		return "", NewExecutionError(ErrInvalidType, errKindMismatch(KindAddress, v.Kind))
	}
	return v.addrV, nil
}

// Equal reports whether v and other hold the same kind and value. Array
// equality is rejected at compile time, so Val itself never
// needs to compare composites.
func (v Val) Equal(other Val) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.boolV == other.boolV
	case KindI256:
		return v.i256V.Cmp(other.i256V) == 0
	case KindU256:
		return v.u256V.Eq(other.u256V)
	case KindByteVec:
		return string(v.bytesV) == string(other.bytesV)
	case KindAddress:
		return v.addrV == other.addrV
	default:
		return false
	}
}

// =============================================================================

// addI256 adds two signed 256-bit integers, reporting ArithmeticError on
// overflow outside [-2^255, 2^255-1].
func addI256(a, b *big.Int) (*big.Int, error) {
	return boundedI256(new(big.Int).Add(a, b))
}

func subI256(a, b *big.Int) (*big.Int, error) {
	return boundedI256(new(big.Int).Sub(a, b))
}

func mulI256(a, b *big.Int) (*big.Int, error) {
	return boundedI256(new(big.Int).Mul(a, b))
}

func divI256(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, NewExecutionError(ErrArithmeticError, errDivByZero)
	}
	return boundedI256(new(big.Int).Quo(a, b))
}

func modI256(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, NewExecutionError(ErrArithmeticError, errDivByZero)
	}
	return boundedI256(new(big.Int).Rem(a, b))
}

func boundedI256(v *big.Int) (*big.Int, error) {
	if v.Cmp(i256Min) < 0 || v.Cmp(i256Max) > 0 {
		return nil, NewExecutionError(ErrArithmeticError, errI256Overflow)
	}
	return v, nil
}

func addU256(a, b *uint256.Int) (*uint256.Int, error) {
	var out uint256.Int
	if _, overflow := out.AddOverflow(a, b); overflow {
		return nil, NewExecutionError(ErrArithmeticError, errU256Overflow)
	}
	return &out, nil
}

func subU256(a, b *uint256.Int) (*uint256.Int, error) {
	var out uint256.Int
	if _, overflow := out.SubOverflow(a, b); overflow {
		return nil, NewExecutionError(ErrArithmeticError, errU256Overflow)
	}
	return &out, nil
}

func mulU256(a, b *uint256.Int) (*uint256.Int, error) {
	var out uint256.Int
	if _, overflow := out.MulOverflow(a, b); overflow {
		return nil, NewExecutionError(ErrArithmeticError, errU256Overflow)
	}
	return &out, nil
}

func divU256(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, NewExecutionError(ErrArithmeticError, errDivByZero)
	}
	var out uint256.Int
	out.Div(a, b)
	return &out, nil
}

func modU256(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, NewExecutionError(ErrArithmeticError, errDivByZero)
	}
	var out uint256.Int
	out.Mod(a, b)
	return &out, nil
}
