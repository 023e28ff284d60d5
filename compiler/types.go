package compiler

import (
	"fmt"

	"github.com/blockflow-labs/blockflow-node/vm"
)

// Type is the compiler's resolved view of a TypeExpr: a primitive, a
// fixed-size array, or a reference to a contract defined in the same
// compilation pass.
type Type struct {
	Kind     TypeKind
	Prim     vm.Kind // Meaningful for Primitive.
	Elem     *Type   // Meaningful for Array.
	Size     int     // Meaningful for Array.
	Contract string  // Meaningful for ContractRef: the contract's type id.
}

// TypeKind splits the three structural families a Type can be.
type TypeKind int

// Primitive covers the five VM value kinds, Array is a fixed-size array
// over any element type, and ContractRef types a handle to a deployed
// contract (an address at runtime).
const (
	Primitive TypeKind = iota
	Array
	ContractRef
)

// String renders the type the way source code spells it.
func (t Type) String() string {
	switch t.Kind {
	case Primitive:
		return t.Prim.String()
	case Array:
		return fmt.Sprintf("[%s; %d]", t.Elem, t.Size)
	case ContractRef:
		return t.Contract
	}
	return "unknown"
}

// Equal reports structural type equality.
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case Primitive:
		return t.Prim == other.Prim
	case Array:
		return t.Size == other.Size && t.Elem.Equal(*other.Elem)
	case ContractRef:
		return t.Contract == other.Contract
	}
	return false
}

// FlattenedLength is the number of VM slots a value of this type occupies:
// 1 for scalars and contract handles, the product of dimensions for
// arrays. Every argsLength/localsLength/returnLength in emitted bytecode
// counts flattened slots.
func (t Type) FlattenedLength() int {
	if t.Kind != Array {
		return 1
	}
	return t.Size * t.Elem.FlattenedLength()
}

// FlattenedKinds expands this type to the VM kind of each flattened slot
// in order. A contract handle occupies one Address slot.
func (t Type) FlattenedKinds() []vm.Kind {
	switch t.Kind {
	case Primitive:
		return []vm.Kind{t.Prim}
	case ContractRef:
		return []vm.Kind{vm.KindAddress}
	}

	elem := t.Elem.FlattenedKinds()
	kinds := make([]vm.Kind, 0, t.Size*len(elem))
	for i := 0; i < t.Size; i++ {
		kinds = append(kinds, elem...)
	}
	return kinds
}

func boolType() Type    { return Type{Kind: Primitive, Prim: vm.KindBool} }
func i256Type() Type    { return Type{Kind: Primitive, Prim: vm.KindI256} }
func u256Type() Type    { return Type{Kind: Primitive, Prim: vm.KindU256} }
func byteVecType() Type { return Type{Kind: Primitive, Prim: vm.KindByteVec} }
func addressType() Type { return Type{Kind: Primitive, Prim: vm.KindAddress} }

// resolveType turns a syntactic TypeExpr into a resolved Type, using
// contracts to recognize contract-typed names.
func resolveType(te TypeExpr, contracts map[string]bool) (Type, error) {
	if te.IsArray {
		elem, err := resolveType(*te.Elem, contracts)
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: Array, Elem: &elem, Size: te.Size}, nil
	}

	switch te.Name {
	case "Bool":
		return boolType(), nil
	case "I256":
		return i256Type(), nil
	case "U256":
		return u256Type(), nil
	case "ByteVec":
		return byteVecType(), nil
	case "Address":
		return addressType(), nil
	}

	if contracts[te.Name] {
		return Type{Kind: ContractRef, Contract: te.Name}, nil
	}

	return Type{}, errorf(TypeCheck, te.Pos, "unknown type %q", te.Name)
}
