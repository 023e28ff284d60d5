package vm

import (
	"encoding/json"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
)

// valJSON is Val's wire shape: Val's payload fields are unexported so opcodes
// can't forge a Kind/payload mismatch, but a contract's persisted fields
// need a concrete encoding to live inside database.AccountState.Fields.
type valJSON struct {
	Kind  Kind              `json:"kind"`
	Bool  bool              `json:"bool,omitempty"`
	I256  string            `json:"i256,omitempty"`
	U256  string            `json:"u256,omitempty"`
	Bytes []byte            `json:"bytes,omitempty"`
	Addr  database.AccountID `json:"addr,omitempty"`
}

// MarshalJSON implements json.Marshaler for Val.
func (v Val) MarshalJSON() ([]byte, error) {
	out := valJSON{Kind: v.Kind}
	switch v.Kind {
	case KindBool:
		out.Bool = v.boolV
	case KindI256:
		out.I256 = v.i256V.String()
	case KindU256:
		out.U256 = v.u256V.Dec()
	case KindByteVec:
		out.Bytes = v.bytesV
	case KindAddress:
		out.Addr = v.addrV
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler for Val.
func (v *Val) UnmarshalJSON(data []byte) error {
	var in valJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	switch in.Kind {
	case KindBool:
		*v = BoolVal(in.Bool)
	case KindI256:
		n, ok := new(big.Int).SetString(in.I256, 10)
		if !ok {
			n = big.NewInt(0)
		}
		*v = I256Val(n)
	case KindU256:
		n, err := uint256.FromDecimal(in.U256)
		if err != nil {
			n = uint256.NewInt(0)
		}
		*v = U256Val(n)
	case KindByteVec:
		*v = ByteVecVal(in.Bytes)
	case KindAddress:
		*v = AddressVal(in.Addr)
	default:
		*v = BoolVal(false)
	}

	return nil
}

// zeroVal returns a contract field's default value before it has ever been
// stored: false, 0, empty bytes, or the empty address, per kind.
func zeroVal(k Kind) Val {
	switch k {
	case KindBool:
		return BoolVal(false)
	case KindI256:
		return I256Val(big.NewInt(0))
	case KindU256:
		return U256Val(uint256.NewInt(0))
	case KindByteVec:
		return ByteVecVal(nil)
	case KindAddress:
		return AddressVal("")
	default:
		return BoolVal(false)
	}
}

// encodeFields serializes a contract's flattened field slots for storage
// in database.AccountState.Fields.
func encodeFields(vals []Val) ([]byte, error) {
	return json.Marshal(vals)
}

// decodeFields parses a contract's persisted field slots, defaulting every
// slot to its type's zero value when data is empty (a contract's first
// write, before any field has ever been stored).
func decodeFields(data []byte, types []Kind) ([]Val, error) {
	if len(data) == 0 {
		vals := make([]Val, len(types))
		for i, k := range types {
			vals[i] = zeroVal(k)
		}
		return vals, nil
	}

	var vals []Val
	if err := json.Unmarshal(data, &vals); err != nil {
		return nil, err
	}
	return vals, nil
}
