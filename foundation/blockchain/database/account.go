package database

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
)

// AccountState is the value the Sparse-Merkle-Trie-backed WorldState stores
// at an address: the native-asset and token balances the VM's stateful
// frames load and mutate, plus the contract's persisted field slots for
// addresses that hold deployed contract code rather than a plain account.
type AccountState struct {
	Balance uint64            `json:"balance"`
	Tokens  map[string]uint64 `json:"tokens,omitempty"`
	Nonce   uint64            `json:"nonce"`
	Fields  []byte            `json:"fields,omitempty"` // serialized flattened field slots, contract addresses only.
}

// AccountID represents an account address used to sign transactions and
// receive outputs on the blockflow ledger.
type AccountID string

// ToAccountID converts a hex-encoded string to an account and validates the
// hex-encoded string is formatted correctly.
func ToAccountID(hex string) (AccountID, error) {
	a := AccountID(hex)
	if !a.IsAccountID() {
		return "", errors.New("invalid account format")
	}

	return a, nil
}

// PublicKeyToAccountID converts the public key to an account value.
func PublicKeyToAccountID(pk ecdsa.PublicKey) AccountID {
	return AccountID(crypto.PubkeyToAddress(pk).String())
}

// IsAccountID verifies whether the underlying data represents a valid
// hex-encoded account.
func (a AccountID) IsAccountID() bool {
	const addressLength = 20

	if has0xPrefix(a) {
		a = a[2:]
	}

	return len(a) == 2*addressLength && isHex(a)
}

// GroupIndex deterministically derives the mining group this account
// belongs to, out of groupCount groups. It is used to enforce the
// publicKeyToGroupIndex invariant: an address generated as the i'th group's
// beneficiary must map back to group i under this function.
func (a AccountID) GroupIndex(groupCount uint16) uint16 {
	if groupCount == 0 {
		return 0
	}

	raw := string(a)
	if has0xPrefix(AccountID(raw)) {
		raw = raw[2:]
	}

	var lastByte byte
	if len(raw) > 0 {
		b, err := hexByte(raw[len(raw)-2:])
		if err == nil {
			lastByte = b
		}
	}

	return uint16(lastByte) % groupCount
}

// =============================================================================

func has0xPrefix(a AccountID) bool {
	return len(a) >= 2 && a[0] == '0' && (a[1] == 'x' || a[1] == 'X')
}

func isHex(a AccountID) bool {
	if len(a)%2 != 0 {
		return false
	}

	for _, c := range []byte(a) {
		if !isHexCharacter(c) {
			return false
		}
	}

	return true
}

func isHexCharacter(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func hexByte(s string) (byte, error) {
	var hi, lo byte

	for i, c := range []byte(s) {
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v = c - 'A' + 10
		default:
			return 0, errors.New("invalid hex character")
		}

		if i == 0 {
			hi = v
		} else {
			lo = v
		}
	}

	return hi<<4 | lo, nil
}
