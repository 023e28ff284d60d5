// Package signature provides helper functions for the blockflow node's
// cryptographic needs: transaction signing/verification (secp256k1 over
// Keccak-256, via go-ethereum) and the Blake2b-256 hashing used for block
// headers and trie nodes.
package signature

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

// ZeroHash represents a hash code of all zeros, used as the parent hash of
// the first block on any chain and as a dependency placeholder before a
// chain has produced a block.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// flowID is an arbitrary constant folded into every signature so it is
// unambiguous that a signature was produced for this network. Ethereum and
// Bitcoin do the same with the value 27.
const flowID = 29

// =============================================================================

// HashTx returns the Keccak-256 hash of a value as a hex string. Transaction
// and account-derived hashes use Keccak-256 to stay compatible with the
// secp256k1/Keccak signature scheme below.
func HashTx(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	hash := crypto.Keccak256(data)
	return hexutil.Encode(hash)
}

// Hash256 returns the Blake2b-256 hash of a value as a hex string. Block
// headers and Sparse-Merkle-Trie nodes use Blake2b so the content-addressed
// world-state store is not tied to the signature scheme's hash function.
func Hash256(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	hash := blake2b.Sum256(data)
	return hexutil.Encode(hash[:])
}

// Sign uses the specified private key to sign the data.
func Sign(value any, privateKey *ecdsa.PrivateKey) (v, r, s *big.Int, err error) {
	data, err := stamp(value)
	if err != nil {
		return nil, nil, nil, err
	}

	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return nil, nil, nil, err
	}

	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return nil, nil, nil, err
	}

	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return nil, nil, nil, errors.New("invalid signature")
	}

	v, r, s = toSignatureValues(sig)

	return v, r, s, nil
}

// VerifySignature verifies the signature conforms to our standards.
func VerifySignature(value any, v, r, s *big.Int) error {
	uintV := v.Uint64() - flowID
	if uintV != 0 && uintV != 1 {
		return errors.New("invalid recovery id")
	}

	if !crypto.ValidateSignatureValues(byte(uintV), r, s, false) {
		return errors.New("invalid signature values")
	}

	return nil
}

// FromAddress extracts the address for the account that signed the data.
func FromAddress(value any, v, r, s *big.Int) (string, error) {
	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	sig := ToSignatureBytes(v, r, s)

	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return "", err
	}

	return crypto.PubkeyToAddress(*publicKey).String(), nil
}

// PublicKeyToAddress converts a public key directly into its address form.
func PublicKeyToAddress(pk ecdsa.PublicKey) string {
	return crypto.PubkeyToAddress(pk).String()
}

// SignatureString returns the signature as a hex string, flowID included.
func SignatureString(v, r, s *big.Int) string {
	return hexutil.Encode(ToSignatureBytesWithFlowID(v, r, s))
}

// ToVRSFromHexSignature converts a hex representation of the signature into
// its R, S and V parts.
func ToVRSFromHexSignature(sigStr string) (v, r, s *big.Int, err error) {
	sig, err := hex.DecodeString(sigStr[2:])
	if err != nil {
		return nil, nil, nil, err
	}

	r = new(big.Int).SetBytes(sig[:32])
	s = new(big.Int).SetBytes(sig[32:64])
	v = new(big.Int).SetBytes([]byte{sig[64]})

	return v, r, s, nil
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this data with the
// network's domain separator embedded into the final hash.
func stamp(value any) ([]byte, error) {
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	txHash := crypto.Keccak256(v)

	domain := []byte("\x19BlockFlow Signed Message:\n32")

	data := crypto.Keccak256(domain, txHash)

	return data, nil
}

// toSignatureValues converts the signature into the r, s, v values.
func toSignatureValues(sig []byte) (v, r, s *big.Int) {
	r = new(big.Int).SetBytes(sig[:32])
	s = new(big.Int).SetBytes(sig[32:64])
	v = new(big.Int).SetBytes([]byte{sig[64] + flowID})

	return v, r, s
}

// ToSignatureBytes converts the r, s, v values into a slice of bytes with
// the domain id removed.
func ToSignatureBytes(v, r, s *big.Int) []byte {
	sig := make([]byte, crypto.SignatureLength)

	rBytes := r.Bytes()
	if len(rBytes) == 31 {
		copy(sig[1:], rBytes)
	} else {
		copy(sig, rBytes)
	}

	sBytes := s.Bytes()
	if len(sBytes) == 31 {
		copy(sig[33:], sBytes)
	} else {
		copy(sig[32:], sBytes)
	}

	sig[64] = byte(v.Uint64() - flowID)

	return sig
}

// ToSignatureBytesWithFlowID converts the r, s, v values into a slice of
// bytes keeping the domain id.
func ToSignatureBytesWithFlowID(v, r, s *big.Int) []byte {
	sig := ToSignatureBytes(v, r, s)
	sig[64] = byte(v.Uint64())

	return sig
}
