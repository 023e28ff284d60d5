package database

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/signature"
)

// TxOutputPoint references a single output of a previous transaction being
// spent as an input. ShortKey mirrors the first four bytes of the
// referenced transaction hash, so storage layers can prefix-scan on it
// without decoding the full hash.
type TxOutputPoint struct {
	ShortKey    [4]byte `json:"short_key"`
	TxHash      string  `json:"tx_hash"`
	OutputIndex uint32  `json:"output_index"`
}

// NewTxOutputPoint constructs a TxOutputPoint, deriving ShortKey from the
// referenced transaction hash.
func NewTxOutputPoint(txHash string, outputIndex uint32) (TxOutputPoint, error) {
	raw, err := hex.DecodeString(trimHexPrefix(txHash))
	if err != nil {
		return TxOutputPoint{}, fmt.Errorf("tx hash is not valid hex: %w", err)
	}
	if len(raw) < 4 {
		return TxOutputPoint{}, errors.New("tx hash is too short to derive a short key")
	}

	var shortKey [4]byte
	copy(shortKey[:], raw[:4])

	return TxOutputPoint{
		ShortKey:    shortKey,
		TxHash:      txHash,
		OutputIndex: outputIndex,
	}, nil
}

// Marshal renders the output point using the network's fixed wire layout:
// shortKey (4 bytes), txHash (32 bytes), outputIndex (4 bytes, big-endian).
func (p TxOutputPoint) Marshal() ([]byte, error) {
	raw, err := hex.DecodeString(trimHexPrefix(p.TxHash))
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("tx hash must be 32 bytes, got %d", len(raw))
	}

	buf := make([]byte, 0, 4+32+4)
	buf = append(buf, p.ShortKey[:]...)
	buf = append(buf, raw...)
	buf = binary.BigEndian.AppendUint32(buf, p.OutputIndex)

	return buf, nil
}

// UnmarshalTxOutputPoint parses the fixed wire layout produced by Marshal.
func UnmarshalTxOutputPoint(data []byte) (TxOutputPoint, error) {
	if len(data) != 40 {
		return TxOutputPoint{}, fmt.Errorf("tx output point must be 40 bytes, got %d", len(data))
	}

	var shortKey [4]byte
	copy(shortKey[:], data[:4])

	return TxOutputPoint{
		ShortKey:    shortKey,
		TxHash:      "0x" + hex.EncodeToString(data[4:36]),
		OutputIndex: binary.BigEndian.Uint32(data[36:40]),
	}, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// =============================================================================

// TxOutput represents a single spendable output created by a transaction:
// an amount of the native asset, an optional set of token balances, and the
// address allowed to spend it.
type TxOutput struct {
	Amount  uint64            `json:"amount"`
	Address AccountID         `json:"address"`
	Tokens  map[string]uint64 `json:"tokens,omitempty"`
}

// =============================================================================

// UnsignedTx is the transactional information between parties before any
// signatures are attached: the inputs it spends and the outputs it
// produces. A coinbase transaction has no inputs.
type UnsignedTx struct {
	ChainFrom uint16          `json:"chain_from"`
	ChainTo   uint16          `json:"chain_to"`
	Inputs    []TxOutputPoint `json:"inputs"`
	Outputs   []TxOutput      `json:"outputs"`
	GasPrice  uint64          `json:"gas_price"`
	GasUnits  uint64          `json:"gas_units"`
}

// NewUnsignedTx constructs a transaction spending the given inputs and
// creating the given outputs, validating every output address.
func NewUnsignedTx(chainFrom, chainTo uint16, inputs []TxOutputPoint, outputs []TxOutput, gasPrice, gasUnits uint64) (UnsignedTx, error) {
	for _, out := range outputs {
		if !out.Address.IsAccountID() {
			return UnsignedTx{}, fmt.Errorf("output address %q is not properly formatted", out.Address)
		}
	}

	return UnsignedTx{
		ChainFrom: chainFrom,
		ChainTo:   chainTo,
		Inputs:    inputs,
		Outputs:   outputs,
		GasPrice:  gasPrice,
		GasUnits:  gasUnits,
	}, nil
}

// IsCoinbase reports whether this transaction has no inputs, the signature
// of a reward transaction minted by a miner.
func (tx UnsignedTx) IsCoinbase() bool {
	return len(tx.Inputs) == 0
}

// Hash returns the hex-encoded Keccak-256 hash of the unsigned transaction.
// Signed and block-included variants reuse this value as their transaction
// id; signatures are never part of the hashed data.
func (tx UnsignedTx) Hash() string {
	return signature.HashTx(tx)
}

// Sign uses the specified private key to produce one signature over the
// transaction. Multi-input transactions accumulate one SignedTx.Signatures
// entry per distinct signing key.
func (tx UnsignedTx) Sign(privateKey *ecdsa.PrivateKey) (SignedTx, error) {
	v, r, s, err := signature.Sign(tx, privateKey)
	if err != nil {
		return SignedTx{}, err
	}

	return SignedTx{
		UnsignedTx: tx,
		Signatures: []TxSignature{{V: v, R: r, S: s}},
	}, nil
}

// =============================================================================

// TxSignature is one ECDSA signature attached to a SignedTx, in [R|S|V]
// form.
type TxSignature struct {
	V *big.Int `json:"v"`
	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
}

// SignedTx is a signed version of the transaction. This is how wallets
// submit transactions for inclusion into the ledger.
type SignedTx struct {
	UnsignedTx
	Signatures []TxSignature `json:"signatures"`
}

// Validate verifies every attached signature conforms to the network's
// standards. A coinbase transaction requires no signatures.
func (tx SignedTx) Validate() error {
	if tx.IsCoinbase() {
		return nil
	}

	if len(tx.Signatures) == 0 {
		return errors.New("transaction has no signatures")
	}

	for _, sig := range tx.Signatures {
		if err := signature.VerifySignature(tx.UnsignedTx, sig.V, sig.R, sig.S); err != nil {
			return err
		}
	}

	return nil
}

// FromAccounts extracts the account ids that signed the transaction, one
// per attached signature.
func (tx SignedTx) FromAccounts() ([]AccountID, error) {
	froms := make([]AccountID, 0, len(tx.Signatures))

	for _, sig := range tx.Signatures {
		address, err := signature.FromAddress(tx.UnsignedTx, sig.V, sig.R, sig.S)
		if err != nil {
			return nil, err
		}
		froms = append(froms, AccountID(address))
	}

	return froms, nil
}

// String implements fmt.Stringer for logging.
func (tx SignedTx) String() string {
	return fmt.Sprintf("%s:%d->%d", tx.Hash(), tx.ChainFrom, tx.ChainTo)
}

// =============================================================================

// BlockTx represents the transaction as it is recorded inside a block,
// including the time it was received by this node.
type BlockTx struct {
	SignedTx
	TimeStamp uint64 `json:"timestamp"`
}

// NewBlockTx constructs a new block transaction stamped with the current
// time.
func NewBlockTx(signedTx SignedTx) BlockTx {
	return BlockTx{
		SignedTx:  signedTx,
		TimeStamp: uint64(time.Now().UTC().Unix()),
	}
}

// Hash implements the merkle.Hashable interface for providing a hash of a
// block transaction.
func (tx BlockTx) Hash() ([]byte, error) {
	return hex.DecodeString(trimHexPrefix(tx.UnsignedTx.Hash()))
}

// Equals implements the merkle.Hashable interface. Two block transactions
// are the same if they carry the same unsigned transaction hash.
func (tx BlockTx) Equals(otherTx BlockTx) bool {
	return bytes.Equal([]byte(tx.UnsignedTx.Hash()), []byte(otherTx.UnsignedTx.Hash()))
}
