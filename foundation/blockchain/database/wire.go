package database

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// This file implements the wire-format primitives:
// length-prefixed sequences using a compact varint length, fixed-width
// integers big-endian, and hashes/signatures as raw bytes. TxOutputPoint's
// fixed Marshal/Unmarshal pair lives in transaction.go; this file adds the
// length-prefixed composite used for the header's blockDeps sequence and
// the full block wire format: headerLen || header || txCount || tx0 || ...
// || tx_n-1.

// putUvarint appends n to buf using the same base-128 varint encoding as
// encoding/binary.PutUvarint, used here as the compact length prefix ahead
// of every variable-length sequence on the wire.
func putUvarint(buf []byte, n uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	written := binary.PutUvarint(tmp[:], n)
	return append(buf, tmp[:written]...)
}

// readUvarint reads a varint-prefixed length from the front of data,
// returning the value and the remaining bytes.
func readUvarint(data []byte) (uint64, []byte, error) {
	n, width := binary.Uvarint(data)
	if width <= 0 {
		return 0, nil, fmt.Errorf("wire: malformed varint length prefix")
	}
	return n, data[width:], nil
}

func hashBytes(hash string) ([]byte, error) {
	raw, err := hex.DecodeString(trimHexPrefix(hash))
	if err != nil {
		return nil, fmt.Errorf("wire: hash %q is not valid hex: %w", hash, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("wire: hash must be 32 bytes, got %d", len(raw))
	}
	return raw, nil
}

// MarshalHeader renders a BlockHeader in the network's fixed+length-
// prefixed wire layout: chainFrom/chainTo (2B each), number (8B),
// prevBlockHash (32B), a varint-prefixed sequence of blockDeps (32B each),
// txMerkleRoot (32B), timestamp (8B), beneficiary (varint-prefixed raw
// bytes), target (2B), nonce (8B); every fixed-width integer big-endian.
func (h BlockHeader) MarshalHeader() ([]byte, error) {
	prev, err := hashBytes(h.PrevBlockHash)
	if err != nil {
		return nil, err
	}
	root, err := hashBytes(h.TxMerkleRoot)
	if err != nil {
		return nil, err
	}

	beneficiary, err := hex.DecodeString(trimHexPrefix(string(h.BeneficiaryID)))
	if err != nil {
		return nil, fmt.Errorf("wire: beneficiary is not valid hex: %w", err)
	}

	buf := make([]byte, 0, 2+2+8+32+8+len(h.BlockDeps)*32+32+8+len(beneficiary)+2+8)
	buf = binary.BigEndian.AppendUint16(buf, h.ChainFrom)
	buf = binary.BigEndian.AppendUint16(buf, h.ChainTo)
	buf = binary.BigEndian.AppendUint64(buf, h.Number)
	buf = append(buf, prev...)

	buf = putUvarint(buf, uint64(len(h.BlockDeps)))
	for _, dep := range h.BlockDeps {
		depBytes, err := hashBytes(dep)
		if err != nil {
			return nil, err
		}
		buf = append(buf, depBytes...)
	}

	buf = append(buf, root...)
	buf = binary.BigEndian.AppendUint64(buf, h.TimeStamp)
	buf = putUvarint(buf, uint64(len(beneficiary)))
	buf = append(buf, beneficiary...)
	buf = binary.BigEndian.AppendUint16(buf, h.Target)
	buf = binary.BigEndian.AppendUint64(buf, h.Nonce)

	return buf, nil
}

// UnmarshalHeader parses the layout produced by MarshalHeader.
func UnmarshalHeader(data []byte) (BlockHeader, []byte, error) {
	if len(data) < 2+2+8+32 {
		return BlockHeader{}, nil, fmt.Errorf("wire: header too short")
	}

	var h BlockHeader
	h.ChainFrom = binary.BigEndian.Uint16(data[0:2])
	h.ChainTo = binary.BigEndian.Uint16(data[2:4])
	h.Number = binary.BigEndian.Uint64(data[4:12])
	h.PrevBlockHash = "0x" + hex.EncodeToString(data[12:44])
	rest := data[44:]

	depCount, rest, err := readUvarint(rest)
	if err != nil {
		return BlockHeader{}, nil, err
	}

	h.BlockDeps = make([]string, depCount)
	for i := range h.BlockDeps {
		if len(rest) < 32 {
			return BlockHeader{}, nil, fmt.Errorf("wire: truncated blockDeps entry %d", i)
		}
		h.BlockDeps[i] = "0x" + hex.EncodeToString(rest[:32])
		rest = rest[32:]
	}

	if len(rest) < 32+8 {
		return BlockHeader{}, nil, fmt.Errorf("wire: header truncated after blockDeps")
	}
	h.TxMerkleRoot = "0x" + hex.EncodeToString(rest[:32])
	rest = rest[32:]
	h.TimeStamp = binary.BigEndian.Uint64(rest[:8])
	rest = rest[8:]

	benLen, rest, err := readUvarint(rest)
	if err != nil {
		return BlockHeader{}, nil, err
	}
	if uint64(len(rest)) < benLen+2+8 {
		return BlockHeader{}, nil, fmt.Errorf("wire: header truncated after beneficiary")
	}
	h.BeneficiaryID = AccountID("0x" + hex.EncodeToString(rest[:benLen]))
	rest = rest[benLen:]

	h.Target = binary.BigEndian.Uint16(rest[0:2])
	h.Nonce = binary.BigEndian.Uint64(rest[2:10])
	rest = rest[10:]

	return h, rest, nil
}

// MarshalBinary renders the full block wire format: headerLen || header ||
// txCount || tx0 || ... || tx_n-1, with headerLen and txCount as varints and
// each tx encoded as its JSON-marshaled unsigned body followed by its
// signatures, length-prefixed so UnmarshalBinary can find
// the boundary between consecutive transactions without a schema.
func (b Block) MarshalBinary() ([]byte, error) {
	header, err := b.Header.MarshalHeader()
	if err != nil {
		return nil, err
	}

	txs := b.Trans.Values()

	buf := putUvarint(nil, uint64(len(header)))
	buf = append(buf, header...)
	buf = putUvarint(buf, uint64(len(txs)))

	for _, tx := range txs {
		encoded, err := marshalBlockTx(tx)
		if err != nil {
			return nil, err
		}
		buf = putUvarint(buf, uint64(len(encoded)))
		buf = append(buf, encoded...)
	}

	return buf, nil
}

// UnmarshalBinary parses the layout produced by MarshalBinary back into a
// Block with a reconstructed merkle tree over its transactions.
func UnmarshalBinary(data []byte) (Block, error) {
	headerLen, rest, err := readUvarint(data)
	if err != nil {
		return Block{}, err
	}
	if uint64(len(rest)) < headerLen {
		return Block{}, fmt.Errorf("wire: truncated header")
	}
	header, _, err := UnmarshalHeader(rest[:headerLen])
	if err != nil {
		return Block{}, err
	}
	rest = rest[headerLen:]

	txCount, rest, err := readUvarint(rest)
	if err != nil {
		return Block{}, err
	}

	txs := make([]BlockTx, txCount)
	for i := range txs {
		txLen, next, err := readUvarint(rest)
		if err != nil {
			return Block{}, err
		}
		if uint64(len(next)) < txLen {
			return Block{}, fmt.Errorf("wire: truncated transaction %d", i)
		}

		tx, err := unmarshalBlockTx(next[:txLen])
		if err != nil {
			return Block{}, err
		}
		txs[i] = tx
		rest = next[txLen:]
	}

	return ToBlock(BlockFS{Hash: "", Block: header, Trans: txs})
}

// marshalBlockTx and unmarshalBlockTx encode a single transaction's unsigned
// body and attached signatures as one JSON document, keeping the unsigned
// body and its signatures in a single wire unit without hand-rolling a
// binary layout for the variable-shaped input/output/signature lists.
func marshalBlockTx(tx BlockTx) ([]byte, error) {
	return json.Marshal(tx)
}

func unmarshalBlockTx(data []byte) (BlockTx, error) {
	var tx BlockTx
	if err := json.Unmarshal(data, &tx); err != nil {
		return BlockTx{}, err
	}
	return tx, nil
}
