package signature_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/signature"
)

const pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

func Test_Signing(t *testing.T) {
	value := struct {
		Name string
	}{
		Name: "Bill",
	}

	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("should be able to generate a private key: %s", err)
	}

	v, r, s, err := signature.Sign(value, pk)
	if err != nil {
		t.Fatalf("should be able to sign data: %s", err)
	}

	if err := signature.VerifySignature(value, v, r, s); err != nil {
		t.Fatalf("should be able to verify the signature: %s", err)
	}

	addr, err := signature.FromAddress(value, v, r, s)
	if err != nil {
		t.Fatalf("should be able to recover the from address: %s", err)
	}

	wantAddr := signature.PublicKeyToAddress(pk.PublicKey)
	if addr != wantAddr {
		t.Fatalf("recovered address does not match signer: got %s, exp %s", addr, wantAddr)
	}
}

func Test_HashTxIsDeterministic(t *testing.T) {
	value := struct{ Name string }{Name: "Bill"}

	h1 := signature.HashTx(value)
	h2 := signature.HashTx(value)

	if h1 != h2 {
		t.Fatalf("hashing the same value twice produced different hashes: %s vs %s", h1, h2)
	}
}

func Test_Hash256DiffersFromHashTx(t *testing.T) {
	value := struct{ Name string }{Name: "Bill"}

	if signature.Hash256(value) == signature.HashTx(value) {
		t.Fatalf("Blake2b and Keccak hashes of the same value should not collide")
	}
}

func Test_SignConsistency(t *testing.T) {
	value1 := struct{ Name string }{Name: "Bill"}
	value2 := struct{ Name string }{Name: "Jill"}

	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("should be able to generate a private key: %s", err)
	}

	v1, r1, s1, err := signature.Sign(value1, pk)
	if err != nil {
		t.Fatalf("should be able to sign data: %s", err)
	}
	addr1, err := signature.FromAddress(value1, v1, r1, s1)
	if err != nil {
		t.Fatalf("should be able to recover an address: %s", err)
	}

	v2, r2, s2, err := signature.Sign(value2, pk)
	if err != nil {
		t.Fatalf("should be able to sign data: %s", err)
	}
	addr2, err := signature.FromAddress(value2, v2, r2, s2)
	if err != nil {
		t.Fatalf("should be able to recover an address: %s", err)
	}

	if addr1 != addr2 {
		t.Fatalf("the same key signing different values should recover to the same address: %s vs %s", addr1, addr2)
	}
}
