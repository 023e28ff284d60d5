package compiler_test

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/blake2b"

	"github.com/blockflow-labs/blockflow-node/compiler"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
	"github.com/blockflow-labs/blockflow-node/vm"
)

// seedContractFields writes a contract's initial field slots into a fresh
// world state, the way a deployment transaction would.
func seedContractFields(t *testing.T, addr database.AccountID, fields []vm.Val) *database.WorldState {
	t.Helper()

	encoded, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("encoding fields: %s", err)
	}

	ws := database.NewWorldState(database.NewMemoryKVStore())
	ws, err = ws.Put(addr, database.AccountState{Fields: encoded})
	if err != nil {
		t.Fatalf("seeding world state: %s", err)
	}

	return ws
}

func Test_CompiledContractArithmetic(t *testing.T) {
	src := `
TxContract Foo(x: U256) {
	pub fn add(a: U256) -> U256 {
		return square(x) + square(a)
	}
	fn square(n) -> U256 {
		return n * n
	}
}
`
	artifact, err := compiler.Compile(src)
	if err != nil {
		t.Fatalf("unexpected compile error: %s", err)
	}

	addr := database.AccountID("0xfoo")
	ws := seedContractFields(t, addr, []vm.Val{vm.U256Val(uint256.NewInt(1))})

	exec := vm.NewExecutor(vm.Context{WorldState: ws}, vm.NewGasMeter(100_000), nil, nil)
	out, err := exec.ExecuteContract(*artifact.Contract, addr, artifact.Funcs["add"].Index, []vm.Val{vm.U256Val(uint256.NewInt(2))})
	if err != nil {
		t.Fatalf("unexpected execution error: %s", err)
	}

	got, err := out[0].AsU256()
	if err != nil {
		t.Fatalf("expected a U256 result: %s", err)
	}
	if !got.Eq(uint256.NewInt(5)) {
		t.Fatalf("square(1) + square(2) = %s, want 5", got)
	}
}

func Test_CompiledFibonacciRecursionAndGas(t *testing.T) {
	src := `
TxContract Fib() {
	pub fn fib(n: U256) -> U256 {
		if n < 2 {
			return n
		}
		return fib(n - 1) + fib(n - 2)
	}
}
`
	artifact, err := compiler.Compile(src)
	if err != nil {
		t.Fatalf("unexpected compile error: %s", err)
	}

	run := func() (*uint256.Int, uint64) {
		exec := vm.NewExecutor(vm.Context{}, vm.NewGasMeter(1_000_000), nil, nil)
		out, err := exec.ExecuteScript(artifact.Script, 0, []vm.Val{vm.U256Val(uint256.NewInt(10))})
		if err != nil {
			t.Fatalf("unexpected execution error: %s", err)
		}
		got, err := out[0].AsU256()
		if err != nil {
			t.Fatalf("expected a U256 result: %s", err)
		}
		return got, exec.GasUsed()
	}

	got1, gas1 := run()
	if !got1.Eq(uint256.NewInt(55)) {
		t.Fatalf("fib(10) = %s, want 55", got1)
	}

	got2, gas2 := run()
	if !got2.Eq(got1) || gas1 != gas2 {
		t.Fatalf("repeated execution diverged: value %s/%s, gas %d/%d", got1, got2, gas1, gas2)
	}
}

func Test_CompiledAssetScriptVerifiesSignature(t *testing.T) {
	src := `
AssetScript P2PKH {
	pub fn unlock(msgHash: ByteVec, pubKey: ByteVec, sig: ByteVec, pubKeyHash: ByteVec) -> Bool {
		if blake2b(pubKey) != pubKeyHash {
			return false
		}
		return verifySignature(msgHash, pubKey, sig)
	}
}
`
	artifact, err := compiler.Compile(src)
	if err != nil {
		t.Fatalf("unexpected compile error: %s", err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %s", err)
	}

	msgHash := crypto.Keccak256([]byte("spend output 0"))
	sig, err := crypto.Sign(msgHash, key)
	if err != nil {
		t.Fatalf("signing: %s", err)
	}
	pubKey := crypto.FromECDSAPub(&key.PublicKey)
	pubKeyHash := blake2b.Sum256(pubKey)

	exec := vm.NewExecutor(vm.Context{}, vm.NewGasMeter(100_000), nil, nil)
	out, err := exec.ExecuteScript(artifact.Script, 0, []vm.Val{
		vm.ByteVecVal(msgHash),
		vm.ByteVecVal(pubKey),
		vm.ByteVecVal(sig),
		vm.ByteVecVal(pubKeyHash[:]),
	})
	if err != nil {
		t.Fatalf("unexpected execution error: %s", err)
	}

	ok, err := out[0].AsBool()
	if err != nil {
		t.Fatalf("expected a Bool result: %s", err)
	}
	if !ok {
		t.Fatal("expected a valid signature to verify")
	}

	// A hash over the wrong public key must fail the guard.
	out, err = exec.ExecuteScript(artifact.Script, 0, []vm.Val{
		vm.ByteVecVal(msgHash),
		vm.ByteVecVal(pubKey),
		vm.ByteVecVal(sig),
		vm.ByteVecVal(make([]byte, 32)),
	})
	if err != nil {
		t.Fatalf("unexpected execution error: %s", err)
	}
	if ok, _ := out[0].AsBool(); ok {
		t.Fatal("expected a mismatched public key hash to fail")
	}
}

func Test_CompiledArrayCopyAndIndexing(t *testing.T) {
	src := `
TxScript ArrayOps {
	pub fn main() -> U256 {
		let mut a = [10, 20, 30]
		let b = [7; 2]
		a[1] = b[0]
		let mut c = [0; 3]
		c = a
		return c[0] + c[1] + c[2]
	}
}
`
	artifact, err := compiler.Compile(src)
	if err != nil {
		t.Fatalf("unexpected compile error: %s", err)
	}

	exec := vm.NewExecutor(vm.Context{}, vm.NewGasMeter(100_000), nil, nil)
	out, err := exec.ExecuteScript(artifact.Script, 0, nil)
	if err != nil {
		t.Fatalf("unexpected execution error: %s", err)
	}

	got, err := out[0].AsU256()
	if err != nil {
		t.Fatalf("expected a U256 result: %s", err)
	}
	if !got.Eq(uint256.NewInt(47)) {
		t.Fatalf("10 + 7 + 30 = %s, want 47", got)
	}
}

func Test_CompiledWhileLoop(t *testing.T) {
	src := `
TxScript Sum {
	pub fn main(n: U256) -> U256 {
		let mut total = 0
		let mut i = 1
		while i <= n {
			total = total + i
			i = i + 1
		}
		return total
	}
}
`
	artifact, err := compiler.Compile(src)
	if err != nil {
		t.Fatalf("unexpected compile error: %s", err)
	}

	exec := vm.NewExecutor(vm.Context{}, vm.NewGasMeter(100_000), nil, nil)
	out, err := exec.ExecuteScript(artifact.Script, 0, []vm.Val{vm.U256Val(uint256.NewInt(10))})
	if err != nil {
		t.Fatalf("unexpected execution error: %s", err)
	}

	got, err := out[0].AsU256()
	if err != nil {
		t.Fatalf("expected a U256 result: %s", err)
	}
	if !got.Eq(uint256.NewInt(55)) {
		t.Fatalf("sum(1..10) = %s, want 55", got)
	}
}

func Test_CompiledCrossContractCall(t *testing.T) {
	src := `
TxContract Oracle(price: U256) {
	pub fn get() -> U256 {
		return price
	}
}

TxContract Consumer(oracle: Oracle) {
	pub fn doubled() -> U256 {
		return oracle.get() * 2
	}
}
`
	artifacts, err := compiler.CompileAll(src)
	if err != nil {
		t.Fatalf("unexpected compile error: %s", err)
	}

	oracleAddr := database.AccountID("0xoracle")
	consumerAddr := database.AccountID("0xconsumer")

	registry := vm.NewContractRegistry()
	registry.Register(oracleAddr, *artifacts[0].Contract)

	ws := seedContractFields(t, oracleAddr, []vm.Val{vm.U256Val(uint256.NewInt(21))})
	ws, err = ws.Put(consumerAddr, database.AccountState{Fields: mustEncodeFields(t, []vm.Val{vm.AddressVal(oracleAddr)})})
	if err != nil {
		t.Fatalf("seeding consumer state: %s", err)
	}

	exec := vm.NewExecutor(vm.Context{WorldState: ws, Loader: registry}, vm.NewGasMeter(100_000), nil, nil)
	out, err := exec.ExecuteContract(*artifacts[1].Contract, consumerAddr, 0, nil)
	if err != nil {
		t.Fatalf("unexpected execution error: %s", err)
	}

	got, err := out[0].AsU256()
	if err != nil {
		t.Fatalf("expected a U256 result: %s", err)
	}
	if !got.Eq(uint256.NewInt(42)) {
		t.Fatalf("oracle.get() * 2 = %s, want 42", got)
	}
}

func mustEncodeFields(t *testing.T, fields []vm.Val) []byte {
	t.Helper()

	encoded, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("encoding fields: %s", err)
	}
	return encoded
}
