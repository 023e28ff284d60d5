package compiler_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/blockflow-labs/blockflow-node/compiler"
	"github.com/blockflow-labs/blockflow-node/vm"
)

const counterSrc = `
TxContract Counter(count: U256) {
	event Incremented(by: U256)

	pub fn increment(by: U256) -> U256 {
		emit Incremented(by)
		count = count + by
		return count
	}

	pub fn get() -> U256 {
		return count
	}
}
`

func Test_CompileBuildsFunctionAndEventTables(t *testing.T) {
	artifact, err := compiler.Compile(counterSrc)
	if err != nil {
		t.Fatalf("unexpected compile error: %s", err)
	}

	if artifact.Kind != compiler.TxContract {
		t.Fatalf("expected a TxContract artifact, got %s", artifact.Kind)
	}
	if artifact.Contract == nil {
		t.Fatal("expected a TxContract to carry a vm.Contract")
	}
	if len(artifact.Contract.FieldTypes) != 1 || artifact.Contract.FieldTypes[0] != vm.KindU256 {
		t.Fatalf("expected field schema [U256], got %v", artifact.Contract.FieldTypes)
	}

	inc, ok := artifact.Funcs["increment"]
	if !ok {
		t.Fatal("expected function table entry for increment")
	}
	if inc.Index != 0 || !inc.IsPublic || inc.ArgsLength != 1 || inc.ReturnLength != 1 {
		t.Fatalf("unexpected increment entry: %+v", inc)
	}

	get, ok := artifact.Funcs["get"]
	if !ok {
		t.Fatal("expected function table entry for get")
	}
	if get.Index != 1 {
		t.Fatalf("expected get at method index 1, got %d", get.Index)
	}

	ev, ok := artifact.Events["Incremented"]
	if !ok {
		t.Fatal("expected event table entry for Incremented")
	}
	if len(ev.FieldTypes) != 1 {
		t.Fatalf("expected 1 event field type, got %d", len(ev.FieldTypes))
	}
}

// Compiling the same source twice must yield byte-identical bytecode.
func Test_CompileIsDeterministic(t *testing.T) {
	first, err := compiler.Compile(counterSrc)
	if err != nil {
		t.Fatalf("unexpected compile error: %s", err)
	}

	second, err := compiler.Compile(counterSrc)
	if err != nil {
		t.Fatalf("unexpected compile error: %s", err)
	}

	if diff := cmp.Diff(first.Script, second.Script); diff != "" {
		t.Fatalf("two compiles of the same source diverged:\n%s", diff)
	}
}

func Test_EmitGeneratesNoInstructions(t *testing.T) {
	withEmit, err := compiler.Compile(counterSrc)
	if err != nil {
		t.Fatalf("unexpected compile error: %s", err)
	}

	withoutEmit, err := compiler.Compile(strings.Replace(counterSrc, "emit Incremented(by)\n", "", 1))
	if err != nil {
		t.Fatalf("unexpected compile error: %s", err)
	}

	if diff := cmp.Diff(withoutEmit.Script, withEmit.Script); diff != "" {
		t.Fatalf("emit changed the generated bytecode:\n%s", diff)
	}
}

func Test_ArrayFlatteningCountsSlots(t *testing.T) {
	src := `
TxContract Grid(cells: [[U256; 2]; 3]) {
	pub fn sum(extra: [U256; 2]) -> U256 {
		return cells[2][1] + extra[0] + extra[1]
	}
}
`
	artifact, err := compiler.Compile(src)
	if err != nil {
		t.Fatalf("unexpected compile error: %s", err)
	}

	if got := len(artifact.Contract.FieldTypes); got != 6 {
		t.Fatalf("expected [[U256;2];3] to flatten to 6 field slots, got %d", got)
	}

	sum := artifact.Funcs["sum"]
	if sum.ArgsLength != 2 {
		t.Fatalf("expected [U256;2] argument to flatten to 2 slots, got %d", sum.ArgsLength)
	}
	if artifact.Script.Methods[0].LocalsLength != 2 {
		t.Fatalf("expected 2 local slots, got %d", artifact.Script.Methods[0].LocalsLength)
	}
}

func Test_TxScriptFirstMethodMustBePub(t *testing.T) {
	src := `
TxScript Run {
	fn main() {
		return
	}
}
`
	_, err := compiler.Compile(src)
	assertCompileError(t, err, compiler.TypeCheck)
}

func Test_TxScriptSecondaryMethodsMustBePrivate(t *testing.T) {
	src := `
TxScript Run {
	pub fn main() {
		return
	}
	pub fn helper() {
		return
	}
}
`
	_, err := compiler.Compile(src)
	assertCompileError(t, err, compiler.TypeCheck)
}

func Test_DuplicateFunctionIDRejected(t *testing.T) {
	src := `
TxScript Run {
	pub fn main() {
		return
	}
	fn main() {
		return
	}
}
`
	_, err := compiler.Compile(src)
	assertCompileError(t, err, compiler.Duplicate)
}

func Test_UnknownEventRejected(t *testing.T) {
	src := `
TxContract C() {
	pub fn go() {
		emit Missing(1)
		return
	}
}
`
	_, err := compiler.Compile(src)
	assertCompileError(t, err, compiler.TypeCheck)
}

func Test_EventArgumentTypeMismatchRejected(t *testing.T) {
	src := `
TxContract C() {
	event Fired(flag: Bool)

	pub fn go() {
		emit Fired(1)
		return
	}
}
`
	_, err := compiler.Compile(src)
	assertCompileError(t, err, compiler.TypeCheck)
}

func Test_ArrayEqualityRejected(t *testing.T) {
	src := `
TxScript Run {
	pub fn main() -> Bool {
		let a = [1, 2]
		let b = [1, 2]
		return a == b
	}
}
`
	_, err := compiler.Compile(src)
	assertCompileError(t, err, compiler.UnsupportedArrayOp)
}

func Test_DynamicArrayIndexRejected(t *testing.T) {
	src := `
TxScript Run {
	pub fn main(i: U256) -> U256 {
		let a = [1, 2, 3]
		return a[i]
	}
}
`
	_, err := compiler.Compile(src)
	assertCompileError(t, err, compiler.UnsupportedArrayOp)
}

func Test_StaticIndexOutOfRangeRejected(t *testing.T) {
	src := `
TxScript Run {
	pub fn main() -> U256 {
		let a = [1, 2, 3]
		return a[3]
	}
}
`
	_, err := compiler.Compile(src)
	assertCompileError(t, err, compiler.OutOfRange)
}

func Test_BranchOffsetOverflowRejected(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("TxScript Run {\n\tpub fn main() -> U256 {\n\t\tlet mut x = 0\n\t\tif x < 1 {\n")
	for i := 0; i < 80; i++ {
		sb.WriteString("\t\t\tx = x + 1\n")
	}
	sb.WriteString("\t\t}\n\t\treturn x\n\t}\n}\n")

	_, err := compiler.Compile(sb.String())

	var cerr *compiler.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected a compile error, got %v", err)
	}
	if cerr.Kind != compiler.OutOfRange {
		t.Fatalf("expected an out-of-range error, got %s", cerr.Kind)
	}
	if !strings.Contains(cerr.Msg, "too many instrs for branches") {
		t.Fatalf("unexpected message %q", cerr.Msg)
	}
}

func Test_BalanceBuiltinRequiresPayable(t *testing.T) {
	src := `
TxScript Run {
	pub fn main(from: Address, to: Address) {
		transferAlph(from, to, 5)
		return
	}
}
`
	_, err := compiler.Compile(src)
	assertCompileError(t, err, compiler.TypeCheck)
}

func Test_AssignToImmutableBindingRejected(t *testing.T) {
	src := `
TxScript Run {
	pub fn main() -> U256 {
		let x = 1
		x = 2
		return x
	}
}
`
	_, err := compiler.Compile(src)
	assertCompileError(t, err, compiler.TypeCheck)
}

func Test_ParseErrorCarriesLocation(t *testing.T) {
	_, err := compiler.Compile("TxScript {")

	var cerr *compiler.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected a compile error, got %v", err)
	}
	if cerr.Kind != compiler.Parse {
		t.Fatalf("expected a parse error, got %s", cerr.Kind)
	}
	if cerr.Pos.Line == 0 || cerr.Pos.Col == 0 {
		t.Fatalf("expected a source position, got %s", cerr.Pos)
	}
}

func assertCompileError(t *testing.T, err error, kind compiler.ErrorKind) {
	t.Helper()

	var cerr *compiler.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected a compile error, got %v", err)
	}
	if cerr.Kind != kind {
		t.Fatalf("expected a %s error, got %s: %s", kind, cerr.Kind, cerr.Msg)
	}
}
