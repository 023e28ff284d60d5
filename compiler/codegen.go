package compiler

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/blockflow-labs/blockflow-node/vm"
)

// maxBranchOffset bounds a single Jump/IfTrue/IfFalse offset to what the
// bytecode format can carry in a signed byte.
const maxBranchOffset = 0xff

// funcGen compiles one function body to an instruction stream.
type funcGen struct {
	unit *SourceUnit
	fn   FuncDef
	sig  *unitSig
	sigs map[string]*unitSig

	scope     *scope
	instrs    []vm.Instr
	nextLocal int
}

// compileFunc compiles fn into a vm.Method.
func compileFunc(unit *SourceUnit, fn FuncDef, sig *unitSig, sigs map[string]*unitSig) (vm.Method, error) {
	g := &funcGen{unit: unit, fn: fn, sig: sig, sigs: sigs, scope: newScope()}

	entry := sig.funcs[fn.ID]

	for i, arg := range fn.Args {
		t := entry.ArgTypes[i]
		sym := symbol{typ: t, slot: g.nextLocal}
		if err := g.scope.declare(arg.Name, sym, arg.Pos); err != nil {
			return vm.Method{}, err
		}
		g.nextLocal += t.FlattenedLength()
	}

	if err := g.genStmts(fn.Body); err != nil {
		return vm.Method{}, err
	}

	return vm.Method{
		IsPublic:     fn.IsPublic,
		IsPayable:    fn.IsPayable,
		ArgsLength:   entry.ArgsLength,
		LocalsLength: g.nextLocal,
		ReturnLength: entry.ReturnLength,
		Instrs:       g.instrs,
	}, nil
}

func (g *funcGen) emit(op vm.OpCode) {
	g.instrs = append(g.instrs, vm.Instr{Op: op})
}

func (g *funcGen) emitOperand(op vm.OpCode, operand int64) {
	g.instrs = append(g.instrs, vm.Instr{Op: op, IntOperand: operand})
}

func (g *funcGen) emitConst(op vm.OpCode, v vm.Val) {
	g.instrs = append(g.instrs, vm.Instr{Op: op, Const: v})
}

// =============================================================================

func (g *funcGen) genStmts(stmts []Stmt) error {
	for _, stmt := range stmts {
		if err := g.genStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (g *funcGen) genStmt(stmt Stmt) error {
	switch s := stmt.(type) {
	case *LetStmt:
		return g.genLet(s)
	case *AssignStmt:
		return g.genAssign(s)
	case *IfStmt:
		return g.genIf(s)
	case *WhileStmt:
		return g.genWhile(s)
	case *ReturnStmt:
		return g.genReturn(s)
	case *EmitStmt:
		return g.genEmit(s)
	case *ExprStmt:
		types, err := g.genExpr(s.X)
		if err != nil {
			return err
		}
		for _, t := range types {
			for i := 0; i < t.FlattenedLength(); i++ {
				g.emit(vm.OpPop)
			}
		}
		return nil
	}
	return errorf(Parse, stmt.position(), "unhandled statement")
}

func (g *funcGen) genLet(s *LetStmt) error {
	t, err := g.genExprSingle(s.Value)
	if err != nil {
		return err
	}

	if s.Type != nil {
		declared, err := resolveType(*s.Type, g.contractNames())
		if err != nil {
			return err
		}
		if !declared.Equal(t) {
			return errorf(TypeCheck, s.Pos, "cannot bind %s value to %q declared as %s", t, s.Name, declared)
		}
		t = declared
	}

	start := g.nextLocal
	g.nextLocal += t.FlattenedLength()

	sym := symbol{typ: t, mutable: s.Mutable, slot: start}
	if err := g.scope.declare(s.Name, sym, s.Pos); err != nil {
		return err
	}

	for i := t.FlattenedLength() - 1; i >= 0; i-- {
		g.emitOperand(vm.OpStoreLocal, int64(start+i))
	}
	return nil
}

func (g *funcGen) genAssign(s *AssignStmt) error {
	sym, start, targetType, err := g.resolveRef(s.Target)
	if err != nil {
		return err
	}

	if !sym.isField && !sym.mutable {
		return errorf(TypeCheck, s.Pos, "cannot assign: binding is not declared mut")
	}

	valueType, err := g.genExprSingle(s.Value)
	if err != nil {
		return err
	}
	if !valueType.Equal(targetType) {
		return errorf(TypeCheck, s.Pos, "cannot assign %s value to %s target", valueType, targetType)
	}

	// Arrays are copied slot-wise: the value's flattened slots are already
	// on the stack in order, so they store into the target range in
	// reverse.
	store := vm.OpStoreLocal
	if sym.isField {
		store = vm.OpStoreField
	}
	for i := targetType.FlattenedLength() - 1; i >= 0; i-- {
		g.emitOperand(store, int64(start+i))
	}
	return nil
}

func (g *funcGen) genIf(s *IfStmt) error {
	branchOp, err := g.genCond(s.Cond)
	if err != nil {
		return err
	}

	branchAt := len(g.instrs)
	g.emitOperand(branchOp, 0)

	g.scope.push()
	err = g.genStmts(s.Then)
	g.scope.pop()
	if err != nil {
		return err
	}
	thenLen := len(g.instrs) - branchAt - 1

	if len(s.Else) == 0 {
		return g.patchBranch(branchAt, thenLen+1, s.Pos)
	}

	jumpAt := len(g.instrs)
	g.emitOperand(vm.OpJump, 0)

	if err := g.patchBranch(branchAt, thenLen+2, s.Pos); err != nil {
		return err
	}

	g.scope.push()
	err = g.genStmts(s.Else)
	g.scope.pop()
	if err != nil {
		return err
	}
	elseLen := len(g.instrs) - jumpAt - 1

	return g.patchBranch(jumpAt, elseLen+1, s.Pos)
}

func (g *funcGen) genWhile(s *WhileStmt) error {
	condAt := len(g.instrs)

	branchOp, err := g.genCond(s.Cond)
	if err != nil {
		return err
	}

	branchAt := len(g.instrs)
	g.emitOperand(branchOp, 0)

	g.scope.push()
	err = g.genStmts(s.Body)
	g.scope.pop()
	if err != nil {
		return err
	}
	bodyLen := len(g.instrs) - branchAt - 1

	if err := g.patchBranch(branchAt, bodyLen+2, s.Pos); err != nil {
		return err
	}

	jumpAt := len(g.instrs)
	g.emitOperand(vm.OpJump, 0)
	return g.patchBranch(jumpAt, condAt-jumpAt, s.Pos)
}

// genCond emits the condition of a branch and picks the branch opcode:
// a condition of the form !x emits x and branches with IfTrue, anything
// else emits the condition and branches with IfFalse.
func (g *funcGen) genCond(cond Expr) (vm.OpCode, error) {
	branchOp := vm.OpIfFalse
	if u, ok := cond.(*UnaryExpr); ok && u.Op == tokNot {
		cond = u.X
		branchOp = vm.OpIfTrue
	}

	t, err := g.genExprSingle(cond)
	if err != nil {
		return 0, err
	}
	if !t.Equal(boolType()) {
		return 0, errorf(TypeCheck, cond.position(), "condition must be Bool, found %s", t)
	}
	return branchOp, nil
}

// patchBranch writes the relative offset into the placeholder emitted at
// index, rejecting offsets the single-byte encoding cannot carry.
func (g *funcGen) patchBranch(index, offset int, pos Pos) error {
	if offset > maxBranchOffset || offset < -maxBranchOffset {
		return errorf(OutOfRange, pos, "too many instrs for branches")
	}
	g.instrs[index].IntOperand = int64(offset)
	return nil
}

func (g *funcGen) genReturn(s *ReturnStmt) error {
	declared := g.sig.funcs[g.fn.ID].ReturnTypes
	if len(s.Values) != len(declared) {
		return errorf(TypeCheck, s.Pos, "function %q returns %d values, statement has %d", g.fn.ID, len(declared), len(s.Values))
	}

	for i, value := range s.Values {
		t, err := g.genExprSingle(value)
		if err != nil {
			return err
		}
		if !t.Equal(declared[i]) {
			return errorf(TypeCheck, value.position(), "return value %d is %s, declared %s", i, t, declared[i])
		}
	}

	g.emit(vm.OpReturn)
	return nil
}

// genEmit type-checks an emit statement against the event table. Event
// emission generates no runtime instructions at this layer; the check
// exists so a mismatched emit never reaches a future indexing opcode.
func (g *funcGen) genEmit(s *EmitStmt) error {
	info, ok := g.sig.events[s.Ident]
	if !ok {
		return errorf(TypeCheck, s.Pos, "unknown event %q", s.Ident)
	}

	if len(s.Args) != len(info.FieldTypes) {
		return errorf(TypeCheck, s.Pos, "event %q has %d fields, emit has %d arguments", s.Ident, len(info.FieldTypes), len(s.Args))
	}

	for i, arg := range s.Args {
		t, err := g.typeOf(arg)
		if err != nil {
			return err
		}
		if !t.Equal(info.FieldTypes[i]) {
			return errorf(TypeCheck, arg.position(), "event %q field %d is %s, argument is %s", s.Ident, i, info.FieldTypes[i], t)
		}
	}

	return nil
}

// typeOf infers an expression's type without leaving instructions behind.
func (g *funcGen) typeOf(x Expr) (Type, error) {
	mark := len(g.instrs)
	t, err := g.genExprSingle(x)
	g.instrs = g.instrs[:mark]
	return t, err
}

// =============================================================================

// genExprSingle emits x and requires it to produce exactly one value.
func (g *funcGen) genExprSingle(x Expr) (Type, error) {
	types, err := g.genExpr(x)
	if err != nil {
		return Type{}, err
	}
	if len(types) != 1 {
		return Type{}, errorf(TypeCheck, x.position(), "expression produces %d values where one is expected", len(types))
	}
	return types[0], nil
}

// genExpr emits x, pushing its flattened slots, and returns the value
// types produced. Only calls may produce a count other than one.
func (g *funcGen) genExpr(x Expr) ([]Type, error) {
	switch e := x.(type) {
	case *BoolLit:
		g.emitConst(vm.OpConstBool, vm.BoolVal(e.Value))
		return []Type{boolType()}, nil

	case *IntLit:
		return g.genIntLit(e)

	case *BytesLit:
		g.emitConst(vm.OpConstByteVec, vm.ByteVecVal(e.Data))
		return []Type{byteVecType()}, nil

	case *IdentExpr, *IndexExpr:
		sym, start, t, err := g.resolveRef(x)
		if err != nil {
			return nil, err
		}
		load := vm.OpLoadLocal
		if sym.isField {
			load = vm.OpLoadField
		}
		for i := 0; i < t.FlattenedLength(); i++ {
			g.emitOperand(load, int64(start+i))
		}
		return []Type{t}, nil

	case *ArrayLit:
		return g.genArrayLit(e)

	case *BinaryExpr:
		t, err := g.genBinary(e)
		if err != nil {
			return nil, err
		}
		return []Type{t}, nil

	case *UnaryExpr:
		t, err := g.genUnary(e)
		if err != nil {
			return nil, err
		}
		return []Type{t}, nil

	case *CallExpr:
		return g.genCall(e)

	case *MethodCallExpr:
		return g.genMethodCall(e)
	}

	return nil, errorf(Parse, x.position(), "unhandled expression")
}

func (g *funcGen) genIntLit(e *IntLit) ([]Type, error) {
	n, ok := new(big.Int).SetString(e.Text, 10)
	if !ok {
		return nil, errorf(Parse, e.Pos, "invalid integer literal %q", e.Text)
	}

	if e.Signed {
		if n.BitLen() > 255 {
			return nil, errorf(OutOfRange, e.Pos, "literal %s does not fit in I256", e.Text)
		}
		g.emitConst(vm.OpConstI256, vm.I256Val(n))
		return []Type{i256Type()}, nil
	}

	u, overflow := uint256.FromBig(n)
	if overflow {
		return nil, errorf(OutOfRange, e.Pos, "literal %s does not fit in U256", e.Text)
	}
	g.emitConst(vm.OpConstU256, vm.U256Val(u))
	return []Type{u256Type()}, nil
}

// genArrayLit compiles [a, b, c] by concatenating the element slots, and
// the repeat form [e; n] by generating the element once per copy.
func (g *funcGen) genArrayLit(e *ArrayLit) ([]Type, error) {
	if e.Repeat != nil {
		elemType, err := g.genExprSingle(e.Repeat)
		if err != nil {
			return nil, err
		}
		for i := 1; i < e.Count; i++ {
			t, err := g.genExprSingle(e.Repeat)
			if err != nil {
				return nil, err
			}
			if !t.Equal(elemType) {
				return nil, errorf(TypeCheck, e.Pos, "repeat element changed type between copies")
			}
		}
		return []Type{{Kind: Array, Elem: &elemType, Size: e.Count}}, nil
	}

	first, err := g.genExprSingle(e.Elems[0])
	if err != nil {
		return nil, err
	}
	for _, elem := range e.Elems[1:] {
		t, err := g.genExprSingle(elem)
		if err != nil {
			return nil, err
		}
		if !t.Equal(first) {
			return nil, errorf(TypeCheck, elem.position(), "array literal mixes %s and %s elements", first, t)
		}
	}
	return []Type{{Kind: Array, Elem: &first, Size: len(e.Elems)}}, nil
}

// resolveRef resolves an ident or statically indexed array access to its
// declaring symbol, first flattened slot, and value type. The array
// arena's recorded start is the base every index offset is applied to.
func (g *funcGen) resolveRef(x Expr) (symbol, int, Type, error) {
	switch e := x.(type) {
	case *IdentExpr:
		sym, ok := g.scope.lookup(e.Name)
		if !ok {
			fieldSym, ok := g.sig.fieldSyms[e.Name]
			if !ok {
				return symbol{}, 0, Type{}, errorf(TypeCheck, e.Pos, "undefined name %q", e.Name)
			}
			return fieldSym, fieldSym.slot, fieldSym.typ, nil
		}
		start := sym.slot
		if sym.ref >= 0 {
			start = g.scope.refs[sym.ref].start
		}
		return sym, start, sym.typ, nil

	case *IndexExpr:
		sym, start, t, err := g.resolveRef(e.Target)
		if err != nil {
			return symbol{}, 0, Type{}, err
		}
		if t.Kind != Array {
			return symbol{}, 0, Type{}, errorf(TypeCheck, e.Pos, "cannot index a %s value", t)
		}

		lit, ok := e.Index.(*IntLit)
		if !ok || lit.Signed {
			return symbol{}, 0, Type{}, errorf(UnsupportedArrayOp, e.Pos, "array index must be a static unsigned integer literal")
		}
		idx, parsed := new(big.Int).SetString(lit.Text, 10)
		if !parsed || !idx.IsInt64() {
			return symbol{}, 0, Type{}, errorf(Parse, lit.Pos, "invalid array index %q", lit.Text)
		}
		i := int(idx.Int64())
		if i < 0 || i >= t.Size {
			return symbol{}, 0, Type{}, errorf(OutOfRange, e.Pos, "index %d out of range for %s", i, t)
		}

		return sym, start + i*t.Elem.FlattenedLength(), *t.Elem, nil
	}

	return symbol{}, 0, Type{}, errorf(TypeCheck, x.position(), "expression is not addressable")
}

// =============================================================================

func (g *funcGen) genBinary(e *BinaryExpr) (Type, error) {
	left, err := g.genExprSingle(e.L)
	if err != nil {
		return Type{}, err
	}
	right, err := g.genExprSingle(e.R)
	if err != nil {
		return Type{}, err
	}

	if !left.Equal(right) {
		return Type{}, errorf(TypeCheck, e.Pos, "operands are %s and %s, want matching types", left, right)
	}

	if left.Kind == Array {
		if e.Op == tokEq || e.Op == tokNeq {
			return Type{}, errorf(UnsupportedArrayOp, e.Pos, "array equality is not defined")
		}
		return Type{}, errorf(TypeCheck, e.Pos, "operator is not defined for %s", left)
	}
	if left.Kind == ContractRef {
		return Type{}, errorf(TypeCheck, e.Pos, "operator is not defined for contract type %s", left)
	}

	kind := left.Prim

	switch e.Op {
	case tokPlus, tokMinus, tokStar, tokSlash, tokPercent:
		ops, ok := arithOps[kind]
		if !ok {
			return Type{}, errorf(TypeCheck, e.Pos, "arithmetic is not defined for %s", left)
		}
		g.emit(ops[e.Op])
		return left, nil

	case tokConcat:
		if kind != vm.KindByteVec {
			return Type{}, errorf(TypeCheck, e.Pos, "++ is only defined for ByteVec")
		}
		g.emit(vm.OpByteVecConcat)
		return byteVecType(), nil

	case tokEq, tokNeq:
		return boolType(), g.genEquality(e.Op, kind, e.Pos)

	case tokLt, tokLe, tokGt, tokGe:
		ops, ok := cmpOps[kind]
		if !ok {
			return Type{}, errorf(TypeCheck, e.Pos, "ordering is not defined for %s", left)
		}
		g.emit(ops[e.Op])
		return boolType(), nil

	case tokAnd, tokOr:
		if kind != vm.KindBool {
			return Type{}, errorf(TypeCheck, e.Pos, "logical operators require Bool operands")
		}
		if e.Op == tokAnd {
			g.emit(vm.OpBoolAnd)
		} else {
			g.emit(vm.OpBoolOr)
		}
		return boolType(), nil
	}

	return Type{}, errorf(Parse, e.Pos, "unhandled binary operator")
}

var arithOps = map[vm.Kind]map[tokenKind]vm.OpCode{
	vm.KindI256: {
		tokPlus: vm.OpI256Add, tokMinus: vm.OpI256Sub, tokStar: vm.OpI256Mul,
		tokSlash: vm.OpI256Div, tokPercent: vm.OpI256Mod,
	},
	vm.KindU256: {
		tokPlus: vm.OpU256Add, tokMinus: vm.OpU256Sub, tokStar: vm.OpU256Mul,
		tokSlash: vm.OpU256Div, tokPercent: vm.OpU256Mod,
	},
}

var cmpOps = map[vm.Kind]map[tokenKind]vm.OpCode{
	vm.KindI256: {
		tokLt: vm.OpI256Lt, tokLe: vm.OpI256Le, tokGt: vm.OpI256Gt, tokGe: vm.OpI256Ge,
	},
	vm.KindU256: {
		tokLt: vm.OpU256Lt, tokLe: vm.OpU256Le, tokGt: vm.OpU256Gt, tokGe: vm.OpU256Ge,
	},
}

func (g *funcGen) genEquality(op tokenKind, kind vm.Kind, pos Pos) error {
	eq := op == tokEq
	switch kind {
	case vm.KindBool:
		g.emit(vm.OpBoolEq)
		if !eq {
			g.emit(vm.OpBoolNot)
		}
	case vm.KindI256:
		if eq {
			g.emit(vm.OpI256Eq)
		} else {
			g.emit(vm.OpI256Neq)
		}
	case vm.KindU256:
		if eq {
			g.emit(vm.OpU256Eq)
		} else {
			g.emit(vm.OpU256Neq)
		}
	case vm.KindByteVec:
		if eq {
			g.emit(vm.OpByteVecEq)
		} else {
			g.emit(vm.OpByteVecNeq)
		}
	case vm.KindAddress:
		if eq {
			g.emit(vm.OpAddressEq)
		} else {
			g.emit(vm.OpAddressNeq)
		}
	default:
		return errorf(TypeCheck, pos, "equality is not defined for %s", kind)
	}
	return nil
}

func (g *funcGen) genUnary(e *UnaryExpr) (Type, error) {
	t, err := g.genExprSingle(e.X)
	if err != nil {
		return Type{}, err
	}

	switch e.Op {
	case tokNot:
		if !t.Equal(boolType()) {
			return Type{}, errorf(TypeCheck, e.Pos, "! requires a Bool operand, found %s", t)
		}
		g.emit(vm.OpBoolNot)
		return boolType(), nil

	case tokMinus:
		if !t.Equal(i256Type()) {
			return Type{}, errorf(TypeCheck, e.Pos, "unary - requires an I256 operand, found %s", t)
		}
		g.emit(vm.OpI256Neg)
		return i256Type(), nil
	}

	return Type{}, errorf(Parse, e.Pos, "unhandled unary operator")
}

// =============================================================================

// builtin describes one intrinsic function: its argument types in push
// order, its result, the opcode it lowers to, and whether it may only be
// called from a payable function because it consumes balances.
type builtin struct {
	args        []Type
	result      *Type
	op          vm.OpCode
	payableOnly bool
}

var builtins = map[string]builtin{
	"blake2b":         {args: []Type{byteVecType()}, result: typePtr(byteVecType()), op: vm.OpHash},
	"size":            {args: []Type{byteVecType()}, result: typePtr(u256Type()), op: vm.OpByteVecLength},
	"verifySignature": {args: []Type{byteVecType(), byteVecType(), byteVecType()}, result: typePtr(boolType()), op: vm.OpVerifySignature},
	"callerAddress":   {args: nil, result: typePtr(addressType()), op: vm.OpCallerAddress},
	"selfAddress":     {args: nil, result: typePtr(addressType()), op: vm.OpContractAddress},

	"approve":       {args: []Type{addressType(), u256Type()}, op: vm.OpApprove, payableOnly: true},
	"transferAlph":  {args: []Type{addressType(), addressType(), u256Type()}, op: vm.OpTransferAlph, payableOnly: true},
	"transferToken": {args: []Type{addressType(), addressType(), byteVecType(), u256Type()}, op: vm.OpTransferToken, payableOnly: true},
}

func typePtr(t Type) *Type { return &t }

func (g *funcGen) genCall(e *CallExpr) ([]Type, error) {
	if b, ok := builtins[e.Name]; ok {
		return g.genBuiltin(e, b)
	}

	entry, ok := g.sig.funcs[e.Name]
	if !ok {
		return nil, errorf(TypeCheck, e.Pos, "undefined function %q", e.Name)
	}

	if err := g.genCallArgs(e.Name, e.Args, entry.ArgTypes, e.Pos); err != nil {
		return nil, err
	}

	g.emitOperand(vm.OpCallLocal, int64(entry.Index))
	return entry.ReturnTypes, nil
}

func (g *funcGen) genBuiltin(e *CallExpr, b builtin) ([]Type, error) {
	if b.payableOnly && !g.fn.IsPayable {
		return nil, errorf(TypeCheck, e.Pos, "%q consumes balances and may only be called from a payable function", e.Name)
	}

	if err := g.genCallArgs(e.Name, e.Args, b.args, e.Pos); err != nil {
		return nil, err
	}

	g.emit(b.op)
	if b.result == nil {
		return nil, nil
	}
	return []Type{*b.result}, nil
}

func (g *funcGen) genMethodCall(e *MethodCallExpr) ([]Type, error) {
	// The receiver's flattened address slot is pushed after the arguments:
	// CallExternal pops the address first, then the callee's arguments.
	recvType, err := g.typeOf(e.Recv)
	if err != nil {
		return nil, err
	}
	if recvType.Kind != ContractRef {
		return nil, errorf(TypeCheck, e.Pos, "method call receiver must be contract-typed, found %s", recvType)
	}

	callee, ok := g.sigs[recvType.Contract]
	if !ok {
		return nil, errorf(TypeCheck, e.Pos, "unknown contract type %q", recvType.Contract)
	}
	entry, ok := callee.funcs[e.Method]
	if !ok {
		return nil, errorf(TypeCheck, e.Pos, "contract %q has no method %q", recvType.Contract, e.Method)
	}
	if !entry.IsPublic {
		return nil, errorf(TypeCheck, e.Pos, "method %q on contract %q is private", e.Method, recvType.Contract)
	}

	if err := g.genCallArgs(e.Method, e.Args, entry.ArgTypes, e.Pos); err != nil {
		return nil, err
	}

	if _, err := g.genExprSingle(e.Recv); err != nil {
		return nil, err
	}

	g.emitOperand(vm.OpCallExternal, int64(entry.Index))
	return entry.ReturnTypes, nil
}

func (g *funcGen) genCallArgs(name string, args []Expr, want []Type, pos Pos) error {
	if len(args) != len(want) {
		return errorf(TypeCheck, pos, "%q takes %d arguments, call has %d", name, len(want), len(args))
	}

	for i, arg := range args {
		t, err := g.genExprSingle(arg)
		if err != nil {
			return err
		}
		if !t.Equal(want[i]) {
			return errorf(TypeCheck, arg.position(), "argument %d to %q is %s, want %s", i, name, t, want[i])
		}
	}
	return nil
}

// contractNames rebuilds the contract-name set from the collected unit
// signatures, for resolving annotated let types during codegen.
func (g *funcGen) contractNames() map[string]bool {
	names := make(map[string]bool, len(g.sigs))
	for name, sig := range g.sigs {
		if sig.kind == TxContract {
			names[name] = true
		}
	}
	return names
}
