package compiler

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// parser is a recursive-descent parser with one token of lookahead.
type parser struct {
	lx  *lexer
	tok token
}

func newParser(src string) (*parser, error) {
	p := &parser{lx: newLexer(src)}
	if err := p.bump(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) bump() error {
	tok, err := p.lx.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	if p.tok.kind != kind {
		return token{}, errorf(Parse, p.tok.pos, "expected %s, found %s", what, p.tok)
	}
	tok := p.tok
	if err := p.bump(); err != nil {
		return token{}, err
	}
	return tok, nil
}

func (p *parser) accept(kind tokenKind) (bool, error) {
	if p.tok.kind != kind {
		return false, nil
	}
	return true, p.bump()
}

func (p *parser) isKeyword(kw string) bool {
	return p.tok.kind == tokIdent && p.tok.text == kw
}

func (p *parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return errorf(Parse, p.tok.pos, "expected %q, found %s", kw, p.tok)
	}
	return p.bump()
}

// =============================================================================

// parseUnits parses every top-level form in the source, in order.
func (p *parser) parseUnits() ([]*SourceUnit, error) {
	var units []*SourceUnit

	for p.tok.kind != tokEOF {
		unit, err := p.parseUnit()
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}

	if len(units) == 0 {
		return nil, errorf(Parse, p.tok.pos, "source contains no TxScript, TxContract, or AssetScript")
	}

	return units, nil
}

func (p *parser) parseUnit() (*SourceUnit, error) {
	pos := p.tok.pos

	var kind UnitKind
	switch {
	case p.isKeyword("TxScript"):
		kind = TxScript
	case p.isKeyword("TxContract"):
		kind = TxContract
	case p.isKeyword("AssetScript"):
		kind = AssetScript
	default:
		return nil, errorf(Parse, pos, "expected TxScript, TxContract, or AssetScript, found %s", p.tok)
	}
	if err := p.bump(); err != nil {
		return nil, err
	}

	name, err := p.expect(tokIdent, "unit name")
	if err != nil {
		return nil, err
	}
	if keywords[name.text] {
		return nil, errorf(Parse, name.pos, "%q cannot name a unit", name.text)
	}

	unit := &SourceUnit{Kind: kind, Name: name.text, Pos: pos}

	// Only a TxContract declares persistent fields.
	if p.tok.kind == tokLParen {
		if kind != TxContract {
			return nil, errorf(Parse, p.tok.pos, "%s %s cannot declare fields", kind, unit.Name)
		}
		fields, err := p.parseParams()
		if err != nil {
			return nil, err
		}
		unit.Fields = fields
	}

	if _, err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}

	for p.tok.kind != tokRBrace {
		switch {
		case p.isKeyword("event"):
			ev, err := p.parseEventDef()
			if err != nil {
				return nil, err
			}
			unit.Events = append(unit.Events, ev)
		case p.isKeyword("pub") || p.isKeyword("payable") || p.isKeyword("fn"):
			fn, err := p.parseFuncDef()
			if err != nil {
				return nil, err
			}
			unit.Funcs = append(unit.Funcs, fn)
		default:
			return nil, errorf(Parse, p.tok.pos, "expected fn or event definition, found %s", p.tok)
		}
	}

	if err := p.bump(); err != nil {
		return nil, err
	}

	if len(unit.Funcs) == 0 {
		return nil, errorf(Parse, pos, "%s %s defines no functions", kind, unit.Name)
	}

	return unit, nil
}

func (p *parser) parseEventDef() (EventDef, error) {
	pos := p.tok.pos
	if err := p.bump(); err != nil {
		return EventDef{}, err
	}

	name, err := p.expect(tokIdent, "event name")
	if err != nil {
		return EventDef{}, err
	}

	fields, err := p.parseParams()
	if err != nil {
		return EventDef{}, err
	}

	return EventDef{Ident: name.text, Fields: fields, Pos: pos}, nil
}

func (p *parser) parseFuncDef() (FuncDef, error) {
	pos := p.tok.pos
	fn := FuncDef{Pos: pos}

	for {
		switch {
		case p.isKeyword("pub"):
			fn.IsPublic = true
		case p.isKeyword("payable"):
			fn.IsPayable = true
		case p.isKeyword("fn"):
			if err := p.bump(); err != nil {
				return FuncDef{}, err
			}
			return p.parseFuncRest(fn)
		default:
			return FuncDef{}, errorf(Parse, p.tok.pos, "expected fn, found %s", p.tok)
		}
		if err := p.bump(); err != nil {
			return FuncDef{}, err
		}
	}
}

func (p *parser) parseFuncRest(fn FuncDef) (FuncDef, error) {
	name, err := p.expect(tokIdent, "function name")
	if err != nil {
		return FuncDef{}, err
	}
	fn.ID = name.text

	fn.Args, err = p.parseParams()
	if err != nil {
		return FuncDef{}, err
	}

	ok, err := p.accept(tokArrow)
	if err != nil {
		return FuncDef{}, err
	}
	if ok {
		fn.Returns, err = p.parseReturnTypes()
		if err != nil {
			return FuncDef{}, err
		}
	}

	fn.Body, err = p.parseBlock()
	if err != nil {
		return FuncDef{}, err
	}

	return fn, nil
}

// parseParams parses a parenthesized, comma-separated parameter list. A
// parameter without a type annotation defaults to U256.
func (p *parser) parseParams() ([]Param, error) {
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}

	var params []Param
	for p.tok.kind != tokRParen {
		if len(params) > 0 {
			if _, err := p.expect(tokComma, ","); err != nil {
				return nil, err
			}
		}

		name, err := p.expect(tokIdent, "parameter name")
		if err != nil {
			return nil, err
		}

		param := Param{Name: name.text, Pos: name.pos}

		ok, err := p.accept(tokColon)
		if err != nil {
			return nil, err
		}
		if ok {
			param.Type, err = p.parseType()
			if err != nil {
				return nil, err
			}
		} else {
			param.Type = TypeExpr{Name: "U256", Pos: name.pos}
		}

		params = append(params, param)
	}

	return params, p.bump()
}

func (p *parser) parseReturnTypes() ([]TypeExpr, error) {
	ok, err := p.accept(tokLParen)
	if err != nil {
		return nil, err
	}
	if !ok {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return []TypeExpr{t}, nil
	}

	var types []TypeExpr
	for p.tok.kind != tokRParen {
		if len(types) > 0 {
			if _, err := p.expect(tokComma, ","); err != nil {
				return nil, err
			}
		}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}

	return types, p.bump()
}

// parseType parses a named type or a [elem; size] fixed-size array type.
func (p *parser) parseType() (TypeExpr, error) {
	pos := p.tok.pos

	ok, err := p.accept(tokLBracket)
	if err != nil {
		return TypeExpr{}, err
	}
	if ok {
		elem, err := p.parseType()
		if err != nil {
			return TypeExpr{}, err
		}
		if _, err := p.expect(tokSemi, ";"); err != nil {
			return TypeExpr{}, err
		}
		sizeTok, err := p.expect(tokInt, "array size")
		if err != nil {
			return TypeExpr{}, err
		}
		size, err := strconv.Atoi(strings.TrimRight(sizeTok.text, "iu"))
		if err != nil || size <= 0 {
			return TypeExpr{}, errorf(Parse, sizeTok.pos, "invalid array size %q", sizeTok.text)
		}
		if _, err := p.expect(tokRBracket, "]"); err != nil {
			return TypeExpr{}, err
		}
		return TypeExpr{IsArray: true, Elem: &elem, Size: size, Pos: pos}, nil
	}

	name, err := p.expect(tokIdent, "type name")
	if err != nil {
		return TypeExpr{}, err
	}
	return TypeExpr{Name: name.text, Pos: pos}, nil
}

// =============================================================================

func (p *parser) parseBlock() ([]Stmt, error) {
	if _, err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}

	var stmts []Stmt
	for p.tok.kind != tokRBrace {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}

	return stmts, p.bump()
}

func (p *parser) parseStmt() (Stmt, error) {
	pos := p.tok.pos

	switch {
	case p.isKeyword("let"):
		return p.parseLet()
	case p.isKeyword("if"):
		return p.parseIf()
	case p.isKeyword("while"):
		return p.parseWhile()
	case p.isKeyword("return"):
		return p.parseReturn()
	case p.isKeyword("emit"):
		return p.parseEmit()
	}

	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	ok, err := p.accept(tokAssign)
	if err != nil {
		return nil, err
	}
	if ok {
		if !isLValue(x) {
			return nil, errorf(Parse, pos, "left side of assignment is not assignable")
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &AssignStmt{Target: x, Value: value, Pos: pos}, nil
	}

	return &ExprStmt{X: x, Pos: pos}, nil
}

func isLValue(x Expr) bool {
	switch t := x.(type) {
	case *IdentExpr:
		return true
	case *IndexExpr:
		return isLValue(t.Target)
	}
	return false
}

func (p *parser) parseLet() (Stmt, error) {
	pos := p.tok.pos
	if err := p.bump(); err != nil {
		return nil, err
	}

	mutable := false
	if p.isKeyword("mut") {
		mutable = true
		if err := p.bump(); err != nil {
			return nil, err
		}
	}

	name, err := p.expect(tokIdent, "binding name")
	if err != nil {
		return nil, err
	}

	stmt := &LetStmt{Name: name.text, Mutable: mutable, Pos: pos}

	ok, err := p.accept(tokColon)
	if err != nil {
		return nil, err
	}
	if ok {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		stmt.Type = &t
	}

	if _, err := p.expect(tokAssign, "="); err != nil {
		return nil, err
	}

	stmt.Value, err = p.parseExpr()
	if err != nil {
		return nil, err
	}

	return stmt, nil
}

func (p *parser) parseIf() (Stmt, error) {
	pos := p.tok.pos
	if err := p.bump(); err != nil {
		return nil, err
	}

	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	stmt := &IfStmt{Cond: cond, Then: then, Pos: pos}

	if p.isKeyword("else") {
		if err := p.bump(); err != nil {
			return nil, err
		}
		if p.isKeyword("if") {
			nested, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			stmt.Else = []Stmt{nested}
		} else {
			stmt.Else, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		}
	}

	return stmt, nil
}

func (p *parser) parseWhile() (Stmt, error) {
	pos := p.tok.pos
	if err := p.bump(); err != nil {
		return nil, err
	}

	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &WhileStmt{Cond: cond, Body: body, Pos: pos}, nil
}

func (p *parser) parseReturn() (Stmt, error) {
	pos := p.tok.pos
	if err := p.bump(); err != nil {
		return nil, err
	}

	stmt := &ReturnStmt{Pos: pos}

	if !p.startsExpr() {
		return stmt, nil
	}

	for {
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Values = append(stmt.Values, x)

		ok, err := p.accept(tokComma)
		if err != nil {
			return nil, err
		}
		if !ok {
			return stmt, nil
		}
	}
}

func (p *parser) parseEmit() (Stmt, error) {
	pos := p.tok.pos
	if err := p.bump(); err != nil {
		return nil, err
	}

	name, err := p.expect(tokIdent, "event name")
	if err != nil {
		return nil, err
	}

	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}

	return &EmitStmt{Ident: name.text, Args: args, Pos: pos}, nil
}

// startsExpr reports whether the current token can begin an expression,
// which disambiguates a bare return from return-with-values.
func (p *parser) startsExpr() bool {
	switch p.tok.kind {
	case tokInt, tokHexBytes, tokLParen, tokLBracket, tokNot, tokMinus:
		return true
	case tokIdent:
		return !keywords[p.tok.text] || p.tok.text == "true" || p.tok.text == "false"
	}
	return false
}

// =============================================================================

// Expression precedence, loosest first: || then && then comparisons then
// additive (+ - ++) then multiplicative (* / %) then unary then postfix.

func (p *parser) parseExpr() (Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Expr, error) {
	return p.parseBinary(p.parseAnd, tokOr)
}

func (p *parser) parseAnd() (Expr, error) {
	return p.parseBinary(p.parseCmp, tokAnd)
}

func (p *parser) parseCmp() (Expr, error) {
	return p.parseBinary(p.parseAdd, tokEq, tokNeq, tokLt, tokLe, tokGt, tokGe)
}

func (p *parser) parseAdd() (Expr, error) {
	return p.parseBinary(p.parseMul, tokPlus, tokMinus, tokConcat)
}

func (p *parser) parseMul() (Expr, error) {
	return p.parseBinary(p.parseUnary, tokStar, tokSlash, tokPercent)
}

func (p *parser) parseBinary(next func() (Expr, error), ops ...tokenKind) (Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}

	for {
		var matched bool
		for _, op := range ops {
			if p.tok.kind == op {
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}

		op := p.tok.kind
		pos := p.tok.pos
		if err := p.bump(); err != nil {
			return nil, err
		}

		right, err := next()
		if err != nil {
			return nil, err
		}

		left = &BinaryExpr{Op: op, L: left, R: right, Pos: pos}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	if p.tok.kind == tokNot || p.tok.kind == tokMinus {
		op := p.tok.kind
		pos := p.tok.pos
		if err := p.bump(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: op, X: x, Pos: pos}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch p.tok.kind {
		case tokLBracket:
			pos := p.tok.pos
			if err := p.bump(); err != nil {
				return nil, err
			}
			index, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBracket, "]"); err != nil {
				return nil, err
			}
			x = &IndexExpr{Target: x, Index: index, Pos: pos}

		case tokDot:
			pos := p.tok.pos
			if err := p.bump(); err != nil {
				return nil, err
			}
			method, err := p.expect(tokIdent, "method name")
			if err != nil {
				return nil, err
			}
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			x = &MethodCallExpr{Recv: x, Method: method.text, Args: args, Pos: pos}

		default:
			return x, nil
		}
	}
}

func (p *parser) parsePrimary() (Expr, error) {
	pos := p.tok.pos

	switch p.tok.kind {
	case tokInt:
		text := p.tok.text
		if err := p.bump(); err != nil {
			return nil, err
		}
		signed := strings.HasSuffix(text, "i")
		return &IntLit{Text: strings.TrimRight(text, "iu"), Signed: signed, Pos: pos}, nil

	case tokHexBytes:
		data, err := hex.DecodeString(p.tok.text)
		if err != nil {
			return nil, errorf(Parse, pos, "invalid hex byte-vector literal: %s", err)
		}
		if err := p.bump(); err != nil {
			return nil, err
		}
		return &BytesLit{Data: data, Pos: pos}, nil

	case tokLParen:
		if err := p.bump(); err != nil {
			return nil, err
		}
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return x, nil

	case tokLBracket:
		return p.parseArrayLit()

	case tokIdent:
		text := p.tok.text
		switch text {
		case "true", "false":
			if err := p.bump(); err != nil {
				return nil, err
			}
			return &BoolLit{Value: text == "true", Pos: pos}, nil
		}
		if keywords[text] {
			return nil, errorf(Parse, pos, "unexpected keyword %q in expression", text)
		}
		if err := p.bump(); err != nil {
			return nil, err
		}
		if p.tok.kind == tokLParen {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return &CallExpr{Name: text, Args: args, Pos: pos}, nil
		}
		return &IdentExpr{Name: text, Pos: pos}, nil
	}

	return nil, errorf(Parse, pos, "expected expression, found %s", p.tok)
}

// parseArrayLit parses [a, b, c] or the repeat form [e; n].
func (p *parser) parseArrayLit() (Expr, error) {
	pos := p.tok.pos
	if err := p.bump(); err != nil {
		return nil, err
	}

	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	ok, err := p.accept(tokSemi)
	if err != nil {
		return nil, err
	}
	if ok {
		countTok, err := p.expect(tokInt, "repeat count")
		if err != nil {
			return nil, err
		}
		count, convErr := strconv.Atoi(strings.TrimRight(countTok.text, "iu"))
		if convErr != nil || count <= 0 {
			return nil, errorf(Parse, countTok.pos, "invalid repeat count %q", countTok.text)
		}
		if _, err := p.expect(tokRBracket, "]"); err != nil {
			return nil, err
		}
		return &ArrayLit{Repeat: first, Count: count, Pos: pos}, nil
	}

	elems := []Expr{first}
	for {
		ok, err := p.accept(tokComma)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, x)
	}

	if _, err := p.expect(tokRBracket, "]"); err != nil {
		return nil, err
	}

	return &ArrayLit{Elems: elems, Pos: pos}, nil
}

func (p *parser) parseArgs() ([]Expr, error) {
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}

	var args []Expr
	for p.tok.kind != tokRParen {
		if len(args) > 0 {
			if _, err := p.expect(tokComma, ","); err != nil {
				return nil, err
			}
		}
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, x)
	}

	return args, p.bump()
}
