// Package compiler translates the node's typed contract language into VM
// bytecode: TxScript, TxContract, and AssetScript top-level forms become
// vm.Script / vm.Contract values ready for execution. The pipeline is
// parse -> AST -> type-check -> codegen; every error is caught before the
// bytecode ever reaches the runtime.
package compiler

import "fmt"

// ErrorKind classifies a compile failure.
type ErrorKind int

// The compile error taxonomy. Parse covers lexing and grammar failures,
// TypeCheck covers every type-check failure, Duplicate covers redeclared
// functions/events/variables, OutOfRange covers limits of the bytecode
// format such as branch offsets, and UnsupportedArrayOp covers array
// operations the language deliberately rejects (equality, dynamic
// indexing).
const (
	Parse ErrorKind = iota
	TypeCheck
	Duplicate
	OutOfRange
	UnsupportedArrayOp
)

// String renders an ErrorKind for error messages.
func (k ErrorKind) String() string {
	switch k {
	case Parse:
		return "parse"
	case TypeCheck:
		return "type"
	case Duplicate:
		return "duplicate"
	case OutOfRange:
		return "out of range"
	case UnsupportedArrayOp:
		return "unsupported array op"
	}
	return "unknown"
}

// Pos is a line/column source location, 1-based.
type Pos struct {
	Line int
	Col  int
}

// String renders the position the way editors expect it.
func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Error is the single error type every compiler stage reports through. It
// carries the source location so tooling can surface the failure in place.
type Error struct {
	Kind ErrorKind
	Pos  Pos
	Msg  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %s", e.Pos, e.Kind, e.Msg)
}

func errorf(kind ErrorKind, pos Pos, format string, args ...any) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
