package compiler

import (
	"github.com/blockflow-labs/blockflow-node/vm"
)

// SimpleFunc is one function-table entry: everything a call site needs to
// emit a CallLocal/CallExternal against the function without re-reading
// its body.
type SimpleFunc struct {
	Index        int
	IsPublic     bool
	IsPayable    bool
	ArgTypes     []Type
	ReturnTypes  []Type
	ArgsLength   int // Flattened slot count across ArgTypes.
	ReturnLength int // Flattened slot count across ReturnTypes.
}

// EventInfo is one event-table entry: the declared field types an emit
// site must match.
type EventInfo struct {
	FieldTypes []Type
}

// Artifact is one compiled top-level form. Script always carries the
// bytecode; Contract is additionally populated for a TxContract, pairing
// the bytecode with its flattened persistent-field schema.
type Artifact struct {
	Kind     UnitKind
	Name     string
	Script   vm.Script
	Contract *vm.Contract
	Funcs    map[string]SimpleFunc
	Events   map[string]EventInfo
}

// Compile compiles a source containing exactly one top-level form.
func Compile(source string) (*Artifact, error) {
	artifacts, err := CompileAll(source)
	if err != nil {
		return nil, err
	}
	if len(artifacts) != 1 {
		return nil, errorf(Parse, Pos{Line: 1, Col: 1}, "expected exactly one top-level form, found %d", len(artifacts))
	}
	return artifacts[0], nil
}

// CompileAll compiles every top-level form in source, in declaration
// order. Units may reference each other by contract type, so signatures
// for every unit are collected before any body is generated.
func CompileAll(source string) ([]*Artifact, error) {
	p, err := newParser(source)
	if err != nil {
		return nil, err
	}

	units, err := p.parseUnits()
	if err != nil {
		return nil, err
	}

	contracts := make(map[string]bool)
	for _, unit := range units {
		if contracts[unit.Name] {
			return nil, errorf(Duplicate, unit.Pos, "unit %q is defined twice", unit.Name)
		}
		if unit.Kind == TxContract {
			contracts[unit.Name] = true
		}
	}

	sigs := make(map[string]*unitSig, len(units))
	for _, unit := range units {
		sig, err := buildUnitSig(unit, contracts)
		if err != nil {
			return nil, err
		}
		sigs[unit.Name] = sig
	}

	artifacts := make([]*Artifact, 0, len(units))
	for _, unit := range units {
		artifact, err := compileUnit(unit, sigs[unit.Name], sigs)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}

	return artifacts, nil
}

// =============================================================================

// unitSig is a unit's interface surface, collected before codegen: the
// function table, the event table, and the resolved field layout.
type unitSig struct {
	kind UnitKind
	name string

	funcs     map[string]SimpleFunc
	funcOrder []string

	events map[string]EventInfo

	fieldSyms  map[string]symbol
	fieldTypes []vm.Kind
}

// buildUnitSig resolves every declared type in unit and assembles its
// function table, event table, and flattened field layout. Duplicate
// function ids and event idents are rejected here, before any body is
// looked at.
func buildUnitSig(unit *SourceUnit, contracts map[string]bool) (*unitSig, error) {
	sig := &unitSig{
		kind:      unit.Kind,
		name:      unit.Name,
		funcs:     make(map[string]SimpleFunc, len(unit.Funcs)),
		funcOrder: make([]string, 0, len(unit.Funcs)),
		events:    make(map[string]EventInfo, len(unit.Events)),
		fieldSyms: make(map[string]symbol, len(unit.Fields)),
	}

	slot := 0
	for _, field := range unit.Fields {
		if _, exists := sig.fieldSyms[field.Name]; exists {
			return nil, errorf(Duplicate, field.Pos, "field %q is declared twice", field.Name)
		}

		t, err := resolveType(field.Type, contracts)
		if err != nil {
			return nil, err
		}

		sig.fieldSyms[field.Name] = symbol{typ: t, isField: true, mutable: true, slot: slot, ref: -1}
		sig.fieldTypes = append(sig.fieldTypes, t.FlattenedKinds()...)
		slot += t.FlattenedLength()
	}

	for i, fn := range unit.Funcs {
		if _, exists := sig.funcs[fn.ID]; exists {
			return nil, errorf(Duplicate, fn.Pos, "function %q is defined twice", fn.ID)
		}

		entry := SimpleFunc{Index: i, IsPublic: fn.IsPublic, IsPayable: fn.IsPayable}

		for _, arg := range fn.Args {
			t, err := resolveType(arg.Type, contracts)
			if err != nil {
				return nil, err
			}
			entry.ArgTypes = append(entry.ArgTypes, t)
			entry.ArgsLength += t.FlattenedLength()
		}

		for _, ret := range fn.Returns {
			t, err := resolveType(ret, contracts)
			if err != nil {
				return nil, err
			}
			entry.ReturnTypes = append(entry.ReturnTypes, t)
			entry.ReturnLength += t.FlattenedLength()
		}

		sig.funcs[fn.ID] = entry
		sig.funcOrder = append(sig.funcOrder, fn.ID)
	}

	for _, ev := range unit.Events {
		if _, exists := sig.events[ev.Ident]; exists {
			return nil, errorf(Duplicate, ev.Pos, "event %q is declared twice", ev.Ident)
		}

		var info EventInfo
		for _, field := range ev.Fields {
			t, err := resolveType(field.Type, contracts)
			if err != nil {
				return nil, err
			}
			info.FieldTypes = append(info.FieldTypes, t)
		}
		sig.events[ev.Ident] = info
	}

	return sig, nil
}

// compileUnit generates bytecode for every function in unit, applying the
// script visibility restriction: a TxScript's first method must be pub
// and every other method private.
func compileUnit(unit *SourceUnit, sig *unitSig, sigs map[string]*unitSig) (*Artifact, error) {
	if unit.Kind == TxScript {
		if !unit.Funcs[0].IsPublic {
			return nil, errorf(TypeCheck, unit.Funcs[0].Pos, "a TxScript's first method must be pub")
		}
		for _, fn := range unit.Funcs[1:] {
			if fn.IsPublic {
				return nil, errorf(TypeCheck, fn.Pos, "every TxScript method after the first must be private")
			}
		}
	}

	methods := make([]vm.Method, 0, len(unit.Funcs))
	for _, fn := range unit.Funcs {
		method, err := compileFunc(unit, fn, sig, sigs)
		if err != nil {
			return nil, err
		}
		methods = append(methods, method)
	}

	artifact := &Artifact{
		Kind:   unit.Kind,
		Name:   unit.Name,
		Script: vm.Script{Methods: methods},
		Funcs:  sig.funcs,
		Events: sig.events,
	}

	if unit.Kind == TxContract {
		artifact.Contract = &vm.Contract{
			Script:     artifact.Script,
			FieldTypes: sig.fieldTypes,
		}
	}

	return artifact, nil
}
