package vm

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
)

// Context binds an Executor to the world it runs in. A nil WorldState (and
// nil Loader) means the stateless context: no field storage and no
// CallExternal. Balances do not depend on the context; they come from the
// BalanceState given to NewExecutor.
type Context struct {
	WorldState *database.WorldState
	Loader     ContractLoader
	Caller     database.AccountID
}

// Executor runs one transaction's frame stack to completion: a single
// shared operand stack, a stack of Frames, and a GasMeter charged before
// every instruction. A Frame holds only an index into the Executor's
// stack rather than owning its own.
type Executor struct {
	stack   []Val
	frames  []*Frame
	gas     *GasMeter
	ctx     Context
	balance *BalanceState

	evHandler func(v string, args ...any)
}

// NewExecutor constructs an Executor bound to ctx, charging against gas,
// and consuming/producing balances through balance (nil for a call tree
// that never touches payable methods).
func NewExecutor(ctx Context, gas *GasMeter, balance *BalanceState, evHandler func(v string, args ...any)) *Executor {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}
	return &Executor{ctx: ctx, gas: gas, balance: balance, evHandler: evHandler}
}

// WorldState returns the executor's current world-state view, updated in
// place as OpStoreField commits new versions during execution.
func (e *Executor) WorldState() *database.WorldState {
	return e.ctx.WorldState
}

// GasUsed returns the total gas charged so far.
func (e *Executor) GasUsed() uint64 {
	return e.gas.Used()
}

// =============================================================================

// ExecuteScript runs a stateless Script (TxScript or AssetScript) entry
// method. Scripts carry no persistent fields and no balance consumption.
func (e *Executor) ExecuteScript(script Script, methodIndex int, args []Val) ([]Val, error) {
	return e.entry(script, nil, "", methodIndex, args)
}

// ExecuteContract runs a stateful Contract method at address, the entry
// point a block producer calls for every transaction touching a contract.
func (e *Executor) ExecuteContract(contract Contract, address database.AccountID, methodIndex int, args []Val) ([]Val, error) {
	return e.entry(contract.Script, &contract, address, methodIndex, args)
}

func (e *Executor) entry(script Script, contract *Contract, address database.AccountID, methodIndex int, args []Val) ([]Val, error) {
	method, err := script.Method(methodIndex)
	if err != nil {
		return nil, err
	}
	if len(args) != method.ArgsLength {
		return nil, fmt.Errorf("vm: method expects %d args, got %d", method.ArgsLength, len(args))
	}

	if method.IsPayable {
		if err := e.consumeForEntry(address); err != nil {
			return nil, err
		}
	}

	locals := make([]Val, method.LocalsLength)
	copy(locals, args)

	e.frames = append(e.frames, &Frame{
		script:       script,
		contract:     contract,
		contractAddr: address,
		method:       method,
		locals:       locals,
		stackBase:    len(e.stack),
	})

	return e.run()
}

func (e *Executor) consumeForEntry(address database.AccountID) error {
	if e.balance == nil || e.balance.isEmpty(address) {
		return NewExecutionError(ErrEmptyBalanceForPayableMethod, errors.New("payable method entered with no approved or remaining balance"))
	}
	e.balance.consumeApproved(address)
	return nil
}

// =============================================================================

type stepResult struct {
	returned bool
	values   []Val
}

func (e *Executor) run() ([]Val, error) {
	for {
		if len(e.frames) == 0 {
			return nil, errors.New("vm: executor drained without a return")
		}

		top := e.frames[len(e.frames)-1]
		res, err := e.step(top)
		if err != nil {
			return nil, err
		}
		if res.returned {
			return res.values, nil
		}
	}
}

// step executes exactly one instruction of f:
// CallLocal/CallExternal advance pc and push a new frame; Return runs its
// semantics and pops the frame; everything else runs then advances pc.
func (e *Executor) step(f *Frame) (stepResult, error) {
	pcMax := len(f.method.Instrs)

	switch {
	case f.pc == pcMax:
		return e.doReturn(f)
	case f.pc > pcMax:
		return stepResult{}, NewExecutionError(ErrPcOverflow, fmt.Errorf("pc %d exceeds instruction count %d", f.pc, pcMax))
	}

	instr := f.method.Instrs[f.pc]

	switch instr.Op {
	case OpCallLocal:
		return e.execCallLocal(f, instr)
	case OpCallExternal:
		return e.execCallExternal(f, instr)
	case OpReturn:
		if err := e.gas.Charge(costOf(instr.Op)); err != nil {
			return stepResult{}, err
		}
		return e.doReturn(f)
	case OpJump:
		if err := e.gas.Charge(costOf(instr.Op)); err != nil {
			return stepResult{}, err
		}
		return stepResult{}, e.jump(f, f.pc+int(instr.IntOperand))
	case OpIfTrue:
		return stepResult{}, e.execBranch(f, instr, true)
	case OpIfFalse:
		return stepResult{}, e.execBranch(f, instr, false)
	default:
		if err := e.execSimple(f, instr); err != nil {
			return stepResult{}, err
		}
		f.pc++
		return stepResult{}, nil
	}
}

func (e *Executor) jump(f *Frame, target int) error {
	if target < 0 || target > len(f.method.Instrs) {
		return NewExecutionError(ErrInvalidInstrOffset, fmt.Errorf("jump target %d out of range [0,%d]", target, len(f.method.Instrs)))
	}
	f.pc = target
	return nil
}

func (e *Executor) execBranch(f *Frame, instr Instr, branchOn bool) error {
	if err := e.gas.Charge(costOf(instr.Op)); err != nil {
		return err
	}

	v, err := e.pop(f)
	if err != nil {
		return err
	}
	cond, err := v.AsBool()
	if err != nil {
		return err
	}

	if cond == branchOn {
		return e.jump(f, f.pc+int(instr.IntOperand))
	}
	f.pc++
	return nil
}

// =============================================================================

func (e *Executor) execCallLocal(f *Frame, instr Instr) (stepResult, error) {
	if err := e.gas.Charge(costOf(OpCallLocal)); err != nil {
		return stepResult{}, err
	}
	if err := e.gas.Charge(callGas); err != nil {
		return stepResult{}, err
	}

	f.pc++

	methodIndex := int(instr.IntOperand)
	callee, err := f.script.Method(methodIndex)
	if err != nil {
		return stepResult{}, err
	}

	args, err := e.popValues(f, callee.ArgsLength)
	if err != nil {
		return stepResult{}, err
	}

	if callee.IsPayable {
		if err := e.consumeForEntry(f.contractAddr); err != nil {
			return stepResult{}, err
		}
	}

	locals := make([]Val, callee.LocalsLength)
	copy(locals, args)

	e.frames = append(e.frames, &Frame{
		script:       f.script,
		contract:     f.contract,
		contractAddr: f.contractAddr,
		method:       callee,
		locals:       locals,
		stackBase:    len(e.stack),
	})

	return stepResult{}, nil
}

func (e *Executor) execCallExternal(f *Frame, instr Instr) (stepResult, error) {
	if err := e.gas.Charge(costOf(OpCallExternal)); err != nil {
		return stepResult{}, err
	}
	if err := e.gas.Charge(callGas); err != nil {
		return stepResult{}, err
	}

	f.pc++

	if e.ctx.Loader == nil {
		return stepResult{}, NewExecutionError(ErrInvalidContractAddress, errors.New("stateless execution cannot resolve external contracts"))
	}

	addrVal, err := e.pop(f)
	if err != nil {
		return stepResult{}, err
	}
	address, err := addrVal.AsAddress()
	if err != nil {
		return stepResult{}, err
	}

	contract, err := e.ctx.Loader.LoadContract(address)
	if err != nil {
		return stepResult{}, err
	}

	methodIndex := int(instr.IntOperand)
	callee, err := contract.Method(methodIndex)
	if err != nil {
		return stepResult{}, err
	}
	if !callee.IsPublic {
		return stepResult{}, NewExecutionError(ErrExternalPrivateMethodCall, fmt.Errorf("method %d on %s is private", methodIndex, address))
	}

	args, err := e.popValues(f, callee.ArgsLength)
	if err != nil {
		return stepResult{}, err
	}

	if callee.IsPayable {
		if err := e.consumeForEntry(address); err != nil {
			return stepResult{}, err
		}
		if e.ctx.WorldState != nil {
			var state database.AccountState
			if err := e.ctx.WorldState.Get(address, &state); err == nil && state.Balance > 0 {
				e.balance.pullOnChainAlph(address, state.Balance)
			}
		}
	}

	locals := make([]Val, callee.LocalsLength)
	copy(locals, args)

	e.frames = append(e.frames, &Frame{
		script:       contract.Script,
		contract:     &contract,
		contractAddr: address,
		method:       callee,
		locals:       locals,
		stackBase:    len(e.stack),
	})

	return stepResult{}, nil
}

func (e *Executor) doReturn(f *Frame) (stepResult, error) {
	values, err := e.popValues(f, f.method.ReturnLength)
	if err != nil {
		return stepResult{}, err
	}

	if len(e.stack) != f.stackBase {
		return stepResult{}, NewExecutionError(ErrInvalidReturnLength, fmt.Errorf("operand stack left %d unconsumed values on return", len(e.stack)-f.stackBase))
	}

	e.frames = e.frames[:len(e.frames)-1]

	if len(e.frames) == 0 {
		return stepResult{returned: true, values: values}, nil
	}

	for _, v := range values {
		e.push(v)
	}

	return stepResult{}, nil
}

// =============================================================================

func (e *Executor) push(v Val) {
	e.stack = append(e.stack, v)
}

func (e *Executor) pop(f *Frame) (Val, error) {
	if len(e.stack) <= f.stackBase {
		return Val{}, NewExecutionError(ErrStackUnderflow, errors.New("operand stack underflow"))
	}
	v := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return v, nil
}

// popValues pops n values off the stack and returns them in their original
// push order (the first popped value, the most recently pushed, lands at
// the end of the result).
func (e *Executor) popValues(f *Frame, n int) ([]Val, error) {
	if n == 0 {
		return nil, nil
	}

	values := make([]Val, n)
	for i := n - 1; i >= 0; i-- {
		v, err := e.pop(f)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// =============================================================================

func (e *Executor) loadField(f *Frame, index int) (Val, error) {
	if f.contract == nil {
		return Val{}, NewExecutionError(ErrInvalidFieldIndex, errors.New("field access outside a stateful contract frame"))
	}
	if e.ctx.WorldState == nil {
		return Val{}, NewExecutionError(ErrInvalidFieldIndex, errors.New("no world state bound to this execution"))
	}

	wantKind, err := f.contract.FieldKind(index)
	if err != nil {
		return Val{}, err
	}

	var state database.AccountState
	if err := e.ctx.WorldState.Get(f.contractAddr, &state); err != nil && !errors.Is(err, database.ErrTrieKeyNotFound) {
		return Val{}, NewExecutionError(ErrInvalidFieldIndex, err)
	}

	vals, err := decodeFields(state.Fields, f.contract.FieldTypes)
	if err != nil {
		return Val{}, NewExecutionError(ErrInvalidFieldType, err)
	}

	v := vals[index]
	if v.Kind != wantKind {
		return Val{}, NewExecutionError(ErrInvalidFieldType, errKindMismatch(wantKind, v.Kind))
	}
	return v, nil
}

func (e *Executor) storeField(f *Frame, index int, v Val) error {
	if f.contract == nil {
		return NewExecutionError(ErrInvalidFieldIndex, errors.New("field access outside a stateful contract frame"))
	}
	if e.ctx.WorldState == nil {
		return NewExecutionError(ErrInvalidFieldIndex, errors.New("no world state bound to this execution"))
	}

	wantKind, err := f.contract.FieldKind(index)
	if err != nil {
		return err
	}
	if v.Kind != wantKind {
		return NewExecutionError(ErrInvalidFieldType, errKindMismatch(wantKind, v.Kind))
	}

	var state database.AccountState
	if err := e.ctx.WorldState.Get(f.contractAddr, &state); err != nil && !errors.Is(err, database.ErrTrieKeyNotFound) {
		return NewExecutionError(ErrInvalidFieldIndex, err)
	}

	vals, err := decodeFields(state.Fields, f.contract.FieldTypes)
	if err != nil {
		return NewExecutionError(ErrInvalidFieldType, err)
	}
	vals[index] = v

	encoded, err := encodeFields(vals)
	if err != nil {
		return err
	}
	state.Fields = encoded

	newWS, err := e.ctx.WorldState.Put(f.contractAddr, state)
	if err != nil {
		return err
	}
	e.ctx.WorldState = newWS

	return nil
}

// =============================================================================

func hashBytes(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

func verifySignature(pubKey, hash, sig []byte) bool {
	if len(sig) == 65 {
		sig = sig[:64]
	}
	return crypto.VerifySignature(pubKey, hash, sig)
}
