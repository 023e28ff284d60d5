package vm

import "github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"

// Frame is one activation record on the VM's call stack: the program
// counter, the method being run, its locals, and enough context to resume
// the caller when it returns. Frames do not carry their own operand
// stack; they hold indices into the single stack the Executor owns, so
// returning becomes "advance the parent frame's stack pointer" rather
// than a stack-of-stacks copy.
type Frame struct {
	script       Script           // the contract/script this frame's method belongs to, for CallLocal resolution.
	contract     *Contract        // non-nil only for stateful contract frames; nil for stateless scripts.
	contractAddr database.AccountID

	method Method
	pc     int
	locals []Val

	// stackBase is the length of the executor's shared operand stack at
	// the moment this frame was pushed: everything above it belongs to
	// this frame's own pushes. Return pops exactly ReturnLength values and
	// fails with InvalidReturnLength if anything else is left above it.
	stackBase int
}
