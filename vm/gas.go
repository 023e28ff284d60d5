package vm

import "errors"

// GasMeter tracks the gas budget remaining for one transaction's execution.
// Every instruction declares its cost, charged before the instruction runs;
// charging past zero halts the frame stack immediately with OutOfGas.
type GasMeter struct {
	remaining uint64
	used      uint64
}

// NewGasMeter constructs a meter starting with limit gas units available.
func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{remaining: limit}
}

// Remaining returns the gas units not yet charged.
func (g *GasMeter) Remaining() uint64 {
	return g.remaining
}

// Used returns the gas units charged so far, the sum of every per-
// instruction cost along the executed path.
func (g *GasMeter) Used() uint64 {
	return g.used
}

// Charge deducts cost from the remaining budget, returning OutOfGas if
// cost exceeds what remains. The charge is all-or-nothing: a rejected
// charge leaves the meter unchanged.
func (g *GasMeter) Charge(cost uint64) error {
	if cost > g.remaining {
		return NewExecutionError(ErrOutOfGas, errGasExhausted)
	}

	g.remaining -= cost
	g.used += cost
	return nil
}

var errGasExhausted = errors.New("gas meter exhausted")

// callGas is the fixed cost of pushing a new frame, charged on both
// CallLocal and CallExternal before the callee's own instructions run.
const callGas uint64 = 200

// baseGas is the fixed per-instruction cost for opcodes that do not
// declare a more specific cost in instrCost.
const baseGas uint64 = 2
