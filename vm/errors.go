package vm

import (
	"errors"
	"fmt"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
)

// ExecutionErrorKind enumerates the exhaustive set of ways executing a
// method can abort. Every kind aborts the current
// transaction; any world-state writes it made are rolled back.
type ExecutionErrorKind string

// The exhaustive set of execution failure kinds.
const (
	ErrOutOfGas                     ExecutionErrorKind = "OutOfGas"
	ErrStackUnderflow                ExecutionErrorKind = "StackUnderflow"
	ErrInvalidType                   ExecutionErrorKind = "InvalidType"
	ErrInvalidLocalIndex             ExecutionErrorKind = "InvalidLocalIndex"
	ErrInvalidFieldIndex             ExecutionErrorKind = "InvalidFieldIndex"
	ErrInvalidFieldType              ExecutionErrorKind = "InvalidFieldType"
	ErrInvalidMethodIndex            ExecutionErrorKind = "InvalidMethodIndex"
	ErrInvalidInstrOffset            ExecutionErrorKind = "InvalidInstrOffset"
	ErrPcOverflow                    ExecutionErrorKind = "PcOverflow"
	ErrExternalPrivateMethodCall     ExecutionErrorKind = "ExternalPrivateMethodCall"
	ErrEmptyBalanceForPayableMethod  ExecutionErrorKind = "EmptyBalanceForPayableMethod"
	ErrInvalidContractAddress        ExecutionErrorKind = "InvalidContractAddress"
	ErrInvalidReturnLength           ExecutionErrorKind = "InvalidReturnLength"
	ErrArithmeticError               ExecutionErrorKind = "ArithmeticError"
)

// ExecutionError reports why a frame's execution halted.
type ExecutionError struct {
	Kind ExecutionErrorKind
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error [%s]: %s", e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError wraps err with an ExecutionErrorKind.
func NewExecutionError(kind ExecutionErrorKind, err error) *ExecutionError {
	return &ExecutionError{Kind: kind, Err: err}
}

var (
	errDivByZero           = errors.New("division by zero")
	errI256Overflow        = errors.New("I256 result outside [-2^255, 2^255-1]")
	errU256Overflow        = errors.New("U256 result outside [0, 2^256-1]")
	errInsufficientBalance = errors.New("insufficient remaining balance")
)

func errKindMismatch(want, got Kind) error {
	return fmt.Errorf("expected %s, got %s", want, got)
}

func errMethodIndex(index, count int) error {
	return fmt.Errorf("method index %d out of range [0,%d)", index, count)
}

func errFieldIndex(index, count int) error {
	return fmt.Errorf("field index %d out of range [0,%d)", index, count)
}

func errLocalIndex(index, count int) error {
	return fmt.Errorf("local index %d out of range [0,%d)", index, count)
}

func errUnknownContract(address database.AccountID) error {
	return fmt.Errorf("no contract loaded at address %s", address)
}
