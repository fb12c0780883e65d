package vm

import (
	"errors"
	"fmt"
)

// Fault signifies the type of condition that stopped execution.
type Fault byte

const (
	OutOfRange Fault = iota + 1
	ValueOverflow
	InvalidOperand
	InvalidNumber
	InvalidOpcode
	InvalidRegister
	StackUnderflow
	DivideByZero
	InputFailure
	OutputFailure
)

func (f Fault) String() string {
	if s, ok := map[Fault]string{
		OutOfRange:      "address out of range",
		ValueOverflow:   "value overflow",
		InvalidOperand:  "invalid operand",
		InvalidNumber:   "invalid number",
		InvalidOpcode:   "invalid opcode",
		InvalidRegister: "invalid register",
		StackUnderflow:  "stack underflow",
		DivideByZero:    "division by zero",
		InputFailure:    "input failure",
		OutputFailure:   "output failure",
	}[f]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%.2x)", byte(f))
}

func (f Fault) Error() string { return f.String() }

// FaultError is a fault together with the word that caused it.
type FaultError struct {
	Fault
	Value int
}

func (e FaultError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Fault, e.Value)
}

func (e FaultError) Unwrap() error { return e.Fault }

// ErrNoInput is the cause of an InputFailure when the machine has no
// input provider.
var ErrNoInput = errors.New("no input provider")

// Error is returned by Step and Run when execution is stopped by a fault.
type Error struct {
	FaultError
	Op  Op
	PC  uint16
	Err error // cause of an InputFailure or OutputFailure
}

func (e *Error) Error() string {
	what := "executing " + e.Op.String()
	if !e.Op.Valid() {
		what = "fetching instruction"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v %s at %d", e.Fault, e.Err, what, e.PC)
	}
	return fmt.Sprintf("%s %s at %d", e.FaultError, what, e.PC)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.FaultError, e.Err}
	}
	return []error{e.FaultError}
}

// ioError is raised by in and out when the provider or writer fails.
type ioError struct {
	Fault
	err error
}
