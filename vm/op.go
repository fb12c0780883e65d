package vm

import "fmt"

// Op represents an opcode.
type Op uint16

const (
	HALT Op = iota
	SET
	PUSH
	POP
	EQ
	GT
	JMP
	JT
	JF
	ADD
	MULT
	MOD
	AND
	OR
	NOT
	RMEM
	WMEM
	CALL
	RET
	OUT
	IN
	NOOP

	numOps
)

var opNames = [numOps]string{
	"halt", "set", "push", "pop", "eq", "gt", "jmp", "jt", "jf", "add",
	"mult", "mod", "and", "or", "not", "rmem", "wmem", "call", "ret",
	"out", "in", "noop",
}

// opArgs holds the number of operand words that follow each opcode.
var opArgs = [numOps]int{
	HALT: 0, SET: 2, PUSH: 1, POP: 1, EQ: 3, GT: 3, JMP: 1, JT: 2, JF: 2,
	ADD: 3, MULT: 3, MOD: 3, AND: 3, OR: 3, NOT: 2, RMEM: 2, WMEM: 2,
	CALL: 1, RET: 0, OUT: 1, IN: 1, NOOP: 0,
}

// Valid reports whether op is one of the 22 defined opcodes.
func (op Op) Valid() bool { return op < numOps }

// Args returns the number of operand words consumed by op.
// It returns 0 for invalid opcodes.
func (op Op) Args() int {
	if !op.Valid() {
		return 0
	}
	return opArgs[op]
}

// Size returns the number of words occupied by the instruction,
// including the opcode itself.
func (op Op) Size() int { return 1 + op.Args() }

func (op Op) String() string {
	if !op.Valid() {
		return fmt.Sprintf("op(%d)", uint16(op))
	}
	return opNames[op]
}

// ParseOp returns the opcode with the given name.
func ParseOp(name string) (Op, bool) {
	for i, n := range opNames {
		if n == name {
			return Op(i), true
		}
	}
	return 0, false
}
