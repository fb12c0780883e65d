package vm

import (
	"fmt"
	"strings"
)

// Arg is a raw operand word as it appears in memory.
type Arg uint16

// Reg reports the register denoted by a, if any.
func (a Arg) Reg() (int, bool) {
	if isReg(int(a)) {
		return int(a) - RegBase, true
	}
	return 0, false
}

func (a Arg) String() string {
	if r, ok := a.Reg(); ok {
		return fmt.Sprintf("R%d", r)
	}
	return fmt.Sprint(uint16(a))
}

// Trace describes one executed instruction.
type Trace struct {
	PC     uint16
	Op     Op
	Args   []Arg    // raw operand words
	Values []uint16 // operand values as resolved during execution
}

func (t Trace) String() string {
	s := fmt.Sprintf("PC: %5d -- %4s %s", t.PC, t.Op, joinWords(t.Args))
	if len(t.Values) > 0 {
		s += " -- " + joinWords(t.Values)
	}
	return s
}

// TraceFunc is called after each instruction executed by Step.
type TraceFunc func(Trace)

// NoTrace is a TraceFunc that does nothing.
var NoTrace TraceFunc = func(Trace) {}

func joinWords[T Arg | uint16](ws []T) string {
	var b strings.Builder
	for i, w := range ws {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprint(&b, w)
	}
	return b.String()
}
