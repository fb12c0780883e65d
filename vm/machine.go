// Package vm provides an implementation of the Synacor architecture,
// called Machine, that can be used to execute its 22-instruction bytecode.
package vm

import "io"

// Machine is an implementation of the Synacor CPU.
type Machine struct {
	Mem    *Memory
	PC     uint16
	Reg    [NumRegs]uint16
	Stack  Stack
	Halted bool

	Out io.Writer // receives one byte per out instruction; may be nil
	In  Input     // consulted by in when no input is pending

	input []byte
	vals  []uint16
}

// Input provides lines of text to the in instruction.
type Input interface {
	// ReadLine blocks until a line is available and returns it without
	// its trailing newline.
	ReadLine() (string, error)
}

// NewMachine returns a Machine that executes the program in mem,
// starting at address 0.
func NewMachine(mem *Memory) *Machine {
	return &Machine{Mem: mem}
}

// Feed queues text as pending input for the in instruction.
func (m *Machine) Feed(text string) {
	m.input = append(m.input, text...)
}

// Pending returns the number of input bytes not yet consumed.
func (m *Machine) Pending() int { return len(m.input) }

// Run executes instructions until the machine halts or a fault occurs.
// The returned error, if any, is an *Error.
func (m *Machine) Run(tf TraceFunc) error {
	m.Halted = false
	for !m.Halted {
		if err := m.Step(tf); err != nil {
			return err
		}
	}
	return nil
}

// Step executes the instruction at m.PC and then calls tf, if non-nil,
// with a description of it. It returns a non-nil *Error only if the
// instruction faults, in which case tf is not called.
func (m *Machine) Step(tf TraceFunc) (err error) {
	var (
		pc = m.PC
		op = Op(MaxWord) // not yet fetched
	)
	defer func() {
		if e := recover(); e != nil {
			switch e := e.(type) {
			case FaultError:
				err = &Error{FaultError: e, Op: op, PC: pc}
			case ioError:
				err = &Error{FaultError: FaultError{Fault: e.Fault}, Op: op, PC: pc, Err: e.err}
			default:
				panic(e)
			}
		}
	}()

	op = Op(m.arg(0))
	if !op.Valid() {
		panic(FaultError{InvalidOpcode, int(op)})
	}

	var args []Arg
	if tf != nil {
		args = m.rawArgs(op)
	}
	m.vals = m.vals[:0]

	m.exec(op)

	if tf != nil {
		tf(Trace{
			PC:     pc,
			Op:     op,
			Args:   args,
			Values: append([]uint16(nil), m.vals...),
		})
	}
	return nil
}

func (m *Machine) exec(op Op) {
	pc := int(m.PC)

	switch op {
	case HALT:
		m.Halted = true
		return
	case SET:
		a := m.arg(1)
		if !isReg(a) {
			panic(FaultError{InvalidRegister, a})
		}
		m.store(a, m.num(2))
	case PUSH:
		m.Stack.Push(m.num(1))
	case POP:
		a := m.arg(1)
		v, ok := m.Stack.Pop()
		if !ok {
			panic(FaultError{StackUnderflow, a})
		}
		m.vals = append(m.vals, v)
		m.store(a, v)
	case EQ, GT, ADD, MULT, MOD, AND, OR:
		a, b, c := m.arg(1), m.num(2), m.num(3)
		m.store(a, arith(op, b, c))
	case NOT:
		a := m.arg(1)
		m.store(a, 0x7fff^m.num(2))
	case JMP:
		m.PC = m.addr(m.num(1))
		return
	case JT, JF:
		cond, target := m.num(1), m.num(2)
		if (cond != 0) == (op == JT) {
			m.PC = m.addr(target)
			return
		}
	case RMEM:
		a := m.arg(1)
		v := m.load(int(m.num(2)))
		m.vals = append(m.vals, v)
		m.store(a, v)
	case WMEM:
		a := m.num(1)
		m.store(int(a), m.num(2))
	case CALL:
		target := m.addr(m.num(1))
		m.Stack.Push(uint16(pc + 2))
		m.PC = target
		return
	case RET:
		v, ok := m.Stack.Pop()
		if !ok {
			m.Halted = true
			return
		}
		m.vals = append(m.vals, v)
		m.PC = m.addr(v)
		return
	case OUT:
		c := byte(m.num(1))
		if m.Out != nil {
			if _, err := m.Out.Write([]byte{c}); err != nil {
				panic(ioError{OutputFailure, err})
			}
		}
	case IN:
		a := m.arg(1)
		c := m.readInput()
		m.vals = append(m.vals, uint16(c))
		m.store(a, uint16(c))
	case NOOP:
	}

	m.PC = uint16(pc + op.Size())
}

func arith(op Op, b, c uint16) uint16 {
	switch op {
	case EQ:
		return boolWord(b == c)
	case GT:
		return boolWord(b > c)
	case ADD:
		return uint16((int(b) + int(c)) % MemSize)
	case MULT:
		return uint16((int(b) * int(c)) % MemSize)
	case MOD:
		if c == 0 {
			panic(FaultError{DivideByZero, int(c)})
		}
		return b % c
	case AND:
		return b & c
	case OR:
		return b | c
	}
	panic("unreachable")
}

func boolWord(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

func (m *Machine) readInput() byte {
	if len(m.input) == 0 {
		if m.In == nil {
			panic(ioError{InputFailure, ErrNoInput})
		}
		line, err := m.In.ReadLine()
		if err != nil {
			panic(ioError{InputFailure, err})
		}
		m.input = append(m.input, line...)
		m.input = append(m.input, '\n')
	}
	c := m.input[0]
	m.input = m.input[1:]
	return c
}

// ReadFrom returns the contents of the memory cell or register denoted by x.
func (m *Machine) ReadFrom(x int) (uint16, error) {
	switch {
	case validAddr(x):
		return m.Mem.Read(x)
	case isReg(x):
		return m.Reg[x-RegBase], nil
	}
	return 0, FaultError{InvalidOperand, x}
}

// WriteTo stores v in the memory cell or register denoted by x.
func (m *Machine) WriteTo(x, v int) error {
	switch {
	case validAddr(x):
		return m.Mem.Write(x, v)
	case isReg(x):
		if v < 0 || v > MaxWord {
			return FaultError{ValueOverflow, v}
		}
		m.Reg[x-RegBase] = uint16(v)
		return nil
	}
	return FaultError{InvalidOperand, x}
}

// Number resolves n as a value operand: a literal in [0,32767] is
// returned unchanged and a register reference yields the register's
// contents.
func (m *Machine) Number(n int) (uint16, error) {
	switch {
	case isReg(n):
		return m.Reg[n-RegBase], nil
	case n >= 0 && n < MemSize:
		return uint16(n), nil
	}
	return 0, FaultError{InvalidNumber, n}
}

// arg returns the raw word at m.PC+k.
func (m *Machine) arg(k int) int {
	v, err := m.Mem.Read(int(m.PC) + k)
	check(err)
	return int(v)
}

// num resolves the operand at m.PC+k as a number.
func (m *Machine) num(k int) uint16 {
	v, err := m.Number(m.arg(k))
	check(err)
	m.vals = append(m.vals, v)
	return v
}

func (m *Machine) load(x int) uint16 {
	v, err := m.ReadFrom(x)
	check(err)
	return v
}

func (m *Machine) store(x int, v uint16) {
	check(m.WriteTo(x, int(v)))
}

// addr checks that v is a valid jump target.
func (m *Machine) addr(v uint16) uint16 {
	if !validAddr(int(v)) {
		panic(FaultError{OutOfRange, int(v)})
	}
	return v
}

// rawArgs returns the operand words of the instruction at m.PC,
// stopping early at the end of memory.
func (m *Machine) rawArgs(op Op) []Arg {
	args := make([]Arg, 0, op.Args())
	for k := 1; k <= op.Args(); k++ {
		v, err := m.Mem.Read(int(m.PC) + k)
		if err != nil {
			break
		}
		args = append(args, Arg(v))
	}
	return args
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}
