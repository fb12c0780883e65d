package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nf/syn/vm"
)

// ErrInterrupted is returned by Shell.ReadLine when its Cancel channel is
// closed while it waits for a line.
var ErrInterrupted = errors.New("interrupted")

// Prompt is shown by line editors that read input for a Shell.
const Prompt = "(/h for help) > "

const help = `Lines are passed to the program as input, except for these commands:
  /r          print registers
  /r=N        set R7 to N
  /rK=N       set register K to N
  /s          print the stack
  /d [ADDR]   disassemble from ADDR (default PC)
  /trace      toggle the trace log
  /h          print this help
  //...       pass /... to the program
`

// Shell reads lines from a source and interprets the ones that are
// commands, passing the rest to the machine. It implements vm.Input.
type Shell struct {
	// Machine is inspected and modified by commands.
	Machine *vm.Machine
	// Trace is toggled by /trace. It may be nil.
	Trace *TraceLog
	// Cancel interrupts a pending ReadLine when closed.
	Cancel <-chan struct{}

	src vm.Input
	out io.Writer

	req     chan bool
	res     chan readResult
	waiting bool
}

type readResult struct {
	line string
	err  error
}

// NewShell returns a Shell that reads lines from src and writes command
// output to out.
func NewShell(src vm.Input, out io.Writer) *Shell {
	return &Shell{src: src, out: out}
}

// ReadLine returns the next line that is not a command.
func (s *Shell) ReadLine() (string, error) {
	for {
		line, err := s.next()
		if err != nil {
			return "", err
		}
		if !strings.HasPrefix(line, "/") {
			return line, nil
		}
		if strings.HasPrefix(line, "//") {
			return line[1:], nil
		}
		s.command(line[1:])
	}
}

// next returns the next line from src. The source is only read on demand,
// so a terminal is left alone while the program runs.
func (s *Shell) next() (string, error) {
	if s.req == nil {
		s.req = make(chan bool)
		s.res = make(chan readResult)
		go s.read()
	}
	if !s.waiting {
		s.req <- true
		s.waiting = true
	}
	select {
	case r := <-s.res:
		s.waiting = false
		return r.line, r.err
	case <-s.Cancel:
		return "", ErrInterrupted
	}
}

func (s *Shell) read() {
	for range s.req {
		l, err := s.src.ReadLine()
		s.res <- readResult{l, err}
	}
}

func (s *Shell) command(cmd string) {
	m := s.Machine
	if m == nil && cmd != "h" && cmd != "trace" {
		fmt.Fprintln(s.out, "no machine")
		return
	}
	name, arg, _ := strings.Cut(cmd, " ")
	switch {
	case name == "h":
		io.WriteString(s.out, help)
	case name == "r":
		s.printRegs()
	case strings.HasPrefix(name, "r") && strings.Contains(name, "="):
		s.setReg(name[1:])
	case name == "s":
		fmt.Fprintf(s.out, "stack: %v\n", m.Stack)
	case name == "d":
		addr := int(m.PC)
		if arg != "" {
			a, err := strconv.Atoi(arg)
			if err != nil || a < 0 || a >= vm.MemSize {
				fmt.Fprintf(s.out, "bad address %q\n", arg)
				return
			}
			addr = a
		}
		for i := 0; i < 8 && addr < vm.MemSize; i++ {
			var line string
			line, addr = vm.Disasm(m.Mem, addr)
			fmt.Fprintln(s.out, line)
		}
	case name == "trace":
		if s.Trace == nil {
			fmt.Fprintln(s.out, "no trace log (use -trace)")
			return
		}
		if s.Trace.Toggle() {
			fmt.Fprintln(s.out, "trace on")
		} else {
			fmt.Fprintln(s.out, "trace off")
		}
	default:
		fmt.Fprintf(s.out, "unknown command %q; /h for help\n", "/"+cmd)
	}
}

func (s *Shell) printRegs() {
	m := s.Machine
	for i, v := range m.Reg {
		fmt.Fprintf(s.out, "R%d = %d\n", i, v)
	}
	fmt.Fprintf(s.out, "PC = %d\n", m.PC)
}

// setReg handles "=N" (R7) and "K=N".
func (s *Shell) setReg(arg string) {
	k, v, _ := strings.Cut(arg, "=")
	r := vm.NumRegs - 1
	if k != "" {
		n, err := strconv.Atoi(k)
		if err != nil || n < 0 || n >= vm.NumRegs {
			fmt.Fprintf(s.out, "bad register %q\n", k)
			return
		}
		r = n
	}
	n, err := strconv.Atoi(v)
	if err == nil {
		err = s.Machine.WriteTo(vm.RegBase+r, n)
	}
	if err != nil {
		fmt.Fprintf(s.out, "bad value %q: %v\n", v, err)
		return
	}
	fmt.Fprintf(s.out, "R%d = %d\n", r, n)
}

// Scanner returns a vm.Input that reads lines from r.
func Scanner(r io.Reader) vm.Input {
	return scanner{bufio.NewScanner(r)}
}

type scanner struct{ s *bufio.Scanner }

func (s scanner) ReadLine() (string, error) {
	if s.s.Scan() {
		return strings.TrimSuffix(s.s.Text(), "\r"), nil
	}
	if err := s.s.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
