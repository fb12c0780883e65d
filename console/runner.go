// Package console runs programs on a vm.Machine attached to a text
// console, with a command shell and an instruction trace log.
package console

import (
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/nf/syn/vm"
)

// StateKind describes why a StateFunc was called.
type StateKind int

const (
	WaitState  StateKind = iota // waiting for a line of input
	HaltState                   // program halted
	FaultState                  // program stopped by a fault
	BreakState                  // stopped at the breakpoint
	DebugState                  // passing the debug address
	PauseState                  // paused, or single stepping
)

// NoAddr clears the breakpoint or debug address when passed to Debug.
const NoAddr = -1

// StateFunc is called by the Runner, from the goroutine that executes the
// machine, when the machine's state is of interest.
type StateFunc func(*vm.Machine, StateKind)

// stepsPerCheck is how many instructions are executed between checks for
// a pending reset.
const stepsPerCheck = 1 << 10

// Runner executes a program image with its input and output attached to a
// console.
type Runner struct {
	Out   io.Writer // program output
	Trace *TraceLog // may be nil
	State StateFunc // may be nil
	// Setup, if non-nil, is called with each new machine before it runs.
	Setup func(*vm.Machine)

	shell *Shell
	dev   bool

	mu     sync.Mutex
	cancel chan struct{}
	next   []byte

	brk, dbg atomic.Int32
	paused   atomic.Bool
	wake     chan struct{}
}

// NewRunner returns a Runner that reads program input through shell.
// In dev mode, Run does not return when the program stops but waits for
// Reset to supply a new image.
func NewRunner(shell *Shell, devMode bool) *Runner {
	r := &Runner{shell: shell, dev: devMode, wake: make(chan struct{}, 1)}
	r.brk.Store(NoAddr)
	r.dbg.Store(NoAddr)
	return r
}

// Debug applies a debugger command to the running program:
//
//	b, break   stop before executing the instruction at addr
//	d, debug   report DebugState each time addr is executed
//	p, pause   stop before the next instruction
//	s, step    execute one instruction and stop again
//	c, cont    resume execution
//
// Passing NoAddr to b or d clears the address.
func (r *Runner) Debug(cmd string, addr int) {
	switch cmd {
	case "b", "break":
		r.brk.Store(int32(addr))
	case "d", "debug":
		r.dbg.Store(int32(addr))
	case "p", "pause":
		r.paused.Store(true)
	case "s", "step":
		r.paused.Store(true)
		r.resume()
	case "c", "cont":
		r.paused.Store(false)
		r.resume()
	}
}

func (r *Runner) resume() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Reset stops the running program and starts image in its place.
// It may only be called in dev mode.
func (r *Runner) Reset(image []byte) {
	if !r.dev {
		panic("Reset called while not running in dev mode")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = image
	if r.cancel != nil {
		select {
		case <-r.cancel:
		default:
			close(r.cancel)
		}
	}
}

// Run executes image until it halts, returning any fault as a *vm.Error.
// In dev mode Run only returns when the program's input is exhausted.
func (r *Runner) Run(image []byte) error {
	for {
		cancel := make(chan struct{})
		r.mu.Lock()
		if r.next != nil {
			// Reset before this Run, or between runs.
			image, r.next = r.next, nil
		}
		r.cancel = cancel
		r.mu.Unlock()

		m, err := r.newMachine(image)
		if err == nil {
			err = r.exec(m, cancel)
		}
		if reset, ok := r.takeReset(cancel); ok {
			log.Print("reset")
			image = reset
			continue
		}
		if m != nil {
			if err != nil {
				r.state(m, FaultState)
			} else {
				r.state(m, HaltState)
			}
		}
		if !r.dev || errors.Is(err, io.EOF) {
			return err
		}
		if err != nil {
			log.Print(err)
		} else {
			log.Print("halted")
		}
		<-cancel
		image, _ = r.takeReset(cancel)
		log.Print("reset")
	}
}

func (r *Runner) takeReset(cancel chan struct{}) ([]byte, bool) {
	select {
	case <-cancel:
	default:
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	image := r.next
	r.next = nil
	return image, true
}

func (r *Runner) newMachine(image []byte) (*vm.Machine, error) {
	mem, err := vm.Load(image)
	if err != nil {
		return nil, err
	}
	m := vm.NewMachine(mem)
	m.Out = r.Out
	m.In = waitInput{r, m}
	if r.Setup != nil {
		r.Setup(m)
	}
	return m, nil
}

func (r *Runner) exec(m *vm.Machine, cancel <-chan struct{}) error {
	r.shell.Machine = m
	r.shell.Cancel = cancel

	tf := vm.NoTrace
	if r.Trace != nil {
		tf = r.Trace.Trace
	}
	resumed := false
	for n := 0; !m.Halted; n++ {
		if n%stepsPerCheck == 0 {
			select {
			case <-cancel:
				return ErrInterrupted
			default:
			}
		}
		if resumed {
			resumed = false
		} else if k, ok := r.stopAt(m.PC); ok {
			if err := r.wait(m, k, cancel); err != nil {
				return err
			}
			resumed = true
		}
		if int32(m.PC) == r.dbg.Load() {
			r.state(m, DebugState)
		}
		if err := m.Step(tf); err != nil {
			return err
		}
	}
	return nil
}

// stopAt reports whether execution should stop before the instruction
// at pc, and why.
func (r *Runner) stopAt(pc uint16) (StateKind, bool) {
	if r.paused.Load() {
		return PauseState, true
	}
	if int32(pc) == r.brk.Load() {
		r.paused.Store(true)
		return BreakState, true
	}
	return 0, false
}

// wait reports k and blocks until the program is resumed by Debug or
// the run is cancelled.
func (r *Runner) wait(m *vm.Machine, k StateKind, cancel <-chan struct{}) error {
	select {
	case <-r.wake:
	default:
	}
	r.state(m, k)
	select {
	case <-r.wake:
		return nil
	case <-cancel:
		return ErrInterrupted
	}
}

func (r *Runner) state(m *vm.Machine, k StateKind) {
	if r.State != nil {
		r.State(m, k)
	}
}

// waitInput reports WaitState before reading a line from the shell.
type waitInput struct {
	r *Runner
	m *vm.Machine
}

func (in waitInput) ReadLine() (string, error) {
	in.r.state(in.m, WaitState)
	return in.r.shell.ReadLine()
}
