package console

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/nf/syn/vm"
)

const r0 = vm.RegBase

func image(words ...uint16) []byte {
	b := make([]byte, 0, 2*len(words))
	for _, w := range words {
		b = append(b, byte(w), byte(w>>8))
	}
	return b
}

// echo copies two input bytes to the output and halts.
var echo = image(20, r0, 19, r0, 20, r0, 19, r0, 0)

func TestRunnerRun(t *testing.T) {
	var out bytes.Buffer
	var kinds []StateKind
	r := NewRunner(NewShell(Scanner(strings.NewReader("/r=3\nab\n")), io.Discard), false)
	r.Out = &out
	r.State = func(m *vm.Machine, k StateKind) { kinds = append(kinds, k) }
	if err := r.Run(echo); err != nil {
		t.Fatal(err)
	}
	if g, w := out.String(), "ab"; g != w {
		t.Errorf("output is %q, want %q", g, w)
	}
	if g, w := kinds, []StateKind{WaitState, HaltState}; !equalKinds(g, w) {
		t.Errorf("states are %v, want %v", g, w)
	}
}

func TestRunnerFault(t *testing.T) {
	r := NewRunner(NewShell(Scanner(strings.NewReader("")), io.Discard), false)
	var last StateKind = -1
	r.State = func(m *vm.Machine, k StateKind) { last = k }
	err := r.Run(image(21, 9, r0, 40000, 1))
	var e *vm.Error
	if !errors.As(err, &e) || e.Fault != vm.InvalidNumber || e.PC != 1 {
		t.Fatalf("got error %v, want invalid number at 1", err)
	}
	if last != FaultState {
		t.Errorf("last state is %v, want %v", last, FaultState)
	}
}

func TestRunnerInputExhausted(t *testing.T) {
	var kinds []StateKind
	r := NewRunner(NewShell(Scanner(strings.NewReader("")), io.Discard), false)
	r.State = func(m *vm.Machine, k StateKind) { kinds = append(kinds, k) }
	err := r.Run(echo)
	if !errors.Is(err, io.EOF) || !errors.Is(err, vm.InputFailure) {
		t.Fatalf("got error %v, want input failure wrapping EOF", err)
	}
	if g, w := kinds, []StateKind{WaitState, FaultState}; !equalKinds(g, w) {
		t.Errorf("states are %v, want %v", g, w)
	}
}

func TestRunnerSetup(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(NewShell(Scanner(strings.NewReader("")), io.Discard), false)
	r.Out = &out
	r.Setup = func(m *vm.Machine) { m.Reg[7] = 'Z' }
	if err := r.Run(image(19, vm.RegBase+7, 0)); err != nil {
		t.Fatal(err)
	}
	if g, w := out.String(), "Z"; g != w {
		t.Errorf("output is %q, want %q", g, w)
	}
}

func TestRunnerResetRunning(t *testing.T) {
	var out bytes.Buffer
	started := make(chan bool, 1)
	r := NewRunner(NewShell(Scanner(strings.NewReader("")), io.Discard), true)
	r.Out = &out
	r.Setup = func(*vm.Machine) {
		select {
		case started <- true:
		default:
		}
	}
	done := make(chan error)
	go func() { done <- r.Run(image(6, 0)) }()

	<-started
	r.Reset(image(19, 'X', 20, r0, 0))
	if err := <-done; !errors.Is(err, io.EOF) {
		t.Fatalf("got error %v, want %v", err, io.EOF)
	}
	if g, w := out.String(), "X"; g != w {
		t.Errorf("output is %q, want %q", g, w)
	}
}

func TestRunnerResetHalted(t *testing.T) {
	var out bytes.Buffer
	halted := make(chan bool, 1)
	r := NewRunner(NewShell(Scanner(strings.NewReader("")), io.Discard), true)
	r.Out = &out
	r.State = func(m *vm.Machine, k StateKind) {
		if k == HaltState {
			halted <- true
		}
	}
	done := make(chan error)
	go func() { done <- r.Run(image(0)) }()

	<-halted
	r.Reset(image(19, 'Y', 20, r0, 0))
	if err := <-done; !errors.Is(err, io.EOF) {
		t.Fatalf("got error %v, want %v", err, io.EOF)
	}
	if g, w := out.String(), "Y"; g != w {
		t.Errorf("output is %q, want %q", g, w)
	}
}

func TestRunnerResetWaiting(t *testing.T) {
	var out bytes.Buffer
	var (
		waiting = make(chan bool, 1)
		halted  = make(chan bool, 1)
	)
	src := make(blockingInput)
	r := NewRunner(NewShell(src, io.Discard), true)
	r.Out = &out
	r.State = func(m *vm.Machine, k StateKind) {
		switch k {
		case WaitState:
			select {
			case waiting <- true:
			default:
			}
		case HaltState:
			halted <- true
		}
	}
	done := make(chan error)
	go func() { done <- r.Run(echo) }()

	<-waiting
	r.Reset(image(19, 'W', 0))
	<-halted
	r.Reset(echo)
	close(src)
	if err := <-done; !errors.Is(err, io.EOF) {
		t.Fatalf("got error %v, want %v", err, io.EOF)
	}
	if g, w := out.String(), "W"; g != w {
		t.Errorf("output is %q, want %q", g, w)
	}
}

func TestRunnerResetBeforeRun(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(NewShell(Scanner(strings.NewReader("")), io.Discard), true)
	r.Out = &out
	r.Reset(image(19, 'N', 20, r0, 0))
	if err := r.Run(image(19, 'O', 20, r0, 0)); !errors.Is(err, io.EOF) {
		t.Fatalf("got error %v, want %v", err, io.EOF)
	}
	if g, w := out.String(), "N"; g != w {
		t.Errorf("output is %q, want %q", g, w)
	}
}

type stop struct {
	kind StateKind
	pc   uint16
	out  string
}

// stops runs image on a Runner prepared by setup, and calls next with
// each stop at a breakpoint or pause. It returns the program's output.
func stops(t *testing.T, img []byte, setup func(*Runner), next func(stop)) string {
	t.Helper()
	var out bytes.Buffer
	ch := make(chan stop)
	r := NewRunner(NewShell(Scanner(strings.NewReader("")), io.Discard), false)
	r.Out = &out
	r.State = func(m *vm.Machine, k StateKind) {
		switch k {
		case BreakState, PauseState:
			ch <- stop{k, m.PC, out.String()}
		}
	}
	setup(r)
	done := make(chan error, 1)
	go func() {
		done <- r.Run(img)
		close(ch)
	}()
	for s := range ch {
		next(s)
		if s.kind == PauseState {
			r.Debug("s", 0)
		} else {
			r.Debug("c", 0)
		}
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	return out.String()
}

// abc writes "ABC" and halts.
var abc = image(19, 'A', 19, 'B', 19, 'C', 0)

func TestRunnerBreak(t *testing.T) {
	var got []stop
	out := stops(t, abc,
		func(r *Runner) { r.Debug("break", 4) },
		func(s stop) { got = append(got, s) })
	if want := []stop{{BreakState, 4, "AB"}}; !equalStops(got, want) {
		t.Errorf("stops are %v, want %v", got, want)
	}
	if out != "ABC" {
		t.Errorf("output is %q, want %q", out, "ABC")
	}
}

func TestRunnerBreakLoop(t *testing.T) {
	// R0 counts down from 3; the loop body at 3 is hit each time.
	img := image(1, r0, 3, 19, '.', 9, r0, r0, 32767, 7, r0, 3, 0)
	var pcs []uint16
	out := stops(t, img,
		func(r *Runner) { r.Debug("b", 3) },
		func(s stop) { pcs = append(pcs, s.pc) })
	if len(pcs) != 3 {
		t.Errorf("stopped at %v, want 3 stops at 3", pcs)
	}
	if out != "..." {
		t.Errorf("output is %q, want %q", out, "...")
	}
}

func TestRunnerStep(t *testing.T) {
	var got []stop
	out := stops(t, abc,
		func(r *Runner) { r.Debug("pause", 0) },
		func(s stop) { got = append(got, s) })
	want := []stop{
		{PauseState, 0, ""},
		{PauseState, 2, "A"},
		{PauseState, 4, "AB"},
		{PauseState, 6, "ABC"},
	}
	if !equalStops(got, want) {
		t.Errorf("stops are %v, want %v", got, want)
	}
	if out != "ABC" {
		t.Errorf("output is %q, want %q", out, "ABC")
	}
}

func TestRunnerBreakCleared(t *testing.T) {
	var got []stop
	stops(t, abc,
		func(r *Runner) {
			r.Debug("b", 2)
			r.Debug("b", NoAddr)
		},
		func(s stop) { got = append(got, s) })
	if len(got) != 0 {
		t.Errorf("stopped at %v, want no stops", got)
	}
}

func TestRunnerDebugAddr(t *testing.T) {
	var pcs []uint16
	r := NewRunner(NewShell(Scanner(strings.NewReader("")), io.Discard), false)
	r.State = func(m *vm.Machine, k StateKind) {
		if k == DebugState {
			pcs = append(pcs, m.PC)
		}
	}
	r.Debug("d", 2)
	if err := r.Run(abc); err != nil {
		t.Fatal(err)
	}
	if len(pcs) != 1 || pcs[0] != 2 {
		t.Errorf("debug states at %v, want [2]", pcs)
	}
}

func TestRunnerResetPaused(t *testing.T) {
	var out bytes.Buffer
	paused := make(chan bool, 1)
	r := NewRunner(NewShell(Scanner(strings.NewReader("")), io.Discard), true)
	r.Out = &out
	r.State = func(m *vm.Machine, k StateKind) {
		if k == PauseState {
			select {
			case paused <- true:
			default:
			}
		}
	}
	r.Debug("p", 0)
	done := make(chan error)
	go func() { done <- r.Run(abc) }()

	<-paused
	r.Debug("c", 0)
	r.Reset(image(19, 'R', 20, r0, 0))
	if err := <-done; !errors.Is(err, io.EOF) {
		t.Fatalf("got error %v, want %v", err, io.EOF)
	}
	if g := out.String(); !strings.HasSuffix(g, "R") {
		t.Errorf("output is %q, want it to end with %q", g, "R")
	}
}

func equalStops(a, b []stop) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalKinds(a, b []StateKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
