package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/nf/syn/console"
	"github.com/nf/syn/vm"
)

func debugMode(imageFile string, opt options) error {
	image, err := os.ReadFile(imageFile)
	if err != nil {
		return err
	}

	d := newDebugger()
	shell := console.NewShell(d, d.out)
	r := console.NewRunner(shell, opt.dev)
	d.run = r
	r.Out = d.out
	r.State = d.StateFunc
	closeTrace, err := configure(r, shell, opt)
	if err != nil {
		return err
	}
	defer closeTrace()
	if r.Trace == nil {
		t := console.NewTraceLog(d.trace)
		t.Format = colorTrace
		r.Trace = t
		shell.Trace = t
	}
	d.traceLog = r.Trace

	log.SetPrefix("")
	log.SetOutput(d.log)
	defer func() {
		log.SetOutput(os.Stderr)
		log.SetPrefix("syn: ")
	}()
	log.Print(debugHelp)

	if opt.dev {
		stop, err := watch(imageFile, r)
		if err != nil {
			return err
		}
		defer stop()
	}

	go func() {
		if err := r.Run(image); err != nil && !errors.Is(err, io.EOF) {
			log.Print(err)
			return
		}
		log.Print("program finished")
	}()
	err = d.Run()
	close(d.lines)
	return err
}

const debugHelp = "/b ADDR break, /debug ADDR, /w ADDR watch, /p pause, /step, /c continue, ^T trace, exit"

type debugger struct {
	run *console.Runner

	out   *tview.TextView
	trace *tview.TextView
	log   *tview.TextView
	watch *tview.TextView
	state *tview.TextView
	input *tview.InputField
	cols  *tview.Flex
	rows  *tview.Flex
	app   *tview.Application

	lines    chan string
	traceLog *console.TraceLog

	mu       sync.Mutex
	brk, dbg int
	watches  []int
}

func newDebugger() *debugger {
	d := &debugger{
		out: tview.NewTextView().
			SetMaxLines(5000),
		trace: tview.NewTextView().
			SetDynamicColors(true).
			SetWrap(false).
			SetMaxLines(1000),
		log: tview.NewTextView().
			SetMaxLines(1000),
		watch: tview.NewTextView().
			SetWrap(false).
			SetTextAlign(tview.AlignRight),
		state: tview.NewTextView().
			SetWrap(false),
		input: tview.NewInputField().
			SetLabel(console.Prompt),
		cols: tview.NewFlex(),
		rows: tview.NewFlex().
			SetDirection(tview.FlexRow),
		app:   tview.NewApplication(),
		lines: make(chan string, 64),
		brk:   console.NoAddr,
		dbg:   console.NoAddr,
	}
	for _, v := range []*tview.TextView{d.out, d.trace, d.log} {
		v.SetChangedFunc(func() { d.app.Draw() })
	}
	d.trace.SetBackgroundColor(tcell.ColorDarkBlue)
	d.watch.SetBackgroundColor(tcell.ColorDarkBlue)
	d.state.SetBackgroundColor(tcell.ColorDarkGrey)
	d.cols.
		AddItem(d.watch, 16, 0, false).
		AddItem(d.out, 0, 2, false).
		AddItem(d.trace, 0, 1, false)
	d.rows.
		AddItem(d.cols, 0, 1, false).
		AddItem(d.log, 4, 0, false).
		AddItem(d.state, 3, 0, false).
		AddItem(d.input, 1, 0, true)
	d.app.SetRoot(d.rows, true)

	d.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() != tcell.KeyCtrlT || d.traceLog == nil {
			return ev
		}
		if d.traceLog.Toggle() {
			log.Print("trace on")
		} else {
			log.Print("trace off")
		}
		return nil
	})
	d.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		line := d.input.GetText()
		d.input.SetText("")
		if line == "exit" {
			d.app.Stop()
			return
		}
		if d.command(line) {
			return
		}
		fmt.Fprintf(d.out, "%s\n", line)
		select {
		case d.lines <- line:
		default:
			log.Printf("input dropped: %q", line)
		}
	})
	return d
}

func (d *debugger) Run() error { return d.app.Run() }

// command carries out line if it is a debugger command, reporting
// whether it was one. Other lines, including shell commands, are left
// for the program's input.
func (d *debugger) command(line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch cmd {
	case "/p", "/pause", "/c", "/cont", "/step":
		d.run.Debug(cmd[1:], 0)
		return true
	case "/b", "/break", "/debug", "/w", "/watch":
	default:
		return false
	}
	addr := console.NoAddr
	if arg != "" {
		a, err := strconv.Atoi(arg)
		limit := vm.MemSize
		if cmd[1] == 'w' {
			limit += vm.NumRegs // registers may be watched too
		}
		if err != nil || a < 0 || a >= limit {
			log.Printf("invalid addr %q", arg)
			return true
		}
		addr = a
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	switch cmd {
	case "/b", "/break":
		d.run.Debug("break", addr)
		d.brk = addr
		if addr == console.NoAddr {
			log.Print("cleared break")
		} else {
			log.Printf("set break %d", addr)
		}
	case "/debug":
		d.run.Debug("debug", addr)
		d.dbg = addr
		if addr == console.NoAddr {
			log.Print("cleared debug")
		} else {
			log.Printf("set debug %d", addr)
		}
	case "/w", "/watch":
		if addr == console.NoAddr {
			d.watches = nil
			log.Print("cleared watches")
		} else {
			d.watches = append(d.watches, addr)
			log.Printf("watching %v", vm.Arg(addr))
		}
	}
	return true
}

// ReadLine implements vm.Input with the lines entered in the input field.
func (d *debugger) ReadLine() (string, error) {
	l, ok := <-d.lines
	if !ok {
		return "", io.EOF
	}
	return l, nil
}

func (d *debugger) StateFunc(m *vm.Machine, k console.StateKind) {
	var (
		watch = d.watchContent(m)
		state = stateMsg(m, k)
	)
	d.app.QueueUpdateDraw(func() {
		switch k {
		case console.WaitState, console.DebugState:
			d.state.SetTextColor(tcell.ColorBlack)
			d.state.SetBackgroundColor(tcell.ColorDarkGrey)
		case console.BreakState:
			d.state.SetTextColor(tcell.ColorYellow)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case console.PauseState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case console.HaltState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case console.FaultState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkRed)
		}
		d.watch.SetText(watch)
		d.state.SetText(state)
	})
}

func (d *debugger) watchContent(m *vm.Machine) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	if d.brk != console.NoAddr {
		fmt.Fprintf(&b, "brk! %5d\n", d.brk)
	}
	if d.dbg != console.NoAddr {
		fmt.Fprintf(&b, "dbg? %5d\n", d.dbg)
	}
	for _, a := range d.watches {
		fmt.Fprintf(&b, "[%5v] ", vm.Arg(a))
		if v, err := m.ReadFrom(a); err != nil {
			b.WriteString("    ?\n")
		} else {
			fmt.Fprintf(&b, "%5d\n", v)
		}
	}
	return b.String()
}

func stateMsg(m *vm.Machine, k console.StateKind) string {
	kind := "       "
	switch k {
	case console.WaitState:
		kind = "[input]"
	case console.HaltState:
		kind = "[halt] "
	case console.FaultState:
		kind = "[FAULT]"
	case console.BreakState:
		kind = "[break]"
	case console.DebugState:
		kind = "[debug]"
	case console.PauseState:
		kind = "[pause]"
	}
	instr, _ := vm.Disasm(m.Mem, int(m.PC))
	var regs strings.Builder
	for i, v := range m.Reg {
		if i > 0 {
			regs.WriteByte(' ')
		}
		fmt.Fprintf(&regs, "R%d=%d", i, v)
	}
	return fmt.Sprintf("%s %s\n%s\nstack: %v\n", kind, strings.TrimSpace(instr), regs.String(), m.Stack)
}

// colorTrace renders a trace record with tview color tags.
func colorTrace(t vm.Trace) string {
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.String()
	}
	s := fmt.Sprintf("PC: %5d -- [::b]%4s[::-] [yellow]%s[-]", t.PC, t.Op, strings.Join(args, ", "))
	if len(t.Values) > 0 {
		vals := make([]string, len(t.Values))
		for i, v := range t.Values {
			vals[i] = fmt.Sprint(v)
		}
		s += " -- [lightblue]" + strings.Join(vals, ", ") + "[-]"
	}
	return s
}
