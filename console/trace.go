package console

import (
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/nf/syn/vm"
)

// TraceLog writes a line for each executed instruction while it is
// running. Its Trace method is a vm.TraceFunc.
type TraceLog struct {
	// Format renders a trace record. If nil, vm.Trace.String is used.
	Format func(vm.Trace) string

	log     *log.Logger
	running atomic.Bool
	now     func() time.Time
}

// NewTraceLog returns a stopped TraceLog that writes to w.
func NewTraceLog(w io.Writer) *TraceLog {
	return &TraceLog{log: log.New(w, "", 0), now: time.Now}
}

// Start begins logging instructions. It does nothing if the log is
// already running.
func (l *TraceLog) Start() {
	if l.running.Swap(true) {
		return
	}
	l.log.Printf("%s - Logging started", l.now().Format(time.RFC822))
}

// Stop ends logging instructions. It does nothing if the log is not
// running.
func (l *TraceLog) Stop() {
	if !l.running.Swap(false) {
		return
	}
	l.log.Printf("%s - Logging stopped", l.now().Format(time.RFC822))
}

// Running reports whether instructions are being logged.
func (l *TraceLog) Running() bool { return l.running.Load() }

// Toggle starts a stopped log or stops a running one, and reports
// whether the log is now running.
func (l *TraceLog) Toggle() bool {
	if l.Running() {
		l.Stop()
		return false
	}
	l.Start()
	return true
}

func (l *TraceLog) Trace(t vm.Trace) {
	if !l.running.Load() {
		return
	}
	if l.Format != nil {
		l.log.Print(l.Format(t))
	} else {
		l.log.Print(t)
	}
}
