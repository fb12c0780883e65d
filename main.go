// Command syn executes Synacor program images.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/pprof"

	"github.com/nf/syn/console"
	"github.com/nf/syn/vm"
)

type options struct {
	trace string // trace log file
	r7    int    // initial R7, if non-negative
	dev   bool
}

func main() {
	log.SetPrefix("syn: ")
	log.SetFlags(0)

	var (
		disFlag   = flag.Bool("dis", false, "print a disassembly of the program and exit")
		devFlag   = flag.Bool("dev", false, "enable developer mode (reload the program when the file changes)")
		debugFlag = flag.Bool("debug", false, "run inside the terminal debugger")
		traceFlag = flag.String("trace", "", "append an instruction trace to `file`")
		r7Flag    = flag.Int("r7", -1, "set register 7 to `value` before running")

		cpuProfileFlag = flag.String("cpu_profile", "", "write CPU profile to `file`")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-dev] [-debug] [-trace file] [-r7 value] <program.bin>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s -dis <program.bin>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
	}

	if *disFlag {
		if err := disassemble(flag.Arg(0)); err != nil {
			log.Fatal(err)
		}
		return
	}

	opt := options{trace: *traceFlag, r7: *r7Flag, dev: *devFlag}
	err := profile(*cpuProfileFlag, func() error {
		if *debugFlag {
			return debugMode(flag.Arg(0), opt)
		}
		return run(flag.Arg(0), opt)
	})
	// Running out of input is how a scripted session ends.
	if err != nil && !errors.Is(err, io.EOF) {
		log.Fatal(err)
	}
}

// profile calls f, writing a CPU profile of it to file if file is not
// empty.
func profile(file string, f func() error) error {
	if file == "" {
		return f()
	}
	pf, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("creating CPU profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(pf); err != nil {
		pf.Close()
		return err
	}
	err = f()
	pprof.StopCPUProfile()
	if cerr := pf.Close(); err == nil && cerr != nil {
		err = cerr
	}
	return err
}

func run(imageFile string, opt options) error {
	image, err := os.ReadFile(imageFile)
	if err != nil {
		return err
	}

	src, out := stdio()

	shell := console.NewShell(src, out)
	r := console.NewRunner(shell, opt.dev)
	r.Out = out
	closeTrace, err := configure(r, shell, opt)
	if err != nil {
		return err
	}
	defer closeTrace()

	if opt.dev {
		stop, err := watch(imageFile, r)
		if err != nil {
			return err
		}
		defer stop()
	}
	return r.Run(image)
}

// configure applies the trace and register options to r and shell.
// The returned func closes the trace file.
func configure(r *console.Runner, shell *console.Shell, opt options) (func(), error) {
	if opt.r7 >= 0 {
		if opt.r7 > vm.MaxWord {
			return nil, fmt.Errorf("-r7 value %d out of range", opt.r7)
		}
		r.Setup = func(m *vm.Machine) { m.Reg[7] = uint16(opt.r7) }
	}
	if opt.trace == "" {
		return func() {}, nil
	}
	f, err := os.OpenFile(opt.trace, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening trace log: %w", err)
	}
	log.Printf("logging to file %q", opt.trace)
	t := console.NewTraceLog(f)
	t.Start()
	r.Trace = t
	shell.Trace = t
	return func() {
		t.Stop()
		if err := f.Close(); err != nil {
			log.Printf("closing trace log: %v", err)
		}
	}, nil
}

func disassemble(imageFile string) error {
	f, err := os.Open(imageFile)
	if err != nil {
		return err
	}
	defer f.Close()
	mem, err := vm.ReadImage(f)
	if err != nil {
		return err
	}
	return vm.Dump(os.Stdout, mem)
}
