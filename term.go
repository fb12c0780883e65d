package main

import (
	"io"
	"os"

	"golang.org/x/term"

	"github.com/nf/syn/console"
	"github.com/nf/syn/vm"
)

// stdio returns the program's line source and output writer. When stdin
// is a terminal, lines are read with a line editor that puts the terminal
// in raw mode only while a line is being read.
func stdio() (src vm.Input, out io.Writer) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return console.Scanner(os.Stdin), os.Stdout
	}
	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, console.Prompt)
	return &termLines{fd: fd, t: t}, t
}

type termLines struct {
	fd int
	t  *term.Terminal
}

func (l *termLines) ReadLine() (string, error) {
	st, err := term.MakeRaw(l.fd)
	if err != nil {
		return "", err
	}
	defer term.Restore(l.fd, st)
	return l.t.ReadLine()
}
