package vm

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Disasm returns a textual representation of the instruction at addr
// and the address of the instruction that follows it. Words that are not
// valid opcodes are rendered as data.
func Disasm(mem *Memory, addr int) (string, int) {
	w, err := mem.Read(addr)
	if err != nil {
		return "", addr
	}
	op := Op(w)
	if !op.Valid() {
		return fmt.Sprintf("%5d  .word %d", addr, w), addr + 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%5d  %-4s", addr, op)
	for k := 1; k <= op.Args(); k++ {
		a, err := mem.Read(addr + k)
		if err != nil {
			b.WriteString(" ?")
			break
		}
		if k > 1 {
			b.WriteByte(',')
		}
		b.WriteByte(' ')
		b.WriteString(Arg(a).String())
		if op == OUT && a < 0x80 {
			fmt.Fprintf(&b, " ; %s", strconv.QuoteRune(rune(a)))
		}
	}
	return b.String(), addr + op.Size()
}

// Dump writes a disassembly of the words populated by the image in mem.
func Dump(w io.Writer, mem *Memory) error {
	for addr := 0; addr < mem.Len(); {
		var s string
		s, addr = Disasm(mem, addr)
		if _, err := fmt.Fprintln(w, s); err != nil {
			return err
		}
	}
	return nil
}
