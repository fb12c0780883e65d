package vm

import (
	"fmt"
	"io"
)

const (
	// MemSize is the number of addressable words.
	MemSize = 1 << 15

	// MaxWord is the largest value a memory cell can hold.
	MaxWord = 1<<16 - 1

	// NumRegs is the number of general purpose registers.
	NumRegs = 8

	// RegBase is the numeric value that denotes register 0.
	// Register r is denoted by RegBase+r.
	RegBase = MemSize

	maxNumber = RegBase + NumRegs - 1
)

// Memory is the machine's address space: 32768 16-bit cells.
type Memory struct {
	cells [MemSize]uint16
	n     int // words populated by the image
}

// NewMemory returns an empty address space.
func NewMemory() *Memory { return &Memory{} }

// Load returns an address space holding image, which is read as a
// sequence of little-endian words starting at address 0. A trailing odd
// byte is taken as the low byte of a final word. Cells beyond the image
// are zero.
func Load(image []byte) (*Memory, error) {
	if len(image) > 2*MemSize {
		return nil, fmt.Errorf("image is %d bytes, larger than the %d byte address space", len(image), 2*MemSize)
	}
	m := &Memory{n: (len(image) + 1) / 2}
	for i, b := range image {
		if i%2 == 0 {
			m.cells[i/2] = uint16(b)
		} else {
			m.cells[i/2] |= uint16(b) << 8
		}
	}
	return m, nil
}

// ReadImage reads a program image from r and loads it.
func ReadImage(r io.Reader) (*Memory, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Load(b)
}

// Len returns the number of words that were populated from the image.
func (m *Memory) Len() int { return m.n }

// Read returns the word at addr.
func (m *Memory) Read(addr int) (uint16, error) {
	if !validAddr(addr) {
		return 0, FaultError{OutOfRange, addr}
	}
	return m.cells[addr], nil
}

// Write stores v at addr. Values up to 0xffff may be stored even though
// only values up to 0x7fff are valid numbers.
func (m *Memory) Write(addr, v int) error {
	if !validAddr(addr) {
		return FaultError{OutOfRange, addr}
	}
	if v < 0 || v > MaxWord {
		return FaultError{ValueOverflow, v}
	}
	m.cells[addr] = uint16(v)
	return nil
}

func validAddr(addr int) bool { return addr >= 0 && addr < MemSize }

func isReg(n int) bool { return n >= RegBase && n <= maxNumber }
