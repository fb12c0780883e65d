package vm

import (
	"fmt"
	"strings"
)

// Stack implements the machine's operand stack. It holds both values
// pushed by the program and the return addresses pushed by call.
type Stack struct {
	Words []uint16
}

// Push adds v to the top of the stack.
func (s *Stack) Push(v uint16) { s.Words = append(s.Words, v) }

// Pop removes and returns the top of the stack.
// It reports false if the stack is empty.
func (s *Stack) Pop() (uint16, bool) {
	n := len(s.Words)
	if n == 0 {
		return 0, false
	}
	v := s.Words[n-1]
	s.Words = s.Words[:n-1]
	return v, true
}

// Peek returns the top of the stack without removing it.
func (s *Stack) Peek() (uint16, bool) {
	if len(s.Words) == 0 {
		return 0, false
	}
	return s.Words[len(s.Words)-1], true
}

// Len returns the number of words on the stack.
func (s *Stack) Len() int { return len(s.Words) }

func (s Stack) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, v := range s.Words {
		b.WriteByte(' ')
		fmt.Fprintf(&b, "%d", v)
	}
	b.WriteByte(' ')
	b.WriteByte(')')
	return b.String()
}
