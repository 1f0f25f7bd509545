// Package output implements stacked output buffering. Writes land in the
// innermost buffer; flushing moves bytes one level outward until they
// reach the sink.
package output

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrNoBuffer is returned by buffer operations when no buffer is active.
var ErrNoBuffer = errors.New("output: no buffer to operate on")

type buffer struct {
	data      bytes.Buffer
	chunkSize int
}

// Stack is a LIFO of capture buffers over a sink. With no buffers active
// it writes straight through. A buffer with a positive chunk size flushes
// itself outward whenever it reaches that size.
type Stack struct {
	mu      sync.Mutex
	sink    io.Writer
	buffers []*buffer
}

// NewStack returns a stack writing to sink.
func NewStack(sink io.Writer) *Stack {
	return &Stack{sink: sink}
}

// Start pushes a new capture buffer. A chunkSize of zero disables
// automatic flushing.
func (s *Stack) Start(chunkSize int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chunkSize < 0 {
		chunkSize = 0
	}
	s.buffers = append(s.buffers, &buffer{chunkSize: chunkSize})
}

// Level returns the number of active buffers.
func (s *Stack) Level() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffers)
}

// Write appends p to the active buffer, or to the sink when no buffer is
// active. It implements io.Writer.
func (s *Stack) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(len(s.buffers)-1, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteString appends str like Write.
func (s *Stack) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

// write delivers p to the given level; level -1 is the sink. A buffer
// that reaches its chunk size drains one level outward, which can
// cascade.
func (s *Stack) write(level int, p []byte) error {
	if level < 0 {
		_, err := s.sink.Write(p)
		return err
	}
	b := s.buffers[level]
	b.data.Write(p)
	if b.chunkSize > 0 && b.data.Len() >= b.chunkSize {
		drained := append([]byte(nil), b.data.Bytes()...)
		b.data.Reset()
		return s.write(level-1, drained)
	}
	return nil
}

func (s *Stack) active() (*buffer, error) {
	if len(s.buffers) == 0 {
		return nil, ErrNoBuffer
	}
	return s.buffers[len(s.buffers)-1], nil
}

// Contents returns the active buffer's bytes without disturbing them.
func (s *Stack) Contents() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.active()
	if err != nil {
		return "", err
	}
	return b.data.String(), nil
}

// Length returns the active buffer's byte count.
func (s *Stack) Length() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.active()
	if err != nil {
		return 0, err
	}
	return b.data.Len(), nil
}

// Clean empties the active buffer, keeping it on the stack.
func (s *Stack) Clean() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.active()
	if err != nil {
		return err
	}
	b.data.Reset()
	return nil
}

// Flush moves the active buffer's bytes one level outward, keeping the
// buffer on the stack.
func (s *Stack) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushTop()
}

func (s *Stack) flushTop() error {
	b, err := s.active()
	if err != nil {
		return err
	}
	if b.data.Len() == 0 {
		return nil
	}
	drained := append([]byte(nil), b.data.Bytes()...)
	b.data.Reset()
	return s.write(len(s.buffers)-2, drained)
}

// EndClean discards the active buffer.
func (s *Stack) EndClean() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buffers) == 0 {
		return ErrNoBuffer
	}
	s.buffers = s.buffers[:len(s.buffers)-1]
	return nil
}

// EndFlush moves the active buffer's bytes outward and removes it.
func (s *Stack) EndFlush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flushTop(); err != nil {
		return err
	}
	s.buffers = s.buffers[:len(s.buffers)-1]
	return nil
}

// GetClean returns the active buffer's bytes and discards the buffer.
func (s *Stack) GetClean() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.active()
	if err != nil {
		return "", err
	}
	contents := b.data.String()
	s.buffers = s.buffers[:len(s.buffers)-1]
	return contents, nil
}

// GetFlush returns the active buffer's bytes, moves them outward and
// removes the buffer.
func (s *Stack) GetFlush() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.active()
	if err != nil {
		return "", err
	}
	contents := b.data.String()
	if err := s.flushTop(); err != nil {
		return "", err
	}
	s.buffers = s.buffers[:len(s.buffers)-1]
	return contents, nil
}

// FlushAll ends every buffer from the inside out, delivering all pending
// bytes to the sink. Used at the end of a request.
func (s *Stack) FlushAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buffers) > 0 {
		if err := s.flushTop(); err != nil {
			return fmt.Errorf("failed to flush buffer at level %d: %w", len(s.buffers), err)
		}
		s.buffers = s.buffers[:len(s.buffers)-1]
	}
	return nil
}
