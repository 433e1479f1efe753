package capture

import (
	"sync"
	"time"

	"github.com/lcalzada-xor/eapsul/internal/core/ports"
)

var (
	// ErrClosed is returned by Write after CloseWrite, and by reads once the
	// write end is closed and fewer bytes than requested remain.
	ErrClosed = ports.ErrSourceClosed
	// ErrTimeout is returned by reads whose deadline passed first.
	ErrTimeout = ports.ErrDeadline
)

// Buffer is an unbounded in-memory byte FIFO with one writer and one reader.
// Writes never block; reads wait for data up to a deadline.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	closed bool
	ready  chan struct{} // closed and replaced on every Write and on CloseWrite
}

// NewBuffer returns an empty open buffer.
func NewBuffer() *Buffer {
	return &Buffer{ready: make(chan struct{})}
}

// Write appends p as one unit. A reader never observes part of it.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrClosed
	}
	b.data = append(b.data, p...)
	b.signal()
	return len(p), nil
}

// CloseWrite closes the write end. Buffered bytes stay readable.
func (b *Buffer) CloseWrite() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		b.signal()
	}
	return nil
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Peek waits until at least n bytes are buffered and returns a copy of them
// without consuming. A zero deadline waits indefinitely.
func (b *Buffer) Peek(n int, deadline time.Time) ([]byte, error) {
	var timeout <-chan time.Time
	for {
		b.mu.Lock()
		if len(b.data) >= n {
			out := make([]byte, n)
			copy(out, b.data)
			b.mu.Unlock()
			return out, nil
		}
		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}
		ready := b.ready
		b.mu.Unlock()

		if timeout == nil && !deadline.IsZero() {
			d := time.Until(deadline)
			if d <= 0 {
				return nil, ErrTimeout
			}
			t := time.NewTimer(d)
			defer t.Stop()
			timeout = t.C
		}

		select {
		case <-ready:
		case <-timeout:
			return nil, ErrTimeout
		}
	}
}

// Discard consumes up to n bytes.
func (b *Buffer) Discard(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n >= len(b.data) {
		b.data = b.data[:0]
		return
	}
	b.data = append(b.data[:0], b.data[n:]...)
}

func (b *Buffer) signal() {
	close(b.ready)
	b.ready = make(chan struct{})
}
