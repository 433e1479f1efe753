package codec

import "math/rand"

// SequenceCounter hands out 802.11 sequence numbers (12 bits, wrapping).
// It is owned by the single executor goroutine.
type SequenceCounter struct {
	next uint16
}

// NewSequenceCounter starts at a random point like a real station would.
func NewSequenceCounter() *SequenceCounter {
	return &SequenceCounter{next: uint16(rand.Intn(4096))}
}

// Next returns the current number and advances.
func (c *SequenceCounter) Next() uint16 {
	n := c.next
	c.next = (c.next + 1) & 0x0fff
	return n
}
