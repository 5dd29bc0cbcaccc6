package usecase

import "sync"

const DefaultContextCapacity = 15

// RollingContext keeps the most recent lines of a channel group's
// conversation. Appends and trims happen under one lock so concurrent
// handlers never observe more than capacity entries.
type RollingContext struct {
	mu       sync.Mutex
	capacity int
	entries  []string
}

func NewRollingContext(capacity int) *RollingContext {
	if capacity <= 0 {
		capacity = DefaultContextCapacity
	}
	return &RollingContext{
		capacity: capacity,
		entries:  make([]string, 0, capacity),
	}
}

func (c *RollingContext) Append(entry string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
	if overflow := len(c.entries) - c.capacity; overflow > 0 {
		c.entries = append(c.entries[:0], c.entries[overflow:]...)
	}
}

// Last returns a copy of up to n newest entries, oldest first.
func (c *RollingContext) Last(n int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || n > len(c.entries) {
		n = len(c.entries)
	}
	out := make([]string, n)
	copy(out, c.entries[len(c.entries)-n:])
	return out
}

func (c *RollingContext) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *RollingContext) Capacity() int {
	return c.capacity
}
