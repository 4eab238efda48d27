package busq

import "sync/atomic"

// counter is an unsigned counter shared between goroutines. The write index
// and every read index are counters that only ever move forward, and index
// arithmetic is wrap-safe because uint64 overflow wraps around naturally.
// The live-subscriber count is a counter too, and moves both ways.
type counter struct {
	v atomic.Uint64
}

func (c *counter) get() uint64 {
	return c.v.Load()
}

func (c *counter) set(n uint64) {
	c.v.Store(n)
}

// inc returns the incremented value.
func (c *counter) inc() uint64 {
	return c.v.Add(1)
}

// dec returns the decremented value.
func (c *counter) dec() uint64 {
	return c.v.Add(^uint64(0))
}
