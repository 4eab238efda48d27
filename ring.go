package busq

import "sync/atomic"

// ring is the shared core: a fixed array of slots, the global write cursor,
// the live-subscriber count, and the publisher liveness flag. Every handle —
// Sender, Receiver, Publisher, Subscriber — points at the same ring.
//
// The array holds capacity+1 cells. The extra cell is what lets a reader
// that trails the writer by exactly capacity still load the oldest message
// before the writer reuses that slot.
type ring[T any] struct {
	slots []Slot[T]
	size  uint64 // len(slots), capacity+1

	wi        counter     // global write index; slot = wi % size
	subs      counter     // live subscriber count
	available atomic.Bool // false once the publisher is closed
}

func newRing[T any](capacity int, factory SlotFactory[T]) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	size := uint64(capacity) + 1
	slots := make([]Slot[T], size)
	for i := range slots {
		slots[i] = factory()
	}
	r := &ring[T]{slots: slots, size: size}
	r.subs.set(1)
	r.available.Store(true)
	return r
}

// broadcast publishes v to the slot at wi % size, then advances wi. The
// store must be visible before the index advance; the atomic inc provides
// the release edge that readers acquire through wi.
//
// The subscriber-count check is a hint: a stale non-zero read racing the
// last subscriber's Close publishes at most one value nobody picks up.
func (r *ring[T]) broadcast(v T) error {
	if r.subs.get() == 0 {
		return ErrNoReceivers
	}
	r.slots[r.wi.get()%r.size].Store(&v)
	r.wi.inc()
	return nil
}

// tryRecv receives the next message for the cursor ri, or reports why it
// can't. Never blocks.
//
// The racing-reader protocol: load the slot at ri, then re-read wi to check
// whether the writer lapped us while the load was in flight. If it did, the
// loaded value may have been overwritten mid-read and is discarded; the
// cursor jumps to the oldest still-present message plus skip, and the loop
// retries because the writer may lap again before the next load lands. If it
// did not, the loaded value is exactly the message written at position ri —
// only writes in [ri, ri+size) can touch that slot.
//
// All index arithmetic is wrapping, so cursors roll over uint64 freely.
func (r *ring[T]) tryRecv(ri *counter, skip uint64) (*T, error) {
	for {
		cur := ri.get()
		if cur == r.wi.get() {
			if r.isAvailable() {
				return nil, ErrEmpty
			}
			return nil, ErrDisconnected
		}
		v := r.slots[cur%r.size].Load()
		if w := r.wi.get(); w-cur >= r.size {
			// Lapped. Oldest live message sits at w-size+1; skip moves
			// the cursor further ahead of the writer's tail.
			ri.set(w - r.size + 1 + skip)
			continue
		}
		assert(v != nil, "read of an unwritten slot")
		ri.set(cur + 1)
		return v, nil
	}
}

// close marks the publisher gone. Idempotent; readers drain whatever is
// still buffered and then see ErrDisconnected.
func (r *ring[T]) close() {
	r.available.Store(false)
}

func (r *ring[T]) isAvailable() bool {
	return r.available.Load()
}

// len is the usable capacity, one less than the cell count.
func (r *ring[T]) len() int {
	return int(r.size - 1)
}

// isEmpty reports whether nothing has ever been published.
func (r *ring[T]) isEmpty() bool {
	return r.wi.get() == 0
}

// isSubEmpty reports whether the cursor has consumed everything published.
func (r *ring[T]) isSubEmpty(ri uint64) bool {
	return r.wi.get() == ri
}

func (r *ring[T]) incSubCount() {
	r.subs.inc()
}

func (r *ring[T]) decSubCount() {
	r.subs.dec()
}
