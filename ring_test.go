package busq

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriberCount(t *testing.T) {
	sender, receiver := RawBounded[struct{}](1)
	receiver2 := receiver.Clone()

	assert.Equal(t, 2, sender.Subscribers())

	receiver2.Close()
	assert.Equal(t, 1, sender.Subscribers())

	// Double close must not decrement twice.
	receiver2.Close()
	assert.Equal(t, 1, sender.Subscribers())
}

func TestBroadcastAndTryRecv(t *testing.T) {
	sender, receiver := RawBounded[int](1)
	receiver2 := receiver.Clone()

	require.NoError(t, sender.Broadcast(123))

	v, err := receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 123, *v)

	v2, err := receiver2.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 123, *v2)

	// Both receivers share the exact same boxed value.
	assert.Same(t, v, v2)
}

func TestBroadcastNoReceivers(t *testing.T) {
	sender, receiver := RawBounded[int](1)
	receiver.Close()

	err := sender.Broadcast(7)
	assert.ErrorIs(t, err, ErrNoReceivers)

	// Nothing was published.
	assert.True(t, sender.IsEmpty())
}

func TestReceiverSeesSenderClose(t *testing.T) {
	sender, receiver := RawBounded[struct{}](1)
	assert.True(t, receiver.IsSenderAvailable())
	sender.Close()
	assert.False(t, receiver.IsSenderAvailable())
	sender.Close() // idempotent
	assert.False(t, receiver.IsSenderAvailable())
}

func TestCapacity(t *testing.T) {
	sender, receiver := RawBounded[struct{}](3)
	assert.Equal(t, 3, sender.Len())
	assert.Equal(t, 3, receiver.Len())

	// Internal array carries one extra cell.
	assert.Equal(t, uint64(4), sender.ring.size)
}

func TestMinimumCapacity(t *testing.T) {
	sender, _ := RawBounded[int](0)
	assert.Equal(t, 1, sender.Len())
}

func TestWithinCapacity(t *testing.T) {
	sender, receiver := RawBounded[int](3)
	defer receiver.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, sender.Broadcast(i))
	}

	assert.Equal(t, []int{0, 1, 2}, drainValues(receiver))
}

func TestOverflowKeepsLastN(t *testing.T) {
	sender, receiver := RawBounded[int](3)
	defer receiver.Close()

	for i := 0; i < 4; i++ {
		require.NoError(t, sender.Broadcast(i))
	}

	assert.Equal(t, []int{1, 2, 3}, drainValues(receiver))
}

// Scenario: capacity 10, broadcasts 1..14, late-starting reader sees the
// last ten.
func TestLastNRetention(t *testing.T) {
	sender, receiver := RawBounded[int](10)
	defer receiver.Close()

	for i := 1; i <= 14; i++ {
		require.NoError(t, sender.Broadcast(i))
	}

	assert.Equal(t, []int{5, 6, 7, 8, 9, 10, 11, 12, 13, 14}, drainValues(receiver))
}

// Scenario: capacity 1 never blocks, the reader gets the newest value.
func TestOverflowWithoutBlocking(t *testing.T) {
	sender, receiver := RawBounded[int](1)
	defer receiver.Close()

	require.NoError(t, sender.Broadcast(1))
	require.NoError(t, sender.Broadcast(2))

	v, err := receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 2, *v)
}

func TestOverflowWithInterleavedReads(t *testing.T) {
	sender, receiver := RawBounded[int](3)
	defer receiver.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, sender.Broadcast(i))
	}

	v, err := receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 0, *v)
	v, err = receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 1, *v)

	// Cycle the buffer around twice.
	for i := 3; i < 10; i++ {
		require.NoError(t, sender.Broadcast(i))
	}

	// The oldest live message sits at wi-size+1.
	oldest := sender.ring.wi.get() - sender.ring.size + 1
	slot := sender.ring.slots[oldest%sender.ring.size].Load()
	assert.Equal(t, 7, *slot)

	v, err = receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 7, *v)

	// A clone picks up where the original left off.
	receiver2 := receiver.Clone()
	defer receiver2.Close()
	v, err = receiver2.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 8, *v)
	v, err = receiver2.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 9, *v)
	_, err = receiver2.TryRecv()
	assert.ErrorIs(t, err, ErrEmpty)

	require.NoError(t, sender.Broadcast(10))
	assert.Equal(t, []int{8, 9, 10}, drainValues(receiver))
}

// A slot written ahead of the index advance stays invisible until wi moves.
func TestReadBeforeWriterIncrements(t *testing.T) {
	sender, receiver := RawBounded[int](3)
	defer receiver.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, sender.Broadcast(i))
	}
	require.Equal(t, uint64(3), sender.ring.wi.get())
	require.Equal(t, uint64(0), receiver.ri.get())

	// Store a value without publishing the index.
	next := 3
	sender.ring.slots[sender.ring.wi.get()%sender.ring.size].Store(&next)

	v, err := receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 0, *v)

	receiver.ri.set(0)
	sender.ring.wi.inc()
	v, err = receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 1, *v)
}

// Write cursor wraps uint64 while the reader stays within one lap.
func TestWriterWrapsWithinCapacity(t *testing.T) {
	sender, receiver := RawBounded[int](3)
	defer receiver.Close()

	sender.ring.wi.set(math.MaxUint64 - 3)
	receiver.ri.set(math.MaxUint64 - 3)

	for i := 1; i < 4; i++ {
		require.NoError(t, sender.Broadcast(i))
	}
	v, err := receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 1, *v)
	v, err = receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 2, *v)

	require.Equal(t, uint64(math.MaxUint64), sender.ring.wi.get())
	require.Equal(t, uint64(math.MaxUint64-1), receiver.ri.get())

	// Two more broadcasts carry wi across zero.
	for i := 4; i < 6; i++ {
		require.NoError(t, sender.Broadcast(i))
	}
	require.Equal(t, uint64(1), sender.ring.wi.get())

	v, err = receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 3, *v)
	assert.Equal(t, uint64(math.MaxUint64), receiver.ri.get())
}

// Write cursor wraps uint64 and laps the reader across the boundary.
func TestWriterWrapsAndLapsReader(t *testing.T) {
	sender, receiver := RawBounded[int](3)
	defer receiver.Close()

	sender.ring.wi.set(math.MaxUint64 - 3)
	receiver.ri.set(math.MaxUint64 - 3)

	for i := 1; i < 4; i++ {
		require.NoError(t, sender.Broadcast(i))
	}
	v, err := receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 1, *v)
	v, err = receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 2, *v)

	// Six more broadcasts push wi to 5 and lap the reader.
	for i := 4; i < 10; i++ {
		require.NoError(t, sender.Broadcast(i))
	}
	require.Equal(t, uint64(5), sender.ring.wi.get())
	require.Equal(t, uint64(math.MaxUint64-1), receiver.ri.get())

	v, err = receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 7, *v)
	assert.Equal(t, uint64(3), receiver.ri.get())
}

// Scenario: four readers with skip 0..3 (the last clamped to capacity-1)
// land on 3, 4, 5, 5 after six broadcasts into a capacity-3 ring.
func TestSkipItems(t *testing.T) {
	sender, receiver1 := RawBounded[int](3)
	receiver2 := receiver1.Clone()
	receiver3 := receiver1.Clone()
	receiver4 := receiver1.Clone()
	for _, r := range []*Receiver[int]{receiver1, receiver2, receiver3, receiver4} {
		defer r.Close()
	}
	receiver2.SetSkipItems(1)
	receiver3.SetSkipItems(2)
	receiver4.SetSkipItems(3)

	for i := 0; i < 6; i++ {
		require.NoError(t, sender.Broadcast(i))
	}

	for r, want := range map[*Receiver[int]]int{
		receiver1: 3,
		receiver2: 4,
		receiver3: 5,
		receiver4: 5,
	} {
		v, err := r.TryRecv()
		require.NoError(t, err)
		assert.Equal(t, want, *v)
	}
}

func TestSkipItemsClamped(t *testing.T) {
	_, receiver := RawBounded[int](3)
	defer receiver.Close()

	receiver.SetSkipItems(100)
	assert.Equal(t, uint64(2), receiver.skip)
	receiver.SetSkipItems(-5)
	assert.Equal(t, uint64(0), receiver.skip)
}

// The ring releases its reference to a value once enough newer broadcasts
// overwrite its cell; only holders keep it alive after that.
func TestOverwriteReleasesSlotReference(t *testing.T) {
	sender, receiver := RawBounded[int](1)
	defer receiver.Close()
	receiver2 := receiver.Clone()
	defer receiver2.Close()

	require.NoError(t, sender.Broadcast(1))

	held, err := receiver.TryRecv()
	require.NoError(t, err)
	held2, err := receiver2.TryRecv()
	require.NoError(t, err)
	assert.Same(t, held, held2)

	// The second broadcast goes to the spare cell; the first value is
	// still referenced by the ring.
	require.NoError(t, sender.Broadcast(2))
	assert.Same(t, held, sender.ring.slots[0].Load())

	// The third broadcast reuses cell 0 and drops the ring's reference.
	require.NoError(t, sender.Broadcast(3))
	assert.NotSame(t, held, sender.ring.slots[0].Load())
	assert.Equal(t, 1, *held)
}

func TestIsEmpty(t *testing.T) {
	sender, receiver := RawBounded[int](1)
	defer receiver.Close()

	assert.True(t, sender.IsEmpty())
	assert.True(t, receiver.IsEmpty())

	require.NoError(t, sender.Broadcast(1))
	assert.False(t, sender.IsEmpty())
	assert.False(t, receiver.IsEmpty())

	_, err := receiver.TryRecv()
	require.NoError(t, err)
	assert.True(t, receiver.IsEmpty())
	assert.False(t, sender.IsEmpty())
}

func TestLag(t *testing.T) {
	sender, receiver := RawBounded[int](3)
	defer receiver.Close()

	assert.Equal(t, uint64(0), receiver.Lag())
	for i := 0; i < 5; i++ {
		require.NoError(t, sender.Broadcast(i))
	}
	assert.Equal(t, uint64(5), receiver.Lag())

	_, err := receiver.TryRecv()
	require.NoError(t, err)
	// The lapped cursor jumped to the oldest live message and consumed it.
	assert.Equal(t, uint64(2), receiver.Lag())
}

func TestSenderEquality(t *testing.T) {
	sender1, _ := RawBounded[int](1)
	sender2, _ := RawBounded[int](1)

	assert.True(t, sender1.Equals(sender1))
	assert.True(t, sender2.Equals(sender2))
	assert.False(t, sender1.Equals(sender2))
	assert.False(t, sender1.Equals(nil))
}

func TestReceiverEquality(t *testing.T) {
	sender, receiver1 := RawBounded[int](2)
	receiver2 := receiver1.Clone()
	_, receiver3 := RawBounded[int](2)

	// Same ring, same cursor.
	assert.True(t, receiver1.Equals(receiver2))
	assert.False(t, receiver1.Equals(receiver3))

	// Cursors diverge after one of them reads.
	require.NoError(t, sender.Broadcast(1))
	_, err := receiver1.TryRecv()
	require.NoError(t, err)
	assert.False(t, receiver1.Equals(receiver2))
}

func drainValues(r *Receiver[int]) []int {
	var out []int
	for {
		v, err := r.TryRecv()
		if err != nil {
			return out
		}
		out = append(out, *v)
	}
}
