package busq

import (
	"context"
	"errors"
	"iter"
	"time"
)

// Publisher is the broadcast handle with wake-up delivery: every successful
// Broadcast unparks all subscribers currently blocked in Recv. Drive it from
// one goroutine at a time, and Close it when the stream ends so subscribers
// can drain and disconnect.
type Publisher[T any] struct {
	sender *Sender[T]
	event  *Event
}

// Subscriber consumes the publisher's stream through its own cursor. Clones
// are cheap and fully independent; a slow subscriber only ever loses its own
// data. Not safe for concurrent use by multiple goroutines — clone instead.
type Subscriber[T any] struct {
	receiver *Receiver[T]
	event    *Event
}

// Bounded creates a publish/subscribe channel of the given capacity with the
// default atomic slot flavor. Capacity below 1 is raised to 1.
func Bounded[T any](capacity int) (*Publisher[T], *Subscriber[T]) {
	return BoundedWith(capacity, NewAtomicSlot[T])
}

// BoundedWith is Bounded with a custom slot flavor.
func BoundedWith[T any](capacity int, factory SlotFactory[T]) (*Publisher[T], *Subscriber[T]) {
	sender, receiver := RawBoundedWith(capacity, factory)
	event := NewEvent()
	pub := &Publisher[T]{sender: sender, event: event}
	sub := &Subscriber[T]{receiver: receiver, event: event}
	return pub, sub
}

// Broadcast publishes v and wakes every blocked subscriber. Never blocks;
// when the ring is full the oldest unread message is overwritten. Returns
// ErrNoReceivers when no live subscriber exists.
func (p *Publisher[T]) Broadcast(v T) error {
	if err := p.sender.Broadcast(v); err != nil {
		return err
	}
	p.event.NotifyAll()
	return nil
}

// Close ends the stream and wakes every blocked subscriber so it can drain
// the remaining buffered messages and observe ErrDisconnected. Idempotent.
func (p *Publisher[T]) Close() {
	p.sender.Close()
	p.event.NotifyAll()
}

// Len returns the channel capacity.
func (p *Publisher[T]) Len() int {
	return p.sender.Len()
}

// IsEmpty reports whether nothing has ever been broadcast.
func (p *Publisher[T]) IsEmpty() bool {
	return p.sender.IsEmpty()
}

// Subscribers returns the current number of live subscribers.
func (p *Publisher[T]) Subscribers() int {
	return p.sender.Subscribers()
}

// Equals reports whether both publishers feed the same ring.
func (p *Publisher[T]) Equals(other *Publisher[T]) bool {
	return other != nil && p.sender.Equals(other.sender)
}

// TryRecv returns the next unread message without blocking: ErrEmpty when
// caught up with a live publisher, ErrDisconnected once the publisher is
// closed and the buffer drained.
func (s *Subscriber[T]) TryRecv() (*T, error) {
	return s.receiver.TryRecv()
}

// Recv blocks until a message arrives or the stream ends. The only error it
// returns is ErrDisconnected.
//
// The loop is check-listen-check: poll, register a listener, poll again to
// close the race with a broadcast that fired between the two, and only then
// park. A notification between registration and park is not lost — the
// listener's channel is already closed and Wait returns immediately.
func (s *Subscriber[T]) Recv() (*T, error) {
	for {
		v, err := s.receiver.TryRecv()
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrDisconnected) {
			return nil, err
		}
		l := s.event.Listen()
		v, err = s.receiver.TryRecv()
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrDisconnected) {
			return nil, err
		}
		l.Wait()
	}
}

// RecvTimeout is Recv with a deadline. Returns ErrTimeout when d elapses
// first; ErrTimeout is always recoverable, the subscriber stays usable.
func (s *Subscriber[T]) RecvTimeout(d time.Duration) (*T, error) {
	deadline := time.Now().Add(d)
	for {
		v, err := s.receiver.TryRecv()
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrDisconnected) {
			return nil, err
		}
		l := s.event.Listen()
		v, err = s.receiver.TryRecv()
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrDisconnected) {
			return nil, err
		}
		if !l.WaitTimeout(time.Until(deadline)) {
			return nil, ErrTimeout
		}
	}
}

// RecvContext is Recv with cancellation: the cooperative form of the wait
// loop. Returns ctx.Err() when the context ends first.
func (s *Subscriber[T]) RecvContext(ctx context.Context) (*T, error) {
	for {
		v, err := s.receiver.TryRecv()
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrDisconnected) {
			return nil, err
		}
		l := s.event.Listen()
		v, err = s.receiver.TryRecv()
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrDisconnected) {
			return nil, err
		}
		if err := l.WaitContext(ctx); err != nil {
			return nil, err
		}
	}
}

// All iterates the stream, blocking between messages, until the publisher
// closes and the buffer is drained.
func (s *Subscriber[T]) All() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for {
			v, err := s.Recv()
			if err != nil {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Drain iterates what is buffered right now and stops at the first ErrEmpty
// or at disconnection. Never blocks.
func (s *Subscriber[T]) Drain() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for {
			v, err := s.receiver.TryRecv()
			if err != nil {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// SetSkipItems controls how far past the oldest surviving message this
// subscriber restarts after being lapped. k is clamped to [0, capacity-1].
func (s *Subscriber[T]) SetSkipItems(k int) {
	s.receiver.SetSkipItems(k)
}

// Len returns the channel capacity.
func (s *Subscriber[T]) Len() int {
	return s.receiver.Len()
}

// IsEmpty reports whether this subscriber has consumed everything published.
func (s *Subscriber[T]) IsEmpty() bool {
	return s.receiver.IsEmpty()
}

// Lag returns how many published messages this subscriber has not consumed.
// Anything above capacity means data has been lost to overwrites.
func (s *Subscriber[T]) Lag() uint64 {
	return s.receiver.Lag()
}

// Clone creates an independent subscriber starting at this subscriber's
// current cursor with the same skip policy. Close it separately.
func (s *Subscriber[T]) Clone() *Subscriber[T] {
	return &Subscriber[T]{receiver: s.receiver.Clone(), event: s.event}
}

// Close unregisters the subscriber. Idempotent. Once the last subscriber
// closes, Broadcast starts returning ErrNoReceivers.
func (s *Subscriber[T]) Close() {
	s.receiver.Close()
}

// Equals reports whether both subscribers read the same ring from the same
// position.
func (s *Subscriber[T]) Equals(other *Subscriber[T]) bool {
	return other != nil && s.receiver.Equals(other.receiver)
}
