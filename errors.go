package busq

import "errors"

var (
	// ErrNoReceivers is returned by Broadcast when no live subscriber
	// exists at call time. The caller still holds the value; nothing was
	// published.
	ErrNoReceivers = errors.New("busq: broadcast with no receivers")

	// ErrEmpty is returned by a non-blocking receive when the queue holds
	// nothing new and the publisher is still live.
	ErrEmpty = errors.New("busq: empty")

	// ErrDisconnected is returned once the publisher is gone and every
	// buffered message has been drained.
	ErrDisconnected = errors.New("busq: disconnected")

	// ErrTimeout is returned by RecvTimeout when the deadline elapses
	// before a message arrives.
	ErrTimeout = errors.New("busq: receive timed out")
)
