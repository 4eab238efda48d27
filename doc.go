// Package busq implements a bounded, overwriting publish/subscribe queue
// for fanning out shared messages to many independent consumers.
//
// The publisher never blocks. Every broadcast lands in a fixed-capacity ring
// of atomically swappable slots; a subscriber that cannot keep up loses the
// oldest unread messages instead of stalling the producer. That trade is the
// right one for market-data feeds, telemetry distribution, and live-stream
// pipelines where recency beats completeness.
//
// Messages are shared by pointer: a value is boxed once per broadcast and
// every subscriber that picks it up receives the same *T, so fan-out to ten
// thousand consumers copies nothing.
//
// Two API layers are provided. RawBounded returns non-blocking Sender and
// Receiver handles whose TryRecv never parks. Bounded layers an Event on top
// and returns Publisher and Subscriber handles with blocking, timeout, and
// context-aware receives plus iteration:
//
//	pub, sub := busq.Bounded[int](64)
//	defer sub.Close()
//
//	go func() {
//		for i := 0; i < 1000; i++ {
//			if err := pub.Broadcast(i); err != nil {
//				return
//			}
//		}
//		pub.Close()
//	}()
//
//	for v := range sub.All() {
//		fmt.Println(*v)
//	}
//
// Subscribers are cloned, not constructed: Clone starts a new independent
// cursor at the parent's position. Each subscriber owns its cursor and must
// be closed so the publisher can detect when nobody is listening.
//
// A Publisher is meant to be driven by one goroutine at a time. Subscribers
// are independent of each other; a single Subscriber must not be shared
// between goroutines without external synchronization.
package busq
