package telemetry

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// Event types carried over the bus.
const (
	TypeSystemStats = "system:stats"
)

// Envelope wraps every message published over the bus with delivery
// metadata. Clients use the sequence number for gap detection: the bus
// deliberately drops the oldest data for lagging consumers, and a jump in
// seq tells the client exactly how much it missed.
type Envelope struct {
	// Seq is monotonically increasing across the whole stream, assigned
	// by the publish pump just before broadcast.
	Seq int64 `json:"seq"`

	// Timestamp is the server time in Unix milliseconds.
	Timestamp int64 `json:"ts"`

	// Type routes the message client-side, e.g. "system:stats",
	// "nats:telemetry.host1", "kafka:metrics".
	Type string `json:"type"`

	// Data is the type-specific payload.
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope wraps v as the payload of a fresh envelope. Seq is left to
// the publish pump.
func NewEnvelope(eventType string, v any) (Envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Timestamp: time.Now().UnixMilli(),
		Type:      eventType,
		Data:      data,
	}, nil
}

// RawEnvelope wraps an already-serialized payload, as delivered by the
// NATS and Kafka bridges.
func RawEnvelope(eventType string, data []byte) Envelope {
	return Envelope{
		Timestamp: time.Now().UnixMilli(),
		Type:      eventType,
		Data:      data,
	}
}

// Serialize renders the envelope for the wire.
func (e *Envelope) Serialize() ([]byte, error) {
	return json.Marshal(e)
}

// SequenceGenerator hands out the stream-wide message sequence.
type SequenceGenerator struct {
	seq atomic.Int64
}

// Next returns the next sequence number, starting at 1.
func (g *SequenceGenerator) Next() int64 {
	return g.seq.Add(1)
}
