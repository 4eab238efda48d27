// Package ingest bridges external event sources — NATS subjects and
// Kafka/Redpanda topics — into the daemon's publish pipeline. Bridges never
// block their source: when the pipeline is full the event is dropped and
// counted, mirroring the bus's own overwrite policy.
package ingest

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/adred-codev/busq/internal/telemetry"
)

// NATSConfig holds NATS bridge configuration.
type NATSConfig struct {
	URL             string
	Subjects        []string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectJitter time.Duration
	PingInterval    time.Duration
	MaxPingsOut     int
}

// NATSBridge subscribes to a set of subjects and forwards every message
// into the publish pipeline as a "nats:<subject>" envelope.
type NATSBridge struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	out    chan<- telemetry.Envelope
	logger zerolog.Logger

	// OnIngest and OnDrop observe accepted and dropped messages.
	OnIngest func()
	OnDrop   func()
}

// NewNATSBridge connects, subscribes to every configured subject, and
// returns the running bridge.
func NewNATSBridge(cfg NATSConfig, out chan<- telemetry.Envelope, logger zerolog.Logger) (*NATSBridge, error) {
	b := &NATSBridge{
		out:    out,
		logger: logger.With().Str("component", "nats-bridge").Logger(),
	}

	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(cfg.ReconnectJitter, cfg.ReconnectJitter),
		nats.PingInterval(cfg.PingInterval),
		nats.MaxPingsOutstanding(cfg.MaxPingsOut),
		nats.ConnectHandler(func(conn *nats.Conn) {
			b.logger.Info().Str("url", conn.ConnectedUrl()).Msg("connected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			b.logger.Warn().Err(err).Msg("disconnected from NATS")
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			b.logger.Info().Str("url", conn.ConnectedUrl()).Msg("reconnected to NATS")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			b.logger.Error().Err(err).Msg("NATS error")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	b.conn = conn

	for _, subject := range cfg.Subjects {
		sub, err := conn.Subscribe(subject, b.handle)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to subscribe to %q: %w", subject, err)
		}
		b.subs = append(b.subs, sub)
		b.logger.Info().Str("subject", subject).Msg("subscribed")
	}

	return b, nil
}

func (b *NATSBridge) handle(msg *nats.Msg) {
	env := telemetry.RawEnvelope("nats:"+msg.Subject, msg.Data)
	select {
	case b.out <- env:
		if b.OnIngest != nil {
			b.OnIngest()
		}
	default:
		if b.OnDrop != nil {
			b.OnDrop()
		}
	}
}

// Close unsubscribes and drops the connection.
func (b *NATSBridge) Close() {
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Warn().Err(err).Msg("unsubscribe failed")
		}
	}
	b.conn.Close()
	b.logger.Info().Msg("NATS bridge closed")
}
