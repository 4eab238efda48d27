package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/adred-codev/busq/internal/telemetry"
)

// KafkaConfig holds Kafka/Redpanda bridge configuration.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
	Topics        []string
}

// KafkaBridge consumes a set of topics and forwards every record into the
// publish pipeline as a "kafka:<topic>" envelope.
type KafkaBridge struct {
	client *kgo.Client
	out    chan<- telemetry.Envelope
	logger zerolog.Logger

	// OnIngest and OnDrop observe accepted and dropped records.
	OnIngest func()
	OnDrop   func()
}

// NewKafkaBridge creates a consumer-group client ready to Run.
func NewKafkaBridge(cfg KafkaConfig, out chan<- telemetry.Envelope, logger zerolog.Logger) (*KafkaBridge, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.ConsumerGroup == "" {
		return nil, fmt.Errorf("consumer group is required")
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("at least one topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(cfg.Topics...),
		// Latest only: a consumer that was down has no use for stale
		// ticks, the same policy the ring applies to lagging readers.
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &KafkaBridge{
		client: client,
		out:    out,
		logger: logger.With().Str("component", "kafka-bridge").Logger(),
	}, nil
}

// Run polls until ctx ends.
func (b *KafkaBridge) Run(ctx context.Context) error {
	b.logger.Info().Msg("kafka bridge started")
	for {
		fetches := b.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			b.logger.Info().Msg("kafka bridge stopped")
			return ctx.Err()
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			b.logger.Error().
				Str("topic", topic).
				Int32("partition", partition).
				Err(err).
				Msg("fetch error")
		})

		fetches.EachRecord(func(rec *kgo.Record) {
			env := telemetry.RawEnvelope("kafka:"+rec.Topic, rec.Value)
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
		})
	}
}

// Close shuts the client down; any blocked PollFetches returns.
func (b *KafkaBridge) Close() {
	b.client.Close()
}
