package telemetry

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Feed produces system-stats envelopes into the publish pipeline at a fixed
// rate. It is one of several event sources feeding the single publish pump;
// when the pipeline is full the sample is dropped — telemetry is recency
// data, a stale sample has no value.
type Feed struct {
	sampler *Sampler
	out     chan<- Envelope
	limiter *rate.Limiter
	logger  zerolog.Logger

	// OnDrop is called for every sample dropped on a full pipeline.
	OnDrop func()
}

// NewFeed creates a feed emitting perSec samples per second into out.
func NewFeed(sampler *Sampler, out chan<- Envelope, perSec float64, logger zerolog.Logger) *Feed {
	return &Feed{
		sampler: sampler,
		out:     out,
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
		logger:  logger.With().Str("component", "telemetry-feed").Logger(),
	}
}

// Run samples until ctx ends. Sampling errors are logged and skipped; the
// feed never stops on its own.
func (f *Feed) Run(ctx context.Context) error {
	f.logger.Info().Float64("per_sec", float64(f.limiter.Limit())).Msg("telemetry feed started")
	for {
		if err := f.limiter.Wait(ctx); err != nil {
			f.logger.Info().Msg("telemetry feed stopped")
			return err
		}

		stats, err := f.sampler.Sample(ctx)
		if err != nil {
			f.logger.Warn().Err(err).Msg("sample failed")
			continue
		}

		env, err := NewEnvelope(TypeSystemStats, stats)
		if err != nil {
			f.logger.Error().Err(err).Msg("encode failed")
			continue
		}

		select {
		case f.out <- env:
		default:
			if f.OnDrop != nil {
				f.OnDrop()
			}
		}
	}
}
