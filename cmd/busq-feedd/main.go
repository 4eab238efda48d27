package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/adred-codev/busq/internal/ingest"
	"github.com/adred-codev/busq/internal/monitoring"
	"github.com/adred-codev/busq/internal/server"
	"github.com/adred-codev/busq/internal/telemetry"
)

func main() {
	var (
		debug = flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	)
	flag.Parse()

	cfg, err := server.LoadConfig(nil)
	if err != nil {
		monitoring.NewLogger(monitoring.LoggerConfig{}).Fatal().Err(err).Msg("failed to load configuration")
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := monitoring.NewLogger(cfg.LoggerConfig())
	logger.Info().
		Str("addr", cfg.Addr).
		Int("ring_size", cfg.RingSize).
		Float64("sample_rate", cfg.SampleRate).
		Bool("nats", cfg.NATSEnabled).
		Bool("kafka", cfg.KafkaEnabled).
		Msg("starting busq-feedd")

	srv := server.New(cfg, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}

	// Telemetry feed: always on, it is the daemon's heartbeat stream.
	sampler, err := telemetry.NewSampler()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create sampler")
	}
	feed := telemetry.NewFeed(sampler, srv.Events(), cfg.SampleRate, logger)
	feed.OnDrop = func() { monitoring.EventsDroppedTotal.WithLabelValues("telemetry").Inc() }
	go func() {
		_ = feed.Run(srv.Context())
	}()

	// Optional bridges.
	if cfg.NATSEnabled {
		bridge, err := ingest.NewNATSBridge(ingest.NATSConfig{
			URL:             cfg.NATSUrl,
			Subjects:        cfg.NATSSubjects,
			MaxReconnects:   -1,
			ReconnectWait:   cfg.NATSReconnect,
			ReconnectJitter: cfg.NATSReconnect / 2,
			PingInterval:    20 * time.Second,
			MaxPingsOut:     3,
		}, srv.Events(), logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to start NATS bridge")
		}
		bridge.OnIngest = func() { monitoring.EventsIngestedTotal.WithLabelValues("nats").Inc() }
		bridge.OnDrop = func() { monitoring.EventsDroppedTotal.WithLabelValues("nats").Inc() }
		defer bridge.Close()
	}

	if cfg.KafkaEnabled {
		bridge, err := ingest.NewKafkaBridge(ingest.KafkaConfig{
			Brokers:       cfg.KafkaBrokers,
			ConsumerGroup: cfg.ConsumerGroup,
			Topics:        cfg.KafkaTopics,
		}, srv.Events(), logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to start Kafka bridge")
		}
		bridge.OnIngest = func() { monitoring.EventsIngestedTotal.WithLabelValues("kafka").Inc() }
		bridge.OnDrop = func() { monitoring.EventsDroppedTotal.WithLabelValues("kafka").Inc() }
		go func() {
			_ = bridge.Run(srv.Context())
		}()
		defer bridge.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("signal received, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}
