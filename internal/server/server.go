package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/rs/zerolog"

	"github.com/adred-codev/busq"
	"github.com/adred-codev/busq/internal/monitoring"
	"github.com/adred-codev/busq/internal/telemetry"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 5 * time.Second

	// Time allowed to read the next message (or pong) from the peer.
	pongWait = 30 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Server fans the event stream out to WebSocket clients through the bus.
//
// Every event source (telemetry feed, NATS bridge, Kafka bridge) delivers
// into Events(); a single pump goroutine stamps the sequence, serializes
// once, and broadcasts. Each connected client holds its own bus subscriber,
// so a slow client silently loses the oldest frames instead of slowing
// anyone else down — its lag is visible in the metrics.
type Server struct {
	cfg    *Config
	logger zerolog.Logger

	pub    *busq.Publisher[[]byte]
	root   *busq.Subscriber[[]byte] // template the per-client subscribers are cloned from
	events chan telemetry.Envelope
	seq    telemetry.SequenceGenerator

	listener net.Listener
	httpSrv  *http.Server
	connSem  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	clientCount atomic.Int64
	nextClient  atomic.Int64
	startedAt   time.Time
}

// New creates a server; call Start to begin serving.
func New(cfg *Config, logger zerolog.Logger) *Server {
	pub, root := busq.Bounded[[]byte](cfg.RingSize)
	root.SetSkipItems(cfg.SkipItems)

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		logger:  logger.With().Str("component", "server").Logger(),
		pub:     pub,
		root:    root,
		events:  make(chan telemetry.Envelope, cfg.EventBuffer),
		connSem: make(chan struct{}, cfg.MaxConnections),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Events is the intake of the publish pipeline. Producers must not block on
// it; drop and count instead.
func (s *Server) Events() chan<- telemetry.Envelope {
	return s.events
}

// Context ends when the server shuts down.
func (s *Server) Context() context.Context {
	return s.ctx
}

// Start binds the listener and serves until Shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = listener
	s.startedAt = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", monitoring.Handler())
	s.httpSrv = &http.Server{Handler: mux}

	s.wg.Add(1)
	go s.pump()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	s.logger.Info().
		Str("addr", s.cfg.Addr).
		Int("ring_size", s.cfg.RingSize).
		Int("max_connections", s.cfg.MaxConnections).
		Msg("server started")
	return nil
}

// pump is the single publisher goroutine: it owns the broadcast right for
// the ring. Sequence stamping and serialization happen exactly once per
// event, no matter how many clients are connected.
func (s *Server) pump() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case env := <-s.events:
			env.Seq = s.seq.Next()
			payload, err := env.Serialize()
			if err != nil {
				s.logger.Error().Err(err).Str("type", env.Type).Msg("serialize failed")
				continue
			}
			if err := s.pub.Broadcast(payload); err != nil {
				// Unreachable while the template subscriber is held,
				// but the accounting stays honest.
				monitoring.NoReceiversTotal.Inc()
				continue
			}
			monitoring.BroadcastsTotal.Inc()
			// The template subscriber is not a real consumer.
			monitoring.SubscribersActive.Set(float64(s.pub.Subscribers() - 1))
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	select {
	case s.connSem <- struct{}{}:
	default:
		http.Error(w, "server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		<-s.connSem
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		return
	}

	client := newClient(s.nextClient.Add(1), conn, s.root.Clone(), s)
	s.clientCount.Add(1)
	monitoring.ConnectionsTotal.Inc()
	monitoring.ConnectionsActive.Inc()

	// Clients are not tied to the server context: on shutdown they end
	// through the publisher close, after draining what is buffered.
	s.wg.Add(1)
	go client.run(context.Background())
}

func (s *Server) releaseClient() {
	s.clientCount.Add(-1)
	monitoring.ConnectionsActive.Dec()
	<-s.connSem
	s.wg.Done()
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"connections":    s.clientCount.Load(),
		"subscribers":    s.pub.Subscribers() - 1,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

// Shutdown closes the publisher so every client drains what is buffered,
// observes the disconnect, and leaves; then stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down")
	s.cancel()
	s.pub.Close()

	var httpErr error
	if s.httpSrv != nil {
		httpErr = s.httpSrv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return httpErr
}
