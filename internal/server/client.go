package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"

	"github.com/adred-codev/busq"
	"github.com/adred-codev/busq/internal/monitoring"
)

// client is one WebSocket consumer: a connection plus its own bus
// subscriber. The subscriber cursor is what decouples this client from
// every other one — nobody waits for a slow socket.
type client struct {
	id     int64
	conn   net.Conn
	sub    *busq.Subscriber[[]byte]
	server *Server
	logger zerolog.Logger

	closeOnce sync.Once
}

func newClient(id int64, conn net.Conn, sub *busq.Subscriber[[]byte], s *Server) *client {
	return &client{
		id:     id,
		conn:   conn,
		sub:    sub,
		server: s,
		logger: s.logger.With().Int64("client_id", id).Str("remote", conn.RemoteAddr().String()).Logger(),
	}
}

// run drives the connection until the peer leaves, the stream ends, or the
// server shuts down.
func (c *client) run(ctx context.Context) {
	defer c.server.releaseClient()
	defer c.close()

	c.logger.Debug().Msg("client connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The read loop only consumes control frames and detects the peer
	// hanging up; any read error tears the client down.
	go func() {
		defer cancel()
		for {
			if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
				return
			}
			if _, _, err := wsutil.ReadClientData(c.conn); err != nil {
				return
			}
		}
	}()

	c.writeLoop(ctx)
}

// writeLoop delivers frames as the subscriber yields them. Waiting doubles
// as the ping schedule: a timeout means nothing was published for a whole
// ping period, so the quiet gap carries a keepalive instead.
func (c *client) writeLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		payload, err := c.sub.RecvTimeout(pingPeriod)
		switch {
		case err == nil:
			monitoring.SubscriberLag.Observe(float64(c.sub.Lag()))
			if !c.write(ws.OpText, *payload) {
				return
			}
			monitoring.MessagesSentTotal.Inc()
			monitoring.BytesSentTotal.Add(float64(len(*payload)))

		case errors.Is(err, busq.ErrTimeout):
			if !c.write(ws.OpPing, nil) {
				return
			}

		case errors.Is(err, busq.ErrDisconnected):
			// Stream over and fully drained: say goodbye properly.
			c.write(ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, "stream closed"))
			c.logger.Debug().Msg("stream closed, disconnecting client")
			return
		}
	}
}

func (c *client) write(op ws.OpCode, payload []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := wsutil.WriteServerMessage(c.conn, op, payload); err != nil {
		c.logger.Debug().Err(err).Msg("write failed")
		return false
	}
	return true
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		c.sub.Close()
		c.conn.Close()
		c.logger.Debug().Msg("client disconnected")
	})
}
