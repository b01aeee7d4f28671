package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/sakif/courier/internal/model"
)

// ClientConfig tunes a connection.
type ClientConfig struct {
	MaxMessageSize  int64         // read limit per frame, bytes
	RateLimitBurst  int           // messages allowed in a burst
	RateLimitRefill time.Duration // time to refill a full burst
	SendBuffer      int           // queued outbound messages before the client counts as stuck
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration // must be shorter than PongWait
}

// DefaultClientConfig returns the settings used when the server config
// leaves a field at zero.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxMessageSize:  4096,
		RateLimitBurst:  10,
		RateLimitRefill: time.Second,
		SendBuffer:      256,
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
		PingPeriod:      54 * time.Second,
	}
}

func (c ClientConfig) withDefaults() ClientConfig {
	d := DefaultClientConfig()
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = d.RateLimitBurst
	}
	if c.RateLimitRefill <= 0 {
		c.RateLimitRefill = d.RateLimitRefill
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	return c
}

// Client is one participant in the hub.
//
// LIFECYCLE: Connecting (NewClient) → Open (Hub.Register) → Closed
// (Hub.Unregister, terminal). done is closed exactly once on the transition
// to Closed; send is never closed.
type Client struct {
	id      string
	addr    string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rateLimiter
	cfg     ClientConfig
	logger  *slog.Logger
}

// NewClient wraps an upgraded connection. conn may be nil for clients that
// are driven directly through Send, as in tests.
func NewClient(conn *websocket.Conn, addr string, cfg ClientConfig, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	id := xid.New().String()

	return &Client{
		id:      id,
		addr:    addr,
		conn:    conn,
		send:    make(chan []byte, cfg.SendBuffer),
		done:    make(chan struct{}),
		limiter: newRateLimiter(cfg.RateLimitBurst, cfg.RateLimitRefill),
		cfg:     cfg,
		logger:  logger.With(slog.String("clientID", id)),
	}
}

// ID returns the connection's generated identifier.
func (c *Client) ID() string { return c.id }

// Send exposes the outbound queue. The write pump is its only reader for
// WebSocket-backed clients.
func (c *Client) Send() <-chan []byte { return c.send }

// Done is closed when the client is unregistered.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// enqueue offers payload without blocking. It fails when the client is
// closed or its queue is full.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// readPump decodes inbound frames and broadcasts them. It owns all reads on
// the connection and unregisters the client when the connection ends.
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.limiter.allow() {
			h.observer.MessageDropped(DropRateLimited)
			c.logger.Warn("rate limit exceeded; discarding message",
				slog.Int("burst", c.cfg.RateLimitBurst),
				slog.Duration("refill", c.cfg.RateLimitRefill),
			)
			continue
		}

		var msg model.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.observer.MessageDropped(DropInvalidJSON)
			c.logger.Warn("invalid message", slog.String("error", err.Error()))
			continue
		}

		if _, err := h.Broadcast(msg); err != nil {
			c.logger.Error("broadcast failed", slog.String("error", err.Error()))
		}
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("message exceeded maximum size", slog.Int64("limit", c.cfg.MaxMessageSize))
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway),
		errors.Is(err, net.ErrClosed):
		c.logger.Debug("client disconnected")
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.logger.Info("client connection lost", slog.String("error", err.Error()))
	default:
		c.logger.Debug("read ended", slog.String("error", err.Error()))
	}
}

// writePump sends queued messages one per frame and pings periodically. It
// owns all writes on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait))
			return

		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("write failed", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ping failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}
