// Package chat relays JSON messages between WebSocket clients.
//
// A Hub owns the live connection set. One Hub is created per server process
// and handed to the HTTP handler; there is no package-level state.
//
// CONCURRENCY MODEL:
// The set is a map behind a sync.RWMutex. The lock is held only to add,
// remove or copy members, never while sending: Broadcast takes a snapshot,
// releases the lock, then offers the payload to each client's buffered send
// queue without blocking. A client whose queue is full or already closed is
// unregistered; the rest still receive the message.
//
// A client's send channel is never closed. Closing is signalled through its
// done channel (guarded by sync.Once), so a broadcast racing with a
// disconnect cannot panic on a closed channel.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/courier/internal/model"
)

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("chat: hub is shut down")

// Observer receives hub events for metrics. All methods must be safe for
// concurrent use.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	MessageBroadcast(recipients int)
	MessageDropped(reason string)
}

// Reasons passed to Observer.MessageDropped.
const (
	DropInvalidJSON = "invalid_json"
	DropRateLimited = "rate_limited"
	DropQueueFull   = "queue_full"
)

type nopObserver struct{}

func (nopObserver) ConnectionOpened() {}
func (nopObserver) ConnectionClosed() {}
func (nopObserver) MessageBroadcast(int) {}
func (nopObserver) MessageDropped(string) {}

// Hub is the registry of live clients.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	closed   bool
	pumps    sync.WaitGroup
	observer Observer
	logger   *slog.Logger
}

// NewHub creates an empty Hub. observer may be nil.
func NewHub(observer Observer, logger *slog.Logger) *Hub {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:  make(map[*Client]struct{}),
		observer: observer,
		logger:   logger,
	}
}

// Register adds c to the live set (Connecting → Open). For clients backed by
// a WebSocket it also starts the read and write pumps.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.clients[c] = struct{}{}
	total := len(h.clients)
	if c.conn != nil {
		h.pumps.Add(2)
	}
	h.mu.Unlock()

	h.observer.ConnectionOpened()
	h.logger.Info("client registered",
		slog.String("clientID", c.id),
		slog.String("addr", c.addr),
		slog.Int("clients", total),
	)

	if c.conn != nil {
		go func() {
			defer h.pumps.Done()
			c.writePump()
		}()
		go func() {
			defer h.pumps.Done()
			c.readPump(h)
		}()
	}
	return nil
}

// Unregister removes c (Open → Closed) and closes it. Calling it for a
// client that is already gone does nothing.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	total := len(h.clients)
	h.mu.Unlock()

	c.close()

	if ok {
		h.observer.ConnectionClosed()
		h.logger.Info("client unregistered",
			slog.String("clientID", c.id),
			slog.String("addr", c.addr),
			slog.Int("clients", total),
		)
	}
}

// Broadcast encodes msg once and delivers it to every registered client,
// the sender included. It returns how many clients accepted the message.
//
// Delivery is best effort and at most once. A client that cannot take the
// message is treated as closed and unregistered.
func (h *Hub) Broadcast(msg model.Message) (int, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("chat: encoding message: %w", err)
	}

	var failed []*Client
	delivered := 0
	for _, c := range h.Snapshot() {
		if c.enqueue(payload) {
			delivered++
			continue
		}
		failed = append(failed, c)
	}

	for _, c := range failed {
		h.observer.MessageDropped(DropQueueFull)
		h.logger.Warn("dropping client that could not take a message", slog.String("clientID", c.id))
		h.Unregister(c)
	}

	h.observer.MessageBroadcast(delivered)
	return delivered, nil
}

// Snapshot returns a copy of the current members, in no particular order.
func (h *Hub) Snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// Len returns the number of live clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every client, refuses new registrations and waits for all
// pumps to exit or ctx to end.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	h.logger.Info("shutting down hub", slog.Int("clients", len(clients)))
	for _, c := range clients {
		h.Unregister(c)
	}

	done := make(chan struct{})
	go func() {
		h.pumps.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("chat: waiting for clients to stop: %w", ctx.Err())
	}
}
