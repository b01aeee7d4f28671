package chat

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/courier/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingObserver records hub events for assertions.
type countingObserver struct {
	mu         sync.Mutex
	opened     int
	closed     int
	broadcasts []int
	drops      map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{drops: make(map[string]int)}
}

func (o *countingObserver) ConnectionOpened() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened++
}

func (o *countingObserver) ConnectionClosed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed++
}

func (o *countingObserver) MessageBroadcast(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.broadcasts = append(o.broadcasts, n)
}

func (o *countingObserver) MessageDropped(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.drops[reason]++
}

func (o *countingObserver) dropCount(reason string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.drops[reason]
}

func newTestClient(cfg ClientConfig) *Client {
	return NewClient(nil, "test", cfg, discardLogger())
}

func sampleMessage() model.Message {
	return model.Message{
		MessageText: "hello",
		Timestamp:   "2026-03-01T12:00:00Z",
		SenderID:    "u1",
		Sender:      "alice",
		Receiver:    "everyone",
	}
}

func receive(t *testing.T, c *Client) model.Message {
	t.Helper()
	select {
	case raw := <-c.Send():
		var msg model.Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return model.Message{}
	}
}

func assertNothingQueued(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send():
		t.Fatalf("unexpected message queued: %s", raw)
	default:
	}
}

// =========================================================================
// MEMBERSHIP TESTS
// =========================================================================

func TestHub_RegisterAndSnapshot(t *testing.T) {
	obs := newCountingObserver()
	h := NewHub(obs, discardLogger())

	a, b := newTestClient(ClientConfig{}), newTestClient(ClientConfig{})
	require.NoError(t, h.Register(a))
	require.NoError(t, h.Register(b))

	assert.Equal(t, 2, h.Len())
	assert.ElementsMatch(t, []*Client{a, b}, h.Snapshot())
	assert.Equal(t, 2, obs.opened)
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	obs := newCountingObserver()
	h := NewHub(obs, discardLogger())
	c := newTestClient(ClientConfig{})
	require.NoError(t, h.Register(c))

	h.Unregister(c)
	h.Unregister(c)

	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 1, obs.closed)

	select {
	case <-c.Done():
	default:
		t.Fatal("client should be closed after unregister")
	}
}

func TestHub_UnregisterUnknownClient(t *testing.T) {
	h := NewHub(nil, discardLogger())
	c := newTestClient(ClientConfig{})

	assert.NotPanics(t, func() { h.Unregister(c) })
	assert.Equal(t, 0, h.Len())
}

// =========================================================================
// BROADCAST TESTS
// =========================================================================

func TestHub_BroadcastReachesEveryClientIncludingSender(t *testing.T) {
	h := NewHub(nil, discardLogger())
	clients := []*Client{
		newTestClient(ClientConfig{}),
		newTestClient(ClientConfig{}),
		newTestClient(ClientConfig{}),
	}
	for _, c := range clients {
		require.NoError(t, h.Register(c))
	}

	n, err := h.Broadcast(sampleMessage())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, c := range clients {
		assert.Equal(t, sampleMessage(), receive(t, c))
		assertNothingQueued(t, c)
	}
}

func TestHub_BroadcastSkipsUnregisteredClient(t *testing.T) {
	h := NewHub(nil, discardLogger())
	a, b, c := newTestClient(ClientConfig{}), newTestClient(ClientConfig{}), newTestClient(ClientConfig{})
	for _, cl := range []*Client{a, b, c} {
		require.NoError(t, h.Register(cl))
	}

	h.Unregister(c)

	n, err := h.Broadcast(sampleMessage())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	receive(t, a)
	receive(t, b)
	assertNothingQueued(t, c)
}

func TestHub_BroadcastWithNoClients(t *testing.T) {
	obs := newCountingObserver()
	h := NewHub(obs, discardLogger())

	n, err := h.Broadcast(sampleMessage())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, []int{0}, obs.broadcasts)
}

func TestHub_FullQueueUnregistersOnlyThatClient(t *testing.T) {
	obs := newCountingObserver()
	h := NewHub(obs, discardLogger())

	slow := newTestClient(ClientConfig{SendBuffer: 1})
	fast := newTestClient(ClientConfig{SendBuffer: 8})
	require.NoError(t, h.Register(slow))
	require.NoError(t, h.Register(fast))

	_, err := h.Broadcast(sampleMessage())
	require.NoError(t, err)

	// slow has not drained its single slot.
	n, err := h.Broadcast(sampleMessage())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, 1, h.Len())
	assert.Equal(t, []*Client{fast}, h.Snapshot())
	assert.Equal(t, 1, obs.dropCount(DropQueueFull))

	receive(t, fast)
	receive(t, fast)
}

func TestHub_ConcurrentRegisterAndBroadcast(t *testing.T) {
	h := NewHub(nil, discardLogger())

	const workers = 20
	clients := make([]*Client, workers)
	for i := range clients {
		clients[i] = newTestClient(ClientConfig{SendBuffer: workers * 2})
	}

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.Register(clients[i]))
		}()
		go func() {
			defer wg.Done()
			_, err := h.Broadcast(sampleMessage())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, h.Len())
	for _, c := range clients {
		assert.LessOrEqual(t, len(c.Send()), workers)
	}
}

// =========================================================================
// SHUTDOWN TESTS
// =========================================================================

func TestHub_ShutdownClosesClientsAndRefusesNewOnes(t *testing.T) {
	h := NewHub(nil, discardLogger())
	a, b := newTestClient(ClientConfig{}), newTestClient(ClientConfig{})
	require.NoError(t, h.Register(a))
	require.NoError(t, h.Register(b))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))

	assert.Equal(t, 0, h.Len())
	for _, c := range []*Client{a, b} {
		select {
		case <-c.Done():
		default:
			t.Fatal("client should be closed after shutdown")
		}
	}

	err := h.Register(newTestClient(ClientConfig{}))
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestClient_EnqueueAfterClose(t *testing.T) {
	c := newTestClient(ClientConfig{})
	c.close()
	c.close()

	assert.False(t, c.enqueue([]byte("x")))
}

func TestClientConfig_Defaults(t *testing.T) {
	cfg := ClientConfig{PongWait: 10 * time.Second, PingPeriod: 20 * time.Second}.withDefaults()

	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.Equal(t, 256, cfg.SendBuffer)
	assert.Equal(t, 9*time.Second, cfg.PingPeriod)
}
