package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specview/internal/config"
	"specview/internal/infrastructure"
	"specview/internal/shared/testutil"
	"specview/pkg/contracts/events"
)

// fakeConn records written frames and blocks reads until closed
type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
	types   []int
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, messageType)
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("connection closed")
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) RemoteAddr() string                { return "127.0.0.1:5555" }

func (f *fakeConn) textMessages() []events.WebSocketMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []events.WebSocketMessage
	for i, data := range f.written {
		if f.types[i] != websocket.TextMessage {
			continue
		}
		var msg events.WebSocketMessage
		if err := json.Unmarshal(data, &msg); err == nil {
			out = append(out, msg)
		}
	}
	return out
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(DefaultOptions(), nil, logger)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func connect(t *testing.T, hub *Hub) (*Client, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	client := NewClient(hub, conn, "trace-1", nil)
	hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
	return client, conn
}

func TestHub_RegisterGreetsClient(t *testing.T) {
	hub := newTestHub(t)
	client, conn := connect(t, hub)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(conn.textMessages()) == 1 }, time.Second, 5*time.Millisecond)

	greeting := conn.textMessages()[0]
	assert.Equal(t, events.MessageTypeConnect, greeting.Type)
	assert.Equal(t, "trace-1", greeting.TraceID)
	data, ok := greeting.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, client.ID(), data["client_id"])
}

func TestHub_PublishReachesAllClients(t *testing.T) {
	hub := newTestHub(t)
	_, a := connect(t, hub)
	_, b := connect(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	ctx := infrastructure.WithTraceID(context.Background(), "req-42")
	hub.Publish(ctx, events.MessageTypeCatalogReloaded, events.CatalogEvent{Path: "/data/run.spec", Rows: 5})

	for _, conn := range []*fakeConn{a, b} {
		require.Eventually(t, func() bool { return len(conn.textMessages()) == 2 }, time.Second, 5*time.Millisecond)
		msg := conn.textMessages()[1]
		assert.Equal(t, events.MessageTypeCatalogReloaded, msg.Type)
		assert.Equal(t, "req-42", msg.TraceID)
		assert.Equal(t, "/data/run.spec", msg.Data.(map[string]interface{})["path"])
	}

	assert.Eventually(t, func() bool { return hub.Stats().MessagesSent == 2 }, time.Second, 5*time.Millisecond)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub := newTestHub(t)
	_, conn := connect(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), hub.Stats().TotalConnections)
}

func TestHub_StopClosesClients(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(DefaultOptions(), nil, logger)
	hub.Start()

	_, conn := connect(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Stop()
	assert.Equal(t, 0, hub.ClientCount())

	// WritePump sends a close frame once its queue is closed
	assert.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		for _, typ := range conn.types {
			if typ == websocket.CloseMessage {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	// Publishing after Stop must not block
	hub.Publish(context.Background(), events.MessageTypeCatalogOpened, nil)
	hub.Stop()
}

func TestHub_PublishDropsWhenQueueFull(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	hub := NewHub(DefaultOptions(), nil, logger)
	// Not started, so nothing drains the queue
	for i := 0; i < cap(hub.broadcast)+3; i++ {
		hub.Publish(context.Background(), events.MessageTypeCatalogOpened, i)
	}

	assert.Equal(t, int64(3), hub.Stats().MessagesDropped)
	assert.True(t, handler.ContainsMessage("event dropped"))
}

func TestOptionsFrom(t *testing.T) {
	opts := OptionsFrom(config.WebSocketConfig{PingPeriod: 5 * time.Second, PongWait: 20 * time.Second})
	assert.Equal(t, 5*time.Second, opts.PingPeriod)
	assert.Equal(t, 20*time.Second, opts.PongWait)
	assert.Equal(t, 256, opts.SendBuffer)
}
