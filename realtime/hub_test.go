package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, relay Relay) (*Hub, string) {
	t.Helper()
	hub := NewHub(relay)
	hub.Start(context.Background())
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	evt := readEvent(t, conn)
	require.Equal(t, "connected", evt.Name)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt Event
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

func waitListeners(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ListenerCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastReachesEveryListener(t *testing.T) {
	hub, url := startHub(t, nil)
	first := dial(t, url)
	second := dial(t, url)
	waitListeners(t, hub, 2)

	hub.Broadcast("newPost", map[string]string{"content": "hi"})

	for _, conn := range []*websocket.Conn{first, second} {
		evt := readEvent(t, conn)
		assert.Equal(t, "newPost", evt.Name)
		var data map[string]string
		require.NoError(t, json.Unmarshal(evt.Data, &data))
		assert.Equal(t, "hi", data["content"])
	}
}

func TestBroadcastToRoom(t *testing.T) {
	hub, url := startHub(t, nil)
	member := dial(t, url)
	outsider := dial(t, url)
	waitListeners(t, hub, 2)

	require.NoError(t, member.WriteJSON(clientMessage{Action: "joinRoom", Room: "post:1"}))
	ack := readEvent(t, member)
	require.Equal(t, "joinedRoom", ack.Name)

	hub.BroadcastTo("post:1", "commentDeleted", map[string]int{"commentId": 3})
	hub.Broadcast("newPost", map[string]int{"id": 2})

	evt := readEvent(t, member)
	assert.Equal(t, "commentDeleted", evt.Name)
	assert.Equal(t, "post:1", evt.Room)
	assert.Equal(t, "newPost", readEvent(t, member).Name)

	// the outsider only sees the global event
	assert.Equal(t, "newPost", readEvent(t, outsider).Name)

	require.NoError(t, member.WriteJSON(clientMessage{Action: "leaveRoom", Room: "post:1"}))
	assert.Equal(t, "leftRoom", readEvent(t, member).Name)
	hub.BroadcastTo("post:1", "commentDeleted", nil)
	hub.Broadcast("reaction", nil)
	assert.Equal(t, "reaction", readEvent(t, member).Name)
}

func TestListenerDisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, url)
	waitListeners(t, hub, 1)

	require.NoError(t, conn.Close())
	waitListeners(t, hub, 0)
	hub.Broadcast("newPost", nil)
}

func TestBroadcastWithoutRunningHubIsNoop(t *testing.T) {
	var nilHub *Hub
	assert.NotPanics(t, func() { nilHub.Broadcast("newPost", nil) })

	idle := NewHub(nil)
	assert.NotPanics(t, func() { idle.Broadcast("newPost", nil) })

	req := httptest.NewRequest("GET", "/realtime", nil)
	rec := httptest.NewRecorder()
	idle.ServeHTTP(rec, req)
	assert.Equal(t, 503, rec.Code)
}

func TestStopDisconnectsListeners(t *testing.T) {
	hub := NewHub(nil)
	hub.Start(context.Background())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	waitListeners(t, hub, 1)

	hub.Stop()
	waitListeners(t, hub, 0)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

// loopRelay delivers published events back to the subscriber, like a single
// instance subscribed to its own channel.
type loopRelay struct {
	events chan Event
	fail   bool
}

func (r *loopRelay) Publish(_ context.Context, evt Event) error {
	if r.fail {
		return errors.New("relay down")
	}
	r.events <- evt
	return nil
}

func (r *loopRelay) Subscribe(ctx context.Context, ready func(), deliver func(Event)) error {
	ready()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-r.events:
			deliver(evt)
		}
	}
}

func TestRelayCarriesEvents(t *testing.T) {
	relay := &loopRelay{events: make(chan Event, 8)}
	hub, url := startHub(t, relay)
	conn := dial(t, url)
	waitListeners(t, hub, 1)
	require.Eventually(t, hub.relayLive.Load, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast("newComment", map[string]string{"comment": "hello"})
	evt := readEvent(t, conn)
	assert.Equal(t, "newComment", evt.Name)
}

func TestRelayFailureFallsBackToLocalDelivery(t *testing.T) {
	relay := &loopRelay{events: make(chan Event, 8), fail: true}
	hub, url := startHub(t, relay)
	conn := dial(t, url)
	waitListeners(t, hub, 1)

	hub.Broadcast("reaction", map[string]string{"type": "like"})
	assert.Equal(t, "reaction", readEvent(t, conn).Name)
}

// flakyRelay refuses the first failFirst subscriptions, like Redis being
// unreachable while the server boots.
type flakyRelay struct {
	events    chan Event
	failFirst int32
	attempts  atomic.Int32
	published atomic.Int32
}

func (r *flakyRelay) Publish(_ context.Context, evt Event) error {
	r.published.Add(1)
	r.events <- evt
	return nil
}

func (r *flakyRelay) Subscribe(ctx context.Context, ready func(), deliver func(Event)) error {
	if r.attempts.Add(1) <= r.failFirst {
		return errors.New("connection refused")
	}
	ready()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-r.events:
			deliver(evt)
		}
	}
}

func startFlakyHub(t *testing.T, relay *flakyRelay) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub(relay)
	hub.retryMin = 10 * time.Millisecond
	hub.retryMax = 20 * time.Millisecond
	hub.Start(context.Background())
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
	})
	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	waitListeners(t, hub, 1)
	return hub, conn
}

func TestRelayResubscribesAfterFailedStart(t *testing.T) {
	relay := &flakyRelay{events: make(chan Event, 8), failFirst: 2}
	hub, conn := startFlakyHub(t, relay)

	require.Eventually(t, hub.relayLive.Load, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, relay.attempts.Load(), int32(3))

	hub.Broadcast("newPost", map[string]int{"id": 1})
	assert.Equal(t, "newPost", readEvent(t, conn).Name)
	assert.Equal(t, int32(1), relay.published.Load())
}

func TestBroadcastDeliversLocallyWhileRelayIsDown(t *testing.T) {
	relay := &flakyRelay{events: make(chan Event, 8), failFirst: 1 << 30}
	hub, conn := startFlakyHub(t, relay)
	require.Eventually(t, func() bool { return relay.attempts.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	hub.Broadcast("reaction", map[string]string{"type": "like"})
	assert.Equal(t, "reaction", readEvent(t, conn).Name)
	assert.Zero(t, relay.published.Load())
	assert.False(t, hub.relayLive.Load())
}
