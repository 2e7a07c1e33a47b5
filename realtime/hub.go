package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cppla/postboard/utils"
)

// Broadcaster pushes content events to connected listeners. Delivery is best effort.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
	BroadcastTo(room, event string, payload interface{})
}

// Event is the frame written to listeners and carried over a Relay.
type Event struct {
	Name string          `json:"event"`
	Room string          `json:"room,omitempty"`
	Data json.RawMessage `json:"data"`
}

// Relay fans events out across server instances.
type Relay interface {
	Publish(ctx context.Context, evt Event) error
	// Subscribe blocks, handing every received event to deliver until ctx is done.
	// ready is called once the subscription is live.
	Subscribe(ctx context.Context, ready func(), deliver func(Event)) error
}

const (
	publishTimeout = 2 * time.Second

	relayRetryMin = 500 * time.Millisecond
	relayRetryMax = 30 * time.Second
)

// Hub is the registry of connected listeners. A Hub must be started before it
// accepts listeners; broadcasting through a stopped or nil Hub logs and returns.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string]*Listener
	running   bool

	relay Relay
	// relayLive is set while this instance is subscribed; until then events are
	// delivered locally so they are not published into a channel nobody here reads.
	relayLive atomic.Bool
	retryMin  time.Duration
	retryMax  time.Duration

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	upgrader websocket.Upgrader
}

// NewHub creates a Hub. relay may be nil for a single instance deployment.
func NewHub(relay Relay) *Hub {
	return &Hub{
		listeners: make(map[string]*Listener),
		relay:     relay,
		retryMin:  relayRetryMin,
		retryMax:  relayRetryMax,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Start marks the hub ready and subscribes to the relay, if any.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	ctx, h.cancel = context.WithCancel(ctx)
	h.running = true

	if h.relay != nil {
		h.wg.Add(1)
		go h.subscribeLoop(ctx)
	}
}

// subscribeLoop keeps the relay subscription alive, resubscribing with backoff
// until ctx is done.
func (h *Hub) subscribeLoop(ctx context.Context) {
	defer h.wg.Done()
	backoff := h.retryMin
	for {
		err := h.relay.Subscribe(ctx, func() {
			h.relayLive.Store(true)
			backoff = h.retryMin
		}, h.deliver)
		h.relayLive.Store(false)
		if ctx.Err() != nil {
			return
		}
		utils.Sugar.Warnf("realtime relay subscription ended, retrying in %s: %v", backoff, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, h.retryMax)
	}
}

// Stop disconnects every listener and ends the relay subscription.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.cancel()
	conns := make([]*websocket.Conn, 0, len(h.listeners))
	for _, l := range h.listeners {
		conns = append(conns, l.conn)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	h.wg.Wait()
}

// ListenerCount returns the number of connected listeners.
func (h *Hub) ListenerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Broadcast sends the event to every listener.
func (h *Hub) Broadcast(event string, payload interface{}) {
	h.BroadcastTo("", event, payload)
}

// BroadcastTo sends the event to listeners that joined room. An empty room means everyone.
func (h *Hub) BroadcastTo(room, event string, payload interface{}) {
	if h == nil {
		utils.Sugar.Warnf("realtime hub not initialized, dropping event=%s", event)
		return
	}
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		utils.Sugar.Warnf("realtime hub not running, dropping event=%s", event)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		utils.Sugar.Warnf("realtime payload encode failed event=%s err=%v", event, err)
		return
	}
	evt := Event{Name: event, Room: room, Data: data}

	if h.relay != nil && h.relayLive.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := h.relay.Publish(ctx, evt)
		cancel()
		if err == nil {
			return
		}
		utils.Sugar.Warnf("realtime relay publish failed, delivering locally event=%s err=%v", event, err)
	}
	h.deliver(evt)
}

// deliver writes evt to the matching local listeners without blocking.
func (h *Hub) deliver(evt Event) {
	frame, err := json.Marshal(evt)
	if err != nil {
		utils.Sugar.Warnf("realtime frame encode failed event=%s err=%v", evt.Name, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, l := range h.listeners {
		if evt.Room == "" || l.inRoom(evt.Room) {
			l.enqueue(frame)
		}
	}
}

// ServeHTTP upgrades the request to a websocket listener.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		http.Error(w, "realtime unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Sugar.Debugf("realtime upgrade failed: %v", err)
		return
	}
	l := newListener(uuid.NewString(), h, conn)
	if !h.register(l) {
		_ = conn.Close()
		return
	}
	utils.Sugar.Debugf("realtime listener connected id=%s", l.id)

	l.reply("connected", map[string]string{"id": l.id})
	go l.writePump()
	l.readPump()
}

func (h *Hub) register(l *Listener) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return false
	}
	h.listeners[l.id] = l
	return true
}

// unregister removes l and closes its send queue. Safe to call more than once.
func (h *Hub) unregister(l *Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.listeners[l.id]; ok {
		delete(h.listeners, l.id)
		close(l.send)
		utils.Sugar.Debugf("realtime listener disconnected id=%s", l.id)
	}
}
