package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cppla/postboard/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Listener is one websocket connection. Room membership is chosen by the listener.
type Listener struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu    sync.RWMutex
	rooms map[string]struct{}
}

type clientMessage struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

func newListener(id string, hub *Hub, conn *websocket.Conn) *Listener {
	return &Listener{
		id:    id,
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		rooms: make(map[string]struct{}),
	}
}

func (l *Listener) inRoom(room string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.rooms[room]
	return ok
}

func (l *Listener) join(room string) {
	l.mu.Lock()
	l.rooms[room] = struct{}{}
	l.mu.Unlock()
}

func (l *Listener) leave(room string) {
	l.mu.Lock()
	delete(l.rooms, room)
	l.mu.Unlock()
}

// enqueue drops the frame when the listener is not keeping up.
// Callers hold the hub read lock so send cannot be closed concurrently.
func (l *Listener) enqueue(frame []byte) {
	select {
	case l.send <- frame:
	default:
		utils.Sugar.Debugf("realtime listener slow, dropping frame id=%s", l.id)
	}
}

// reply queues an event addressed to this listener only.
func (l *Listener) reply(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	frame, err := json.Marshal(Event{Name: event, Data: data})
	if err != nil {
		return
	}
	l.hub.mu.RLock()
	defer l.hub.mu.RUnlock()
	if _, ok := l.hub.listeners[l.id]; ok {
		l.enqueue(frame)
	}
}

func (l *Listener) readPump() {
	defer func() {
		l.hub.unregister(l)
		_ = l.conn.Close()
	}()

	l.conn.SetReadLimit(maxMessageSize)
	_ = l.conn.SetReadDeadline(time.Now().Add(pongWait))
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := l.conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.Sugar.Debugf("realtime read failed id=%s err=%v", l.id, err)
			}
			return
		}
		switch msg.Action {
		case "joinRoom":
			if msg.Room == "" {
				continue
			}
			l.join(msg.Room)
			l.reply("joinedRoom", map[string]string{"room": msg.Room})
		case "leaveRoom":
			l.leave(msg.Room)
			l.reply("leftRoom", map[string]string{"room": msg.Room})
		}
	}
}

func (l *Listener) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = l.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-l.send:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = l.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := l.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
