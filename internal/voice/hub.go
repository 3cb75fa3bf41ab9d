package voice

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

type subscriber struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

type outbound struct {
	userID  string
	payload []byte
}

// Hub fans call state events out to each user's websocket connections.
type Hub struct {
	upgrader websocket.Upgrader
	log      *slog.Logger

	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan outbound
	done       chan struct{}

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

// NewHub builds a hub. A nil checkOrigin accepts every origin; the socket is
// authenticated by access token, not by cookie.
func NewHub(log *slog.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log:        log,
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan outbound, 256),
		done:       make(chan struct{}),
		subs:       map[string]map[*subscriber]struct{}{},
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for _, set := range h.subs {
				for s := range set {
					close(s.send)
				}
			}
			h.subs = map[string]map[*subscriber]struct{}{}
			h.mu.Unlock()
			return
		case s := <-h.register:
			h.mu.Lock()
			if h.subs[s.userID] == nil {
				h.subs[s.userID] = map[*subscriber]struct{}{}
			}
			h.subs[s.userID][s] = struct{}{}
			h.mu.Unlock()
			h.log.Debug("voice subscriber registered", "user_id", s.userID)
		case s := <-h.unregister:
			h.mu.Lock()
			h.drop(s)
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for s := range h.subs[msg.userID] {
				select {
				case s.send <- msg.payload:
				default:
					h.drop(s)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(s *subscriber) {
	set := h.subs[s.userID]
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.send)
	if len(set) == 0 {
		delete(h.subs, s.userID)
	}
}

// Publish queues ev for the user's subscribers. It never blocks the caller;
// events are dropped when the hub is saturated.
func (h *Hub) Publish(userID string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal voice event failed", "error", err)
		return
	}
	select {
	case h.broadcast <- outbound{userID: userID, payload: payload}:
	default:
		h.log.Warn("voice hub saturated, event dropped", "user_id", userID, "state", string(ev.State))
	}
}

// Subscribers returns the number of live connections for a user.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// ServeWS upgrades the request and subscribes the connection to userID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	s := &subscriber{hub: h, userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- s:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go s.writePump()
	go s.readPump()
}

func (s *subscriber) readPump() {
	defer func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
		_ = s.conn.Close()
	}()
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// inbound frames are ignored; reading keeps pong handling alive
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
