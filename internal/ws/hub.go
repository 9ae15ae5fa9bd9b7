// Package ws provides a lightweight WebSocket pub/sub hub.
// The engine broadcasts JSON events through the hub, and every connected
// overlay receives them in real time. Clients may subscribe to a subset of
// event types with a ?types=state,callout query.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 3 * time.Second
	pingEvery  = 20 * time.Second
	readWindow = 60 * time.Second
)

type client struct {
	conn  *websocket.Conn
	types map[string]bool // nil receives everything
}

func (c *client) wants(typ string) bool {
	return c.types == nil || typ == "" || c.types[typ]
}

type message struct {
	typ  string
	data []byte
}

// Hub fans out broadcast events to connected clients. Registration,
// removal and delivery all happen on the Run goroutine.
type Hub struct {
	clients    map[*websocket.Conn]*client
	register   chan *client
	unregister chan *websocket.Conn
	broadcast  chan message
	upgrader   websocket.Upgrader
	count      atomic.Int64
	dropped    atomic.Int64

	// OnConnect, if set, returns a message written to each new client
	// before it receives any broadcast. Set it before serving.
	OnConnect func() any
}

// NewHub allocates a hub. Call Run in a goroutine to start delivery.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*client),
		register:   make(chan *client, 16),
		unregister: make(chan *websocket.Conn, 16),
		broadcast:  make(chan message, 256),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Overlays are served from file:// and browser sources with
			// arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int { return int(h.count.Load()) }

// Dropped returns how many broadcasts were discarded because the queue was
// full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Run delivers events and keepalive pings until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			for conn := range h.clients {
				_ = conn.Close()
			}
			clear(h.clients)
			h.count.Store(0)
			return

		case c := <-h.register:
			h.clients[c.conn] = c
			h.count.Store(int64(len(h.clients)))

		case conn := <-h.unregister:
			h.remove(conn)

		case msg := <-h.broadcast:
			for conn, c := range h.clients {
				if !c.wants(msg.typ) {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					h.remove(conn)
				}
			}

		case <-ping.C:
			for conn := range h.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					h.remove(conn)
				}
			}
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	if _, ok := h.clients[conn]; !ok {
		return
	}
	delete(h.clients, conn)
	_ = conn.Close()
	h.count.Store(int64(len(h.clients)))
}

// parseTypes reads the comma-separated types query value. An empty value
// subscribes to everything.
func parseTypes(raw string) map[string]bool {
	var types map[string]bool
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if types == nil {
			types = make(map[string]bool)
		}
		types[t] = true
	}
	return types
}

// Handler upgrades requests to WebSocket connections, writes the
// OnConnect message and registers the client.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		types := parseTypes(r.URL.Query().Get("types"))
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied.
			return
		}

		// Not registered yet, so this write cannot race Run.
		if h.OnConnect != nil {
			if v := h.OnConnect(); v != nil {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(v); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
		h.register <- &client{conn: conn, types: types}

		go h.readPump(conn)
	})
}

// readPump discards client messages and keeps the read deadline moving on
// pongs. It unregisters the client once reads fail.
func (h *Hub) readPump(conn *websocket.Conn) {
	defer func() { h.unregister <- conn }()
	_ = conn.SetReadDeadline(time.Now().Add(readWindow))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWindow))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// BroadcastJSON marshals v and queues it for every subscribed client. The
// event type is read from its "type" field. When the queue is full the
// event is dropped and counted instead of blocking the caller.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	var head struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(b, &head)

	select {
	case h.broadcast <- message{typ: head.Type, data: b}:
	default:
		h.dropped.Add(1)
	}
}
