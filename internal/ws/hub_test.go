package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var v map[string]any
	if err := conn.ReadJSON(&v); err != nil {
		t.Fatalf("read: %v", err)
	}
	return v
}

func TestHubSnapshotThenBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	h.OnConnect = func() any { return map[string]any{"type": "snapshot"} }
	go h.Run(ctx)

	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	if got := readJSON(t, conn)["type"]; got != "snapshot" {
		t.Fatalf("first message type = %v, want snapshot", got)
	}

	deadline := time.Now().Add(5 * time.Second)
	for h.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.BroadcastJSON(map[string]any{"type": "clock", "display": "0:42"})
	msg := readJSON(t, conn)
	if msg["type"] != "clock" || msg["display"] != "0:42" {
		t.Fatalf("broadcast = %v", msg)
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub() // Run never started: nothing drains the queue
	for i := 0; i < cap(h.broadcast)+3; i++ {
		h.BroadcastJSON(i)
	}
	if got := h.Dropped(); got != 3 {
		t.Fatalf("dropped = %d, want 3", got)
	}
	h.BroadcastJSON(func() {}) // unmarshalable values are ignored
	if got := h.Dropped(); got != 3 {
		t.Fatalf("dropped after bad value = %d", got)
	}
}

func TestHubTypeFilter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	go h.Run(ctx)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?types=callout,%20wipe"
	filtered, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer filtered.Close()
	all := dial(t, srv)

	deadline := time.Now().Add(5 * time.Second)
	for h.Clients() != 2 {
		if time.Now().After(deadline) {
			t.Fatal("clients never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.BroadcastJSON(map[string]any{"type": "clock"})
	h.BroadcastJSON(map[string]any{"type": "wipe"})

	if got := readJSON(t, filtered)["type"]; got != "wipe" {
		t.Errorf("filtered client got %v first, want wipe", got)
	}
	if got := readJSON(t, all)["type"]; got != "clock" {
		t.Errorf("unfiltered client got %v first, want clock", got)
	}
	if got := readJSON(t, all)["type"]; got != "wipe" {
		t.Errorf("unfiltered client got %v second, want wipe", got)
	}
}

func TestParseTypes(t *testing.T) {
	if parseTypes("") != nil || parseTypes(" , ") != nil {
		t.Error("empty lists should subscribe to everything")
	}
	got := parseTypes("state, callout")
	if len(got) != 2 || !got["state"] || !got["callout"] {
		t.Errorf("parseTypes = %v", got)
	}
}
