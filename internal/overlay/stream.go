package overlay

import (
	"context"
	"encoding/json"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/large-farva/mitplan-engine/internal/telemetry"
)

const reconnectDelay = 2 * time.Second

// ConnectedMsg is sent each time the stream (re)connects.
type ConnectedMsg struct{ URL string }

// DisconnectedMsg is sent when the connection drops or cannot be made.
type DisconnectedMsg struct{ Err error }

// EventMsg carries one daemon event.
type EventMsg struct {
	Type telemetry.EventType
	Raw  json.RawMessage
}

// Stream reads the daemon websocket and turns it into tea messages. It
// reconnects until its context is cancelled.
type Stream struct {
	url string
	ch  chan tea.Msg
}

// NewStream returns a stream for the given ws:// URL. Call Run to start it.
func NewStream(url string) *Stream {
	return &Stream{url: url, ch: make(chan tea.Msg, 64)}
}

// Next returns a command that waits for the next message.
func (s *Stream) Next() tea.Cmd {
	return func() tea.Msg {
		return <-s.ch
	}
}

// Run connects and reads until ctx is cancelled.
func (s *Stream) Run(ctx context.Context) {
	for {
		err := s.readOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.send(ctx, DisconnectedMsg{Err: err})

		t := time.NewTimer(reconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (s *Stream) readOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.send(ctx, ConnectedMsg{URL: s.url})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env telemetry.Event
		if json.Unmarshal(msg, &env) != nil || env.Type == "" {
			continue
		}
		s.send(ctx, EventMsg{Type: env.Type, Raw: msg})
	}
}

func (s *Stream) send(ctx context.Context, msg tea.Msg) {
	select {
	case s.ch <- msg:
	case <-ctx.Done():
	}
}
