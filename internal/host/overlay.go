package host

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultOverlayURL is OverlayPlugin's websocket server on its default port.
const DefaultOverlayURL = "ws://127.0.0.1:10501/ws"

// Handler receives translated host events in arrival order.
type Handler func(Event)

// OverlayPlugin connects to OverlayPlugin's websocket API, subscribes to the
// events the engine needs and forwards them to a Handler. It reconnects
// with exponential backoff until its context is cancelled.
type OverlayPlugin struct {
	URL    string
	Logger *log.Logger

	// MinBackoff and MaxBackoff bound the reconnect delay.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// OnConnect, when set, is called after each successful subscribe.
	OnConnect func()

	dialer *websocket.Dialer
}

type subscribeCall struct {
	Call   string   `json:"call"`
	Events []string `json:"events"`
}

// NewOverlayPlugin returns a client for url, or DefaultOverlayURL if empty.
func NewOverlayPlugin(url string, logger *log.Logger) *OverlayPlugin {
	if url == "" {
		url = DefaultOverlayURL
	}
	if logger == nil {
		logger = log.New(os.Stderr, "host: ", log.LstdFlags)
	}
	return &OverlayPlugin{
		URL:        url,
		Logger:     logger,
		MinBackoff: 1 * time.Second,
		MaxBackoff: 30 * time.Second,
		dialer:     &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
	}
}

// Run connects and streams events to fn until ctx is cancelled.
func (o *OverlayPlugin) Run(ctx context.Context, fn Handler) error {
	backoff := o.MinBackoff
	for {
		connected, err := o.session(ctx, fn)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = o.MinBackoff
		}
		o.Logger.Printf("overlayplugin %s: %v (retry in %s)", o.URL, err, backoff)
		if !sleepOrCancel(ctx, backoff) {
			return nil
		}
		backoff = min(backoff*2, o.MaxBackoff)
	}
}

// session runs one connection. connected reports whether the subscribe
// call went through, so the caller can reset its backoff.
func (o *OverlayPlugin) session(ctx context.Context, fn Handler) (connected bool, err error) {
	conn, _, err := o.dialer.DialContext(ctx, o.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeCall{Call: "subscribe", Events: SubscribedEvents}); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	o.Logger.Printf("connected to overlayplugin at %s", o.URL)
	if o.OnConnect != nil {
		o.OnConnect()
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second),
		)
		conn.Close()
	})
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, fmt.Errorf("read: %w", err)
		}
		if ev, ok := FromOverlayMessage(msg); ok {
			fn(ev)
		}
	}
}

// sleepOrCancel sleeps for d or until ctx is cancelled. Returns false if
// cancelled.
func sleepOrCancel(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
