package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/large-farva/mitplan-engine/internal/callout"
	"github.com/large-farva/mitplan-engine/internal/combat"
	"github.com/large-farva/mitplan-engine/internal/engine"
	"github.com/large-farva/mitplan-engine/internal/plan"
	"github.com/large-farva/mitplan-engine/internal/telemetry"
)

func event(t *testing.T, v any) EventMsg {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var env telemetry.Event
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatal(err)
	}
	return EventMsg{Type: env.Type, Raw: raw}
}

func feed(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestCalloutLifecycle(t *testing.T) {
	m := feed(New(nil), tea.WindowSizeMsg{Width: 80, Height: 24})

	m = feed(m,
		event(t, telemetry.StateTransition{Event: telemetry.New(telemetry.EventState, "engine"), From: "IDLE", To: "COMBAT"}),
		event(t, telemetry.Clock{Event: telemetry.New(telemetry.EventClock, "engine"), Elapsed: 27.2, Running: true, Display: "0:27"}),
		event(t, telemetry.Callout{
			Event:   telemetry.New(telemetry.EventCallout, "engine"),
			Active:  true,
			Tier:    "urgent",
			Display: "3",
			Callout: &callout.Result{
				Abilities:   []callout.Ability{{Job: "WHM", Name: "Temperance", Note: "raidwide"}},
				Countdown:   2.8,
				AbilityTime: 30,
			},
		}),
	)
	if m.phase != "COMBAT" || m.clock != "0:27" || !m.running {
		t.Fatalf("phase=%s clock=%s running=%v", m.phase, m.clock, m.running)
	}
	v := m.View()
	for _, want := range []string{"COMBAT", "0:27", "WHM", "Temperance", "raidwide"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}

	m = feed(m, event(t, telemetry.Callout{Event: telemetry.New(telemetry.EventCallout, "engine")}))
	if m.callout != nil {
		t.Fatal("inactive callout kept")
	}
	if !strings.Contains(m.View(), "no callout") {
		t.Error("view should say there is no callout")
	}
}

func TestSnapshotSeedsState(t *testing.T) {
	snap := engine.Snapshot{
		Combat: combat.Snapshot{Phase: combat.Countdown, ZoneName: "AAC Heavyweight M1 (Savage)"},
		Clock:  engine.ClockState{Display: "0:00"},
		Fight:  "M9S",
		Plan:   &engine.PlanInfo{ID: "m9s", Name: "M9S Prog"},
		Player: engine.Player{Job: "SCH", Role: "H2"},
		Callout: &callout.Result{
			Abilities: []callout.Ability{{Job: "SCH", Name: "Expedient"}},
			Countdown: 0.4,
		},
		Upcoming: []plan.Entry{{Timestamp: 65, Job: "SCH", Ability: "Sacred Soil"}},
	}
	m := feed(New(nil), event(t, telemetry.Snapshot{Event: telemetry.New(telemetry.EventSnapshot, "mitpland"), State: snap}))

	if m.phase != "COUNTDOWN" || m.fight != "M9S" || m.planName != "M9S Prog" {
		t.Fatalf("phase=%s fight=%s plan=%s", m.phase, m.fight, m.planName)
	}
	if m.tier != "now" {
		t.Errorf("tier = %q, want now", m.tier)
	}
	v := m.View()
	for _, want := range []string{"SCH H2", "M9S Prog", "Sacred Soil", "1:05", "Expedient"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}

func TestCountdownClearsOnPull(t *testing.T) {
	m := feed(New(nil),
		event(t, telemetry.StateTransition{Event: telemetry.New(telemetry.EventState, "engine"), From: "IDLE", To: "COUNTDOWN"}),
		event(t, telemetry.Countdown{Event: telemetry.New(telemetry.EventCountdown, "engine"), Seconds: 10, Initiator: "Tank Main"}),
	)
	if v := m.View(); !strings.Contains(v, "Pull in 10s") || !strings.Contains(v, "Tank Main") {
		t.Errorf("countdown not shown:\n%s", v)
	}

	m = feed(m,
		event(t, telemetry.Pull{Event: telemetry.New(telemetry.EventPull, "engine"), Phase: "start"}),
		event(t, telemetry.StateTransition{Event: telemetry.New(telemetry.EventState, "engine"), From: "COUNTDOWN", To: "COMBAT"}),
	)
	if m.countdown != nil {
		t.Error("countdown kept after the pull started")
	}

	m = feed(m, event(t, telemetry.Pull{Event: telemetry.New(telemetry.EventPull, "engine"), Phase: "end", Outcome: "wipe", Elapsed: 95}))
	if !strings.Contains(m.View(), "last pull: wipe at 1:35") {
		t.Errorf("pull result missing:\n%s", m.View())
	}
}

func TestKeys(t *testing.T) {
	m := New(nil)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	m = next.(Model)
	if !m.compact || cmd != nil {
		t.Fatal("c should toggle compact without a command")
	}
	m = feed(m, event(t, telemetry.Timeline{
		Event:   telemetry.New(telemetry.EventTimeline, "engine"),
		Entries: []plan.Entry{{Timestamp: 40, Job: "WAR", Ability: "Shake It Off"}},
	}))
	if strings.Contains(m.View(), "Shake It Off") {
		t.Error("compact view should hide the upcoming list")
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestDisconnectShown(t *testing.T) {
	m := feed(New(nil), ConnectedMsg{URL: "ws://127.0.0.1:8787/ws"})
	if !strings.Contains(m.View(), "connected ws://127.0.0.1:8787/ws") {
		t.Errorf("connected status missing:\n%s", m.View())
	}
	m = feed(m, DisconnectedMsg{Err: errors.New("connection refused")})
	if !strings.Contains(m.View(), "connection refused") {
		t.Errorf("disconnect reason missing:\n%s", m.View())
	}
}

func TestStreamDeliversEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		b, _ := json.Marshal(telemetry.Wipe{Event: telemetry.New(telemetry.EventWipe, "engine"), Elapsed: 12})
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteMessage(websocket.TextMessage, b)
		// Hold the connection until the client goes away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s := NewStream("ws" + strings.TrimPrefix(srv.URL, "http"))
	go s.Run(ctx)

	if _, ok := s.Next()().(ConnectedMsg); !ok {
		t.Fatal("first message should be ConnectedMsg")
	}
	msg, ok := s.Next()().(EventMsg)
	if !ok || msg.Type != telemetry.EventWipe {
		t.Fatalf("got %#v, want a wipe event", msg)
	}
}
