// Package overlay is a terminal rendition of the in-game overlay. It
// follows the daemon's websocket stream and shows the active callout, the
// upcoming list and the raid plan image link.
package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/large-farva/mitplan-engine/internal/callout"
	"github.com/large-farva/mitplan-engine/internal/engine"
	"github.com/large-farva/mitplan-engine/internal/plan"
	"github.com/large-farva/mitplan-engine/internal/telemetry"
)

// Model is the bubbletea model for the overlay.
type Model struct {
	stream *Stream
	keys   KeyMap
	help   help.Model

	width, height int
	showHelp      bool
	compact       bool

	connected bool
	url       string
	lastErr   error

	phase     string
	zone      string
	fight     string
	clock     string
	running   bool
	planName  string
	player    engine.Player
	countdown *telemetry.Countdown

	callout  *callout.Result
	tier     string
	display  string
	upcoming []plan.Entry
	raidPlan *callout.RaidPlan
	lastCue  string
	lastPull string
}

// New returns a model that reads from stream. A nil stream is allowed in
// tests; messages are then fed straight to Update.
func New(stream *Stream) Model {
	return Model{
		stream: stream,
		keys:   DefaultKeyMap(),
		help:   help.New(),
		phase:  "IDLE",
		clock:  "0:00",
	}
}

// Init starts waiting for stream messages.
func (m Model) Init() tea.Cmd {
	return m.next()
}

func (m Model) next() tea.Cmd {
	if m.stream == nil {
		return nil
	}
	return m.stream.Next()
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Compact):
			m.compact = !m.compact
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp
		}
		return m, nil

	case ConnectedMsg:
		m.connected = true
		m.url = msg.URL
		m.lastErr = nil
		return m, m.next()

	case DisconnectedMsg:
		m.connected = false
		m.lastErr = msg.Err
		return m, m.next()

	case EventMsg:
		m.apply(msg)
		return m, m.next()
	}
	return m, nil
}

// apply folds one daemon event into the model. Malformed events are
// ignored.
func (m *Model) apply(ev EventMsg) {
	switch ev.Type {
	case telemetry.EventSnapshot:
		var s struct {
			State engine.Snapshot `json:"state"`
		}
		if json.Unmarshal(ev.Raw, &s) != nil {
			return
		}
		m.applySnapshot(s.State)

	case telemetry.EventState:
		var e telemetry.StateTransition
		if json.Unmarshal(ev.Raw, &e) == nil {
			m.phase = e.To
			if e.To != "COUNTDOWN" {
				m.countdown = nil
			}
		}

	case telemetry.EventZone:
		var e telemetry.Zone
		if json.Unmarshal(ev.Raw, &e) == nil {
			m.zone, m.fight = e.ZoneName, e.Fight
		}

	case telemetry.EventCountdown:
		var e telemetry.Countdown
		if json.Unmarshal(ev.Raw, &e) == nil {
			m.countdown = &e
		}

	case telemetry.EventClock:
		var e telemetry.Clock
		if json.Unmarshal(ev.Raw, &e) == nil {
			m.clock, m.running = e.Display, e.Running
		}

	case telemetry.EventCallout:
		var e telemetry.Callout
		if json.Unmarshal(ev.Raw, &e) != nil {
			return
		}
		if !e.Active {
			m.callout, m.tier, m.display = nil, "", ""
			return
		}
		m.callout, m.tier, m.display = e.Callout, e.Tier, e.Display

	case telemetry.EventTimeline:
		var e telemetry.Timeline
		if json.Unmarshal(ev.Raw, &e) == nil {
			m.upcoming = e.Entries
		}

	case telemetry.EventRaidPlan:
		var e telemetry.RaidPlan
		if json.Unmarshal(ev.Raw, &e) == nil {
			m.raidPlan = e.RaidPlan
		}

	case telemetry.EventCue:
		var e telemetry.Cue
		if json.Unmarshal(ev.Raw, &e) == nil {
			m.lastCue = e.Cue.Text
			if m.lastCue == "" {
				m.lastCue = "♪ " + e.Cue.Sound
			}
		}

	case telemetry.EventPull:
		var e telemetry.Pull
		if json.Unmarshal(ev.Raw, &e) != nil {
			return
		}
		if e.Phase == "start" {
			m.lastPull = "pull started"
			m.countdown = nil
		} else {
			m.lastPull = fmt.Sprintf("last pull: %s at %s", e.Outcome, fightTime(e.Elapsed))
		}

	case telemetry.EventPlan:
		var e struct {
			Plan *engine.PlanInfo `json:"plan"`
		}
		if json.Unmarshal(ev.Raw, &e) == nil {
			m.planName = ""
			if e.Plan != nil {
				m.planName = e.Plan.Name
			}
		}

	case telemetry.EventPlayer:
		var e struct {
			Player engine.Player `json:"player"`
		}
		if json.Unmarshal(ev.Raw, &e) == nil {
			m.player = e.Player
		}
	}
}

func (m *Model) applySnapshot(s engine.Snapshot) {
	m.phase = s.Combat.Phase.String()
	m.zone = s.Combat.ZoneName
	m.fight = s.Fight
	m.clock, m.running = s.Clock.Display, s.Clock.Running
	m.player = s.Player
	m.upcoming = s.Upcoming
	m.raidPlan = s.RaidPlan
	m.planName = ""
	if s.Plan != nil {
		m.planName = s.Plan.Name
	}
	m.callout, m.tier, m.display = nil, "", ""
	if s.Callout != nil {
		m.callout = s.Callout
		m.tier = s.Callout.Tier().String()
		m.display = s.Callout.Display()
	}
}

// Run starts the stream and the bubbletea program and blocks until the
// user quits or ctx is cancelled.
func Run(ctx context.Context, wsURL string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream := NewStream(wsURL)
	go stream.Run(ctx)

	p := tea.NewProgram(New(stream), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
