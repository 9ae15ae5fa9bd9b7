// Package host is the boundary to the game-side tooling. It converts
// OverlayPlugin websocket messages and ACT network log lines into
// classify.RawEvent values and player updates; nothing past this package
// sees a host-specific shape.
package host

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/large-farva/mitplan-engine/internal/classify"
	"github.com/large-farva/mitplan-engine/internal/jobs"
)

// OverlayPlugin event names this package understands.
const (
	EventLogLine       = "LogLine"
	EventCombatChanged = "onInCombatChangedEvent"
	EventChangeZone    = "ChangeZone"
	EventPlayerChanged = "onPlayerChangedEvent"
	EventPartyChanged  = "PartyChanged"
)

// SubscribedEvents is the subscription list sent to OverlayPlugin.
var SubscribedEvents = []string{
	EventLogLine,
	EventCombatChanged,
	EventChangeZone,
	EventPlayerChanged,
	EventPartyChanged,
}

// Network log line types with their own translation.
const (
	lineZoneChange   = "01"
	lineCombatStatus = "260"
)

// PlayerUpdate carries whatever the host knows about the local player.
// Empty fields are unknown, not cleared.
type PlayerUpdate struct {
	Name string `json:"name,omitempty"`
	Job  string `json:"job,omitempty"`
}

// Event is one translated host message: either a raw event for the
// classifier or a player update.
type Event struct {
	Raw    classify.RawEvent
	Player *PlayerUpdate
	// At is the host timestamp when the message carried one.
	At time.Time
}

type overlayMessage struct {
	Type    string          `json:"type"`
	RawLine string          `json:"rawLine"`
	Line    []string        `json:"line"`
	Detail  json.RawMessage `json:"detail"`

	InACTCombat  *bool `json:"inACTCombat"`
	InGameCombat *bool `json:"inGameCombat"`

	ZoneID   json.Number `json:"zoneID"`
	ZoneName string      `json:"zoneName"`

	Name  string       `json:"name"`
	Job   any          `json:"job"`
	Party []partyEntry `json:"party"`
}

type combatDetail struct {
	InACTCombat  bool `json:"inACTCombat"`
	InGameCombat bool `json:"inGameCombat"`
}

type playerDetail struct {
	Name string `json:"name"`
	Job  any    `json:"job"`
}

type partyEntry struct {
	Name    string `json:"name"`
	Job     any    `json:"job"`
	InParty bool   `json:"inParty"`
}

// FromOverlayMessage translates one OverlayPlugin websocket message. ok is
// false for messages that carry nothing the engine uses.
func FromOverlayMessage(data []byte) (Event, bool) {
	var m overlayMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return Event{}, false
	}

	switch m.Type {
	case EventLogLine:
		line := m.RawLine
		if line == "" && len(m.Line) > 0 {
			line = strings.Join(m.Line, "|")
		}
		if line == "" {
			return Event{}, false
		}
		return FromNetworkLine(line)

	case EventCombatChanged:
		var d combatDetail
		if len(m.Detail) > 0 && string(m.Detail) != "null" {
			if err := json.Unmarshal(m.Detail, &d); err != nil {
				return Event{}, false
			}
		} else {
			if m.InGameCombat != nil {
				d.InGameCombat = *m.InGameCombat
			}
			if m.InACTCombat != nil {
				d.InACTCombat = *m.InACTCombat
			}
		}
		return Event{Raw: classify.CombatStatus{InGameCombat: d.InGameCombat, InHostCombat: d.InACTCombat}}, true

	case EventChangeZone:
		id, err := m.ZoneID.Int64()
		if err != nil {
			return Event{}, false
		}
		return Event{Raw: classify.ZoneChange{ID: int(id), Name: m.ZoneName}}, true

	case EventPlayerChanged:
		d := playerDetail{Name: m.Name, Job: m.Job}
		if len(m.Detail) > 0 && string(m.Detail) != "null" {
			if err := json.Unmarshal(m.Detail, &d); err != nil {
				return Event{}, false
			}
		}
		u := PlayerUpdate{Name: d.Name, Job: jobCode(d.Job)}
		if u == (PlayerUpdate{}) {
			return Event{}, false
		}
		return Event{Player: &u}, true

	case EventPartyChanged:
		if len(m.Party) == 0 {
			return Event{}, false
		}
		p := m.Party[0]
		for _, e := range m.Party {
			if e.InParty {
				p = e
				break
			}
		}
		u := PlayerUpdate{Name: p.Name, Job: jobCode(p.Job)}
		if u == (PlayerUpdate{}) {
			return Event{}, false
		}
		return Event{Player: &u}, true
	}
	return Event{}, false
}

// jobCode accepts a job as a code string or a numeric host id.
func jobCode(v any) string {
	switch j := v.(type) {
	case string:
		if n, err := strconv.Atoi(j); err == nil {
			return jobs.NameFromID(n)
		}
		return strings.ToUpper(j)
	case float64:
		return jobs.NameFromID(int(j))
	}
	return ""
}

// FromNetworkLine translates one ACT network log line. Zone and combat
// status lines become their own events; every other line passes through as
// a log line for the classifier.
func FromNetworkLine(line string) (Event, bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Event{}, false
	}
	fields := strings.Split(line, "|")
	ev := Event{}
	if len(fields) > 1 {
		ev.At, _ = ParseLineTime(fields[1])
	}

	switch fields[0] {
	case lineZoneChange:
		if len(fields) < 4 {
			return Event{}, false
		}
		id, err := strconv.ParseInt(fields[2], 16, 64)
		if err != nil {
			return Event{}, false
		}
		ev.Raw = classify.ZoneChange{ID: int(id), Name: fields[3]}
		return ev, true

	case lineCombatStatus:
		if len(fields) < 4 {
			return Event{}, false
		}
		ev.Raw = classify.CombatStatus{
			InHostCombat: fields[2] == "1",
			InGameCombat: fields[3] == "1",
		}
		return ev, true
	}

	ev.Raw = classify.LogLine{Text: line}
	return ev, true
}

// ParseLineTime parses the timestamp field of a network log line.
func ParseLineTime(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
