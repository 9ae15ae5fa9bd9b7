// Package telemetry defines the typed event structs that flow over the
// WebSocket connection between mitpland and its overlays. Every event
// carries a type, a timestamp and the component that produced it.
package telemetry

import (
	"time"

	"github.com/large-farva/mitplan-engine/internal/callout"
	"github.com/large-farva/mitplan-engine/internal/cue"
	"github.com/large-farva/mitplan-engine/internal/plan"
)

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat EventType = "heartbeat"
	EventState     EventType = "state"
	EventLog       EventType = "log"
	EventSnapshot  EventType = "snapshot"

	EventCountdown EventType = "countdown"
	EventZone      EventType = "zone"
	EventWipe      EventType = "wipe"
	EventClock     EventType = "clock"
	EventCallout   EventType = "callout"
	EventTimeline  EventType = "timeline"
	EventRaidPlan  EventType = "raidplan"
	EventCue       EventType = "cue"
	EventPull      EventType = "pull"
	EventPlan      EventType = "plan"
	EventPlayer    EventType = "player"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type      EventType `json:"type"`
	TS        string    `json:"ts"`
	Component string    `json:"component,omitempty"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching the
// timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// New returns an envelope stamped with the current time.
func New(t EventType, component string) Event {
	return Event{Type: t, TS: NowTS(), Component: component}
}

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor daemon uptime.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// StateTransition is emitted whenever the combat phase changes
// (e.g. IDLE -> COUNTDOWN).
type StateTransition struct {
	Event
	From string `json:"from"`
	To   string `json:"to"`
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Countdown reports an in-game pull countdown.
type Countdown struct {
	Event
	Seconds   int    `json:"seconds"`
	Initiator string `json:"initiator"`
}

// Zone reports a zone change and the fight it maps to, if any.
type Zone struct {
	Event
	ZoneID   int    `json:"zone_id"`
	ZoneName string `json:"zone_name"`
	Fight    string `json:"fight,omitempty"`
}

// Wipe reports a detected wipe.
type Wipe struct {
	Event
	Elapsed float64 `json:"elapsed"`
}

// Clock reports the fight clock. It is sent when the displayed second or
// the running flag changes.
type Clock struct {
	Event
	Elapsed float64 `json:"elapsed"`
	Running bool    `json:"running"`
	Display string  `json:"display"`
}

// Callout reports the active callout, or its absence when Active is false.
type Callout struct {
	Event
	Active  bool            `json:"active"`
	Tier    string          `json:"tier,omitempty"`
	Display string          `json:"display,omitempty"`
	Callout *callout.Result `json:"callout,omitempty"`
}

// Timeline reports the upcoming list.
type Timeline struct {
	Event
	Elapsed float64      `json:"elapsed"`
	Entries []plan.Entry `json:"entries"`
}

// RaidPlan reports the strategy image on screen, or none.
type RaidPlan struct {
	Event
	RaidPlan *callout.RaidPlan `json:"raidplan"`
}

// Cue asks overlays to play a sound or speak.
type Cue struct {
	Event
	Cue cue.Cue `json:"cue"`
}

// Pull reports the start or end of a pull.
type Pull struct {
	Event
	Phase   string  `json:"phase"` // "start" or "end"
	PullID  string  `json:"pull_id,omitempty"`
	Fight   string  `json:"fight,omitempty"`
	Outcome string  `json:"outcome,omitempty"`
	Elapsed float64 `json:"elapsed"`
}

// Plan reports that the loaded plan changed. Plan is nil once cleared.
type Plan struct {
	Event
	Plan   any    `json:"plan"`
	Reason string `json:"reason,omitempty"`
}

// Player reports the local player settings.
type Player struct {
	Event
	Player any `json:"player"`
}

// Snapshot carries the whole engine state; it is sent to each client as it
// connects.
type Snapshot struct {
	Event
	State any `json:"state"`
}
