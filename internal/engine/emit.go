package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/large-farva/mitplan-engine/internal/callout"
	"github.com/large-farva/mitplan-engine/internal/combat"
	"github.com/large-farva/mitplan-engine/internal/cue"
	"github.com/large-farva/mitplan-engine/internal/plan"
	"github.com/large-farva/mitplan-engine/internal/telemetry"
)

const component = "engine"

// Snapshot is the engine state served by /api/status and sent to each
// websocket client as it connects.
type Snapshot struct {
	Combat   combat.Snapshot   `json:"combat"`
	Clock    ClockState        `json:"clock"`
	Fight    string            `json:"fight,omitempty"`
	Plan     *PlanInfo         `json:"plan,omitempty"`
	Player   Player            `json:"player"`
	Timeline TimelineOptions   `json:"timeline"`
	Cues     CueSettings       `json:"cues"`
	Callout  *callout.Result   `json:"callout,omitempty"`
	Upcoming []plan.Entry      `json:"upcoming"`
	RaidPlan *callout.RaidPlan `json:"raidplan,omitempty"`
	PullID   string            `json:"pullId,omitempty"`
}

// ClockState is the fight clock as seen by clients.
type ClockState struct {
	Elapsed float64 `json:"elapsed"`
	Running bool    `json:"running"`
	Display string  `json:"display"`
}

// PlanInfo identifies the loaded plan.
type PlanInfo struct {
	ID      string       `json:"id,omitempty"`
	Name    string       `json:"name"`
	Summary plan.Summary `json:"summary"`
}

func planInfo(p *plan.Plan) *PlanInfo {
	if p == nil {
		return nil
	}
	return &PlanInfo{ID: p.ID, Name: p.DisplayName(), Summary: plan.Summarize(p)}
}

// CueSettings is the JSON form of cue.Options.
type CueSettings struct {
	Sound          bool   `json:"sound"`
	SoundType      string `json:"soundType"`
	VoiceCountdown bool   `json:"voiceCountdown"`
	VoiceActions   bool   `json:"voiceActions"`
}

func cueSettings(o cue.Options) CueSettings {
	return CueSettings{Sound: o.Sound, SoundType: o.SoundType, VoiceCountdown: o.VoiceCountdown, VoiceActions: o.VoiceActions}
}

func (s CueSettings) options() cue.Options {
	return cue.Options{Sound: s.Sound, SoundType: s.SoundType, VoiceCountdown: s.VoiceCountdown, VoiceActions: s.VoiceActions}
}

// emitKeys remember what was last sent for each derived event so a tick
// that changes nothing visible sends nothing. An empty key forces a resend.
type emitKeys struct {
	clock    string
	callout  string
	timeline string
	raidPlan string
}

// refresh recomputes everything derived from the clock and the plan, emits
// the events whose content changed and publishes a new snapshot.
func (e *Engine) refresh() {
	elapsed := e.clock.Elapsed()
	running := e.clock.Running()
	opts := e.player.calloutOptions()

	var (
		active   *callout.Result
		next     *callout.Result
		upcoming []plan.Entry
		rp       *callout.RaidPlan
	)
	if e.plan != nil {
		active = callout.Select(e.plan, elapsed, opts)
		next = callout.Next(e.plan, elapsed, opts)
		upcoming = callout.Upcoming(e.plan, elapsed, e.timeline.WindowSeconds, e.timeline.MaxItems, opts)
		rp = callout.ActiveRaidPlan(e.plan, elapsed, e.player.Job)
	}

	if k := clockKey(elapsed, running); k != e.emitted.clock {
		e.emitted.clock = k
		e.sink.BroadcastJSON(telemetry.Clock{
			Event:   telemetry.New(telemetry.EventClock, component),
			Elapsed: elapsed,
			Running: running,
			Display: formatClock(elapsed),
		})
	}

	if k := calloutKey(active); k != e.emitted.callout {
		e.emitted.callout = k
		ev := telemetry.Callout{Event: telemetry.New(telemetry.EventCallout, component)}
		if active != nil {
			ev.Active = true
			ev.Tier = active.Tier().String()
			ev.Display = active.Display()
			ev.Callout = active
		}
		e.sink.BroadcastJSON(ev)
	}

	if k := timelineKey(upcoming); k != e.emitted.timeline {
		e.emitted.timeline = k
		entries := upcoming
		if entries == nil {
			entries = []plan.Entry{}
		}
		e.sink.BroadcastJSON(telemetry.Timeline{
			Event:   telemetry.New(telemetry.EventTimeline, component),
			Elapsed: elapsed,
			Entries: entries,
		})
	}

	if k := raidPlanKey(rp); k != e.emitted.raidPlan {
		e.emitted.raidPlan = k
		e.sink.BroadcastJSON(telemetry.RaidPlan{
			Event:    telemetry.New(telemetry.EventRaidPlan, component),
			RaidPlan: rp,
		})
	}

	// Cues only make sense against a moving clock.
	var cues []cue.Cue
	if running {
		cues = e.tracker.Observe(next)
	} else {
		e.tracker.Observe(nil)
	}
	for _, c := range cues {
		e.sink.BroadcastJSON(telemetry.Cue{Event: telemetry.New(telemetry.EventCue, component), Cue: c})
	}

	e.publish(active, upcoming, rp)
}

func (e *Engine) publish(active *callout.Result, upcoming []plan.Entry, rp *callout.RaidPlan) {
	elapsed := e.clock.Elapsed()
	if upcoming == nil {
		upcoming = []plan.Entry{}
	}
	s := &Snapshot{
		Combat: e.machine.Snapshot(),
		Clock: ClockState{
			Elapsed: elapsed,
			Running: e.clock.Running(),
			Display: formatClock(elapsed),
		},
		Fight:    e.fight,
		Plan:     planInfo(e.plan),
		Player:   e.player,
		Timeline: e.timeline,
		Cues:     cueSettings(e.tracker.Options()),
		Callout:  active,
		Upcoming: upcoming,
		RaidPlan: rp,
		PullID:   e.pull.id,
	}
	e.snap.Store(s)
}

func clockKey(elapsed float64, running bool) string {
	return strconv.Itoa(int(math.Floor(elapsed))) + "|" + strconv.FormatBool(running)
}

func calloutKey(r *callout.Result) string {
	if r == nil {
		return "none"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%g|%d", r.AbilityTime, callout.Floor(r.Countdown))
	for _, a := range r.Abilities {
		b.WriteString("|" + a.Job + ":" + a.Name)
	}
	return b.String()
}

func timelineKey(entries []plan.Entry) string {
	if len(entries) == 0 {
		return "none"
	}
	var b strings.Builder
	for _, en := range entries {
		fmt.Fprintf(&b, "%g:%s:%s;", en.Timestamp, en.EffectiveJob(), en.Ability)
	}
	return b.String()
}

func raidPlanKey(rp *callout.RaidPlan) string {
	if rp == nil {
		return "none"
	}
	return fmt.Sprintf("%s|%g", rp.ImageURL, rp.StartTime)
}

// formatClock renders seconds as M:SS.
func formatClock(seconds float64) string {
	s := int(math.Floor(seconds))
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// ---------------------------------------------------------------------------
// Event constructors
// ---------------------------------------------------------------------------

func newLog(level, format string, args ...any) telemetry.LogLine {
	return telemetry.LogLine{
		Event:   telemetry.New(telemetry.EventLog, component),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	}
}

func newStateTransition(from, to combat.Phase) telemetry.StateTransition {
	return telemetry.StateTransition{
		Event: telemetry.New(telemetry.EventState, component),
		From:  from.String(),
		To:    to.String(),
	}
}

func newCountdown(seconds int, initiator string) telemetry.Countdown {
	return telemetry.Countdown{
		Event:     telemetry.New(telemetry.EventCountdown, component),
		Seconds:   seconds,
		Initiator: initiator,
	}
}

func newZone(id int, name, fight string) telemetry.Zone {
	return telemetry.Zone{
		Event:    telemetry.New(telemetry.EventZone, component),
		ZoneID:   id,
		ZoneName: name,
		Fight:    fight,
	}
}

func newWipe(elapsed float64) telemetry.Wipe {
	return telemetry.Wipe{Event: telemetry.New(telemetry.EventWipe, component), Elapsed: elapsed}
}

func newPull(phase, id, fight, outcome string, elapsed float64) telemetry.Pull {
	return telemetry.Pull{
		Event:   telemetry.New(telemetry.EventPull, component),
		Phase:   phase,
		PullID:  id,
		Fight:   fight,
		Outcome: outcome,
		Elapsed: elapsed,
	}
}

func newPlanEvent(p *PlanInfo, reason string) telemetry.Plan {
	ev := telemetry.Plan{Event: telemetry.New(telemetry.EventPlan, component), Reason: reason}
	if p != nil {
		ev.Plan = p
	}
	return ev
}

func newPlayer(p Player) telemetry.Player {
	return telemetry.Player{Event: telemetry.New(telemetry.EventPlayer, component), Player: p}
}
