// Package combat implements the fight state machine. It consumes classified
// signals and decides when a pull starts, ends, or is wiped, with a debounce
// on the falling edge of the in-game combat flag so short phase transitions
// do not end the pull.
//
// The transition logic is a pure function (Step, Expire) returning the new
// state plus a list of effects. Machine applies those effects: it fires
// callbacks and arms or cancels timers through an injected Scheduler.
package combat

import (
	"fmt"
	"time"

	"github.com/large-farva/mitplan-engine/internal/classify"
)

// Phase is the coarse state of the machine.
type Phase int

const (
	Idle Phase = iota
	Countdown
	Combat
	Ended
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "IDLE"
	case Countdown:
		return "COUNTDOWN"
	case Combat:
		return "COMBAT"
	case Ended:
		return "ENDED"
	}
	return "UNKNOWN"
}

// MarshalText lets phases appear by name in JSON.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText parses a phase name, for clients reading snapshots.
func (p *Phase) UnmarshalText(b []byte) error {
	for _, c := range []Phase{Idle, Countdown, Combat, Ended} {
		if c.String() == string(b) {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown combat phase %q", b)
}

// TimerKind names the two timers the machine can have pending.
type TimerKind int

const (
	// EndGrace runs from the falling edge of the combat flag until the pull
	// is declared over.
	EndGrace TimerKind = iota
	// EndedDecay runs from the end of a pull until the machine returns to
	// Idle.
	EndedDecay
)

func (k TimerKind) String() string {
	if k == EndGrace {
		return "end_grace"
	}
	return "ended_decay"
}

// Default timer durations.
const (
	DefaultEndGrace   = 5 * time.Second
	DefaultEndedDecay = 3 * time.Second
)

// State is the full machine state. The zero value is Idle with no zone.
type State struct {
	Phase              Phase
	CountdownSeconds   int
	CountdownInitiator string
	InGameCombat       bool
	ZoneID             int
	ZoneName           string

	EndGracePending bool
	DecayPending    bool

	// Dirty is set once a countdown or pull has begun and cleared when the
	// machine settles back to Idle. A wipe only fires its callback while it
	// is set, so repeated wipe records collapse into one.
	Dirty bool
}

// EffectKind enumerates the side effects Step can request.
type EffectKind int

const (
	FireCombatStart EffectKind = iota
	FireCombatEnd
	FireCountdownStart
	FireWipe
	FireZoneChange
	ScheduleTimer
	CancelTimer
)

func (k EffectKind) String() string {
	switch k {
	case FireCombatStart:
		return "combat_start"
	case FireCombatEnd:
		return "combat_end"
	case FireCountdownStart:
		return "countdown_start"
	case FireWipe:
		return "wipe"
	case FireZoneChange:
		return "zone_change"
	case ScheduleTimer:
		return "schedule"
	case CancelTimer:
		return "cancel"
	}
	return "unknown"
}

// Effect is one side effect. Timer is meaningful only for ScheduleTimer and
// CancelTimer.
type Effect struct {
	Kind  EffectKind
	Timer TimerKind
}

func fire(k EffectKind) Effect    { return Effect{Kind: k} }
func schedule(t TimerKind) Effect { return Effect{Kind: ScheduleTimer, Timer: t} }
func cancel(t TimerKind) Effect   { return Effect{Kind: CancelTimer, Timer: t} }

// InCombat reports whether a pull is in progress. The end-grace window
// counts as over until the flag comes back.
func (s State) InCombat() bool { return s.Phase == Combat }

func (s State) withCountdown(cd classify.CountdownStarted) State {
	s.CountdownSeconds = cd.Seconds
	s.CountdownInitiator = cd.Player
	return s
}

// Step applies one signal. It never fails; signals that make no sense in the
// current phase return the state unchanged and no effects.
func Step(s State, sig classify.Signal) (State, []Effect) {
	switch sig := sig.(type) {
	case classify.CountdownStarted:
		return stepCountdown(s, sig)
	case classify.CountdownCancelled:
		if s.Phase != Countdown {
			return s, nil
		}
		s.Phase = Idle
		s.CountdownSeconds, s.CountdownInitiator = 0, ""
		s.Dirty = false
		return s, nil
	case classify.EngageDetected:
		return stepEngage(s)
	case classify.CombatFlagChanged:
		return stepFlag(s, sig.InCombat)
	case classify.WipeDetected:
		wasDirty := s.Dirty
		s, effects := reset(s)
		if wasDirty {
			effects = append(effects, fire(FireWipe))
		}
		return s, effects
	case classify.ZoneChanged:
		s, effects := reset(s)
		s.ZoneID, s.ZoneName = sig.ID, sig.Name
		return s, append(effects, fire(FireZoneChange))
	}
	return s, nil
}

func stepCountdown(s State, cd classify.CountdownStarted) (State, []Effect) {
	switch s.Phase {
	case Combat:
		// Informational only; the pull in progress is unaffected.
		return s.withCountdown(cd), nil
	case Ended:
		s, effects := leaveEnded(s)
		s = s.withCountdown(cd)
		s.Phase = Countdown
		s.Dirty = true
		return s, append(effects, fire(FireCountdownStart))
	default:
		s = s.withCountdown(cd)
		s.Phase = Countdown
		s.Dirty = true
		return s, []Effect{fire(FireCountdownStart)}
	}
}

func stepEngage(s State) (State, []Effect) {
	switch s.Phase {
	case Combat:
		return s, nil
	case Ended:
		s, effects := leaveEnded(s)
		return startPull(s, effects)
	default:
		return startPull(s, nil)
	}
}

func stepFlag(s State, in bool) (State, []Effect) {
	prev := s.InGameCombat
	s.InGameCombat = in

	switch {
	case in && !prev:
		switch s.Phase {
		case Idle, Countdown:
			return startPull(s, nil)
		case Ended:
			if s.EndGracePending {
				// Still the same pull: resume without any callback.
				s.EndGracePending = false
				s.Phase = Combat
				return s, []Effect{cancel(EndGrace)}
			}
			s, effects := leaveEnded(s)
			return startPull(s, effects)
		}
	case !in && prev:
		if s.Phase == Combat {
			s.Phase = Ended
			s.EndGracePending = true
			return s, []Effect{schedule(EndGrace)}
		}
	}
	return s, nil
}

// leaveEnded cancels whatever Ended has pending. A pull whose end-grace had
// not run out yet is closed first so every start is matched by an end.
func leaveEnded(s State) (State, []Effect) {
	var effects []Effect
	if s.EndGracePending {
		effects = append(effects, cancel(EndGrace), fire(FireCombatEnd))
		s.EndGracePending = false
	}
	if s.DecayPending {
		effects = append(effects, cancel(EndedDecay))
		s.DecayPending = false
	}
	return s, effects
}

func startPull(s State, effects []Effect) (State, []Effect) {
	s.Phase = Combat
	s.Dirty = true
	return s, append(effects, fire(FireCombatStart))
}

// reset forces Idle and drops every pending timer. Zone is kept.
func reset(s State) (State, []Effect) {
	var effects []Effect
	if s.EndGracePending {
		effects = append(effects, cancel(EndGrace))
	}
	if s.DecayPending {
		effects = append(effects, cancel(EndedDecay))
	}
	return State{ZoneID: s.ZoneID, ZoneName: s.ZoneName}, effects
}

// Expire applies the expiry of timer k. An expiry that no longer matches the
// state (the timer was superseded) is ignored.
func Expire(s State, k TimerKind) (State, []Effect) {
	if s.Phase != Ended {
		return s, nil
	}
	switch k {
	case EndGrace:
		if !s.EndGracePending {
			return s, nil
		}
		s.EndGracePending = false
		s.DecayPending = true
		return s, []Effect{fire(FireCombatEnd), schedule(EndedDecay)}
	case EndedDecay:
		if !s.DecayPending {
			return s, nil
		}
		s.DecayPending = false
		s.Phase = Idle
		s.Dirty = false
		s.CountdownSeconds, s.CountdownInitiator = 0, ""
	}
	return s, nil
}
