package combat

import (
	"time"

	"github.com/large-farva/mitplan-engine/internal/classify"
)

// Callbacks are invoked by Machine as transitions happen. Any may be nil.
// They run on the goroutine that drives the machine.
type Callbacks struct {
	OnCombatStart    func()
	OnCombatEnd      func()
	OnCountdownStart func(seconds int, initiator string)
	OnWipe           func()
	OnZoneChange     func(id int, name string)

	// OnPhase reports every phase change, including silent ones such as a
	// cancelled countdown or the decay back to Idle.
	OnPhase func(from, to Phase)
}

// Config holds the timer durations. Zero values fall back to the defaults.
type Config struct {
	EndGrace   time.Duration
	EndedDecay time.Duration
}

// Snapshot is a diagnostic view of the machine.
type Snapshot struct {
	Phase              Phase  `json:"phase"`
	CountdownSeconds   int    `json:"countdown_seconds,omitempty"`
	CountdownInitiator string `json:"countdown_initiator,omitempty"`
	InCombat           bool   `json:"in_combat"`
	InGameCombat       bool   `json:"in_game_combat"`
	ZoneID             int    `json:"zone_id"`
	ZoneName           string `json:"zone_name,omitempty"`
	EndGracePending    bool   `json:"end_grace_pending,omitempty"`
}

// Machine owns a State and applies the effects of each transition. It is not
// safe for concurrent use; drive it from a single goroutine and make sure the
// Scheduler delivers expiries back onto that goroutine.
type Machine struct {
	cfg   Config
	sched Scheduler
	cb    Callbacks

	state  State
	timers [2]Timer
	gens   [2]uint64
}

// NewMachine returns an Idle machine.
func NewMachine(cfg Config, sched Scheduler, cb Callbacks) *Machine {
	if cfg.EndGrace <= 0 {
		cfg.EndGrace = DefaultEndGrace
	}
	if cfg.EndedDecay <= 0 {
		cfg.EndedDecay = DefaultEndedDecay
	}
	if sched == nil {
		sched = WallClock{}
	}
	return &Machine{cfg: cfg, sched: sched, cb: cb}
}

// Handle feeds one classified signal into the machine.
func (m *Machine) Handle(sig classify.Signal) {
	next, effects := Step(m.state, sig)
	m.apply(next, effects)
}

// ForceStartCombat behaves as if the in-game combat flag rose.
func (m *Machine) ForceStartCombat() {
	m.Handle(classify.CombatFlagChanged{InCombat: true})
}

// ForceEndCombat behaves as if the in-game combat flag fell. Without a raised
// flag there is no edge and nothing happens.
func (m *Machine) ForceEndCombat() {
	m.Handle(classify.CombatFlagChanged{InCombat: false})
}

// ForceWipe behaves as if a wipe record was seen.
func (m *Machine) ForceWipe() {
	m.Handle(classify.WipeDetected{})
}

// State returns a copy of the current state.
func (m *Machine) State() State { return m.state }

// Snapshot returns the diagnostic view.
func (m *Machine) Snapshot() Snapshot {
	s := m.state
	return Snapshot{
		Phase:              s.Phase,
		CountdownSeconds:   s.CountdownSeconds,
		CountdownInitiator: s.CountdownInitiator,
		InCombat:           s.InCombat(),
		InGameCombat:       s.InGameCombat,
		ZoneID:             s.ZoneID,
		ZoneName:           s.ZoneName,
		EndGracePending:    s.EndGracePending,
	}
}

func (m *Machine) expire(k TimerKind, gen uint64) {
	if m.gens[k] != gen {
		return // cancelled or re-armed after this expiry was queued
	}
	m.timers[k] = nil
	next, effects := Expire(m.state, k)
	m.apply(next, effects)
}

func (m *Machine) apply(next State, effects []Effect) {
	prev := m.state
	m.state = next

	for _, e := range effects {
		switch e.Kind {
		case ScheduleTimer:
			m.arm(e.Timer)
		case CancelTimer:
			m.disarm(e.Timer)
		case FireCombatStart:
			if m.cb.OnCombatStart != nil {
				m.cb.OnCombatStart()
			}
		case FireCombatEnd:
			if m.cb.OnCombatEnd != nil {
				m.cb.OnCombatEnd()
			}
		case FireCountdownStart:
			if m.cb.OnCountdownStart != nil {
				m.cb.OnCountdownStart(next.CountdownSeconds, next.CountdownInitiator)
			}
		case FireWipe:
			if m.cb.OnWipe != nil {
				m.cb.OnWipe()
			}
		case FireZoneChange:
			if m.cb.OnZoneChange != nil {
				m.cb.OnZoneChange(next.ZoneID, next.ZoneName)
			}
		}
	}

	if prev.Phase != next.Phase && m.cb.OnPhase != nil {
		m.cb.OnPhase(prev.Phase, next.Phase)
	}
}

func (m *Machine) arm(k TimerKind) {
	m.disarm(k)
	gen := m.gens[k]
	d := m.cfg.EndGrace
	if k == EndedDecay {
		d = m.cfg.EndedDecay
	}
	m.timers[k] = m.sched.AfterFunc(d, func() { m.expire(k, gen) })
}

// disarm stops timer k and bumps its generation so an expiry that already
// left the timer is dropped when it arrives.
func (m *Machine) disarm(k TimerKind) {
	if m.timers[k] != nil {
		m.timers[k].Stop()
		m.timers[k] = nil
	}
	m.gens[k]++
}
