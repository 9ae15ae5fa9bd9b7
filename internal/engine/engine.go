// Package engine owns the combat state machine, the fight clock, the loaded
// plan and the player settings, and drives them from a single goroutine.
// Raw host events, ticks, timer expiries and commands all arrive through one
// inbox and are handled strictly in order.
package engine

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/large-farva/mitplan-engine/internal/callout"
	"github.com/large-farva/mitplan-engine/internal/classify"
	"github.com/large-farva/mitplan-engine/internal/combat"
	"github.com/large-farva/mitplan-engine/internal/cue"
	"github.com/large-farva/mitplan-engine/internal/fightclock"
	"github.com/large-farva/mitplan-engine/internal/host"
	"github.com/large-farva/mitplan-engine/internal/journal"
	"github.com/large-farva/mitplan-engine/internal/plan"
)

// DefaultTickInterval is how often the clock advances and callouts are
// recomputed when Options.TickInterval is zero.
const DefaultTickInterval = 100 * time.Millisecond

// Sink receives every event the engine emits. *ws.Hub satisfies it.
type Sink interface {
	BroadcastJSON(v any)
}

// Journal records pulls. *journal.Store satisfies it.
type Journal interface {
	Begin(st journal.Start) (string, error)
	Finish(id string, outcome journal.Outcome, endedAt time.Time, elapsed float64) error
	Relabel(id string, outcome journal.Outcome) error
}

// Player holds the local player's callout filter settings.
type Player struct {
	Name        string `json:"name,omitempty"`
	Job         string `json:"job,omitempty"`
	Role        string `json:"role,omitempty"`
	ShowOwnOnly bool   `json:"showOwnOnly"`
}

func (p Player) calloutOptions() callout.Options {
	return callout.Options{ShowOwnOnly: p.ShowOwnOnly, Job: p.Job, Role: p.Role}
}

// TimelineOptions shapes the upcoming list.
type TimelineOptions struct {
	WindowSeconds float64 `json:"windowSeconds"`
	MaxItems      int     `json:"maxItems"`
}

// Options configures an Engine. Only Logger is required.
type Options struct {
	Logger *log.Logger
	Sink   Sink

	Classifier *classify.Classifier
	Combat     combat.Config

	Catalog  *plan.Catalog
	Zones    *plan.Zones
	AutoLoad bool

	Journal Journal

	Player   Player
	Timeline TimelineOptions
	Cues     cue.Options

	TickInterval time.Duration

	// Scheduler and Now replace wall time. When Scheduler is set, timer
	// expiries run on the goroutine that advances it, so the caller must
	// drive the engine through Step, Tick and Exec from that goroutine.
	Scheduler combat.Scheduler
	Now       func() time.Time

	// OnPhase is called after every combat phase change.
	OnPhase func(from, to combat.Phase)
}

// Engine coordinates the fight. Create one with New, then either call Run in
// its own goroutine and feed it with Submit and Do, or drive it synchronously
// with Step, Tick and Exec.
type Engine struct {
	log        *log.Logger
	sink       Sink
	classifier *classify.Classifier
	machine    *combat.Machine
	clock      fightclock.Clock
	tracker    *cue.Tracker

	catalog  *plan.Catalog
	zones    *plan.Zones
	autoLoad bool
	journal  Journal

	now       func() time.Time
	tickEvery time.Duration
	onPhase   func(from, to combat.Phase)

	inbox chan message
	done  chan struct{}

	// Owned by the engine goroutine.
	plan     *plan.Plan
	player   Player
	timeline TimelineOptions
	fight    string
	pull     activePull
	lastPull string // finished pull still open to a late wipe relabel
	emitted  emitKeys

	snap    atomic.Pointer[Snapshot]
	curPlan atomic.Pointer[plan.Plan]
}

type activePull struct {
	active    bool
	id        string
	startedAt time.Time
}

type message interface{}

type tickMsg struct{}

type expiryMsg struct{ fn func() }

// New returns an engine in the Idle phase with no plan loaded.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Sink == nil {
		opts.Sink = discard{}
	}
	if opts.Classifier == nil {
		opts.Classifier = classify.New(classify.DefaultCodes())
	}
	if opts.Zones == nil {
		opts.Zones = plan.NewZones(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Timeline.WindowSeconds <= 0 {
		opts.Timeline.WindowSeconds = 30
	}
	if opts.Timeline.MaxItems <= 0 {
		opts.Timeline.MaxItems = 5
	}

	e := &Engine{
		log:        opts.Logger,
		sink:       opts.Sink,
		classifier: opts.Classifier,
		tracker:    cue.NewTracker(opts.Cues),
		catalog:    opts.Catalog,
		zones:      opts.Zones,
		autoLoad:   opts.AutoLoad,
		journal:    opts.Journal,
		now:        opts.Now,
		tickEvery:  opts.TickInterval,
		onPhase:    opts.OnPhase,
		inbox:      make(chan message, 256),
		done:       make(chan struct{}),
		player:     opts.Player,
		timeline:   opts.Timeline,
	}

	sched := opts.Scheduler
	if sched == nil {
		sched = inboxScheduler{e: e, inner: combat.WallClock{}}
	}
	e.machine = combat.NewMachine(opts.Combat, sched, combat.Callbacks{
		OnCombatStart:    e.onCombatStart,
		OnCombatEnd:      e.onCombatEnd,
		OnCountdownStart: e.onCountdownStart,
		OnWipe:           e.onWipe,
		OnZoneChange:     e.onZoneChange,
		OnPhase:          e.onPhaseChange,
	})
	e.publish(nil, nil, nil)
	return e
}

// Run is the engine loop. It returns when ctx is cancelled; a pull still in
// progress is recorded as aborted.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.tickEvery)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// A tick that finds the inbox full is skipped; the next one
				// catches the clock up.
				select {
				case e.inbox <- tickMsg{}:
				default:
				}
			}
		}
	}()

	e.logf("info", "engine started (tick %s)", e.tickEvery)
	e.refresh()

	for {
		select {
		case <-ctx.Done():
			e.endPull(journal.OutcomeAborted)
			return
		case m := <-e.inbox:
			e.dispatch(m)
		}
	}
}

func (e *Engine) dispatch(m message) {
	switch m := m.(type) {
	case host.Event:
		e.Step(m)
	case tickMsg:
		e.Tick()
	case expiryMsg:
		m.fn()
		e.refresh()
	case Command:
		res := e.Exec(m.Type, m.Payload)
		if m.Reply != nil {
			m.Reply <- res
		}
	}
}

// Submit queues a host event for the engine goroutine. It blocks while the
// inbox is full and gives up once Run has returned.
func (e *Engine) Submit(ev host.Event) {
	select {
	case e.inbox <- ev:
	case <-e.done:
	}
}

// post queues m unless the engine has stopped.
func (e *Engine) post(m message) bool {
	select {
	case e.inbox <- m:
		return true
	case <-e.done:
		return false
	}
}

// Step handles one host event synchronously.
func (e *Engine) Step(ev host.Event) {
	if ev.Player != nil {
		e.applyPlayerUpdate(*ev.Player)
	}
	if ev.Raw != nil {
		if sig, ok := e.classifier.Classify(ev.Raw); ok {
			if _, isCombat := sig.(classify.CombatFlagChanged); !isCombat {
				e.log.Printf("signal: %s", sig)
			}
			e.machine.Handle(sig)
		}
	}
	e.refresh()
}

// Tick advances the fight clock to now and emits whatever changed.
func (e *Engine) Tick() {
	e.clock.Tick(e.now())
	e.refresh()
}

// Snapshot returns the most recently published engine state. Safe to call
// from any goroutine.
func (e *Engine) Snapshot() Snapshot {
	return *e.snap.Load()
}

// Plan returns the loaded plan or nil. Safe to call from any goroutine; the
// plan must not be modified.
func (e *Engine) Plan() *plan.Plan {
	return e.curPlan.Load()
}

// ---------------------------------------------------------------------------
// Machine callbacks
// ---------------------------------------------------------------------------

func (e *Engine) onCombatStart() {
	now := e.now()
	e.clock.Reset()
	e.clock.Start(now)
	e.tracker.Reset()
	e.beginPull(now)
	e.logf("info", "combat started")
}

func (e *Engine) onCombatEnd() {
	e.clock.Tick(e.now())
	e.clock.Stop()
	e.endPull(journal.OutcomeEnded)
	e.logf("info", "combat ended at %s", formatClock(e.clock.Elapsed()))
}

func (e *Engine) onCountdownStart(seconds int, initiator string) {
	e.clock.Reset()
	e.tracker.Reset()
	e.sink.BroadcastJSON(newCountdown(seconds, initiator))
	if initiator != "" {
		e.logf("info", "countdown %ds started by %s", seconds, initiator)
	} else {
		e.logf("info", "countdown %ds started", seconds)
	}
}

func (e *Engine) onWipe() {
	e.clock.Tick(e.now())
	elapsed := e.clock.Elapsed()
	switch {
	case e.pull.active:
		e.endPull(journal.OutcomeWipe)
	case e.lastPull != "" && e.journal != nil:
		if err := e.journal.Relabel(e.lastPull, journal.OutcomeWipe); err != nil {
			e.logf("warn", "journal: %v", err)
		}
		e.sink.BroadcastJSON(newPull("end", e.lastPull, e.fight, string(journal.OutcomeWipe), elapsed))
		e.lastPull = ""
	}
	e.clock.Reset()
	e.tracker.Reset()
	e.sink.BroadcastJSON(newWipe(elapsed))
	e.logf("info", "wipe at %s", formatClock(elapsed))
}

func (e *Engine) onZoneChange(id int, name string) {
	e.endPull(journal.OutcomeZone)
	e.lastPull = ""
	e.clock.Reset()
	e.tracker.Reset()

	e.fight = e.zones.FightFor(name)
	e.sink.BroadcastJSON(newZone(id, name, e.fight))
	if e.fight != "" {
		e.logf("info", "entered %s (%s)", name, e.fight)
	} else {
		e.logf("info", "entered %s", name)
	}

	if !e.autoLoad || e.fight == "" || e.catalog == nil {
		return
	}
	p, ok := e.catalog.DefaultFor(e.fight)
	if !ok {
		e.logf("info", "no default plan for %s", e.fight)
		return
	}
	if e.plan != nil && e.plan.ID == p.ID {
		return
	}
	e.setPlan(p, "zone: "+name)
}

func (e *Engine) onPhaseChange(from, to combat.Phase) {
	if to == combat.Idle {
		e.lastPull = ""
	}
	e.sink.BroadcastJSON(newStateTransition(from, to))
	if e.onPhase != nil {
		e.onPhase(from, to)
	}
}

// ---------------------------------------------------------------------------
// Pulls
// ---------------------------------------------------------------------------

func (e *Engine) beginPull(now time.Time) {
	if e.pull.active {
		e.endPull(journal.OutcomeAborted)
	}
	e.lastPull = ""
	e.pull = activePull{active: true, startedAt: now}
	if e.journal != nil {
		st := e.machine.State()
		start := journal.Start{
			ZoneID:    st.ZoneID,
			Zone:      st.ZoneName,
			Fight:     e.fight,
			StartedAt: now,
		}
		if e.plan != nil {
			start.PlanID = e.plan.ID
		}
		id, err := e.journal.Begin(start)
		if err != nil {
			e.logf("warn", "journal: %v", err)
		}
		e.pull.id = id
	}
	e.sink.BroadcastJSON(newPull("start", e.pull.id, e.fight, "", 0))
}

func (e *Engine) endPull(outcome journal.Outcome) {
	if !e.pull.active {
		return
	}
	e.clock.Tick(e.now())
	elapsed := e.clock.Elapsed()
	if e.journal != nil && e.pull.id != "" {
		if err := e.journal.Finish(e.pull.id, outcome, e.now(), elapsed); err != nil {
			e.logf("warn", "journal: %v", err)
		}
	}
	e.sink.BroadcastJSON(newPull("end", e.pull.id, e.fight, string(outcome), elapsed))
	if outcome == journal.OutcomeEnded {
		e.lastPull = e.pull.id
	}
	e.pull = activePull{}
}

// ---------------------------------------------------------------------------
// Plan and player
// ---------------------------------------------------------------------------

func (e *Engine) setPlan(p *plan.Plan, reason string) {
	e.plan = p
	e.curPlan.Store(p)
	e.tracker.Reset()
	e.emitted = emitKeys{}
	if p != nil {
		e.logf("info", "plan %q loaded (%s)", p.DisplayName(), reason)
	} else {
		e.logf("info", "plan cleared (%s)", reason)
	}
	e.sink.BroadcastJSON(newPlanEvent(planInfo(p), reason))
}

func (e *Engine) applyPlayerUpdate(u host.PlayerUpdate) {
	changed := false
	if u.Name != "" && u.Name != e.player.Name {
		e.player.Name = u.Name
		changed = true
	}
	if u.Job != "" && u.Job != e.player.Job {
		e.player.Job = u.Job
		if e.player.Role != "" && !roleValid(e.player.Role, u.Job) {
			e.player.Role = ""
		}
		changed = true
		e.logf("info", "player job is now %s", u.Job)
	}
	if changed {
		e.emitted.callout = ""
		e.emitted.timeline = ""
		e.emitted.raidPlan = ""
		e.sink.BroadcastJSON(newPlayer(e.player))
	}
}

func (e *Engine) logf(level, format string, args ...any) {
	e.log.Printf(format, args...)
	e.sink.BroadcastJSON(newLog(level, format, args...))
}

type discard struct{}

func (discard) BroadcastJSON(any) {}
