package engine

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/large-farva/mitplan-engine/internal/classify"
	"github.com/large-farva/mitplan-engine/internal/combat"
	"github.com/large-farva/mitplan-engine/internal/cue"
	"github.com/large-farva/mitplan-engine/internal/host"
	"github.com/large-farva/mitplan-engine/internal/journal"
	"github.com/large-farva/mitplan-engine/internal/plan"
	"github.com/large-farva/mitplan-engine/internal/telemetry"
)

type recorder struct {
	mu     sync.Mutex
	events []any
}

func (r *recorder) BroadcastJSON(v any) {
	r.mu.Lock()
	r.events = append(r.events, v)
	r.mu.Unlock()
}

func eventsOf[T any](r *recorder) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []T
	for _, v := range r.events {
		if ev, ok := v.(T); ok {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	e     *Engine
	sched *combat.ManualScheduler
	sink  *recorder
}

var t0 = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{sched: combat.NewManualScheduler(t0), sink: &recorder{}}
	opts.Logger = log.New(io.Discard, "", 0)
	opts.Sink = h.sink
	opts.Scheduler = h.sched
	opts.Now = h.sched.Now
	h.e = New(opts)
	return h
}

// advance moves virtual time forward in steps, ticking after each.
func (h *harness) advance(total, step time.Duration) {
	for d := time.Duration(0); d < total; d += step {
		h.sched.Advance(step)
		h.e.Tick()
	}
}

func (h *harness) flag(in bool) {
	h.e.Step(host.Event{Raw: classify.CombatStatus{InGameCombat: in, InHostCombat: in}})
}

func (h *harness) line(text string) {
	h.e.Step(host.Event{Raw: classify.LogLine{Text: text}})
}

func newJournal(t *testing.T) *journal.Store {
	t.Helper()
	s, err := journal.Open(filepath.Join(t.TempDir(), "pulls.db"))
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testPlan() *plan.Plan {
	return &plan.Plan{
		ID:        "m9s-test",
		Name:      "M9S test",
		FightName: "M9S",
		Version:   "1.0",
		Timeline: []plan.Entry{
			{Timestamp: 10.5, Job: "WHM", Ability: "Temperance"},
		},
	}
}

func phases(r *recorder) []string {
	var out []string
	for _, ev := range eventsOf[telemetry.StateTransition](r) {
		out = append(out, ev.From+">"+ev.To)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPullSurvivesPhaseTransitionDrop(t *testing.T) {
	j := newJournal(t)
	h := newHarness(t, Options{Journal: j})

	h.flag(true)
	h.advance(10*time.Second, time.Second)

	// A phase transition drops the flag for less than the grace window.
	h.flag(false)
	h.advance(3*time.Second, time.Second)
	h.flag(true)
	h.advance(20*time.Second, time.Second)

	snap := h.e.Snapshot()
	if snap.Combat.Phase != combat.Combat || !snap.Clock.Running || snap.Clock.Elapsed != 33 {
		t.Fatalf("mid pull snapshot = %+v", snap)
	}

	h.flag(false)
	h.advance(5*time.Second, time.Second)
	if h.e.Snapshot().Clock.Running {
		t.Fatal("clock still running after end grace")
	}
	h.advance(3*time.Second, time.Second)

	want := []string{"IDLE>COMBAT", "COMBAT>ENDED", "ENDED>COMBAT", "COMBAT>ENDED", "ENDED>IDLE"}
	if got := phases(h.sink); !equalStrings(got, want) {
		t.Fatalf("phases = %v, want %v", got, want)
	}

	pulls := eventsOf[telemetry.Pull](h.sink)
	if len(pulls) != 2 || pulls[0].Phase != "start" || pulls[1].Phase != "end" || pulls[1].Outcome != "ended" {
		t.Fatalf("pull events = %+v", pulls)
	}
	row, err := j.Get(pulls[0].PullID)
	if err != nil {
		t.Fatalf("journal Get: %v", err)
	}
	// The clock keeps running through the end grace window.
	if row.Outcome != journal.OutcomeEnded || row.Elapsed != 38 {
		t.Fatalf("journal row = %+v", row)
	}
}

const wipeLine = "33|2026-03-01T20:01:00.000+00:00|80037569|40000010|00|00|00|00"

func TestWipeDuringCombat(t *testing.T) {
	j := newJournal(t)
	h := newHarness(t, Options{Journal: j})

	h.flag(true)
	h.advance(42*time.Second, time.Second)
	h.line(wipeLine)

	snap := h.e.Snapshot()
	if snap.Combat.Phase != combat.Idle || snap.Clock.Running || snap.Clock.Elapsed != 0 {
		t.Fatalf("after wipe snapshot = %+v", snap)
	}
	wipes := eventsOf[telemetry.Wipe](h.sink)
	if len(wipes) != 1 || wipes[0].Elapsed != 42 {
		t.Fatalf("wipe events = %+v", wipes)
	}
	pulls := eventsOf[telemetry.Pull](h.sink)
	if len(pulls) != 2 || pulls[1].Outcome != "wipe" {
		t.Fatalf("pull events = %+v", pulls)
	}
	if row, _ := j.Get(pulls[0].PullID); row == nil || row.Outcome != journal.OutcomeWipe {
		t.Fatalf("journal row = %+v", row)
	}

	// The flag falling after the reset is not a new edge into Ended.
	h.flag(false)
	if got := h.e.Snapshot().Combat.Phase; got != combat.Idle {
		t.Fatalf("phase after late flag drop = %s", got)
	}
}

func TestWipeAfterEndRelabelsPull(t *testing.T) {
	j := newJournal(t)
	h := newHarness(t, Options{Journal: j})

	h.flag(true)
	h.advance(30*time.Second, time.Second)
	h.flag(false)
	h.advance(5*time.Second, time.Second) // end grace runs out

	pulls := eventsOf[telemetry.Pull](h.sink)
	if len(pulls) != 2 || pulls[1].Outcome != "ended" {
		t.Fatalf("pull events before wipe = %+v", pulls)
	}

	h.line(wipeLine) // inside the decay window
	if row, _ := j.Get(pulls[0].PullID); row == nil || row.Outcome != journal.OutcomeWipe {
		t.Fatalf("journal row after relabel = %+v", row)
	}
	if n := len(eventsOf[telemetry.Wipe](h.sink)); n != 1 {
		t.Fatalf("wipe events = %d", n)
	}
}

func TestCountdownResetsClock(t *testing.T) {
	h := newHarness(t, Options{})
	h.e.Exec(CmdClockStart, nil)
	h.advance(4*time.Second, time.Second)
	if got := h.e.Snapshot().Clock.Elapsed; got != 4 {
		t.Fatalf("elapsed = %v", got)
	}

	h.line("268|2026-03-01T20:00:00.000+00:00|10FF0001|4F|15|00|Alice Ault|hash")
	snap := h.e.Snapshot()
	if snap.Combat.Phase != combat.Countdown || snap.Clock.Elapsed != 0 || snap.Clock.Running {
		t.Fatalf("after countdown snapshot = %+v", snap)
	}
	cds := eventsOf[telemetry.Countdown](h.sink)
	if len(cds) != 1 || cds[0].Seconds != 15 || cds[0].Initiator != "Alice Ault" {
		t.Fatalf("countdown events = %+v", cds)
	}

	h.line("00|2026-03-01T20:00:15.000+00:00|0039||Engage!|hash")
	if snap := h.e.Snapshot(); snap.Combat.Phase != combat.Combat || !snap.Clock.Running {
		t.Fatalf("after engage snapshot = %+v", snap)
	}
}

func TestCalloutEmittedOnlyOnChange(t *testing.T) {
	h := newHarness(t, Options{
		Cues: cue.Options{Sound: true, SoundType: cue.SoundAlert, VoiceCountdown: true, VoiceActions: true},
	})
	if res := h.e.Exec(CmdLoadPlan, mustJSON(t, LoadPlanPayload{Plan: testPlan()})); !res.OK {
		t.Fatalf("load_plan: %+v", res)
	}
	h.e.Exec(CmdForceStart, nil)
	h.advance(12*time.Second, 200*time.Millisecond)

	callouts := eventsOf[telemetry.Callout](h.sink)
	var displays []string
	for _, c := range callouts {
		if c.Active {
			displays = append(displays, c.Display)
		}
	}
	want := []string{"5", "4", "3", "2", "1", "NOW!", "NOW!", "NOW!"}
	if !equalStrings(displays, want) {
		t.Fatalf("callout displays = %v, want %v", displays, want)
	}
	if callouts[0].Active {
		t.Fatalf("first callout event should be inactive: %+v", callouts[0])
	}

	timelines := eventsOf[telemetry.Timeline](h.sink)
	if len(timelines) != 2 || len(timelines[0].Entries) != 1 || len(timelines[1].Entries) != 0 {
		t.Fatalf("timeline events = %+v", timelines)
	}

	var cues []string
	for _, c := range eventsOf[telemetry.Cue](h.sink) {
		if c.Cue.Kind == cue.KindSound {
			cues = append(cues, "sound:"+c.Cue.Sound)
		} else {
			cues = append(cues, c.Cue.Text)
		}
	}
	wantCues := []string{"Temperance in 5", "4", "3", "2", "1", "sound:alert", "Temperance"}
	if !equalStrings(cues, wantCues) {
		t.Fatalf("cues = %v, want %v", cues, wantCues)
	}
}

func TestNoCuesWhileClockStopped(t *testing.T) {
	h := newHarness(t, Options{Cues: cue.Options{Sound: true, VoiceCountdown: true}})
	h.e.Exec(CmdLoadPlan, mustJSON(t, LoadPlanPayload{Plan: testPlan()}))
	h.advance(15*time.Second, time.Second)
	if n := len(eventsOf[telemetry.Cue](h.sink)); n != 0 {
		t.Fatalf("cues with stopped clock = %d", n)
	}
}

func writePlanFile(t *testing.T, dir string, p *plan.Plan) {
	t.Helper()
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, p.ID+".json"), b, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestZoneChangeAutoLoadsDefaultPlan(t *testing.T) {
	dir := t.TempDir()
	writePlanFile(t, dir, testPlan())
	cat := plan.NewCatalog(dir, log.New(io.Discard, "", 0))
	if err := cat.Reload(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		autoLoad bool
		zone     string
		wantPlan string
	}{
		{"mapped zone", true, "AAC Heavyweight M1 (Savage)", "m9s-test"},
		{"auto load off", false, "AAC Heavyweight M1 (Savage)", ""},
		{"unmapped zone", true, "Solution Nine", ""},
		{"fight without plans", true, "AAC Heavyweight M2 (Savage)", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{Catalog: cat, AutoLoad: tt.autoLoad})
			h.e.Step(host.Event{Raw: classify.ZoneChange{ID: 1321, Name: tt.zone}})

			got := ""
			if p := h.e.Plan(); p != nil {
				got = p.ID
			}
			if got != tt.wantPlan {
				t.Fatalf("plan = %q, want %q", got, tt.wantPlan)
			}
			zones := eventsOf[telemetry.Zone](h.sink)
			if len(zones) != 1 || zones[0].ZoneName != tt.zone {
				t.Fatalf("zone events = %+v", zones)
			}
		})
	}
}

func TestZoneChangeEndsPull(t *testing.T) {
	j := newJournal(t)
	h := newHarness(t, Options{Journal: j})
	h.flag(true)
	h.advance(5*time.Second, time.Second)
	h.e.Step(host.Event{Raw: classify.ZoneChange{ID: 129, Name: "Limsa Lominsa Lower Decks"}})

	pulls := eventsOf[telemetry.Pull](h.sink)
	if len(pulls) != 2 || pulls[1].Outcome != "zone" {
		t.Fatalf("pull events = %+v", pulls)
	}
	if snap := h.e.Snapshot(); snap.Combat.Phase != combat.Idle || snap.Combat.ZoneName != "Limsa Lominsa Lower Decks" {
		t.Fatalf("snapshot = %+v", snap.Combat)
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestCommands(t *testing.T) {
	h := newHarness(t, Options{})

	share, err := plan.Encode(testPlan())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		typ     string
		payload any
		wantOK  bool
	}{
		{"unknown", "explode", nil, false},
		{"load nothing", CmdLoadPlan, LoadPlanPayload{}, false},
		{"load by id without catalog", CmdLoadPlan, LoadPlanPayload{ID: "x"}, false},
		{"load bad base64", CmdLoadPlan, LoadPlanPayload{Data: "!!!"}, false},
		{"load invalid plan", CmdLoadPlan, LoadPlanPayload{Plan: &plan.Plan{}}, false},
		{"load share string", CmdLoadPlan, LoadPlanPayload{Data: share}, true},
		{"unknown job", CmdSetPlayer, map[string]any{"job": "XYZ"}, false},
		{"job lower case", CmdSetPlayer, map[string]any{"job": "whm", "showOwnOnly": true}, true},
		{"role of another job", CmdSetPlayer, map[string]any{"role": "MT"}, false},
		{"healer role", CmdSetPlayer, map[string]any{"role": "h1"}, true},
		{"bad sound type", CmdSetCues, map[string]any{"soundType": "kazoo"}, false},
		{"cues", CmdSetCues, map[string]any{"sound": true, "soundType": "alarm"}, true},
		{"bad timeline", CmdSetTimeline, map[string]any{"windowSeconds": 0}, false},
		{"timeline", CmdSetTimeline, map[string]any{"windowSeconds": 60, "maxItems": 3}, true},
		{"clock start", CmdClockStart, nil, true},
		{"clear plan", CmdClearPlan, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.e.Exec(tt.typ, mustJSON(t, tt.payload))
			if res.OK != tt.wantOK {
				t.Fatalf("%s: ok = %v (%+v), want %v", tt.typ, res.OK, res, tt.wantOK)
			}
			if !res.OK && res.Error == "" {
				t.Fatalf("failed result without error: %+v", res)
			}
		})
	}

	snap := h.e.Snapshot()
	if snap.Player.Job != "WHM" || snap.Player.Role != "H1" || !snap.Player.ShowOwnOnly {
		t.Fatalf("player = %+v", snap.Player)
	}
	if !snap.Cues.Sound || snap.Cues.SoundType != cue.SoundAlarm {
		t.Fatalf("cues = %+v", snap.Cues)
	}
	if snap.Timeline.WindowSeconds != 60 || snap.Timeline.MaxItems != 3 {
		t.Fatalf("timeline = %+v", snap.Timeline)
	}
	if snap.Plan != nil || h.e.Plan() != nil {
		t.Fatalf("plan still loaded: %+v", snap.Plan)
	}
	if !snap.Clock.Running {
		t.Fatal("clock not running after clock_start")
	}
}

func TestJobChangeDropsIncompatibleRole(t *testing.T) {
	h := newHarness(t, Options{Player: Player{Job: "WAR", Role: "MT"}})
	h.e.Step(host.Event{Player: &host.PlayerUpdate{Name: "Alice Ault", Job: "SCH"}})
	p := h.e.Snapshot().Player
	if p.Job != "SCH" || p.Role != "" || p.Name != "Alice Ault" {
		t.Fatalf("player = %+v", p)
	}
	if n := len(eventsOf[telemetry.Player](h.sink)); n != 1 {
		t.Fatalf("player events = %d", n)
	}
}

func TestRefreshPlanFromCatalog(t *testing.T) {
	dir := t.TempDir()
	p := testPlan()
	writePlanFile(t, dir, p)
	cat := plan.NewCatalog(dir, log.New(io.Discard, "", 0))
	if err := cat.Reload(); err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, Options{Catalog: cat})
	if res := h.e.Exec(CmdLoadPlan, mustJSON(t, LoadPlanPayload{ID: p.ID})); !res.OK {
		t.Fatalf("load by id: %+v", res)
	}

	p.Timeline = append(p.Timeline, plan.Entry{Timestamp: 20, Job: "SCH", Ability: "Expedient"})
	writePlanFile(t, dir, p)
	if err := cat.Reload(); err != nil {
		t.Fatal(err)
	}
	if res := h.e.Exec(CmdRefreshPlan, nil); !res.OK {
		t.Fatalf("refresh: %+v", res)
	}
	if got := len(h.e.Plan().Timeline); got != 2 {
		t.Fatalf("timeline entries after refresh = %d", got)
	}
}

type fakeJournal struct {
	mu       sync.Mutex
	finished map[string]journal.Outcome
}

func (f *fakeJournal) Begin(journal.Start) (string, error) { return "pull-1", nil }

func (f *fakeJournal) Finish(id string, o journal.Outcome, _ time.Time, _ float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finished == nil {
		f.finished = map[string]journal.Outcome{}
	}
	f.finished[id] = o
	return nil
}

func (f *fakeJournal) Relabel(string, journal.Outcome) error { return nil }

func (f *fakeJournal) outcome(id string) journal.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished[id]
}

func TestRunLoop(t *testing.T) {
	j := &fakeJournal{}
	sink := &recorder{}
	e := New(Options{
		Logger:       log.New(io.Discard, "", 0),
		Sink:         sink,
		Journal:      j,
		TickInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)

	if res := e.Do(ctx, CmdForceStart, nil); !res.OK {
		t.Fatalf("force_start: %+v", res)
	}
	e.Submit(host.Event{Raw: classify.LogLine{Text: "garbage"}})

	deadline := time.Now().Add(5 * time.Second)
	for e.Snapshot().Clock.Elapsed <= 0 {
		if time.Now().After(deadline) {
			t.Fatal("clock never advanced")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if e.Snapshot().PullID != "pull-1" {
		t.Fatalf("pull id = %q", e.Snapshot().PullID)
	}

	cancel()
	<-e.done
	if got := j.outcome("pull-1"); got != journal.OutcomeAborted {
		t.Fatalf("outcome after shutdown = %q", got)
	}
	if res := e.Do(context.Background(), CmdForceEnd, nil); res.OK {
		t.Fatal("Do succeeded on a stopped engine")
	}
}
