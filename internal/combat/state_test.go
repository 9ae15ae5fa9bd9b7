package combat

import (
	"reflect"
	"testing"
	"time"

	"github.com/large-farva/mitplan-engine/internal/classify"
)

func TestStepEffects(t *testing.T) {
	tests := []struct {
		name      string
		from      State
		sig       classify.Signal
		wantPhase Phase
		want      []Effect
	}{
		{
			name:      "engage from idle",
			from:      State{},
			sig:       classify.EngageDetected{},
			wantPhase: Combat,
			want:      []Effect{fire(FireCombatStart)},
		},
		{
			name:      "falling edge schedules grace",
			from:      State{Phase: Combat, InGameCombat: true, Dirty: true},
			sig:       classify.CombatFlagChanged{InCombat: false},
			wantPhase: Ended,
			want:      []Effect{schedule(EndGrace)},
		},
		{
			name:      "rising edge during grace resumes silently",
			from:      State{Phase: Ended, EndGracePending: true, Dirty: true},
			sig:       classify.CombatFlagChanged{InCombat: true},
			wantPhase: Combat,
			want:      []Effect{cancel(EndGrace)},
		},
		{
			name:      "rising edge during decay is a new pull",
			from:      State{Phase: Ended, DecayPending: true, Dirty: true},
			sig:       classify.CombatFlagChanged{InCombat: true},
			wantPhase: Combat,
			want:      []Effect{cancel(EndedDecay), fire(FireCombatStart)},
		},
		{
			name:      "wipe in ended cancels everything",
			from:      State{Phase: Ended, EndGracePending: true, Dirty: true},
			sig:       classify.WipeDetected{},
			wantPhase: Idle,
			want:      []Effect{cancel(EndGrace), fire(FireWipe)},
		},
		{
			name:      "cancel outside countdown",
			from:      State{Phase: Idle},
			sig:       classify.CountdownCancelled{},
			wantPhase: Idle,
			want:      nil,
		},
		{
			name:      "engage while in combat",
			from:      State{Phase: Combat, Dirty: true},
			sig:       classify.EngageDetected{},
			wantPhase: Combat,
			want:      nil,
		},
		{
			name:      "same flag twice",
			from:      State{Phase: Combat, InGameCombat: true, Dirty: true},
			sig:       classify.CombatFlagChanged{InCombat: true},
			wantPhase: Combat,
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, effects := Step(tt.from, tt.sig)
			if got.Phase != tt.wantPhase {
				t.Fatalf("phase = %v, want %v", got.Phase, tt.wantPhase)
			}
			if !reflect.DeepEqual(effects, tt.want) {
				t.Fatalf("effects = %v, want %v", effects, tt.want)
			}
		})
	}
}

func TestExpireIgnoresMismatchedState(t *testing.T) {
	s := State{Phase: Combat, Dirty: true}
	got, effects := Expire(s, EndGrace)
	if got != s || effects != nil {
		t.Fatalf("Expire in COMBAT changed state: %+v %v", got, effects)
	}

	s = State{Phase: Ended, EndGracePending: true}
	got, effects = Expire(s, EndedDecay)
	if got != s || effects != nil {
		t.Fatalf("decay expiry during grace changed state: %+v %v", got, effects)
	}
}

func TestWipeKeepsZone(t *testing.T) {
	s := State{Phase: Combat, ZoneID: 7, ZoneName: "Z", InGameCombat: true, Dirty: true, CountdownSeconds: 5}
	got, _ := Step(s, classify.WipeDetected{})
	want := State{ZoneID: 7, ZoneName: "Z"}
	if got != want {
		t.Fatalf("state after wipe = %+v, want %+v", got, want)
	}
}

func TestManualSchedulerOrderAndStop(t *testing.T) {
	s := NewManualScheduler(t0)
	var order []int
	s.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	s.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	stopped := s.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	if !stopped.Stop() {
		t.Fatal("first Stop should report true")
	}
	if stopped.Stop() {
		t.Fatal("second Stop should report false")
	}

	s.Advance(5 * time.Second)
	if !reflect.DeepEqual(order, []int{1, 3}) {
		t.Fatalf("order = %v, want [1 3]", order)
	}
	if got := s.Now(); !got.Equal(t0.Add(5 * time.Second)) {
		t.Fatalf("Now = %v", got)
	}
}

func TestManualSchedulerChainedTimers(t *testing.T) {
	s := NewManualScheduler(t0)
	fired := 0
	s.AfterFunc(time.Second, func() {
		fired++
		s.AfterFunc(time.Second, func() { fired++ })
	})
	s.Advance(2 * time.Second)
	if fired != 2 {
		t.Fatalf("fired = %d, want 2", fired)
	}
}
