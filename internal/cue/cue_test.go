package cue

import (
	"reflect"
	"testing"

	"github.com/large-farva/mitplan-engine/internal/callout"
)

func wave(at, now float64, name string) *callout.Result {
	cd := at - now
	return &callout.Result{
		Abilities:   []callout.Ability{{Job: "WAR", Name: name}},
		Countdown:   cd,
		AbilityTime: at,
		IsOverdue:   cd < 0,
	}
}

// run feeds one wave at ability time 100 through ticks from 92 to 103 and
// collects every spoken text and every sound.
func run(t *testing.T, tr *Tracker) (spoken []string, sounds int) {
	t.Helper()
	for now := 92.0; now <= 103.0; now += 0.1 {
		for _, c := range tr.Observe(wave(100, now, "Reprisal")) {
			switch c.Kind {
			case KindSpeak:
				spoken = append(spoken, c.Text)
			case KindSound:
				sounds++
			}
		}
	}
	return spoken, sounds
}

func TestVoiceSequences(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"countdown and actions", Options{VoiceCountdown: true, VoiceActions: true},
			[]string{"Reprisal in 5", "4", "3", "2", "1", "Reprisal"}},
		{"countdown only", Options{VoiceCountdown: true},
			[]string{"5", "4", "3", "2", "1"}},
		{"actions only", Options{VoiceActions: true},
			[]string{"Reprisal"}},
		{"voice off", Options{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := run(t, NewTracker(tt.opts))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("spoken = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSoundOncePerAbilityTime(t *testing.T) {
	tr := NewTracker(Options{Sound: true})
	_, sounds := run(t, tr)
	if sounds != 1 {
		t.Fatalf("sounds = %d, want 1", sounds)
	}

	cues := tr.Observe(wave(120, 119.8, "Next"))
	if len(cues) != 1 || cues[0].Kind != KindSound || cues[0].Sound != SoundInfo {
		t.Fatalf("next wave cues = %+v", cues)
	}
}

func TestSoundSkippedWhenLate(t *testing.T) {
	tr := NewTracker(Options{Sound: true, SoundType: SoundAlarm})
	// First observation is already half a second past the action.
	if cues := tr.Observe(wave(100, 100.6, "x")); len(cues) != 0 {
		t.Fatalf("late cues = %+v", cues)
	}
	if cues := tr.Observe(wave(200, 199.9, "y")); len(cues) != 1 || cues[0].Sound != SoundAlarm {
		t.Fatalf("cues = %+v", cues)
	}
}

func TestResetOnClear(t *testing.T) {
	tr := NewTracker(Options{Sound: true, VoiceActions: true})
	if cues := tr.Observe(wave(10, 10, "Rampart")); len(cues) != 2 {
		t.Fatalf("cues = %+v", cues)
	}
	if cues := tr.Observe(wave(10, 10.1, "Rampart")); len(cues) != 0 {
		t.Fatalf("repeat cues = %+v", cues)
	}
	// A cleared callout (clock reset) lets the same ability time cue again.
	tr.Observe(nil)
	if cues := tr.Observe(wave(10, 10, "Rampart")); len(cues) != 2 {
		t.Fatalf("after reset cues = %+v", cues)
	}
}

func TestValidSoundType(t *testing.T) {
	if !ValidSoundType("alert") || ValidSoundType("boing") {
		t.Fatal("ValidSoundType mismatch")
	}
}
