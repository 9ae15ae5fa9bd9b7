// Package cue decides when an overlay should beep or speak. A Tracker is fed
// the nearest callout wave once per tick and emits each cue exactly once.
package cue

import (
	"fmt"
	"strconv"

	"github.com/large-farva/mitplan-engine/internal/callout"
)

// Sound types an overlay knows how to play.
const (
	SoundInfo  = "info"
	SoundAlert = "alert"
	SoundAlarm = "alarm"
)

// SoundTypes lists the accepted sound types.
var SoundTypes = []string{SoundInfo, SoundAlert, SoundAlarm}

// ValidSoundType reports whether s is a known sound type.
func ValidSoundType(s string) bool {
	for _, t := range SoundTypes {
		if t == s {
			return true
		}
	}
	return false
}

// Kind separates tones from speech.
type Kind string

const (
	KindSound Kind = "sound"
	KindSpeak Kind = "speak"
)

// Cue is one thing for the overlay to play.
type Cue struct {
	Kind        Kind    `json:"kind"`
	Sound       string  `json:"sound,omitempty"`
	Text        string  `json:"text,omitempty"`
	AbilityTime float64 `json:"abilityTime"`
}

// Options selects which cues are produced.
type Options struct {
	Sound          bool
	SoundType      string
	VoiceCountdown bool
	VoiceActions   bool
}

type voiceState struct {
	abilityTime    float64
	valid          bool
	lastCount      int
	announcedStart bool
	announcedEnd   bool
}

// Tracker remembers which cues were already emitted for the current wave.
// It is not safe for concurrent use.
type Tracker struct {
	opts Options

	soundFor   float64
	soundValid bool
	voice      voiceState
}

// NewTracker returns a tracker with the given options.
func NewTracker(opts Options) *Tracker {
	if opts.SoundType == "" {
		opts.SoundType = SoundInfo
	}
	return &Tracker{opts: opts}
}

// SetOptions replaces the options. Already emitted cues stay emitted.
func (t *Tracker) SetOptions(opts Options) {
	if opts.SoundType == "" {
		opts.SoundType = SoundInfo
	}
	t.opts = opts
}

// Options returns the active options.
func (t *Tracker) Options() Options { return t.opts }

// Reset forgets every emitted cue.
func (t *Tracker) Reset() {
	t.soundValid = false
	t.voice = voiceState{}
}

// Observe takes the nearest wave (nil when there is none) and returns the
// cues due now.
func (t *Tracker) Observe(r *callout.Result) []Cue {
	if r == nil {
		t.Reset()
		return nil
	}
	var out []Cue
	if c, ok := t.sound(r); ok {
		out = append(out, c)
	}
	return append(out, t.speech(r)...)
}

func (t *Tracker) sound(r *callout.Result) (Cue, bool) {
	if !t.opts.Sound {
		return Cue{}, false
	}
	if callout.Floor(r.Countdown) > 0 || r.Countdown <= -0.5 {
		return Cue{}, false
	}
	if t.soundValid && t.soundFor == r.AbilityTime {
		return Cue{}, false
	}
	t.soundFor, t.soundValid = r.AbilityTime, true
	return Cue{Kind: KindSound, Sound: t.opts.SoundType, AbilityTime: r.AbilityTime}, true
}

// speech announces "<action> in 5" (or "5"), counts down to 1 and names the
// action when it is due. With both voice options on, the lead-in is spoken a
// second early so it finishes before the count.
func (t *Tracker) speech(r *callout.Result) []Cue {
	countdown, actions := t.opts.VoiceCountdown, t.opts.VoiceActions
	if !countdown && !actions {
		return nil
	}
	if !t.voice.valid || t.voice.abilityTime != r.AbilityTime {
		t.voice = voiceState{abilityTime: r.AbilityTime, valid: true, lastCount: -1}
	}

	name := "Action"
	if len(r.Abilities) > 0 && r.Abilities[0].Name != "" {
		name = r.Abilities[0].Name
	}
	say := func(text string) Cue {
		return Cue{Kind: KindSpeak, Text: text, AbilityTime: r.AbilityTime}
	}

	var out []Cue
	floor := callout.Floor(r.Countdown)
	lead := callout.ShowBefore
	if countdown && actions {
		lead = callout.ShowBefore + 1
	}

	if floor == lead && !t.voice.announcedStart {
		t.voice.announcedStart = true
		t.voice.lastCount = lead
		switch {
		case countdown && actions:
			out = append(out, say(fmt.Sprintf("%s in %d", name, callout.ShowBefore)))
		case countdown:
			out = append(out, say(strconv.Itoa(lead)))
		}
	}

	if floor >= 1 && floor <= callout.ShowBefore && t.voice.lastCount != floor {
		if !(floor == callout.ShowBefore && t.voice.announcedStart) {
			t.voice.lastCount = floor
			if countdown {
				out = append(out, say(strconv.Itoa(floor)))
			}
		}
	}

	if floor <= 0 && r.Countdown > -0.5 && !t.voice.announcedEnd {
		t.voice.announcedEnd = true
		if actions {
			out = append(out, say(name))
		}
	}
	return out
}
