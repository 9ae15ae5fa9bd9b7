// Package callout picks what the player should be told about at a given
// fight time: the active callout wave, the upcoming list and the raid plan
// image on screen. Every function here is a pure query over an immutable
// plan.
package callout

import (
	"math"
	"strings"

	"github.com/large-farva/mitplan-engine/internal/jobs"
	"github.com/large-farva/mitplan-engine/internal/plan"
)

// Window bounds in seconds around an entry's timestamp.
const (
	ShowBefore = 5
	ShowAfter  = 3
)

// Options narrows the timeline to one player.
type Options struct {
	ShowOwnOnly bool
	Job         string
	Role        string
}

// Ability is one line of a callout wave.
type Ability struct {
	Job  string `json:"job"`
	Name string `json:"name"`
	Note string `json:"note,omitempty"`
}

// Result is the active callout: every entry sharing one timestamp.
type Result struct {
	Abilities   []Ability `json:"abilities"`
	Countdown   float64   `json:"countdown"`
	AbilityTime float64   `json:"abilityTime"`
	IsOverdue   bool      `json:"isOverdue"`
}

// Tier returns the urgency bucket for the result's countdown.
func (r *Result) Tier() Tier { return TierOf(r.Countdown) }

// Display returns the countdown text shown next to the callout.
func (r *Result) Display() string { return Display(r.Countdown) }

// Floor returns the whole-second countdown used for display and tiering.
func Floor(countdown float64) int {
	return int(math.Floor(countdown))
}

// InWindow reports whether an entry countdown seconds away is a callout.
// The window opens once the floored countdown reaches ShowBefore, which is
// exactly where Upcoming stops listing the entry.
func InWindow(countdown float64) bool {
	return Floor(countdown) <= ShowBefore && countdown >= -ShowAfter
}

// Matches reports whether an entry applies to the player described by opts.
// An entry with a role needs the player's role to match only when the
// player's role is known; with no role set the entry is still shown.
func (o Options) Matches(e plan.Entry) bool {
	if !o.ShowOwnOnly || o.Job == "" {
		return true
	}
	if !jobs.MatchesEntry(e.EffectiveJob(), o.Job) {
		return false
	}
	if e.Role != "" && o.Role != "" && !strings.EqualFold(e.Role, o.Role) {
		return false
	}
	return true
}

// Filter returns the plan's action entries that apply to the player, sorted
// by timestamp.
func Filter(p *plan.Plan, opts Options) []plan.Entry {
	actions := p.Actions()
	out := actions[:0]
	for _, e := range actions {
		if opts.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Select returns the active callout at fight time now, or nil. The first
// entry whose window contains now wins and all entries at its timestamp
// are grouped into the result.
func Select(p *plan.Plan, now float64, opts Options) *Result {
	return wave(Filter(p, opts), now, InWindow)
}

// Next returns the nearest wave that has not yet left its window, whether
// or not it is a callout yet. Cue tracking uses it to announce a wave
// before the callout opens.
func Next(p *plan.Plan, now float64, opts Options) *Result {
	return wave(Filter(p, opts), now, func(cd float64) bool { return cd >= -ShowAfter })
}

func wave(entries []plan.Entry, now float64, want func(countdown float64) bool) *Result {
	for i, e := range entries {
		countdown := e.Timestamp - now
		if !want(countdown) {
			continue
		}
		r := &Result{
			Countdown:   countdown,
			AbilityTime: e.Timestamp,
			IsOverdue:   countdown < 0,
		}
		for _, w := range entries[i:] {
			if w.Timestamp != e.Timestamp {
				break
			}
			r.Abilities = append(r.Abilities, Ability{Job: w.EffectiveJob(), Name: w.Ability, Note: w.Note})
		}
		return r
	}
	return nil
}

// Upcoming returns up to maxItems entries that are beyond the callout window
// but within windowSeconds of now, earliest first.
func Upcoming(p *plan.Plan, now, windowSeconds float64, maxItems int, opts Options) []plan.Entry {
	var out []plan.Entry
	for _, e := range Filter(p, opts) {
		if maxItems > 0 && len(out) == maxItems {
			break
		}
		countdown := e.Timestamp - now
		if Floor(countdown) <= ShowBefore || countdown > windowSeconds {
			continue
		}
		out = append(out, e)
	}
	return out
}
