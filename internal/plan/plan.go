// Package plan defines raid mitigation plans and everything needed to get
// them off disk: the base64 share codec, JSON/YAML/text loaders, validation,
// a directory catalog with hot reload, and the zone to fight mapping used to
// pick a plan automatically.
package plan

import (
	"sort"
	"strings"
)

// EntryTypeRaidPlan marks a timeline entry that shows a strategy image over a
// time range instead of calling an action.
const EntryTypeRaidPlan = "raidplan"

// Plan is one fight's timeline. Treat a loaded plan as immutable; helpers
// that need a different order return copies.
type Plan struct {
	ID            string  `json:"id,omitempty"            yaml:"id,omitempty"`
	Name          string  `json:"name,omitempty"          yaml:"name,omitempty"`
	FightName     string  `json:"fightName,omitempty"     yaml:"fightName,omitempty"`
	Version       string  `json:"version"                 yaml:"version"`
	RequiresRoles bool    `json:"requiresRoles,omitempty" yaml:"requiresRoles,omitempty"`
	IsDefault     bool    `json:"isDefault,omitempty"     yaml:"isDefault,omitempty"`
	Timeline      []Entry `json:"timeline"                yaml:"timeline"`
}

// Entry is a single timeline row. Action entries use Job (or JobType),
// Ability and optionally Role. Raid plan entries use EndTimestamp, ImageURL
// and RoleFilters.
type Entry struct {
	Type         string   `json:"type,omitempty"         yaml:"type,omitempty"`
	Timestamp    float64  `json:"timestamp"              yaml:"timestamp"`
	EndTimestamp float64  `json:"endTimestamp,omitempty" yaml:"endTimestamp,omitempty"`
	Job          string   `json:"job,omitempty"          yaml:"job,omitempty"`
	JobType      string   `json:"jobType,omitempty"      yaml:"jobType,omitempty"`
	Ability      string   `json:"ability,omitempty"      yaml:"ability,omitempty"`
	Note         string   `json:"note,omitempty"         yaml:"note,omitempty"`
	Role         string   `json:"role,omitempty"         yaml:"role,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"     yaml:"imageUrl,omitempty"`
	RoleFilters  []string `json:"roleFilters,omitempty"  yaml:"roleFilters,omitempty"`
}

// IsRaidPlan reports whether e is an image entry.
func (e Entry) IsRaidPlan() bool {
	return strings.EqualFold(e.Type, EntryTypeRaidPlan)
}

// EffectiveJob returns the job code or job type the entry targets.
func (e Entry) EffectiveJob() string {
	if e.Job != "" {
		return e.Job
	}
	return e.JobType
}

// Actions returns the action entries sorted by timestamp. The sort is stable
// so entries sharing a timestamp keep their file order.
func (p *Plan) Actions() []Entry {
	if p == nil {
		return nil
	}
	out := make([]Entry, 0, len(p.Timeline))
	for _, e := range p.Timeline {
		if !e.IsRaidPlan() {
			out = append(out, e)
		}
	}
	SortByTimestamp(out)
	return out
}

// RaidPlans returns the image entries in file order.
func (p *Plan) RaidPlans() []Entry {
	if p == nil {
		return nil
	}
	var out []Entry
	for _, e := range p.Timeline {
		if e.IsRaidPlan() {
			out = append(out, e)
		}
	}
	return out
}

// DisplayName is the name shown in listings.
func (p *Plan) DisplayName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.FightName != "":
		return p.FightName
	}
	return "Unnamed Plan"
}

// SortByTimestamp sorts entries in place, stable on ties.
func SortByTimestamp(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})
}
