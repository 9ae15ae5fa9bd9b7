// Package jobs holds the static combat job roster: codes, roles, job types,
// the numeric ids the host reports, and the raid position slots each job can
// fill.
package jobs

import (
	"sort"
	"strings"
)

// Role is the party role of a job.
type Role string

const (
	Tank    Role = "tank"
	Healer  Role = "healer"
	DPS     Role = "dps"
	Unknown Role = "unknown"
)

// All is the entry sentinel that matches every player.
const All = "All"

// Job describes one combat job.
type Job struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Role Role   `json:"role"`
	Type string `json:"type"`
}

// JobType is a broad category that plans may use in place of a job code.
type JobType struct {
	Key  string   `json:"key"`
	Name string   `json:"name"`
	Role Role     `json:"role"`
	Jobs []string `json:"jobs"`
}

// Job type keys.
const (
	TypeTank        = "Tank"
	TypeHealer      = "Healer"
	TypeMelee       = "Melee"
	TypePhysRanged  = "PhysRanged"
	TypeMagicRanged = "MagicRanged"
)

var jobTypes = []JobType{
	{Key: TypeTank, Name: "Tank", Role: Tank, Jobs: []string{"PLD", "WAR", "DRK", "GNB"}},
	{Key: TypeHealer, Name: "Healer", Role: Healer, Jobs: []string{"WHM", "SCH", "AST", "SGE"}},
	{Key: TypeMelee, Name: "Melee", Role: DPS, Jobs: []string{"MNK", "DRG", "NIN", "SAM", "RPR", "VPR"}},
	{Key: TypePhysRanged, Name: "Phys Ranged", Role: DPS, Jobs: []string{"BRD", "MCH", "DNC"}},
	{Key: TypeMagicRanged, Name: "Magic Ranged", Role: DPS, Jobs: []string{"BLM", "SMN", "RDM", "PCT"}},
}

var roster = map[string]Job{
	"PLD": {Code: "PLD", Name: "Paladin", Role: Tank, Type: TypeTank},
	"WAR": {Code: "WAR", Name: "Warrior", Role: Tank, Type: TypeTank},
	"DRK": {Code: "DRK", Name: "Dark Knight", Role: Tank, Type: TypeTank},
	"GNB": {Code: "GNB", Name: "Gunbreaker", Role: Tank, Type: TypeTank},

	"WHM": {Code: "WHM", Name: "White Mage", Role: Healer, Type: TypeHealer},
	"SCH": {Code: "SCH", Name: "Scholar", Role: Healer, Type: TypeHealer},
	"AST": {Code: "AST", Name: "Astrologian", Role: Healer, Type: TypeHealer},
	"SGE": {Code: "SGE", Name: "Sage", Role: Healer, Type: TypeHealer},

	"MNK": {Code: "MNK", Name: "Monk", Role: DPS, Type: TypeMelee},
	"DRG": {Code: "DRG", Name: "Dragoon", Role: DPS, Type: TypeMelee},
	"NIN": {Code: "NIN", Name: "Ninja", Role: DPS, Type: TypeMelee},
	"SAM": {Code: "SAM", Name: "Samurai", Role: DPS, Type: TypeMelee},
	"RPR": {Code: "RPR", Name: "Reaper", Role: DPS, Type: TypeMelee},
	"VPR": {Code: "VPR", Name: "Viper", Role: DPS, Type: TypeMelee},

	"BRD": {Code: "BRD", Name: "Bard", Role: DPS, Type: TypePhysRanged},
	"MCH": {Code: "MCH", Name: "Machinist", Role: DPS, Type: TypePhysRanged},
	"DNC": {Code: "DNC", Name: "Dancer", Role: DPS, Type: TypePhysRanged},

	"BLM": {Code: "BLM", Name: "Black Mage", Role: DPS, Type: TypeMagicRanged},
	"SMN": {Code: "SMN", Name: "Summoner", Role: DPS, Type: TypeMagicRanged},
	"RDM": {Code: "RDM", Name: "Red Mage", Role: DPS, Type: TypeMagicRanged},
	"PCT": {Code: "PCT", Name: "Pictomancer", Role: DPS, Type: TypeMagicRanged},
}

// Host job ids. Base classes and crafters are listed so a lookup never
// misreports them as unknown, but they carry no roster entry.
var idToCode = map[int]string{
	1: "GLA", 2: "PGL", 3: "MRD", 4: "LNC", 5: "ARC", 6: "CNJ", 7: "THM",
	8: "CRP", 9: "BSM", 10: "ARM", 11: "GSM", 12: "LTW", 13: "WVR", 14: "ALC",
	15: "CUL", 16: "MIN", 17: "BTN", 18: "FSH",
	19: "PLD", 20: "MNK", 21: "WAR", 22: "DRG", 23: "BRD", 24: "WHM", 25: "BLM",
	26: "ACN", 27: "SMN", 28: "SCH", 29: "ROG", 30: "NIN", 31: "MCH", 32: "DRK",
	33: "AST", 34: "SAM", 35: "RDM", 36: "BLU", 37: "GNB", 38: "DNC", 39: "RPR",
	40: "SGE", 41: "VPR", 42: "PCT",
}

// Lookup returns the roster entry for a job code, case-insensitively.
func Lookup(code string) (Job, bool) {
	j, ok := roster[strings.ToUpper(strings.TrimSpace(code))]
	return j, ok
}

// Codes returns every roster job code, sorted.
func Codes() []string {
	out := make([]string, 0, len(roster))
	for c := range roster {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Types returns the job types in display order.
func Types() []JobType {
	out := make([]JobType, len(jobTypes))
	copy(out, jobTypes)
	return out
}

// LookupType resolves a job type key, case-insensitively.
func LookupType(key string) (JobType, bool) {
	for _, t := range jobTypes {
		if strings.EqualFold(t.Key, key) {
			return t, true
		}
	}
	return JobType{}, false
}

// IsType reports whether s names a job type rather than a job.
func IsType(s string) bool {
	_, ok := LookupType(s)
	return ok
}

// Known reports whether s is a roster job, a job type, or the All sentinel.
func Known(s string) bool {
	if strings.EqualFold(s, All) || IsType(s) {
		return true
	}
	_, ok := Lookup(s)
	return ok
}

// RoleOf returns the role of a job code, or Unknown.
func RoleOf(code string) Role {
	if j, ok := Lookup(code); ok {
		return j.Role
	}
	return Unknown
}

// TypeOf returns the job type key of a job code, or "".
func TypeOf(code string) string {
	if j, ok := Lookup(code); ok {
		return j.Type
	}
	return ""
}

// NameFromID converts a host numeric job id to its code. Unknown ids and 0
// return "".
func NameFromID(id int) string {
	return idToCode[id]
}

// MatchesEntry reports whether a plan entry's job field applies to a player
// on playerJob. The entry may carry a job code, a job type, or All.
func MatchesEntry(entryJob, playerJob string) bool {
	if entryJob == "" {
		return false
	}
	if strings.EqualFold(entryJob, All) {
		return true
	}
	if playerJob == "" {
		return false
	}
	if strings.EqualFold(entryJob, playerJob) {
		return true
	}
	t, ok := LookupType(entryJob)
	if !ok {
		return false
	}
	player := strings.ToUpper(playerJob)
	for _, j := range t.Jobs {
		if j == player {
			return true
		}
	}
	return false
}

// Raid position slots.
var (
	tankSlots   = []string{"MT", "OT"}
	meleeSlots  = []string{"M1", "M2"}
	rangedSlots = []string{"D3"}
	casterSlots = []string{"D4"}
	healerSlots = []string{"H1", "H2"}
)

// RoleOptions returns the raid position slots a job can fill.
func RoleOptions(code string) []string {
	var slots []string
	switch TypeOf(code) {
	case TypeTank:
		slots = tankSlots
	case TypeMelee:
		slots = meleeSlots
	case TypePhysRanged:
		slots = rangedSlots
	case TypeMagicRanged:
		slots = casterSlots
	case TypeHealer:
		slots = healerSlots
	default:
		return nil
	}
	return append([]string(nil), slots...)
}

// RequiresRoleSelection reports whether the job has more than one slot to
// choose from.
func RequiresRoleSelection(code string) bool {
	return len(RoleOptions(code)) > 1
}

// RoleValidForJob reports whether role is an acceptable slot for job. A job
// with at most one slot accepts anything, including no role.
func RoleValidForJob(role, code string) bool {
	if code == "" {
		return true
	}
	opts := RoleOptions(code)
	if len(opts) <= 1 {
		return true
	}
	if role == "" {
		return false
	}
	for _, o := range opts {
		if o == role {
			return true
		}
	}
	return false
}
