package plan

import "sort"

// DefaultZones maps host zone names to fight names for the supported raid
// tiers. Configuration can add to or override these.
var DefaultZones = map[string]string{
	"Asphodelos: The First Circle (Savage)": "P1S",

	"AAC Light-heavyweight M1 (Savage)": "M1S",
	"AAC Light-heavyweight M2 (Savage)": "M2S",
	"AAC Light-heavyweight M3 (Savage)": "M3S",
	"AAC Light-heavyweight M4 (Savage)": "M4S",

	"AAC Cruiserweight M1 (Savage)": "M5S",
	"AAC Cruiserweight M2 (Savage)": "M6S",
	"AAC Cruiserweight M3 (Savage)": "M7S",
	"AAC Cruiserweight M4 (Savage)": "M8S",

	"AAC Heavyweight M1 (Savage)": "M9S",
	"AAC Heavyweight M2 (Savage)": "M10S",
	"AAC Heavyweight M3 (Savage)": "M11S",
	// Both phases share one zone; the first phase is the default.
	"AAC Heavyweight M4 (Savage)": "M12S P1",
}

// Zones resolves zone names to fight names.
type Zones struct {
	toFight map[string]string
	toZones map[string][]string
}

// NewZones returns the default table with extra entries layered on top.
func NewZones(extra map[string]string) *Zones {
	z := &Zones{toFight: make(map[string]string, len(DefaultZones)+len(extra))}
	for zone, fight := range DefaultZones {
		z.toFight[zone] = fight
	}
	for zone, fight := range extra {
		z.toFight[zone] = fight
	}
	z.toZones = make(map[string][]string)
	for zone, fight := range z.toFight {
		z.toZones[fight] = append(z.toZones[fight], zone)
	}
	for _, zs := range z.toZones {
		sort.Strings(zs)
	}
	return z
}

// FightFor returns the fight name for a zone, or "".
func (z *Zones) FightFor(zone string) string {
	return z.toFight[zone]
}

// ZonesFor returns every zone mapped to fight.
func (z *Zones) ZonesFor(fight string) []string {
	return append([]string(nil), z.toZones[fight]...)
}

// IsRaidZone reports whether zone maps to a fight.
func (z *Zones) IsRaidZone(zone string) bool {
	_, ok := z.toFight[zone]
	return ok
}

// Fights returns the distinct fight names, sorted.
func (z *Zones) Fights() []string {
	out := make([]string, 0, len(z.toZones))
	for f := range z.toZones {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
