package callout

import (
	"reflect"
	"testing"

	"github.com/large-farva/mitplan-engine/internal/plan"
)

func testPlan(entries ...plan.Entry) *plan.Plan {
	return &plan.Plan{Version: "1", FightName: "Test", Timeline: entries}
}

func TestSelectWindowBoundary(t *testing.T) {
	p := testPlan(plan.Entry{Timestamp: 100, Job: "WAR", Ability: "Shake It Off"})

	tests := []struct {
		now     float64
		active  bool
		tier    Tier
		display string
	}{
		{94.0, false, TierNormal, ""},
		{95.0, true, TierNormal, "5"},
		{95.1, true, TierNormal, "4"},
		{97.5, true, TierUrgent, "2"},
		{99.5, true, TierNow, "NOW!"},
		{100.0, true, TierNow, "NOW!"},
		{103.0, true, TierNow, "NOW!"},
		{103.1, false, TierNormal, ""},
	}
	for _, tt := range tests {
		r := Select(p, tt.now, Options{})
		if (r != nil) != tt.active {
			t.Fatalf("Select at %.1f active = %v, want %v", tt.now, r != nil, tt.active)
		}
		if r == nil {
			continue
		}
		if r.Tier() != tt.tier {
			t.Errorf("tier at %.1f = %v, want %v", tt.now, r.Tier(), tt.tier)
		}
		if r.Display() != tt.display {
			t.Errorf("display at %.1f = %q, want %q", tt.now, r.Display(), tt.display)
		}
		if r.IsOverdue != (tt.now > 100) {
			t.Errorf("IsOverdue at %.1f = %v", tt.now, r.IsOverdue)
		}
	}
}

func TestSelectWaveGrouping(t *testing.T) {
	p := testPlan(
		plan.Entry{Timestamp: 80, Job: "SCH", Ability: "Expedient"},
		plan.Entry{Timestamp: 50, Job: "WAR", Ability: "Reprisal", Note: "raidwide"},
		plan.Entry{Timestamp: 50, Job: "WHM", Ability: "Temperance"},
		plan.Entry{Type: plan.EntryTypeRaidPlan, Timestamp: 50, EndTimestamp: 60, ImageURL: "x.png"},
	)
	r := Select(p, 47, Options{})
	if r == nil {
		t.Fatal("no callout at 47")
	}
	want := []Ability{
		{Job: "WAR", Name: "Reprisal", Note: "raidwide"},
		{Job: "WHM", Name: "Temperance"},
	}
	if !reflect.DeepEqual(r.Abilities, want) {
		t.Fatalf("abilities = %+v, want %+v", r.Abilities, want)
	}
	if r.AbilityTime != 50 || r.Countdown != 3 {
		t.Fatalf("time/countdown = %v/%v", r.AbilityTime, r.Countdown)
	}
}

func TestSelectEarliestWins(t *testing.T) {
	p := testPlan(
		plan.Entry{Timestamp: 12, Job: "WAR", Ability: "Second"},
		plan.Entry{Timestamp: 10, Job: "WAR", Ability: "First"},
	)
	// Both windows contain 9.5; the earlier entry is shown until it expires.
	if r := Select(p, 9.5, Options{}); r == nil || r.Abilities[0].Name != "First" {
		t.Fatalf("Select(9.5) = %+v", r)
	}
	if r := Select(p, 13.5, Options{}); r == nil || r.Abilities[0].Name != "Second" {
		t.Fatalf("Select(13.5) = %+v", r)
	}
}

func TestOptionsMatches(t *testing.T) {
	tank := plan.Entry{Timestamp: 1, Job: "Tank", Ability: "Reprisal"}
	all := plan.Entry{Timestamp: 1, Job: "All", Ability: "Sprint"}
	mt := plan.Entry{Timestamp: 1, Job: "Tank", Role: "MT", Ability: "Rampart"}
	typed := plan.Entry{Timestamp: 1, JobType: "Healer", Ability: "Temperance"}

	tests := []struct {
		name  string
		opts  Options
		entry plan.Entry
		want  bool
	}{
		{"tank type matches WAR", Options{ShowOwnOnly: true, Job: "WAR"}, tank, true},
		{"tank type skips BRD", Options{ShowOwnOnly: true, Job: "BRD"}, tank, false},
		{"All matches BRD", Options{ShowOwnOnly: true, Job: "BRD"}, all, true},
		{"filter off shows everything", Options{Job: "BRD"}, tank, true},
		{"no job yet shows everything", Options{ShowOwnOnly: true}, tank, true},
		{"role matches", Options{ShowOwnOnly: true, Job: "PLD", Role: "MT"}, mt, true},
		{"role mismatch", Options{ShowOwnOnly: true, Job: "PLD", Role: "OT"}, mt, false},
		// Entries with a role stay visible while the player's role is unset.
		{"role unknown is lenient", Options{ShowOwnOnly: true, Job: "PLD"}, mt, true},
		{"job type field", Options{ShowOwnOnly: true, Job: "WHM"}, typed, true},
		{"job code case", Options{ShowOwnOnly: true, Job: "war"}, plan.Entry{Job: "WAR", Ability: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.Matches(tt.entry); got != tt.want {
				t.Fatalf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectFiltersByPlayer(t *testing.T) {
	p := testPlan(
		plan.Entry{Timestamp: 20, Job: "Tank", Role: "MT", Ability: "Rampart"},
		plan.Entry{Timestamp: 20, Job: "Tank", Role: "OT", Ability: "Reprisal"},
		plan.Entry{Timestamp: 20, Job: "BRD", Ability: "Troubadour"},
	)
	r := Select(p, 18, Options{ShowOwnOnly: true, Job: "GNB", Role: "OT"})
	if r == nil || len(r.Abilities) != 1 || r.Abilities[0].Name != "Reprisal" {
		t.Fatalf("OT callout = %+v", r)
	}
	r = Select(p, 18, Options{ShowOwnOnly: true, Job: "GNB"})
	if r == nil || len(r.Abilities) != 2 {
		t.Fatalf("tank without role = %+v", r)
	}
}

func TestUpcoming(t *testing.T) {
	p := testPlan(
		plan.Entry{Timestamp: 10, Job: "WAR", Ability: "a"},
		plan.Entry{Timestamp: 20, Job: "WAR", Ability: "b"},
		plan.Entry{Timestamp: 30, Job: "WAR", Ability: "c"},
		plan.Entry{Timestamp: 40, Job: "WAR", Ability: "d"},
		plan.Entry{Timestamp: 80, Job: "WAR", Ability: "e"},
	)
	got := Upcoming(p, 4, 30, 2, Options{})
	if len(got) != 2 || got[0].Ability != "a" || got[1].Ability != "b" {
		t.Fatalf("Upcoming(4) = %+v", got)
	}
	got = Upcoming(p, 4.5, 30, 10, Options{})
	names := []string{}
	for _, e := range got {
		names = append(names, e.Ability)
	}
	// 10 is 5.5s away: floor 5 belongs to the callout.
	if !reflect.DeepEqual(names, []string{"b", "c"}) {
		t.Fatalf("Upcoming(4.5) = %v", names)
	}
}

func TestUpcomingAndCalloutPartition(t *testing.T) {
	p := testPlan(plan.Entry{Timestamp: 100, Job: "WAR", Ability: "x"})
	for now := 80.0; now <= 104; now += 0.05 {
		inCallout := Select(p, now, Options{}) != nil
		inUpcoming := len(Upcoming(p, now, 30, 5, Options{})) == 1
		countdown := 100 - now
		if inCallout && inUpcoming {
			t.Fatalf("at %.2f entry is in both lists", now)
		}
		if countdown >= -ShowAfter && countdown <= 30 && !inCallout && !inUpcoming {
			t.Fatalf("at %.2f entry is in neither list", now)
		}
	}
}

func TestNext(t *testing.T) {
	p := testPlan(
		plan.Entry{Timestamp: 10, Job: "WAR", Ability: "a"},
		plan.Entry{Timestamp: 30, Job: "WAR", Ability: "b"},
	)
	if r := Next(p, 0, Options{}); r == nil || r.AbilityTime != 10 {
		t.Fatalf("Next(0) = %+v", r)
	}
	if r := Next(p, 13.5, Options{}); r == nil || r.AbilityTime != 30 {
		t.Fatalf("Next(13.5) = %+v", r)
	}
	if r := Next(p, 40, Options{}); r != nil {
		t.Fatalf("Next(40) = %+v", r)
	}
	if Next(nil, 0, Options{}) != nil || Select(nil, 0, Options{}) != nil {
		t.Fatal("nil plan should give nil")
	}
}

func TestActiveRaidPlan(t *testing.T) {
	p := testPlan(
		plan.Entry{Type: plan.EntryTypeRaidPlan, Timestamp: 10, EndTimestamp: 20, ImageURL: "all.png", Note: "everyone"},
		plan.Entry{Type: plan.EntryTypeRaidPlan, Timestamp: 30, EndTimestamp: 40, ImageURL: "tank.png", RoleFilters: []string{"Tank"}},
		plan.Entry{Type: plan.EntryTypeRaidPlan, Timestamp: 30, EndTimestamp: 40, ImageURL: "ranged.png", RoleFilters: []string{"PhysRanged", "MagicRanged"}},
		plan.Entry{Type: plan.EntryTypeRaidPlan, Timestamp: 50, EndTimestamp: 60, ImageURL: "sch.png", RoleFilters: []string{"SCH"}},
	)

	rp := ActiveRaidPlan(p, 15, "")
	if rp == nil || rp.ImageURL != "all.png" || rp.TimeRemaining != 5 {
		t.Fatalf("at 15 = %+v", rp)
	}
	if rp := ActiveRaidPlan(p, 20, "WAR"); rp != nil {
		t.Fatalf("end is exclusive, got %+v", rp)
	}
	if rp := ActiveRaidPlan(p, 35, "WAR"); rp == nil || rp.ImageURL != "tank.png" {
		t.Fatalf("WAR at 35 = %+v", rp)
	}
	if rp := ActiveRaidPlan(p, 35, "BLM"); rp == nil || rp.ImageURL != "ranged.png" {
		t.Fatalf("BLM at 35 = %+v", rp)
	}
	if rp := ActiveRaidPlan(p, 35, "WHM"); rp != nil {
		t.Fatalf("WHM at 35 = %+v", rp)
	}
	if rp := ActiveRaidPlan(p, 35, ""); rp != nil {
		t.Fatalf("no job at 35 = %+v", rp)
	}
	if rp := ActiveRaidPlan(p, 55, "SCH"); rp == nil || rp.ImageURL != "sch.png" {
		t.Fatalf("SCH at 55 = %+v", rp)
	}
}

func TestTierStrings(t *testing.T) {
	for tier, want := range map[Tier]string{TierNow: "now", TierUrgent: "urgent", TierNormal: "normal"} {
		if tier.String() != want {
			t.Errorf("%d.String() = %q, want %q", tier, tier.String(), want)
		}
	}
	if Display(-2.5) != "NOW!" || Display(3.99) != "3" {
		t.Fatal("Display mismatch")
	}
}
