package jobs

import (
	"reflect"
	"testing"
)

func TestMatchesEntry(t *testing.T) {
	tests := []struct {
		entry, player string
		want          bool
	}{
		{"Tank", "WAR", true},
		{"Tank", "BRD", false},
		{"tank", "war", true},
		{"All", "BRD", true},
		{"All", "", true},
		{"WAR", "WAR", true},
		{"war", "WAR", true},
		{"WAR", "PLD", false},
		{"PhysRanged", "BRD", true},
		{"MagicRanged", "BRD", false},
		{"Healer", "SGE", true},
		{"Melee", "VPR", true},
		{"Tank", "", false},
		{"", "WAR", false},
		{"Caster", "BLM", false},
	}
	for _, tt := range tests {
		if got := MatchesEntry(tt.entry, tt.player); got != tt.want {
			t.Errorf("MatchesEntry(%q, %q) = %v, want %v", tt.entry, tt.player, got, tt.want)
		}
	}
}

func TestRosterConsistency(t *testing.T) {
	for _, jt := range Types() {
		for _, code := range jt.Jobs {
			j, ok := Lookup(code)
			if !ok {
				t.Fatalf("%s lists unknown job %s", jt.Key, code)
			}
			if j.Type != jt.Key || j.Role != jt.Role {
				t.Fatalf("%s: type/role %s/%s disagree with %s/%s", code, j.Type, j.Role, jt.Key, jt.Role)
			}
		}
	}
	if n := len(Codes()); n != 21 {
		t.Fatalf("roster has %d jobs, want 21", n)
	}
}

func TestNameFromID(t *testing.T) {
	cases := map[int]string{0: "", 19: "PLD", 21: "WAR", 36: "BLU", 42: "PCT", 26: "ACN", 99: ""}
	for id, want := range cases {
		if got := NameFromID(id); got != want {
			t.Errorf("NameFromID(%d) = %q, want %q", id, got, want)
		}
	}
}

func TestRoleOptions(t *testing.T) {
	if got := RoleOptions("gnb"); !reflect.DeepEqual(got, []string{"MT", "OT"}) {
		t.Fatalf("RoleOptions(gnb) = %v", got)
	}
	if got := RoleOptions("DNC"); !reflect.DeepEqual(got, []string{"D3"}) {
		t.Fatalf("RoleOptions(DNC) = %v", got)
	}
	if got := RoleOptions("BLU"); got != nil {
		t.Fatalf("RoleOptions(BLU) = %v, want nil", got)
	}

	if !RequiresRoleSelection("SCH") || RequiresRoleSelection("PCT") {
		t.Fatal("RequiresRoleSelection wrong for SCH/PCT")
	}
}

func TestRoleValidForJob(t *testing.T) {
	tests := []struct {
		role, job string
		want      bool
	}{
		{"", "", true},
		{"", "RDM", true},
		{"D4", "RDM", true},
		{"", "WAR", false},
		{"OT", "WAR", true},
		{"H1", "WAR", false},
		{"", "BLU", true},
	}
	for _, tt := range tests {
		if got := RoleValidForJob(tt.role, tt.job); got != tt.want {
			t.Errorf("RoleValidForJob(%q, %q) = %v, want %v", tt.role, tt.job, got, tt.want)
		}
	}
}

func TestKnown(t *testing.T) {
	for _, s := range []string{"WAR", "tank", "All", "MagicRanged"} {
		if !Known(s) {
			t.Errorf("Known(%q) = false", s)
		}
	}
	for _, s := range []string{"BLU", "XYZ", ""} {
		if Known(s) {
			t.Errorf("Known(%q) = true", s)
		}
	}
	if RoleOf("sge") != Healer || RoleOf("nope") != Unknown {
		t.Fatal("RoleOf mismatch")
	}
}
