package classify

import (
	"reflect"
	"testing"
)

func TestClassifyLogLines(t *testing.T) {
	c := New(DefaultCodes())

	tests := []struct {
		name string
		line string
		want Signal // nil means no signal
	}{
		{"countdown ok", "268|ts|hex|world|5|00|Alice|hash", CountdownStarted{Seconds: 5, Player: "Alice"}},
		{"countdown 15s", "268|2026-03-01T20:00:00.000+00:00|10FF0001|4F|15|00|Bob Smith|abc", CountdownStarted{Seconds: 15, Player: "Bob Smith"}},
		{"countdown failed result", "268|ts|hex|world|5|01|Alice|hash", nil},
		{"countdown too short", "268|ts|hex|world|5|00", nil},
		{"countdown bad seconds", "268|ts|hex|world|five|00|Alice|hash", nil},
		{"countdown negative seconds", "268|ts|hex|world|-3|00|Alice|hash", nil},
		{"countdown exactly seven fields", "268|ts|hex|world|10|00|Carol", CountdownStarted{Seconds: 10, Player: "Carol"}},
		{"cancel", "269|ts|hex|world|Alice|hash", CountdownCancelled{}},
		{"cancel bare", "269", CountdownCancelled{}},
		{"engage en", "00|ts|0039||Engage!|hash", EngageDetected{}},
		{"engage ja", "00|ts|0039||戦闘開始！|hash", EngageDetected{}},
		{"engage de", "00|ts|0039||Start!|hash", EngageDetected{}},
		{"engage fr", "00|ts|0039||À l'attaque !|hash", EngageDetected{}},
		{"engage cn", "00|ts|0039||战斗开始！|hash", EngageDetected{}},
		{"engage ko", "00|ts|0039||전투 시작!|hash", EngageDetected{}},
		{"engage gibberish", "00|ts|0039||gibberish|hash", nil},
		{"engage wrong code", "00|ts|0044||Engage!|hash", nil},
		{"engage short", "00|ts|0039", nil},
		{"wipe actor control v1", "33|ts|8003757F|40000010|00|00|00|00", WipeDetected{}},
		{"wipe actor control 80000004", "33|ts|8003757F|80000004|00|00|00|00", WipeDetected{}},
		{"wipe actor control lower case", "33|ts|8003757F|4000001a|00|00|00|00", nil},
		{"wipe actor control lower hex", "33|ts|8003757f|40000001|00|00|00|00", WipeDetected{}},
		{"actor control other command", "33|ts|8003757F|40000012|00|00|00|00", nil},
		{"actor control short", "33|ts|8003757F", nil},
		{"wipe echo", "00|ts|0038||wipe|hash", WipeDetected{}},
		{"wipe echo cactbot", "00|ts|0038||Cactbot WIPE|hash", WipeDetected{}},
		{"echo without wipe", "00|ts|0038||hello|hash", nil},
		{"wipe text on say channel", "00|ts|000A|Alice|wipe|hash", nil},
		{"empty", "", nil},
		{"garbage", "not a log line at all", nil},
		{"unknown type", "21|ts|10FF0001|Alice|1D6C|Reprisal", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Classify(LogLine{Text: tt.line})
			if tt.want == nil {
				if ok {
					t.Fatalf("Classify(%q) = %v, want no signal", tt.line, got)
				}
				return
			}
			if !ok {
				t.Fatalf("Classify(%q) returned no signal, want %v", tt.line, tt.want)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Classify(%q) = %#v, want %#v", tt.line, got, tt.want)
			}
		})
	}
}

func TestClassifyCombatStatusUsesInGameFlag(t *testing.T) {
	c := New(DefaultCodes())

	cases := []struct {
		ev   CombatStatus
		want bool
	}{
		{CombatStatus{InGameCombat: true, InHostCombat: false}, true},
		{CombatStatus{InGameCombat: false, InHostCombat: true}, false},
		{CombatStatus{InGameCombat: true, InHostCombat: true}, true},
		{CombatStatus{}, false},
	}
	for _, tc := range cases {
		sig, ok := c.Classify(tc.ev)
		if !ok {
			t.Fatalf("Classify(%+v) returned no signal", tc.ev)
		}
		flag, isFlag := sig.(CombatFlagChanged)
		if !isFlag || flag.InCombat != tc.want {
			t.Fatalf("Classify(%+v) = %#v, want CombatFlagChanged{%t}", tc.ev, sig, tc.want)
		}
	}
}

func TestClassifyZoneChange(t *testing.T) {
	c := New(DefaultCodes())
	sig, ok := c.Classify(ZoneChange{ID: 1327, Name: "AAC Heavyweight M4 (Savage)"})
	if !ok {
		t.Fatal("expected a signal")
	}
	want := ZoneChanged{ID: 1327, Name: "AAC Heavyweight M4 (Savage)"}
	if sig != want {
		t.Fatalf("got %#v, want %#v", sig, want)
	}
}

func TestClassifyNilEvent(t *testing.T) {
	c := New(DefaultCodes())
	if sig, ok := c.Classify(nil); ok {
		t.Fatalf("Classify(nil) = %v", sig)
	}
}

func TestWipeProfileV2(t *testing.T) {
	codes, err := NewCodes("v2", nil, nil)
	if err != nil {
		t.Fatalf("NewCodes: %v", err)
	}
	c := New(codes)

	if _, ok := c.Classify(LogLine{Text: "33|ts|8003757F|4000000f|00|00|00|00"}); !ok {
		t.Fatal("v2 should treat 4000000F as a wipe (case-insensitive)")
	}
	if _, ok := c.Classify(LogLine{Text: "33|ts|8003757F|80000004|00|00|00|00"}); ok {
		t.Fatal("v2 should not contain 80000004")
	}
}

func TestExtraWipeCommandsExtendProfile(t *testing.T) {
	codes, err := NewCodes("v1", []string{" 4000000f "}, nil)
	if err != nil {
		t.Fatalf("NewCodes: %v", err)
	}
	c := New(codes)
	for _, cmd := range []string{"40000010", "4000000F"} {
		if _, ok := c.Classify(LogLine{Text: "33|ts|id|" + cmd + "|0|0|0|0"}); !ok {
			t.Fatalf("command %s should be a wipe", cmd)
		}
	}
}

func TestNewCodesErrors(t *testing.T) {
	if _, err := NewCodes("v9", nil, nil); err == nil {
		t.Fatal("expected error for unknown profile")
	}
	if _, err := NewCodes("v1", nil, []string{"("}); err == nil {
		t.Fatal("expected error for bad engage pattern")
	}
}

func TestExtraEngagePattern(t *testing.T) {
	codes, err := NewCodes("", nil, []string{`Engagez!`})
	if err != nil {
		t.Fatalf("NewCodes: %v", err)
	}
	c := New(codes)
	if _, ok := c.Classify(LogLine{Text: "00|ts|0039||Engagez!|h"}); !ok {
		t.Fatal("extra engage pattern did not match")
	}
}

func TestParseCountdownRejectsOtherLineTypes(t *testing.T) {
	if _, ok := ParseCountdown([]string{"269", "ts", "hex", "world", "5", "00", "Alice"}); ok {
		t.Fatal("ParseCountdown accepted a cancel line")
	}
}

func TestSignalStrings(t *testing.T) {
	cases := map[Signal]string{
		EngageDetected{}:                          "engage",
		CountdownStarted{Seconds: 5, Player: "A"}: "countdown(5s by A)",
		CountdownCancelled{}:                      "countdown_cancel",
		WipeDetected{}:                            "wipe",
		CombatFlagChanged{InCombat: true}:         "combat_flag(true)",
	}
	for sig, want := range cases {
		if got := sig.String(); got != want {
			t.Errorf("%#v.String() = %q, want %q", sig, got, want)
		}
	}
}
