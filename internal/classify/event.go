// Package classify turns raw host records into the small set of semantic
// signals the combat state machine understands. The input stream is
// untrusted free-form text, so every parser here is best-effort: a record
// that cannot be understood produces no signal and never an error.
package classify

import "fmt"

// RawEvent is one record delivered by the host. The concrete types are
// LogLine, CombatStatus and ZoneChange; the set is closed.
type RawEvent interface {
	rawEvent()
}

// LogLine is a pipe-delimited game log record. Field 0 is the line type.
type LogLine struct {
	Text string
}

// CombatStatus reports the two combat flags the host tracks. InGameCombat
// comes from the game client; InHostCombat is the host tool's own parse
// state, which can lag or diverge.
type CombatStatus struct {
	InGameCombat bool
	InHostCombat bool
}

// ZoneChange reports that the player moved to another zone.
type ZoneChange struct {
	ID   int
	Name string
}

func (LogLine) rawEvent()      {}
func (CombatStatus) rawEvent() {}
func (ZoneChange) rawEvent()   {}

// Signal is the classifier output. The concrete types are EngageDetected,
// CountdownStarted, CountdownCancelled, WipeDetected, ZoneChanged and
// CombatFlagChanged; the set is closed.
type Signal interface {
	signal()
	String() string
}

// EngageDetected means the game announced the start of an encounter.
type EngageDetected struct{}

// CountdownStarted means a player started a pull countdown.
type CountdownStarted struct {
	Seconds int
	Player  string
}

// CountdownCancelled means the running countdown was aborted.
type CountdownCancelled struct{}

// WipeDetected means the party wiped or the instance was reset.
type WipeDetected struct{}

// ZoneChanged carries the new zone.
type ZoneChanged struct {
	ID   int
	Name string
}

// CombatFlagChanged carries the authoritative (in-game) combat flag.
type CombatFlagChanged struct {
	InCombat bool
}

func (EngageDetected) signal()     {}
func (CountdownStarted) signal()   {}
func (CountdownCancelled) signal() {}
func (WipeDetected) signal()       {}
func (ZoneChanged) signal()        {}
func (CombatFlagChanged) signal()  {}

func (EngageDetected) String() string { return "engage" }

func (s CountdownStarted) String() string {
	return fmt.Sprintf("countdown(%ds by %s)", s.Seconds, s.Player)
}

func (CountdownCancelled) String() string { return "countdown_cancel" }
func (WipeDetected) String() string       { return "wipe" }

func (s ZoneChanged) String() string {
	return fmt.Sprintf("zone(%d %q)", s.ID, s.Name)
}

func (s CombatFlagChanged) String() string {
	return fmt.Sprintf("combat_flag(%t)", s.InCombat)
}
