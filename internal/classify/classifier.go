package classify

import (
	"strconv"
	"strings"
)

// Classifier maps raw events to signals using a fixed set of Codes. It holds
// no per-event state and is safe to share.
type Classifier struct {
	codes Codes
}

// New returns a classifier matching against codes.
func New(codes Codes) *Classifier {
	return &Classifier{codes: codes}
}

// Classify returns the signal carried by ev, if any.
func (c *Classifier) Classify(ev RawEvent) (Signal, bool) {
	switch ev := ev.(type) {
	case LogLine:
		return c.classifyLine(ev.Text)
	case CombatStatus:
		// The in-game flag drives transitions; the host flag can lag.
		return CombatFlagChanged{InCombat: ev.InGameCombat}, true
	case ZoneChange:
		return ZoneChanged{ID: ev.ID, Name: ev.Name}, true
	}
	return nil, false
}

func (c *Classifier) classifyLine(line string) (Signal, bool) {
	if line == "" {
		return nil, false
	}
	fields := strings.Split(line, "|")

	switch fields[0] {
	case LineCountdown:
		if cd, ok := ParseCountdown(fields); ok {
			return cd, true
		}
		return nil, false
	case LineCountdownCancel:
		return CountdownCancelled{}, true
	}

	if c.isEngage(fields) {
		return EngageDetected{}, true
	}
	if c.isWipe(fields) {
		return WipeDetected{}, true
	}
	return nil, false
}

// ParseCountdown parses a split countdown record:
//
//	268|timestamp|playerHexId|worldId|seconds|result|playerName|hash
//
// Only result code 00 (success) yields a signal.
func ParseCountdown(fields []string) (CountdownStarted, bool) {
	if len(fields) < 7 || fields[0] != LineCountdown {
		return CountdownStarted{}, false
	}
	secs, err := strconv.Atoi(strings.TrimSpace(fields[4]))
	if err != nil || secs < 0 {
		return CountdownStarted{}, false
	}
	if fields[5] != countdownSuccess {
		return CountdownStarted{}, false
	}
	return CountdownStarted{Seconds: secs, Player: fields[6]}, true
}

// isEngage matches a system message with the engage code against every
// localized engage phrase.
func (c *Classifier) isEngage(fields []string) bool {
	if len(fields) < 5 || fields[0] != LineGameLog || fields[2] != GameLogEngage {
		return false
	}
	msg := fields[4]
	for _, re := range c.codes.EngagePatterns {
		if re.MatchString(msg) {
			return true
		}
	}
	return false
}

// isWipe recognizes an actor-control wipe command or a manual "wipe" echo.
//
//	33|timestamp|instanceId|command|data0|data1|data2|data3
//	00|timestamp|0038|name|message|hash
func (c *Classifier) isWipe(fields []string) bool {
	if len(fields) < 3 {
		return false
	}
	switch fields[0] {
	case LineActorControl:
		if len(fields) < 4 {
			return false
		}
		return c.codes.WipeCommands[strings.ToUpper(fields[3])]
	case LineGameLog:
		if fields[2] != GameLogEcho || len(fields) < 5 {
			return false
		}
		return wipeEchoPattern.MatchString(fields[4])
	}
	return false
}
