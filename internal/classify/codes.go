package classify

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Line-type and sub-codes of the community network log format.
const (
	LineGameLog         = "00"
	LineChangeZone      = "01"
	LineActorControl    = "33"
	LineInCombat        = "260"
	LineCountdown       = "268"
	LineCountdownCancel = "269"

	GameLogEcho   = "0038"
	GameLogEngage = "0039"

	countdownSuccess = "00"
)

// WipeProfiles lists the known actor-control command sets that signal a
// wipe (fade to black or instance reset). Two revisions are in circulation
// and they disagree; neither is assumed correct, the active one is chosen by
// configuration.
var WipeProfiles = map[string][]string{
	"v1": {"40000010", "80000004", "40000001"},
	"v2": {"4000000F", "40000010", "40000005"},
}

// DefaultWipeProfile is the profile used when configuration names none.
const DefaultWipeProfile = "v1"

// DefaultEngagePatterns are the localized "combat started" system messages,
// keyed by client language.
var DefaultEngagePatterns = map[string]string{
	"en": `Engage!`,
	"de": `Start!`,
	"fr": `À l'attaque\s*!`,
	"ja": `戦闘開始！`,
	"cn": `战斗开始！`,
	"ko": `전투 시작!`,
}

var wipeEchoPattern = regexp.MustCompile(`(?i)wipe`)

// Codes is the data the classifier matches against. Build one with NewCodes.
type Codes struct {
	WipeCommands   map[string]bool
	EngagePatterns []*regexp.Regexp
}

// NewCodes resolves a wipe profile, appends any extra command codes, and
// compiles the default engage patterns plus extras. An unknown profile or a
// pattern that does not compile is an error.
func NewCodes(wipeProfile string, extraWipe, extraEngage []string) (Codes, error) {
	if wipeProfile == "" {
		wipeProfile = DefaultWipeProfile
	}
	base, ok := WipeProfiles[wipeProfile]
	if !ok {
		return Codes{}, fmt.Errorf("unknown wipe profile %q (known: %s)", wipeProfile, strings.Join(ProfileNames(), ", "))
	}

	c := Codes{WipeCommands: make(map[string]bool, len(base)+len(extraWipe))}
	for _, code := range append(append([]string(nil), base...), extraWipe...) {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" {
			c.WipeCommands[code] = true
		}
	}

	langs := make([]string, 0, len(DefaultEngagePatterns))
	for lang := range DefaultEngagePatterns {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		c.EngagePatterns = append(c.EngagePatterns, regexp.MustCompile(DefaultEngagePatterns[lang]))
	}
	for _, p := range extraEngage {
		re, err := regexp.Compile(p)
		if err != nil {
			return Codes{}, fmt.Errorf("engage pattern %q: %w", p, err)
		}
		c.EngagePatterns = append(c.EngagePatterns, re)
	}
	return c, nil
}

// DefaultCodes returns the codes for the default wipe profile with no extras.
func DefaultCodes() Codes {
	c, err := NewCodes(DefaultWipeProfile, nil, nil)
	if err != nil {
		panic(err)
	}
	return c
}

// ProfileNames returns the known wipe profile names, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(WipeProfiles))
	for n := range WipeProfiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
