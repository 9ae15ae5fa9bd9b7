package ctl

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/large-farva/mitplan-engine/internal/engine"
)

// PlayerOptions holds the player fields to change. Nil fields are left as
// they are on the daemon.
type PlayerOptions struct {
	Job         *string
	Role        *string
	ShowOwnOnly *bool
	JSON        bool
}

func (o PlayerOptions) empty() bool {
	return o.Job == nil && o.Role == nil && o.ShowOwnOnly == nil
}

// Player shows the player settings, or updates them when any field is set.
func Player(baseURL string, opts PlayerOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	if !opts.empty() {
		res, err := sendCommand(baseURL, http.MethodPost, "/api/player", engine.PlayerPayload{
			Job:         opts.Job,
			Role:        opts.Role,
			ShowOwnOnly: opts.ShowOwnOnly,
		})
		if err != nil {
			return err
		}
		if opts.JSON {
			return printJSON(res)
		}
		result("UPDATED", res.OK, res.Message, res.Error, res.Warnings)
		if !res.OK {
			return nil
		}
	}

	var p engine.Player
	if err := getJSON(baseURL, "/api/player", &p); err != nil {
		return err
	}
	if opts.JSON {
		return printJSON(p)
	}
	header("PLAYER", 36)
	if p.Name != "" {
		field("Name", p.Name)
	}
	field("Job", orDim(p.Job, "not set"))
	field("Role", orDim(p.Role, "not set"))
	field("Own only", p.ShowOwnOnly)
	fmt.Fprintln(out)
	return nil
}

// CueOptions holds the cue fields to change.
type CueOptions struct {
	Sound          *bool
	SoundType      *string
	VoiceCountdown *bool
	VoiceActions   *bool
	JSON           bool
}

// Cues shows the cue settings, or updates them when any field is set.
func Cues(baseURL string, opts CueOptions) error {
	body := map[string]any{}
	if opts.Sound != nil {
		body["sound"] = *opts.Sound
	}
	if opts.SoundType != nil {
		body["soundType"] = *opts.SoundType
	}
	if opts.VoiceCountdown != nil {
		body["voiceCountdown"] = *opts.VoiceCountdown
	}
	if opts.VoiceActions != nil {
		body["voiceActions"] = *opts.VoiceActions
	}

	var c engine.CueSettings
	ok, err := settings(baseURL, "/api/cues", body, &c, opts.JSON)
	if err != nil || !ok {
		return err
	}
	header("CUES", 36)
	field("Sound", c.Sound)
	field("Sound type", c.SoundType)
	field("Voice count", c.VoiceCountdown)
	field("Voice acts", c.VoiceActions)
	fmt.Fprintln(out)
	return nil
}

// TimelineOptions holds the upcoming-list fields to change. Zero values are
// left as they are.
type TimelineOptions struct {
	WindowSeconds float64
	MaxItems      int
	JSON          bool
}

// Timeline shows the upcoming-list settings, or updates them.
func Timeline(baseURL string, opts TimelineOptions) error {
	body := map[string]any{}
	if opts.WindowSeconds > 0 {
		body["windowSeconds"] = opts.WindowSeconds
	}
	if opts.MaxItems > 0 {
		body["maxItems"] = opts.MaxItems
	}

	var t engine.TimelineOptions
	ok, err := settings(baseURL, "/api/timeline", body, &t, opts.JSON)
	if err != nil || !ok {
		return err
	}
	header("TIMELINE", 36)
	field("Window", fmt.Sprintf("%gs", t.WindowSeconds))
	field("Max items", t.MaxItems)
	fmt.Fprintln(out)
	return nil
}

// settings posts body when it is non-empty, then fetches the current values
// into dst. It reports false when the caller has nothing left to print.
func settings(baseURL, path string, body map[string]any, dst any, jsonOutput bool) (bool, error) {
	if len(body) > 0 {
		res, err := sendCommand(baseURL, http.MethodPost, path, body)
		if err != nil {
			return false, err
		}
		if jsonOutput {
			return false, printJSON(res)
		}
		result("UPDATED", res.OK, res.Message, res.Error, res.Warnings)
		if !res.OK {
			return false, nil
		}
	}
	if err := getJSON(baseURL, path, dst); err != nil {
		return false, err
	}
	if jsonOutput {
		return false, printJSON(dst)
	}
	return true, nil
}

func orDim(s, fallback string) string {
	if s == "" {
		return dimStyle.Render(fallback)
	}
	return s
}
