package ctl

import (
	"fmt"
	"strings"
	"time"

	"github.com/large-farva/mitplan-engine/internal/engine"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name          string          `json:"name"`
	State         string          `json:"state"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Mode          string          `json:"mode"`
	Source        string          `json:"source"`
	DataRoot      string          `json:"data_root"`
	PlansDir      string          `json:"plans_dir"`
	Journal       string          `json:"journal,omitempty"`
	Clients       int             `json:"clients"`
	Dropped       int64           `json:"dropped_events"`
	Engine        engine.Snapshot `json:"engine"`
	Disk          *struct {
		Total     uint64 `json:"total_bytes"`
		Available uint64 `json:"available_bytes"`
	} `json:"disk,omitempty"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(s)
	}

	eng := s.Engine
	header("MITPLAN ENGINE STATUS", 44)
	field("Daemon", s.Name)
	field("State", stateStyle(s.State).Render(s.State))
	field("Uptime", formatDuration(time.Duration(s.UptimeSeconds)*time.Second))
	field("Source", s.Source)
	field("Clients", fmt.Sprintf("%d (%d events dropped)", s.Clients, s.Dropped))
	field("Host", baseURL)

	header("FIGHT", 44)
	zone := eng.Combat.ZoneName
	if zone == "" {
		zone = dimStyle.Render("unknown")
	}
	if eng.Fight != "" {
		zone += " (" + eng.Fight + ")"
	}
	field("Zone", zone)
	clock := eng.Clock.Display
	if eng.Clock.Running {
		clock += " " + okStyle.Render("running")
	} else {
		clock += " " + dimStyle.Render("stopped")
	}
	field("Clock", clock)
	if eng.Plan != nil {
		field("Plan", fmt.Sprintf("%s [%s] %d entries", eng.Plan.Name, eng.Plan.ID, eng.Plan.Summary.EntryCount))
	} else {
		field("Plan", dimStyle.Render("none loaded"))
	}
	field("Player", formatPlayer(eng.Player))
	if eng.Callout != nil {
		field("Callout", formatCallout(eng.Callout))
	}
	if eng.PullID != "" {
		field("Pull", eng.PullID)
	}

	if s.Disk != nil {
		header("STORAGE", 44)
		field("Data", s.DataRoot)
		field("Plans", s.PlansDir)
		if s.Journal != "" {
			field("Journal", s.Journal)
		}
		field("Free", fmt.Sprintf("%s of %s", formatBytes(s.Disk.Available), formatBytes(s.Disk.Total)))
	}
	fmt.Fprintln(out)
	return nil
}

func formatPlayer(p engine.Player) string {
	if p.Job == "" {
		return dimStyle.Render("no job set")
	}
	s := p.Job
	if p.Role != "" {
		s += " " + p.Role
	}
	if p.Name != "" {
		s = p.Name + " " + s
	}
	if p.ShowOwnOnly {
		s += dimStyle.Render(" (own only)")
	}
	return s
}
