// Package ctl implements the client-side commands for mitctl.
// It talks to a running mitpland over HTTP and WebSocket and renders the
// results to the terminal.
package ctl

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// out is where every command writes. Tests swap it for a buffer.
var out io.Writer = os.Stdout

// Palette. lipgloss drops the colors when stdout is not a terminal.
var (
	colorOK     = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	colorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}

	okStyle     = lipgloss.NewStyle().Foreground(colorOK)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn)
	failStyle   = lipgloss.NewStyle().Foreground(colorFail)
	dimStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	accentStyle = lipgloss.NewStyle().Foreground(colorAccent)
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

// stateStyle returns the style for a daemon or combat state.
func stateStyle(state string) lipgloss.Style {
	switch state {
	case "IDLE":
		return okStyle
	case "COUNTDOWN":
		return warnStyle
	case "COMBAT":
		return accentStyle.Bold(true)
	case "ENDED":
		return failStyle
	default:
		return dimStyle
	}
}

// tierStyle colors a callout by urgency.
func tierStyle(tier string) lipgloss.Style {
	switch tier {
	case "now":
		return failStyle.Bold(true)
	case "urgent":
		return warnStyle.Bold(true)
	default:
		return boldStyle
	}
}

func outcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case "wipe":
		return failStyle
	case "ended":
		return okStyle
	case "":
		return accentStyle
	default:
		return dimStyle
	}
}

// header prints a bold section header followed by a rule.
func header(title string, width int) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, boldStyle.Render("  "+title))
	fmt.Fprintln(out, dimStyle.Render("  "+strings.Repeat("─", width)))
}

// field prints an aligned key/value line.
func field(key string, val any) {
	fmt.Fprintf(out, "  %s %v\n", dimStyle.Render(padRight(key+":", 12)), val)
}

// result prints the outcome of a control command.
func result(label string, ok bool, msg, errMsg string, warnings []string) {
	if ok {
		fmt.Fprintf(out, "\n  %s  %s\n", okStyle.Render(label), msg)
	} else {
		fmt.Fprintf(out, "\n  %s  %s\n", failStyle.Render("ERROR"), errMsg)
	}
	for _, w := range warnings {
		fmt.Fprintf(out, "  %s  %s\n", warnStyle.Render("WARN"), w)
	}
	fmt.Fprintln(out)
}

// padRight pads s with spaces to reach the given width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration renders a time.Duration as a compact human string like
// "2h 14m 8s" or "45s".
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// formatFightTime renders seconds of fight time as M:SS.
func formatFightTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// formatBytes renders a byte count as a human-readable string.
func formatBytes(b uint64) string {
	return humanize.IBytes(b)
}

// formatAgo renders an RFC 3339 timestamp relative to now.
func formatAgo(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}
