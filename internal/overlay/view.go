package overlay

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorOK     = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	colorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
	colorBar    = lipgloss.AdaptiveColor{Light: "#e7e8e9", Dark: "#1f2430"}

	barStyle    = lipgloss.NewStyle().Background(colorBar).Foreground(colorAccent).Bold(true).Padding(0, 1)
	barDimStyle = lipgloss.NewStyle().Background(colorBar).Foreground(colorMuted).Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	failStyle   = lipgloss.NewStyle().Foreground(colorFail)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	jobStyle    = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)

	calloutBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2)
)

// tierColor maps a callout tier to its border and countdown color.
func tierColor(tier string) lipgloss.TerminalColor {
	switch tier {
	case "now":
		return colorFail
	case "urgent":
		return colorWarn
	default:
		return colorOK
	}
}

func phaseColor(phase string) lipgloss.TerminalColor {
	switch phase {
	case "COMBAT":
		return colorAccent
	case "COUNTDOWN":
		return colorWarn
	case "ENDED":
		return colorFail
	default:
		return colorMuted
	}
}

// View renders the overlay.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n\n")

	if m.countdown != nil && m.phase == "COUNTDOWN" {
		b.WriteString(warnStyle.Render(fmt.Sprintf("  Pull in %ds", m.countdown.Seconds)))
		if m.countdown.Initiator != "" {
			b.WriteString(mutedStyle.Render("  by " + m.countdown.Initiator))
		}
		b.WriteString("\n\n")
	}

	b.WriteString(m.calloutView())
	b.WriteString("\n")

	if !m.compact {
		b.WriteString(m.upcomingView())
		if m.raidPlan != nil {
			b.WriteString(fmt.Sprintf("\n  %s %s %s\n",
				jobStyle.Render("Raid plan"),
				m.raidPlan.ImageURL,
				mutedStyle.Render(fmt.Sprintf("(%.0fs)", m.raidPlan.TimeRemaining))))
		}
		if m.lastCue != "" || m.lastPull != "" {
			b.WriteString("\n")
			if m.lastCue != "" {
				b.WriteString(mutedStyle.Render("  cue: "+m.lastCue) + "\n")
			}
			if m.lastPull != "" {
				b.WriteString(mutedStyle.Render("  "+m.lastPull) + "\n")
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(m.footerView())
	return b.String()
}

func (m Model) headerView() string {
	phase := lipgloss.NewStyle().Background(colorBar).Foreground(phaseColor(m.phase)).Bold(true).Padding(0, 1).Render(m.phase)
	clock := m.clock
	if !m.running {
		clock += " ■"
	}
	parts := []string{barStyle.Render("mitplan"), phase, barDimStyle.Render(clock)}

	where := m.zone
	if m.fight != "" {
		where = m.fight
	}
	if where != "" {
		parts = append(parts, barDimStyle.Render(where))
	}
	if m.planName != "" {
		parts = append(parts, barDimStyle.Render(m.planName))
	}
	if m.player.Job != "" {
		who := m.player.Job
		if m.player.Role != "" {
			who += " " + m.player.Role
		}
		parts = append(parts, barDimStyle.Render(who))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) calloutView() string {
	if m.callout == nil || len(m.callout.Abilities) == 0 {
		return mutedStyle.Render("  no callout") + "\n"
	}
	color := tierColor(m.tier)
	lines := make([]string, 0, len(m.callout.Abilities)+1)
	lines = append(lines, lipgloss.NewStyle().Foreground(color).Bold(true).Render(m.display))
	for _, a := range m.callout.Abilities {
		line := jobStyle.Render(a.Job) + " " + a.Name
		if a.Note != "" {
			line += mutedStyle.Render("  " + a.Note)
		}
		lines = append(lines, line)
	}
	box := calloutBox.BorderForeground(color)
	if m.width > 8 {
		box = box.Width(min(m.width-4, 48))
	}
	return lipgloss.NewStyle().MarginLeft(2).Render(box.Render(strings.Join(lines, "\n"))) + "\n"
}

func (m Model) upcomingView() string {
	if len(m.upcoming) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(mutedStyle.Render("  Upcoming") + "\n")
	for _, e := range m.upcoming {
		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			mutedStyle.Render(fightTime(e.Timestamp)),
			jobStyle.Render(fmt.Sprintf("%-4s", e.EffectiveJob())),
			e.Ability))
	}
	return b.String()
}

func (m Model) footerView() string {
	status := "connecting..."
	switch {
	case m.connected:
		status = "connected " + m.url
	case m.lastErr != nil:
		status = failStyle.Render("disconnected: " + m.lastErr.Error())
	}
	return mutedStyle.Render("  "+status) + "\n  " + m.help.View(m.keys)
}

func fightTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
