package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/large-farva/mitplan-engine/internal/callout"
	"github.com/large-farva/mitplan-engine/internal/engine"
	"github.com/large-farva/mitplan-engine/internal/telemetry"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Filter    []string // event types to show (empty = all)
	JSON      bool     // output raw JSON per event
	Heartbeat bool     // show heartbeat events
}

// Watch connects to the daemon's WebSocket endpoint and streams events to
// the terminal in a human-readable format until interrupted.
func Watch(baseURL string, opts WatchOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watch(ctx, baseURL, opts)
}

func watch(ctx context.Context, baseURL string, opts WatchOptions) error {
	u, err := wsURL(baseURL)
	if err != nil {
		return err
	}
	if len(opts.Filter) > 0 {
		u += "?types=" + url.QueryEscape(strings.Join(opts.Filter, ","))
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !opts.JSON {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  %s %s\n", okStyle.Render("connected"), dimStyle.Render(u))
		if len(opts.Filter) > 0 {
			fmt.Fprintf(out, "  %s %s\n", dimStyle.Render("filter:"), dimStyle.Render(strings.Join(opts.Filter, ", ")))
		}
		fmt.Fprintln(out, dimStyle.Render("  "+strings.Repeat("─", 50)))
		fmt.Fprintln(out)
	}

	filterSet := make(map[string]bool, len(opts.Filter))
	for _, f := range opts.Filter {
		filterSet[f] = true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env telemetry.Event
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			if len(filterSet) > 0 && !filterSet[string(env.Type)] {
				continue
			}
			if env.Type == telemetry.EventHeartbeat && !opts.Heartbeat && len(filterSet) == 0 {
				continue
			}
			if opts.JSON {
				fmt.Fprintln(out, string(msg))
			} else {
				renderEvent(msg)
			}
		}
	}()

	select {
	case <-ctx.Done():
		if !opts.JSON {
			fmt.Fprintln(out)
			fmt.Fprintln(out, dimStyle.Render("  disconnecting..."))
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second),
		)
		return nil
	case <-done:
		return nil
	}
}

// renderEvent parses a JSON event and prints it in a human-friendly format.
// Unknown event types are dumped as JSON so nothing is lost.
func renderEvent(raw []byte) {
	var env telemetry.Event
	if err := json.Unmarshal(raw, &env); err != nil {
		fmt.Fprintf(out, "  %s\n", string(raw))
		return
	}
	ts := dimStyle.Render(formatEventTime(env.TS))
	line := func(label, format string, args ...any) {
		fmt.Fprintf(out, "  %s %s  %s\n", ts, label, fmt.Sprintf(format, args...))
	}
	tag := func(s string) string { return boldStyle.Render(padRight(s, 9)) }

	switch env.Type {
	case telemetry.EventHeartbeat:
		var ev telemetry.Heartbeat
		_ = json.Unmarshal(raw, &ev)
		line(dimStyle.Render(padRight("heartbeat", 9)), "%s  %s",
			stateStyle(ev.State).Render(ev.State),
			dimStyle.Render("up "+formatDuration(time.Duration(ev.UptimeSeconds)*time.Second)))

	case telemetry.EventState:
		var ev telemetry.StateTransition
		_ = json.Unmarshal(raw, &ev)
		line(tag("STATE"), "%s %s %s",
			stateStyle(ev.From).Render(ev.From), dimStyle.Render("->"), stateStyle(ev.To).Render(ev.To))

	case telemetry.EventLog:
		var ev telemetry.LogLine
		_ = json.Unmarshal(raw, &ev)
		src := ""
		if env.Component != "" {
			src = dimStyle.Render("[" + env.Component + "] ")
		}
		line(padRight(formatLogLevel(ev.Level), 9), "%s%s", src, ev.Message)

	case telemetry.EventZone:
		var ev telemetry.Zone
		_ = json.Unmarshal(raw, &ev)
		fight := dimStyle.Render("no plan fight")
		if ev.Fight != "" {
			fight = accentStyle.Render(ev.Fight)
		}
		line(tag("ZONE"), "%s %s %s", ev.ZoneName, dimStyle.Render(fmt.Sprintf("(%d)", ev.ZoneID)), fight)

	case telemetry.EventCountdown:
		var ev telemetry.Countdown
		_ = json.Unmarshal(raw, &ev)
		by := ""
		if ev.Initiator != "" {
			by = dimStyle.Render(" by " + ev.Initiator)
		}
		line(warnStyle.Render(padRight("PULL IN", 9)), "%ds%s", ev.Seconds, by)

	case telemetry.EventPull:
		var ev telemetry.Pull
		_ = json.Unmarshal(raw, &ev)
		if ev.Phase == "start" {
			line(accentStyle.Render(padRight("PULL", 9)), "start %s %s", ev.Fight, dimStyle.Render(ev.PullID))
		} else {
			line(accentStyle.Render(padRight("PULL", 9)), "end %s after %s",
				outcomeStyle(ev.Outcome).Render(outcomeLabel(ev.Outcome)), formatFightTime(ev.Elapsed))
		}

	case telemetry.EventWipe:
		var ev telemetry.Wipe
		_ = json.Unmarshal(raw, &ev)
		line(failStyle.Render(padRight("WIPE", 9)), "at %s", formatFightTime(ev.Elapsed))

	case telemetry.EventClock:
		var ev telemetry.Clock
		_ = json.Unmarshal(raw, &ev)
		run := dimStyle.Render("stopped")
		if ev.Running {
			run = okStyle.Render("running")
		}
		line(dimStyle.Render(padRight("clock", 9)), "%s %s", ev.Display, run)

	case telemetry.EventCallout:
		var ev telemetry.Callout
		_ = json.Unmarshal(raw, &ev)
		if !ev.Active || ev.Callout == nil {
			line(dimStyle.Render(padRight("callout", 9)), "%s", dimStyle.Render("none"))
			return
		}
		line(tierStyle(ev.Tier).Render(padRight("CALLOUT", 9)), "%s", formatCallout(ev.Callout))

	case telemetry.EventTimeline:
		var ev telemetry.Timeline
		_ = json.Unmarshal(raw, &ev)
		parts := make([]string, 0, len(ev.Entries))
		for _, e := range ev.Entries {
			parts = append(parts, fmt.Sprintf("%s %s", dimStyle.Render(formatFightTime(e.Timestamp)), e.Ability))
		}
		if len(parts) == 0 {
			parts = append(parts, dimStyle.Render("nothing upcoming"))
		}
		line(dimStyle.Render(padRight("upcoming", 9)), "%s", strings.Join(parts, dimStyle.Render(" | ")))

	case telemetry.EventRaidPlan:
		var ev telemetry.RaidPlan
		_ = json.Unmarshal(raw, &ev)
		if ev.RaidPlan == nil {
			line(dimStyle.Render(padRight("raidplan", 9)), "%s", dimStyle.Render("hidden"))
			return
		}
		line(accentStyle.Render(padRight("RAIDPLAN", 9)), "%s %s", ev.RaidPlan.ImageURL,
			dimStyle.Render(fmt.Sprintf("%.0fs left", ev.RaidPlan.TimeRemaining)))

	case telemetry.EventCue:
		var ev telemetry.Cue
		_ = json.Unmarshal(raw, &ev)
		what := ev.Cue.Text
		if what == "" {
			what = ev.Cue.Sound
		}
		line(dimStyle.Render(padRight("cue", 9)), "%s %s", string(ev.Cue.Kind), what)

	case telemetry.EventPlan:
		var ev struct {
			Plan   *engine.PlanInfo `json:"plan"`
			Reason string           `json:"reason"`
		}
		_ = json.Unmarshal(raw, &ev)
		if ev.Plan == nil {
			line(tag("PLAN"), "cleared %s", dimStyle.Render(ev.Reason))
			return
		}
		line(tag("PLAN"), "%s %s %s", ev.Plan.Name, dimStyle.Render("["+ev.Plan.ID+"]"), dimStyle.Render(ev.Reason))

	case telemetry.EventPlayer:
		var ev struct {
			Player engine.Player `json:"player"`
		}
		_ = json.Unmarshal(raw, &ev)
		line(tag("PLAYER"), "%s", formatPlayer(ev.Player))

	case telemetry.EventSnapshot:
		var ev struct {
			State engine.Snapshot `json:"state"`
		}
		_ = json.Unmarshal(raw, &ev)
		s := ev.State
		plan := dimStyle.Render("no plan")
		if s.Plan != nil {
			plan = s.Plan.Name
		}
		line(tag("SNAPSHOT"), "%s %s %s %s",
			stateStyle(s.Combat.Phase.String()).Render(s.Combat.Phase.String()),
			s.Clock.Display, plan, formatPlayer(s.Player))

	default:
		var ev map[string]any
		_ = json.Unmarshal(raw, &ev)
		pretty, err := json.MarshalIndent(ev, "  ", "  ")
		if err != nil {
			fmt.Fprintf(out, "  %s\n", string(raw))
			return
		}
		fmt.Fprintf(out, "  %s\n", string(pretty))
	}
}

// formatCallout renders the abilities of a callout with its countdown.
func formatCallout(r *callout.Result) string {
	names := make([]string, 0, len(r.Abilities))
	for _, a := range r.Abilities {
		s := a.Name
		if a.Job != "" {
			s = a.Job + " " + s
		}
		if a.Note != "" {
			s += dimStyle.Render(" (" + a.Note + ")")
		}
		names = append(names, s)
	}
	text := strings.Join(names, ", ")
	return fmt.Sprintf("%s %s", tierStyle(r.Tier().String()).Render(r.Display()), text)
}

// formatEventTime shortens an event timestamp to local wall time.
func formatEventTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return padRight("", 8)
	}
	return t.Local().Format("15:04:05")
}
