package ctl

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/large-farva/mitplan-engine/internal/classify"
	"github.com/large-farva/mitplan-engine/internal/combat"
	"github.com/large-farva/mitplan-engine/internal/config"
	"github.com/large-farva/mitplan-engine/internal/engine"
	"github.com/large-farva/mitplan-engine/internal/jobs"
	"github.com/large-farva/mitplan-engine/internal/plan"
	"github.com/large-farva/mitplan-engine/internal/replay"
)

// ReplayOptions configures an offline replay. Nothing here talks to a
// daemon; the log is run through a private engine on virtual time.
type ReplayOptions struct {
	Path       string
	ConfigPath string // optional; supplies classifier, combat and zone settings
	PlanFile   string // loaded as the default for its fight
	PlansDir   string // overrides the config's plan directory
	Job        string
	Role       string
	Verbose    bool // include callout, cue and timeline events
	Compress   bool // write a .zst copy of Path instead of replaying
	JSON       bool
}

// Replay runs a saved network log through the engine and prints what
// happened, or compresses the log with Compress set.
func Replay(opts ReplayOptions) error {
	if opts.Path == "" {
		return fmt.Errorf("replay needs a log file")
	}
	if opts.Compress {
		dst, err := replay.Compress(opts.Path)
		if err != nil {
			return err
		}
		if opts.JSON {
			return printJSON(map[string]string{"source": opts.Path, "output": dst})
		}
		result("COMPRESSED", true, dst, "", nil)
		return nil
	}

	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return err
		}
	}
	eo, err := replayEngineOptions(cfg, opts)
	if err != nil {
		return err
	}

	trace, err := replay.File(opts.Path, replay.Options{Engine: eo, Tick: cfg.TickInterval()})
	if err != nil {
		return err
	}
	if opts.JSON {
		return printJSON(trace)
	}
	printTrace(trace, opts.Verbose)
	return nil
}

func replayEngineOptions(cfg config.Config, opts ReplayOptions) (engine.Options, error) {
	codes, err := cfg.Codes()
	if err != nil {
		return engine.Options{}, err
	}

	dir := cfg.PlansDir()
	if opts.PlansDir != "" {
		dir = opts.PlansDir
	}
	quiet := log.New(io.Discard, "", 0)
	catalog := plan.NewCatalog(dir, quiet)
	if err := catalog.Reload(); err != nil && opts.PlansDir != "" {
		return engine.Options{}, err
	}
	if opts.PlanFile != "" {
		p, _, err := plan.Load(opts.PlanFile)
		if err != nil {
			return engine.Options{}, err
		}
		p.IsDefault = true
		if _, rep := catalog.Import(p); !rep.Valid() {
			return engine.Options{}, rep.Err()
		}
	}

	player := engine.Player{
		Job:         cfg.Player.Job,
		Role:        cfg.Player.Role,
		ShowOwnOnly: cfg.Player.ShowOwnOnly,
	}
	if opts.Job != "" {
		player.Job = strings.ToUpper(opts.Job)
		if _, ok := jobs.Lookup(player.Job); !ok {
			return engine.Options{}, fmt.Errorf("unknown job %q", opts.Job)
		}
	}
	if opts.Role != "" {
		player.Role = strings.ToUpper(opts.Role)
	}

	return engine.Options{
		Logger:     quiet,
		Classifier: classify.New(codes),
		Combat:     combat.Config{EndGrace: cfg.EndGrace(), EndedDecay: cfg.EndedDecay()},
		Catalog:    catalog,
		Zones:      plan.NewZones(cfg.Zones),
		AutoLoad:   true,
		Player:     player,
		Timeline: engine.TimelineOptions{
			WindowSeconds: cfg.Timeline.WindowSeconds,
			MaxItems:      cfg.Timeline.MaxItems,
		},
	}, nil
}

var noisyTraceTypes = map[string]bool{"callout": true, "cue": true, "timeline": true, "raidplan": true}

func printTrace(t *replay.Trace, verbose bool) {
	header("REPLAY", 60)
	field("Lines", fmt.Sprintf("%d (%d skipped)", t.Lines, t.Skipped))
	if !t.Start.IsZero() {
		field("Span", formatDuration(t.End.Sub(t.Start)))
	}
	fmt.Fprintln(out)

	for _, ev := range t.Events {
		if !verbose && noisyTraceTypes[ev.Type] {
			continue
		}
		style := dimStyle
		switch ev.Type {
		case "pull", "state":
			style = accentStyle
		case "wipe":
			style = failStyle
		case "plan", "zone":
			style = boldStyle
		}
		fmt.Fprintf(out, "  %s %s %s\n",
			dimStyle.Render(fmt.Sprintf("%8.1fs", ev.Offset)),
			style.Render(padRight(ev.Type, 10)),
			ev.Detail,
		)
	}

	if t.Final != nil {
		header("FINAL", 60)
		field("Phase", stateStyle(t.Final.Combat.Phase.String()).Render(t.Final.Combat.Phase.String()))
		field("Clock", t.Final.Clock.Display)
		if t.Final.Plan != nil {
			field("Plan", t.Final.Plan.Name)
		}
	}
	fmt.Fprintln(out)
}
