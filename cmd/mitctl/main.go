// Mitctl is the command-line client for monitoring and controlling a running
// mitpland instance. It connects over HTTP and WebSocket to query status,
// manage plans and stream live events, and can replay saved logs offline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/large-farva/mitplan-engine/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8787", "mitpland URL (e.g. http://192.168.1.20:8787)")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter state,callout)")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	// ── Query commands ────────────────────────────────────────────
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "config":
		err = ctl.Config(*host, *jsonOut)

	case "logs":
		opts := ctl.LogsOptions{JSON: *jsonOut}
		logFlags := pflag.NewFlagSet("logs", pflag.ContinueOnError)
		logFlags.StringVar(&opts.Level, "level", "", "Minimum log level (debug, info, warn, error)")
		logFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of log entries shown")
		logFlags.BoolVar(&opts.Tail, "tail", false, "Stream live log events (like watch --filter log)")
		_ = logFlags.Parse(subArgs)
		err = ctl.Logs(*host, opts)

	case "pulls":
		opts := ctl.PullsOptions{JSON: *jsonOut}
		pullFlags := pflag.NewFlagSet("pulls", pflag.ContinueOnError)
		pullFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of pulls shown (default 20)")
		pullFlags.StringVar(&opts.ID, "id", "", "Show a single pull")
		stats := pullFlags.Bool("stats", false, "Show totals per outcome and fight")
		_ = pullFlags.Parse(subArgs)
		if *stats {
			err = ctl.PullStats(*host, *jsonOut)
		} else {
			err = ctl.Pulls(*host, opts)
		}

	// ── Plans ─────────────────────────────────────────────────────
	case "plans":
		planFlags := pflag.NewFlagSet("plans", pflag.ContinueOnError)
		rescan := planFlags.Bool("rescan", false, "Re-read the plan directory first")
		_ = planFlags.Parse(subArgs)
		err = ctl.Plans(*host, *rescan, *jsonOut)

	case "plan":
		err = planCommand(*host, subArgs, *jsonOut)

	// ── Player settings ───────────────────────────────────────────
	case "player":
		opts := ctl.PlayerOptions{JSON: *jsonOut}
		fs := pflag.NewFlagSet("player", pflag.ContinueOnError)
		job := fs.String("job", "", "Job code (e.g. WHM); empty string clears")
		role := fs.String("role", "", "Role slot (MT, OT, H1, H2, M1, M2, D3, D4)")
		own := fs.Bool("own-only", false, "Show only your own callouts")
		_ = fs.Parse(subArgs)
		if fs.Changed("job") {
			opts.Job = job
		}
		if fs.Changed("role") {
			opts.Role = role
		}
		if fs.Changed("own-only") {
			opts.ShowOwnOnly = own
		}
		err = ctl.Player(*host, opts)

	case "cues":
		opts := ctl.CueOptions{JSON: *jsonOut}
		fs := pflag.NewFlagSet("cues", pflag.ContinueOnError)
		sound := fs.Bool("sound", false, "Play a sound when a callout opens")
		soundType := fs.String("sound-type", "", "Sound to play (info, alert, alarm)")
		voiceCD := fs.Bool("voice-countdown", false, "Speak the last seconds of a countdown")
		voiceActs := fs.Bool("voice-actions", false, "Speak the ability names")
		_ = fs.Parse(subArgs)
		if fs.Changed("sound") {
			opts.Sound = sound
		}
		if fs.Changed("sound-type") {
			opts.SoundType = soundType
		}
		if fs.Changed("voice-countdown") {
			opts.VoiceCountdown = voiceCD
		}
		if fs.Changed("voice-actions") {
			opts.VoiceActions = voiceActs
		}
		err = ctl.Cues(*host, opts)

	case "timeline":
		opts := ctl.TimelineOptions{JSON: *jsonOut}
		fs := pflag.NewFlagSet("timeline", pflag.ContinueOnError)
		fs.Float64Var(&opts.WindowSeconds, "window", 0, "Seconds ahead to list")
		fs.IntVar(&opts.MaxItems, "max", 0, "Maximum entries to list")
		_ = fs.Parse(subArgs)
		err = ctl.Timeline(*host, opts)

	// ── Control commands ──────────────────────────────────────────
	case "start", "end", "wipe":
		err = ctl.Control(*host, cmd, *jsonOut)

	case "clock":
		if len(subArgs) < 1 {
			fmt.Fprintln(os.Stderr, "usage: mitctl clock start|stop|reset")
			os.Exit(2)
		}
		err = ctl.Control(*host, "clock-"+subArgs[0], *jsonOut)

	case "reload":
		err = ctl.Reload(*host, *jsonOut)

	// ── Live ──────────────────────────────────────────────────────
	case "watch":
		watchFlags := pflag.NewFlagSet("watch", pflag.ContinueOnError)
		heartbeat := watchFlags.Bool("heartbeat", false, "Include heartbeat events")
		_ = watchFlags.Parse(subArgs)
		err = ctl.Watch(*host, ctl.WatchOptions{
			Filter:    *filter,
			JSON:      *jsonOut,
			Heartbeat: *heartbeat,
		})

	case "overlay":
		err = ctl.Overlay(*host)

	// ── Offline ───────────────────────────────────────────────────
	case "replay":
		opts := ctl.ReplayOptions{JSON: *jsonOut}
		fs := pflag.NewFlagSet("replay", pflag.ContinueOnError)
		fs.StringVarP(&opts.ConfigPath, "config", "c", "", "Config TOML for classifier, combat and zone settings")
		fs.StringVar(&opts.PlanFile, "plan", "", "Plan file to use for the logged fight")
		fs.StringVar(&opts.PlansDir, "plans", "", "Plan directory to auto-load from")
		fs.StringVar(&opts.Job, "job", "", "Player job for callout filtering")
		fs.StringVar(&opts.Role, "role", "", "Player role slot")
		fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "Include callout, cue and timeline events")
		fs.BoolVar(&opts.Compress, "compress", false, "Write a zstd copy of the log instead of replaying")
		_ = fs.Parse(subArgs)
		if fs.NArg() > 0 {
			opts.Path = fs.Arg(0)
		}
		err = ctl.Replay(opts)

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func planCommand(host string, args []string, jsonOut bool) error {
	sub := "show"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	switch sub {
	case "show":
		return ctl.PlanShow(host, false, jsonOut)
	case "export":
		return ctl.PlanShow(host, true, jsonOut)
	case "clear":
		return ctl.PlanClear(host, jsonOut)
	case "load":
		opts := ctl.PlanLoadOptions{JSON: jsonOut}
		fs := pflag.NewFlagSet("plan load", pflag.ContinueOnError)
		fs.StringVar(&opts.Data, "data", "", "Base64 plan share string")
		fs.BoolVar(&opts.Save, "save", false, "Save the plan into the daemon's plan directory")
		_ = fs.Parse(args)
		if fs.NArg() > 0 {
			opts.Ref = fs.Arg(0)
		}
		return ctl.PlanLoad(host, opts)
	}
	return fmt.Errorf("unknown plan command %q (want show, load, clear or export)", sub)
}

func usage() {
	fmt.Print(`
  mitctl — mitigation plan engine control CLI

  USAGE
    mitctl [flags] <command> [command-flags]

  COMMANDS (query)
    status          Show daemon state, fight, plan and player
    health          Check daemon and component health
    version         Show CLI and daemon version information
    config          Show the daemon's running configuration
    logs            Show recent daemon log messages
    pulls           List recorded pulls, one pull, or totals

  COMMANDS (plans and settings)
    plans           List the plan catalog
    plan show       Show the loaded plan's timeline
    plan load       Load a plan by id, file or share string
    plan clear      Unload the current plan
    plan export     Print the loaded plan as a share string
    player          Show or change the player job and role
    cues            Show or change sound and voice cues
    timeline        Show or change the upcoming list window

  COMMANDS (control)
    start           Force combat start
    end             Force combat end
    wipe            Force a wipe
    clock           Start, stop or reset the fight clock
    reload          Reload configuration from disk

  COMMANDS (live)
    watch           Stream live events from the daemon (Ctrl-C to stop)
    overlay         Full-screen terminal overlay (q to quit)

  COMMANDS (offline)
    replay FILE     Run a saved network log through a local engine

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8787)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated)

  COMMAND FLAGS
    logs:
        --level LEVEL       Minimum log level (debug, info, warn, error)
        --limit N           Limit number of log entries shown
        --tail              Stream live log events

    pulls:
        --limit N           Limit number of pulls shown
        --id ID             Show a single pull
        --stats             Show totals per outcome and fight

    plans:
        --rescan            Re-read the plan directory first

    plan load:
        --data STRING       Base64 plan share string
        --save              Save the plan into the plan directory

    player:
        --job CODE          Job code (empty clears)
        --role SLOT         Role slot
        --own-only          Show only your own callouts

    cues:
        --sound, --sound-type TYPE, --voice-countdown, --voice-actions

    timeline:
        --window SECS       Seconds ahead to list
        --max N             Maximum entries to list

    watch:
        --heartbeat         Include heartbeat events

    replay:
    -c, --config PATH       Config TOML for classifier, combat and zones
        --plan FILE         Plan file for the logged fight
        --plans DIR         Plan directory to auto-load from
        --job CODE          Player job
        --role SLOT         Player role
    -v, --verbose           Include callout, cue and timeline events
        --compress          Write a .zst copy instead of replaying

  EXAMPLES
    mitctl status
    mitctl --json status
    mitctl plans --rescan
    mitctl plan load m9s-default
    mitctl plan load ./plans/m9s.yaml --save
    mitctl player --job SCH --role H2
    mitctl cues --sound --sound-type alert
    mitctl wipe
    mitctl clock reset
    mitctl pulls --limit 10
    mitctl pulls --stats
    mitctl watch --filter state,callout,pull
    mitctl overlay
    mitctl replay Network_27012_20260301.log --plan ./plans/m9s.json --job WHM -v

`)
}
