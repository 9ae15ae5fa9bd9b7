// Package app wires together the HTTP server, the WebSocket hub, the engine
// and whichever host source feeds it. It owns the daemon's lifecycle and the
// in-memory log ring served by /api/logs.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/large-farva/mitplan-engine/internal/classify"
	"github.com/large-farva/mitplan-engine/internal/combat"
	"github.com/large-farva/mitplan-engine/internal/config"
	"github.com/large-farva/mitplan-engine/internal/cue"
	"github.com/large-farva/mitplan-engine/internal/demo"
	"github.com/large-farva/mitplan-engine/internal/engine"
	"github.com/large-farva/mitplan-engine/internal/host"
	"github.com/large-farva/mitplan-engine/internal/journal"
	"github.com/large-farva/mitplan-engine/internal/plan"
	"github.com/large-farva/mitplan-engine/internal/replay"
	"github.com/large-farva/mitplan-engine/internal/telemetry"
	"github.com/large-farva/mitplan-engine/internal/ws"
)

const (
	component  = "mitpland"
	logBufSize = 500
)

// Options holds everything the App needs from the caller.
type Options struct {
	Logger     *log.Logger
	Cfg        config.Config
	ConfigPath string
	Bind       string
}

// App is the top-level daemon process.
type App struct {
	log *log.Logger

	cfgMu      sync.RWMutex
	cfg        config.Config
	configPath string

	bind   string
	server *http.Server

	startedAt time.Time
	state     atomic.Value // daemon state: BOOTING, then the combat phase
	source    atomic.Value // source status line

	wsHub   *ws.Hub
	engine  *engine.Engine
	catalog *plan.Catalog
	journal *journal.Store

	logBufMu sync.Mutex
	logBuf   []logEntry
}

type logEntry struct {
	TS        string `json:"ts"`
	Level     string `json:"level"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// New creates an App in the BOOTING state. Call Run to start serving.
func New(opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "mitpland: ", log.LstdFlags)
	}
	a := &App{
		log:        opts.Logger,
		cfg:        opts.Cfg,
		configPath: opts.ConfigPath,
		bind:       opts.Bind,
		startedAt:  time.Now(),
		wsHub:      ws.NewHub(),
	}
	a.state.Store("BOOTING")
	a.source.Store("not started")
	return a
}

// setup opens the journal, loads the plan catalog and builds the engine.
func (a *App) setup() error {
	cfg := a.getConfig()

	if err := os.MkdirAll(cfg.Data.Root, 0o755); err != nil {
		return fmt.Errorf("create data root: %w", err)
	}

	codes, err := cfg.Codes()
	if err != nil {
		return err
	}

	a.catalog = plan.NewCatalog(cfg.PlansDir(), a.log)
	if err := a.catalog.Reload(); err != nil {
		a.log.Printf("plans: %v", err)
	}

	var jr engine.Journal
	if cfg.Journal.Enabled {
		st, err := journal.Open(cfg.JournalPath())
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		if n, err := st.AbortActive(time.Now()); err != nil {
			a.log.Printf("journal: %v", err)
		} else if n > 0 {
			a.log.Printf("journal: marked %d unfinished pull(s) aborted", n)
		}
		a.journal = st
		jr = st
	}

	a.engine = engine.New(engine.Options{
		Logger:     a.log,
		Sink:       a,
		Classifier: classify.New(codes),
		Combat:     combat.Config{EndGrace: cfg.EndGrace(), EndedDecay: cfg.EndedDecay()},
		Catalog:    a.catalog,
		Zones:      plan.NewZones(cfg.Zones),
		AutoLoad:   cfg.Plans.AutoLoad,
		Journal:    jr,
		Player: engine.Player{
			Job:         cfg.Player.Job,
			Role:        cfg.Player.Role,
			ShowOwnOnly: cfg.Player.ShowOwnOnly,
		},
		Timeline: engine.TimelineOptions{
			WindowSeconds: cfg.Timeline.WindowSeconds,
			MaxItems:      cfg.Timeline.MaxItems,
		},
		Cues: cue.Options{
			Sound:          cfg.Cues.Sound,
			SoundType:      cfg.Cues.SoundType,
			VoiceCountdown: cfg.Cues.VoiceCountdown,
			VoiceActions:   cfg.Cues.VoiceActions,
		},
		TickInterval: cfg.TickInterval(),
		OnPhase: func(_, to combat.Phase) {
			a.state.Store(to.String())
		},
	})

	a.wsHub.OnConnect = func() any {
		return telemetry.Snapshot{
			Event: telemetry.New(telemetry.EventSnapshot, component),
			State: a.engine.Snapshot(),
		}
	}
	return nil
}

// Run starts the HTTP server, the WebSocket hub, the engine, the plan
// watcher, the heartbeat ticker and the configured host source. It blocks
// until the context is cancelled or the server returns an error.
func (a *App) Run(ctx context.Context) error {
	if err := a.setup(); err != nil {
		return err
	}
	if a.journal != nil {
		defer a.journal.Close()
	}
	cfg := a.getConfig()

	bind := a.bind
	if bind == "" {
		bind = cfg.Server.Bind
	}
	a.server = &http.Server{
		Addr:              bind,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	a.log.Printf("listening on http://%s", bind)

	engineDone := make(chan struct{})
	go func() {
		a.engine.Run(ctx)
		close(engineDone)
	}()
	go a.wsHub.Run(ctx)
	a.transition(combat.Idle.String())
	go a.heartbeatLoop(ctx)

	if cfg.Plans.Watch {
		a.catalog.OnChange(func() {
			res := a.engine.Do(ctx, engine.CmdRefreshPlan, nil)
			if !res.OK && res.Error != "" {
				a.logf("warn", "plan refresh: %s", res.Error)
			}
		})
		go func() {
			if err := a.catalog.Watch(ctx); err != nil {
				a.logf("warn", "plan watcher: %v", err)
			}
		}()
	}

	go a.runSource(ctx, cfg)

	go func() {
		<-ctx.Done()
		a.log.Printf("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
	}()

	err = a.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		// Let the engine record the pull it was in before the journal closes.
		<-engineDone
		return nil
	}
	return err
}

// runSource feeds the engine from the configured host source until ctx is
// cancelled.
func (a *App) runSource(ctx context.Context, cfg config.Config) {
	submit := a.engine.Submit
	var err error

	switch cfg.Source.Mode {
	case config.SourceOverlayPlugin:
		a.setSource("overlayplugin connecting to " + cfg.Source.OverlayURL)
		p := host.NewOverlayPlugin(cfg.Source.OverlayURL, a.log)
		p.OnConnect = func() {
			a.setSource("overlayplugin " + cfg.Source.OverlayURL)
			a.logf("info", "connected to OverlayPlugin at %s", cfg.Source.OverlayURL)
		}
		err = p.Run(ctx, submit)

	case config.SourceNetlog:
		t := host.NewTailer(cfg.Source.LogDir, a.log)
		t.FromStart = cfg.Source.FromStart
		a.setSource("netlog " + cfg.Source.LogDir)
		err = t.Run(ctx, submit)

	case config.SourceReplay:
		a.setSource("replay " + cfg.Source.ReplayFile)
		err = a.playReplay(ctx, cfg.Source.ReplayFile, cfg.Source.ReplaySpeed, submit)

	case config.SourceDemo:
		r := demo.New(submit, a.log)
		r.Interval = time.Duration(cfg.Demo.IntervalSeconds) * time.Second
		r.PullLength = time.Duration(cfg.Demo.PullSeconds) * time.Second
		r.WipeChance = cfg.Demo.WipeChance
		a.setSource("demo")
		r.Run(ctx)

	default:
		a.setSource("none")
		return
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		a.setSource(cfg.Source.Mode + " failed: " + err.Error())
		a.logf("error", "source %s: %v", cfg.Source.Mode, err)
	}
}

func (a *App) playReplay(ctx context.Context, path string, speed float64, fn host.Handler) error {
	rc, err := replay.Open(path)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := replay.Play(ctx, rc, speed, fn); err != nil {
		return err
	}
	a.logf("info", "replay of %s finished", path)
	a.setSource("replay finished")
	return nil
}

func (a *App) setSource(s string) { a.source.Store(s) }

// transition updates the daemon state and broadcasts the change to all
// connected WebSocket clients. Combat phase changes arrive from the engine,
// which broadcasts them itself.
func (a *App) transition(newState string) {
	old := a.state.Load().(string)
	if old == newState {
		return
	}
	a.state.Store(newState)
	a.wsHub.BroadcastJSON(telemetry.StateTransition{
		Event: telemetry.New(telemetry.EventState, component),
		From:  old,
		To:    newState,
	})
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.wsHub.BroadcastJSON(telemetry.Heartbeat{
				Event:         telemetry.New(telemetry.EventHeartbeat, component),
				State:         a.state.Load().(string),
				UptimeSeconds: int64(time.Since(a.startedAt).Seconds()),
			})
		}
	}
}

// BroadcastJSON is the engine's event sink. Log lines below the configured
// level are dropped; the rest are kept in the log ring and every event is
// forwarded to the hub.
func (a *App) BroadcastJSON(v any) {
	if l, ok := v.(telemetry.LogLine); ok {
		if levelRank[l.Level] < levelRank[a.getConfig().Logging.Level] {
			return
		}
		a.appendLog(logEntry{TS: l.TS, Level: l.Level, Component: l.Component, Message: l.Message})
	}
	a.wsHub.BroadcastJSON(v)
}

// logf logs through the daemon logger and emits a log event.
func (a *App) logf(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.log.Printf("%s: %s", level, msg)
	a.BroadcastJSON(telemetry.LogLine{
		Event:   telemetry.New(telemetry.EventLog, component),
		Level:   level,
		Message: msg,
	})
}

func (a *App) appendLog(e logEntry) {
	a.logBufMu.Lock()
	defer a.logBufMu.Unlock()
	if len(a.logBuf) >= logBufSize {
		copy(a.logBuf, a.logBuf[1:])
		a.logBuf = a.logBuf[:len(a.logBuf)-1]
	}
	a.logBuf = append(a.logBuf, e)
}

func (a *App) getConfig() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}
