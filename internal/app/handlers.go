package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/large-farva/mitplan-engine/internal/config"
	"github.com/large-farva/mitplan-engine/internal/engine"
	"github.com/large-farva/mitplan-engine/internal/journal"
	"github.com/large-farva/mitplan-engine/internal/plan"
)

// maxBody caps request bodies; exported plans are the largest payloads.
const maxBody = 4 << 20

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/version", a.handleVersion)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/logs", a.handleLogs)
	mux.HandleFunc("/api/reload", a.handleReload)

	mux.HandleFunc("/api/plans", a.handlePlans)
	mux.HandleFunc("/api/plan", a.handlePlan)
	mux.HandleFunc("/api/player", a.handlePlayer)
	mux.HandleFunc("/api/cues", a.handleCues)
	mux.HandleFunc("/api/timeline", a.handleTimeline)

	mux.HandleFunc("/api/combat/start", a.commandHandler(engine.CmdForceStart))
	mux.HandleFunc("/api/combat/end", a.commandHandler(engine.CmdForceEnd))
	mux.HandleFunc("/api/combat/wipe", a.commandHandler(engine.CmdForceWipe))
	mux.HandleFunc("/api/clock/start", a.commandHandler(engine.CmdClockStart))
	mux.HandleFunc("/api/clock/stop", a.commandHandler(engine.CmdClockStop))
	mux.HandleFunc("/api/clock/reset", a.commandHandler(engine.CmdClockReset))

	mux.HandleFunc("/api/pulls", a.handlePulls)
	mux.HandleFunc("/api/pulls/stats", a.handlePullStats)

	mux.Handle("/ws", a.wsHub.Handler())
	return mux
}

// ---------------------------------------------------------------------------
// Core handlers
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()

	resp := map[string]any{
		"name":           "mitplan-engine",
		"state":          a.state.Load().(string),
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"mode":           cfg.Source.Mode,
		"source":         a.source.Load().(string),
		"data_root":      cfg.Data.Root,
		"plans_dir":      cfg.PlansDir(),
		"clients":        a.wsHub.Clients(),
		"dropped_events": a.wsHub.Dropped(),
		"engine":         a.engine.Snapshot(),
	}
	if cfg.Journal.Enabled {
		resp["journal"] = cfg.JournalPath()
	}
	if du := diskUsage(cfg.Data.Root); du != nil {
		resp["disk"] = du
	}

	writeJSON(w, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"version":    Version,
		"go_version": GoVersion,
		"built_at":   BuiltAt,
		"runtime":    runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	})
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.getConfig())
}

func (a *App) handleLogs(w http.ResponseWriter, r *http.Request) {
	a.logBufMu.Lock()
	entries := make([]logEntry, len(a.logBuf))
	copy(entries, a.logBuf)
	a.logBufMu.Unlock()

	// Apply filters.
	levelFilter := r.URL.Query().Get("level")
	if levelFilter != "" {
		filtered := []logEntry{}
		for _, e := range entries {
			if e.Level == levelFilter {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}

	writeJSON(w, map[string]any{"logs": entries})
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()

	checks := map[string]any{}
	allOK := true

	// Check data directory.
	tmpPath := filepath.Join(cfg.Data.Root, ".healthcheck")
	if err := os.WriteFile(tmpPath, []byte("ok"), 0o644); err != nil {
		checks["data_dir"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else {
		os.Remove(tmpPath)
		checks["data_dir"] = map[string]any{"ok": true, "path": cfg.Data.Root}
	}

	// Plans that failed to load are reported but do not make the daemon
	// unhealthy.
	failures := a.catalog.Failures()
	checks["plans"] = map[string]any{
		"ok":       true,
		"loaded":   len(a.catalog.List()),
		"failures": len(failures),
	}

	if a.journal != nil {
		if _, err := a.journal.List(1); err != nil {
			checks["journal"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["journal"] = map[string]any{"ok": true, "path": cfg.JournalPath()}
		}
	}

	src := a.source.Load().(string)
	srcOK := !strings.Contains(src, "failed")
	if !srcOK {
		allOK = false
	}
	checks["source"] = map[string]any{"ok": srcOK, "status": src}

	// Config file readable.
	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil {
			checks["config_file"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["config_file"] = map[string]any{"ok": true, "path": a.configPath}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

// ---------------------------------------------------------------------------
// Plans
// ---------------------------------------------------------------------------

// handlePlans lists the catalog. POST rescans the plan directory.
func (a *App) handlePlans(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		if err := a.catalog.Reload(); err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if res := a.engine.Do(r.Context(), engine.CmdRefreshPlan, nil); !res.OK {
			writeCommandResult(w, res)
			return
		}
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	failures := a.catalog.Failures()
	writeJSON(w, map[string]any{
		"dir":      a.catalog.Dir(),
		"plans":    a.catalog.List(),
		"failures": failures,
	})
}

// handlePlan serves the loaded plan (GET), loads one (POST) or clears it
// (DELETE). GET ?format=export returns the base64 sharing string.
func (a *App) handlePlan(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		p := a.engine.Plan()
		if p == nil {
			jsonError(w, "no plan loaded", http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("format") == "export" {
			s, err := plan.Encode(p)
			if err != nil {
				jsonError(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, map[string]any{"id": p.ID, "data": s})
			return
		}
		writeJSON(w, p)

	case http.MethodPost:
		var req engine.LoadPlanPayload
		if !decodeBody(w, r, &req) {
			return
		}
		writeCommandResult(w, a.engine.Do(r.Context(), engine.CmdLoadPlan, req))

	case http.MethodDelete:
		writeCommandResult(w, a.engine.Do(r.Context(), engine.CmdClearPlan, nil))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ---------------------------------------------------------------------------
// Player, cues and timeline settings
// ---------------------------------------------------------------------------

func (a *App) handlePlayer(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, a.engine.Snapshot().Player)
	case http.MethodPost:
		var req engine.PlayerPayload
		if !decodeBody(w, r, &req) {
			return
		}
		writeCommandResult(w, a.engine.Do(r.Context(), engine.CmdSetPlayer, req))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *App) handleCues(w http.ResponseWriter, r *http.Request) {
	a.settingsHandler(w, r, engine.CmdSetCues, func(s engine.Snapshot) any { return s.Cues })
}

func (a *App) handleTimeline(w http.ResponseWriter, r *http.Request) {
	a.settingsHandler(w, r, engine.CmdSetTimeline, func(s engine.Snapshot) any { return s.Timeline })
}

// settingsHandler serves a settings group from the snapshot on GET and
// passes a POST body through to the engine unchanged.
func (a *App) settingsHandler(w http.ResponseWriter, r *http.Request, cmd string, get func(engine.Snapshot) any) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, get(a.engine.Snapshot()))
	case http.MethodPost:
		var raw json.RawMessage
		if !decodeBody(w, r, &raw) {
			return
		}
		writeCommandResult(w, a.engine.Do(r.Context(), cmd, raw))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ---------------------------------------------------------------------------
// Combat and clock controls
// ---------------------------------------------------------------------------

func (a *App) commandHandler(cmd string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeCommandResult(w, a.engine.Do(r.Context(), cmd, nil))
	}
}

// ---------------------------------------------------------------------------
// Pull journal
// ---------------------------------------------------------------------------

func (a *App) handlePulls(w http.ResponseWriter, r *http.Request) {
	if a.journal == nil {
		jsonError(w, "pull journal disabled", http.StatusConflict)
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		p, err := a.journal.Get(id)
		if errors.Is(err, journal.ErrNotFound) {
			jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, p)
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	pulls, err := a.journal.List(limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if pulls == nil {
		pulls = []journal.Pull{}
	}
	writeJSON(w, map[string]any{"pulls": pulls})
}

func (a *App) handlePullStats(w http.ResponseWriter, _ *http.Request) {
	if a.journal == nil {
		jsonError(w, "pull journal disabled", http.StatusConflict)
		return
	}
	st, err := a.journal.Stats()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, st)
}

// ---------------------------------------------------------------------------
// Reload
// ---------------------------------------------------------------------------

// handleReload re-reads the config file. The log level applies at once and
// the player, cue and timeline sections are pushed into the engine; the
// rest needs a restart and is reported as such.
func (a *App) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	a.cfgMu.RLock()
	loadPath := a.configPath
	oldCfg := a.cfg
	a.cfgMu.RUnlock()

	if loadPath == "" {
		jsonError(w, "no config file path set", http.StatusInternalServerError)
		return
	}

	newCfg, err := config.Load(loadPath)
	if err != nil {
		jsonError(w, "config reload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	a.cfgMu.Lock()
	a.cfg = newCfg
	a.cfgMu.Unlock()

	var warnings []string
	apply := func(cmd string, payload any) {
		if res := a.engine.Do(r.Context(), cmd, payload); !res.OK {
			warnings = append(warnings, cmd+": "+res.Error)
		}
	}
	if newCfg.Player != oldCfg.Player {
		job, role, own := newCfg.Player.Job, newCfg.Player.Role, newCfg.Player.ShowOwnOnly
		apply(engine.CmdSetPlayer, engine.PlayerPayload{Job: &job, Role: &role, ShowOwnOnly: &own})
	}
	if newCfg.Cues != oldCfg.Cues {
		apply(engine.CmdSetCues, engine.CueSettings{
			Sound:          newCfg.Cues.Sound,
			SoundType:      newCfg.Cues.SoundType,
			VoiceCountdown: newCfg.Cues.VoiceCountdown,
			VoiceActions:   newCfg.Cues.VoiceActions,
		})
	}
	if newCfg.Timeline != oldCfg.Timeline {
		apply(engine.CmdSetTimeline, engine.TimelineOptions{
			WindowSeconds: newCfg.Timeline.WindowSeconds,
			MaxItems:      newCfg.Timeline.MaxItems,
		})
	}
	warnings = append(warnings, restartNeeded(oldCfg, newCfg)...)

	a.logf("info", "config reloaded from %s", loadPath)

	writeJSON(w, engine.CommandResult{
		OK:       true,
		Message:  "configuration reloaded from " + loadPath,
		Warnings: warnings,
	})
}

// restartNeeded lists changed sections that only take effect on restart.
func restartNeeded(old, cur config.Config) []string {
	var out []string
	note := func(changed bool, section string) {
		if changed {
			out = append(out, section+" changed; restart to apply")
		}
	}
	note(old.Server != cur.Server, "server")
	note(old.Source != cur.Source, "source")
	note(old.Data != cur.Data, "data")
	note(old.Clock != cur.Clock, "clock")
	note(old.Combat != cur.Combat, "combat")
	note(old.Journal != cur.Journal, "journal")
	note(old.Plans != cur.Plans, "plans")
	note(!sameStrings(old.Classifier.ExtraWipeCommands, cur.Classifier.ExtraWipeCommands) ||
		!sameStrings(old.Classifier.ExtraEngagePatterns, cur.Classifier.ExtraEngagePatterns) ||
		old.Classifier.WipeProfile != cur.Classifier.WipeProfile, "classifier")
	note(!sameMap(old.Zones, cur.Zones), "zones")
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameMap(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		jsonError(w, "read body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		jsonError(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":    false,
		"error": msg,
	})
}

// writeCommandResult writes an engine.CommandResult as JSON. A rejected
// command is the caller's fault, so it maps to 400.
func writeCommandResult(w http.ResponseWriter, result engine.CommandResult) {
	w.Header().Set("Content-Type", "application/json")
	if !result.OK {
		w.WriteHeader(http.StatusBadRequest)
	}
	_ = json.NewEncoder(w).Encode(result)
}
