package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/large-farva/mitplan-engine/internal/cue"
	"github.com/large-farva/mitplan-engine/internal/jobs"
	"github.com/large-farva/mitplan-engine/internal/plan"
)

// Command types accepted by Exec and Do.
const (
	CmdLoadPlan    = "load_plan"
	CmdClearPlan   = "clear_plan"
	CmdRefreshPlan = "refresh_plan"
	CmdSetPlayer   = "set_player"
	CmdSetCues     = "set_cues"
	CmdSetTimeline = "set_timeline"
	CmdForceStart  = "force_start"
	CmdForceEnd    = "force_end"
	CmdForceWipe   = "force_wipe"
	CmdClockStart  = "clock_start"
	CmdClockStop   = "clock_stop"
	CmdClockReset  = "clock_reset"
)

// Command is an external request for the engine goroutine. The Reply
// channel receives exactly one result.
type Command struct {
	Type    string
	Payload json.RawMessage
	Reply   chan<- CommandResult
}

// CommandResult is the response sent back through a Command's Reply channel.
type CommandResult struct {
	OK       bool     `json:"ok"`
	Message  string   `json:"message,omitempty"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Data     any      `json:"data,omitempty"`
}

func failed(format string, args ...any) CommandResult {
	return CommandResult{OK: false, Error: fmt.Sprintf(format, args...)}
}

// LoadPlanPayload selects the plan to load: a catalog id, a base64 export
// string or an inline plan, checked in that order.
type LoadPlanPayload struct {
	ID   string     `json:"id,omitempty"`
	Data string     `json:"data,omitempty"`
	Plan *plan.Plan `json:"plan,omitempty"`
	// Save writes an imported plan into the plan directory.
	Save bool `json:"save,omitempty"`
}

// PlayerPayload changes the player settings. Nil fields are left alone.
type PlayerPayload struct {
	Job         *string `json:"job,omitempty"`
	Role        *string `json:"role,omitempty"`
	ShowOwnOnly *bool   `json:"showOwnOnly,omitempty"`
}

// Do queues a command for the running engine and waits for the result.
func (e *Engine) Do(ctx context.Context, typ string, payload any) CommandResult {
	raw, err := marshalPayload(payload)
	if err != nil {
		return failed("invalid payload: %v", err)
	}
	reply := make(chan CommandResult, 1)
	cmd := Command{Type: typ, Payload: raw, Reply: reply}
	select {
	case e.inbox <- cmd:
	case <-e.done:
		return failed("engine stopped")
	case <-ctx.Done():
		return failed("%v", ctx.Err())
	}
	select {
	case res := <-reply:
		return res
	case <-e.done:
		return failed("engine stopped")
	case <-ctx.Done():
		return failed("%v", ctx.Err())
	}
}

func marshalPayload(v any) (json.RawMessage, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	}
	return json.Marshal(v)
}

// Exec runs a command on the calling goroutine. Use it only when driving the
// engine synchronously; otherwise use Do.
func (e *Engine) Exec(typ string, payload json.RawMessage) CommandResult {
	res := e.handleCommand(typ, payload)
	e.refresh()
	return res
}

func (e *Engine) handleCommand(typ string, payload json.RawMessage) CommandResult {
	switch typ {
	case CmdLoadPlan:
		return e.handleLoadPlan(payload)
	case CmdClearPlan:
		if e.plan == nil {
			return CommandResult{OK: true, Message: "no plan loaded"}
		}
		e.setPlan(nil, "cleared by user")
		return CommandResult{OK: true, Message: "plan cleared"}
	case CmdRefreshPlan:
		return e.handleRefreshPlan()
	case CmdSetPlayer:
		return e.handleSetPlayer(payload)
	case CmdSetCues:
		return e.handleSetCues(payload)
	case CmdSetTimeline:
		return e.handleSetTimeline(payload)
	case CmdForceStart:
		e.machine.ForceStartCombat()
		return CommandResult{OK: true, Message: "combat start forced"}
	case CmdForceEnd:
		e.machine.ForceEndCombat()
		return CommandResult{OK: true, Message: "combat end forced"}
	case CmdForceWipe:
		e.machine.ForceWipe()
		return CommandResult{OK: true, Message: "wipe forced"}
	case CmdClockStart:
		e.clock.Start(e.now())
		return CommandResult{OK: true, Message: "clock started"}
	case CmdClockStop:
		e.clock.Stop()
		return CommandResult{OK: true, Message: "clock stopped"}
	case CmdClockReset:
		e.clock.Reset()
		e.tracker.Reset()
		return CommandResult{OK: true, Message: "clock reset"}
	}
	return failed("unknown command: %s", typ)
}

func (e *Engine) handleLoadPlan(raw json.RawMessage) CommandResult {
	var payload LoadPlanPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return failed("invalid payload: %v", err)
	}

	switch {
	case payload.ID != "":
		if e.catalog == nil {
			return failed("no plan catalog")
		}
		p, ok := e.catalog.ByID(payload.ID)
		if !ok {
			return failed("unknown plan: %s", payload.ID)
		}
		e.setPlan(p, "loaded by id")
		return CommandResult{OK: true, Message: fmt.Sprintf("loaded plan %s", p.ID), Data: planInfo(p)}

	case payload.Data != "" || payload.Plan != nil:
		p := payload.Plan
		if payload.Data != "" {
			var err error
			if p, err = plan.Decode(payload.Data); err != nil {
				return failed("%v", err)
			}
		}
		var rep plan.Report
		if e.catalog != nil {
			var imported *plan.Plan
			imported, rep = e.catalog.Import(p)
			if imported == nil {
				return CommandResult{OK: false, Error: rep.Err().Error(), Warnings: rep.Warnings}
			}
			p = imported
		} else if rep = plan.Validate(p); !rep.Valid() {
			return CommandResult{OK: false, Error: rep.Err().Error(), Warnings: rep.Warnings}
		}
		msg := fmt.Sprintf("imported plan %s", p.DisplayName())
		if payload.Save {
			if e.catalog == nil {
				return failed("no plan catalog")
			}
			path, err := e.catalog.Save(p)
			if err != nil {
				return failed("%v", err)
			}
			msg += " (saved to " + path + ")"
		}
		e.setPlan(p, "imported")
		return CommandResult{OK: true, Message: msg, Warnings: rep.Warnings, Data: planInfo(p)}
	}
	return failed("payload needs id, data or plan")
}

// handleRefreshPlan swaps the loaded plan for the catalog's current copy of
// it, after the plan directory changed on disk.
func (e *Engine) handleRefreshPlan() CommandResult {
	if e.plan == nil || e.catalog == nil || e.plan.ID == "" {
		return CommandResult{OK: true, Message: "nothing to refresh"}
	}
	p, ok := e.catalog.ByID(e.plan.ID)
	if !ok {
		return CommandResult{OK: true, Message: fmt.Sprintf("plan %s no longer in catalog; keeping loaded copy", e.plan.ID)}
	}
	if p == e.plan {
		return CommandResult{OK: true, Message: "plan unchanged"}
	}
	e.setPlan(p, "reloaded from disk")
	return CommandResult{OK: true, Message: fmt.Sprintf("reloaded plan %s", p.ID)}
}

func (e *Engine) handleSetPlayer(raw json.RawMessage) CommandResult {
	var payload PlayerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return failed("invalid payload: %v", err)
	}

	next := e.player
	if payload.Job != nil {
		job := strings.ToUpper(strings.TrimSpace(*payload.Job))
		if job != "" {
			if _, ok := jobs.Lookup(job); !ok {
				return failed("unknown job: %s", *payload.Job)
			}
		}
		next.Job = job
	}
	if payload.Role != nil {
		next.Role = strings.ToUpper(strings.TrimSpace(*payload.Role))
	}
	if payload.ShowOwnOnly != nil {
		next.ShowOwnOnly = *payload.ShowOwnOnly
	}
	if next.Role != "" && !roleValid(next.Role, next.Job) {
		if payload.Role != nil {
			return failed("role %s is not valid for %s (options: %s)", next.Role, next.Job, strings.Join(jobs.RoleOptions(next.Job), ", "))
		}
		// The job changed under an old role.
		next.Role = ""
	}

	e.player = next
	e.emitted.callout = ""
	e.emitted.timeline = ""
	e.emitted.raidPlan = ""
	e.sink.BroadcastJSON(newPlayer(e.player))
	e.logf("info", "player set to job=%q role=%q showOwnOnly=%t", next.Job, next.Role, next.ShowOwnOnly)
	return CommandResult{OK: true, Message: "player updated", Data: e.player}
}

func roleValid(role, job string) bool {
	return jobs.RoleValidForJob(role, job)
}

func (e *Engine) handleSetCues(raw json.RawMessage) CommandResult {
	s := cueSettings(e.tracker.Options())
	if err := json.Unmarshal(raw, &s); err != nil {
		return failed("invalid payload: %v", err)
	}
	if s.SoundType == "" {
		s.SoundType = cue.SoundInfo
	}
	if !cue.ValidSoundType(s.SoundType) {
		return failed("unknown sound type %q (want one of %s)", s.SoundType, strings.Join(cue.SoundTypes, ", "))
	}
	e.tracker.SetOptions(s.options())
	return CommandResult{OK: true, Message: "cue settings updated", Data: s}
}

func (e *Engine) handleSetTimeline(raw json.RawMessage) CommandResult {
	t := e.timeline
	if err := json.Unmarshal(raw, &t); err != nil {
		return failed("invalid payload: %v", err)
	}
	if t.WindowSeconds <= 0 || t.MaxItems <= 0 {
		return failed("windowSeconds and maxItems must be positive")
	}
	e.timeline = t
	e.emitted.timeline = ""
	return CommandResult{OK: true, Message: "timeline updated", Data: t}
}
