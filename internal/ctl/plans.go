package ctl

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/large-farva/mitplan-engine/internal/engine"
	"github.com/large-farva/mitplan-engine/internal/plan"
)

// Plans lists the daemon's plan catalog. With rescan set the daemon
// re-reads its plan directory first.
func Plans(baseURL string, rescan, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		Dir      string            `json:"dir"`
		Plans    []plan.Info       `json:"plans"`
		Failures map[string]string `json:"failures"`
		Error    string            `json:"error"`
	}
	if rescan {
		res, err := sendCommand(baseURL, http.MethodPost, "/api/plans", nil)
		if err != nil {
			return err
		}
		if res.Error != "" {
			return errors.New(res.Error)
		}
	}
	if err := getJSON(baseURL, "/api/plans", &resp); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(resp)
	}

	header("PLANS", 70)
	field("Directory", resp.Dir)
	fmt.Fprintln(out)
	if len(resp.Plans) == 0 {
		fmt.Fprintln(out, "  No plans found.")
	}
	for _, p := range resp.Plans {
		flags := []string{p.Source}
		if p.IsDefault {
			flags = append(flags, "default")
		}
		if p.RequiresRoles {
			flags = append(flags, "roles")
		}
		fmt.Fprintf(out, "  %s %s %s %s\n",
			boldStyle.Render(padRight(p.ID, 20)),
			padRight(p.FightName, 10),
			padRight(p.Name, 28),
			dimStyle.Render(fmt.Sprintf("%d entries, %s", p.Summary.EntryCount, strings.Join(flags, ", "))),
		)
		for _, w := range p.Warnings {
			fmt.Fprintf(out, "    %s %s\n", warnStyle.Render("warn"), w)
		}
	}

	if len(resp.Failures) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, failStyle.Render("  Failed to load:"))
		paths := make([]string, 0, len(resp.Failures))
		for path := range resp.Failures {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			fmt.Fprintf(out, "    %s  %s\n", path, dimStyle.Render(resp.Failures[path]))
		}
	}
	fmt.Fprintln(out)
	return nil
}

// PlanLoadOptions selects a plan to load. Ref is a catalog id or a local
// plan file; Data is a base64 share string.
type PlanLoadOptions struct {
	Ref  string
	Data string
	Save bool
	JSON bool
}

// PlanLoad loads a plan into the running engine. A local file is parsed and
// validated here and sent inline, so any format plan.Load reads works
// against a remote daemon.
func PlanLoad(baseURL string, opts PlanLoadOptions) error {
	var req engine.LoadPlanPayload
	switch {
	case opts.Data != "":
		req.Data = opts.Data
	case opts.Ref == "":
		return errors.New("plan load needs a plan id, a file or --data")
	default:
		if _, err := os.Stat(opts.Ref); err == nil {
			p, rep, err := plan.Load(opts.Ref)
			if err != nil {
				return err
			}
			for _, w := range rep.Warnings {
				fmt.Fprintf(out, "  %s %s\n", warnStyle.Render("warn"), w)
			}
			req.Plan = p
		} else {
			req.ID = opts.Ref
		}
	}
	req.Save = opts.Save

	res, err := sendCommand(baseURL, http.MethodPost, "/api/plan", req)
	if err != nil {
		return err
	}
	if opts.JSON {
		return printJSON(res)
	}
	result("LOADED", res.OK, res.Message, res.Error, res.Warnings)
	return nil
}

// PlanClear unloads the current plan.
func PlanClear(baseURL string, jsonOutput bool) error {
	res, err := sendCommand(baseURL, http.MethodDelete, "/api/plan", nil)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(res)
	}
	result("CLEARED", res.OK, res.Message, res.Error, res.Warnings)
	return nil
}

// PlanShow prints the loaded plan's timeline, or its share string with
// export set.
func PlanShow(baseURL string, export, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	if export {
		var resp struct {
			ID   string `json:"id"`
			Data string `json:"data"`
		}
		if err := getJSON(baseURL, "/api/plan?format=export", &resp); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(resp)
		}
		fmt.Fprintln(out, resp.Data)
		return nil
	}

	var p plan.Plan
	if err := getJSON(baseURL, "/api/plan", &p); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(p)
	}

	header(strings.ToUpper(p.DisplayName()), 60)
	if p.ID != "" {
		field("ID", p.ID)
	}
	if p.FightName != "" {
		field("Fight", p.FightName)
	}
	field("Version", p.Version)
	fmt.Fprintln(out)
	for _, e := range p.Timeline {
		ts := dimStyle.Render(padRight(formatFightTime(e.Timestamp), 6))
		if e.IsRaidPlan() {
			fmt.Fprintf(out, "  %s %s %s %s\n", ts, accentStyle.Render("IMAGE "),
				e.ImageURL, dimStyle.Render(fmt.Sprintf("until %s %s", formatFightTime(e.EndTimestamp), strings.Join(e.RoleFilters, ","))))
			continue
		}
		who := e.EffectiveJob()
		if e.Role != "" {
			who += " " + e.Role
		}
		line := fmt.Sprintf("  %s %s %s", ts, boldStyle.Render(padRight(who, 12)), e.Ability)
		if e.Note != "" {
			line += dimStyle.Render("  " + e.Note)
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)
	return nil
}
