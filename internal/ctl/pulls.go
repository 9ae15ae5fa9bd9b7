package ctl

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// pullRecord mirrors one row of GET /api/pulls.
type pullRecord struct {
	ID        string  `json:"id"`
	ZoneID    int     `json:"zoneId"`
	Zone      string  `json:"zone"`
	Fight     string  `json:"fight"`
	PlanID    string  `json:"planId"`
	StartedAt string  `json:"startedAt"`
	EndedAt   string  `json:"endedAt"`
	Elapsed   float64 `json:"elapsed"`
	Outcome   string  `json:"outcome"`
}

type pullStats struct {
	Total     int            `json:"total"`
	Active    int            `json:"active"`
	ByOutcome map[string]int `json:"byOutcome"`
	ByFight   []struct {
		Fight       string  `json:"fight"`
		Pulls       int     `json:"pulls"`
		Wipes       int     `json:"wipes"`
		Ended       int     `json:"ended"`
		LongestPull float64 `json:"longestPull"`
		TotalTime   float64 `json:"totalTime"`
	} `json:"byFight"`
}

// PullsOptions selects what Pulls prints.
type PullsOptions struct {
	ID    string
	Limit int
	JSON  bool
}

// Pulls prints the pull journal, newest first, or a single pull by id.
func Pulls(baseURL string, opts PullsOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	if opts.ID != "" {
		var p pullRecord
		if err := getJSON(baseURL, "/api/pulls?id="+url.QueryEscape(opts.ID), &p); err != nil {
			return err
		}
		if opts.JSON {
			return printJSON(p)
		}
		header("PULL "+p.ID, 50)
		field("Zone", fmt.Sprintf("%s (%d)", p.Zone, p.ZoneID))
		field("Fight", orDim(p.Fight, "unknown"))
		field("Plan", orDim(p.PlanID, "none"))
		field("Started", p.StartedAt+dimStyle.Render(" "+formatAgo(p.StartedAt)))
		if p.EndedAt != "" {
			field("Ended", p.EndedAt)
		}
		field("Length", formatFightTime(p.Elapsed))
		field("Outcome", outcomeStyle(p.Outcome).Render(outcomeLabel(p.Outcome)))
		fmt.Fprintln(out)
		return nil
	}

	path := "/api/pulls"
	if opts.Limit > 0 {
		path += "?limit=" + strconv.Itoa(opts.Limit)
	}
	var resp struct {
		Pulls []pullRecord `json:"pulls"`
	}
	if err := getJSON(baseURL, path, &resp); err != nil {
		return err
	}
	if opts.JSON {
		return printJSON(resp)
	}

	header("PULLS", 70)
	if len(resp.Pulls) == 0 {
		fmt.Fprintln(out, "  No pulls recorded.")
	}
	for _, p := range resp.Pulls {
		fight := p.Fight
		if fight == "" {
			fight = p.Zone
		}
		fmt.Fprintf(out, "  %s %s %s %s %s\n",
			dimStyle.Render(padRight(p.ID[:min(8, len(p.ID))], 9)),
			padRight(fight, 14),
			padRight(formatFightTime(p.Elapsed), 6),
			outcomeStyle(p.Outcome).Render(padRight(outcomeLabel(p.Outcome), 8)),
			dimStyle.Render(formatAgo(p.StartedAt)),
		)
	}
	fmt.Fprintln(out)
	return nil
}

// PullStats prints journal totals per outcome and per fight.
func PullStats(baseURL string, jsonOutput bool) error {
	var st pullStats
	if err := getJSON(baseURL, "/api/pulls/stats", &st); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(st)
	}

	header("PULL STATS", 60)
	field("Total", st.Total)
	if st.Active > 0 {
		field("Active", accentStyle.Render(strconv.Itoa(st.Active)))
	}
	outcomes := make([]string, 0, len(st.ByOutcome))
	for o := range st.ByOutcome {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		field(outcomeLabel(o), outcomeStyle(o).Render(strconv.Itoa(st.ByOutcome[o])))
	}

	if len(st.ByFight) > 0 {
		fmt.Fprintln(out)
		for _, f := range st.ByFight {
			name := f.Fight
			if name == "" {
				name = "unknown"
			}
			fmt.Fprintf(out, "  %s %3d pulls  %s  %s  %s\n",
				boldStyle.Render(padRight(name, 12)),
				f.Pulls,
				failStyle.Render(fmt.Sprintf("%3d wipes", f.Wipes)),
				okStyle.Render(fmt.Sprintf("%3d ended", f.Ended)),
				dimStyle.Render(fmt.Sprintf("best %s, total %s", formatFightTime(f.LongestPull), formatFightTime(f.TotalTime))),
			)
		}
	}
	fmt.Fprintln(out)
	return nil
}

func outcomeLabel(o string) string {
	if o == "" {
		return "active"
	}
	return o
}
