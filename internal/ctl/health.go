package ctl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Health asks the daemon for its component checks via GET /healthz.
func Health(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	status, body, err := getRaw(baseURL, "/healthz", "application/json")
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": baseURL, "error": err.Error()})
		}
		return err
	}

	var resp struct {
		Healthy bool                      `json:"healthy"`
		Checks  map[string]map[string]any `json:"checks"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("HTTP %d: %s", status, strings.TrimSpace(string(body)))
	}
	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Fprintln(out)
	if resp.Healthy {
		fmt.Fprintf(out, "  %s  mitpland is healthy at %s\n", okStyle.Render("HEALTHY"), dimStyle.Render(baseURL))
	} else {
		fmt.Fprintf(out, "  %s  mitpland returned HTTP %d at %s\n", failStyle.Render("UNHEALTHY"), status, dimStyle.Render(baseURL))
	}

	names := make([]string, 0, len(resp.Checks))
	for name := range resp.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := resp.Checks[name]
		mark := okStyle.Render("ok  ")
		if ok, _ := c["ok"].(bool); !ok {
			mark = failStyle.Render("FAIL")
		}
		var detail []string
		for _, k := range []string{"path", "status", "loaded", "failures", "error"} {
			if v, ok := c[k]; ok {
				detail = append(detail, fmt.Sprintf("%s=%v", k, v))
			}
		}
		fmt.Fprintf(out, "    %s %s %s\n", mark, padRight(name, 12), dimStyle.Render(strings.Join(detail, " ")))
	}
	fmt.Fprintln(out)
	return nil
}
