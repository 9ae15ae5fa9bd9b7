package ctl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// sectionOrder follows the layout of mitplan.toml.
var sectionOrder = []string{
	"data", "logging", "server", "source", "demo", "clock", "combat",
	"classifier", "player", "timeline", "plans", "zones", "journal", "cues",
}

// Config fetches and displays the daemon's running configuration.
func Config(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var cfg map[string]map[string]any
	if err := getJSON(baseURL, "/api/config", &cfg); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cfg)
	}

	header("DAEMON CONFIGURATION", 50)

	seen := map[string]bool{}
	for _, name := range sectionOrder {
		if sec, ok := cfg[name]; ok {
			printSection(name, sec)
			seen[name] = true
		}
	}
	var rest []string
	for name := range cfg {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		printSection(name, cfg[name])
	}
	fmt.Fprintln(out)
	return nil
}

func printSection(name string, sec map[string]any) {
	fmt.Fprintf(out, "\n  %s\n", boldStyle.Render("["+name+"]"))
	keys := make([]string, 0, len(sec))
	for k := range sec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		fmt.Fprintf(out, "    %s\n", dimStyle.Render("(empty)"))
	}
	for _, k := range keys {
		fmt.Fprintf(out, "    %s %s\n", dimStyle.Render(padRight(k+":", 24)), formatValue(sec[k]))
	}
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return `""`
	case string:
		if v == "" {
			return `""`
		}
		return v
	case []any, map[string]any:
		b, _ := json.Marshal(v)
		return string(b)
	}
	return fmt.Sprint(v)
}
