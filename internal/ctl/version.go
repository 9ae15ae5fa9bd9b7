package ctl

import (
	"fmt"
	"strings"
)

// Build-time variables set via -ldflags.
var (
	Version   = "dev"
	GoVersion = "unknown"
)

// VersionInfo fetches daemon version via GET /api/version and displays both
// the CLI and daemon version information.
func VersionInfo(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var daemon struct {
		Version   string `json:"version"`
		GoVersion string `json:"go_version"`
		BuiltAt   string `json:"built_at"`
		OS        string `json:"os"`
		Arch      string `json:"arch"`
	}
	daemonErr := getJSON(baseURL, "/api/version", &daemon)

	if jsonOutput {
		resp := map[string]any{
			"cli": map[string]any{
				"version":    Version,
				"go_version": GoVersion,
			},
		}
		if daemonErr == nil {
			resp["daemon"] = daemon
		} else {
			resp["daemon_error"] = daemonErr.Error()
		}
		return printJSON(resp)
	}

	header("MITPLAN VERSION", 38)
	field("CLI", Version+" ("+GoVersion+")")
	if daemonErr != nil {
		field("Daemon", failStyle.Render("unreachable: "+daemonErr.Error()))
	} else {
		field("Daemon", daemon.Version+" ("+daemon.GoVersion+")")
		field("Built", daemon.BuiltAt)
		field("Platform", daemon.OS+"/"+daemon.Arch)
	}
	fmt.Fprintln(out)
	return nil
}
