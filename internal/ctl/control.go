package ctl

import (
	"fmt"
	"net/http"
)

var controlPaths = map[string]string{
	"start":       "/api/combat/start",
	"end":         "/api/combat/end",
	"wipe":        "/api/combat/wipe",
	"clock-start": "/api/clock/start",
	"clock-stop":  "/api/clock/stop",
	"clock-reset": "/api/clock/reset",
}

// ControlActions lists the accepted Control actions.
var ControlActions = []string{"start", "end", "wipe", "clock-start", "clock-stop", "clock-reset"}

// Control sends a manual combat or clock command.
func Control(baseURL, action string, jsonOutput bool) error {
	path, ok := controlPaths[action]
	if !ok {
		return fmt.Errorf("unknown action %q", action)
	}
	res, err := sendCommand(baseURL, http.MethodPost, path, nil)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(res)
	}
	result("OK", res.OK, res.Message, res.Error, res.Warnings)
	return nil
}
