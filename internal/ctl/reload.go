package ctl

import (
	"net/http"
	"strings"
)

// Reload tells the daemon to re-read its config file from disk.
func Reload(baseURL string, jsonOutput bool) error {
	res, err := sendCommand(strings.TrimRight(baseURL, "/"), http.MethodPost, "/api/reload", nil)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(res)
	}
	result("RELOADED", res.OK, res.Message, res.Error, res.Warnings)
	return nil
}
