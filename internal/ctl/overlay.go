package ctl

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/large-farva/mitplan-engine/internal/overlay"
)

// Overlay runs the full-screen terminal overlay against the daemon.
func Overlay(baseURL string) error {
	u, err := wsURL(baseURL)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return overlay.Run(ctx, u)
}
