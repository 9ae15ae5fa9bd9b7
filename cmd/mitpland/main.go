// Mitpland is the mitigation plan overlay daemon.
//
// It loads configuration, starts the HTTP/WebSocket server and the fight
// engine, and feeds the engine from the configured log source (the
// OverlayPlugin websocket, ACT network log files, a recorded log, or a demo
// loop). Shutdown is handled gracefully on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/mitplan-engine/internal/app"
	"github.com/large-farva/mitplan-engine/internal/config"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "mitplan.toml", "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides server.bind)")
		demo       = pflag.Bool("demo", false, "Run the simulated pull loop instead of the configured source")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *demo {
		cfg.Source.Mode = config.SourceDemo
	}

	logger := log.New(os.Stdout, "mitpland ", log.LstdFlags|log.Lmicroseconds)

	a := app.New(app.Options{
		Logger:     logger,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("mitpland failed: %v", err)
	}

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
}
