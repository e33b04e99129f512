// Command agent is the worker agent process: it registers with a controller,
// accepts leases up to its configured concurrency, runs the encoder tool per
// lease, streams progress, uploads the produced artifact, and reports
// completion.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitriver/fleet-agent/internal/agent"
)

func main() {
	os.Exit(run())
}

func run() int {
	bootLogger := slog.Default()

	cfg, err := agent.LoadConfigFromEnv(bootLogger)
	if err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	supervisor := agent.NewSupervisor(cfg)
	return supervisor.Run(ctx)
}
