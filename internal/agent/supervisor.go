package agent

import (
	"context"

	"github.com/bitriver/fleet-agent/internal/hostsampler"
)

// Supervisor is the top-level lifecycle owner: it constructs state,
// establishes the session, runs the heartbeat ticker alongside it, and
// unwinds everything on shutdown.
type Supervisor struct {
	state *State
}

// NewSupervisor constructs a Supervisor from cfg.
func NewSupervisor(cfg Config) *Supervisor {
	return &Supervisor{state: NewState(cfg)}
}

// Run connects to the controller and services the agent until ctx is
// cancelled or the session terminates. It returns exit code 0 on graceful
// termination (ctx cancelled, e.g. by a shutdown signal) or 1 if the initial
// connection failed.
func (s *Supervisor) Run(ctx context.Context) int {
	logger := s.state.Logger.With("component", "supervisor")

	s.state.Encoders = ProbeEncoders(ctx, s.state.Config.EncoderToolPath)

	runner := NewRunner()
	uploader := NewUploader(s.state.Logger.With("component", "uploader"), s.state.Metrics)
	executor := NewExecutor(s.state, runner, uploader)
	router := NewRouter(s.state, executor)

	sess, err := Connect(ctx, s.state, router)
	if err != nil {
		logger.Error("initial connection failed", "error", err)
		return 1
	}

	heartbeat := NewHeartbeatTicker(s.state, hostsampler.Host{})
	go heartbeat.Run(ctx)

	sess.Run(ctx)

	logger.Info("agent shutting down")
	return 0
}
