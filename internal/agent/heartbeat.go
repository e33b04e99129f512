package agent

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/bitriver/fleet-agent/internal/hostsampler"
)

// HeartbeatTicker enqueues a heartbeat message at most once per interval,
// suppressed while no session is open. Host sampling is best-effort: any
// field the sampler could not obtain is reported as zero.
type HeartbeatTicker struct {
	state   *State
	sampler hostsampler.Sampler
	logger  *slog.Logger
}

// NewHeartbeatTicker constructs a HeartbeatTicker bound to state, sampling
// host metrics through sampler.
func NewHeartbeatTicker(state *State, sampler hostsampler.Sampler) *HeartbeatTicker {
	return &HeartbeatTicker{
		state:   state,
		sampler: sampler,
		logger:  state.Logger.With("component", "heartbeat"),
	}
}

// Run ticks every state.Config.HeartbeatInterval until ctx is cancelled.
func (h *HeartbeatTicker) Run(ctx context.Context) {
	ticker := time.NewTicker(h.state.Config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

func (h *HeartbeatTicker) tick() {
	if h.state.Session() == nil {
		return
	}

	sample := h.sampler.Sample(int32(os.Getpid()))
	h.logger.Debug("host sample",
		"loadAvg1", sample.LoadAvg1,
		"memUsed", sample.MemUsed,
		"memTotal", sample.MemTotal,
		"processCPUPercent", sample.ProcessCPUPercent,
		"processRSS", sample.ProcessRSS,
		"processNumFDs", sample.ProcessNumFDs,
	)

	text, err := encode(heartbeatMessage{
		Type: "heartbeat",
		Payload: heartbeatPayload{
			ID:         h.state.Config.AgentID,
			ActiveJobs: h.state.ActiveJobs(),
			CPU:        sample.LoadAvg1,
			MemUsed:    sample.MemUsed,
			MemTotal:   sample.MemTotal,
		},
	})
	if err != nil {
		h.logger.Error("failed to encode heartbeat message", "error", err)
		return
	}
	h.state.Outbound.Enqueue(text)
}
