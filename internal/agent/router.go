package agent

import (
	"context"
	"encoding/json"
)

// Router interprets inbound control messages, dispatching by the string
// field "type". Unknown or malformed messages are silently dropped; there is
// no negative acknowledgment path back to the controller.
type Router struct {
	state    *State
	executor *Executor
}

// NewRouter constructs a Router bound to state, spawning job executors
// through executor.
func NewRouter(state *State, executor *Executor) *Router {
	return &Router{state: state, executor: executor}
}

// Dispatch parses raw as a JSON envelope and routes it by type. ctx is the
// parent context for any job executor spawned as a result (typically the
// session's lifetime context).
func (r *Router) Dispatch(ctx context.Context, raw []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.state.Logger.Debug("dropping malformed inbound message", "error", err)
		return
	}

	switch env.Type {
	case "lease":
		r.handleLease(ctx, env.Payload)
	default:
		r.state.Logger.Debug("dropping unknown inbound message type", "type", env.Type)
	}
}

func (r *Router) handleLease(ctx context.Context, raw json.RawMessage) {
	var payload leasePayload
	if err := json.Unmarshal(raw, &payload); err != nil || !payload.valid() {
		r.state.Logger.Debug("dropping malformed lease", "error", err)
		r.state.Metrics.LeaseDropped("malformed")
		return
	}

	if !r.state.TryAdmit() {
		r.state.Logger.Debug("dropping lease, at capacity", "jobId", payload.JobID)
		r.state.Metrics.LeaseDropped("admission")
		return
	}

	lease := newLeaseFromPayload(payload)
	r.emitLeaseAccepted(lease.JobID)
	r.state.Metrics.JobStarted()

	go r.executor.Run(ctx, lease)
}

func (r *Router) emitLeaseAccepted(jobID string) {
	text, err := encode(leaseAcceptedMessage{
		Type: "lease-accepted",
		Payload: leaseAcceptedPayload{
			AgentID: r.state.Config.AgentID,
			JobID:   jobID,
		},
	})
	if err != nil {
		r.state.Logger.Error("failed to encode lease-accepted message", "error", err)
		return
	}
	r.state.Outbound.Enqueue(text)
}
