package agent

import "encoding/json"

// inboundEnvelope is the shape every message from the controller is parsed
// into before dispatch by Type; unknown or malformed messages are dropped by
// the router rather than surfaced as errors.
type inboundEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// leasePayload is the payload of an inbound "lease" message. OutputExt is
// optional and defaults to ".out" when absent; FFmpegArgs must be present
// and must be an array of strings, enforced by json.Unmarshal's strict typing
// (a non-string element fails decoding and the whole lease is dropped).
type leasePayload struct {
	JobID       string   `json:"jobId"`
	InputURL    string   `json:"inputUrl"`
	OutputURL   string   `json:"outputUrl"`
	OutputExt   string   `json:"outputExt"`
	FFmpegArgs  []string `json:"ffmpegArgs"`
	hasOutputExt bool
}

// UnmarshalJSON tracks whether outputExt was present so the router can tell
// "absent, use default" apart from "present and empty".
func (p *leasePayload) UnmarshalJSON(data []byte) error {
	type alias leasePayload
	var raw struct {
		alias
		OutputExtRaw *string `json:"outputExt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = leasePayload(raw.alias)
	p.hasOutputExt = raw.OutputExtRaw != nil
	if p.hasOutputExt {
		p.OutputExt = *raw.OutputExtRaw
	}
	return nil
}

func (p leasePayload) valid() bool {
	return p.JobID != "" && p.InputURL != "" && p.OutputURL != "" && p.FFmpegArgs != nil
}

func (p leasePayload) outputExtOrDefault() string {
	if p.hasOutputExt && p.OutputExt != "" {
		return p.OutputExt
	}
	return ".out"
}

type registerMessage struct {
	Type    string          `json:"type"`
	Payload registerPayload `json:"payload"`
}

type registerPayload struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Concurrency int      `json:"concurrency"`
	Encoders    []string `json:"encoders"`
	Token       string   `json:"token"`
}

type leaseAcceptedMessage struct {
	Type    string              `json:"type"`
	Payload leaseAcceptedPayload `json:"payload"`
}

type leaseAcceptedPayload struct {
	AgentID string `json:"agentId"`
	JobID   string `json:"jobId"`
}

type progressMessage struct {
	Type    string          `json:"type"`
	Payload progressPayload `json:"payload"`
}

type progressPayload struct {
	JobID string            `json:"jobId"`
	Data  map[string]string `json:"data"`
}

type completeMessage struct {
	Type    string          `json:"type"`
	Payload completePayload `json:"payload"`
}

type completePayload struct {
	JobID   string `json:"jobId"`
	AgentID string `json:"agentId"`
	Success bool   `json:"success"`
}

type heartbeatMessage struct {
	Type    string           `json:"type"`
	Payload heartbeatPayload `json:"payload"`
}

type heartbeatPayload struct {
	ID         string  `json:"id"`
	ActiveJobs int64   `json:"activeJobs"`
	CPU        float64 `json:"cpu"`
	MemUsed    uint64  `json:"memUsed"`
	MemTotal   uint64  `json:"memTotal"`
}

// encode marshals v to compact JSON, matching the wire format ("one message
// per WebSocket text frame", all compact JSON). A marshal failure here would
// indicate a programmer error in one of the payload structs above, not a
// runtime condition the caller can recover from meaningfully; callers log and
// drop the message rather than panicking.
func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
