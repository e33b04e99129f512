package agent

import (
	"context"
	"testing"
	"time"
)

func TestSupervisorRunFailsFastOnBadController(t *testing.T) {
	cfg := Config{
		ControllerWSURL:   "ws://127.0.0.1:1", // nothing listens here
		ControllerBaseURL: "http://127.0.0.1:1",
		AgentToken:        "tok",
		AgentID:           "agent-x",
		EncoderToolPath:   "/nonexistent/ffmpeg-should-not-exist",
		Concurrency:       1,
		HeartbeatInterval: time.Second,
		LogLevel:          "error",
		LogFormat:         "text",
	}
	sup := NewSupervisor(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	code := sup.Run(ctx)
	if code != 1 {
		t.Fatalf("Run() = %d, want 1 for a failed initial connection", code)
	}
}
