// Package agent implements the worker agent core: the controller session,
// job executor, subprocess runner, progress parser, artifact uploader,
// encoder catalog probe, heartbeat ticker, and the supervisor that wires
// them together.
package agent

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bitriver/fleet-agent/internal/observability/logging"
	"github.com/bitriver/fleet-agent/internal/observability/metrics"
)

// Config holds every tunable read from the environment at startup.
type Config struct {
	ControllerBaseURL string
	ControllerWSURL   string
	AgentToken        string
	EncoderToolPath   string
	AgentID           string
	Concurrency       int

	JobTimeout             time.Duration
	UploadMaxRetries       int
	RequestConnectTimeout  time.Duration
	RequestTimeout         time.Duration
	HeartbeatInterval      time.Duration

	TmpDir string

	LogLevel  string
	LogFormat string
}

const (
	defaultControllerURL       = "http://localhost:4000"
	defaultAgentToken          = "dev-token"
	defaultEncoderPath         = "ffmpeg"
	defaultHostname            = "agent"
	defaultJobTimeoutSecs      = 1800
	defaultUploadMaxRetries    = 3
	defaultConnectTimeoutSecs  = 10
	defaultRequestTimeoutSecs  = 900
	defaultHeartbeatSecs       = 10
)

// LoadConfigFromEnv reads the environment variables fixed by the
// specification's configuration surface, applying the documented defaults.
// CONTROLLER_URL is the only value whose malformed form aborts startup (the
// session cannot compute a WS URL from it); every other tunable falls back
// to its default on a parse failure, logging a warning rather than aborting.
func LoadConfigFromEnv(logger *slog.Logger) (Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	controllerURL := envOrDefault("CONTROLLER_URL", defaultControllerURL)
	if _, err := url.Parse(controllerURL); err != nil {
		return Config{}, fmt.Errorf("parse CONTROLLER_URL: %w", err)
	}

	cfg := Config{
		ControllerBaseURL: controllerURL,
		ControllerWSURL:   HTTPToWS(controllerURL),
		AgentToken:        envOrDefault("AGENT_TOKEN", defaultAgentToken),
		EncoderToolPath:   envOrDefault("FFMPEG_PATH", defaultEncoderPath),
		TmpDir:            envOrDefault("TMPDIR", "/tmp"),
		LogLevel:          envOrDefault("AGENT_LOG_LEVEL", "info"),
		LogFormat:         envOrDefault("AGENT_LOG_FORMAT", "text"),
	}

	hostname := envOrDefault("HOSTNAME", defaultHostname)
	cfg.AgentID = fmt.Sprintf("%s-%d", hostname, os.Getpid())

	cfg.Concurrency = parseConcurrency(logger)
	cfg.JobTimeout = parseDurationSecs(logger, "JOB_TIMEOUT_SECS", defaultJobTimeoutSecs)
	cfg.RequestConnectTimeout = parseDurationSecs(logger, "REQ_CONNECT_TIMEOUT_SECS", defaultConnectTimeoutSecs)
	cfg.RequestTimeout = parseDurationSecs(logger, "REQ_TIMEOUT_SECS", defaultRequestTimeoutSecs)
	cfg.HeartbeatInterval = parseDurationSecs(logger, "HEARTBEAT_INTERVAL_SECS", defaultHeartbeatSecs)
	cfg.UploadMaxRetries = parsePositiveInt(logger, "UPLOAD_MAX_RETRIES", defaultUploadMaxRetries)

	return cfg, nil
}

func parseConcurrency(logger *slog.Logger) int {
	if raw := strings.TrimSpace(os.Getenv("CONCURRENCY")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
		logger.Warn("invalid CONCURRENCY, falling back to CPU count", "value", raw)
	}
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}

func parseDurationSecs(logger *slog.Logger, key string, defaultSecs int) time.Duration {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
		logger.Warn("invalid duration env var, falling back to default", "key", key, "value", raw)
	}
	return time.Duration(defaultSecs) * time.Second
}

func parsePositiveInt(logger *slog.Logger, key string, defaultValue int) int {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
		logger.Warn("invalid integer env var, falling back to default", "key", key, "value", raw)
	}
	return defaultValue
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// HTTPToWS rewrites an http(s) base URL into its ws(s) equivalent by scheme
// substitution only: https://H -> wss://H, http://H -> ws://H, otherwise the
// input is prefixed with ws://. It is a total, side-effect-free function.
func HTTPToWS(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}

// PercentEncodeToken percent-encodes s for use as a query string value: the
// unreserved set [A-Za-z0-9._-] passes through unchanged, every other byte
// becomes %HH using uppercase hex digits.
func PercentEncodeToken(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.':
		return true
	default:
		return false
	}
}

// State is the supervisor-owned value threaded into every component. It
// replaces the source's global mutable state with an explicit value that is
// constructed once at startup and passed by reference into each component.
type State struct {
	Config Config

	Logger  *slog.Logger
	Metrics *metrics.Recorder

	Outbound *Queue
	Encoders []string

	// admission bounds concurrently running job executors to Config.Concurrency.
	// TryAcquire makes the admission check (§4.3) and the activeJobs count
	// (§3's invariant) the same operation instead of two independently
	// maintained counters that could drift out of sync.
	admission  *semaphore.Weighted
	activeJobs atomic.Int64
	shouldExit atomic.Bool

	session atomic.Pointer[Session]
}

// NewState constructs a State from cfg. Logger and metrics are built here so
// every component receives the same instances.
func NewState(cfg Config) *State {
	logger := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	return &State{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics.Default(),
		Outbound:  NewQueue(),
		admission: semaphore.NewWeighted(int64(cfg.Concurrency)),
	}
}

// ActiveJobs returns the current count of running job executors.
func (s *State) ActiveJobs() int64 { return s.activeJobs.Load() }

// TryAdmit attempts to admit one more job executor without blocking,
// returning false when the admission rule in the router refuses the lease
// (activeJobs >= concurrency). This resolves the source's unsynchronized
// activeJobs design note: increment and the capacity check happen as one
// atomic operation on the semaphore rather than two racing reads.
func (s *State) TryAdmit() bool {
	if !s.admission.TryAcquire(1) {
		return false
	}
	s.activeJobs.Add(1)
	return true
}

// ReleaseJob decrements activeJobs and frees one admission slot after a job
// executor terminates.
func (s *State) ReleaseJob() {
	s.activeJobs.Add(-1)
	s.admission.Release(1)
}

// ShouldExit reports whether the supervisor should unwind.
func (s *State) ShouldExit() bool { return s.shouldExit.Load() }

// SetShouldExit marks the agent for shutdown.
func (s *State) SetShouldExit() { s.shouldExit.Store(true) }

// Session returns the currently open session, or nil if none is open.
func (s *State) Session() *Session { return s.session.Load() }

// setSession installs or clears the active session handle.
func (s *State) setSession(sess *Session) { s.session.Store(sess) }

