package agent

import (
	"context"
	"os"
	"path/filepath"
)

// Lease is the deep-copied, owned form of an accepted lease's fields. The
// inbound JSON document is released as soon as the router returns, so every
// field here must be copied rather than referenced.
type Lease struct {
	JobID       string
	InputURL    string
	OutputURL   string
	OutputExt   string
	EncoderArgs []string
}

func newLeaseFromPayload(p leasePayload) Lease {
	args := make([]string, len(p.FFmpegArgs))
	copy(args, p.FFmpegArgs)
	return Lease{
		JobID:       p.JobID,
		InputURL:    p.InputURL,
		OutputURL:   p.OutputURL,
		OutputExt:   p.outputExtOrDefault(),
		EncoderArgs: args,
	}
}

// Executor runs one lease end to end: builds the argument vector, launches
// the subprocess runner, pipes its stdout through the progress parser into
// the outbound queue, waits for termination, uploads on success, and emits
// exactly one complete message.
type Executor struct {
	state    *State
	runner   *Runner
	uploader *Uploader
}

// NewExecutor constructs an Executor bound to state, using runner to launch
// the encoder tool and uploader to transfer the produced artifact.
func NewExecutor(state *State, runner *Runner, uploader *Uploader) *Executor {
	return &Executor{state: state, runner: runner, uploader: uploader}
}

// Run executes lease to completion. It always decrements activeJobs and
// removes the temporary output file before returning, regardless of outcome.
func (e *Executor) Run(ctx context.Context, lease Lease) {
	logger := e.state.Logger.With("component", "executor", "jobId", lease.JobID)
	defer e.state.ReleaseJob()

	tmpDir := filepath.Join(e.state.Config.TmpDir, "ffmpegeasy")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		logger.Error("failed to create temp directory", "error", err)
		e.emitComplete(lease.JobID, false)
		e.state.Metrics.JobFailed()
		return
	}
	tmpOut := filepath.Join(tmpDir, lease.JobID+lease.OutputExt)
	defer os.Remove(tmpOut)

	args := buildArgs(lease.InputURL, lease.EncoderArgs, tmpOut)

	proc, err := e.runner.Start(ctx, e.state.Config.JobTimeout, e.state.Config.EncoderToolPath, args)
	if err != nil {
		logger.Error("failed to start encoder", "error", err)
		e.emitComplete(lease.JobID, false)
		e.state.Metrics.JobFailed()
		return
	}

	flush := func(snapshot Snapshot) {
		e.emitProgress(lease.JobID, snapshot)
	}
	parseDone := make(chan error, 1)
	go func() {
		parseDone <- ParseProgress(proc.Stdout, flush)
	}()

	// The reader must be joined before Wait: cmd.Wait closes the parent's
	// end of the stdout pipe as soon as the child exits, and racing that
	// against ParseProgress still draining buffered output can drop the
	// final flush. A timed-out child still unblocks ParseProgress, since
	// the context kill closes its stdout and the reader sees EOF.
	if err := <-parseDone; err != nil {
		logger.Warn("progress stream ended with an error", "error", err)
	}
	result := proc.Wait()

	success := result.Success
	if success {
		if !e.uploader.Upload(ctx, lease.OutputURL, tmpOut,
			e.state.Config.RequestConnectTimeout, e.state.Config.RequestTimeout, e.state.Config.UploadMaxRetries) {
			success = false
		}
	}

	if result.TimedOut {
		logger.Warn("encoder timed out, child forcefully terminated")
	}

	e.emitComplete(lease.JobID, success)
	if success {
		e.state.Metrics.JobCompleted()
	} else {
		e.state.Metrics.JobFailed()
	}
}

// buildArgs assembles ["-i", inputURL, ...encoderArgs, tmpOut] -- the
// argument vector passed to the encoder tool, excluding argv[0]. No
// validation or sanitization of encoderArgs is performed; the controller is
// trusted.
func buildArgs(inputURL string, encoderArgs []string, tmpOut string) []string {
	args := make([]string, 0, 2+len(encoderArgs)+1)
	args = append(args, "-i", inputURL)
	args = append(args, encoderArgs...)
	args = append(args, tmpOut)
	return args
}

func (e *Executor) emitProgress(jobID string, snapshot Snapshot) {
	text, err := encode(progressMessage{
		Type: "progress",
		Payload: progressPayload{
			JobID: jobID,
			Data:  snapshot,
		},
	})
	if err != nil {
		e.state.Logger.Error("failed to encode progress message", "error", err)
		return
	}
	e.state.Outbound.Enqueue(text)
}

func (e *Executor) emitComplete(jobID string, success bool) {
	text, err := encode(completeMessage{
		Type: "complete",
		Payload: completePayload{
			JobID:   jobID,
			AgentID: e.state.Config.AgentID,
			Success: success,
		},
	})
	if err != nil {
		e.state.Logger.Error("failed to encode complete message", "error", err)
		return
	}
	e.state.Outbound.Enqueue(text)
}
