package agent

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestRunnerNormalExitSuccess(t *testing.T) {
	r := NewRunner()
	proc, err := r.Start(context.Background(), 5*time.Second, "sh", []string{"-c", "echo frame=1; echo progress=end"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	out, _ := io.ReadAll(proc.Stdout)
	result := proc.Wait()
	if !result.Success {
		t.Fatalf("expected success, got %#v (stdout=%q)", result, out)
	}
	if result.TimedOut {
		t.Fatal("expected TimedOut=false")
	}
}

func TestRunnerNonZeroExitIsFailure(t *testing.T) {
	r := NewRunner()
	proc, err := r.Start(context.Background(), 5*time.Second, "sh", []string{"-c", "exit 1"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	io.Copy(io.Discard, proc.Stdout)
	result := proc.Wait()
	if result.Success {
		t.Fatal("expected Success=false for a non-zero exit")
	}
	if result.TimedOut {
		t.Fatal("expected TimedOut=false, the process exited on its own")
	}
}

func TestRunnerExecFailureIsNotSuccess(t *testing.T) {
	r := NewRunner()
	_, err := r.Start(context.Background(), 5*time.Second, "/nonexistent/binary-should-not-exist", nil)
	if err == nil {
		t.Fatal("expected Start to fail when the binary does not exist")
	}
}

func TestRunnerTimeoutForciblyTerminates(t *testing.T) {
	r := NewRunner()
	proc, err := r.Start(context.Background(), 100*time.Millisecond, "sh", []string{"-c", "sleep 10"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	io.Copy(io.Discard, proc.Stdout)

	start := time.Now()
	result := proc.Wait()
	elapsed := time.Since(start)

	if !result.TimedOut {
		t.Fatal("expected TimedOut=true")
	}
	if result.Success {
		t.Fatal("expected Success=false on timeout")
	}
	if elapsed > 5*time.Second {
		t.Fatalf("Wait took %v, expected the process to be killed promptly after the timeout", elapsed)
	}
}
