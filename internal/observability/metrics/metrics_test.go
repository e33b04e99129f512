package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestJobLifecycleCounters(t *testing.T) {
	r := New()
	r.JobStarted()
	r.JobStarted()
	r.JobCompleted()
	r.JobFailed()

	if got := r.ActiveJobs(); got != 0 {
		t.Fatalf("ActiveJobs() = %d, want 0 after one complete and one fail", got)
	}
	counts := r.JobCounts()
	if counts[JobLabel{Status: "start"}] != 2 {
		t.Fatalf("start count = %d, want 2", counts[JobLabel{Status: "start"}])
	}
	if counts[JobLabel{Status: "complete"}] != 1 {
		t.Fatalf("complete count = %d, want 1", counts[JobLabel{Status: "complete"}])
	}
	if counts[JobLabel{Status: "fail"}] != 1 {
		t.Fatalf("fail count = %d, want 1", counts[JobLabel{Status: "fail"}])
	}
}

func TestActiveJobsGaugeNeverGoesNegative(t *testing.T) {
	r := New()
	r.JobCompleted()
	r.JobFailed()
	if got := r.ActiveJobs(); got != 0 {
		t.Fatalf("ActiveJobs() = %d, want 0 (decrementGauge must not go negative)", got)
	}
}

func TestUploadCounters(t *testing.T) {
	r := New()
	r.UploadAttempted()
	r.UploadAttempted()
	r.UploadSucceeded()
	r.UploadFailed()

	attempts, successes, failures := r.UploadCounts()
	if attempts != 2 || successes != 1 || failures != 1 {
		t.Fatalf("UploadCounts() = (%d,%d,%d), want (2,1,1)", attempts, successes, failures)
	}
}

func TestSessionCounters(t *testing.T) {
	r := New()
	r.SessionConnected()
	r.SessionConnected()
	r.SessionClosed()

	buf := &bytes.Buffer{}
	r.Write(buf)
	out := buf.String()
	if !strings.Contains(out, "agent_session_connects_total 2") {
		t.Fatalf("expected connects=2 in output, got:\n%s", out)
	}
	if !strings.Contains(out, "agent_session_closes_total 1") {
		t.Fatalf("expected closes=1 in output, got:\n%s", out)
	}
}

func TestLeaseDroppedNormalizesReason(t *testing.T) {
	r := New()
	r.LeaseDropped("  Admission  ")
	r.LeaseDropped("admission")
	r.LeaseDropped("")

	drops := r.LeasesDropped()
	if drops["admission"] != 2 {
		t.Fatalf("drops[admission] = %d, want 2 (case/whitespace normalized)", drops["admission"])
	}
	if drops["unknown"] != 1 {
		t.Fatalf("drops[unknown] = %d, want 1 for an empty reason", drops["unknown"])
	}
}

func TestReset(t *testing.T) {
	r := New()
	r.JobStarted()
	r.UploadAttempted()
	r.SessionConnected()
	r.LeaseDropped("malformed")

	r.Reset()

	if r.ActiveJobs() != 0 {
		t.Fatal("expected ActiveJobs to reset to 0")
	}
	if len(r.JobCounts()) != 0 {
		t.Fatal("expected JobCounts to reset to empty")
	}
	attempts, successes, failures := r.UploadCounts()
	if attempts != 0 || successes != 0 || failures != 0 {
		t.Fatal("expected UploadCounts to reset to zero")
	}
	if len(r.LeasesDropped()) != 0 {
		t.Fatal("expected LeasesDropped to reset to empty")
	}
}

func TestWriteSortsJobLabelsAndDropReasons(t *testing.T) {
	r := New()
	r.JobFailed() // decrementGauge no-ops at zero, recordJobEvent still counts
	r.JobStarted()
	r.LeaseDropped("malformed")
	r.LeaseDropped("admission")

	buf := &bytes.Buffer{}
	r.Write(buf)
	out := buf.String()

	adminIdx := strings.Index(out, `reason="admission"`)
	malformedIdx := strings.Index(out, `reason="malformed"`)
	if adminIdx < 0 || malformedIdx < 0 {
		t.Fatalf("expected both drop reasons in output, got:\n%s", out)
	}
	if adminIdx > malformedIdx {
		t.Fatalf("expected drop reasons sorted alphabetically, got:\n%s", out)
	}

	failIdx := strings.Index(out, `status="fail"`)
	startIdx := strings.Index(out, `status="start"`)
	if failIdx < 0 || startIdx < 0 {
		t.Fatalf("expected both job labels in output, got:\n%s", out)
	}
	if failIdx > startIdx {
		t.Fatalf("expected job labels sorted alphabetically, got:\n%s", out)
	}
}

func TestDefaultReturnsSharedRecorder(t *testing.T) {
	if Default() != Default() {
		t.Fatal("expected Default() to return the same recorder instance across calls")
	}
}
