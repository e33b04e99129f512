package hostsampler

import "testing"

func TestHostSampleDoesNotPanicWithoutPID(t *testing.T) {
	var h Host
	sample := h.Sample(0)
	if sample.ProcessCPUPercent != 0 || sample.ProcessRSS != 0 {
		t.Fatalf("expected zero process fields without a pid, got %+v", sample)
	}
}

type fakeSampler struct{ sample Sample }

func (f fakeSampler) Sample(int32) Sample { return f.sample }

func TestSamplerInterfaceIsSubstitutable(t *testing.T) {
	var s Sampler = fakeSampler{sample: Sample{LoadAvg1: 1.5, MemUsed: 10, MemTotal: 100}}
	got := s.Sample(1)
	if got.LoadAvg1 != 1.5 || got.MemUsed != 10 || got.MemTotal != 100 {
		t.Fatalf("unexpected sample: %+v", got)
	}
}
