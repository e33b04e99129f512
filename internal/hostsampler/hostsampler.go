// Package hostsampler collects best-effort host and process metrics for the
// heartbeat ticker. Every field is sampled independently; a failure on one
// field never prevents the others from being reported, and the caller
// receives zero values rather than an error for anything it could not read.
package hostsampler

import (
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Sample carries the host metrics placed on the wire by the heartbeat ticker
// (LoadAvg1, MemUsed, MemTotal) plus process-level fields used only for the
// heartbeat ticker's local diagnostic log line. Process fields are zero when no
// pid was supplied or sampling failed.
type Sample struct {
	LoadAvg1  float64
	MemUsed   uint64
	MemTotal  uint64

	ProcessCPUPercent float64
	ProcessRSS        uint64
	ProcessNumFDs     int32
}

// Sampler collects a Sample. It is an interface so job executor and
// heartbeat tests can substitute a fixed or failing implementation without
// depending on the host's actual /proc or syscall layer.
type Sampler interface {
	Sample(pid int32) Sample
}

// Host is the production Sampler backed by gopsutil.
type Host struct{}

// Sample returns best-effort host and process metrics. pid may be 0 to skip
// process-level sampling.
func (Host) Sample(pid int32) Sample {
	var s Sample

	if avg, err := load.Avg(); err == nil {
		s.LoadAvg1 = avg.Load1
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemUsed = vm.Used
		s.MemTotal = vm.Total
	}

	if pid > 0 {
		if proc, err := process.NewProcess(pid); err == nil {
			if pct, err := proc.CPUPercent(); err == nil {
				s.ProcessCPUPercent = pct
			}
			if mi, err := proc.MemoryInfo(); err == nil && mi != nil {
				s.ProcessRSS = mi.RSS
			}
			if n, err := proc.NumFDs(); err == nil {
				s.ProcessNumFDs = n
			}
		}
	}

	return s
}
