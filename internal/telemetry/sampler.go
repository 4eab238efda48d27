package telemetry

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemStats is the payload of a "system:stats" envelope.
type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	ProcessRSSMB  float64 `json:"process_rss_mb"`
	Goroutines    int     `json:"goroutines"`
	CollectedAt   int64   `json:"collected_at"`
}

// Sampler collects host and process statistics for the telemetry feed.
type Sampler struct {
	proc *process.Process
}

// NewSampler returns a sampler bound to the current process.
func NewSampler() (*Sampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Sampler{proc: proc}, nil
}

// Sample takes one snapshot of CPU, memory, and process usage.
func (s *Sampler) Sample(ctx context.Context) (*SystemStats, error) {
	stats := &SystemStats{
		Goroutines:  runtime.NumGoroutine(),
		CollectedAt: time.Now().UnixMilli(),
	}

	// Non-blocking CPU read: percentage since the previous call.
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsedMB = float64(vm.Used) / 1024 / 1024
	}

	if info, err := s.proc.MemoryInfoWithContext(ctx); err == nil {
		stats.ProcessRSSMB = float64(info.RSS) / 1024 / 1024
	}

	return stats, nil
}
