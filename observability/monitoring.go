// Package observability samples process-level health metrics for
// periodic reporting.
package observability

import (
	"os"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats is one snapshot of the server's own resource usage.
type ProcessStats struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Goroutines int     `json:"goroutines"`
	Status     string  `json:"status"`
}

// Monitor samples the current process and keeps the latest snapshot
// available for the stats endpoint.
type Monitor struct {
	mu     sync.Mutex
	proc   *process.Process
	latest ProcessStats
}

func NewMonitor() (*Monitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Monitor{proc: proc}, nil
}

// Sample collects a fresh snapshot and records it as the latest.
func (m *Monitor) Sample() (ProcessStats, error) {
	memInfo, err := m.proc.MemoryInfo()
	if err != nil {
		return ProcessStats{}, err
	}
	cpuPercent, err := m.proc.CPUPercent()
	if err != nil {
		return ProcessStats{}, err
	}
	status, err := m.proc.Status()
	if err != nil {
		return ProcessStats{}, err
	}

	stats := ProcessStats{
		RSSBytes:   memInfo.RSS,
		CPUPercent: cpuPercent,
		Goroutines: runtime.NumGoroutine(),
		Status:     status,
	}

	m.mu.Lock()
	m.latest = stats
	m.mu.Unlock()
	return stats, nil
}

// Latest returns the most recent snapshot, zero before the first
// sample.
func (m *Monitor) Latest() ProcessStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}
