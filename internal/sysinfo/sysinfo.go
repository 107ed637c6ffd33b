// Package sysinfo reports host usage and build information for the /v1
// status endpoints.
package sysinfo

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// Usage is a point-in-time host load reading, each field in percent.
type Usage struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
}

// Sampler reads /proc for CPU and memory and statfs for disk.
type Sampler struct {
	proc     procfs.FS
	diskPath string
	interval time.Duration
}

const defaultInterval = 200 * time.Millisecond

// NewSampler opens the proc filesystem at procRoot (procfs.DefaultMountPoint
// when empty). CPU usage is measured over interval.
func NewSampler(procRoot, diskPath string, interval time.Duration) (*Sampler, error) {
	if procRoot == "" {
		procRoot = procfs.DefaultMountPoint
	}
	if diskPath == "" {
		diskPath = "/"
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", procRoot, err)
	}
	return &Sampler{proc: fs, diskPath: diskPath, interval: interval}, nil
}

// Usage blocks for the sampling interval or until ctx is done.
func (s *Sampler) Usage(ctx context.Context) (Usage, error) {
	before, err := s.proc.Stat()
	if err != nil {
		return Usage{}, fmt.Errorf("cpu: %w", err)
	}
	t := time.NewTimer(s.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return Usage{}, ctx.Err()
	case <-t.C:
	}
	after, err := s.proc.Stat()
	if err != nil {
		return Usage{}, fmt.Errorf("cpu: %w", err)
	}

	mem, err := s.proc.Meminfo()
	if err != nil {
		return Usage{}, fmt.Errorf("memory: %w", err)
	}
	disk, err := diskPercent(s.diskPath)
	if err != nil {
		return Usage{}, fmt.Errorf("disk %s: %w", s.diskPath, err)
	}
	return Usage{
		CPUPercent:    cpuPercent(before.CPUTotal, after.CPUTotal),
		MemoryPercent: memoryPercent(mem),
		DiskPercent:   disk,
	}, nil
}

// guest time is already included in user time
func cpuPercent(a, b procfs.CPUStat) float64 {
	idle := (b.Idle + b.Iowait) - (a.Idle + a.Iowait)
	total := sum(b) - sum(a)
	if total <= 0 {
		return 0
	}
	return round((total - idle) / total * 100)
}

func sum(c procfs.CPUStat) float64 {
	return c.User + c.Nice + c.System + c.Idle + c.Iowait + c.IRQ + c.SoftIRQ + c.Steal
}

func memoryPercent(m procfs.Meminfo) float64 {
	if m.MemTotal == nil || *m.MemTotal == 0 {
		return 0
	}
	avail := m.MemAvailable
	if avail == nil {
		avail = m.MemFree
	}
	if avail == nil {
		return 0
	}
	total := float64(*m.MemTotal)
	return round((total - float64(*avail)) / total * 100)
}

// diskPercent counts reserved blocks as unavailable, as df does.
func diskPercent(path string) (float64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	used := st.Blocks - st.Bfree
	if used+st.Bavail == 0 {
		return 0, nil
	}
	return round(float64(used) / float64(used+st.Bavail) * 100), nil
}

func round(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

// Build describes the running binary.
type Build struct {
	OS          string `json:"os_info"`
	GoVersion   string `json:"go_version"`
	CodeVersion string `json:"code_version,omitempty"`
}

// ReadBuild reports the platform and the VCS revision stamped by go build,
// falling back to the module version.
func ReadBuild() Build {
	b := Build{OS: runtime.GOOS + " " + runtime.GOARCH, GoVersion: runtime.Version()}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			b.CodeVersion = s.Value
			return b
		}
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		b.CodeVersion = v
	}
	return b
}
