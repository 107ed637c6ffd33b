package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/agentsea/agentd/internal/config"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// CheckAll runs all health checks and returns combined status
func CheckAll(ctx context.Context, cfg config.Config) HealthStatus {
	checks := []CheckResult{
		checkWritableDir(ctx, "recordings_dir", cfg.Recording.Dir),
		checkWritableDir(ctx, "screenshot_dir", cfg.Screenshot.Dir),
		checkCommand(ctx, "screenshot", cfg.Screenshot.Command),
		checkCommand(ctx, "xdotool", cfg.Desktop.Xdotool),
	}

	allOK := true
	for _, c := range checks {
		if !c.OK {
			allOK = false
		}
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func checkWritableDir(ctx context.Context, name, dir string) (result CheckResult) {
	start := time.Now()
	result = CheckResult{Name: name}
	defer func() { result.Latency = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return result
	}
	if dir == "" {
		result.Error = "not configured"
		return result
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Error = fmt.Sprintf("create failed: %v", err)
		return result
	}
	f, err := os.CreateTemp(dir, ".writecheck-*")
	if err != nil {
		result.Error = fmt.Sprintf("not writable: %v", err)
		return result
	}
	f.Close()
	os.Remove(f.Name())

	result.OK = true
	return result
}

func checkCommand(ctx context.Context, name, command string) CheckResult {
	start := time.Now()
	result := CheckResult{Name: name}

	fields := strings.Fields(command)
	if len(fields) == 0 {
		result.Error = "not configured"
		result.Latency = time.Since(start)
		return result
	}
	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		result.Latency = time.Since(start)
		return result
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		result.Error = fmt.Sprintf("%s not found on PATH", fields[0])
		result.Latency = time.Since(start)
		return result
	}

	result.OK = true
	result.Latency = time.Since(start)
	return result
}
