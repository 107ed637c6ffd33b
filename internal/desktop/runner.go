package desktop

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Runner executes the external tools behind the desktop primitives.
type Runner interface {
	// Run executes a command to completion.
	Run(ctx context.Context, name string, args ...string) error
	// Output executes a command to completion and returns its stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)
	// Start launches a long-lived command and returns once it has started.
	Start(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with the process environment plus Env.
type ExecRunner struct {
	Env map[string]string
	Log *slog.Logger
}

func NewExecRunner(display string, log *slog.Logger) *ExecRunner {
	env := map[string]string{}
	if display != "" {
		env["DISPLAY"] = display
	}
	return &ExecRunner{Env: env, Log: log}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = r.environ()
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = r.environ()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return stdout.String(), nil
}

// Start does not tie the child to ctx: a launched browser outlives the request.
func (r *ExecRunner) Start(ctx context.Context, name string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := exec.Command(name, args...)
	cmd.Env = r.environ()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	go func() {
		err := cmd.Wait()
		if r.Log != nil {
			r.Log.Debug("process exited", "command", name, "pid", cmd.Process.Pid, "error", err)
		}
	}()
	return nil
}

func (r *ExecRunner) environ() []string {
	base := os.Environ()
	out := make([]string, 0, len(base)+len(r.Env))
	out = append(out, base...)
	for k, v := range r.Env {
		out = append(out, k+"="+v)
	}
	return out
}
