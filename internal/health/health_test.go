package health

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentsea/agentd/internal/config"
)

func TestCheckAllReportsMissingTools(t *testing.T) {
	var cfg config.Config
	cfg.Recording.Dir = filepath.Join(t.TempDir(), "rec")
	cfg.Screenshot.Dir = t.TempDir()
	cfg.Screenshot.Command = "definitely-not-a-screenshot-tool"
	cfg.Desktop.Xdotool = ""

	st := CheckAll(context.Background(), cfg)
	if st.OK {
		t.Fatalf("expected failure, got %s", st)
	}
	byName := map[string]CheckResult{}
	for _, c := range st.Checks {
		byName[c.Name] = c
	}
	if !byName["recordings_dir"].OK {
		t.Fatalf("recordings dir should be writable: %+v", byName["recordings_dir"])
	}
	if _, err := os.Stat(cfg.Recording.Dir); err != nil {
		t.Fatalf("recordings dir not created: %v", err)
	}
	if byName["screenshot"].OK || !strings.Contains(byName["screenshot"].Error, "not found") {
		t.Fatalf("unexpected screenshot check %+v", byName["screenshot"])
	}
	if byName["xdotool"].Error != "not configured" {
		t.Fatalf("unexpected xdotool check %+v", byName["xdotool"])
	}
	if !strings.Contains(st.String(), "Health: FAIL") {
		t.Fatalf("unexpected report %q", st.String())
	}
}

func TestCheckCommandFindsShell(t *testing.T) {
	if c := checkCommand(context.Background(), "sh", "sh -c true"); !c.OK {
		t.Fatalf("expected sh on PATH: %+v", c)
	}
}
