package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/1broseidon/projectmapper/internal/config"
	"github.com/1broseidon/projectmapper/internal/coordinator"
	"github.com/1broseidon/projectmapper/internal/display"
	"github.com/1broseidon/projectmapper/internal/ipc"
	"github.com/1broseidon/projectmapper/internal/presentation"
)

const sampleConfig = `
sources:
  - id: 1
    name: pattern
    source:
      type: Test
sinks:
  - id: 1
    name: left
    sink:
      type: OpenGLWindow
      full_screen:
        type: Windowed
  - id: 2
    name: wall
    sink:
      type: OpenGLWindow
      full_screen:
        type: Borderless
        name: DP-1
regions:
  - id: 1
    name: a
    region:
      type: Display
      source: 1
      sink: 1
  - id: 2
    name: b
    region:
      type: Display
      source: 1
      sink: 2
`

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapper.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestValidateCmd(t *testing.T) {
	out, _, err := execute(t, "validate", writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "ok (1 sources, 2 sinks, 2 regions)") {
		t.Fatalf("output = %q", out)
	}
}

func TestValidateCmd_ReportsProblems(t *testing.T) {
	bad := strings.Replace(sampleConfig, "sink: 2", "sink: 5", 1)
	_, stderr, err := execute(t, "validate", writeConfig(t, bad))

	var cerr *config.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *config.ConfigError", err)
	}
	if exitCode(err) != 2 {
		t.Fatalf("exit code = %d, want 2", exitCode(err))
	}
	if !strings.Contains(stderr, "regions[1].sink") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestGraphCmd_DOT(t *testing.T) {
	out, _, err := execute(t, "graph", writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	for _, want := range []string{"digraph", `"source-1" -> "sink-1"`, `"source-1" -> "sink-2"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("graph output missing %q:\n%s", want, out)
		}
	}
}

func TestGraphCmd_UnknownFormat(t *testing.T) {
	_, _, err := execute(t, "graph", "--format", "png", writeConfig(t, sampleConfig))
	if err == nil || !strings.Contains(err.Error(), "unknown graph format") {
		t.Fatalf("err = %v", err)
	}
}

func TestConfigExport_JSON(t *testing.T) {
	out, _, err := execute(t, "config", "export", "--format", "json", writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	cfg, err := config.Parse([]byte(out), config.FormatJSON)
	if err != nil {
		t.Fatalf("exported JSON does not load: %v\n%s", err, out)
	}
	if len(cfg.Sinks) != 2 || cfg.Sinks[1].Presentation.Monitor != "DP-1" {
		t.Fatalf("sinks = %+v", cfg.Sinks)
	}
}

func TestResolveAll(t *testing.T) {
	cfg, err := config.Parse([]byte(sampleConfig), config.FormatYAML)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	inv := display.NewInventory([]display.MonitorCaps{{
		Name:   "DP-1",
		Bounds: display.Rect{Width: 1920, Height: 1080},
	}})
	if err := resolveAll(&buf, cfg, inv); err != nil {
		t.Fatalf("resolveAll: %v\n%s", err, buf.String())
	}

	buf.Reset()
	err = resolveAll(&buf, cfg, display.NewInventory(nil))
	var rerr *display.ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want *display.ResolutionError", err)
	}
	if !strings.Contains(buf.String(), "sink 2 (wall)") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	st := &coordinator.Status{
		RunID: "r1",
		Phase: coordinator.PhaseRunning,
		Sinks: []presentation.SinkStatus{{
			SinkID: 1, Name: "left", State: presentation.StateRunning,
			Target: "windowed", Width: 1280, Height: 720, FramesSubmitted: 42,
		}},
	}
	if err := printStatus(&buf, st); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"phase:  running", "left", "1280x720", "42"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintMonitors(t *testing.T) {
	var buf bytes.Buffer
	data := ipc.MonitorsData{Monitors: []ipc.MonitorInfo{{
		Name: "HDMI-1", X: 1920, Width: 1920, Height: 1080,
		Current: ipc.ModeInfo{Width: 1920, Height: 1080, RefreshHz: 60},
		Modes:   []ipc.ModeInfo{{Width: 1920, Height: 1080, RefreshHz: 60}},
	}}}
	if err := printMonitors(&buf, data); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "1920x1080@60") || !strings.Contains(buf.String(), "1920,0") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"config", &config.ConfigError{Err: errors.New("bad")}, 2},
		{"runtime", &coordinator.RuntimeError{Err: errors.New("boom")}, 3},
		{"other", errors.New("no display"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Fatalf("exitCode = %d, want %d", got, tt.want)
			}
		})
	}
}
