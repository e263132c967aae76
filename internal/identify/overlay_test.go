package identify

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/1broseidon/projectmapper/internal/config"
	"github.com/1broseidon/projectmapper/internal/display"
)

func TestLabelLinesListsSinksOnMonitor(t *testing.T) {
	cfg := &config.RuntimeConfig{Sinks: []config.Sink{
		{ID: 1, Name: "left", Presentation: config.Windowed()},
		{ID: 2, Name: "wall", Presentation: config.Borderless("DP-1")},
		{ID: 3, Name: "stage", Presentation: config.Exclusive("HDMI-1", 1280, 720, 60)},
	}}
	m := display.MonitorCaps{
		Name:    "DP-1",
		Bounds:  display.Rect{X: 1920, Width: 2560, Height: 1440},
		Current: display.Mode{Width: 2560, Height: 1440, RefreshHz: 144},
	}

	got := labelLines(m, sinksOn(cfg, "DP-1"))
	want := []string{
		"DP-1",
		"2560x1440 at 1920,0",
		"mode 2560x1440@144Hz",
		"sink 2 wall (borderless(DP-1))",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("labelLines mismatch (-want +got):\n%s", diff)
	}
}

func TestSinksOnNilConfig(t *testing.T) {
	if got := sinksOn(nil, "DP-1"); got != nil {
		t.Fatalf("sinksOn(nil) = %v", got)
	}
}

func TestLabelDimensionsHasMinimumWidth(t *testing.T) {
	w, h := labelDimensions([]string{"DP-1"})
	if w != labelMinWidth {
		t.Fatalf("width = %d, want %d", w, labelMinWidth)
	}
	if h != labelLineHeight+2*labelPaddingY {
		t.Fatalf("height = %d", h)
	}

	long := strings.Repeat("x", 60)
	w, _ = labelDimensions([]string{long})
	if w != 60*labelCharWidth+2*labelPaddingX {
		t.Fatalf("width = %d for a long line", w)
	}
}

func TestLabelOrigin(t *testing.T) {
	tests := []struct {
		name          string
		bounds        display.Rect
		width, height int
		wantX, wantY  int
	}{
		{
			name:   "inside the border",
			bounds: display.Rect{X: 1920, Y: 0, Width: 1920, Height: 1080},
			width:  220, height: 80,
			wantX: 1920 + BorderThickness + labelMargin,
			wantY: BorderThickness + labelMargin,
		},
		{
			name:   "oversized label clamps to origin",
			bounds: display.Rect{X: 100, Y: 200, Width: 140, Height: 90},
			width:  260, height: 160,
			wantX: 100, wantY: 200,
		},
		{
			name:   "small monitor pulls label back",
			bounds: display.Rect{X: 0, Y: 0, Width: 250, Height: 100},
			width:  220, height: 80,
			wantX: 30, wantY: 20,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := labelOrigin(tt.bounds, tt.width, tt.height)
			if x != tt.wantX || y != tt.wantY {
				t.Fatalf("labelOrigin = (%d,%d), want (%d,%d)", x, y, tt.wantX, tt.wantY)
			}
		})
	}
}
