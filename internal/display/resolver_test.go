package display

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/1broseidon/projectmapper/internal/config"
)

type staticEnumerator struct {
	monitors []MonitorCaps
	err      error
	calls    int
}

func (s *staticEnumerator) EnumerateMonitors() ([]MonitorCaps, error) {
	s.calls++
	return s.monitors, s.err
}

func testInventory(t *testing.T) *Inventory {
	t.Helper()
	e := &staticEnumerator{monitors: []MonitorCaps{
		{
			Name:    "DP-1",
			Bounds:  Rect{X: 0, Y: 0, Width: 1920, Height: 1080},
			Current: Mode{Width: 1920, Height: 1080, RefreshHz: 60},
			Modes: []Mode{
				{Width: 1920, Height: 1080, RefreshHz: 60},
				{Width: 1920, Height: 1080, RefreshHz: 120},
				{Width: 1280, Height: 720, RefreshHz: 60},
			},
		},
		{
			Name:    "HDMI-1",
			Bounds:  Rect{X: 1920, Y: 0, Width: 3840, Height: 2160},
			Current: Mode{Width: 3840, Height: 2160, RefreshHz: 30},
			Modes: []Mode{
				{Width: 3840, Height: 2160, RefreshHz: 30},
			},
		},
		{Name: "eDP-1"},
	}}
	inv, err := Gather(e)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if e.calls != 1 {
		t.Fatalf("Gather queried the display subsystem %d times, want 1", e.calls)
	}
	return inv
}

func TestGather_KeepsMonitorsWithoutModes(t *testing.T) {
	inv := testInventory(t)

	caps, ok := inv.Monitor("eDP-1")
	if !ok {
		t.Fatal("expected an entry for eDP-1")
	}
	if caps.Modes == nil || len(caps.Modes) != 0 {
		t.Fatalf("expected empty, non-nil mode list, got %#v", caps.Modes)
	}
	if diff := cmp.Diff([]string{"DP-1", "HDMI-1", "eDP-1"}, inv.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestGather_PropagatesEnumerationError(t *testing.T) {
	_, err := Gather(&staticEnumerator{err: errors.New("no randr")})
	if err == nil || !strings.Contains(err.Error(), "no randr") {
		t.Fatalf("expected wrapped enumeration error, got %v", err)
	}
}

func TestNewInventory_CollapsesDuplicates(t *testing.T) {
	inv := NewInventory([]MonitorCaps{
		{Name: "DP-1", Modes: []Mode{{1920, 1080, 60}, {1920, 1080, 60}}},
		{Name: "DP-1", Modes: []Mode{{1920, 1080, 144}}},
	})
	caps, _ := inv.Monitor("DP-1")
	want := []Mode{{1920, 1080, 144}, {1920, 1080, 60}}
	if diff := cmp.Diff(want, caps.Modes); diff != "" {
		t.Fatalf("modes mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_Windowed(t *testing.T) {
	got, err := Resolve(config.Windowed(), NewInventory(nil))
	if err != nil {
		t.Fatalf("Resolve(windowed): %v", err)
	}
	if got.Kind != config.ModeWindowed || got.Monitor != nil {
		t.Fatalf("unexpected windowed target %+v", got)
	}
}

func TestResolve_Borderless(t *testing.T) {
	got, err := Resolve(config.Borderless("HDMI-1"), testInventory(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Monitor == nil || got.Monitor.Name != "HDMI-1" {
		t.Fatalf("expected HDMI-1, got %+v", got)
	}
	if got.Width != 3840 || got.Height != 2160 || got.RefreshHz != 30 {
		t.Fatalf("expected current mode 3840x2160@30, got %dx%d@%d", got.Width, got.Height, got.RefreshHz)
	}
}

func TestResolve_UnknownMonitorListsKnownNames(t *testing.T) {
	inv := testInventory(t)
	modes := []config.PresentationMode{
		config.Borderless("DISPLAY9"),
		config.Exclusive("DISPLAY9", 1920, 1080, 60),
	}
	for _, mode := range modes {
		_, err := Resolve(mode, inv)
		var rerr *ResolutionError
		if !errors.As(err, &rerr) {
			t.Fatalf("Resolve(%s): expected *ResolutionError, got %v", mode, err)
		}
		if rerr.Kind != UnknownMonitor || rerr.Monitor != "DISPLAY9" {
			t.Fatalf("Resolve(%s): got %v", mode, rerr)
		}
		if diff := cmp.Diff(inv.Names(), rerr.Known); diff != "" {
			t.Fatalf("known names mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestResolve_UnknownRefreshRateListsRates(t *testing.T) {
	_, err := Resolve(config.Exclusive("DP-1", 1920, 1080, 144), testInventory(t))
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
	if rerr.Kind != UnknownRefreshRate {
		t.Fatalf("kind = %v, want UnknownRefreshRate", rerr.Kind)
	}
	if rerr.Requested.RefreshHz != 144 {
		t.Fatalf("attempted rate = %d, want 144", rerr.Requested.RefreshHz)
	}
	if diff := cmp.Diff([]uint32{60, 120}, rerr.RefreshRates); diff != "" {
		t.Fatalf("rates mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(rerr.Error(), "60Hz, 120Hz") {
		t.Fatalf("message should list alternatives, got %q", rerr.Error())
	}
}

func TestResolve_UnknownResolutionListsResolutions(t *testing.T) {
	_, err := Resolve(config.Exclusive("DP-1", 2560, 1440, 60), testInventory(t))
	var rerr *ResolutionError
	if !errors.As(err, &rerr) || rerr.Kind != UnknownResolution {
		t.Fatalf("expected UnknownResolution, got %v", err)
	}
	want := []Resolution{{1920, 1080}, {1280, 720}}
	if diff := cmp.Diff(want, rerr.Resolutions); diff != "" {
		t.Fatalf("resolutions mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_ExclusiveMatch(t *testing.T) {
	got, err := Resolve(config.Exclusive("DP-1", 1920, 1080, 120), testInventory(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Kind != config.ModeExclusive || got.RefreshHz != 120 || got.Monitor.Name != "DP-1" {
		t.Fatalf("unexpected target %+v", got)
	}
}

func TestAvailableOptions(t *testing.T) {
	opts := AvailableOptions(testInventory(t), []string{"rtsp", "file"})

	if diff := cmp.Diff([]string{"file", "rtsp"}, opts.Sources[0].TypeOptions.URITypes); diff != "" {
		t.Fatalf("uri types mismatch (-want +got):\n%s", diff)
	}
	fs := opts.Sinks[0].TypeOptions.FullScreen
	if diff := cmp.Diff([]string{"DP-1", "HDMI-1", "eDP-1"}, fs.Borderless.Monitors); diff != "" {
		t.Fatalf("borderless monitors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{60000, 120000}, fs.Exclusive.MonitorConfigs["DP-1"]["1920x1080"]); diff != "" {
		t.Fatalf("exclusive rates mismatch (-want +got):\n%s", diff)
	}
	if len(fs.Exclusive.MonitorConfigs["eDP-1"]) != 0 {
		t.Fatalf("eDP-1 should list no modes, got %v", fs.Exclusive.MonitorConfigs["eDP-1"])
	}
}
