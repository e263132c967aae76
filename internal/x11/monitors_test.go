package x11

import (
	"testing"

	"github.com/BurntSushi/xgb/randr"
	"github.com/google/go-cmp/cmp"
)

func TestRefreshMilliHz(t *testing.T) {
	tests := []struct {
		name string
		mode randr.ModeInfo
		want uint32
	}{
		{
			name: "1080p60 cea",
			mode: randr.ModeInfo{DotClock: 148500000, Htotal: 2200, Vtotal: 1125},
			want: 60000,
		},
		{
			name: "1080p59.94",
			mode: randr.ModeInfo{DotClock: 148352000, Htotal: 2200, Vtotal: 1125},
			want: 59940,
		},
		{
			name: "interlaced halves vtotal",
			mode: randr.ModeInfo{DotClock: 74250000, Htotal: 2200, Vtotal: 1125, ModeFlags: randr.ModeFlagInterlace},
			want: 60000,
		},
		{
			name: "no timings",
			mode: randr.ModeInfo{DotClock: 148500000},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RefreshMilliHz(tt.mode); got != tt.want {
				t.Fatalf("RefreshMilliHz() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBuildMonitors(t *testing.T) {
	resources := &randr.GetScreenResourcesReply{
		Outputs: []randr.Output{10, 11, 12},
		Crtcs:   []randr.Crtc{100},
		Modes: []randr.ModeInfo{
			{Id: 1, Width: 1920, Height: 1080, DotClock: 148500000, Htotal: 2200, Vtotal: 1125},
			{Id: 2, Width: 1280, Height: 720, DotClock: 74250000, Htotal: 1650, Vtotal: 750},
		},
	}
	outputs := map[randr.Output]*randr.GetOutputInfoReply{
		10: {Name: []byte("HDMI-1"), Connection: randr.ConnectionConnected, Crtc: 100, Modes: []randr.Mode{1, 2}},
		11: {Name: []byte("DP-1"), Connection: randr.ConnectionConnected, Modes: []randr.Mode{2, 99}},
		12: {Name: []byte("VGA-1"), Connection: randr.ConnectionDisconnected},
	}
	crtcs := map[randr.Crtc]*randr.GetCrtcInfoReply{
		100: {X: 1920, Y: 0, Width: 1920, Height: 1080, Mode: 1, Outputs: []randr.Output{10}},
	}

	got := buildMonitors(resources, outputs, crtcs)

	want := []Monitor{
		{
			ID:     1,
			Name:   "DP-1",
			Output: 11,
			Modes:  []Mode{{ID: 2, Width: 1280, Height: 720, RefreshMilliHz: 60000}},
		},
		{
			ID:      0,
			Name:    "HDMI-1",
			X:       1920,
			Width:   1920,
			Height:  1080,
			Output:  10,
			Crtc:    100,
			Current: Mode{ID: 1, Width: 1920, Height: 1080, RefreshMilliHz: 60000},
			Modes: []Mode{
				{ID: 1, Width: 1920, Height: 1080, RefreshMilliHz: 60000},
				{ID: 2, Width: 1280, Height: 720, RefreshMilliHz: 60000},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("buildMonitors() mismatch (-want +got):\n%s", diff)
	}
}

func TestMonitorFindMode(t *testing.T) {
	mon := Monitor{Modes: []Mode{
		{ID: 1, Width: 1920, Height: 1080, RefreshMilliHz: 59940},
		{ID: 2, Width: 1920, Height: 1080, RefreshMilliHz: 120000},
	}}

	mode, ok := mon.FindMode(1920, 1080, 60)
	if !ok || mode.ID != 1 {
		t.Fatalf("FindMode(60) = %+v, %v; want mode 1", mode, ok)
	}
	if _, ok := mon.FindMode(1920, 1080, 144); ok {
		t.Fatal("FindMode(144) should not match")
	}
}
