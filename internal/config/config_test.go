package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() *RuntimeConfig {
	return &RuntimeConfig{
		Sources: []Source{
			{ID: 1, Name: "pattern", Kind: SourceTest},
			{ID: 2, Name: "lobby", Kind: SourceURI, URI: "file:///srv/lobby.mp4"},
		},
		Sinks: []Sink{
			{ID: 1, Name: "left", Presentation: Windowed()},
			{ID: 2, Name: "right", Presentation: Borderless("HDMI-1")},
			{ID: 3, Name: "wall", Presentation: Exclusive("DP-1", 1920, 1080, 60)},
		},
		Regions: []Region{
			{ID: 1, Name: "a", SourceID: 1, SinkID: 1},
			{ID: 2, Name: "b", SourceID: 1, SinkID: 2},
			{ID: 3, Name: "c", SourceID: 2, SinkID: 3},
		},
	}
}

func TestValidate_AcceptsFanOut(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *RuntimeConfig)
		wantPath string
	}{
		{
			name:     "dangling source",
			mutate:   func(c *RuntimeConfig) { c.Regions[0].SourceID = 42 },
			wantPath: "regions[0].source",
		},
		{
			name:     "dangling sink",
			mutate:   func(c *RuntimeConfig) { c.Regions[2].SinkID = 9 },
			wantPath: "regions[2].sink",
		},
		{
			name:     "fan-in",
			mutate:   func(c *RuntimeConfig) { c.Regions[1].SinkID = 1 },
			wantPath: "regions[1].sink",
		},
		{
			name:     "duplicate source id",
			mutate:   func(c *RuntimeConfig) { c.Sources[1].ID = 1 },
			wantPath: "sources[1].id",
		},
		{
			name:     "duplicate region id",
			mutate:   func(c *RuntimeConfig) { c.Regions[2].ID = 1 },
			wantPath: "regions[2].id",
		},
		{
			name:     "empty uri",
			mutate:   func(c *RuntimeConfig) { c.Sources[1].URI = " " },
			wantPath: "sources[1].uri",
		},
		{
			name:     "borderless without monitor",
			mutate:   func(c *RuntimeConfig) { c.Sinks[1].Presentation = Borderless("") },
			wantPath: "sinks[1].full_screen.name",
		},
		{
			name:     "exclusive without refresh",
			mutate:   func(c *RuntimeConfig) { c.Sinks[2].Presentation.RefreshHz = 0 },
			wantPath: "sinks[2].full_screen.info.refresh_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *ConfigError, got %T (%v)", err, err)
			}
			found := false
			for _, p := range cerr.Problems() {
				if p.Path == tt.wantPath {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected a problem at %q, got %v", tt.wantPath, cerr)
			}
		})
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Regions[0].SourceID = 99
	cfg.Regions[1].SinkID = 99
	cfg.Sources[1].URI = ""

	err := cfg.Validate()
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if got := len(cerr.Problems()); got != 3 {
		t.Fatalf("expected 3 problems, got %d: %v", got, cerr)
	}
	if !strings.Contains(cerr.Error(), "3 problems") {
		t.Fatalf("error text should count problems, got %q", cerr.Error())
	}
}

func TestValidate_SingleProblemMessage(t *testing.T) {
	cfg := validConfig()
	cfg.Regions[0].SourceID = 7

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	want := "invalid configuration: regions[0].source: region 1 references unknown source 7"
	if err.Error() != want {
		t.Fatalf("error = %q, want %q", err.Error(), want)
	}
}

func TestMilliHzToHz(t *testing.T) {
	tests := []struct {
		mhz  uint32
		want uint32
	}{
		{60000, 60},
		{59940, 60},
		{59499, 59},
		{144000, 144},
		{119880, 120},
		{0, 0},
	}
	for _, tt := range tests {
		if got := MilliHzToHz(tt.mhz); got != tt.want {
			t.Errorf("MilliHzToHz(%d) = %d, want %d", tt.mhz, got, tt.want)
		}
	}
}

func TestLookups(t *testing.T) {
	cfg := validConfig()
	if s, ok := cfg.Source(2); !ok || s.Name != "lobby" {
		t.Fatalf("Source(2) = %+v, %v", s, ok)
	}
	if _, ok := cfg.Sink(99); ok {
		t.Fatal("Sink(99) should not exist")
	}
	if got := len(cfg.RegionsForSource(1)); got != 2 {
		t.Fatalf("RegionsForSource(1) = %d regions, want 2", got)
	}
}
