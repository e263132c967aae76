package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// SourceKind selects how a source acquires video.
type SourceKind int

const (
	SourceTest SourceKind = iota
	SourceURI
)

func (k SourceKind) String() string {
	switch k {
	case SourceTest:
		return "Test"
	case SourceURI:
		return "URI"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// ModeKind selects how a sink occupies screen space.
type ModeKind int

const (
	ModeWindowed ModeKind = iota
	ModeBorderless
	ModeExclusive
)

func (k ModeKind) String() string {
	switch k {
	case ModeWindowed:
		return "Windowed"
	case ModeBorderless:
		return "Borderless"
	case ModeExclusive:
		return "Exclusive"
	default:
		return fmt.Sprintf("ModeKind(%d)", int(k))
	}
}

// Source is a named video producer.
type Source struct {
	ID   uint32
	Name string
	Kind SourceKind
	URI  string // only for SourceURI
}

// PresentationMode is the requested placement of a sink. Monitor is empty for
// windowed sinks; Width, Height and RefreshHz are only set for exclusive ones.
type PresentationMode struct {
	Kind      ModeKind
	Monitor   string
	Width     uint32
	Height    uint32
	RefreshHz uint32
}

func Windowed() PresentationMode {
	return PresentationMode{Kind: ModeWindowed}
}

func Borderless(monitor string) PresentationMode {
	return PresentationMode{Kind: ModeBorderless, Monitor: monitor}
}

func Exclusive(monitor string, width, height, refreshHz uint32) PresentationMode {
	return PresentationMode{
		Kind:      ModeExclusive,
		Monitor:   monitor,
		Width:     width,
		Height:    height,
		RefreshHz: refreshHz,
	}
}

func (m PresentationMode) String() string {
	switch m.Kind {
	case ModeBorderless:
		return fmt.Sprintf("borderless(%s)", m.Monitor)
	case ModeExclusive:
		return fmt.Sprintf("exclusive(%s %dx%d@%dHz)", m.Monitor, m.Width, m.Height, m.RefreshHz)
	default:
		return "windowed"
	}
}

// Sink is a named presentation surface.
type Sink struct {
	ID           uint32
	Name         string
	Presentation PresentationMode
}

// Region routes one source to one sink.
type Region struct {
	ID       uint32
	Name     string
	SourceID uint32
	SinkID   uint32
}

// RuntimeConfig is the complete routing declaration handed to the engine.
// It is treated as read-only once loaded.
type RuntimeConfig struct {
	Sources []Source
	Sinks   []Sink
	Regions []Region
}

// Source returns the source with the given id.
func (c *RuntimeConfig) Source(id uint32) (Source, bool) {
	for _, s := range c.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// Sink returns the sink with the given id.
func (c *RuntimeConfig) Sink(id uint32) (Sink, bool) {
	for _, s := range c.Sinks {
		if s.ID == id {
			return s, true
		}
	}
	return Sink{}, false
}

// RegionsForSource returns the regions fed by sourceID, in declaration order.
func (c *RuntimeConfig) RegionsForSource(sourceID uint32) []Region {
	var out []Region
	for _, r := range c.Regions {
		if r.SourceID == sourceID {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks cross references and per-record constraints. Every problem
// is reported, wrapped in a *ConfigError.
func (c *RuntimeConfig) Validate() error {
	if c == nil {
		return &ConfigError{Err: &ValidationError{Err: fmt.Errorf("config is nil")}}
	}

	var result *multierror.Error
	add := func(path string, format string, args ...any) {
		result = multierror.Append(result, &ValidationError{Path: path, Err: fmt.Errorf(format, args...)})
	}

	sources := make(map[uint32]int, len(c.Sources))
	for i, s := range c.Sources {
		path := fmt.Sprintf("sources[%d]", i)
		if prev, ok := sources[s.ID]; ok {
			add(path+".id", "duplicate source id %d (also sources[%d])", s.ID, prev)
		} else {
			sources[s.ID] = i
		}
		switch s.Kind {
		case SourceTest:
		case SourceURI:
			if strings.TrimSpace(s.URI) == "" {
				add(path+".uri", "uri must not be empty for a URI source")
			}
		default:
			add(path+".type", "unknown source kind %v", s.Kind)
		}
	}

	sinks := make(map[uint32]int, len(c.Sinks))
	for i, s := range c.Sinks {
		path := fmt.Sprintf("sinks[%d]", i)
		if prev, ok := sinks[s.ID]; ok {
			add(path+".id", "duplicate sink id %d (also sinks[%d])", s.ID, prev)
		} else {
			sinks[s.ID] = i
		}
		m := s.Presentation
		switch m.Kind {
		case ModeWindowed:
		case ModeBorderless:
			if strings.TrimSpace(m.Monitor) == "" {
				add(path+".full_screen.name", "borderless mode requires a monitor name")
			}
		case ModeExclusive:
			if strings.TrimSpace(m.Monitor) == "" {
				add(path+".full_screen.info.name", "exclusive mode requires a monitor name")
			}
			if m.Width == 0 || m.Height == 0 {
				add(path+".full_screen.info.resolution", "exclusive mode requires a non-zero resolution")
			}
			if m.RefreshHz == 0 {
				add(path+".full_screen.info.refresh_rate", "exclusive mode requires a non-zero refresh rate")
			}
		default:
			add(path+".full_screen.type", "unknown presentation mode %v", m.Kind)
		}
	}

	regionIDs := make(map[uint32]int, len(c.Regions))
	sinkUsers := make(map[uint32]int, len(c.Regions))
	for i, r := range c.Regions {
		path := fmt.Sprintf("regions[%d]", i)
		if prev, ok := regionIDs[r.ID]; ok {
			add(path+".id", "duplicate region id %d (also regions[%d])", r.ID, prev)
		} else {
			regionIDs[r.ID] = i
		}
		if _, ok := sources[r.SourceID]; !ok {
			add(path+".source", "region %d references unknown source %d", r.ID, r.SourceID)
		}
		if _, ok := sinks[r.SinkID]; !ok {
			add(path+".sink", "region %d references unknown sink %d", r.ID, r.SinkID)
			continue
		}
		if prev, ok := sinkUsers[r.SinkID]; ok {
			add(path+".sink", "sink %d is already fed by regions[%d]; a sink accepts one region", r.SinkID, prev)
			continue
		}
		sinkUsers[r.SinkID] = i
	}

	if err := result.ErrorOrNil(); err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}
