package display

import (
	"fmt"
	"strings"

	"github.com/1broseidon/projectmapper/internal/config"
)

// Resolved is a presentation target validated against the inventory.
// Monitor is nil for windowed sinks.
type Resolved struct {
	Kind      config.ModeKind
	Monitor   *MonitorCaps
	Width     uint32
	Height    uint32
	RefreshHz uint32
}

func (r Resolved) String() string {
	switch r.Kind {
	case config.ModeBorderless:
		return fmt.Sprintf("borderless on %s (%dx%d)", r.Monitor.Name, r.Width, r.Height)
	case config.ModeExclusive:
		return fmt.Sprintf("exclusive on %s (%dx%d@%dHz)", r.Monitor.Name, r.Width, r.Height, r.RefreshHz)
	default:
		return "windowed"
	}
}

// ResolutionErrorKind says which part of a requested mode was unavailable.
type ResolutionErrorKind int

const (
	UnknownMonitor ResolutionErrorKind = iota
	UnknownResolution
	UnknownRefreshRate
)

func (k ResolutionErrorKind) String() string {
	switch k {
	case UnknownMonitor:
		return "UnknownMonitor"
	case UnknownResolution:
		return "UnknownResolution"
	case UnknownRefreshRate:
		return "UnknownRefreshRate"
	default:
		return fmt.Sprintf("ResolutionErrorKind(%d)", int(k))
	}
}

// ResolutionError reports an unavailable presentation request together with
// the values that would have been accepted.
type ResolutionError struct {
	Kind      ResolutionErrorKind
	Monitor   string
	Requested config.PresentationMode

	// Exactly one of these lists is populated, matching Kind.
	Known        []string
	Resolutions  []Resolution
	RefreshRates []uint32
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case UnknownMonitor:
		known := "none"
		if len(e.Known) > 0 {
			known = strings.Join(e.Known, ", ")
		}
		return fmt.Sprintf("unknown monitor %q (available: %s)", e.Monitor, known)
	case UnknownResolution:
		res := make([]string, 0, len(e.Resolutions))
		for _, r := range e.Resolutions {
			res = append(res, r.String())
		}
		avail := "none"
		if len(res) > 0 {
			avail = strings.Join(res, ", ")
		}
		return fmt.Sprintf("monitor %q does not support %dx%d (available: %s)",
			e.Monitor, e.Requested.Width, e.Requested.Height, avail)
	case UnknownRefreshRate:
		rates := make([]string, 0, len(e.RefreshRates))
		for _, r := range e.RefreshRates {
			rates = append(rates, fmt.Sprintf("%dHz", r))
		}
		return fmt.Sprintf("monitor %q does not support %dHz at %dx%d (available: %s)",
			e.Monitor, e.Requested.RefreshHz, e.Requested.Width, e.Requested.Height, strings.Join(rates, ", "))
	default:
		return fmt.Sprintf("cannot resolve %s", e.Requested)
	}
}

// Resolve validates mode against inv. There is no fallback to a nearby mode.
func Resolve(mode config.PresentationMode, inv *Inventory) (Resolved, error) {
	switch mode.Kind {
	case config.ModeWindowed:
		return Resolved{Kind: config.ModeWindowed}, nil

	case config.ModeBorderless:
		caps, ok := inv.Monitor(mode.Monitor)
		if !ok {
			return Resolved{}, unknownMonitor(mode, inv)
		}
		return Resolved{
			Kind:      config.ModeBorderless,
			Monitor:   &caps,
			Width:     uint32(caps.Bounds.Width),
			Height:    uint32(caps.Bounds.Height),
			RefreshHz: caps.Current.RefreshHz,
		}, nil

	case config.ModeExclusive:
		caps, ok := inv.Monitor(mode.Monitor)
		if !ok {
			return Resolved{}, unknownMonitor(mode, inv)
		}
		want := Resolution{Width: mode.Width, Height: mode.Height}
		rates := caps.RefreshRates(want)
		if len(rates) == 0 {
			return Resolved{}, &ResolutionError{
				Kind:        UnknownResolution,
				Monitor:     mode.Monitor,
				Requested:   mode,
				Resolutions: caps.Resolutions(),
			}
		}
		for _, hz := range rates {
			if hz == mode.RefreshHz {
				return Resolved{
					Kind:      config.ModeExclusive,
					Monitor:   &caps,
					Width:     mode.Width,
					Height:    mode.Height,
					RefreshHz: hz,
				}, nil
			}
		}
		return Resolved{}, &ResolutionError{
			Kind:         UnknownRefreshRate,
			Monitor:      mode.Monitor,
			Requested:    mode,
			RefreshRates: rates,
		}

	default:
		return Resolved{}, fmt.Errorf("unsupported presentation mode %v", mode.Kind)
	}
}

func unknownMonitor(mode config.PresentationMode, inv *Inventory) error {
	return &ResolutionError{
		Kind:      UnknownMonitor,
		Monitor:   mode.Monitor,
		Requested: mode,
		Known:     inv.Names(),
	}
}
