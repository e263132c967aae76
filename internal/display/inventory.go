package display

import (
	"fmt"
	"sort"
)

// Rect describes a rectangular region in root-window coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Resolution is a display size in pixels.
type Resolution struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Mode is one supported video mode of a monitor.
type Mode struct {
	Width     uint32
	Height    uint32
	RefreshHz uint32
}

func (m Mode) Resolution() Resolution {
	return Resolution{Width: m.Width, Height: m.Height}
}

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%dHz", m.Width, m.Height, m.RefreshHz)
}

// MonitorCaps is what the display subsystem reports for one monitor.
type MonitorCaps struct {
	Name    string
	Bounds  Rect
	Current Mode
	Modes   []Mode
}

// Enumerator lists attached monitors. Implementations may require being
// called from the goroutine that owns the windowing event loop.
type Enumerator interface {
	EnumerateMonitors() ([]MonitorCaps, error)
}

// Inventory is an immutable snapshot of monitors and their modes.
type Inventory struct {
	monitors map[string]*MonitorCaps
	names    []string
}

// Gather queries e once and builds the inventory. Monitors that report no
// modes still get an (empty) entry.
func Gather(e Enumerator) (*Inventory, error) {
	monitors, err := e.EnumerateMonitors()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate monitors: %w", err)
	}
	return NewInventory(monitors), nil
}

// NewInventory builds an inventory from already enumerated monitors.
// Duplicate modes are collapsed; a repeated monitor name merges its modes
// into the first entry.
func NewInventory(monitors []MonitorCaps) *Inventory {
	inv := &Inventory{monitors: make(map[string]*MonitorCaps, len(monitors))}

	for _, m := range monitors {
		existing, ok := inv.monitors[m.Name]
		if !ok {
			caps := &MonitorCaps{
				Name:    m.Name,
				Bounds:  m.Bounds,
				Current: m.Current,
				Modes:   []Mode{},
			}
			inv.monitors[m.Name] = caps
			inv.names = append(inv.names, m.Name)
			existing = caps
		}
		existing.Modes = append(existing.Modes, m.Modes...)
	}

	for _, caps := range inv.monitors {
		caps.Modes = normalizeModes(caps.Modes)
	}
	sort.Strings(inv.names)
	return inv
}

func normalizeModes(modes []Mode) []Mode {
	seen := make(map[Mode]struct{}, len(modes))
	out := make([]Mode, 0, len(modes))
	for _, m := range modes {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Width != b.Width {
			return a.Width > b.Width
		}
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		return a.RefreshHz > b.RefreshHz
	})
	return out
}

// Names returns every monitor name, sorted.
func (inv *Inventory) Names() []string {
	out := make([]string, len(inv.names))
	copy(out, inv.names)
	return out
}

// Monitor looks up a monitor by name.
func (inv *Inventory) Monitor(name string) (MonitorCaps, bool) {
	caps, ok := inv.monitors[name]
	if !ok {
		return MonitorCaps{}, false
	}
	out := *caps
	out.Modes = append([]Mode(nil), caps.Modes...)
	return out, true
}

// Monitors returns every monitor in name order.
func (inv *Inventory) Monitors() []MonitorCaps {
	out := make([]MonitorCaps, 0, len(inv.names))
	for _, name := range inv.names {
		m, _ := inv.Monitor(name)
		out = append(out, m)
	}
	return out
}

// Resolutions returns the distinct resolutions of a monitor, largest first.
func (m MonitorCaps) Resolutions() []Resolution {
	var out []Resolution
	seen := make(map[Resolution]struct{})
	for _, mode := range m.Modes {
		r := mode.Resolution()
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// RefreshRates returns the rates supported at r, ascending.
func (m MonitorCaps) RefreshRates(r Resolution) []uint32 {
	var out []uint32
	for _, mode := range m.Modes {
		if mode.Resolution() == r {
			out = append(out, mode.RefreshHz)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
