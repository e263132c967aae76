package x11

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
)

// Mode is one RandR mode an output can drive.
type Mode struct {
	ID             randr.Mode
	Width          int
	Height         int
	RefreshMilliHz uint32
}

// Monitor represents a connected output. Outputs without an active CRTC
// have zero geometry and no current mode.
type Monitor struct {
	ID      int
	Name    string
	X       int
	Y       int
	Width   int
	Height  int
	Output  randr.Output
	Crtc    randr.Crtc
	Current Mode
	Modes   []Mode
}

// RefreshMilliHz computes a mode's vertical refresh in milli-Hz, rounded to
// the nearest unit. It returns 0 for modes with no timing information.
func RefreshMilliHz(m randr.ModeInfo) uint32 {
	clock := uint64(m.DotClock) * 1000
	total := uint64(m.Htotal) * uint64(m.Vtotal)
	if m.ModeFlags&randr.ModeFlagDoubleScan != 0 {
		total *= 2
	}
	if m.ModeFlags&randr.ModeFlagInterlace != 0 {
		clock *= 2
	}
	if total == 0 {
		return 0
	}
	return uint32((clock + total/2) / total)
}

// GetMonitors retrieves every connected output and the modes it supports using XRandR
func (c *Connection) GetMonitors() ([]Monitor, error) {
	conn := c.XUtil.Conn()

	resources, err := randr.GetScreenResources(conn, c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	outputs := make(map[randr.Output]*randr.GetOutputInfoReply, len(resources.Outputs))
	for _, output := range resources.Outputs {
		info, err := randr.GetOutputInfo(conn, output, resources.ConfigTimestamp).Reply()
		if err != nil {
			return nil, fmt.Errorf("failed to get output info for %d: %w", output, err)
		}
		outputs[output] = info
	}

	crtcs := make(map[randr.Crtc]*randr.GetCrtcInfoReply, len(resources.Crtcs))
	for _, crtc := range resources.Crtcs {
		info, err := randr.GetCrtcInfo(conn, crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		crtcs[crtc] = info
	}

	return buildMonitors(resources, outputs, crtcs), nil
}

// buildMonitors assembles monitors from already fetched RandR replies.
func buildMonitors(
	resources *randr.GetScreenResourcesReply,
	outputs map[randr.Output]*randr.GetOutputInfoReply,
	crtcs map[randr.Crtc]*randr.GetCrtcInfoReply,
) []Monitor {
	modeInfo := make(map[randr.Mode]randr.ModeInfo, len(resources.Modes))
	for _, m := range resources.Modes {
		modeInfo[randr.Mode(m.Id)] = m
	}
	toMode := func(id randr.Mode) (Mode, bool) {
		info, ok := modeInfo[id]
		if !ok {
			return Mode{}, false
		}
		return Mode{
			ID:             id,
			Width:          int(info.Width),
			Height:         int(info.Height),
			RefreshMilliHz: RefreshMilliHz(info),
		}, true
	}

	var monitors []Monitor
	for i, output := range resources.Outputs {
		info, ok := outputs[output]
		if !ok || info.Connection != randr.ConnectionConnected {
			continue
		}

		mon := Monitor{
			ID:     i,
			Name:   string(info.Name),
			Output: output,
			Crtc:   info.Crtc,
		}
		for _, id := range info.Modes {
			if m, ok := toMode(id); ok {
				mon.Modes = append(mon.Modes, m)
			}
		}

		if crtc, ok := crtcs[info.Crtc]; ok && info.Crtc != 0 && crtc.Width > 0 && crtc.Height > 0 {
			mon.X = int(crtc.X)
			mon.Y = int(crtc.Y)
			mon.Width = int(crtc.Width)
			mon.Height = int(crtc.Height)
			if m, ok := toMode(crtc.Mode); ok {
				mon.Current = m
			}
		}

		monitors = append(monitors, mon)
	}

	sort.Slice(monitors, func(i, j int) bool {
		return monitors[i].Name < monitors[j].Name
	})
	return monitors
}

// FindMode returns the mode of m matching the size and the refresh rate in
// whole Hz.
func (m Monitor) FindMode(width, height int, refreshHz uint32) (Mode, bool) {
	for _, mode := range m.Modes {
		if mode.Width == width && mode.Height == height && (mode.RefreshMilliHz+500)/1000 == refreshHz {
			return mode, true
		}
	}
	return Mode{}, false
}

// SwitchMode reprograms the CRTC driving mon to mode, keeping its position,
// rotation and outputs. The returned restore func puts the previous mode
// back.
func (c *Connection) SwitchMode(mon Monitor, mode Mode) (restore func() error, err error) {
	if mon.Crtc == 0 {
		return nil, fmt.Errorf("monitor %s has no active crtc", mon.Name)
	}
	conn := c.XUtil.Conn()

	resources, err := randr.GetScreenResources(conn, c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}
	prev, err := randr.GetCrtcInfo(conn, mon.Crtc, resources.ConfigTimestamp).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get crtc info for %s: %w", mon.Name, err)
	}

	set := func(id randr.Mode, configTimestamp xproto.Timestamp) error {
		reply, err := randr.SetCrtcConfig(conn, mon.Crtc, xproto.TimeCurrentTime, configTimestamp,
			prev.X, prev.Y, id, prev.Rotation, prev.Outputs).Reply()
		if err != nil {
			return err
		}
		if reply != nil && reply.Status != randr.SetConfigSuccess {
			return fmt.Errorf("randr refused mode %d on %s (status %d)", id, mon.Name, reply.Status)
		}
		return nil
	}

	if err := set(mode.ID, resources.ConfigTimestamp); err != nil {
		return nil, fmt.Errorf("failed to switch %s to %dx%d: %w", mon.Name, mode.Width, mode.Height, err)
	}

	restore = func() error {
		res, err := randr.GetScreenResources(conn, c.Root).Reply()
		if err != nil {
			return fmt.Errorf("failed to get screen resources: %w", err)
		}
		if err := set(prev.Mode, res.ConfigTimestamp); err != nil {
			return fmt.Errorf("failed to restore mode on %s: %w", mon.Name, err)
		}
		return nil
	}
	return restore, nil
}
