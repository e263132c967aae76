//go:build linux

package platform

import (
	"context"
	"fmt"
	"log"
	"runtime"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/xwindow"

	"github.com/1broseidon/projectmapper/internal/config"
	"github.com/1broseidon/projectmapper/internal/display"
	"github.com/1broseidon/projectmapper/internal/media"
	"github.com/1broseidon/projectmapper/internal/x11"
)

// LinuxBackend presents sinks as X11 windows.
type LinuxBackend struct {
	conn  *x11.Connection
	queue *Queue

	// Owned by the event loop goroutine.
	surfaces map[SurfaceID]*x11.Surface
	nextID   SurfaceID
	monitors map[string]x11.Monitor
	handle   func(SurfaceEvent)
	quitting bool
}

var _ Backend = (*LinuxBackend)(nil)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{
		conn:     conn,
		queue:    NewQueue(),
		surfaces: make(map[SurfaceID]*x11.Surface),
		monitors: make(map[string]x11.Monitor),
		handle:   func(SurfaceEvent) {},
	}
}

// NewLinuxBackendFromDisplay creates a new Linux backend by opening a fresh X11 connection.
func NewLinuxBackendFromDisplay() (*LinuxBackend, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return NewLinuxBackend(conn), nil
}

// Disconnect closes the underlying X11 connection. Call it only after Run
// has returned.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the X11 root window ID.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

// EnumerateMonitors lists connected outputs and their modes.
func (b *LinuxBackend) EnumerateMonitors() ([]display.MonitorCaps, error) {
	monitors, err := b.conn.GetMonitors()
	if err != nil {
		return nil, err
	}

	caps := make([]display.MonitorCaps, 0, len(monitors))
	for _, m := range monitors {
		b.monitors[m.Name] = m
		caps = append(caps, capsFromMonitor(m))
	}
	return caps, nil
}

func capsFromMonitor(m x11.Monitor) display.MonitorCaps {
	caps := display.MonitorCaps{
		Name: m.Name,
		Bounds: display.Rect{
			X:      m.X,
			Y:      m.Y,
			Width:  m.Width,
			Height: m.Height,
		},
		Current: modeFromX11(m.Current),
		Modes:   make([]display.Mode, 0, len(m.Modes)),
	}
	for _, mode := range m.Modes {
		caps.Modes = append(caps.Modes, modeFromX11(mode))
	}
	return caps
}

func modeFromX11(m x11.Mode) display.Mode {
	return display.Mode{
		Width:     uint32(m.Width),
		Height:    uint32(m.Height),
		RefreshHz: config.MilliHzToHz(m.RefreshMilliHz),
	}
}

// OpenSurface creates a window for req. Exclusive targets switch the
// monitor's mode first; closing the surface restores it.
func (b *LinuxBackend) OpenSurface(req SurfaceRequest) (SurfaceID, error) {
	opts := x11.SurfaceOptions{Title: req.Title}
	var restore func() error

	switch req.Target.Kind {
	case config.ModeWindowed:
		opts.Width, opts.Height = req.Width, req.Height

	case config.ModeBorderless:
		mon := req.Target.Monitor
		if mon == nil {
			return 0, fmt.Errorf("borderless surface for sink %d has no monitor", req.SinkID)
		}
		opts.X, opts.Y = mon.Bounds.X, mon.Bounds.Y
		opts.Width, opts.Height = mon.Bounds.Width, mon.Bounds.Height
		opts.Undecorated = true
		opts.Fullscreen = true

	case config.ModeExclusive:
		if req.Target.Monitor == nil {
			return 0, fmt.Errorf("exclusive surface for sink %d has no monitor", req.SinkID)
		}
		mon, ok := b.monitors[req.Target.Monitor.Name]
		if !ok {
			return 0, fmt.Errorf("monitor %s was not enumerated", req.Target.Monitor.Name)
		}
		mode, ok := mon.FindMode(int(req.Target.Width), int(req.Target.Height), req.Target.RefreshHz)
		if !ok {
			return 0, fmt.Errorf("monitor %s has no mode %s", mon.Name, req.Target)
		}
		r, err := b.conn.SwitchMode(mon, mode)
		if err != nil {
			return 0, err
		}
		restore = r
		opts.X, opts.Y = mon.X, mon.Y
		opts.Width, opts.Height = mode.Width, mode.Height
		opts.Undecorated = true
		opts.Fullscreen = true

	default:
		return 0, fmt.Errorf("unsupported presentation mode %v", req.Target.Kind)
	}

	surface, err := b.conn.CreateSurface(opts)
	if err != nil {
		if restore != nil {
			if rerr := restore(); rerr != nil {
				log.Printf("platform: %v", rerr)
			}
		}
		return 0, err
	}
	surface.SetRestore(restore)

	b.nextID++
	id := b.nextID
	b.surfaces[id] = surface

	// X callbacks run on the xevent goroutine; hop onto the loop.
	surface.OnClose(func() {
		b.queue.Push(func() {
			b.handle(SurfaceEvent{Surface: id, Kind: SurfaceClosed})
		})
	})
	surface.OnResize(func(width, height int) {
		b.queue.Push(func() {
			b.handle(SurfaceEvent{Surface: id, Kind: SurfaceResized, Width: width, Height: height})
		})
	})
	return id, nil
}

// SubmitFrame paints frame into the surface.
func (b *LinuxBackend) SubmitFrame(id SurfaceID, frame media.Frame) error {
	surface, ok := b.surfaces[id]
	if !ok {
		return fmt.Errorf("unknown surface %d", id)
	}
	return surface.Draw(frame.Data, frame.Width, frame.Height, frame.Stride)
}

// CloseSurface destroys the surface and restores any mode it switched.
func (b *LinuxBackend) CloseSurface(id SurfaceID) error {
	surface, ok := b.surfaces[id]
	if !ok {
		return fmt.Errorf("unknown surface %d", id)
	}
	delete(b.surfaces, id)
	return surface.Destroy()
}

// Post queues fn onto the event loop.
func (b *LinuxBackend) Post(fn func()) {
	b.queue.Push(fn)
}

// Quit stops Run once everything posted before it has run.
func (b *LinuxBackend) Quit() {
	b.queue.Push(func() {
		b.quitting = true
	})
}

// Run interleaves X event dispatch with posted funcs on the calling
// goroutine, which is locked to its OS thread for the duration.
func (b *LinuxBackend) Run(ctx context.Context, handle func(SurfaceEvent)) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if handle != nil {
		b.handle = handle
	}
	// A previous Run leaves both quit flags set.
	b.quitting = false
	b.conn.XUtil.Quit = false

	// The X loop blocks reading events; a property change on this window
	// wakes it once Quit has been requested.
	waker, err := xwindow.Generate(b.conn.XUtil)
	if err != nil {
		return fmt.Errorf("failed to generate wake window: %w", err)
	}
	if err := waker.CreateChecked(b.conn.Root, -1, -1, 1, 1,
		xproto.CwEventMask, xproto.EventMaskPropertyChange); err != nil {
		return fmt.Errorf("failed to create wake window: %w", err)
	}
	defer waker.Destroy()

	before, after, quit := b.conn.MainPing()
	done := ctx.Done()
	xquit := false
	for {
		if (b.quitting || ctx.Err() != nil) && !xquit {
			xquit = true
			b.conn.Quit()
			ewmh.WmNameSet(b.conn.XUtil, waker.Id, "quit")
		}

		select {
		case <-before:
			<-after
		case <-b.queue.Wake():
			for _, fn := range b.queue.Drain() {
				fn()
			}
		case <-done:
			// Handled at the top of the loop.
			done = nil
		case <-quit:
			// Anything posted after Quit is dropped.
			if n := b.queue.Len(); n > 0 {
				log.Printf("platform: dropping %d posted funcs after quit", n)
			}
			if !b.quitting {
				return ctx.Err()
			}
			return nil
		}
	}
}
