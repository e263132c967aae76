package x11

import (
	"fmt"
	"image"
	"log"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/motif"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xgraphics"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// SurfaceOptions describes a top-level output window.
type SurfaceOptions struct {
	Title  string
	X      int
	Y      int
	Width  int
	Height int
	// Undecorated asks the window manager to drop the frame and title bar.
	Undecorated bool
	// Fullscreen sets _NET_WM_STATE_FULLSCREEN before mapping.
	Fullscreen bool
}

// Surface is a window frames are painted into.
type Surface struct {
	conn    *Connection
	win     *xwindow.Window
	img     *xgraphics.Image
	restore func() error
}

// CreateSurface creates and maps a window. Callbacks registered on the
// surface run on the X event loop goroutine.
func (c *Connection) CreateSurface(opts SurfaceOptions) (*Surface, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid surface size %dx%d", opts.Width, opts.Height)
	}

	win, err := xwindow.Generate(c.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate window id: %w", err)
	}
	err = win.CreateChecked(c.Root, opts.X, opts.Y, opts.Width, opts.Height,
		xproto.CwBackPixel|xproto.CwEventMask,
		0x000000,
		xproto.EventMaskStructureNotify|xproto.EventMaskExposure)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	if opts.Title != "" {
		ewmh.WmNameSet(c.XUtil, win.Id, opts.Title)
		icccm.WmNameSet(c.XUtil, win.Id, opts.Title)
	}
	icccm.WmClassSet(c.XUtil, win.Id, &icccm.WmClass{
		Instance: "projectmapper",
		Class:    "ProjectMapper",
	})

	if opts.Undecorated {
		if err := motif.WmHintsSet(c.XUtil, win.Id, &motif.Hints{
			Flags:      motif.HintDecorations,
			Decoration: motif.DecorationNone,
		}); err != nil {
			log.Printf("x11: failed to set motif hints on %d: %v", win.Id, err)
		}
	}
	if opts.Fullscreen {
		ewmh.WmStateSet(c.XUtil, win.Id, []string{"_NET_WM_STATE_FULLSCREEN"})
	}

	win.Map()
	return &Surface{conn: c, win: win}, nil
}

// ID returns the X window id.
func (s *Surface) ID() xproto.Window {
	return s.win.Id
}

// OnClose registers cb for WM_DELETE_WINDOW requests.
func (s *Surface) OnClose(cb func()) {
	s.win.WMGracefulClose(func(*xwindow.Window) {
		cb()
	})
}

// OnResize registers cb for size changes reported by ConfigureNotify.
func (s *Surface) OnResize(cb func(width, height int)) {
	last := [2]int{}
	xevent.ConfigureNotifyFun(func(_ *xgbutil.XUtil, ev xevent.ConfigureNotifyEvent) {
		size := [2]int{int(ev.Width), int(ev.Height)}
		if size == last {
			return
		}
		last = size
		cb(size[0], size[1])
	}).Connect(s.conn.XUtil, s.win.Id)
}

// SetRestore records a func Destroy runs after the window is gone, used to
// undo a display mode switch.
func (s *Surface) SetRestore(fn func() error) {
	s.restore = fn
}

// Draw copies a BGRA frame into the window's backing pixmap and repaints.
// stride is the number of bytes per row in data.
func (s *Surface) Draw(data []byte, width, height, stride int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if len(data) < stride*(height-1)+width*4 {
		return fmt.Errorf("short frame: %d bytes for %dx%d stride %d", len(data), width, height, stride)
	}

	if s.img == nil || s.img.Rect.Dx() != width || s.img.Rect.Dy() != height {
		if s.img != nil {
			s.img.Destroy()
		}
		s.img = xgraphics.New(s.conn.XUtil, image.Rect(0, 0, width, height))
		if err := s.img.XSurfaceSet(s.win.Id); err != nil {
			s.img.Destroy()
			s.img = nil
			return fmt.Errorf("failed to attach pixmap: %w", err)
		}
	}

	// xgraphics stores pixels as BGRA, which is what the capture emits.
	row := width * 4
	for y := 0; y < height; y++ {
		copy(s.img.Pix[y*s.img.Stride:y*s.img.Stride+row], data[y*stride:y*stride+row])
	}
	s.img.XDraw()
	s.img.XPaint(s.win.Id)
	return nil
}

// Destroy detaches callbacks, destroys the window and runs the restore func.
func (s *Surface) Destroy() error {
	xevent.Detach(s.conn.XUtil, s.win.Id)
	if s.img != nil {
		s.img.Destroy()
		s.img = nil
	}
	s.win.Destroy()

	if s.restore != nil {
		restore := s.restore
		s.restore = nil
		return restore()
	}
	return nil
}
