// Package identify draws a labelled border around every monitor so a user
// can match output names to physical screens.
package identify

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"

	"github.com/1broseidon/projectmapper/internal/config"
	"github.com/1broseidon/projectmapper/internal/display"
)

// Border colors, cycled per monitor.
var borderColors = []uint32{
	0x3498db, // blue
	0x27ae60, // green
	0xe67e22, // orange
	0x9b59b6, // purple
	0xe74c3c, // red
	0x1abc9c, // teal
}

const (
	ColorLabelText = 0xf5f7fa
	ColorLabelBg   = 0x1f2933
)

// BorderThickness in pixels.
const BorderThickness = 8

const (
	labelMargin     = 24
	labelPaddingX   = 10
	labelPaddingY   = 8
	labelLineHeight = 16
	labelCharWidth  = 7
	labelMinWidth   = 220
)

// label is a single-window text panel.
type label struct {
	Window  xproto.Window
	GC      xproto.Gcontext
	Font    xproto.Font
}

// border is a rectangular frame made of 4 thin windows.
type border struct {
	Top    xproto.Window
	Bottom xproto.Window
	Left   xproto.Window
	Right  xproto.Window
}

// Overlay owns the override-redirect windows of one identify pass.
type Overlay struct {
	xu   *xgbutil.XUtil
	root xproto.Window

	borders []*border
	labels  []*label
	font    xproto.Font
}

// NewOverlay creates an overlay on the given root window.
func NewOverlay(xu *xgbutil.XUtil, root xproto.Window) *Overlay {
	return &Overlay{xu: xu, root: root}
}

// Show frames every monitor in inv and labels it with its name, geometry
// and the sinks of cfg that target it. cfg may be nil.
func (o *Overlay) Show(inv *display.Inventory, cfg *config.RuntimeConfig) error {
	for i, m := range inv.Monitors() {
		color := borderColors[i%len(borderColors)]

		b, err := o.createBorder()
		if err != nil {
			return err
		}
		o.borders = append(o.borders, b)
		o.placeBorder(b, m.Bounds, color)

		lines := labelLines(m, sinksOn(cfg, m.Name))
		l, err := o.createLabel()
		if err != nil {
			return err
		}
		o.labels = append(o.labels, l)
		o.drawLabel(l, m.Bounds, lines)
	}

	// Round trip so everything is on screen before Show returns.
	_, err := xproto.GetInputFocus(o.xu.Conn()).Reply()
	return err
}

// Cleanup destroys all overlay windows.
func (o *Overlay) Cleanup() {
	conn := o.xu.Conn()
	for _, b := range o.borders {
		for _, w := range []xproto.Window{b.Top, b.Bottom, b.Left, b.Right} {
			if w != 0 {
				xproto.DestroyWindow(conn, w)
			}
		}
	}
	for _, l := range o.labels {
		if l.GC != 0 {
			xproto.FreeGC(conn, l.GC)
		}
		if l.Window != 0 {
			xproto.DestroyWindow(conn, l.Window)
		}
	}
	if o.font != 0 {
		xproto.CloseFont(conn, o.font)
	}
	o.borders = nil
	o.labels = nil
	o.font = 0
	xproto.GetInputFocus(conn).Reply()
}

func (o *Overlay) createBorder() (*border, error) {
	b := &border{}
	for _, w := range []*xproto.Window{&b.Top, &b.Bottom, &b.Left, &b.Right} {
		wid, err := o.createOverrideRedirectWindow()
		if err != nil {
			return nil, err
		}
		*w = wid
	}
	return b, nil
}

func (o *Overlay) placeBorder(b *border, r display.Rect, color uint32) {
	t := BorderThickness
	o.updateWindow(b.Top, r.X, r.Y, r.Width, t, color)
	o.updateWindow(b.Bottom, r.X, r.Y+r.Height-t, r.Width, t, color)
	o.updateWindow(b.Left, r.X, r.Y+t, t, r.Height-2*t, color)
	o.updateWindow(b.Right, r.X+r.Width-t, r.Y+t, t, r.Height-2*t, color)

	conn := o.xu.Conn()
	xproto.MapWindow(conn, b.Top)
	xproto.MapWindow(conn, b.Bottom)
	xproto.MapWindow(conn, b.Left)
	xproto.MapWindow(conn, b.Right)
}

// createOverrideRedirectWindow creates a window the window manager ignores.
func (o *Overlay) createOverrideRedirectWindow() (xproto.Window, error) {
	conn := o.xu.Conn()
	screen := o.xu.Screen()

	wid, err := xproto.NewWindowId(conn)
	if err != nil {
		return 0, err
	}

	// Value list order follows the mask bits: CwBackPixel before CwOverrideRedirect.
	err = xproto.CreateWindowChecked(
		conn,
		screen.RootDepth,
		wid,
		o.root,
		0, 0,
		1, 1,
		0,
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		xproto.CwBackPixel|xproto.CwOverrideRedirect,
		[]uint32{0, 1},
	).Check()
	if err != nil {
		return 0, err
	}
	return wid, nil
}

// updateWindow moves, resizes, and recolors a window.
func (o *Overlay) updateWindow(wid xproto.Window, x, y, width, height int, color uint32) {
	conn := o.xu.Conn()

	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	xproto.ConfigureWindow(
		conn,
		wid,
		xproto.ConfigWindowX|xproto.ConfigWindowY|xproto.ConfigWindowWidth|xproto.ConfigWindowHeight|xproto.ConfigWindowStackMode,
		[]uint32{
			uint32(x),
			uint32(y),
			uint32(width),
			uint32(height),
			xproto.StackModeAbove,
		},
	)
	xproto.ChangeWindowAttributes(conn, wid, xproto.CwBackPixel, []uint32{color})
	xproto.ClearArea(conn, false, wid, 0, 0, 0, 0)
}

func (o *Overlay) openFont() (xproto.Font, error) {
	if o.font != 0 {
		return o.font, nil
	}
	conn := o.xu.Conn()
	font, err := xproto.NewFontId(conn)
	if err != nil {
		return 0, err
	}
	for _, name := range []string{"9x15", "fixed", "8x13", "6x13"} {
		if err := xproto.OpenFontChecked(conn, font, uint16(len(name)), name).Check(); err == nil {
			o.font = font
			return font, nil
		}
	}
	return 0, fmt.Errorf("no usable core X font")
}

func (o *Overlay) createLabel() (*label, error) {
	conn := o.xu.Conn()

	font, err := o.openFont()
	if err != nil {
		return nil, err
	}
	wid, err := o.createOverrideRedirectWindow()
	if err != nil {
		return nil, err
	}
	gc, err := xproto.NewGcontextId(conn)
	if err != nil {
		xproto.DestroyWindow(conn, wid)
		return nil, err
	}
	err = xproto.CreateGCChecked(
		conn,
		gc,
		xproto.Drawable(wid),
		xproto.GcForeground|xproto.GcBackground|xproto.GcFont|xproto.GcGraphicsExposures,
		[]uint32{ColorLabelText, ColorLabelBg, uint32(font), 0},
	).Check()
	if err != nil {
		xproto.DestroyWindow(conn, wid)
		return nil, err
	}
	return &label{Window: wid, GC: gc, Font: font}, nil
}

func (o *Overlay) drawLabel(l *label, bounds display.Rect, lines []string) {
	conn := o.xu.Conn()

	width, height := labelDimensions(lines)
	x, y := labelOrigin(bounds, width, height)
	o.updateWindow(l.Window, x, y, width, height, ColorLabelBg)

	// Content of an unmapped window is not kept, so map before drawing.
	xproto.MapWindow(conn, l.Window)

	baseline := labelPaddingY + labelLineHeight - 4
	for i, line := range lines {
		if line == "" {
			continue
		}
		if len(line) > 255 {
			line = line[:255]
		}
		xproto.ImageText8(
			conn,
			byte(len(line)),
			xproto.Drawable(l.Window),
			l.GC,
			int16(labelPaddingX),
			int16(baseline+i*labelLineHeight),
			line,
		)
	}
}

// sinksOn lists the sinks of cfg presented on monitor.
func sinksOn(cfg *config.RuntimeConfig, monitor string) []config.Sink {
	if cfg == nil {
		return nil
	}
	var out []config.Sink
	for _, s := range cfg.Sinks {
		if s.Presentation.Kind != config.ModeWindowed && s.Presentation.Monitor == monitor {
			out = append(out, s)
		}
	}
	return out
}

func labelLines(m display.MonitorCaps, sinks []config.Sink) []string {
	lines := []string{
		m.Name,
		fmt.Sprintf("%dx%d at %d,%d", m.Bounds.Width, m.Bounds.Height, m.Bounds.X, m.Bounds.Y),
	}
	if m.Current.Width > 0 {
		lines = append(lines, "mode "+m.Current.String())
	}
	for _, s := range sinks {
		lines = append(lines, fmt.Sprintf("sink %d %s (%s)", s.ID, s.Name, s.Presentation))
	}
	return lines
}

func labelDimensions(lines []string) (width, height int) {
	maxChars := 0
	for _, line := range lines {
		if len(line) > maxChars {
			maxChars = len(line)
		}
	}
	width = maxChars*labelCharWidth + 2*labelPaddingX
	if width < labelMinWidth {
		width = labelMinWidth
	}
	height = len(lines)*labelLineHeight + 2*labelPaddingY
	return width, height
}

// labelOrigin puts the label in the top-left corner of bounds, inside the
// border, and keeps it on the monitor when the monitor is small.
func labelOrigin(bounds display.Rect, width, height int) (int, int) {
	x := bounds.X + BorderThickness + labelMargin
	y := bounds.Y + BorderThickness + labelMargin

	if right := bounds.X + bounds.Width - width; x > right {
		x = right
	}
	if bottom := bounds.Y + bounds.Height - height; y > bottom {
		y = bottom
	}
	if x < bounds.X {
		x = bounds.X
	}
	if y < bounds.Y {
		y = bounds.Y
	}
	return x, y
}
