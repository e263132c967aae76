// Package platform abstracts the windowing system: monitor enumeration,
// output surfaces and the event loop that owns them.
package platform

import (
	"context"
	"fmt"

	"github.com/1broseidon/projectmapper/internal/display"
	"github.com/1broseidon/projectmapper/internal/media"
)

// SurfaceID is a platform-neutral surface identifier.
type SurfaceID uint32

// SurfaceRequest asks for an output surface presenting a resolved mode.
type SurfaceRequest struct {
	SinkID uint32
	Title  string
	Target display.Resolved
	// Width/Height size windowed surfaces; fullscreen surfaces take the
	// monitor bounds.
	Width  int
	Height int
}

// SurfaceEventKind identifies what happened to a surface.
type SurfaceEventKind int

const (
	// SurfaceClosed is reported when the user closes the surface.
	SurfaceClosed SurfaceEventKind = iota
	// SurfaceResized is reported when the surface size changes.
	SurfaceResized
)

func (k SurfaceEventKind) String() string {
	switch k {
	case SurfaceClosed:
		return "closed"
	case SurfaceResized:
		return "resized"
	default:
		return fmt.Sprintf("SurfaceEventKind(%d)", int(k))
	}
}

// SurfaceEvent is delivered on the event loop goroutine.
type SurfaceEvent struct {
	Surface SurfaceID
	Kind    SurfaceEventKind
	Width   int
	Height  int
}

// Backend abstracts window-system operations. Every method except Post and
// Quit must be called from the event loop goroutine, or before Run starts
// from the goroutine that will call Run.
type Backend interface {
	display.Enumerator
	OpenSurface(req SurfaceRequest) (SurfaceID, error)
	SubmitFrame(id SurfaceID, frame media.Frame) error
	CloseSurface(id SurfaceID) error
	// Post queues fn to run on the event loop. Safe from any goroutine and
	// never blocks. Posted funcs run in FIFO order.
	Post(fn func())
	// Run drives the event loop until Quit is called or ctx is done.
	// handle receives surface events on the loop goroutine.
	Run(ctx context.Context, handle func(SurfaceEvent)) error
	// Quit stops Run after the funcs already posted have run.
	Quit()
}
