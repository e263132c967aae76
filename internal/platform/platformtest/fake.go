// Package platformtest provides an in-memory platform.Backend for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/1broseidon/projectmapper/internal/display"
	"github.com/1broseidon/projectmapper/internal/media"
	"github.com/1broseidon/projectmapper/internal/platform"
)

// Surface is what the fake records for one opened surface.
type Surface struct {
	ID      platform.SurfaceID
	Request platform.SurfaceRequest
	Frames  []media.Frame
	Closed  int
}

// Backend is a platform.Backend whose event loop runs entirely in memory.
type Backend struct {
	Monitors []display.MonitorCaps
	// EnumerateErr is returned by EnumerateMonitors when set.
	EnumerateErr error
	// OpenErr, when set, is consulted before each OpenSurface.
	OpenErr func(req platform.SurfaceRequest) error
	// OnOpen runs on the loop after each successful OpenSurface.
	OnOpen func(id platform.SurfaceID)

	queue *platform.Queue

	mu       sync.Mutex
	calls    map[string]int
	surfaces map[platform.SurfaceID]*Surface
	order    []platform.SurfaceID
	nextID   platform.SurfaceID
	quitting bool
	handle   func(platform.SurfaceEvent)
}

// New returns a fake presenting the given monitors.
func New(monitors ...display.MonitorCaps) *Backend {
	return &Backend{
		Monitors: monitors,
		queue:    platform.NewQueue(),
		calls:    make(map[string]int),
		surfaces: make(map[platform.SurfaceID]*Surface),
	}
}

// Calls returns how many times op was invoked.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *Backend) EnumerateMonitors() ([]display.MonitorCaps, error) {
	b.mu.Lock()
	b.calls["EnumerateMonitors"]++
	b.mu.Unlock()
	if b.EnumerateErr != nil {
		return nil, b.EnumerateErr
	}
	out := make([]display.MonitorCaps, len(b.Monitors))
	copy(out, b.Monitors)
	return out, nil
}

func (b *Backend) OpenSurface(req platform.SurfaceRequest) (platform.SurfaceID, error) {
	b.mu.Lock()
	b.calls["OpenSurface"]++
	if b.OpenErr != nil {
		if err := b.OpenErr(req); err != nil {
			b.mu.Unlock()
			return 0, err
		}
	}
	b.nextID++
	id := b.nextID
	b.surfaces[id] = &Surface{ID: id, Request: req}
	b.order = append(b.order, id)
	onOpen := b.OnOpen
	b.mu.Unlock()

	if onOpen != nil {
		onOpen(id)
	}
	return id, nil
}

func (b *Backend) SubmitFrame(id platform.SurfaceID, frame media.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["SubmitFrame"]++
	s, ok := b.surfaces[id]
	if !ok {
		return fmt.Errorf("unknown surface %d", id)
	}
	if s.Closed > 0 {
		return fmt.Errorf("surface %d is closed", id)
	}
	s.Frames = append(s.Frames, frame)
	return nil
}

func (b *Backend) CloseSurface(id platform.SurfaceID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["CloseSurface"]++
	s, ok := b.surfaces[id]
	if !ok {
		return fmt.Errorf("unknown surface %d", id)
	}
	s.Closed++
	return nil
}

func (b *Backend) Post(fn func()) {
	b.queue.Push(fn)
}

func (b *Backend) Quit() {
	b.queue.Push(func() {
		b.mu.Lock()
		b.quitting = true
		b.mu.Unlock()
	})
}

func (b *Backend) Run(ctx context.Context, handle func(platform.SurfaceEvent)) error {
	b.mu.Lock()
	b.calls["Run"]++
	b.handle = handle
	b.quitting = false
	b.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.queue.Wake():
			for _, fn := range b.queue.Drain() {
				fn()
			}
			b.mu.Lock()
			quitting := b.quitting
			b.mu.Unlock()
			if quitting {
				return nil
			}
		}
	}
}

// InjectClose simulates the user closing surface id. The event is delivered
// on the loop goroutine like a real window manager request.
func (b *Backend) InjectClose(id platform.SurfaceID) {
	b.inject(platform.SurfaceEvent{Surface: id, Kind: platform.SurfaceClosed})
}

// InjectResize simulates a size change of surface id.
func (b *Backend) InjectResize(id platform.SurfaceID, width, height int) {
	b.inject(platform.SurfaceEvent{Surface: id, Kind: platform.SurfaceResized, Width: width, Height: height})
}

func (b *Backend) inject(ev platform.SurfaceEvent) {
	b.queue.Push(func() {
		b.mu.Lock()
		handle := b.handle
		b.mu.Unlock()
		if handle != nil {
			handle(ev)
		}
	})
}

// Surface returns a copy of what was recorded for id.
func (b *Backend) Surface(id platform.SurfaceID) (Surface, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.surfaces[id]
	if !ok {
		return Surface{}, false
	}
	out := *s
	out.Frames = append([]media.Frame(nil), s.Frames...)
	return out, true
}

// Surfaces returns every opened surface in open order.
func (b *Backend) Surfaces() []Surface {
	b.mu.Lock()
	ids := append([]platform.SurfaceID(nil), b.order...)
	b.mu.Unlock()

	out := make([]Surface, 0, len(ids))
	for _, id := range ids {
		if s, ok := b.Surface(id); ok {
			out = append(out, s)
		}
	}
	return out
}

// SurfaceForSink returns the surface opened for sinkID.
func (b *Backend) SurfaceForSink(sinkID uint32) (Surface, bool) {
	for _, s := range b.Surfaces() {
		if s.Request.SinkID == sinkID {
			return s, true
		}
	}
	return Surface{}, false
}

var _ platform.Backend = (*Backend)(nil)
