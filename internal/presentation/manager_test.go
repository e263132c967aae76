package presentation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/projectmapper/internal/config"
	"github.com/1broseidon/projectmapper/internal/display"
	"github.com/1broseidon/projectmapper/internal/media"
	"github.com/1broseidon/projectmapper/internal/platform"
	"github.com/1broseidon/projectmapper/internal/platform/platformtest"
)

var testMonitors = []display.MonitorCaps{
	{
		Name:    "DP-1",
		Bounds:  display.Rect{Width: 1920, Height: 1080},
		Current: display.Mode{Width: 1920, Height: 1080, RefreshHz: 60},
		Modes: []display.Mode{
			{Width: 1920, Height: 1080, RefreshHz: 60},
			{Width: 1920, Height: 1080, RefreshHz: 120},
		},
	},
}

type harness struct {
	t       *testing.T
	backend *platformtest.Backend
	manager *Manager
	inv     *display.Inventory
	exits   chan uint32
}

func newHarness(t *testing.T, sinks ...config.Sink) *harness {
	t.Helper()
	b := platformtest.New(testMonitors...)
	inv, err := display.Gather(b)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	h := &harness{t: t, backend: b, inv: inv, exits: make(chan uint32, 8)}
	h.manager = NewManager(b, sinks, Options{
		OnUserExit: func(sinkID uint32) { h.exits <- sinkID },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx, h.manager.HandleEvent)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

// onLoop runs fn on the event loop and waits for it.
func (h *harness) onLoop(fn func()) {
	h.t.Helper()
	done := make(chan struct{})
	h.backend.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for event loop")
	}
}

func (h *harness) open() {
	h.t.Helper()
	var err error
	h.onLoop(func() {
		if err = h.manager.ResolveAll(h.inv); err != nil {
			return
		}
		err = h.manager.OpenAll()
	})
	if err != nil {
		h.t.Fatalf("open: %v", err)
	}
}

func stateOf(t *testing.T, m *Manager, sinkID uint32) State {
	t.Helper()
	for _, st := range m.Snapshot() {
		if st.SinkID == sinkID {
			return st.State
		}
	}
	t.Fatalf("no status for sink %d", sinkID)
	return 0
}

func TestManager_OpensResolvedSinks(t *testing.T) {
	h := newHarness(t,
		config.Sink{ID: 1, Name: "window", Presentation: config.Windowed()},
		config.Sink{ID: 2, Name: "wall", Presentation: config.Exclusive("DP-1", 1920, 1080, 120)},
	)
	h.open()

	if got := h.backend.Calls("OpenSurface"); got != 2 {
		t.Fatalf("OpenSurface calls = %d, want 2", got)
	}
	for _, id := range []uint32{1, 2} {
		if s := stateOf(t, h.manager, id); s != StateRunning {
			t.Fatalf("sink %d state = %v, want running", id, s)
		}
	}

	win, _ := h.backend.SurfaceForSink(1)
	if win.Request.Width != 1280 || win.Request.Height != 720 {
		t.Fatalf("windowed surface size = %dx%d, want 1280x720", win.Request.Width, win.Request.Height)
	}
	wall, _ := h.backend.SurfaceForSink(2)
	if wall.Request.Target.RefreshHz != 120 || wall.Request.Target.Monitor.Name != "DP-1" {
		t.Fatalf("exclusive target = %+v", wall.Request.Target)
	}
	if w, hh := h.manager.FrameSize(2); w != 1920 || hh != 1080 {
		t.Fatalf("FrameSize(2) = %dx%d, want 1920x1080", w, hh)
	}
}

func TestManager_ResolutionFailureClosesSinkWithoutOpening(t *testing.T) {
	h := newHarness(t,
		config.Sink{ID: 1, Name: "wall", Presentation: config.Exclusive("DP-1", 1920, 1080, 144)},
		config.Sink{ID: 2, Name: "side", Presentation: config.Borderless("DISPLAY9")},
	)

	var err error
	h.onLoop(func() { err = h.manager.ResolveAll(h.inv) })

	var rerr *display.ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
	if rerr.Kind != display.UnknownRefreshRate {
		t.Fatalf("first error kind = %v, want UnknownRefreshRate", rerr.Kind)
	}

	if got, ok := h.manager.ResolutionError(2); !ok || got.Kind != display.UnknownMonitor {
		t.Fatalf("sink 2 resolution error = %v, %v", got, ok)
	}
	for _, id := range []uint32{1, 2} {
		if s := stateOf(t, h.manager, id); s != StateClosed {
			t.Fatalf("sink %d state = %v, want closed", id, s)
		}
	}

	h.onLoop(func() { err = h.manager.OpenAll() })
	if err != nil {
		t.Fatalf("OpenAll: %v", err)
	}
	if got := h.backend.Calls("OpenSurface"); got != 0 {
		t.Fatalf("OpenSurface calls = %d, want 0", got)
	}
}

func TestManager_FramesReachRunningSurfacesInOrder(t *testing.T) {
	h := newHarness(t,
		config.Sink{ID: 1, Name: "a", Presentation: config.Windowed()},
		config.Sink{ID: 2, Name: "b", Presentation: config.Windowed()},
	)
	h.open()

	const n = 50
	var wg sync.WaitGroup
	for _, sinkID := range []uint32{1, 2} {
		fn := h.manager.FrameHandler(sinkID)
		wg.Add(1)
		go func(sinkID uint32) {
			defer wg.Done()
			for i := 1; i <= n; i++ {
				fn(media.Frame{SinkID: sinkID, Seq: uint64(i), Width: 2, Height: 2, Stride: 8, Data: make([]byte, 16)})
			}
		}(sinkID)
	}
	wg.Wait()
	h.onLoop(func() {})

	for _, sinkID := range []uint32{1, 2} {
		s, _ := h.backend.SurfaceForSink(sinkID)
		if len(s.Frames) != n {
			t.Fatalf("sink %d received %d frames, want %d", sinkID, len(s.Frames), n)
		}
		for i, f := range s.Frames {
			if f.Seq != uint64(i+1) {
				t.Fatalf("sink %d frame %d has seq %d; frames out of order", sinkID, i, f.Seq)
			}
		}
	}

	snap := h.manager.Snapshot()
	if snap[0].FramesSubmitted != n || snap[0].FramesDropped != 0 {
		t.Fatalf("sink 1 counters = %+v", snap[0])
	}
}

func TestManager_DropsFramesForSinksNotRunning(t *testing.T) {
	h := newHarness(t, config.Sink{ID: 1, Name: "a", Presentation: config.Windowed()})

	fn := h.manager.FrameHandler(1)
	fn(media.Frame{SinkID: 1, Seq: 1})
	h.onLoop(func() {})

	h.open()
	h.onLoop(func() {
		if err := h.manager.CloseAll(); err != nil {
			t.Errorf("CloseAll: %v", err)
		}
	})
	fn(media.Frame{SinkID: 1, Seq: 2})
	h.onLoop(func() {})

	snap := h.manager.Snapshot()
	if snap[0].FramesDropped != 2 || snap[0].FramesSubmitted != 0 {
		t.Fatalf("counters = %+v, want 2 dropped", snap[0])
	}
	if got := h.backend.Calls("SubmitFrame"); got != 0 {
		t.Fatalf("SubmitFrame calls = %d, want 0", got)
	}

	h.manager.FrameHandler(99)(media.Frame{SinkID: 99})
	if h.manager.Unrouted() != 1 {
		t.Fatalf("Unrouted() = %d, want 1", h.manager.Unrouted())
	}
}

func TestManager_UserCloseReportsExitAndClosesOnce(t *testing.T) {
	h := newHarness(t,
		config.Sink{ID: 1, Name: "a", Presentation: config.Windowed()},
		config.Sink{ID: 2, Name: "b", Presentation: config.Windowed()},
	)
	h.open()

	s, _ := h.backend.SurfaceForSink(2)
	h.backend.InjectClose(s.ID)
	h.backend.InjectClose(s.ID)

	select {
	case id := <-h.exits:
		if id != 2 {
			t.Fatalf("user exit for sink %d, want 2", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no user exit reported")
	}

	for i := 0; i < 2; i++ {
		h.onLoop(func() {
			if err := h.manager.CloseAll(); err != nil {
				t.Errorf("CloseAll: %v", err)
			}
		})
	}

	for _, s := range h.backend.Surfaces() {
		if s.Closed != 1 {
			t.Fatalf("surface %d closed %d times, want 1", s.ID, s.Closed)
		}
	}
	select {
	case id := <-h.exits:
		t.Fatalf("unexpected second user exit for sink %d", id)
	default:
	}
}

func TestManager_ResizeUpdatesRecordedSize(t *testing.T) {
	h := newHarness(t, config.Sink{ID: 1, Name: "a", Presentation: config.Windowed()})
	h.open()

	s, _ := h.backend.SurfaceForSink(1)
	h.backend.InjectResize(s.ID, 800, 600)
	h.onLoop(func() {})

	snap := h.manager.Snapshot()
	if snap[0].Width != 800 || snap[0].Height != 600 {
		t.Fatalf("size = %dx%d, want 800x600", snap[0].Width, snap[0].Height)
	}
}

func TestManager_OpenFailureStopsAndLeavesOthersClosable(t *testing.T) {
	h := newHarness(t,
		config.Sink{ID: 1, Name: "a", Presentation: config.Windowed()},
		config.Sink{ID: 2, Name: "b", Presentation: config.Windowed()},
	)
	h.backend.OpenErr = func(req platform.SurfaceRequest) error {
		if req.SinkID == 2 {
			return errors.New("no visual")
		}
		return nil
	}

	var err error
	h.onLoop(func() {
		if err = h.manager.ResolveAll(h.inv); err == nil {
			err = h.manager.OpenAll()
		}
	})
	if err == nil {
		t.Fatal("expected open failure")
	}
	if s := stateOf(t, h.manager, 2); s != StateClosed {
		t.Fatalf("failed sink state = %v, want closed", s)
	}

	h.onLoop(func() { err = h.manager.CloseAll() })
	if err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if got := h.backend.Calls("CloseSurface"); got != 1 {
		t.Fatalf("CloseSurface calls = %d, want 1", got)
	}
}
