package gstreamer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/projectmapper/internal/media"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := New(Options{StopTimeout: time.Second})
	if err := b.Init(); err != nil {
		t.Skipf("gstreamer unavailable: %v", err)
	}
	t.Cleanup(b.Release)
	return b
}

func TestBackend_FanOutDeliversToEverySink(t *testing.T) {
	b := newTestBackend(t)

	src, err := b.CreateChain(media.ChainSpec{Kind: media.ChainTestSource, SourceID: 1})
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	tee, err := b.CreateChain(media.ChainSpec{Kind: media.ChainJunction, SourceID: 1})
	if err != nil {
		t.Fatalf("create junction: %v", err)
	}
	if err := b.Link(src, tee); err != nil {
		t.Fatalf("link source: %v", err)
	}

	var mu sync.Mutex
	got := map[uint32]int{}
	sizes := map[uint32][2]int{}
	for _, sinkID := range []uint32{1, 2} {
		sink, err := b.CreateChain(media.ChainSpec{Kind: media.ChainSinkCapture, SinkID: sinkID, Width: 64, Height: 48})
		if err != nil {
			t.Fatalf("create sink %d: %v", sinkID, err)
		}
		if err := b.Link(tee, sink); err != nil {
			t.Fatalf("link sink %d: %v", sinkID, err)
		}
		b.OnFrame(sinkID, func(f media.Frame) {
			mu.Lock()
			defer mu.Unlock()
			got[f.SinkID]++
			sizes[f.SinkID] = [2]int{f.Width, f.Height}
		})
	}

	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := got[1] >= 3 && got[2] >= 3
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := b.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got[1] < 3 || got[2] < 3 {
		t.Fatalf("expected frames on both sinks, got %v", got)
	}
	if sizes[1] != [2]int{64, 48} {
		t.Fatalf("frame size = %v, want 64x48", sizes[1])
	}
}

func TestBackend_LinkRejectsSinkAsOutput(t *testing.T) {
	b := newTestBackend(t)

	sink, err := b.CreateChain(media.ChainSpec{Kind: media.ChainSinkCapture, SinkID: 1})
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	src, err := b.CreateChain(media.ChainSpec{Kind: media.ChainTestSource, SourceID: 1})
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	if err := b.Link(sink, src); err == nil {
		t.Fatal("expected error linking out of a sink capture")
	}
}

func TestBackend_StopWithoutStartIsNoop(t *testing.T) {
	b := newTestBackend(t)
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
}

func TestBackend_ReleaseDiscardsPendingEvents(t *testing.T) {
	// No pipeline is built, so this does not need GStreamer installed.
	b := New(Options{})
	b.report(media.Event{Kind: media.EventError, Err: errors.New("late teardown error")})
	b.report(media.Event{Kind: media.EventEOS})

	b.Release()

	select {
	case ev := <-b.Events():
		t.Fatalf("stale event survived Release: %v", ev.Kind)
	default:
	}
}

func TestBackend_DiscardEventsCounts(t *testing.T) {
	b := New(Options{})
	if n := b.discardEvents(); n != 0 {
		t.Fatalf("discardEvents on empty channel = %d", n)
	}
	b.report(media.Event{Kind: media.EventEOS})
	b.report(media.Event{Kind: media.EventEOS})
	if n := b.discardEvents(); n != 2 {
		t.Fatalf("discardEvents = %d, want 2", n)
	}
}
