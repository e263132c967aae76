package gstreamer

import (
	"context"
	"fmt"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/1broseidon/projectmapper/internal/media"
)

// watchBus polls the pipeline bus until ctx is cancelled. End-of-stream
// during Stop closes drained and errors during Stop are only logged;
// otherwise EOS and errors are reported on Events.
func (b *Backend) watchBus(ctx context.Context, pipeline *gst.Pipeline, drained chan struct{}, done chan struct{}) {
	defer close(done)

	bus := pipeline.GetPipelineBus()
	drainedClosed := false

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Short timeout keeps shutdown responsive.
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			if b.stopping.Load() {
				if !drainedClosed {
					close(drained)
					drainedClosed = true
				}
				continue
			}
			b.logger.Info("media pipeline reached end of stream")
			b.report(media.Event{Kind: media.EventEOS})

		case gst.MessageError:
			gerr := msg.ParseError()
			if b.stopping.Load() {
				b.logger.Warn("media pipeline error during stop",
					"error", gerr.Error(),
					"element", msg.Source(),
				)
				continue
			}
			b.logger.Error("media pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"element", msg.Source(),
			)
			b.report(media.Event{
				Kind: media.EventError,
				Err:  fmt.Errorf("%s: %s", msg.Source(), gerr.Error()),
			})

		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				old, new := msg.ParseStateChanged()
				b.logger.Debug("media pipeline state changed", "from", old, "to", new)
			}
		}
	}
}

// report never blocks the bus goroutine; the coordinator only acts on the
// first event anyway.
func (b *Backend) report(ev media.Event) {
	select {
	case b.events <- ev:
	default:
		b.logger.Debug("media event dropped", "kind", ev.Kind.String())
	}
}
