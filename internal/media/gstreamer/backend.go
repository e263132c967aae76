// Package gstreamer implements media.Backend on top of GStreamer.
//
// Each source chain feeds a tee (the junction) and every region adds a tee
// branch into a sink capture chain:
//
//	videotestsrc                                    -> tee
//	uridecodebin ~> queue -> videoconvert -> videoscale -> tee
//	tee -> queue -> videoconvert -> videoscale -> capsfilter(BGRA) -> appsink
package gstreamer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/1broseidon/projectmapper/internal/media"
)

var initOnce sync.Once

// Options configures a Backend.
type Options struct {
	Logger *slog.Logger
	// DefaultWidth/DefaultHeight size sink captures whose spec has no size.
	DefaultWidth  int
	DefaultHeight int
	// StopTimeout bounds how long Stop waits for end-of-stream to drain.
	StopTimeout time.Duration
}

type chain struct {
	spec     media.ChainSpec
	elements []*gst.Element
	linked   []*gst.Element // linked in order once added to the pipeline
	head     *gst.Element   // input, nil for sources
	tail     *gst.Element   // output, nil for sink captures
	appsink  *app.Sink
	seq      atomic.Uint64
}

// Backend is a GStreamer media.Backend. One Backend drives one pipeline.
type Backend struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	pipeline *gst.Pipeline
	chains   map[media.ChainID]*chain
	nextID   media.ChainID
	// started is the unix nano time of the last Start, read by streaming
	// threads.
	started  atomic.Int64

	handlersMu sync.RWMutex
	handlers   map[uint32]media.FrameFunc

	events   chan media.Event
	stopping atomic.Bool
	drained  chan struct{}
	busStop  context.CancelFunc
	busDone  chan struct{}
}

// New returns a backend. Init must be called before any other method.
func New(opts Options) *Backend {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultWidth <= 0 || opts.DefaultHeight <= 0 {
		opts.DefaultWidth, opts.DefaultHeight = 1280, 720
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 3 * time.Second
	}
	return &Backend{
		opts:     opts,
		logger:   opts.Logger,
		chains:   make(map[media.ChainID]*chain),
		handlers: make(map[uint32]media.FrameFunc),
		events:   make(chan media.Event, 4),
	}
}

// Init initializes GStreamer once per process and checks that core
// elements can be created.
func (b *Backend) Init() error {
	initOnce.Do(func() {
		gst.Init(nil)
	})

	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return fmt.Errorf("gstreamer not available or not properly installed: %w", err)
	}
	elem.SetState(gst.StateNull)
	return nil
}

func (b *Backend) ensurePipeline() error {
	if b.pipeline != nil {
		return nil
	}
	pipeline, err := gst.NewPipeline("projectmapper")
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	b.pipeline = pipeline
	return nil
}

func newElement(factory string, props map[string]interface{}) (*gst.Element, error) {
	elem, err := gst.NewElement(factory)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", factory, err)
	}
	for k, v := range props {
		if err := elem.SetProperty(k, v); err != nil {
			return nil, fmt.Errorf("failed to set %s.%s: %w", factory, k, err)
		}
	}
	return elem, nil
}

// CreateChain adds the elements for spec to the pipeline.
func (b *Backend) CreateChain(spec media.ChainSpec) (media.ChainID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensurePipeline(); err != nil {
		return 0, err
	}

	var (
		c   *chain
		err error
	)
	switch spec.Kind {
	case media.ChainTestSource:
		c, err = b.buildTestSource(spec)
	case media.ChainURISource:
		c, err = b.buildURISource(spec)
	case media.ChainJunction:
		c, err = b.buildJunction(spec)
	case media.ChainSinkCapture:
		c, err = b.buildSinkCapture(spec)
	default:
		err = fmt.Errorf("unsupported chain kind %v", spec.Kind)
	}
	if err != nil {
		return 0, err
	}

	if err := b.pipeline.AddMany(c.elements...); err != nil {
		return 0, fmt.Errorf("failed to add %s chain to pipeline: %w", spec.Kind, err)
	}
	if len(c.linked) > 1 {
		if err := gst.ElementLinkMany(c.linked...); err != nil {
			return 0, fmt.Errorf("failed to link %s chain: %w", spec.Kind, err)
		}
	}

	b.nextID++
	b.chains[b.nextID] = c
	b.logger.Debug("media chain created", "id", b.nextID, "kind", spec.Kind.String(),
		"source_id", spec.SourceID, "sink_id", spec.SinkID)
	return b.nextID, nil
}

func (b *Backend) buildTestSource(spec media.ChainSpec) (*chain, error) {
	src, err := newElement("videotestsrc", map[string]interface{}{"is-live": true})
	if err != nil {
		return nil, err
	}
	return &chain{spec: spec, elements: []*gst.Element{src}, tail: src}, nil
}

// buildURISource links uridecodebin's dynamic video pad to a
// queue → videoconvert → videoscale tail once the stream is probed.
func (b *Backend) buildURISource(spec media.ChainSpec) (*chain, error) {
	decode, err := newElement("uridecodebin", map[string]interface{}{"uri": spec.URI})
	if err != nil {
		return nil, err
	}
	queue, err := newElement("queue", nil)
	if err != nil {
		return nil, err
	}
	convert, err := newElement("videoconvert", nil)
	if err != nil {
		return nil, err
	}
	scale, err := newElement("videoscale", nil)
	if err != nil {
		return nil, err
	}

	if _, err := decode.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		b.onDecodedPad(spec.SourceID, srcPad, queue)
	}); err != nil {
		return nil, fmt.Errorf("failed to connect pad-added for source %d: %w", spec.SourceID, err)
	}

	return &chain{
		spec:     spec,
		elements: []*gst.Element{decode, queue, convert, scale},
		linked:   []*gst.Element{queue, convert, scale},
		tail:     scale,
	}, nil
}

func (b *Backend) onDecodedPad(sourceID uint32, srcPad *gst.Pad, queue *gst.Element) {
	caps := srcPad.GetCurrentCaps()
	if caps == nil || caps.GetSize() == 0 {
		return
	}
	if name := caps.GetStructureAt(0).Name(); !strings.HasPrefix(name, "video/") {
		b.logger.Debug("ignoring non-video pad", "source_id", sourceID, "caps", name)
		return
	}

	sinkPad := queue.GetStaticPad("sink")
	if sinkPad == nil {
		b.logger.Error("uri source queue has no sink pad", "source_id", sourceID)
		return
	}
	if sinkPad.IsLinked() {
		return
	}
	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		b.logger.Error("failed to link decoded pad", "source_id", sourceID,
			"pad", srcPad.GetName(), "ret", ret)
	}
}

func (b *Backend) buildJunction(spec media.ChainSpec) (*chain, error) {
	tee, err := newElement("tee", map[string]interface{}{"allow-not-linked": true})
	if err != nil {
		return nil, err
	}
	return &chain{spec: spec, elements: []*gst.Element{tee}, head: tee, tail: tee}, nil
}

func (b *Backend) buildSinkCapture(spec media.ChainSpec) (*chain, error) {
	width, height := spec.Width, spec.Height
	if width <= 0 || height <= 0 {
		width, height = b.opts.DefaultWidth, b.opts.DefaultHeight
	}
	spec.Width, spec.Height = width, height

	queue, err := newElement("queue", nil)
	if err != nil {
		return nil, err
	}
	convert, err := newElement("videoconvert", nil)
	if err != nil {
		return nil, err
	}
	scale, err := newElement("videoscale", nil)
	if err != nil {
		return nil, err
	}
	filter, err := newElement("capsfilter", nil)
	if err != nil {
		return nil, err
	}
	filter.SetProperty("caps", gst.NewCapsFromString(
		fmt.Sprintf("video/x-raw,format=BGRA,width=%d,height=%d", width, height)))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", true)
	appsink.SetProperty("max-buffers", 1)

	elements := []*gst.Element{queue, convert, scale, filter, appsink.Element}
	c := &chain{
		spec:     spec,
		elements: elements,
		linked:   elements,
		head:     queue,
		appsink:  appsink,
	}
	appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return b.onSample(c, sink)
		},
	})
	return c, nil
}

func (b *Backend) onSample(c *chain, sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}
	// GStreamer reuses the buffer after Unmap.
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	b.handlersMu.RLock()
	fn := b.handlers[c.spec.SinkID]
	b.handlersMu.RUnlock()
	if fn == nil {
		return gst.FlowOK
	}

	fn(media.Frame{
		SinkID: c.spec.SinkID,
		Seq:    c.seq.Add(1),
		Width:  c.spec.Width,
		Height: c.spec.Height,
		Stride: c.spec.Width * 4,
		PTS:    time.Duration(time.Now().UnixNano() - b.started.Load()),
		Data:   frameData,
	})
	return gst.FlowOK
}

// Link connects a's output to b's input. Linking out of a tee requests a new
// branch pad.
func (b *Backend) Link(a, bID media.ChainID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	from, ok := b.chains[a]
	if !ok {
		return fmt.Errorf("unknown chain %d", a)
	}
	to, ok := b.chains[bID]
	if !ok {
		return fmt.Errorf("unknown chain %d", bID)
	}
	if from.tail == nil {
		return fmt.Errorf("%s chain %d has no output", from.spec.Kind, a)
	}
	if to.head == nil {
		return fmt.Errorf("%s chain %d has no input", to.spec.Kind, bID)
	}
	if err := gst.ElementLinkMany(from.tail, to.head); err != nil {
		return fmt.Errorf("failed to link %s -> %s: %w", from.spec.Kind, to.spec.Kind, err)
	}
	return nil
}

func (b *Backend) OnFrame(sinkID uint32, fn media.FrameFunc) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.handlers[sinkID] = fn
}

// Start sets the pipeline playing and begins watching its bus.
func (b *Backend) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pipeline == nil {
		return fmt.Errorf("pipeline not built")
	}

	if n := b.discardEvents(); n > 0 {
		b.logger.Debug("discarded stale media events", "count", n)
	}
	b.stopping.Store(false)
	b.drained = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	b.busStop = cancel
	b.busDone = make(chan struct{})
	go b.watchBus(ctx, b.pipeline, b.drained, b.busDone)

	b.started.Store(time.Now().UnixNano())
	if err := b.pipeline.SetState(gst.StatePlaying); err != nil {
		cancel()
		<-b.busDone
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	b.logger.Info("media pipeline playing", "chains", len(b.chains))
	return nil
}

// Stop sends end-of-stream, waits for it to drain (bounded by
// Options.StopTimeout) and sets the pipeline to NULL.
func (b *Backend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pipeline == nil || b.busStop == nil {
		return nil
	}

	b.stopping.Store(true)
	if b.pipeline.SendEvent(gst.NewEOSEvent()) {
		select {
		case <-b.drained:
		case <-time.After(b.opts.StopTimeout):
			b.logger.Warn("media pipeline did not drain before timeout", "timeout", b.opts.StopTimeout)
		}
	}

	err := b.pipeline.SetState(gst.StateNull)
	b.busStop()
	<-b.busDone
	b.busStop = nil
	if err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	b.logger.Info("media pipeline stopped")
	return nil
}

// Release drops the pipeline and every chain.
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.busStop != nil {
		b.busStop()
		<-b.busDone
		b.busStop = nil
	}
	if b.pipeline != nil {
		b.pipeline.SetState(gst.StateNull)
		b.pipeline = nil
	}
	b.chains = make(map[media.ChainID]*chain)
	b.discardEvents()

	b.handlersMu.Lock()
	b.handlers = make(map[uint32]media.FrameFunc)
	b.handlersMu.Unlock()
}

func (b *Backend) Events() <-chan media.Event {
	return b.events
}

// discardEvents empties the event channel so a later run never sees what an
// earlier one raised.
func (b *Backend) discardEvents() int {
	n := 0
	for {
		select {
		case <-b.events:
			n++
		default:
			return n
		}
	}
}

var _ media.Backend = (*Backend)(nil)
