// Package mediatest provides an in-memory media.Backend that records every
// call and lets tests push frames and bus events through the built graph.
package mediatest

import (
	"fmt"
	"sync"

	"github.com/1broseidon/projectmapper/internal/media"
)

// Recorder is a media.Backend that builds an in-memory graph.
type Recorder struct {
	// FailCreate, when set, is consulted before each CreateChain.
	FailCreate func(spec media.ChainSpec) error
	// FailLink, when set, is consulted before each Link.
	FailLink func(a, b media.ChainSpec) error
	// StopErr is returned by Stop.
	StopErr error

	mu       sync.Mutex
	calls    map[string]int
	nextID   media.ChainID
	chains   map[media.ChainID]media.ChainSpec
	edges    map[media.ChainID][]media.ChainID
	handlers map[uint32]media.FrameFunc
	running  bool
	seq      map[uint32]uint64
	events   chan media.Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		calls:    make(map[string]int),
		chains:   make(map[media.ChainID]media.ChainSpec),
		edges:    make(map[media.ChainID][]media.ChainID),
		handlers: make(map[uint32]media.FrameFunc),
		seq:      make(map[uint32]uint64),
		events:   make(chan media.Event, 8),
	}
}

func (r *Recorder) record(op string) {
	r.calls[op]++
}

// Calls returns how many times op was invoked.
func (r *Recorder) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// TotalCalls returns the number of backend calls of any kind.
func (r *Recorder) TotalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.calls {
		total += n
	}
	return total
}

func (r *Recorder) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Init")
	return nil
}

func (r *Recorder) CreateChain(spec media.ChainSpec) (media.ChainID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("CreateChain")
	if r.FailCreate != nil {
		if err := r.FailCreate(spec); err != nil {
			return 0, err
		}
	}
	r.nextID++
	r.chains[r.nextID] = spec
	return r.nextID, nil
}

func (r *Recorder) Link(a, b media.ChainID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Link")
	sa, ok := r.chains[a]
	if !ok {
		return fmt.Errorf("unknown chain %d", a)
	}
	sb, ok := r.chains[b]
	if !ok {
		return fmt.Errorf("unknown chain %d", b)
	}
	if r.FailLink != nil {
		if err := r.FailLink(sa, sb); err != nil {
			return err
		}
	}
	r.edges[a] = append(r.edges[a], b)
	return nil
}

func (r *Recorder) OnFrame(sinkID uint32, fn media.FrameFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("OnFrame")
	r.handlers[sinkID] = fn
}

func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Start")
	r.running = true
	r.discardEvents()
	return nil
}

func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Stop")
	r.running = false
	return r.StopErr
}

func (r *Recorder) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Release")
	r.running = false
	r.chains = make(map[media.ChainID]media.ChainSpec)
	r.edges = make(map[media.ChainID][]media.ChainID)
	r.handlers = make(map[uint32]media.FrameFunc)
	r.discardEvents()
}

func (r *Recorder) discardEvents() {
	for {
		select {
		case <-r.events:
		default:
			return
		}
	}
}

func (r *Recorder) Events() <-chan media.Event {
	return r.events
}

func (r *Recorder) URIProtocols() []string {
	return []string{"file", "http", "https", "rtsp"}
}

// LiveChains returns the number of chains not yet released.
func (r *Recorder) LiveChains() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chains)
}

// Running reports whether Start was called without a later Stop.
func (r *Recorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Push injects a bus event as if the pipeline had reported it.
func (r *Recorder) Push(ev media.Event) {
	r.events <- ev
}

// Emit produces n frames at the source chain for sourceID and delivers each
// one to every sink capture reachable from it. It returns the number of
// frame callbacks made.
func (r *Recorder) Emit(sourceID uint32, n int) (int, error) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return 0, fmt.Errorf("graph is not running")
	}
	var origin media.ChainID
	for id, spec := range r.chains {
		if (spec.Kind == media.ChainTestSource || spec.Kind == media.ChainURISource) && spec.SourceID == sourceID {
			origin = id
		}
	}
	if origin == 0 {
		r.mu.Unlock()
		return 0, fmt.Errorf("no source chain for source %d", sourceID)
	}

	type target struct {
		spec media.ChainSpec
		fn   media.FrameFunc
	}
	var targets []target
	visited := map[media.ChainID]bool{}
	var walk func(id media.ChainID)
	walk = func(id media.ChainID) {
		if visited[id] {
			return
		}
		visited[id] = true
		spec := r.chains[id]
		if spec.Kind == media.ChainSinkCapture {
			if fn, ok := r.handlers[spec.SinkID]; ok {
				targets = append(targets, target{spec: spec, fn: fn})
			}
			return
		}
		for _, next := range r.edges[id] {
			walk(next)
		}
	}
	walk(origin)
	r.mu.Unlock()

	delivered := 0
	for i := 0; i < n; i++ {
		for _, t := range targets {
			r.mu.Lock()
			r.seq[t.spec.SinkID]++
			seq := r.seq[t.spec.SinkID]
			r.mu.Unlock()

			// Frame contents are irrelevant here; keep them tiny.
			w, h := 4, 4
			t.fn(media.Frame{
				SinkID: t.spec.SinkID,
				Seq:    seq,
				Width:  w,
				Height: h,
				Stride: w * 4,
				Data:   make([]byte, w*h*4),
			})
			delivered++
		}
	}
	return delivered, nil
}

// Chains returns a copy of every live chain spec keyed by id.
func (r *Recorder) Chains() map[media.ChainID]media.ChainSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[media.ChainID]media.ChainSpec, len(r.chains))
	for id, spec := range r.chains {
		out[id] = spec
	}
	return out
}

var _ media.Backend = (*Recorder)(nil)
