// Package presentation drives each sink's output surface through its
// lifecycle and routes decoded frames to it.
//
// All Manager methods except FrameHandler's returned func and Snapshot run
// on the platform event loop goroutine. Frame callbacks arrive on media
// worker goroutines and cross into the loop with platform.Backend.Post,
// carrying the sink's arena slot.
package presentation

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"

	"github.com/1broseidon/projectmapper/internal/config"
	"github.com/1broseidon/projectmapper/internal/display"
	"github.com/1broseidon/projectmapper/internal/media"
	"github.com/1broseidon/projectmapper/internal/platform"
)

// Options configures a Manager.
type Options struct {
	Logger *slog.Logger
	// WindowWidth/WindowHeight size windowed sinks.
	WindowWidth  int
	WindowHeight int
	// OnUserExit runs on the loop after the user closed a sink's surface.
	OnUserExit func(sinkID uint32)
	Observer   Observer
}

type record struct {
	sink    config.Sink
	state   atomic.Int32
	target  display.Resolved
	surface platform.SurfaceID
	width   atomic.Int32
	height  atomic.Int32
	err     error

	submitted atomic.Uint64
	dropped   atomic.Uint64
}

func (r *record) State() State {
	return State(r.state.Load())
}

// Manager owns the arena of sink records.
type Manager struct {
	opts    Options
	logger  *slog.Logger
	backend platform.Backend

	slots     []*record
	bySink    map[uint32]int
	bySurface map[platform.SurfaceID]int

	unrouted atomic.Uint64
}

// NewManager creates one Unopened record per sink, in configuration order.
func NewManager(backend platform.Backend, sinks []config.Sink, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.WindowWidth <= 0 || opts.WindowHeight <= 0 {
		opts.WindowWidth, opts.WindowHeight = 1280, 720
	}
	if opts.OnUserExit == nil {
		opts.OnUserExit = func(uint32) {}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}

	m := &Manager{
		opts:      opts,
		logger:    opts.Logger,
		backend:   backend,
		slots:     make([]*record, 0, len(sinks)),
		bySink:    make(map[uint32]int, len(sinks)),
		bySurface: make(map[platform.SurfaceID]int, len(sinks)),
	}
	for _, sink := range sinks {
		m.bySink[sink.ID] = len(m.slots)
		m.slots = append(m.slots, &record{sink: sink})
	}
	return m
}

func (m *Manager) setState(rec *record, s State) {
	prev := State(rec.state.Swap(int32(s)))
	if prev == s {
		return
	}
	m.logger.Debug("sink state changed", "sink", rec.sink.Name, "sink_id", rec.sink.ID,
		"from", prev.String(), "to", s.String())
	m.opts.Observer.SinkState(rec.sink.ID, rec.sink.Name, s)
}

// ResolveAll validates every Unopened sink against inv. Sinks that resolve
// become ready to open; sinks that fail are Closed. The first failure is
// returned; later ones are only logged.
func (m *Manager) ResolveAll(inv *display.Inventory) error {
	var first error
	for _, rec := range m.slots {
		if rec.State() != StateUnopened {
			continue
		}
		m.setState(rec, StateResolving)

		target, err := display.Resolve(rec.sink.Presentation, inv)
		if err != nil {
			rec.err = err
			m.setState(rec, StateClosed)
			m.logger.Error("sink presentation could not be resolved",
				"sink", rec.sink.Name, "sink_id", rec.sink.ID, "error", err)
			if first == nil {
				first = fmt.Errorf("sink %q: %w", rec.sink.Name, err)
			}
			continue
		}

		rec.target = target
		w, h := m.sizeFor(target)
		rec.width.Store(int32(w))
		rec.height.Store(int32(h))
		m.setState(rec, StateOpening)
		m.logger.Info("sink presentation resolved", "sink", rec.sink.Name, "target", target.String())
	}
	return first
}

func (m *Manager) sizeFor(target display.Resolved) (int, int) {
	if target.Kind == config.ModeWindowed || target.Width == 0 || target.Height == 0 {
		return m.opts.WindowWidth, m.opts.WindowHeight
	}
	return int(target.Width), int(target.Height)
}

// FrameSize reports the size frames for sinkID should be produced at.
func (m *Manager) FrameSize(sinkID uint32) (int, int) {
	slot, ok := m.bySink[sinkID]
	if !ok {
		return m.opts.WindowWidth, m.opts.WindowHeight
	}
	rec := m.slots[slot]
	if w, h := rec.width.Load(), rec.height.Load(); w > 0 && h > 0 {
		return int(w), int(h)
	}
	return m.opts.WindowWidth, m.opts.WindowHeight
}

// OpenAll opens a surface for every resolved sink. It stops at the first
// failure, leaving that sink Closed; CloseAll cleans up the rest.
func (m *Manager) OpenAll() error {
	for _, rec := range m.slots {
		if rec.State() != StateOpening {
			continue
		}

		w, h := m.sizeFor(rec.target)
		id, err := m.backend.OpenSurface(platform.SurfaceRequest{
			SinkID: rec.sink.ID,
			Title:  surfaceTitle(rec.sink),
			Target: rec.target,
			Width:  w,
			Height: h,
		})
		if err != nil {
			rec.err = err
			m.setState(rec, StateClosed)
			return fmt.Errorf("failed to open surface for sink %q: %w", rec.sink.Name, err)
		}

		rec.surface = id
		m.bySurface[id] = m.bySink[rec.sink.ID]
		m.setState(rec, StateRunning)
		m.logger.Info("sink surface opened", "sink", rec.sink.Name, "surface", id, "size", fmt.Sprintf("%dx%d", w, h))
	}
	return nil
}

func surfaceTitle(sink config.Sink) string {
	if sink.Name == "" {
		return fmt.Sprintf("projectmapper: sink %d", sink.ID)
	}
	return "projectmapper: " + sink.Name
}

// FrameHandler returns the callback a media backend invokes for frames
// destined to sinkID. It never blocks the producer.
func (m *Manager) FrameHandler(sinkID uint32) media.FrameFunc {
	slot, ok := m.bySink[sinkID]
	if !ok {
		return func(media.Frame) {
			m.unrouted.Add(1)
		}
	}
	return func(frame media.Frame) {
		m.backend.Post(func() {
			m.present(slot, frame)
		})
	}
}

func (m *Manager) present(slot int, frame media.Frame) {
	rec := m.slots[slot]
	if rec.State() != StateRunning {
		rec.dropped.Add(1)
		m.opts.Observer.FrameDropped(rec.sink.ID)
		return
	}
	if err := m.backend.SubmitFrame(rec.surface, frame); err != nil {
		rec.dropped.Add(1)
		m.opts.Observer.FrameDropped(rec.sink.ID)
		m.logger.Debug("frame submit failed", "sink", rec.sink.Name, "seq", frame.Seq, "error", err)
		return
	}
	rec.submitted.Add(1)
	m.opts.Observer.FrameSubmitted(rec.sink.ID)
}

// HandleEvent applies a surface event. A user close moves the sink to
// Closed and reports it through Options.OnUserExit.
func (m *Manager) HandleEvent(ev platform.SurfaceEvent) {
	slot, ok := m.bySurface[ev.Surface]
	if !ok {
		m.logger.Debug("event for unknown surface", "surface", ev.Surface, "kind", ev.Kind.String())
		return
	}
	rec := m.slots[slot]

	switch ev.Kind {
	case platform.SurfaceClosed:
		if rec.State() != StateRunning {
			return
		}
		m.logger.Info("sink surface closed by user", "sink", rec.sink.Name)
		if err := m.closeRecord(rec); err != nil {
			m.logger.Warn("failed to close surface", "sink", rec.sink.Name, "error", err)
		}
		m.opts.OnUserExit(rec.sink.ID)

	case platform.SurfaceResized:
		rec.width.Store(int32(ev.Width))
		rec.height.Store(int32(ev.Height))
		m.logger.Debug("sink surface resized", "sink", rec.sink.Name, "size", fmt.Sprintf("%dx%d", ev.Width, ev.Height))
	}
}

func (m *Manager) closeRecord(rec *record) error {
	switch rec.State() {
	case StateClosed, StateClosing:
		return nil
	case StateRunning:
		m.setState(rec, StateClosing)
		err := m.backend.CloseSurface(rec.surface)
		delete(m.bySurface, rec.surface)
		m.setState(rec, StateClosed)
		if err != nil {
			return fmt.Errorf("sink %q: %w", rec.sink.Name, err)
		}
		return nil
	default:
		m.setState(rec, StateClosed)
		return nil
	}
}

// CloseAll drives every sink to Closed. Each surface is closed at most once
// no matter how often CloseAll runs.
func (m *Manager) CloseAll() error {
	var result *multierror.Error
	for _, rec := range m.slots {
		if err := m.closeRecord(rec); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// SinkStatus is a point-in-time view of one sink.
type SinkStatus struct {
	SinkID          uint32             `json:"sink_id"`
	Name            string             `json:"name"`
	State           State              `json:"state"`
	Target          string             `json:"target,omitempty"`
	Surface         platform.SurfaceID `json:"surface,omitempty"`
	Width           int                `json:"width"`
	Height          int                `json:"height"`
	FramesSubmitted uint64             `json:"frames_submitted"`
	FramesDropped   uint64             `json:"frames_dropped"`
	Error           string             `json:"error,omitempty"`
}

// Snapshot returns the status of every sink in configuration order. Only
// atomics are read, so it is safe from any goroutine once OpenAll has
// returned.
func (m *Manager) Snapshot() []SinkStatus {
	out := make([]SinkStatus, 0, len(m.slots))
	for _, rec := range m.slots {
		st := SinkStatus{
			SinkID:          rec.sink.ID,
			Name:            rec.sink.Name,
			State:           rec.State(),
			Width:           int(rec.width.Load()),
			Height:          int(rec.height.Load()),
			FramesSubmitted: rec.submitted.Load(),
			FramesDropped:   rec.dropped.Load(),
		}
		if rec.err != nil {
			st.Error = rec.err.Error()
		} else if st.State >= StateOpening {
			st.Target = rec.target.String()
			st.Surface = rec.surface
		}
		out = append(out, st)
	}
	return out
}

// Unrouted counts frames delivered for sinks the manager does not know.
func (m *Manager) Unrouted() uint64 {
	return m.unrouted.Load()
}

// ResolutionError returns the resolution failure recorded for sinkID, if
// any.
func (m *Manager) ResolutionError(sinkID uint32) (*display.ResolutionError, bool) {
	slot, ok := m.bySink[sinkID]
	if !ok {
		return nil, false
	}
	var rerr *display.ResolutionError
	if errors.As(m.slots[slot].err, &rerr) {
		return rerr, true
	}
	return nil, false
}
