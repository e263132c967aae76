// Package routing turns a validated configuration into a running fan-out
// topology on a media backend.
//
// Every source gets a source chain followed by a junction. Every sink gets a
// capture chain sized for its presentation. Every region adds one junction
// branch into its sink's capture chain, so a source may feed many sinks
// while each sink has exactly one producer.
package routing

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/1broseidon/projectmapper/internal/config"
	"github.com/1broseidon/projectmapper/internal/media"
)

// FrameRouter supplies the per-sink frame callbacks and capture sizes.
type FrameRouter interface {
	FrameHandler(sinkID uint32) media.FrameFunc
	FrameSize(sinkID uint32) (width, height int)
}

// Stage names the build step that failed.
type Stage int

const (
	StageSource Stage = iota
	StageJunction
	StageSourceLink
	StageSink
	StageRegionLink
)

func (s Stage) String() string {
	switch s {
	case StageSource:
		return "source"
	case StageJunction:
		return "junction"
	case StageSourceLink:
		return "source link"
	case StageSink:
		return "sink"
	case StageRegionLink:
		return "region link"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// BuildError reports a backend failure while building the graph. Whatever
// had been created is released before it is returned.
type BuildError struct {
	Stage    Stage
	SourceID uint32
	SinkID   uint32
	RegionID uint32
	Err      error
}

func (e *BuildError) Error() string {
	switch e.Stage {
	case StageSource, StageJunction, StageSourceLink:
		return fmt.Sprintf("failed to build %s for source %d: %v", e.Stage, e.SourceID, e.Err)
	case StageSink:
		return fmt.Sprintf("failed to build %s for sink %d: %v", e.Stage, e.SinkID, e.Err)
	default:
		return fmt.Sprintf("failed to build %s for region %d (source %d -> sink %d): %v",
			e.Stage, e.RegionID, e.SourceID, e.SinkID, e.Err)
	}
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Branch is one region's path from a source junction to a sink capture.
type Branch struct {
	RegionID uint32 `json:"region_id"`
	Name     string `json:"name"`
	SourceID uint32 `json:"source_id"`
	SinkID   uint32 `json:"sink_id"`

	junction media.ChainID
	capture  media.ChainID
}

// Graph is a built topology. Start, Stop and Teardown may be called from
// any goroutine.
type Graph struct {
	backend media.Backend
	logger  *slog.Logger

	sources   map[uint32]media.ChainID
	junctions map[uint32]media.ChainID
	captures  map[uint32]media.ChainID
	branches  []Branch

	mu       sync.Mutex
	started  bool
	stopped  bool
	released bool
}

// Build validates cfg and creates the topology on backend. A configuration
// problem is returned as *config.ConfigError before the backend is touched;
// a backend failure is returned as *BuildError after releasing everything
// created so far.
func Build(cfg *config.RuntimeConfig, router FrameRouter, backend media.Backend) (*Graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Graph{
		backend:   backend,
		logger:    slog.Default().With("component", "routing"),
		sources:   make(map[uint32]media.ChainID, len(cfg.Sources)),
		junctions: make(map[uint32]media.ChainID, len(cfg.Sources)),
		captures:  make(map[uint32]media.ChainID, len(cfg.Sinks)),
		branches:  make([]Branch, 0, len(cfg.Regions)),
	}

	if err := g.build(cfg, router); err != nil {
		backend.Release()
		g.released = true
		g.logger.Error("graph build failed", "error", err)
		return nil, err
	}

	g.logger.Info("graph built",
		"sources", len(g.sources),
		"sinks", len(g.captures),
		"branches", len(g.branches))
	return g, nil
}

func (g *Graph) build(cfg *config.RuntimeConfig, router FrameRouter) error {
	for _, src := range cfg.Sources {
		spec := media.ChainSpec{SourceID: src.ID}
		switch src.Kind {
		case config.SourceTest:
			spec.Kind = media.ChainTestSource
		case config.SourceURI:
			spec.Kind = media.ChainURISource
			spec.URI = src.URI
		default:
			return &BuildError{Stage: StageSource, SourceID: src.ID,
				Err: fmt.Errorf("unsupported source kind %v", src.Kind)}
		}

		id, err := g.backend.CreateChain(spec)
		if err != nil {
			return &BuildError{Stage: StageSource, SourceID: src.ID, Err: err}
		}
		g.sources[src.ID] = id

		// Unreferenced sources still get a junction so their output has
		// somewhere to go.
		junction, err := g.backend.CreateChain(media.ChainSpec{Kind: media.ChainJunction, SourceID: src.ID})
		if err != nil {
			return &BuildError{Stage: StageJunction, SourceID: src.ID, Err: err}
		}
		g.junctions[src.ID] = junction

		if err := g.backend.Link(id, junction); err != nil {
			return &BuildError{Stage: StageSourceLink, SourceID: src.ID, Err: err}
		}
	}

	for _, sink := range cfg.Sinks {
		w, h := router.FrameSize(sink.ID)
		id, err := g.backend.CreateChain(media.ChainSpec{
			Kind:   media.ChainSinkCapture,
			SinkID: sink.ID,
			Width:  w,
			Height: h,
		})
		if err != nil {
			return &BuildError{Stage: StageSink, SinkID: sink.ID, Err: err}
		}
		g.captures[sink.ID] = id
		g.backend.OnFrame(sink.ID, router.FrameHandler(sink.ID))
	}

	for _, region := range cfg.Regions {
		junction := g.junctions[region.SourceID]
		capture := g.captures[region.SinkID]
		if err := g.backend.Link(junction, capture); err != nil {
			return &BuildError{
				Stage:    StageRegionLink,
				SourceID: region.SourceID,
				SinkID:   region.SinkID,
				RegionID: region.ID,
				Err:      err,
			}
		}
		g.branches = append(g.branches, Branch{
			RegionID: region.ID,
			Name:     region.Name,
			SourceID: region.SourceID,
			SinkID:   region.SinkID,
			junction: junction,
			capture:  capture,
		})
	}
	return nil
}

// Branches returns one entry per region in configuration order.
func (g *Graph) Branches() []Branch {
	out := make([]Branch, len(g.branches))
	copy(out, g.branches)
	return out
}

// Start sets the graph running.
func (g *Graph) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return errors.New("graph has been torn down")
	}
	if g.started {
		return nil
	}
	if err := g.backend.Start(); err != nil {
		return fmt.Errorf("failed to start graph: %w", err)
	}
	g.started = true
	return nil
}

// Stop drains and stops a started graph. Only the first call reaches the
// backend.
func (g *Graph) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.started || g.stopped {
		return nil
	}
	g.stopped = true
	if err := g.backend.Stop(); err != nil {
		return fmt.Errorf("failed to stop graph: %w", err)
	}
	return nil
}

// Teardown stops the graph if needed and releases every chain.
func (g *Graph) Teardown() error {
	err := g.Stop()

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.released {
		g.backend.Release()
		g.released = true
	}
	return err
}
