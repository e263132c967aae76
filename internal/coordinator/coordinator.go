// Package coordinator runs one routing session: it resolves presentations,
// builds the media graph, opens surfaces, and tears everything down exactly
// once when the first shutdown trigger arrives.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/projectmapper/internal/config"
	"github.com/1broseidon/projectmapper/internal/display"
	"github.com/1broseidon/projectmapper/internal/media"
	"github.com/1broseidon/projectmapper/internal/platform"
	"github.com/1broseidon/projectmapper/internal/presentation"
	"github.com/1broseidon/projectmapper/internal/routing"
)

// Options configures a Coordinator.
type Options struct {
	Logger   *slog.Logger
	Media    media.Backend
	Platform platform.Backend
	// WindowWidth/WindowHeight size windowed sinks.
	WindowWidth  int
	WindowHeight int
	Observer     Observer
	SinkObserver presentation.Observer
}

// Coordinator runs a configuration once.
type Coordinator struct {
	opts   Options
	logger *slog.Logger
	runID  string

	control chan Event
	// claimed is set by the first shutdown reason, whatever its source.
	claimed atomic.Bool
	ran     atomic.Bool
	once    sync.Once

	mu        sync.Mutex
	phase     Phase
	startedAt time.Time
	cause     *Event
	inv       *display.Inventory
	manager   *presentation.Manager
	graph     *routing.Graph
}

// New returns an idle coordinator.
func New(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	runID := uuid.NewString()
	return &Coordinator{
		opts:   opts,
		logger: opts.Logger.With("run_id", runID),
		runID:  runID,
		// One slot: the first trigger wins, later ones are dropped.
		control: make(chan Event, 1),
	}
}

// RunID identifies this coordinator in logs and status.
func (c *Coordinator) RunID() string {
	return c.runID
}

// Trigger requests shutdown. It never blocks and reports whether this event
// is the one that will be acted on. Once any shutdown reason has won,
// including one from the media bus or ctx, every later call returns false.
func (c *Coordinator) Trigger(ev Event) bool {
	if !c.claimed.CompareAndSwap(false, true) {
		c.logger.Debug("shutdown trigger dropped", "event", ev.String())
		return false
	}
	// Only the claimant sends, so the single slot is always free.
	c.control <- ev
	c.logger.Debug("shutdown trigger accepted", "event", ev.String())
	return true
}

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	if p == PhaseRunning {
		c.startedAt = time.Now()
	}
	c.mu.Unlock()
	c.logger.Debug("phase changed", "phase", p.String())
	c.opts.Observer.PhaseChanged(p)
}

// Stop is Trigger(StopThread) for callers outside the engine.
func (c *Coordinator) Stop(origin string) bool {
	return c.Trigger(Event{Kind: StopThread, Origin: origin})
}

// Inventory returns the monitors gathered at startup, or nil before then.
func (c *Coordinator) Inventory() *display.Inventory {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inv
}

// Phase reports the current lifecycle phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Status returns a snapshot safe to call from any goroutine.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{RunID: c.runID, Phase: c.phase}
	if !c.startedAt.IsZero() {
		st.StartedAt = c.startedAt
		st.Uptime = time.Since(c.startedAt).Truncate(time.Second).String()
	}
	if c.cause != nil {
		st.Cause = c.cause.String()
	}
	// Sink records are only stable once surfaces have been opened.
	if c.phase >= PhaseRunning && c.manager != nil {
		st.Sinks = c.manager.Snapshot()
	}
	if c.graph != nil {
		st.Branches = c.graph.Branches()
	}
	return st
}

// Run executes cfg until a shutdown trigger arrives, then tears down in
// reverse order. The calling goroutine becomes the platform event loop.
// A media failure is returned as *RuntimeError after teardown; a user exit,
// stop request, end of stream or ctx cancellation returns nil.
func (c *Coordinator) Run(ctx context.Context, cfg *config.RuntimeConfig) error {
	if !c.ran.CompareAndSwap(false, true) {
		return errors.New("coordinator already ran")
	}
	c.setPhase(PhaseStarting)
	defer c.setPhase(PhaseStopped)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := c.opts.Media.Init(); err != nil {
		return fmt.Errorf("failed to initialize media backend: %w", err)
	}

	// Platform backends expect enumeration, surfaces and the loop on one
	// thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	inv, err := display.Gather(c.opts.Platform)
	if err != nil {
		return err
	}
	c.logger.Info("display inventory gathered", "monitors", inv.Names())
	c.mu.Lock()
	c.inv = inv
	c.mu.Unlock()

	manager := presentation.NewManager(c.opts.Platform, cfg.Sinks, presentation.Options{
		Logger:       c.opts.Logger,
		WindowWidth:  c.opts.WindowWidth,
		WindowHeight: c.opts.WindowHeight,
		Observer:     c.opts.SinkObserver,
		OnUserExit: func(sinkID uint32) {
			c.Trigger(Event{Kind: UserExit, SinkID: sinkID, Origin: fmt.Sprintf("sink %d", sinkID)})
		},
	})
	c.mu.Lock()
	c.manager = manager
	c.mu.Unlock()

	if err := manager.ResolveAll(inv); err != nil {
		manager.CloseAll()
		return err
	}

	graph, err := routing.Build(cfg, manager, c.opts.Media)
	if err != nil {
		manager.CloseAll()
		return err
	}
	c.mu.Lock()
	c.graph = graph
	c.mu.Unlock()

	var (
		startErr     error
		listening    bool
		listenerDone = make(chan struct{})
	)
	c.opts.Platform.Post(func() {
		if err := manager.OpenAll(); err != nil {
			startErr = err
		} else if err := graph.Start(); err != nil {
			startErr = err
		}
		if startErr != nil {
			c.logger.Error("startup failed", "error", startErr)
			if err := graph.Teardown(); err != nil {
				c.logger.Warn("graph teardown failed", "error", err)
			}
			if err := manager.CloseAll(); err != nil {
				c.logger.Warn("closing surfaces failed", "error", err)
			}
			c.opts.Platform.Quit()
			return
		}

		c.setPhase(PhaseRunning)
		c.logger.Info("runtime running",
			"sinks", len(cfg.Sinks),
			"branches", len(graph.Branches()))
		listening = true
		go c.listen(ctx, graph, manager, listenerDone)
	})

	// Shutdown is driven by the listener, not by ctx directly, so the loop
	// gets to run CloseAll before it quits.
	loopErr := c.opts.Platform.Run(context.Background(), manager.HandleEvent)

	if listening {
		<-listenerDone
	} else if startErr == nil {
		// The loop died before startup ran.
		graph.Teardown()
		manager.CloseAll()
	}

	if startErr != nil {
		return startErr
	}
	if loopErr != nil {
		return fmt.Errorf("event loop failed: %w", loopErr)
	}

	c.mu.Lock()
	cause := c.cause
	c.mu.Unlock()
	if cause != nil && cause.Kind == MediaError {
		return &RuntimeError{Err: cause.Err}
	}
	return nil
}

// listen blocks until the first shutdown reason, then shuts down. A bus
// event or ctx cancellation that loses the race to an accepted Trigger
// defers to the triggered event.
func (c *Coordinator) listen(ctx context.Context, graph *routing.Graph, manager *presentation.Manager, done chan<- struct{}) {
	defer close(done)

	var ev Event
	select {
	case ev = <-c.control:
	case mev, ok := <-c.opts.Media.Events():
		switch {
		case !ok || mev.Kind == media.EventEOS:
			ev = Event{Kind: MediaEOS, Origin: "media backend"}
		default:
			ev = Event{Kind: MediaError, Origin: "media backend", Err: mev.Err}
		}
		if !c.claimed.CompareAndSwap(false, true) {
			c.logger.Debug("bus event lost to pending trigger", "event", ev.String())
			ev = <-c.control
		}
	case <-ctx.Done():
		ev = Event{Kind: StopThread, Origin: "context"}
		if !c.claimed.CompareAndSwap(false, true) {
			ev = <-c.control
		}
	}

	c.shutdown(ev, graph, manager)
}

func (c *Coordinator) shutdown(ev Event, graph *routing.Graph, manager *presentation.Manager) {
	c.once.Do(func() {
		c.mu.Lock()
		c.cause = &ev
		c.mu.Unlock()
		c.opts.Observer.Triggered(ev.Kind)
		c.setPhase(PhaseStopping)

		if ev.Kind == MediaError {
			c.logger.Error("shutting down", "reason", ev.String())
		} else {
			c.logger.Info("shutting down", "reason", ev.String())
		}

		if err := graph.Teardown(); err != nil {
			c.logger.Warn("graph teardown failed", "error", err)
		}

		c.opts.Platform.Post(func() {
			if err := manager.CloseAll(); err != nil {
				c.logger.Warn("closing surfaces failed", "error", err)
			}
		})
		c.opts.Platform.Quit()
	})
}
