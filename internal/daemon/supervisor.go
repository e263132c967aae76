package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/1broseidon/projectmapper/internal/config"
	"github.com/1broseidon/projectmapper/internal/coordinator"
	"github.com/1broseidon/projectmapper/internal/display"
)

const reloadOrigin = "config reload"

// SupervisorConfig holds configuration for the supervisor.
type SupervisorConfig struct {
	// Path is the config file to run.
	Path string
	// Watch re-runs the mapper whenever Path changes on disk.
	Watch bool
	// Debounce coalesces bursts of file events. Defaults to 250ms.
	Debounce time.Duration
	Logger   *slog.Logger
	// NewCoordinator builds a fresh coordinator for every run.
	NewCoordinator func() *coordinator.Coordinator
}

// Supervisor runs the mapper from a config file and, when watching,
// restarts it with the new config after every valid edit. Invalid edits are
// logged and the current run keeps going.
type Supervisor struct {
	path     string
	watch    bool
	debounce time.Duration
	logger   *slog.Logger
	build    func() *coordinator.Coordinator

	mu       sync.Mutex
	current  *coordinator.Coordinator
	last     *coordinator.Coordinator
	pending  *config.RuntimeConfig
	stopping bool
	runs     int
}

// NewSupervisor creates a supervisor with the given configuration.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	path := cfg.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	return &Supervisor{
		path:     path,
		watch:    cfg.Watch,
		debounce: debounce,
		logger:   logger,
		build:    cfg.NewCoordinator,
	}
}

// Run blocks until the mapper stops for a reason other than a reload. The
// calling goroutine hosts each coordinator's event loop.
func (s *Supervisor) Run(ctx context.Context) error {
	cfg, err := config.Load(s.path)
	if err != nil {
		return err
	}

	if s.watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		// Editors replace files by rename, so watch the directory.
		if err := watcher.Add(filepath.Dir(s.path)); err != nil {
			watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
		}
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go s.watchLoop(watchCtx, watcher)
		s.logger.Info("watching config for changes", "path", s.path)
	}

	var lastGood *config.RuntimeConfig
	for {
		c := s.build()
		s.mu.Lock()
		if s.stopping {
			s.mu.Unlock()
			return nil
		}
		s.current = c
		s.runs++
		s.mu.Unlock()

		runErr := c.Run(ctx, cfg)
		st := c.Status()
		reached := !st.StartedAt.IsZero()
		if reached {
			lastGood = cfg
		}

		s.mu.Lock()
		next := s.pending
		s.pending = nil
		stopping := s.stopping
		s.current = nil
		s.last = c
		s.mu.Unlock()

		if ctx.Err() != nil || stopping {
			return runErr
		}

		reloadCause := (coordinator.Event{Kind: coordinator.StopThread, Origin: reloadOrigin}).String()
		switch {
		case next != nil && (st.Cause == reloadCause || !reached):
			s.logger.Info("restarting with reloaded config", "previous_run", c.RunID())
			cfg = next
		case runErr != nil && !reached && lastGood != nil && cfg != lastGood:
			s.logger.Error("reloaded config failed to start, reverting", "error", runErr)
			cfg = lastGood
		default:
			return runErr
		}
	}
}

func (s *Supervisor) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			s.logger.Debug("config file event", "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			s.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("config watcher error", "error", err)
		}
	}
}

// reload validates the file and, when it is usable, stops the current run
// so Run restarts with it.
func (s *Supervisor) reload() {
	cfg, err := config.Load(s.path)
	if err != nil {
		s.logger.Error("ignoring invalid config edit", "path", s.path, "error", err)
		return
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	s.pending = cfg
	c := s.current
	s.mu.Unlock()

	if c == nil {
		return
	}
	if !c.Trigger(coordinator.Event{Kind: coordinator.StopThread, Origin: reloadOrigin}) {
		s.logger.Warn("reload dropped, a shutdown is already in progress")
	}
}

// Stop ends supervision and stops the current run.
func (s *Supervisor) Stop(origin string) bool {
	return s.Trigger(coordinator.Event{Kind: coordinator.StopThread, Origin: origin})
}

// Trigger ends supervision and forwards ev to the current run.
func (s *Supervisor) Trigger(ev coordinator.Event) bool {
	s.mu.Lock()
	s.stopping = true
	c := s.current
	s.mu.Unlock()

	if c == nil {
		return false
	}
	return c.Trigger(ev)
}

// Status reports the current run, or the last one between runs.
func (s *Supervisor) Status() coordinator.Status {
	s.mu.Lock()
	c := s.current
	if c == nil {
		c = s.last
	}
	s.mu.Unlock()

	if c == nil {
		return coordinator.Status{Phase: coordinator.PhaseIdle}
	}
	return c.Status()
}

// Inventory returns the monitors seen by the current run.
func (s *Supervisor) Inventory() *display.Inventory {
	s.mu.Lock()
	c := s.current
	if c == nil {
		c = s.last
	}
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Inventory()
}

// Runs reports how many coordinators have been started.
func (s *Supervisor) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}
