package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/1broseidon/projectmapper/internal/coordinator"
	"github.com/1broseidon/projectmapper/internal/daemon"
	"github.com/1broseidon/projectmapper/internal/hotkeys"
	"github.com/1broseidon/projectmapper/internal/ipc"
	"github.com/1broseidon/projectmapper/internal/media/gstreamer"
	"github.com/1broseidon/projectmapper/internal/metrics"
)

type runOpts struct {
	watch        bool
	metricsAddr  string
	exitKey      string
	noHotkeys    bool
	noControl    bool
	windowWidth  int
	windowHeight int
	stopTimeout  time.Duration
}

func newRunCmd() *cobra.Command {
	opts := &runOpts{}

	cmd := &cobra.Command{
		Use:   "run [config]",
		Short: "Open every sink and play the routing graph until stopped",
		Long: `Run loads the config, resolves each sink against the connected monitors,
builds the routing graph and presents it until a sink window is closed, the
exit hotkey is pressed, a stop arrives over the control socket or the process
is interrupted.

With --watch, valid edits to the config file restart the mapper with the new
config. Invalid edits are logged and ignored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPathArg(args)
			if err != nil {
				return err
			}
			return runMapper(cmd.Context(), loggerFromContext(cmd.Context()), path, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "restart with the new config when the file changes")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics, /healthz and /status on this address")
	cmd.Flags().StringVar(&opts.exitKey, "exit-key", hotkeys.DefaultExitKey, "global hotkey that closes every sink")
	cmd.Flags().BoolVar(&opts.noHotkeys, "no-hotkeys", false, "do not grab the exit hotkey")
	cmd.Flags().BoolVar(&opts.noControl, "no-control", false, "do not listen on the control socket")
	cmd.Flags().IntVar(&opts.windowWidth, "window-width", 1280, "width of windowed sinks")
	cmd.Flags().IntVar(&opts.windowHeight, "window-height", 720, "height of windowed sinks")
	cmd.Flags().DurationVar(&opts.stopTimeout, "stop-timeout", 2*time.Second, "how long to wait for the media graph to drain on stop")

	return cmd
}

func runMapper(ctx context.Context, logger *slog.Logger, path string, opts *runOpts) error {
	plat, disconnect, err := openPlatform()
	if err != nil {
		return err
	}
	defer disconnect()

	media := gstreamer.New(gstreamer.Options{
		Logger:        logger.With("component", "media"),
		DefaultWidth:  opts.windowWidth,
		DefaultHeight: opts.windowHeight,
		StopTimeout:   opts.stopTimeout,
	})
	collector := metrics.NewCollector()

	sup := daemon.NewSupervisor(daemon.SupervisorConfig{
		Path:   path,
		Watch:  opts.watch,
		Logger: logger.With("component", "supervisor"),
		NewCoordinator: func() *coordinator.Coordinator {
			return coordinator.New(coordinator.Options{
				Logger:       logger,
				Media:        media,
				Platform:     plat,
				WindowWidth:  opts.windowWidth,
				WindowHeight: opts.windowHeight,
				Observer:     collector,
				SinkObserver: collector,
			})
		},
	})

	if !opts.noHotkeys {
		h, err := hotkeys.NewHandler(plat)
		if err != nil {
			return err
		}
		if err := h.RegisterExit(opts.exitKey, sup); err != nil {
			return err
		}
		defer h.Close()
		logger.Info("exit hotkey registered", "key", opts.exitKey)
	}

	if !opts.noControl {
		srv, err := ipc.NewServer(sup, media.URIProtocols())
		if err != nil {
			return err
		}
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start control socket: %w", err)
		}
		defer srv.Stop()
		logger.Info("control socket listening", "path", srv.SocketPath())
	}

	if opts.metricsAddr != "" {
		mctx, cancel := context.WithCancel(ctx)
		defer cancel()
		router := metrics.NewRouter(collector, sup)
		go func() {
			if err := metrics.Serve(mctx, opts.metricsAddr, router, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sigDone := make(chan struct{})
	defer func() {
		signal.Stop(sigCh)
		close(sigDone)
	}()
	go forwardSignals(sigCh, sigDone, sup, logger)

	// Signals reach the supervisor through sigCh so the stop cause names them.
	err = sup.Run(context.WithoutCancel(ctx))
	st := sup.Status()
	logger.Info("mapper stopped", "run_id", st.RunID, "cause", st.Cause, "runs", sup.Runs())
	return err
}

// stopper is the part of the supervisor signals are forwarded to.
type stopper interface {
	Stop(origin string) bool
}

// forwardSignals turns each signal into a stop request until done closes.
func forwardSignals(sigCh <-chan os.Signal, done <-chan struct{}, s stopper, logger *slog.Logger) {
	for {
		select {
		case <-done:
			return
		case sig := <-sigCh:
			if !s.Stop("signal " + sig.String()) {
				logger.Warn("shutdown already in progress", "signal", sig.String())
			}
		}
	}
}
