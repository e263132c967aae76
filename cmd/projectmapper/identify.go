package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/spf13/cobra"

	"github.com/1broseidon/projectmapper/internal/config"
	"github.com/1broseidon/projectmapper/internal/display"
	"github.com/1broseidon/projectmapper/internal/identify"
)

type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

func newIdentifyCmd() *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "identify [config]",
		Short: "Outline and label every monitor on screen",
		Long: `Identify draws a colored border and a name label on every connected monitor.
When a config is given, the label also lists the sinks presented on that
monitor.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *config.RuntimeConfig
			if len(args) > 0 {
				c, err := config.Load(args[0])
				if err != nil {
					return err
				}
				cfg = c
			}

			plat, disconnect, err := openPlatform()
			if err != nil {
				return err
			}
			defer disconnect()

			x, ok := plat.(x11Accessor)
			if !ok {
				return errors.New("identify needs an X11 display")
			}
			inv, err := display.Gather(plat)
			if err != nil {
				return err
			}

			overlay := identify.NewOverlay(x.XUtil(), x.RootWindow())
			defer overlay.Cleanup()
			if err := overlay.Show(inv, cfg); err != nil {
				return fmt.Errorf("failed to draw overlay: %w", err)
			}

			loggerFromContext(cmd.Context()).Info("identifying monitors", "count", len(inv.Monitors()), "for", duration)
			select {
			case <-time.After(duration):
			case <-cmd.Context().Done():
			}
			return nil
		},
	}
	cmd.Flags().DurationVarP(&duration, "duration", "d", 5*time.Second, "how long to show the overlay")
	return cmd
}
