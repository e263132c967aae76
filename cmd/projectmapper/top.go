package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/1broseidon/projectmapper/internal/ipc"
	"github.com/1broseidon/projectmapper/internal/tui"
)

func newTopCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Live dashboard of a running mapper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(ipc.NewClient(), interval)
		},
	}
	cmd.Flags().DurationVarP(&interval, "interval", "n", time.Second, "refresh interval")
	return cmd
}
