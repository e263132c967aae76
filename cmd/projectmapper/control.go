package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/1broseidon/projectmapper/internal/coordinator"
	"github.com/1broseidon/projectmapper/internal/ipc"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running mapper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ipc.NewClient().GetStatus()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			return printStatus(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printStatus(w io.Writer, st *coordinator.Status) error {
	fmt.Fprintf(w, "run:    %s\n", st.RunID)
	fmt.Fprintf(w, "phase:  %s\n", st.Phase)
	if st.Uptime != "" {
		fmt.Fprintf(w, "uptime: %s\n", st.Uptime)
	}
	if st.Cause != "" {
		fmt.Fprintf(w, "cause:  %s\n", st.Cause)
	}
	if len(st.Sinks) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SINK\tNAME\tSTATE\tTARGET\tSIZE\tFRAMES\tDROPPED")
	for _, s := range st.Sinks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%dx%d\t%d\t%d\n",
			s.SinkID, s.Name, s.State, s.Target, s.Width, s.Height, s.FramesSubmitted, s.FramesDropped)
	}
	return tw.Flush()
}

func newStopCmd() *cobra.Command {
	var origin string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Close every sink of a running mapper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accepted, err := ipc.NewClient().Stop(origin)
			if err != nil {
				return err
			}
			if accepted {
				fmt.Fprintln(cmd.OutOrStdout(), "stopping")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "a shutdown is already in progress")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "cli", "name recorded as the stop origin")
	return cmd
}
