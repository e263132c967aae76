package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/1broseidon/projectmapper/internal/config"
	"github.com/1broseidon/projectmapper/internal/display"
	"github.com/1broseidon/projectmapper/internal/ipc"
	"github.com/1broseidon/projectmapper/internal/media/gstreamer"
	"github.com/1broseidon/projectmapper/internal/routing"
)

// configPathArg returns the config named on the command line or the default
// location.
func configPathArg(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	return config.DefaultConfigPath()
}

func newValidateCmd() *cobra.Command {
	var checkDisplays bool

	cmd := &cobra.Command{
		Use:   "validate [config]",
		Short: "Check a config file without opening anything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPathArg(args)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				var cerr *config.ConfigError
				if errors.As(err, &cerr) {
					for _, p := range cerr.Problems() {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", p)
					}
				}
				return err
			}

			if checkDisplays {
				inv, done, err := gatherInventory()
				if err != nil {
					return err
				}
				defer done()
				if err := resolveAll(cmd.OutOrStdout(), cfg, inv); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d sources, %d sinks, %d regions)\n",
				path, len(cfg.Sources), len(cfg.Sinks), len(cfg.Regions))
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkDisplays, "check-displays", false, "also resolve every sink against the connected monitors")
	return cmd
}

// resolveAll prints where each sink would be presented and fails on the
// first sink that cannot be placed.
func resolveAll(w io.Writer, cfg *config.RuntimeConfig, inv *display.Inventory) error {
	var errs []error
	for _, sink := range cfg.Sinks {
		r, err := display.Resolve(sink.Presentation, inv)
		if err != nil {
			fmt.Fprintf(w, "sink %d (%s): %v\n", sink.ID, sink.Name, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "sink %d (%s): %s\n", sink.ID, sink.Name, r)
	}
	return errors.Join(errs...)
}

func gatherInventory() (*display.Inventory, func(), error) {
	plat, disconnect, err := openPlatform()
	if err != nil {
		return nil, nil, err
	}
	inv, err := display.Gather(plat)
	if err != nil {
		disconnect()
		return nil, nil, err
	}
	return inv, disconnect, nil
}

func newOptionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "Print every value a config may use on this machine as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, done, err := gatherInventory()
			if err != nil {
				return err
			}
			defer done()

			media := gstreamer.New(gstreamer.Options{Logger: loggerFromContext(cmd.Context())})
			return writeJSON(cmd.OutOrStdout(), display.AvailableOptions(inv, media.URIProtocols()))
		},
	}
}

func newMonitorsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "monitors",
		Short: "List connected monitors and their modes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, done, err := gatherInventory()
			if err != nil {
				return err
			}
			defer done()

			data := ipc.MonitorsFromInventory(inv)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), data)
			}
			return printMonitors(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printMonitors(w io.Writer, data ipc.MonitorsData) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPOSITION\tCURRENT\tMODES")
	for _, m := range data.Monitors {
		fmt.Fprintf(tw, "%s\t%d,%d\t%dx%d@%d\t%d\n",
			m.Name, m.X, m.Y, m.Current.Width, m.Current.Height, m.Current.RefreshHz, len(m.Modes))
	}
	return tw.Flush()
}

func newGraphCmd() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "graph [config]",
		Short: "Render the routing graph of a config as DOT or SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPathArg(args)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			dot := routing.ToDOT(cfg)
			var out []byte
			switch format {
			case "dot":
				out = []byte(dot)
			case "svg":
				out, err = routing.RenderSVG(cmd.Context(), dot)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown graph format %q (want dot or svg)", format)
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return os.WriteFile(output, out, 0o644)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format: dot or svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with config files",
	}

	var format string
	export := &cobra.Command{
		Use:   "export [config]",
		Short: "Re-encode a config in another format",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPathArg(args)
			if err != nil {
				return err
			}
			f, err := config.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			return config.Export(cmd.OutOrStdout(), cfg, f)
		},
	}
	export.Flags().StringVarP(&format, "format", "f", "yaml", "output format: yaml, toml or json")

	cmd.AddCommand(export)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
