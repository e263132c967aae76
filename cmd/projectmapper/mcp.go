package main

import (
	"github.com/spf13/cobra"

	"github.com/1broseidon/projectmapper/internal/ipc"
	"github.com/1broseidon/projectmapper/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Model Context Protocol integration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve MCP tools over stdio, backed by the running mapper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			return mcp.NewServer(ipc.NewClient(), logger).Run(cmd.Context())
		},
	})
	return cmd
}
