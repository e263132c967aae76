package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/projectmapper/internal/coordinator"
	"github.com/1broseidon/projectmapper/internal/display"
	"github.com/1broseidon/projectmapper/internal/ipc"
)

const (
	ServerName    = "projectmapper"
	ServerVersion = "0.1.0"
)

// Controller reaches the running mapper. *ipc.Client implements it.
type Controller interface {
	GetStatus() (*coordinator.Status, error)
	GetMonitors() (*ipc.MonitorsData, error)
	GetOptions() (*display.AvailableConfig, error)
	Stop(origin string) (bool, error)
}

// Server is the MCP server exposing the mapper's control surface.
type Server struct {
	mcpServer *mcpsdk.Server
	ctl       Controller
	logger    *slog.Logger
}

// NewServer creates a new MCP server talking to ctl.
func NewServer(ctl Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{ctl: ctl, logger: logger}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "runtime_status",
		Description: "Report whether a projectmapper runtime is active, with its phase, uptime, per-sink state and frame counters, and the source-to-sink branches.",
	}, s.handleRuntimeStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_monitors",
		Description: "List the monitors the running mapper enumerated, with geometry, current mode and every supported mode.",
	}, s.handleListMonitors)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "stop_runtime",
		Description: "Ask the running mapper to shut down. Only the first stop request is acted on; accepted is false when a shutdown was already under way.",
	}, s.handleStopRuntime)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "validate_config",
		Description: "Parse and validate a routing config (sources, sinks, regions) without running it. Returns every problem found, or the routing graph in DOT form when valid.",
	}, s.handleValidateConfig)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "available_options",
		Description: "Describe the config values usable on the machine running the mapper: source kinds with URI schemes, monitor names for borderless sinks, and resolutions with refresh rates (milli-Hz) for exclusive sinks.",
	}, s.handleAvailableOptions)
}
