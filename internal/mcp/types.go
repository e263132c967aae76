package mcp

import (
	"github.com/1broseidon/projectmapper/internal/coordinator"
	"github.com/1broseidon/projectmapper/internal/display"
	"github.com/1broseidon/projectmapper/internal/ipc"
)

// RuntimeStatusInput is the input for the runtime_status tool.
type RuntimeStatusInput struct{}

// RuntimeStatusOutput is the output for the runtime_status tool.
type RuntimeStatusOutput struct {
	Running bool                `json:"running"`
	Status  *coordinator.Status `json:"status,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// ListMonitorsInput is the input for the list_monitors tool.
type ListMonitorsInput struct{}

// ListMonitorsOutput is the output for the list_monitors tool.
type ListMonitorsOutput struct {
	Monitors []ipc.MonitorInfo `json:"monitors"`
}

// StopRuntimeInput is the input for the stop_runtime tool.
type StopRuntimeInput struct {
	Reason string `json:"reason,omitempty" jsonschema:"Optional free-form reason recorded in the runtime log"`
}

// StopRuntimeOutput is the output for the stop_runtime tool.
type StopRuntimeOutput struct {
	Accepted bool `json:"accepted"`
}

// ValidateConfigInput is the input for the validate_config tool.
type ValidateConfigInput struct {
	Path    string `json:"path,omitempty" jsonschema:"Path to a config file (.yaml, .toml or .json). Either path or content is required."`
	Content string `json:"content,omitempty" jsonschema:"Inline config document. Either path or content is required."`
	Format  string `json:"format,omitempty" jsonschema:"Format of content: yaml, toml or json (default: yaml). Ignored when path is set."`
}

// ValidateConfigOutput is the output for the validate_config tool.
type ValidateConfigOutput struct {
	Valid   bool     `json:"valid"`
	Sources int      `json:"sources"`
	Sinks   int      `json:"sinks"`
	Regions int      `json:"regions"`
	Errors  []string `json:"errors,omitempty"`
	// Graph is the routing in Graphviz DOT form for valid configs.
	Graph string `json:"graph,omitempty"`
}

// AvailableOptionsInput is the input for the available_options tool.
type AvailableOptionsInput struct{}

// AvailableOptionsOutput is the output for the available_options tool.
type AvailableOptionsOutput struct {
	Options display.AvailableConfig `json:"options"`
}
