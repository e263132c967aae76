package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/projectmapper/internal/config"
	"github.com/1broseidon/projectmapper/internal/routing"
)

func (s *Server) handleRuntimeStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ RuntimeStatusInput) (*mcpsdk.CallToolResult, RuntimeStatusOutput, error) {
	st, err := s.ctl.GetStatus()
	if err != nil {
		// No runtime is not a tool failure.
		return nil, RuntimeStatusOutput{Running: false, Error: err.Error()}, nil
	}
	return nil, RuntimeStatusOutput{Running: true, Status: st}, nil
}

func (s *Server) handleListMonitors(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListMonitorsInput) (*mcpsdk.CallToolResult, ListMonitorsOutput, error) {
	data, err := s.ctl.GetMonitors()
	if err != nil {
		return nil, ListMonitorsOutput{}, fmt.Errorf("list monitors: %w", err)
	}
	return nil, ListMonitorsOutput{Monitors: data.Monitors}, nil
}

func (s *Server) handleStopRuntime(_ context.Context, _ *mcpsdk.CallToolRequest, args StopRuntimeInput) (*mcpsdk.CallToolResult, StopRuntimeOutput, error) {
	origin := "mcp"
	if args.Reason != "" {
		origin = "mcp: " + args.Reason
	}
	accepted, err := s.ctl.Stop(origin)
	if err != nil {
		return nil, StopRuntimeOutput{}, fmt.Errorf("stop runtime: %w", err)
	}
	s.logger.Info("stop requested over MCP", "accepted", accepted, "reason", args.Reason)
	return nil, StopRuntimeOutput{Accepted: accepted}, nil
}

func (s *Server) handleAvailableOptions(_ context.Context, _ *mcpsdk.CallToolRequest, _ AvailableOptionsInput) (*mcpsdk.CallToolResult, AvailableOptionsOutput, error) {
	opts, err := s.ctl.GetOptions()
	if err != nil {
		return nil, AvailableOptionsOutput{}, fmt.Errorf("available options: %w", err)
	}
	return nil, AvailableOptionsOutput{Options: *opts}, nil
}

func (s *Server) handleValidateConfig(_ context.Context, _ *mcpsdk.CallToolRequest, args ValidateConfigInput) (*mcpsdk.CallToolResult, ValidateConfigOutput, error) {
	var (
		data   []byte
		format config.Format
		err    error
	)
	switch {
	case args.Path != "":
		format, err = config.DetectFormat(args.Path)
		if err != nil {
			return nil, ValidateConfigOutput{}, err
		}
		data, err = os.ReadFile(args.Path)
		if err != nil {
			return nil, ValidateConfigOutput{}, fmt.Errorf("read config: %w", err)
		}
	case args.Content != "":
		format = config.FormatYAML
		if args.Format != "" {
			format, err = config.ParseFormat(args.Format)
			if err != nil {
				return nil, ValidateConfigOutput{}, err
			}
		}
		data = []byte(args.Content)
	default:
		return nil, ValidateConfigOutput{}, errors.New("either path or content is required")
	}

	return nil, validate(data, format), nil
}

// validate never fails the tool call; problems are reported in the output.
func validate(data []byte, format config.Format) ValidateConfigOutput {
	raw, err := config.Decode(bytes.NewReader(data), format)
	if err != nil {
		return ValidateConfigOutput{Errors: []string{err.Error()}}
	}
	out := ValidateConfigOutput{
		Sources: len(raw.Sources),
		Sinks:   len(raw.Sinks),
		Regions: len(raw.Regions),
	}

	if err := raw.Check(); err != nil {
		out.Errors = problems(err)
		return out
	}
	cfg := raw.ToRuntime()
	if err := cfg.Validate(); err != nil {
		out.Errors = problems(err)
		return out
	}

	out.Valid = true
	out.Graph = routing.ToDOT(cfg)
	return out
}

func problems(err error) []string {
	var cerr *config.ConfigError
	if !errors.As(err, &cerr) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(cerr.Problems()))
	for _, p := range cerr.Problems() {
		out = append(out, p.Error())
	}
	return out
}
