package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/projectmapper/internal/display"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandGetStatus   CommandType = "GET_STATUS"
	CommandGetMonitors CommandType = "GET_MONITORS"
	CommandGetOptions  CommandType = "GET_OPTIONS"
	CommandStop        CommandType = "STOP"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ModeInfo is one video mode of a monitor.
type ModeInfo struct {
	Width     uint32 `json:"width"`
	Height    uint32 `json:"height"`
	RefreshHz uint32 `json:"refresh_hz"`
}

// MonitorInfo represents information about a single monitor
type MonitorInfo struct {
	Name    string     `json:"name"`
	X       int        `json:"x"`
	Y       int        `json:"y"`
	Width   int        `json:"width"`
	Height  int        `json:"height"`
	Current ModeInfo   `json:"current"`
	Modes   []ModeInfo `json:"modes"`
}

// MonitorsData represents the data returned by GET_MONITORS
type MonitorsData struct {
	Monitors []MonitorInfo `json:"monitors"`
}

// StopPayload optionally names who asked for the stop.
type StopPayload struct {
	Origin string `json:"origin,omitempty"`
}

// StopData reports whether the stop request was the one acted on.
type StopData struct {
	Accepted bool `json:"accepted"`
}

// MonitorsFromInventory flattens inv for the wire.
func MonitorsFromInventory(inv *display.Inventory) MonitorsData {
	data := MonitorsData{Monitors: []MonitorInfo{}}
	if inv == nil {
		return data
	}
	for _, m := range inv.Monitors() {
		info := MonitorInfo{
			Name:    m.Name,
			X:       m.Bounds.X,
			Y:       m.Bounds.Y,
			Width:   m.Bounds.Width,
			Height:  m.Bounds.Height,
			Current: modeInfo(m.Current),
			Modes:   make([]ModeInfo, 0, len(m.Modes)),
		}
		for _, mode := range m.Modes {
			info.Modes = append(info.Modes, modeInfo(mode))
		}
		data.Monitors = append(data.Monitors, info)
	}
	return data
}

func modeInfo(m display.Mode) ModeInfo {
	return ModeInfo{Width: m.Width, Height: m.Height, RefreshHz: m.RefreshHz}
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
