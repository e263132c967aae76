// Package media defines the stream-processing backend the router drives.
// The GStreamer implementation lives in media/gstreamer; media/mediatest provides
// an in-memory recorder for tests.
package media

import (
	"fmt"
	"time"
)

// ChainID identifies a chain created by a Backend.
type ChainID int

// ChainKind is the closed set of chains the router builds.
type ChainKind int

const (
	// ChainTestSource generates a test pattern.
	ChainTestSource ChainKind = iota
	// ChainURISource decodes the stream at ChainSpec.URI.
	ChainURISource
	// ChainJunction fans one input out to any number of branches.
	ChainJunction
	// ChainSinkCapture converts frames to BGRA at the requested size and
	// hands them to the OnFrame callback registered for ChainSpec.SinkID.
	ChainSinkCapture
)

func (k ChainKind) String() string {
	switch k {
	case ChainTestSource:
		return "test-source"
	case ChainURISource:
		return "uri-source"
	case ChainJunction:
		return "junction"
	case ChainSinkCapture:
		return "sink-capture"
	default:
		return fmt.Sprintf("ChainKind(%d)", int(k))
	}
}

// ChainSpec describes one chain to create.
type ChainSpec struct {
	Kind     ChainKind
	SourceID uint32 // sources and junctions
	SinkID   uint32 // sink captures
	URI      string
	Width    int // sink captures; 0 keeps the upstream size
	Height   int
}

// Frame is one decoded BGRA image delivered to a sink.
type Frame struct {
	SinkID uint32
	Seq    uint64
	Width  int
	Height int
	Stride int
	PTS    time.Duration
	Data   []byte
}

// FrameFunc receives frames on a backend worker goroutine. It must not block.
type FrameFunc func(Frame)

// EventKind classifies backend bus events.
type EventKind int

const (
	EventEOS EventKind = iota
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventEOS:
		return "eos"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is reported by a running backend.
type Event struct {
	Kind EventKind
	Err  error
}

// Backend builds and runs the processing graph.
type Backend interface {
	// Init performs process-wide initialization. Safe to call repeatedly.
	Init() error
	CreateChain(spec ChainSpec) (ChainID, error)
	// Link connects the output of a to the input of b. Linking a junction
	// adds a new branch to it.
	Link(a, b ChainID) error
	// OnFrame registers the callback for frames captured for sinkID.
	OnFrame(sinkID uint32, fn FrameFunc)
	// Start runs the graph. Events left over from an earlier run are
	// discarded first.
	Start() error
	// Stop sends end-of-stream, waits for it to drain and stops the graph.
	Stop() error
	// Release frees every chain and discards pending events. The backend
	// may be reused afterwards.
	Release()
	// Events reports end-of-stream and fatal errors while running. Nothing
	// raised during Stop is reported.
	Events() <-chan Event
	// URIProtocols lists the URI schemes a URI source can open.
	URIProtocols() []string
}
