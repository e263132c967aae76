package coordinator

import (
	"fmt"
	"time"

	"github.com/1broseidon/projectmapper/internal/presentation"
	"github.com/1broseidon/projectmapper/internal/routing"
)

// EventKind is a reason to shut the runtime down.
type EventKind int

const (
	// UserExit: a surface was closed or the exit key was pressed.
	UserExit EventKind = iota
	// StopThread: an external stop request (IPC, MCP, signal).
	StopThread
	// MediaEOS: the media graph reached end of stream.
	MediaEOS
	// MediaError: the media graph failed.
	MediaError
)

func (k EventKind) String() string {
	switch k {
	case UserExit:
		return "user-exit"
	case StopThread:
		return "stop"
	case MediaEOS:
		return "media-eos"
	case MediaError:
		return "media-error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is sent on the control channel.
type Event struct {
	Kind   EventKind
	SinkID uint32 // UserExit from a surface
	Origin string // free-form, for logs
	Err    error  // MediaError
}

func (e Event) String() string {
	s := e.Kind.String()
	if e.Origin != "" {
		s += " from " + e.Origin
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// RuntimeError is returned by Run when the media graph failed while
// running. It is raised after teardown has completed.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("media runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Phase is the coordinator's lifecycle position.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhaseRunning
	PhaseStopping
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MarshalText renders the phase name in JSON status payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for ph := PhaseIdle; ph <= PhaseStopped; ph++ {
		if ph.String() == string(text) {
			*p = ph
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Status is a point-in-time view of a coordinator.
type Status struct {
	RunID     string                    `json:"run_id"`
	Phase     Phase                     `json:"phase"`
	StartedAt time.Time                 `json:"started_at,omitempty"`
	Uptime    string                    `json:"uptime,omitempty"`
	Cause     string                    `json:"cause,omitempty"`
	Sinks     []presentation.SinkStatus `json:"sinks,omitempty"`
	Branches  []routing.Branch          `json:"branches,omitempty"`
}

// Observer is told about phase changes and shutdown triggers.
type Observer interface {
	PhaseChanged(p Phase)
	Triggered(kind EventKind)
}

type nopObserver struct{}

func (nopObserver) PhaseChanged(Phase)   {}
func (nopObserver) Triggered(EventKind) {}
