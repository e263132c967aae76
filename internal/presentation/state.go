package presentation

import "fmt"

// State is where a sink is in its presentation lifecycle. Sinks only move
// forward: Unopened, Resolving, Opening, Running, Closing, Closed.
type State int32

const (
	StateUnopened State = iota
	StateResolving
	StateOpening
	StateRunning
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateResolving:
		return "resolving"
	case StateOpening:
		return "opening"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// MarshalText renders the state name in JSON status payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for st := StateUnopened; st <= StateClosed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown sink state %q", text)
}

// Observer is told about lifecycle changes and frame outcomes. Calls arrive
// on the event loop goroutine.
type Observer interface {
	SinkState(sinkID uint32, name string, state State)
	FrameSubmitted(sinkID uint32)
	FrameDropped(sinkID uint32)
}

type nopObserver struct{}

func (nopObserver) SinkState(uint32, string, State) {}
func (nopObserver) FrameSubmitted(uint32)           {}
func (nopObserver) FrameDropped(uint32)             {}
