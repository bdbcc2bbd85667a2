// Package fsm validates a recognizer session's connection-lifecycle
// transitions: a two-state machine (Disconnected/Connected) shared by
// every channel's Session, independent of which backend it talks to.
package fsm

import "fmt"

// State is one lifecycle state for a recognizer session.
type State string

// Event is one transition trigger consumed by the state machine.
type Event string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
)

const (
	// EventConnect fires when Reconnect successfully opens a backend
	// connection.
	EventConnect Event = "connect"
	// EventDisconnect fires on an operator-initiated Disconnect, an
	// upstream end-of-stream, or a send/receive failure — all three
	// collapse to the same transition (spec §3/§4.4).
	EventDisconnect Event = "disconnect"
)

// Transition validates and applies one state transition. Connecting while
// already Connected and disconnecting while already Disconnected are both
// rejected, so a caller can tell "nothing to do" apart from "new state
// reached" without re-deriving it from a before/after comparison.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateDisconnected:
		switch event {
		case EventConnect:
			return StateConnected, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateConnected:
		switch event {
		case EventDisconnect:
			return StateDisconnected, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
