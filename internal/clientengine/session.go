package clientengine

import "sync/atomic"

// SessionState is one client's position in spec.md §4.4's per-session
// state machine: Disconnected → Connecting → Connected → InRoom →
// Disconnected. Grounded on the teacher's internal/peer.ConnectionState
// enum and its atomic State/SetState accessors, narrowed to the four
// states a relay-facing client actually passes through (rchat has no
// handshake or reconnecting sub-state of its own; reconnection is
// modeled as a fresh Connecting→Connected transition).
type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateConnected
	StateInRoom
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateInRoom:
		return "IN_ROOM"
	default:
		return "UNKNOWN"
	}
}

// sessionStateMachine is an atomic SessionState with transition
// validation. InRoom is entered only from Connected (on ChatCreated or
// JoinedChat) and left back to Connected on LeaveChat, or all the way to
// Disconnected on connection loss.
type sessionStateMachine struct {
	state atomic.Int32
}

func newSessionStateMachine() *sessionStateMachine {
	sm := &sessionStateMachine{}
	sm.state.Store(int32(StateDisconnected))
	return sm
}

func (sm *sessionStateMachine) current() SessionState {
	return SessionState(sm.state.Load())
}

// validTransitions enumerates the edges spec.md §4.4 allows. Disconnected
// is reachable from any state (connection loss can happen at any point).
var validTransitions = map[SessionState]map[SessionState]bool{
	StateDisconnected: {StateConnecting: true},
	StateConnecting:   {StateConnected: true, StateDisconnected: true},
	StateConnected:    {StateInRoom: true, StateDisconnected: true},
	StateInRoom:       {StateConnected: true, StateDisconnected: true},
}

// transition moves the machine from its current state to next, failing if
// the edge isn't one spec.md §4.4 allows.
func (sm *sessionStateMachine) transition(next SessionState) error {
	for {
		cur := sm.current()
		if cur == next {
			return nil
		}
		if !validTransitions[cur][next] {
			return ErrInvalidTransition
		}
		if sm.state.CompareAndSwap(int32(cur), int32(next)) {
			return nil
		}
	}
}

// forceDisconnected unconditionally resets to Disconnected, used on
// connection loss where every prior state is expected to be able to fall
// back here immediately rather than through transition's edge table.
func (sm *sessionStateMachine) forceDisconnected() {
	sm.state.Store(int32(StateDisconnected))
}
