package clientengine

import "testing"

func TestSessionStateMachine_HappyPath(t *testing.T) {
	sm := newSessionStateMachine()

	if sm.current() != StateDisconnected {
		t.Fatalf("initial state = %v, want Disconnected", sm.current())
	}

	steps := []SessionState{StateConnecting, StateConnected, StateInRoom, StateConnected, StateDisconnected}
	for _, next := range steps {
		if err := sm.transition(next); err != nil {
			t.Fatalf("transition(%v) error = %v", next, err)
		}
		if sm.current() != next {
			t.Fatalf("current() = %v, want %v", sm.current(), next)
		}
	}
}

func TestSessionStateMachine_RejectsInvalidEdge(t *testing.T) {
	sm := newSessionStateMachine()

	// Disconnected -> InRoom skips Connecting/Connected entirely.
	if err := sm.transition(StateInRoom); err != ErrInvalidTransition {
		t.Errorf("transition(InRoom) from Disconnected error = %v, want ErrInvalidTransition", err)
	}
}

func TestSessionStateMachine_TransitionToCurrentStateIsNoop(t *testing.T) {
	sm := newSessionStateMachine()
	if err := sm.transition(StateDisconnected); err != nil {
		t.Errorf("transition to the already-current state should succeed, got %v", err)
	}
}

func TestSessionStateMachine_ForceDisconnectedFromAnyState(t *testing.T) {
	sm := newSessionStateMachine()
	sm.transition(StateConnecting)
	sm.transition(StateConnected)
	sm.transition(StateInRoom)

	sm.forceDisconnected()
	if sm.current() != StateDisconnected {
		t.Errorf("current() = %v, want Disconnected", sm.current())
	}
}

func TestSessionState_String(t *testing.T) {
	cases := map[SessionState]string{
		StateDisconnected: "DISCONNECTED",
		StateConnecting:   "CONNECTING",
		StateConnected:    "CONNECTED",
		StateInRoom:       "IN_ROOM",
		SessionState(99):  "UNKNOWN",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
