package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	next, err := Transition(StateDisconnected, EventConnect)
	require.NoError(t, err)
	require.Equal(t, StateConnected, next)

	next, err = Transition(next, EventDisconnect)
	require.NoError(t, err)
	require.Equal(t, StateDisconnected, next)
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "disconnected disconnect invalid", state: StateDisconnected, event: EventDisconnect, want: StateDisconnected, wantErr: true},
		{name: "connected connect invalid", state: StateConnected, event: EventConnect, want: StateConnected, wantErr: true},
		{name: "disconnected connect valid", state: StateDisconnected, event: EventConnect, want: StateConnected, wantErr: false},
		{name: "connected disconnect valid", state: StateConnected, event: EventDisconnect, want: StateDisconnected, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventConnect)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}
