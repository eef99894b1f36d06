package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionStartsDisconnected(t *testing.T) {
	s := NewSession(Options{Addresses: []string{"127.0.0.1:9848"}})
	assert.Equal(t, StateDisconnected, s.State())
	assert.False(t, s.IsConnected())
	assert.Nil(t, s.Conn())
	assert.Equal(t, "", s.ConnectionID())
}

func TestMarkDisconnectedTransitionsToReconnecting(t *testing.T) {
	s := NewSession(Options{Addresses: []string{"127.0.0.1:9848"}})
	s.state.Store(int32(StateConnected))

	s.MarkDisconnected()
	assert.Equal(t, StateReconnecting, s.State())
}

func TestMarkDisconnectedIsANoopOnceClosed(t *testing.T) {
	s := NewSession(Options{Addresses: []string{"127.0.0.1:9848"}})
	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())

	s.MarkDisconnected()
	assert.Equal(t, StateClosed, s.State())
}

func TestConnectFailsAfterClose(t *testing.T) {
	s := NewSession(Options{Addresses: []string{"127.0.0.1:9848"}})
	require.NoError(t, s.Close())

	err := s.Connect(t.Context())
	require.Error(t, err)
}

func TestMarkFailedTransitionsFromAnyNonTerminalState(t *testing.T) {
	s := NewSession(Options{Addresses: []string{"127.0.0.1:9848"}})
	s.state.Store(int32(StateReconnecting))

	s.MarkFailed()
	assert.Equal(t, StateFailed, s.State())
}

func TestMarkFailedIsANoopOnceClosed(t *testing.T) {
	s := NewSession(Options{Addresses: []string{"127.0.0.1:9848"}})
	require.NoError(t, s.Close())

	s.MarkFailed()
	assert.Equal(t, StateClosed, s.State())
}

func TestMarkDisconnectedInvokesOnTransportDownOnce(t *testing.T) {
	var calls int
	s := NewSession(Options{
		Addresses:       []string{"127.0.0.1:9848"},
		OnTransportDown: func() { calls++ },
	})
	s.state.Store(int32(StateConnected))

	s.MarkDisconnected()
	s.MarkDisconnected()

	assert.Equal(t, StateReconnecting, s.State())
	assert.Equal(t, 1, calls)
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateDisconnected: "DISCONNECTED",
		StateHandshaking:  "HANDSHAKING",
		StateConnected:    "CONNECTED",
		StateReconnecting: "RECONNECTING",
		StateFailed:       "FAILED",
		StateClosed:       "CLOSED",
		State(99):         "UNKNOWN",
	}
	for state, want := range tests {
		assert.Equal(t, want, state.String())
	}
}
