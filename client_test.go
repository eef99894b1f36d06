package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServerAddress = ""
	_, err := New(cfg)
	require.Error(t, err)
}

func TestNewBuildsClientWithoutConnecting(t *testing.T) {
	cfg := DefaultConfig()
	c, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, c)
	t.Cleanup(func() { _ = c.Close() })

	assert.False(t, c.IsConnected())
	assert.NotNil(t, c.Registry)
	assert.NotNil(t, c.ConfigCenter)
}

func TestCloseBeforeConnectIsSafe(t *testing.T) {
	cfg := DefaultConfig()
	c, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

func TestLastErrorIsNilBeforeAnyReconnectAttempt(t *testing.T) {
	cfg := DefaultConfig()
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.NoError(t, c.LastError())
}
