package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithZeroValueConfig(t *testing.T) {
	logger := New(Config{})
	require.NotNil(t, logger)
	logger.Info("hello")
}

func TestNewWritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "client.log")

	logger := New(Config{OutputPath: path, Level: "debug"})
	logger.Info("hello from test")
	require.NoError(t, logger.Sync())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	logger := New(Config{Level: "not-a-level"})
	require.NotNil(t, logger)
}

func TestNop(t *testing.T) {
	assert.NotNil(t, Nop())
}
