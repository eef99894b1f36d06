package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "public", cfg.NamespaceID)
	assert.Equal(t, "DEFAULT_GROUP", cfg.GroupName)
}

func TestNewConfigAppliesOptions(t *testing.T) {
	cfg, err := NewConfig(
		WithServerAddress("10.0.0.1:9848,10.0.0.2:9848"),
		WithNamespace("ns-1", "group-1"),
		WithBasicAuth("admin", "secret"),
		WithTimeouts(2*time.Second, 3*time.Second),
	)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:9848,10.0.0.2:9848", cfg.ServerAddress)
	assert.Equal(t, "ns-1", cfg.NamespaceID)
	assert.Equal(t, "group-1", cfg.GroupName)
	assert.Equal(t, "admin", cfg.Username)
	assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
}

func TestValidateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ClientConfig)
	}{
		{"empty server address", func(c *ClientConfig) { c.ServerAddress = "" }},
		{"unparsable server address", func(c *ClientConfig) { c.ServerAddress = "not-an-address" }},
		{"zero connect timeout", func(c *ClientConfig) { c.ConnectTimeout = 0 }},
		{"zero heartbeat interval", func(c *ClientConfig) { c.HeartbeatInterval = 0 }},
		{"reconnect max below initial", func(c *ClientConfig) {
			c.ReconnectInterval = 10 * time.Second
			c.ReconnectMaxInterval = 1 * time.Second
		}},
		{"worker pool max below core", func(c *ClientConfig) {
			c.WorkerPoolCoreSize = 10
			c.WorkerPoolMaxSize = 2
		}},
		{"username without password", func(c *ClientConfig) { c.Username = "admin" }},
		{"accessKey without secretKey", func(c *ClientConfig) { c.AccessKey = "ak" }},
		{"tls cert without key", func(c *ClientConfig) {
			c.EnableTLS = true
			c.TLSCertPath = "cert.pem"
		}},
		{"unrecognized transport mode", func(c *ClientConfig) { c.TransportMode = "carrier-pigeon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var clientErr *Error
			require.ErrorAs(t, err, &clientErr)
			assert.Equal(t, KindInvalidArgument, clientErr.Kind())
		})
	}
}

func TestLoadFromFileAppliesDefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	content := "serverAddress: \"cluster-a:9848,cluster-b:9848\"\nnamespaceId: \"tenant-1\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cluster-a:9848,cluster-b:9848", cfg.ServerAddress)
	assert.Equal(t, "tenant-1", cfg.NamespaceID)
	assert.Equal(t, "DEFAULT_GROUP", cfg.GroupName)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
}

func TestLoadFromFileMissingPath(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestWithMaxReconnectAttemptsAndTransportMode(t *testing.T) {
	cfg, err := NewConfig(
		WithMaxReconnectAttempts(-1),
		WithTransportMode("unary"),
	)
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.MaxReconnectAttempts)
	assert.Equal(t, "unary", cfg.TransportMode)
}

func TestDefaultConfigCapsReconnectAttemptsAtTen(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10, cfg.MaxReconnectAttempts)
}
