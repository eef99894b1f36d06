package client

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fluxsce/flux-service-center-client/internal/clusteraddr"
	"github.com/fluxsce/flux-service-center-client/internal/logging"
)

// ClientConfig configures a Client. Construct one with DefaultConfig
// and apply Option values, or load one from YAML with LoadFromFile —
// both paths validate identically before a Client is built.
type ClientConfig struct {
	// ServerAddress is a comma-separated "host:port" list. Multiple
	// entries enable client-side round-robin load balancing.
	ServerAddress string `yaml:"serverAddress"`

	// NamespaceID and GroupName are the defaults substituted whenever
	// an operation omits them, mirroring getDefaultGroup()'s fallback.
	NamespaceID string `yaml:"namespaceId"`
	GroupName   string `yaml:"groupName"`

	// Username/Password select Basic auth; AccessKey/SecretKey select
	// Bearer-style token auth. When both pairs are set,
	// Username/Password takes precedence.
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
	AccessKey string `yaml:"accessKey,omitempty"`
	SecretKey string `yaml:"secretKey,omitempty"`

	// ConnectTimeout bounds the initial handshake.
	ConnectTimeout time.Duration `yaml:"connectTimeout,omitempty"`
	// RequestTimeout bounds every Registry/ConfigCenter request, in
	// stream and unary mode alike; an earlier deadline on the caller's
	// context still applies.
	RequestTimeout time.Duration `yaml:"requestTimeout,omitempty"`
	// HeartbeatInterval paces the per-node heartbeat loop.
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval,omitempty"`
	// ReconnectInterval is the reconnect engine's initial backoff; it
	// doubles up to ReconnectMaxInterval.
	ReconnectInterval    time.Duration `yaml:"reconnectInterval,omitempty"`
	ReconnectMaxInterval time.Duration `yaml:"reconnectMaxInterval,omitempty"`
	// MaxReconnectAttempts caps consecutive reconnect failures before
	// the session transitions to FAILED; negative means retry forever.
	MaxReconnectAttempts int `yaml:"maxReconnectAttempts"`

	// TransportMode selects which of spec.md §4.1's two carrier
	// architectures Registry/ConfigCenter requests ride on: "stream"
	// (default) multiplexes every request over the shared bidirectional
	// stream; "unary" sends each one as its own gRPC call. Push events
	// always travel the shared stream either way.
	TransportMode string `yaml:"transportMode,omitempty"`

	// KeepAliveTime/KeepAliveTimeout/KeepAliveWithoutCalls feed
	// grpc/keepalive.ClientParameters directly.
	KeepAliveTime         time.Duration `yaml:"keepAliveTime,omitempty"`
	KeepAliveTimeout      time.Duration `yaml:"keepAliveTimeout,omitempty"`
	KeepAliveWithoutCalls bool          `yaml:"keepAliveWithoutCalls,omitempty"`

	// MaxInboundMessageSize caps a single received message, in bytes.
	MaxInboundMessageSize int `yaml:"maxInboundMessageSize,omitempty"`

	// WorkerPoolMaxSize (worker count) and WorkerPoolQueueSize (queue
	// depth) size the bounded pool that dispatches subscription/watch
	// listener callbacks. WorkerPoolCoreSize is validated (>= 1, <=
	// WorkerPoolMaxSize) but does not change the pool's size.
	WorkerPoolCoreSize  int `yaml:"workerPoolCoreSize,omitempty"`
	WorkerPoolMaxSize   int `yaml:"workerPoolMaxSize,omitempty"`
	WorkerPoolQueueSize int `yaml:"workerPoolQueueSize,omitempty"`

	// EnableTLS switches from insecure.NewCredentials() to
	// credentials.NewTLS. TLSCAPath enables self-signed trust;
	// TLSCertPath+TLSKeyPath enable mutual TLS.
	EnableTLS    bool   `yaml:"enableTLS,omitempty"`
	TLSCAPath    string `yaml:"tlsCaPath,omitempty"`
	TLSCertPath  string `yaml:"tlsCertPath,omitempty"`
	TLSKeyPath   string `yaml:"tlsKeyPath,omitempty"`
	TLSServerName string `yaml:"tlsServerName,omitempty"`

	// Logger, when nil, defaults to logging.New(logging.Config{}).
	Logger *logging.Config `yaml:"logger,omitempty"`
}

// Option mutates a ClientConfig at construction time.
type Option func(*ClientConfig)

// WithServerAddress sets a comma-separated "host:port" list.
func WithServerAddress(addr string) Option {
	return func(c *ClientConfig) { c.ServerAddress = addr }
}

// WithNamespace sets the default namespace/group substituted when an
// operation omits them.
func WithNamespace(namespaceID, groupName string) Option {
	return func(c *ClientConfig) {
		c.NamespaceID = namespaceID
		c.GroupName = groupName
	}
}

// WithBasicAuth sets username/password credentials.
func WithBasicAuth(username, password string) Option {
	return func(c *ClientConfig) {
		c.Username = username
		c.Password = password
	}
}

// WithTokenAuth sets access-key/secret-key credentials.
func WithTokenAuth(accessKey, secretKey string) Option {
	return func(c *ClientConfig) {
		c.AccessKey = accessKey
		c.SecretKey = secretKey
	}
}

// WithTLS enables TLS. caPath may be empty to rely on the system trust
// store; certPath/keyPath may both be empty to skip mutual TLS.
func WithTLS(caPath, certPath, keyPath string) Option {
	return func(c *ClientConfig) {
		c.EnableTLS = true
		c.TLSCAPath = caPath
		c.TLSCertPath = certPath
		c.TLSKeyPath = keyPath
	}
}

// WithTimeouts overrides the connect and per-call request timeouts.
func WithTimeouts(connect, request time.Duration) Option {
	return func(c *ClientConfig) {
		c.ConnectTimeout = connect
		c.RequestTimeout = request
	}
}

// WithLogger overrides the logging configuration.
func WithLogger(cfg logging.Config) Option {
	return func(c *ClientConfig) { c.Logger = &cfg }
}

// WithMaxReconnectAttempts overrides how many consecutive reconnect
// failures the engine tolerates before giving up; negative means retry
// forever.
func WithMaxReconnectAttempts(attempts int) Option {
	return func(c *ClientConfig) { c.MaxReconnectAttempts = attempts }
}

// WithTransportMode selects "stream" (default) or "unary" as the
// carrier for Registry/ConfigCenter requests.
func WithTransportMode(mode string) Option {
	return func(c *ClientConfig) { c.TransportMode = mode }
}

// DefaultConfig returns a ClientConfig with every optional field set
// to its documented default, mirroring the teacher's DefaultConfig()
// in pkg/plugin/nacos/config.go.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		ServerAddress:         "127.0.0.1:9848",
		NamespaceID:           "public",
		GroupName:             "DEFAULT_GROUP",
		ConnectTimeout:        5 * time.Second,
		RequestTimeout:        5 * time.Second,
		HeartbeatInterval:     5 * time.Second,
		ReconnectInterval:     1 * time.Second,
		ReconnectMaxInterval:  30 * time.Second,
		MaxReconnectAttempts:  10,
		KeepAliveTime:         30 * time.Second,
		KeepAliveTimeout:      10 * time.Second,
		KeepAliveWithoutCalls: true,
		MaxInboundMessageSize: 4 * 1024 * 1024,
		WorkerPoolCoreSize:    2,
		WorkerPoolMaxSize:     16,
		WorkerPoolQueueSize:   256,
	}
}

// NewConfig builds a ClientConfig from DefaultConfig with opts applied
// and validated.
func NewConfig(opts ...Option) (*ClientConfig, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads a YAML file into a ClientConfig seeded from
// DefaultConfig, so a partial file only overrides what it names.
func LoadFromFile(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and cross-field consistency, mirroring
// pkg/plugin/nacos/config.go's Validate: required fields, numeric
// ranges, and pairing rules for credential fields.
func (c *ClientConfig) Validate() error {
	if c == nil {
		return invalidArgument("config must not be nil")
	}
	if c.ServerAddress == "" {
		return invalidArgument("serverAddress is required")
	}
	if _, err := clusteraddr.Parse(c.ServerAddress); err != nil {
		return invalidArgument("serverAddress: %v", err)
	}
	if c.ConnectTimeout <= 0 {
		return invalidArgument("connectTimeout must be positive")
	}
	if c.RequestTimeout <= 0 {
		return invalidArgument("requestTimeout must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return invalidArgument("heartbeatInterval must be positive")
	}
	if c.ReconnectInterval <= 0 {
		return invalidArgument("reconnectInterval must be positive")
	}
	if c.ReconnectMaxInterval < c.ReconnectInterval {
		return invalidArgument("reconnectMaxInterval must be >= reconnectInterval")
	}
	if c.WorkerPoolCoreSize < 1 {
		return invalidArgument("workerPoolCoreSize must be >= 1")
	}
	if c.WorkerPoolMaxSize < c.WorkerPoolCoreSize {
		return invalidArgument("workerPoolMaxSize must be >= workerPoolCoreSize")
	}
	if c.WorkerPoolQueueSize < 1 {
		return invalidArgument("workerPoolQueueSize must be >= 1")
	}
	if (c.Username == "") != (c.Password == "") {
		return invalidArgument("username and password must be set together")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return invalidArgument("accessKey and secretKey must be set together")
	}
	if c.EnableTLS {
		if (c.TLSCertPath == "") != (c.TLSKeyPath == "") {
			return invalidArgument("tlsCertPath and tlsKeyPath must be set together")
		}
	}
	switch c.TransportMode {
	case "", "stream", "unary":
	default:
		return invalidArgument("transportMode must be %q, %q, or empty, got %q", "stream", "unary", c.TransportMode)
	}
	return nil
}
