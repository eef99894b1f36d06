// Package client is the flux-service-center-client SDK: a gRPC client
// for the service-discovery and distributed-configuration control
// plane, speaking this module's own wire protocol
// (internal/wire) over a session it manages end to end (connect,
// heartbeat, reconnect-and-restore, close).
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fluxsce/flux-service-center-client/configcenter"
	"github.com/fluxsce/flux-service-center-client/internal/clusteraddr"
	"github.com/fluxsce/flux-service-center-client/internal/logging"
	"github.com/fluxsce/flux-service-center-client/internal/reconnect"
	"github.com/fluxsce/flux-service-center-client/internal/transport"
	"github.com/fluxsce/flux-service-center-client/internal/wire"
	"github.com/fluxsce/flux-service-center-client/internal/workerpool"
	"github.com/fluxsce/flux-service-center-client/registry"
)

// Client is the top-level facade: Registry and ConfigCenter are the
// two component managers spec.md describes, sharing one Session, one
// StreamMux, and one reconnect Engine.
type Client struct {
	cfg    *ClientConfig
	logger *zap.Logger

	session *transport.Session
	pool    *workerpool.Pool
	engine  *reconnect.Engine

	Registry     *registry.Manager
	ConfigCenter *configcenter.Manager

	mu     sync.Mutex
	stream *transport.StreamMux

	engineCancel context.CancelFunc
	keepaliveCancel context.CancelFunc
}

// New constructs a Client from cfg without connecting. Call Connect to
// open the session.
func New(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, invalidArgument("config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	addrs, err := clusteraddr.Parse(cfg.ServerAddress)
	if err != nil {
		return nil, invalidArgument("%v", err)
	}

	loggerCfg := logging.Config{}
	if cfg.Logger != nil {
		loggerCfg = *cfg.Logger
	}
	logger := logging.New(loggerCfg)

	clientID := uuid.NewString()

	var auth transport.AuthProvider
	switch {
	case cfg.Username != "":
		auth = transport.BasicAuth(cfg.Username, cfg.Password)
	case cfg.AccessKey != "":
		auth = transport.BearerAuth(cfg.AccessKey + ":" + cfg.SecretKey)
	default:
		auth = transport.NoAuth()
	}

	c := &Client{cfg: cfg, logger: logger}

	session := transport.NewSession(transport.Options{
		Addresses:             addrs,
		ConnectTimeout:        cfg.ConnectTimeout,
		KeepAliveTime:         cfg.KeepAliveTime,
		KeepAliveTimeout:      cfg.KeepAliveTimeout,
		KeepAliveWithoutCalls: cfg.KeepAliveWithoutCalls,
		MaxInboundMessageSize: cfg.MaxInboundMessageSize,
		EnableTLS:             cfg.EnableTLS,
		TLSCAPath:             cfg.TLSCAPath,
		TLSCertPath:           cfg.TLSCertPath,
		TLSKeyPath:            cfg.TLSKeyPath,
		TLSServerName:         cfg.TLSServerName,
		Auth:                  auth,
		ClientID:              clientID,
		NamespaceID:            cfg.NamespaceID,
		Logger:                logger,
		OnTransportDown: func() {
			c.engine.Trigger(reconnect.TriggerChannelUnhealthy)
		},
	})
	c.session = session

	// workerpool.New starts every worker goroutine up front — Go has
	// no elastic pool primitive to grow one later — so size it at
	// WorkerPoolMaxSize directly rather than starting at core size.
	c.pool = workerpool.New(cfg.WorkerPoolMaxSize, cfg.WorkerPoolQueueSize)

	c.engine = reconnect.New(logger, c.reconnectTransport, cfg.ReconnectInterval, cfg.ReconnectMaxInterval, cfg.MaxReconnectAttempts)
	c.engine.OnExhausted = func() {
		c.logger.Error("reconnect attempts exhausted, session is now FAILED")
		session.MarkFailed()
	}

	mode := transport.ModeStream
	if cfg.TransportMode == "unary" {
		mode = transport.ModeUnary
	}

	c.Registry = registry.NewManager(registry.Config{
		Engine:            c.engine,
		Session:           session,
		Mode:              mode,
		Logger:            logger,
		DefaultNamespace:  cfg.NamespaceID,
		DefaultGroup:      cfg.GroupName,
		RequestTimeout:    cfg.RequestTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
	})
	c.ConfigCenter = configcenter.NewManager(configcenter.Config{
		Engine:           c.engine,
		Session:          session,
		Mode:             mode,
		Logger:           logger,
		DefaultNamespace: cfg.NamespaceID,
		DefaultGroup:     cfg.GroupName,
		RequestTimeout:   cfg.RequestTimeout,
	})

	return c, nil
}

// Connect dials the cluster, opens the stream multiplexer, and starts
// the keepalive and reconnect-engine goroutines.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.session.Connect(ctx); err != nil {
		return err
	}
	return c.attachStream(ctx)
}

func (c *Client) attachStream(ctx context.Context) error {
	stream, err := transport.NewStreamMux(ctx, c.session, c.pool, c.handlePush)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()

	c.Registry.SetStream(stream)
	c.ConfigCenter.SetStream(stream)

	engineCtx, engineCancel := context.WithCancel(context.Background())
	c.engineCancel = engineCancel
	go c.engine.Run(engineCtx)

	keepaliveCtx, keepaliveCancel := context.WithCancel(context.Background())
	c.keepaliveCancel = keepaliveCancel
	go c.session.RunKeepalive(keepaliveCtx, c.cfg.HeartbeatInterval, c.cfg.RequestTimeout)

	return nil
}

func (c *Client) handlePush(msg *wire.ServerMessage) {
	if c.Registry.HandlePush(msg) {
		return
	}
	if c.ConfigCenter.HandlePush(msg) {
		return
	}
	if msg.Type == wire.ServerCloseNotification {
		reason := ""
		if msg.CloseNotification != nil {
			reason = msg.CloseNotification.Reason
		}
		c.logger.Warn("server closed connection", zap.String("reason", reason))
		c.engine.Trigger(reconnect.TriggerStreamError)
	}
}

// reconnectTransport is the Engine's Reconnect callback: it reopens
// the Session and the stream, so every registered restorer runs
// against a live stream by the time it's invoked.
func (c *Client) reconnectTransport(ctx context.Context) error {
	if err := c.session.Connect(ctx); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	return c.attachStreamLocked(ctx)
}

func (c *Client) attachStreamLocked(ctx context.Context) error {
	stream, err := transport.NewStreamMux(ctx, c.session, c.pool, c.handlePush)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()
	c.Registry.SetStream(stream)
	c.ConfigCenter.SetStream(stream)
	return nil
}

// IsConnected reports whether the session currently believes it has a
// usable channel. Spec.md's Open Question about a dedicated
// checkHealth() RPC is decided here: there is no such server RPC in
// the grounding corpus, so this is the health check, carrying the
// spec's own TODO forward rather than inventing one.
func (c *Client) IsConnected() bool {
	return c.session.IsConnected()
}

// LastError returns the error from the most recent failed reconnect
// attempt, or nil if the last attempt (or no attempt yet) succeeded —
// spec.md §7's getLastError().
func (c *Client) LastError() error {
	return c.engine.LastError()
}

// Close tears the client down in spec.md §5's graceful-shutdown order:
// unregister nodes, cancel heartbeats, cancel subscriptions/watches
// (all via Registry.Close/ConfigCenter.Close), then the stream and
// session, then the reconnect engine and worker pool.
func (c *Client) Close() error {
	if c.engineCancel != nil {
		c.engineCancel()
	}
	if c.keepaliveCancel != nil {
		c.keepaliveCancel()
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Registry.Close(closeCtx); err != nil {
		c.logger.Warn("registry shutdown", zap.Error(err))
	}
	if err := c.ConfigCenter.Close(); err != nil {
		c.logger.Warn("configcenter shutdown", zap.Error(err))
	}

	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream != nil {
		_ = stream.Close()
	}

	err := c.session.Close()
	c.engine.Close()
	c.pool.Close()
	return err
}
