package transport

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fluxsce/flux-service-center-client/internal/wire"
)

// Ping sends a PING and returns the observed round-trip time. A
// non-nil error from a fatal gRPC status (DEADLINE_EXCEEDED,
// UNAVAILABLE, UNAUTHENTICATED, ABORTED, CANCELLED) should drive the
// caller to invoke MarkDisconnected.
func (s *Session) Ping(ctx context.Context, timeout time.Duration) (time.Duration, error) {
	sent := time.Now()
	req := &wire.ClientMessage{
		ClientID: s.opts.ClientID,
		Type:     wire.ClientPing,
	}
	_, err := s.Invoke(ctx, req, timeout)
	if err != nil {
		return 0, err
	}
	return time.Since(sent), nil
}

// RunKeepalive pings every interval until ctx is cancelled, logging
// each round trip at debug level and marking the session disconnected
// on a failed ping. It is meant to run in its own goroutine for the
// lifetime of the session.
func (s *Session) RunKeepalive(ctx context.Context, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.IsConnected() {
				continue
			}
			rtt, err := s.Ping(ctx, timeout)
			if err != nil {
				s.logger.Warn("keepalive ping failed", zap.Error(err))
				s.MarkDisconnected()
				continue
			}
			s.logger.Debug("keepalive ping ok", zap.Duration("rtt", rtt))
		}
	}
}
