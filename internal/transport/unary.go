package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxsce/flux-service-center-client/internal/wire"
)

const unaryMethod = "/servicecenter.Gateway/Call"

// Invoke sends a single ClientMessage as a plain gRPC unary call and
// returns the matching ServerMessage. Each call gets its own deadline,
// computed here rather than at Session construction (spec.md §4.1: a
// deadline is "never computed at stub creation").
func (s *Session) Invoke(ctx context.Context, req *wire.ClientMessage, timeout time.Duration) (*wire.ServerMessage, error) {
	conn := s.Conn()
	if conn == nil {
		return nil, fmt.Errorf("transport: not connected")
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp := new(wire.ServerMessage)
	if err := conn.Invoke(ctx, unaryMethod, req, resp); err != nil {
		return nil, fmt.Errorf("transport: invoke %s: %w", req.Type, err)
	}
	return resp, nil
}
