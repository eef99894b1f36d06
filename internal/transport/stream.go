package transport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fluxsce/flux-service-center-client/internal/wire"
	"github.com/fluxsce/flux-service-center-client/internal/workerpool"
)

const streamMethod = "/servicecenter.Gateway/Stream"

var streamDesc = &grpc.StreamDesc{
	StreamName:    "Stream",
	ClientStreams: true,
	ServerStreams: true,
}

// PushHandler receives a server message that carries no matching
// pending request — subscription/watch events and close
// notifications. It is normally invoked on a worker-pool goroutine so
// a slow handler does not stall Recv; when the pool's queue is full,
// the pool's caller-runs policy runs it inline on the dispatcher
// goroutine.
type PushHandler func(*wire.ServerMessage)

// StreamMux multiplexes one bidirectional gRPC stream across many
// logical request/response pairs plus asynchronous push events,
// exactly the shape spec.md §4.2 describes: a pending-request table
// guarded by its own lock, a single dispatcher goroutine, and listener
// invocation handed off to a bounded worker pool.
type StreamMux struct {
	session *Session
	pool    *workerpool.Pool
	onPush  PushHandler
	logger  *zap.Logger

	sendMu sync.Mutex
	stream grpc.ClientStream

	pendingMu sync.Mutex
	pending   map[string]chan *wire.ServerMessage

	done chan struct{}
}

// NewStreamMux opens the bidi stream on session's channel. onPush is
// invoked for every server message without a matching pending request.
func NewStreamMux(ctx context.Context, session *Session, pool *workerpool.Pool, onPush PushHandler) (*StreamMux, error) {
	conn := session.Conn()
	if conn == nil {
		return nil, fmt.Errorf("transport: not connected")
	}

	stream, err := conn.NewStream(ctx, streamDesc, streamMethod)
	if err != nil {
		return nil, fmt.Errorf("transport: open stream: %w", err)
	}

	mux := &StreamMux{
		session: session,
		pool:    pool,
		onPush:  onPush,
		logger:  session.logger,
		stream:  stream,
		pending: make(map[string]chan *wire.ServerMessage),
		done:    make(chan struct{}),
	}

	go mux.dispatch()
	return mux, nil
}

// Call sends req (assigning a RequestID if unset) and blocks for the
// matching response, or until ctx is cancelled.
func (m *StreamMux) Call(ctx context.Context, req *wire.ClientMessage) (*wire.ServerMessage, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	ch := make(chan *wire.ServerMessage, 1)
	m.pendingMu.Lock()
	m.pending[req.RequestID] = ch
	m.pendingMu.Unlock()

	defer func() {
		m.pendingMu.Lock()
		delete(m.pending, req.RequestID)
		m.pendingMu.Unlock()
	}()

	if err := m.send(req); err != nil {
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return nil, fmt.Errorf("transport: stream closed before response")
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, fmt.Errorf("transport: stream closed")
	}
}

// Send fires req without waiting for a response, for messages whose
// reply (if any) the caller does not need.
func (m *StreamMux) Send(req *wire.ClientMessage) error {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	return m.send(req)
}

func (m *StreamMux) send(req *wire.ClientMessage) error {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()
	if err := m.stream.SendMsg(req); err != nil {
		return fmt.Errorf("transport: send %s: %w", req.Type, err)
	}
	return nil
}

// Close half-closes the send side and fails every Call still waiting
// for a response. The dispatcher keeps reading until the server ends
// the stream.
func (m *StreamMux) Close() error {
	select {
	case <-m.done:
		return nil
	default:
		close(m.done)
	}
	return m.stream.CloseSend()
}

func (m *StreamMux) dispatch() {
	for {
		resp := new(wire.ServerMessage)
		err := m.stream.RecvMsg(resp)
		if err != nil {
			if err != io.EOF {
				m.logger.Warn("stream recv failed", zap.Error(err))
				m.session.MarkDisconnected()
			}
			m.drainPending()
			return
		}
		m.route(resp)
	}
}

func (m *StreamMux) route(resp *wire.ServerMessage) {
	m.pendingMu.Lock()
	ch, ok := m.pending[resp.RequestID]
	m.pendingMu.Unlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
		return
	}

	if m.onPush == nil {
		return
	}
	handler := m.onPush
	m.pool.Submit(func() { handler(resp) })
}

func (m *StreamMux) drainPending() {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	for id, ch := range m.pending {
		close(ch)
		delete(m.pending, id)
	}
}
