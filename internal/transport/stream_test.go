package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"

	"github.com/fluxsce/flux-service-center-client/internal/wire"
	"github.com/fluxsce/flux-service-center-client/internal/workerpool"
)

// fakeClientStream is a minimal grpc.ClientStream double driven entirely
// in-process: SendMsg records outgoing ClientMessages, and a test feeds
// ServerMessages back through recv for RecvMsg/dispatch to pick up. It
// lets stream.go's multiplexing logic (pending-table routing, push
// handoff, drain-on-close) be exercised without a real network or a
// bufconn-backed fake gateway.
type fakeClientStream struct {
	mu   sync.Mutex
	sent []*wire.ClientMessage

	recv   chan *wire.ServerMessage
	closed chan struct{}
}

func newFakeClientStream() *fakeClientStream {
	return &fakeClientStream{
		recv:   make(chan *wire.ServerMessage, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeClientStream) SendMsg(m any) error {
	req, ok := m.(*wire.ClientMessage)
	if !ok {
		return fmt.Errorf("fakeClientStream: unexpected send type %T", m)
	}
	f.mu.Lock()
	f.sent = append(f.sent, req)
	f.mu.Unlock()
	return nil
}

func (f *fakeClientStream) RecvMsg(m any) error {
	resp, ok := m.(*wire.ServerMessage)
	if !ok {
		return fmt.Errorf("fakeClientStream: unexpected recv type %T", m)
	}
	select {
	case msg, ok := <-f.recv:
		if !ok {
			return io.EOF
		}
		*resp = *msg
		return nil
	case <-f.closed:
		return io.EOF
	}
}

func (f *fakeClientStream) push(msg *wire.ServerMessage) { f.recv <- msg }

func (f *fakeClientStream) Header() (metadata.MD, error) { return nil, nil }
func (f *fakeClientStream) Trailer() metadata.MD          { return nil }
func (f *fakeClientStream) CloseSend() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}
func (f *fakeClientStream) Context() context.Context { return context.Background() }

func (f *fakeClientStream) sentMessages() []*wire.ClientMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*wire.ClientMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func newTestMux(t *testing.T, fake *fakeClientStream, onPush PushHandler) *StreamMux {
	t.Helper()
	pool := workerpool.New(2, 8)
	t.Cleanup(pool.Close)

	mux := &StreamMux{
		pool:    pool,
		onPush:  onPush,
		logger:  zap.NewNop(),
		stream:  fake,
		pending: make(map[string]chan *wire.ServerMessage),
		done:    make(chan struct{}),
	}
	go mux.dispatch()
	t.Cleanup(func() { _ = fake.CloseSend() })
	return mux
}

func TestCallMatchesResponseByRequestID(t *testing.T) {
	fake := newFakeClientStream()
	mux := newTestMux(t, fake, nil)

	req := &wire.ClientMessage{RequestID: "req-1", Type: wire.ClientGetConfig}

	errCh := make(chan error, 1)
	var resp *wire.ServerMessage
	go func() {
		var err error
		resp, err = mux.Call(context.Background(), req)
		errCh <- err
	}()

	// Wait for the request to actually be sent before answering it.
	require.Eventually(t, func() bool { return len(fake.sentMessages()) == 1 }, time.Second, time.Millisecond)
	fake.push(&wire.ServerMessage{RequestID: "req-1", Success: true, Type: wire.ServerGetConfig})

	require.NoError(t, <-errCh)
	assert.Equal(t, "req-1", resp.RequestID)
}

func TestCallReturnsErrorOnContextCancel(t *testing.T) {
	fake := newFakeClientStream()
	mux := newTestMux(t, fake, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := mux.Call(ctx, &wire.ClientMessage{RequestID: "req-timeout"})
	require.Error(t, err)
}

func TestUnmatchedMessageGoesToPushHandler(t *testing.T) {
	received := make(chan *wire.ServerMessage, 1)
	fake := newFakeClientStream()
	mux := newTestMux(t, fake, func(msg *wire.ServerMessage) {
		received <- msg
	})

	fake.push(&wire.ServerMessage{Type: wire.ServerServiceChange, ServiceChange: &wire.ServiceChangeEvent{SubscriptionID: "sub-1"}})

	select {
	case msg := <-received:
		assert.Equal(t, "sub-1", msg.ServiceChange.SubscriptionID)
	case <-time.After(time.Second):
		t.Fatal("push handler was never invoked")
	}
}

func TestSendDoesNotWaitForResponse(t *testing.T) {
	fake := newFakeClientStream()
	mux := newTestMux(t, fake, nil)

	require.NoError(t, mux.Send(&wire.ClientMessage{Type: wire.ClientHeartbeat}))
	require.Eventually(t, func() bool { return len(fake.sentMessages()) == 1 }, time.Second, time.Millisecond)
}

func TestClosePendingCallsFailWhenStreamCloses(t *testing.T) {
	fake := newFakeClientStream()
	mux := newTestMux(t, fake, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := mux.Call(context.Background(), &wire.ClientMessage{RequestID: "req-close"})
		errCh <- err
	}()

	require.Eventually(t, func() bool { return len(fake.sentMessages()) == 1 }, time.Second, time.Millisecond)
	require.NoError(t, mux.Close())

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("pending call was never unblocked after Close")
	}
}
