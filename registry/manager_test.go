package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	clienterrors "github.com/fluxsce/flux-service-center-client/errs"
	"github.com/fluxsce/flux-service-center-client/internal/wire"
)

func newTestManager() *Manager {
	return NewManager(Config{
		Logger:           zap.NewNop(),
		DefaultNamespace: "public",
		DefaultGroup:     "DEFAULT_GROUP",
	})
}

func TestRegisterServiceRequiresName(t *testing.T) {
	m := newTestManager()
	_, err := m.RegisterService(context.Background(), Service{}, nil)
	require.Error(t, err)
	var clientErr *clienterrors.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, clienterrors.KindInvalidArgument, clientErr.Kind())
}

func TestRegisterServiceFailsWithoutStream(t *testing.T) {
	m := newTestManager()
	_, err := m.RegisterService(context.Background(), Service{ServiceName: "orders"}, nil)
	require.Error(t, err)
	var clientErr *clienterrors.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, clienterrors.KindInvalidState, clientErr.Kind())
}

func TestRegisterServiceWithNodeValidatesNode(t *testing.T) {
	m := newTestManager()
	_, err := m.RegisterService(context.Background(), Service{ServiceName: "orders"}, &Node{IP: "10.0.0.1", Port: 70000})
	require.Error(t, err)
	var clientErr *clienterrors.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, clienterrors.KindInvalidArgument, clientErr.Kind())
}

func TestGetServiceRequiresName(t *testing.T) {
	m := newTestManager()
	_, _, err := m.GetService(context.Background(), "", "", "")
	require.Error(t, err)
	var clientErr *clienterrors.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, clienterrors.KindInvalidArgument, clientErr.Kind())
}

func TestUnregisterServiceWithNodeIDDelegatesToUnregisterNode(t *testing.T) {
	m := newTestManager()
	err := m.UnregisterService(context.Background(), "", "", "orders", "missing-node")
	require.Error(t, err)
	var clientErr *clienterrors.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, clienterrors.KindInvalidArgument, clientErr.Kind())
}

func TestSendHeartbeatRequiresRegisteredNode(t *testing.T) {
	m := newTestManager()
	err := m.SendHeartbeat(context.Background(), "does-not-exist")
	require.Error(t, err)
	var clientErr *clienterrors.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, clienterrors.KindInvalidArgument, clientErr.Kind())
}

func TestFromWireServiceChangeTypeFallsBackToUpdated(t *testing.T) {
	assert.Equal(t, ServiceChangeAdded, fromWireServiceChangeType(wire.ServiceChangeAdded))
	assert.Equal(t, NodeAdded, fromWireServiceChangeType(wire.NodeAdded))
	assert.Equal(t, ServiceChangeUpdated, fromWireServiceChangeType(wire.ServiceChangeEventType("SOMETHING_NEW")))
}

func TestCloseIsANoopWithNoTrackedState(t *testing.T) {
	m := newTestManager()
	assert.NoError(t, m.Close(context.Background()))
}

func TestRegisterNodeValidation(t *testing.T) {
	tests := []struct {
		name string
		node Node
	}{
		{"missing service name", Node{IP: "10.0.0.1", Port: 8080}},
		{"missing ip", Node{ServiceName: "orders", Port: 8080}},
		{"port too low", Node{ServiceName: "orders", IP: "10.0.0.1", Port: 0}},
		{"port too high", Node{ServiceName: "orders", IP: "10.0.0.1", Port: 70000}},
		{"weight too low", Node{ServiceName: "orders", IP: "10.0.0.1", Port: 8080, Weight: 0.001}},
		{"weight too high", Node{ServiceName: "orders", IP: "10.0.0.1", Port: 8080, Weight: 20000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager()
			_, err := m.RegisterNode(context.Background(), tt.node)
			require.Error(t, err)
			var clientErr *clienterrors.Error
			require.ErrorAs(t, err, &clientErr)
			assert.Equal(t, clienterrors.KindInvalidArgument, clientErr.Kind())
		})
	}
}

func TestRegisterNodeFailsWithoutStream(t *testing.T) {
	m := newTestManager()
	_, err := m.RegisterNode(context.Background(), Node{
		ServiceName: "orders",
		IP:          "10.0.0.1",
		Port:        8080,
	})
	require.Error(t, err)
	var clientErr *clienterrors.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, clienterrors.KindInvalidState, clientErr.Kind())
}

func TestDiscoverNodesRequiresServiceName(t *testing.T) {
	m := newTestManager()
	_, err := m.DiscoverNodes(context.Background(), "", "", "", false)
	require.Error(t, err)
	var clientErr *clienterrors.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, clienterrors.KindInvalidArgument, clientErr.Kind())
}

func TestSubscribeValidation(t *testing.T) {
	m := newTestManager()

	// Empty serviceNames is a valid namespace-wide subscription: it passes
	// validation and only fails here because no stream is attached.
	_, err := m.Subscribe(context.Background(), "", "", nil, func(ServiceChangeEvent) {})
	require.Error(t, err)
	var clientErr *clienterrors.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, clienterrors.KindInvalidState, clientErr.Kind())

	_, err = m.Subscribe(context.Background(), "", "", []string{"orders"}, nil)
	require.Error(t, err)
}

func TestUnsubscribeUnknownIDIsANoop(t *testing.T) {
	m := newTestManager()
	assert.NotPanics(t, func() { m.Unsubscribe("does-not-exist") })
}

func TestHandlePushIgnoresUnrelatedMessages(t *testing.T) {
	m := newTestManager()
	assert.False(t, m.HandlePush(&wire.ServerMessage{Type: wire.ServerPong}))
}

func TestNodeApplyDefaults(t *testing.T) {
	n := Node{ServiceName: "orders", IP: "10.0.0.1", Port: 8080}
	n.applyDefaults()
	assert.Equal(t, DefaultWeight, n.Weight)
	assert.Equal(t, InstanceUp, n.InstanceStatus)
	assert.Equal(t, HealthyStatusHealthy, n.HealthyStatus)
}
