package registry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fluxsce/flux-service-center-client/internal/reconnect"
	"github.com/fluxsce/flux-service-center-client/internal/transport"
	"github.com/fluxsce/flux-service-center-client/internal/wire"
)

// runHeartbeat sends a HEARTBEAT for nodeID every heartbeatInterval
// until ctx is cancelled (by UnregisterNode, or by the Manager being
// torn down). One goroutine per registered node, matching spec.md
// §5's "scheduled executor... per registered node" sizing note
// realized with plain goroutines since Go has no distinct thread-pool
// primitive.
func (m *Manager) runHeartbeat(ctx context.Context, nodeID string) {
	ticker := time.NewTicker(m.heartbeatIntervalOrDefault())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.nodesMu.Lock()
			entry, ok := m.nodes[nodeID]
			m.nodesMu.Unlock()
			if !ok {
				return
			}
			if err := m.sendHeartbeatOnce(ctx, entry.registered.Node); err != nil {
				m.logger.Warn("heartbeat send failed", zap.String("nodeId", nodeID), zap.Error(err))
			}
		}
	}
}

// sendHeartbeatOnce sends one heartbeat carrying node's full service
// context (spec.md §4.3 step 2), so the server can rehydrate the node
// from the message alone if it has lost track of it. A gRPC status
// code the transport layer considers fatal (connection rejected or
// dropped outright, spec.md §4.3 step 3) marks the session disconnected
// and asks the reconnect engine to run, rather than just logging.
func (m *Manager) sendHeartbeatOnce(ctx context.Context, node Node) error {
	req := &wire.ClientMessage{
		Type: wire.ClientHeartbeat,
		Heartbeat: &wire.HeartbeatRequest{
			NodeID:      node.NodeID,
			NamespaceID: node.NamespaceID,
			GroupName:   node.GroupName,
			ServiceName: node.ServiceName,
			Node:        toWireNode(node),
		},
	}

	_, err := m.call(ctx, req)
	if err != nil {
		if transport.IsFatalHeartbeatError(err) && m.session != nil {
			m.session.MarkDisconnected()
			if m.engine != nil {
				m.engine.Trigger(reconnect.TriggerHeartbeatFailure)
			}
		}
		return err
	}
	m.touchHeartbeat(node.NodeID)
	return nil
}

func (m *Manager) touchHeartbeat(nodeID string) {
	m.nodesMu.Lock()
	defer m.nodesMu.Unlock()
	if entry, ok := m.nodes[nodeID]; ok {
		entry.registered.LastHeartbeat = time.Now()
	}
}

func (m *Manager) heartbeatIntervalOrDefault() time.Duration {
	if m.heartbeatInterval > 0 {
		return m.heartbeatInterval
	}
	return 5 * time.Second
}
