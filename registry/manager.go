package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	clienterrors "github.com/fluxsce/flux-service-center-client/errs"
	"github.com/fluxsce/flux-service-center-client/internal/reconnect"
	"github.com/fluxsce/flux-service-center-client/internal/transport"
	"github.com/fluxsce/flux-service-center-client/internal/wire"
)

// Manager holds registered nodes and service subscriptions. It keeps
// only a non-owning reference to the shared Session/StreamMux and
// reconnect Engine (spec.md §9 downward-only ownership) — the Engine
// never holds a pointer back to Manager; Manager instead publishes
// Restorer closures into it.
type Manager struct {
	streamMu sync.Mutex
	stream   *transport.StreamMux

	session *transport.Session
	mode    transport.Mode

	engine *reconnect.Engine
	logger *zap.Logger

	defaultNamespace  string
	defaultGroup      string
	requestTimeout    time.Duration
	heartbeatInterval time.Duration

	nodesMu sync.Mutex
	nodes   map[string]*nodeEntry

	subsMu sync.Mutex
	subs   map[string]*Subscription
}

type nodeEntry struct {
	registered *RegisteredNode
	cancel     context.CancelFunc
}

// Config collects Manager's construction-time dependencies.
type Config struct {
	Stream  *transport.StreamMux
	Session *transport.Session
	// Mode selects stream or unary transport for this Manager's own
	// requests (spec.md §4.1). Push events always arrive over the
	// shared stream regardless of Mode.
	Mode              transport.Mode
	Engine            *reconnect.Engine
	Logger            *zap.Logger
	DefaultNamespace  string
	DefaultGroup      string
	RequestTimeout    time.Duration
	HeartbeatInterval time.Duration
}

// NewManager constructs a Manager. It does not start any heartbeats
// until RegisterNode is called.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		stream:            cfg.Stream,
		session:           cfg.Session,
		mode:              cfg.Mode,
		engine:            cfg.Engine,
		logger:            logger,
		defaultNamespace:  cfg.DefaultNamespace,
		defaultGroup:      cfg.DefaultGroup,
		requestTimeout:    cfg.RequestTimeout,
		heartbeatInterval: cfg.HeartbeatInterval,
		nodes:             make(map[string]*nodeEntry),
		subs:              make(map[string]*Subscription),
	}
}

// SetStream (re)binds the StreamMux this Manager sends requests on.
// The root Client calls this once after the initial Connect and again
// after every reconnect, before the Engine replays restorers.
func (m *Manager) SetStream(stream *transport.StreamMux) {
	m.streamMu.Lock()
	m.stream = stream
	m.streamMu.Unlock()
}

func (m *Manager) getStream() *transport.StreamMux {
	m.streamMu.Lock()
	defer m.streamMu.Unlock()
	return m.stream
}

func (m *Manager) resolve(namespaceID, groupName string) (string, string) {
	if namespaceID == "" {
		namespaceID = m.defaultNamespace
	}
	if groupName == "" {
		groupName = m.defaultGroup
	}
	return namespaceID, groupName
}

// RegisterService declares service and, when node is non-nil,
// atomically registers that node against it in the same call (spec.md
// §4.3's registerService(service, node?)). It returns the node's
// server-assigned NodeID, or "" if node was nil.
func (m *Manager) RegisterService(ctx context.Context, service Service, node *Node) (string, error) {
	if service.ServiceName == "" {
		return "", clienterrors.InvalidArgument("serviceName is required")
	}
	service.NamespaceID, service.GroupName = m.resolve(service.NamespaceID, service.GroupName)

	req := &wire.ClientMessage{
		Type: wire.ClientRegisterService,
		RegisterService: &wire.RegisterServiceRequest{
			Service: toWireService(service),
		},
	}

	var preparedNode Node
	if node != nil {
		preparedNode = *node
		preparedNode.NamespaceID, preparedNode.GroupName = service.NamespaceID, service.GroupName
		preparedNode.ServiceName = service.ServiceName
		if err := validateNode(preparedNode); err != nil {
			return "", err
		}
		preparedNode.applyDefaults()
		if preparedNode.NodeID == "" {
			preparedNode.NodeID = uuid.NewString()
		}
		wireNode := toWireNode(preparedNode)
		req.RegisterService.Node = &wireNode
	}

	resp, err := m.call(ctx, req)
	if err != nil {
		return "", err
	}

	if node == nil {
		return "", nil
	}

	if resp.RegisterService != nil && resp.RegisterService.NodeID != "" {
		preparedNode.NodeID = resp.RegisterService.NodeID
	}
	m.startTracking(preparedNode)
	m.engine.Register(restorerKey(preparedNode.NodeID), func(ctx context.Context) error {
		return m.registerNodeOnWire(ctx, preparedNode)
	})

	return preparedNode.NodeID, nil
}

// GetService fetches a service's declaration and current node list.
func (m *Manager) GetService(ctx context.Context, namespaceID, groupName, serviceName string) (*Service, []Node, error) {
	if serviceName == "" {
		return nil, nil, clienterrors.InvalidArgument("serviceName is required")
	}
	namespaceID, groupName = m.resolve(namespaceID, groupName)

	req := &wire.ClientMessage{
		Type: wire.ClientGetService,
		GetService: &wire.GetServiceRequest{
			NamespaceID: namespaceID,
			GroupName:   groupName,
			ServiceName: serviceName,
		},
	}
	resp, err := m.call(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if resp.GetService == nil {
		return nil, nil, clienterrors.Server("getService response missing")
	}
	service := fromWireService(resp.GetService.Service)
	return &service, fromWireNodes(resp.GetService.Nodes), nil
}

// UnregisterService removes a service declaration. When nodeID is
// non-empty, only that node is dropped from the service instead of the
// whole declaration (spec.md §4.3).
func (m *Manager) UnregisterService(ctx context.Context, namespaceID, groupName, serviceName, nodeID string) error {
	if serviceName == "" {
		return clienterrors.InvalidArgument("serviceName is required")
	}
	if nodeID != "" {
		return m.UnregisterNode(ctx, nodeID)
	}
	namespaceID, groupName = m.resolve(namespaceID, groupName)

	req := &wire.ClientMessage{
		Type: wire.ClientUnregisterService,
		UnregisterService: &wire.UnregisterServiceRequest{
			NamespaceID: namespaceID,
			GroupName:   groupName,
			ServiceName: serviceName,
		},
	}
	_, err := m.call(ctx, req)
	return err
}

func validateNode(node Node) error {
	if node.ServiceName == "" {
		return clienterrors.InvalidArgument("serviceName is required")
	}
	if node.IP == "" {
		return clienterrors.InvalidArgument("ip is required")
	}
	if node.Port < 1 || node.Port > 65535 {
		return clienterrors.InvalidArgument("port must be 1-65535, got %d", node.Port)
	}
	if node.Weight != 0 && (node.Weight < minWeight || node.Weight > maxWeight) {
		return clienterrors.InvalidArgument("weight must be %.2f-%.0f, got %v", minWeight, maxWeight, node.Weight)
	}
	return nil
}

// RegisterNode registers node, filling in NodeID/Weight/status
// defaults, starts its heartbeat loop, and publishes a Restorer so it
// is re-registered after a reconnect.
func (m *Manager) RegisterNode(ctx context.Context, node Node) (string, error) {
	if err := validateNode(node); err != nil {
		return "", err
	}

	node.NamespaceID, node.GroupName = m.resolve(node.NamespaceID, node.GroupName)
	node.applyDefaults()
	if node.NodeID == "" {
		node.NodeID = uuid.NewString()
	}

	if err := m.registerNodeOnWire(ctx, node); err != nil {
		return "", err
	}

	m.startTracking(node)
	m.engine.Register(restorerKey(node.NodeID), func(ctx context.Context) error {
		return m.registerNodeOnWire(ctx, node)
	})

	return node.NodeID, nil
}

func (m *Manager) registerNodeOnWire(ctx context.Context, node Node) error {
	req := &wire.ClientMessage{
		Type: wire.ClientRegisterNode,
		RegisterNode: &wire.RegisterNodeRequest{
			Node: toWireNode(node),
		},
	}
	_, err := m.call(ctx, req)
	return err
}

func (m *Manager) startTracking(node Node) {
	ctx, cancel := context.WithCancel(context.Background())

	m.nodesMu.Lock()
	if existing, ok := m.nodes[node.NodeID]; ok {
		existing.cancel()
	}
	m.nodes[node.NodeID] = &nodeEntry{
		registered: &RegisteredNode{Node: node, RegisteredAt: time.Now()},
		cancel:     cancel,
	}
	m.nodesMu.Unlock()

	go m.runHeartbeat(ctx, node.NodeID)
}

// UnregisterNode stops the node's heartbeat, removes its restorer, and
// tells the server to drop it.
func (m *Manager) UnregisterNode(ctx context.Context, nodeID string) error {
	entry, ok := m.stopTracking(nodeID)
	if !ok {
		return clienterrors.InvalidArgument("nodeId %q is not registered", nodeID)
	}

	node := entry.registered.Node
	req := &wire.ClientMessage{
		Type: wire.ClientUnregisterNode,
		UnregisterNode: &wire.UnregisterNodeRequest{
			NodeID:      nodeID,
			NamespaceID: node.NamespaceID,
			GroupName:   node.GroupName,
			ServiceName: node.ServiceName,
		},
	}
	_, err := m.call(ctx, req)
	return err
}

func (m *Manager) stopTracking(nodeID string) (*nodeEntry, bool) {
	m.nodesMu.Lock()
	entry, ok := m.nodes[nodeID]
	if ok {
		delete(m.nodes, nodeID)
	}
	m.nodesMu.Unlock()
	if !ok {
		return nil, false
	}
	entry.cancel()
	m.engine.Unregister(restorerKey(nodeID))
	return entry, true
}

// DiscoverNodes returns the current node set for a service.
func (m *Manager) DiscoverNodes(ctx context.Context, namespaceID, groupName, serviceName string, healthyOnly bool) ([]Node, error) {
	if serviceName == "" {
		return nil, clienterrors.InvalidArgument("serviceName is required")
	}
	namespaceID, groupName = m.resolve(namespaceID, groupName)

	req := &wire.ClientMessage{
		Type: wire.ClientDiscoverNodes,
		DiscoverNodes: &wire.DiscoverNodesRequest{
			NamespaceID: namespaceID,
			GroupName:   groupName,
			ServiceName: serviceName,
			HealthyOnly: healthyOnly,
		},
	}
	resp, err := m.call(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.DiscoverNodes == nil {
		return nil, nil
	}
	return fromWireNodes(resp.DiscoverNodes.Nodes), nil
}

// SendHeartbeat manually triggers an immediate heartbeat for nodeID,
// instead of waiting for the next periodic tick.
func (m *Manager) SendHeartbeat(ctx context.Context, nodeID string) error {
	m.nodesMu.Lock()
	entry, ok := m.nodes[nodeID]
	m.nodesMu.Unlock()
	if !ok {
		return clienterrors.InvalidArgument("nodeId %q is not registered", nodeID)
	}
	return m.sendHeartbeatOnce(ctx, entry.registered.Node)
}

// Subscribe registers a Listener for membership changes. When
// serviceNames is empty, it subscribes to every service in
// namespace/group instead of an error (spec.md §4.3's namespace-wide
// subscribe), delivering the server's initial snapshot synchronously
// as a ServiceChangeAdded event before returning.
func (m *Manager) Subscribe(ctx context.Context, namespaceID, groupName string, serviceNames []string, listener Listener) (string, error) {
	if listener == nil {
		return "", clienterrors.InvalidArgument("listener must not be nil")
	}
	namespaceID, groupName = m.resolve(namespaceID, groupName)

	sub := &Subscription{
		NamespaceID:  namespaceID,
		GroupName:    groupName,
		ServiceNames: serviceNames,
		Listener:     listener,
	}

	resp, err := m.call(ctx, subscribeRequest(sub))
	if err != nil {
		return "", err
	}
	if resp.SubscribeAck == nil {
		return "", clienterrors.Server("subscribe ack missing")
	}
	sub.SubscriptionID = resp.SubscribeAck.SubscriptionID

	m.subsMu.Lock()
	m.subs[sub.SubscriptionID] = sub
	m.subsMu.Unlock()

	m.engine.Register(restorerKey(sub.SubscriptionID), func(ctx context.Context) error {
		return m.resubscribe(ctx, sub)
	})

	if len(resp.SubscribeAck.Snapshot) > 0 {
		listener(ServiceChangeEvent{
			EventType:   ServiceChangeAdded,
			NamespaceID: namespaceID,
			GroupName:   groupName,
			Nodes:       fromWireNodes(resp.SubscribeAck.Snapshot),
			Timestamp:   time.Now(),
		})
	}

	return sub.SubscriptionID, nil
}

// subscribeRequest builds the wire request for sub, routing to
// SUBSCRIBE_NAMESPACE when ServiceNames is empty instead of
// SUBSCRIBE_SERVICES.
func subscribeRequest(sub *Subscription) *wire.ClientMessage {
	if len(sub.ServiceNames) == 0 {
		return &wire.ClientMessage{
			Type: wire.ClientSubscribeNamespace,
			SubscribeNamespace: &wire.SubscribeNamespaceRequest{
				NamespaceID: sub.NamespaceID,
				GroupName:   sub.GroupName,
			},
		}
	}
	return &wire.ClientMessage{
		Type: wire.ClientSubscribeServices,
		SubscribeServices: &wire.SubscribeServicesRequest{
			NamespaceID:  sub.NamespaceID,
			GroupName:    sub.GroupName,
			ServiceNames: sub.ServiceNames,
		},
	}
}

func (m *Manager) resubscribe(ctx context.Context, sub *Subscription) error {
	resp, err := m.call(ctx, subscribeRequest(sub))
	if err != nil {
		return err
	}
	if resp.SubscribeAck != nil {
		m.subsMu.Lock()
		sub.SubscriptionID = resp.SubscribeAck.SubscriptionID
		m.subs[sub.SubscriptionID] = sub
		m.subsMu.Unlock()
	}
	return nil
}

// Unsubscribe stops delivering events for subscriptionID.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.subsMu.Lock()
	if sub, ok := m.subs[subscriptionID]; ok {
		// resubscribe also files sub under the server's new id; drop
		// every key that points at it.
		for id, s := range m.subs {
			if s == sub {
				delete(m.subs, id)
			}
		}
	}
	m.subsMu.Unlock()
	m.engine.Unregister(restorerKey(subscriptionID))
}

// HandlePush delivers a ServiceChange push message to its
// subscription's Listener. It returns false if msg is not a
// ServiceChange event, so the caller can try another manager.
func (m *Manager) HandlePush(msg *wire.ServerMessage) bool {
	if msg.Type != wire.ServerServiceChange || msg.ServiceChange == nil {
		return false
	}
	event := msg.ServiceChange

	m.subsMu.Lock()
	sub, ok := m.subs[event.SubscriptionID]
	m.subsMu.Unlock()
	if !ok {
		return true
	}

	var changedNode *Node
	if event.ChangedNode != nil {
		n := fromWireNode(*event.ChangedNode)
		changedNode = &n
	}

	sub.Listener(ServiceChangeEvent{
		EventType:   fromWireServiceChangeType(event.EventType),
		NamespaceID: event.NamespaceID,
		GroupName:   event.GroupName,
		ServiceName: event.ServiceName,
		Nodes:       fromWireNodes(event.Nodes),
		ChangedNode: changedNode,
		Timestamp:   time.UnixMilli(event.TimestampUnixMs),
	})
	return true
}

// Close unregisters every locally-tracked node (best effort, logging
// but not returning per-node failures), cancels their heartbeat
// loops, drops all subscriptions, and removes every restorer this
// Manager published — spec.md §5's graceful-shutdown order's first
// two steps (unregister nodes, cancel heartbeats) plus cancelling
// subscriptions.
func (m *Manager) Close(ctx context.Context) error {
	m.nodesMu.Lock()
	nodeIDs := make([]string, 0, len(m.nodes))
	for id := range m.nodes {
		nodeIDs = append(nodeIDs, id)
	}
	m.nodesMu.Unlock()

	for _, id := range nodeIDs {
		if err := m.UnregisterNode(ctx, id); err != nil {
			m.logger.Warn("unregister node during shutdown", zap.String("nodeId", id), zap.Error(err))
		}
	}

	m.subsMu.Lock()
	for id := range m.subs {
		m.engine.Unregister(restorerKey(id))
	}
	m.subs = make(map[string]*Subscription)
	m.subsMu.Unlock()

	return nil
}

func (m *Manager) call(ctx context.Context, req *wire.ClientMessage) (*wire.ServerMessage, error) {
	if m.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.requestTimeout)
		defer cancel()
	}

	var resp *wire.ServerMessage
	var err error
	if m.mode == transport.ModeUnary && m.session != nil {
		resp, err = m.session.Invoke(ctx, req, m.requestTimeout)
	} else {
		stream := m.getStream()
		if stream == nil {
			return nil, clienterrors.New(clienterrors.KindInvalidState, "not connected", nil)
		}
		resp, err = stream.Call(ctx, req)
	}
	if err != nil {
		return nil, clienterrors.Transport(fmt.Sprintf("%s failed", req.Type), err)
	}
	if !resp.Success {
		return nil, clienterrors.Server(resp.ErrorMessage)
	}
	return resp, nil
}

func restorerKey(id string) string { return "registry:" + id }

func fromWireServiceChangeType(t wire.ServiceChangeEventType) ServiceChangeType {
	switch t {
	case wire.ServiceChangeAdded:
		return ServiceChangeAdded
	case wire.ServiceChangeUpdated:
		return ServiceChangeUpdated
	case wire.ServiceChangeRemoved:
		return ServiceChangeRemoved
	case wire.NodeAdded:
		return NodeAdded
	case wire.NodeUpdated:
		return NodeUpdated
	case wire.NodeRemoved:
		return NodeRemoved
	default:
		// An unrecognized tag (e.g. a newer server) is treated as a
		// generic service update rather than dropped.
		return ServiceChangeUpdated
	}
}

func toWireService(s Service) wire.ServiceInfo {
	return wire.ServiceInfo{
		NamespaceID:      s.NamespaceID,
		GroupName:        s.GroupName,
		ServiceName:      s.ServiceName,
		Type:             s.Type,
		Version:          s.Version,
		Description:      s.Description,
		ProtectThreshold: s.ProtectThreshold,
		Metadata:         s.Metadata,
		Tags:             s.Tags,
	}
}

func fromWireService(s wire.ServiceInfo) Service {
	return Service{
		NamespaceID:      s.NamespaceID,
		GroupName:        s.GroupName,
		ServiceName:      s.ServiceName,
		Type:             s.Type,
		Version:          s.Version,
		Description:      s.Description,
		ProtectThreshold: s.ProtectThreshold,
		Metadata:         s.Metadata,
		Tags:             s.Tags,
	}
}

func toWireNode(n Node) wire.NodeInfo {
	return wire.NodeInfo{
		NodeID:         n.NodeID,
		NamespaceID:    n.NamespaceID,
		GroupName:      n.GroupName,
		ServiceName:    n.ServiceName,
		IP:             n.IP,
		Port:           int32(n.Port),
		Weight:         n.Weight,
		Ephemeral:      n.Ephemeral,
		InstanceStatus: string(n.InstanceStatus),
		HealthyStatus:  string(n.HealthyStatus),
		Metadata:       n.Metadata,
	}
}

func fromWireNode(n wire.NodeInfo) Node {
	return Node{
		NodeID:         n.NodeID,
		NamespaceID:    n.NamespaceID,
		GroupName:      n.GroupName,
		ServiceName:    n.ServiceName,
		IP:             n.IP,
		Port:           int(n.Port),
		Weight:         n.Weight,
		Ephemeral:      n.Ephemeral,
		InstanceStatus: InstanceStatus(n.InstanceStatus),
		HealthyStatus:  HealthyStatus(n.HealthyStatus),
		Metadata:       n.Metadata,
	}
}

func fromWireNodes(nodes []wire.NodeInfo) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = fromWireNode(n)
	}
	return out
}
