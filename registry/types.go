// Package registry is the service-registry half of the client: node
// registration, discovery, and service-change subscriptions. Grounded
// on pkg/plugin/nacos/{client.go,nacos_tool.go}'s RegisterInstance /
// GetService / Subscribe surface, generalized from a nacos-sdk-go
// wrapper into a from-scratch client against this module's own wire
// protocol.
package registry

import "time"

// InstanceStatus mirrors internal/servicecenter/types.ServiceNode's
// status enum.
type InstanceStatus string

const (
	InstanceUp            InstanceStatus = "UP"
	InstanceDown          InstanceStatus = "DOWN"
	InstanceStarting      InstanceStatus = "STARTING"
	InstanceOutOfService  InstanceStatus = "OUT_OF_SERVICE"
)

// HealthyStatus mirrors the same type's healthy-status enum.
type HealthyStatus string

const (
	HealthyStatusHealthy   HealthyStatus = "HEALTHY"
	HealthyStatusUnhealthy HealthyStatus = "UNHEALTHY"
	HealthyStatusUnknown   HealthyStatus = "UNKNOWN"
)

const (
	// DefaultWeight is substituted when a Node is registered with a
	// zero Weight.
	DefaultWeight = 100.0
	minWeight     = 0.01
	maxWeight     = 10000.0
)

// Node is a single service instance, the client-side counterpart of
// internal/servicecenter/types.ServiceNode with its DB-row bookkeeping
// fields dropped (those belong to the server's persistence layer).
type Node struct {
	NodeID        string
	NamespaceID   string
	GroupName     string
	ServiceName   string
	IP            string
	Port          int
	Weight        float64
	Ephemeral     bool
	InstanceStatus InstanceStatus
	HealthyStatus HealthyStatus
	Metadata      map[string]string
}

func (n *Node) applyDefaults() {
	if n.Weight == 0 {
		n.Weight = DefaultWeight
	}
	if n.InstanceStatus == "" {
		n.InstanceStatus = InstanceUp
	}
	if n.HealthyStatus == "" {
		n.HealthyStatus = HealthyStatusHealthy
	}
}

// RegisteredNode tracks a Node this client registered, plus the
// bookkeeping needed to heartbeat it and restore it after a reconnect.
type RegisteredNode struct {
	Node         Node
	RegisteredAt time.Time
	LastHeartbeat time.Time
}

// Service is the registrable unit nodes attach to: the client-side
// counterpart of wire.ServiceInfo / spec.md §3's Service type.
type Service struct {
	NamespaceID      string
	GroupName        string
	ServiceName      string
	Type             string
	Version          string
	Description      string
	ProtectThreshold float64
	Metadata         map[string]string
	Tags             map[string]string
}

// ServiceChangeType mirrors wire.ServiceChangeEventType, including the
// node-scoped kinds a subscription sees when a single node is added,
// updated, or removed from an otherwise-unchanged service.
type ServiceChangeType string

const (
	ServiceChangeAdded   ServiceChangeType = "SERVICE_ADDED"
	ServiceChangeUpdated ServiceChangeType = "SERVICE_UPDATED"
	ServiceChangeRemoved ServiceChangeType = "SERVICE_REMOVED"
	NodeAdded            ServiceChangeType = "NODE_ADDED"
	NodeUpdated          ServiceChangeType = "NODE_UPDATED"
	NodeRemoved          ServiceChangeType = "NODE_REMOVED"
)

// ServiceChangeEvent is delivered to a Subscription's Listener.
type ServiceChangeEvent struct {
	EventType   ServiceChangeType
	NamespaceID string
	GroupName   string
	ServiceName string
	Nodes       []Node
	// ChangedNode identifies the single node a NODE_* event applies to.
	// Nil for SERVICE_* events, which describe the whole node list.
	ChangedNode *Node
	Timestamp   time.Time
}

// Listener receives service-change events for a Subscription.
type Listener func(ServiceChangeEvent)

// Subscription tracks one SUBSCRIBE_SERVICES registration (or
// SUBSCRIBE_NAMESPACE, when ServiceNames is empty) so it can be
// restored after a reconnect and torn down on Unsubscribe.
type Subscription struct {
	SubscriptionID string
	NamespaceID    string
	GroupName      string
	ServiceNames   []string
	Listener       Listener
}
