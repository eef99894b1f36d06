// Package wire defines the client<->server message catalogue this
// module speaks, named after and field-compatible with the teacher's
// own pb.ClientMessageType / pb.ServerMessageType enums observed in
// internal/servicecenter/server/handler/stream_handler.go. Real
// protoc-generated bindings are out of scope (spec.md §1); these types
// stand in for them and travel the wire through the Codec in codec.go.
package wire

// ClientMessageType discriminates the payload carried by a ClientMessage.
type ClientMessageType string

const (
	ClientHandshake           ClientMessageType = "HANDSHAKE"
	ClientPing                ClientMessageType = "PING"
	ClientHeartbeat           ClientMessageType = "HEARTBEAT"
	ClientRegisterService     ClientMessageType = "REGISTER_SERVICE"
	ClientUnregisterService   ClientMessageType = "UNREGISTER_SERVICE"
	ClientGetService          ClientMessageType = "GET_SERVICE"
	ClientRegisterNode        ClientMessageType = "REGISTER_NODE"
	ClientUnregisterNode      ClientMessageType = "UNREGISTER_NODE"
	ClientDiscoverNodes       ClientMessageType = "DISCOVER_NODES"
	ClientSubscribeServices   ClientMessageType = "SUBSCRIBE_SERVICES"
	ClientSubscribeNamespace  ClientMessageType = "SUBSCRIBE_NAMESPACE"
	ClientGetConfig           ClientMessageType = "GET_CONFIG"
	ClientSaveConfig          ClientMessageType = "SAVE_CONFIG"
	ClientDeleteConfig        ClientMessageType = "DELETE_CONFIG"
	ClientListConfigs         ClientMessageType = "LIST_CONFIGS"
	ClientGetConfigHistory    ClientMessageType = "GET_CONFIG_HISTORY"
	ClientRollbackConfig      ClientMessageType = "ROLLBACK_CONFIG"
	ClientWatchConfig         ClientMessageType = "WATCH_CONFIG"
)

// ServerMessageType discriminates the payload carried by a ServerMessage.
type ServerMessageType string

const (
	ServerHandshake         ServerMessageType = "HANDSHAKE"
	ServerPong              ServerMessageType = "PONG"
	ServerHeartbeatAck      ServerMessageType = "HEARTBEAT_ACK"
	ServerRegisterService   ServerMessageType = "REGISTER_SERVICE"
	ServerUnregisterService ServerMessageType = "UNREGISTER_SERVICE"
	ServerGetService        ServerMessageType = "GET_SERVICE"
	ServerRegisterNode      ServerMessageType = "REGISTER_NODE"
	ServerUnregisterNode    ServerMessageType = "UNREGISTER_NODE"
	ServerDiscoverNodes     ServerMessageType = "DISCOVER_NODES"
	ServerSubscribeAck      ServerMessageType = "SUBSCRIBE_ACK"
	ServerServiceChange     ServerMessageType = "SERVICE_CHANGE"
	ServerGetConfig         ServerMessageType = "GET_CONFIG"
	ServerSaveConfig        ServerMessageType = "SAVE_CONFIG"
	ServerDeleteConfig      ServerMessageType = "DELETE_CONFIG"
	ServerListConfigs       ServerMessageType = "LIST_CONFIGS"
	ServerGetConfigHistory  ServerMessageType = "GET_CONFIG_HISTORY"
	ServerRollbackConfig    ServerMessageType = "ROLLBACK_CONFIG"
	ServerWatchAck          ServerMessageType = "WATCH_ACK"
	ServerConfigChange      ServerMessageType = "CONFIG_CHANGE"
	ServerCloseNotification ServerMessageType = "CLOSE_NOTIFICATION"
	ServerError             ServerMessageType = "ERROR"
)

// ClientMessage is the single envelope sent on the bidi stream and
// passed to unary.go's per-call Invoke. Exactly one payload field is
// populated, matching Type — a hand-written stand-in for a protobuf
// oneof, which a JSON-based Codec cannot marshal directly as a Go
// interface field.
type ClientMessage struct {
	RequestID string            `json:"requestId"`
	ClientID  string            `json:"clientId"`
	Type      ClientMessageType `json:"type"`

	Handshake         *HandshakeRequest         `json:"handshake,omitempty"`
	Heartbeat         *HeartbeatRequest         `json:"heartbeat,omitempty"`
	RegisterService   *RegisterServiceRequest   `json:"registerService,omitempty"`
	UnregisterService *UnregisterServiceRequest `json:"unregisterService,omitempty"`
	GetService        *GetServiceRequest        `json:"getService,omitempty"`
	RegisterNode      *RegisterNodeRequest      `json:"registerNode,omitempty"`
	UnregisterNode    *UnregisterNodeRequest    `json:"unregisterNode,omitempty"`
	DiscoverNodes     *DiscoverNodesRequest     `json:"discoverNodes,omitempty"`
	SubscribeServices *SubscribeServicesRequest `json:"subscribeServices,omitempty"`
	SubscribeNamespace *SubscribeNamespaceRequest `json:"subscribeNamespace,omitempty"`
	GetConfig         *GetConfigRequest         `json:"getConfig,omitempty"`
	SaveConfig        *SaveConfigRequest        `json:"saveConfig,omitempty"`
	DeleteConfig      *DeleteConfigRequest      `json:"deleteConfig,omitempty"`
	ListConfigs       *ListConfigsRequest       `json:"listConfigs,omitempty"`
	GetConfigHistory  *GetConfigHistoryRequest  `json:"getConfigHistory,omitempty"`
	RollbackConfig    *RollbackConfigRequest    `json:"rollbackConfig,omitempty"`
	WatchConfig       *WatchConfigRequest       `json:"watchConfig,omitempty"`
}

// ServerMessage is the single envelope received on the bidi stream and
// returned from a unary Invoke.
type ServerMessage struct {
	RequestID string            `json:"requestId"`
	Type      ServerMessageType `json:"type"`
	Success   bool              `json:"success"`
	ErrorCode string            `json:"errorCode,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`

	Handshake         *HandshakeResponse         `json:"handshake,omitempty"`
	Pong              *PongResponse              `json:"pong,omitempty"`
	RegisterService   *RegisterServiceResponse   `json:"registerService,omitempty"`
	GetService        *GetServiceResponse        `json:"getService,omitempty"`
	RegisterNode      *RegisterNodeResponse      `json:"registerNode,omitempty"`
	DiscoverNodes     *DiscoverNodesResponse     `json:"discoverNodes,omitempty"`
	SubscribeAck      *SubscribeAckResponse      `json:"subscribeAck,omitempty"`
	ServiceChange     *ServiceChangeEvent        `json:"serviceChange,omitempty"`
	GetConfig         *GetConfigResponse         `json:"getConfig,omitempty"`
	SaveConfig        *SaveConfigResponse        `json:"saveConfig,omitempty"`
	ListConfigs       *ListConfigsResponse       `json:"listConfigs,omitempty"`
	GetConfigHistory  *GetConfigHistoryResponse  `json:"getConfigHistory,omitempty"`
	WatchAck          *WatchAckResponse          `json:"watchAck,omitempty"`
	ConfigChange      *ConfigChangeEvent         `json:"configChange,omitempty"`
	CloseNotification *CloseNotification         `json:"closeNotification,omitempty"`
}

// --- handshake / keepalive ---

type HandshakeRequest struct {
	ClientVersion string            `json:"clientVersion"`
	NamespaceID   string            `json:"namespaceId"`
	Username      string            `json:"username,omitempty"`
	Password      string            `json:"password,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type HandshakeResponse struct {
	ConnectionID      string `json:"connectionId"`
	ServerTimeUnixMs  int64  `json:"serverTime"`
	HeartbeatInterval int32  `json:"heartbeatInterval"`
	ServerInfo        string `json:"serverInfo,omitempty"`
}

type PongResponse struct {
	ServerTimeUnixMs int64 `json:"serverTime"`
	ClientTimeUnixMs int64 `json:"clientTime"`
}

// HeartbeatRequest carries the full service context, not just NodeID,
// so a server that has lost the node (e.g. after its own restart) can
// rehydrate it from the heartbeat message alone (spec.md §4.3 step 2).
type HeartbeatRequest struct {
	NodeID      string   `json:"nodeId"`
	NamespaceID string   `json:"namespaceId"`
	GroupName   string   `json:"groupName"`
	ServiceName string   `json:"serviceName"`
	Node        NodeInfo `json:"node"`
}

// --- registry ---

type NodeInfo struct {
	NodeID        string            `json:"nodeId"`
	NamespaceID   string            `json:"namespaceId"`
	GroupName     string            `json:"groupName"`
	ServiceName   string            `json:"serviceName"`
	IP            string            `json:"ip"`
	Port          int32             `json:"port"`
	Weight        float64           `json:"weight"`
	Ephemeral     bool              `json:"ephemeral"`
	InstanceStatus string           `json:"instanceStatus"`
	HealthyStatus string            `json:"healthyStatus"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ServiceInfo is the wire counterpart of registry.Service (spec.md §3).
type ServiceInfo struct {
	NamespaceID      string            `json:"namespaceId"`
	GroupName        string            `json:"groupName"`
	ServiceName      string            `json:"serviceName"`
	Type             string            `json:"type,omitempty"`
	Version          string            `json:"version,omitempty"`
	Description      string            `json:"description,omitempty"`
	ProtectThreshold float64           `json:"protectThreshold,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
}

// RegisterServiceRequest declares Service and, if Node is set,
// atomically registers that node against it in the same call (spec.md
// §4.3's registerService(service, node?)).
type RegisterServiceRequest struct {
	Service ServiceInfo `json:"service"`
	Node    *NodeInfo   `json:"node,omitempty"`
}

// RegisterServiceResponse carries the server-assigned NodeID when the
// request included a Node.
type RegisterServiceResponse struct {
	NodeID string `json:"nodeId,omitempty"`
}

// UnregisterServiceRequest drops NodeID only when non-empty; otherwise
// the entire service is unregistered (spec.md §4.3).
type UnregisterServiceRequest struct {
	NamespaceID string `json:"namespaceId"`
	GroupName   string `json:"groupName"`
	ServiceName string `json:"serviceName"`
	NodeID      string `json:"nodeId,omitempty"`
}

type GetServiceRequest struct {
	NamespaceID string `json:"namespaceId"`
	GroupName   string `json:"groupName"`
	ServiceName string `json:"serviceName"`
}

type GetServiceResponse struct {
	Service ServiceInfo `json:"service"`
	Nodes   []NodeInfo  `json:"nodes"`
}

type RegisterNodeRequest struct {
	Node NodeInfo `json:"node"`
}

type RegisterNodeResponse struct {
	NodeID string `json:"nodeId"`
}

type UnregisterNodeRequest struct {
	NodeID      string `json:"nodeId"`
	NamespaceID string `json:"namespaceId"`
	GroupName   string `json:"groupName"`
	ServiceName string `json:"serviceName"`
}

type DiscoverNodesRequest struct {
	NamespaceID  string `json:"namespaceId"`
	GroupName    string `json:"groupName"`
	ServiceName  string `json:"serviceName"`
	HealthyOnly  bool   `json:"healthyOnly"`
}

type DiscoverNodesResponse struct {
	Nodes []NodeInfo `json:"nodes"`
}

type SubscribeServicesRequest struct {
	NamespaceID  string   `json:"namespaceId"`
	GroupName    string   `json:"groupName"`
	ServiceNames []string `json:"serviceNames"`
}

type SubscribeNamespaceRequest struct {
	NamespaceID string `json:"namespaceId"`
	GroupName   string `json:"groupName"`
}

type SubscribeAckResponse struct {
	SubscriptionID string     `json:"subscriptionId"`
	Snapshot       []NodeInfo `json:"snapshot,omitempty"`
}

// ServiceChangeEventType enumerates how a node membership changed.
type ServiceChangeEventType string

const (
	ServiceChangeAdded   ServiceChangeEventType = "SERVICE_ADDED"
	ServiceChangeUpdated ServiceChangeEventType = "SERVICE_UPDATED"
	ServiceChangeRemoved ServiceChangeEventType = "SERVICE_REMOVED"
	NodeAdded            ServiceChangeEventType = "NODE_ADDED"
	NodeUpdated          ServiceChangeEventType = "NODE_UPDATED"
	NodeRemoved          ServiceChangeEventType = "NODE_REMOVED"
)

type ServiceChangeEvent struct {
	SubscriptionID string                 `json:"subscriptionId"`
	EventType      ServiceChangeEventType `json:"eventType"`
	NamespaceID    string                 `json:"namespaceId"`
	GroupName      string                 `json:"groupName"`
	ServiceName    string                 `json:"serviceName"`
	Nodes          []NodeInfo             `json:"nodes"`
	// ChangedNode is set for node-scoped events (NODE_ADDED/UPDATED/
	// REMOVED) alongside the full post-change Nodes snapshot.
	ChangedNode     *NodeInfo `json:"changedNode,omitempty"`
	TimestampUnixMs int64     `json:"timestamp"`
}

// --- config center ---

type ConfigInfo struct {
	NamespaceID string `json:"namespaceId"`
	GroupName   string `json:"groupName"`
	DataID      string `json:"dataId"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
	MD5         string `json:"md5"`
	Version     int64  `json:"version"`
	Description string `json:"description,omitempty"`
}

type GetConfigRequest struct {
	NamespaceID string `json:"namespaceId"`
	GroupName   string `json:"groupName"`
	DataID      string `json:"dataId"`
}

type GetConfigResponse struct {
	Config ConfigInfo `json:"config"`
}

type SaveConfigRequest struct {
	NamespaceID string `json:"namespaceId"`
	GroupName   string `json:"groupName"`
	DataID      string `json:"dataId"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
	ChangedBy   string `json:"changedBy,omitempty"`
}

type SaveConfigResponse struct {
	Version int64  `json:"version"`
	MD5     string `json:"md5"`
}

type DeleteConfigRequest struct {
	NamespaceID string `json:"namespaceId"`
	GroupName   string `json:"groupName"`
	DataID      string `json:"dataId"`
}

type ListConfigsRequest struct {
	NamespaceID string `json:"namespaceId"`
	GroupName   string `json:"groupName"`
	Search      string `json:"search,omitempty"`
}

type ListConfigsResponse struct {
	Configs []ConfigInfo `json:"configs"`
}

type GetConfigHistoryRequest struct {
	NamespaceID string `json:"namespaceId"`
	GroupName   string `json:"groupName"`
	DataID      string `json:"dataId"`
	Limit       int32  `json:"limit"`
}

type ConfigHistoryEntry struct {
	Version     int64  `json:"version"`
	Content     string `json:"content"`
	MD5         string `json:"md5"`
	ChangeType  string `json:"changeType"`
	ChangeReason string `json:"changeReason,omitempty"`
	ChangedBy   string `json:"changedBy,omitempty"`
	TimestampUnixMs int64 `json:"timestamp"`
}

type GetConfigHistoryResponse struct {
	Entries []ConfigHistoryEntry `json:"entries"`
}

type RollbackConfigRequest struct {
	NamespaceID string `json:"namespaceId"`
	GroupName   string `json:"groupName"`
	DataID      string `json:"dataId"`
	Version     int64  `json:"version"`
}

type WatchConfigRequest struct {
	NamespaceID string   `json:"namespaceId"`
	GroupName   string   `json:"groupName"`
	DataIDs     []string `json:"dataIds"`
}

type WatchAckResponse struct {
	WatchID  string       `json:"watchId"`
	Snapshot []ConfigInfo `json:"snapshot,omitempty"`
}

// ConfigChangeEventType enumerates how a watched config changed.
type ConfigChangeEventType string

const (
	ConfigChangeUpdated ConfigChangeEventType = "UPDATED"
	ConfigChangeDeleted ConfigChangeEventType = "DELETED"
)

type ConfigChangeEvent struct {
	WatchID         string                `json:"watchId"`
	EventType       ConfigChangeEventType `json:"eventType"`
	NamespaceID     string                `json:"namespaceId"`
	GroupName       string                `json:"groupName"`
	DataID          string                `json:"dataId"`
	Config          *ConfigInfo           `json:"config,omitempty"`
	ContentMD5      string                `json:"contentMd5,omitempty"`
	TimestampUnixMs int64                 `json:"timestamp"`
}

type CloseNotification struct {
	Reason string `json:"reason"`
}
