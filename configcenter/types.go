// Package configcenter is the distributed-configuration half of the
// client: get/save/delete/list, history/rollback, and watch-for-change
// subscriptions. Grounded on pkg/plugin/nacos/{client.go,config.go}'s
// GetConfig/UpdateConfig surface and on
// internal/servicecenter/server/handler/stream_handler.go's config
// handlers for the watch/event shape, generalized away from
// nacos-sdk-go into this module's own wire protocol.
package configcenter

import "time"

// ContentType enumerates the recognized config content encodings
// (spec.md §6); any other string is stored opaquely.
type ContentType string

const (
	ContentText       ContentType = "text"
	ContentJSON       ContentType = "json"
	ContentYAML       ContentType = "yaml"
	ContentProperties ContentType = "properties"
	ContentXML        ContentType = "xml"
)

// ChangeType mirrors internal/servicecenter's config change taxonomy.
type ChangeType string

const (
	ChangeAdd    ChangeType = "ADD"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Config is one configuration item. MD5 is always the server's
// authoritative value once a Get/Save round trip has completed — this
// client never presents its own client-computed digest to a caller as
// canonical (spec.md's invariant that MD5 is server-computed).
type Config struct {
	NamespaceID string
	GroupName   string
	DataID      string
	ContentType ContentType
	Content     string
	MD5         string
	Version     int64
	Description string
}

// HistoryEntry is one past revision of a Config, as returned by
// GetConfigHistory.
type HistoryEntry struct {
	Version      int64
	Content      string
	MD5          string
	ChangeType   ChangeType
	ChangeReason string
	ChangedBy    string
	Timestamp    time.Time
}

// ChangeEvent is delivered to a Watch's Listener.
type ChangeEvent struct {
	EventType   ChangeType
	NamespaceID string
	GroupName   string
	DataID      string
	Config      *Config
	ContentMD5  string
	Timestamp   time.Time
}

// Listener receives config-change events for a Watch.
type Listener func(ChangeEvent)

// Watch tracks one WATCH_CONFIG registration so it can be restored
// after a reconnect and torn down on Unwatch.
type Watch struct {
	WatchID     string
	NamespaceID string
	GroupName   string
	DataIDs     []string
	Listener    Listener
}
