package configcenter

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	clienterrors "github.com/fluxsce/flux-service-center-client/errs"
	"github.com/fluxsce/flux-service-center-client/internal/reconnect"
	"github.com/fluxsce/flux-service-center-client/internal/transport"
	"github.com/fluxsce/flux-service-center-client/internal/wire"
)

const defaultHistoryLimit = 100

// Manager is the configuration-center counterpart of registry.Manager:
// a non-owning reference to the shared StreamMux and reconnect Engine,
// plus its own watch table (spec.md §9 downward-only ownership).
type Manager struct {
	streamMu sync.Mutex
	stream   *transport.StreamMux

	session *transport.Session
	mode    transport.Mode

	engine *reconnect.Engine
	logger *zap.Logger

	defaultNamespace string
	defaultGroup     string
	requestTimeout   time.Duration

	watchesMu sync.Mutex
	watches   map[string]*Watch
}

// Config collects Manager's construction-time dependencies.
type Config struct {
	Stream  *transport.StreamMux
	Session *transport.Session
	// Mode selects stream or unary transport for this Manager's own
	// requests (spec.md §4.1). Push events always arrive over the
	// shared stream regardless of Mode.
	Mode             transport.Mode
	Engine           *reconnect.Engine
	Logger           *zap.Logger
	DefaultNamespace string
	DefaultGroup     string
	RequestTimeout   time.Duration
}

// NewManager constructs a Manager.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		stream:           cfg.Stream,
		session:          cfg.Session,
		mode:             cfg.Mode,
		engine:           cfg.Engine,
		logger:           logger,
		defaultNamespace: cfg.DefaultNamespace,
		defaultGroup:     cfg.DefaultGroup,
		requestTimeout:   cfg.RequestTimeout,
		watches:          make(map[string]*Watch),
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

// contentMD5 computes a client-side digest used only for a debug-log
// cross-check in SaveConfig; the server's response MD5 is what this
// client returns to callers.
func contentMD5(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// GetConfig fetches dataId's current content.
func (m *Manager) GetConfig(ctx context.Context, namespaceID, groupName, dataID string) (*Config, error) {
	if dataID == "" {
		return nil, clienterrors.InvalidArgument("dataId is required")
	}
	namespaceID, groupName = m.resolve(namespaceID, groupName)

	req := &wire.ClientMessage{
		Type: wire.ClientGetConfig,
		GetConfig: &wire.GetConfigRequest{
			NamespaceID: namespaceID,
			GroupName:   groupName,
			DataID:      dataID,
		},
	}
	resp, err := m.call(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.GetConfig == nil {
		return nil, clienterrors.Server("get config response missing payload")
	}
	cfg := fromWireConfig(resp.GetConfig.Config)
	return &cfg, nil
}

// SaveConfig creates or updates dataId's content. The returned Config
// carries the server-assigned Version and authoritative MD5.
func (m *Manager) SaveConfig(ctx context.Context, namespaceID, groupName, dataID string, contentType ContentType, content, description string) (*Config, error) {
	if dataID == "" {
		return nil, clienterrors.InvalidArgument("dataId is required")
	}
	namespaceID, groupName = m.resolve(namespaceID, groupName)

	req := &wire.ClientMessage{
		Type: wire.ClientSaveConfig,
		SaveConfig: &wire.SaveConfigRequest{
			NamespaceID: namespaceID,
			GroupName:   groupName,
			DataID:      dataID,
			ContentType: string(contentType),
			Content:     content,
			Description: description,
		},
	}
	resp, err := m.call(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.SaveConfig == nil {
		return nil, clienterrors.Server("save config response missing payload")
	}

	// Client-side digest only for a log line cross-check; the
	// server's digest below is what the caller actually gets back.
	m.logger.Debug("save config",
		zap.String("dataId", dataID),
		zap.String("clientMd5", contentMD5(content)),
		zap.String("serverMd5", resp.SaveConfig.MD5))

	return &Config{
		NamespaceID: namespaceID,
		GroupName:   groupName,
		DataID:      dataID,
		ContentType: contentType,
		Content:     content,
		MD5:         resp.SaveConfig.MD5,
		Version:     resp.SaveConfig.Version,
		Description: description,
	}, nil
}

// DeleteConfig removes dataId.
func (m *Manager) DeleteConfig(ctx context.Context, namespaceID, groupName, dataID string) error {
	if dataID == "" {
		return clienterrors.InvalidArgument("dataId is required")
	}
	namespaceID, groupName = m.resolve(namespaceID, groupName)

	req := &wire.ClientMessage{
		Type: wire.ClientDeleteConfig,
		DeleteConfig: &wire.DeleteConfigRequest{
			NamespaceID: namespaceID,
			GroupName:   groupName,
			DataID:      dataID,
		},
	}
	_, err := m.call(ctx, req)
	return err
}

// ListConfigs lists every config in namespace/group. search is
// forwarded to the server as-is; per spec.md's Open Question decision,
// this client implements the simple unpaged form only — a non-empty
// search is logged at debug level since the response carries no
// paging metadata to reconcile against it.
func (m *Manager) ListConfigs(ctx context.Context, namespaceID, groupName, search string) ([]Config, error) {
	namespaceID, groupName = m.resolve(namespaceID, groupName)
	if search != "" {
		m.logger.Debug("listConfigs: search forwarded unpaged", zap.String("search", search))
	}

	req := &wire.ClientMessage{
		Type: wire.ClientListConfigs,
		ListConfigs: &wire.ListConfigsRequest{
			NamespaceID: namespaceID,
			GroupName:   groupName,
			Search:      search,
		},
	}
	resp, err := m.call(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.ListConfigs == nil {
		return nil, nil
	}
	return fromWireConfigs(resp.ListConfigs.Configs), nil
}

// GetConfigHistory returns up to limit past revisions of dataId,
// most recent first. limit <= 0 defaults to 100, per spec.md's Open
// Question decision to implement only the single-form signature.
func (m *Manager) GetConfigHistory(ctx context.Context, namespaceID, groupName, dataID string, limit int) ([]HistoryEntry, error) {
	if dataID == "" {
		return nil, clienterrors.InvalidArgument("dataId is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	namespaceID, groupName = m.resolve(namespaceID, groupName)

	req := &wire.ClientMessage{
		Type: wire.ClientGetConfigHistory,
		GetConfigHistory: &wire.GetConfigHistoryRequest{
			NamespaceID: namespaceID,
			GroupName:   groupName,
			DataID:      dataID,
			Limit:       int32(limit),
		},
	}
	resp, err := m.call(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.GetConfigHistory == nil {
		return nil, nil
	}
	entries := make([]HistoryEntry, len(resp.GetConfigHistory.Entries))
	for i, e := range resp.GetConfigHistory.Entries {
		entries[i] = HistoryEntry{
			Version:      e.Version,
			Content:      e.Content,
			MD5:          e.MD5,
			ChangeType:   ChangeType(e.ChangeType),
			ChangeReason: e.ChangeReason,
			ChangedBy:    e.ChangedBy,
			Timestamp:    time.UnixMilli(e.TimestampUnixMs),
		}
	}
	return entries, nil
}

// RollbackConfig restores dataId to a prior version.
func (m *Manager) RollbackConfig(ctx context.Context, namespaceID, groupName, dataID string, version int64) error {
	if dataID == "" {
		return clienterrors.InvalidArgument("dataId is required")
	}
	namespaceID, groupName = m.resolve(namespaceID, groupName)

	req := &wire.ClientMessage{
		Type: wire.ClientRollbackConfig,
		RollbackConfig: &wire.RollbackConfigRequest{
			NamespaceID: namespaceID,
			GroupName:   groupName,
			DataID:      dataID,
			Version:     version,
		},
	}
	_, err := m.call(ctx, req)
	return err
}

// Watch registers listener for changes to any of dataIDs, delivering
// the server's initial snapshot synchronously before returning.
func (m *Manager) Watch(ctx context.Context, namespaceID, groupName string, dataIDs []string, listener Listener) (string, error) {
	if len(dataIDs) == 0 {
		return "", clienterrors.InvalidArgument("dataIds must not be empty")
	}
	if listener == nil {
		return "", clienterrors.InvalidArgument("listener must not be nil")
	}
	namespaceID, groupName = m.resolve(namespaceID, groupName)

	req := &wire.ClientMessage{
		Type: wire.ClientWatchConfig,
		WatchConfig: &wire.WatchConfigRequest{
			NamespaceID: namespaceID,
			GroupName:   groupName,
			DataIDs:     dataIDs,
		},
	}
	resp, err := m.call(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.WatchAck == nil {
		return "", clienterrors.Server("watch ack missing")
	}

	watch := &Watch{
		WatchID:     resp.WatchAck.WatchID,
		NamespaceID: namespaceID,
		GroupName:   groupName,
		DataIDs:     dataIDs,
		Listener:    listener,
	}

	m.watchesMu.Lock()
	m.watches[watch.WatchID] = watch
	m.watchesMu.Unlock()

	m.engine.Register(restorerKey(watch.WatchID), func(ctx context.Context) error {
		return m.rewatch(ctx, watch)
	})

	for _, snap := range resp.WatchAck.Snapshot {
		cfg := fromWireConfig(snap)
		listener(ChangeEvent{
			EventType:   ChangeUpdate,
			NamespaceID: cfg.NamespaceID,
			GroupName:   cfg.GroupName,
			DataID:      cfg.DataID,
			Config:      &cfg,
			ContentMD5:  cfg.MD5,
			Timestamp:   time.Now(),
		})
	}

	return watch.WatchID, nil
}

func (m *Manager) rewatch(ctx context.Context, watch *Watch) error {
	req := &wire.ClientMessage{
		Type: wire.ClientWatchConfig,
		WatchConfig: &wire.WatchConfigRequest{
			NamespaceID: watch.NamespaceID,
			GroupName:   watch.GroupName,
			DataIDs:     watch.DataIDs,
		},
	}
	resp, err := m.call(ctx, req)
	if err != nil {
		return err
	}
	if resp.WatchAck != nil {
		m.watchesMu.Lock()
		watch.WatchID = resp.WatchAck.WatchID
		m.watches[watch.WatchID] = watch
		m.watchesMu.Unlock()
	}
	return nil
}

// Unwatch stops delivering events for watchID.
func (m *Manager) Unwatch(watchID string) {
	m.watchesMu.Lock()
	if watch, ok := m.watches[watchID]; ok {
		// rewatch also files watch under the server's new id; drop
		// every key that points at it.
		for id, w := range m.watches {
			if w == watch {
				delete(m.watches, id)
			}
		}
	}
	m.watchesMu.Unlock()
	m.engine.Unregister(restorerKey(watchID))
}

// HandlePush delivers a CONFIG_CHANGE push message to its watch's
// Listener. It returns false if msg is not a config-change event.
func (m *Manager) HandlePush(msg *wire.ServerMessage) bool {
	if msg.Type != wire.ServerConfigChange || msg.ConfigChange == nil {
		return false
	}
	event := msg.ConfigChange

	m.watchesMu.Lock()
	watch, ok := m.watches[event.WatchID]
	m.watchesMu.Unlock()
	if !ok {
		return true
	}

	var cfg *Config
	if event.Config != nil {
		c := fromWireConfig(*event.Config)
		cfg = &c
	}

	watch.Listener(ChangeEvent{
		EventType:   fromWireChangeType(event.EventType),
		NamespaceID: event.NamespaceID,
		GroupName:   event.GroupName,
		DataID:      event.DataID,
		Config:      cfg,
		ContentMD5:  event.ContentMD5,
		Timestamp:   time.UnixMilli(event.TimestampUnixMs),
	})
	return true
}

// Close drops every tracked watch and its restorer — spec.md §5's
// graceful-shutdown order's "cancel subscriptions/watches" step.
func (m *Manager) Close() error {
	m.watchesMu.Lock()
	for id := range m.watches {
		m.engine.Unregister(restorerKey(id))
	}
	m.watches = make(map[string]*Watch)
	m.watchesMu.Unlock()
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

func restorerKey(id string) string { return "configcenter:" + id }

// fromWireChangeType maps the wire's config-change tags ("UPDATED",
// "DELETED") onto the domain ChangeType taxonomy, which also carries
// ChangeAdd for history entries the wire never emits as a live push
// event. An unrecognized tag falls back to ChangeUpdate.
func fromWireChangeType(t wire.ConfigChangeEventType) ChangeType {
	switch t {
	case wire.ConfigChangeUpdated:
		return ChangeUpdate
	case wire.ConfigChangeDeleted:
		return ChangeDelete
	default:
		return ChangeUpdate
	}
}

func fromWireConfig(c wire.ConfigInfo) Config {
	return Config{
		NamespaceID: c.NamespaceID,
		GroupName:   c.GroupName,
		DataID:      c.DataID,
		ContentType: ContentType(c.ContentType),
		Content:     c.Content,
		MD5:         c.MD5,
		Version:     c.Version,
		Description: c.Description,
	}
}

func fromWireConfigs(configs []wire.ConfigInfo) []Config {
	out := make([]Config, len(configs))
	for i, c := range configs {
		out[i] = fromWireConfig(c)
	}
	return out
}
