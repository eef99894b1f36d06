package configcenter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	clienterrors "github.com/fluxsce/flux-service-center-client/errs"
	"github.com/fluxsce/flux-service-center-client/internal/reconnect"
	"github.com/fluxsce/flux-service-center-client/internal/wire"
)

func newTestManager() *Manager {
	return NewManager(Config{
		Logger:           zap.NewNop(),
		DefaultNamespace: "public",
		DefaultGroup:     "DEFAULT_GROUP",
	})
}

func TestGetConfigRequiresDataID(t *testing.T) {
	m := newTestManager()
	_, err := m.GetConfig(context.Background(), "", "", "")
	require.Error(t, err)
	var clientErr *clienterrors.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, clienterrors.KindInvalidArgument, clientErr.Kind())
}

func TestGetConfigFailsWithoutStream(t *testing.T) {
	m := newTestManager()
	_, err := m.GetConfig(context.Background(), "", "", "app.yaml")
	require.Error(t, err)
	var clientErr *clienterrors.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, clienterrors.KindInvalidState, clientErr.Kind())
}

func TestSaveConfigRequiresDataID(t *testing.T) {
	m := newTestManager()
	_, err := m.SaveConfig(context.Background(), "", "", "", ContentYAML, "a: 1", "")
	require.Error(t, err)
}

func TestGetConfigHistoryDefaultsLimit(t *testing.T) {
	m := newTestManager()
	// No stream attached, so this exercises the limit defaulting and
	// validation path before the call hits the not-connected error.
	_, err := m.GetConfigHistory(context.Background(), "", "", "app.yaml", -5)
	require.Error(t, err)
	var clientErr *clienterrors.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, clienterrors.KindInvalidState, clientErr.Kind())
}

func TestWatchValidation(t *testing.T) {
	m := newTestManager()

	_, err := m.Watch(context.Background(), "", "", nil, func(ChangeEvent) {})
	require.Error(t, err)

	_, err = m.Watch(context.Background(), "", "", []string{"app.yaml"}, nil)
	require.Error(t, err)
}

func TestUnwatchUnknownIDIsANoop(t *testing.T) {
	m := newTestManager()
	assert.NotPanics(t, func() { m.Unwatch("does-not-exist") })
}

func TestHandlePushIgnoresUnrelatedMessages(t *testing.T) {
	m := newTestManager()
	assert.False(t, m.HandlePush(&wire.ServerMessage{Type: wire.ServerPong}))
}

func TestContentMD5IsStable(t *testing.T) {
	assert.Equal(t, contentMD5("hello"), contentMD5("hello"))
	assert.NotEqual(t, contentMD5("hello"), contentMD5("world"))
}

func TestFromWireChangeTypeMapsWireTagsToDomain(t *testing.T) {
	assert.Equal(t, ChangeUpdate, fromWireChangeType(wire.ConfigChangeUpdated))
	assert.Equal(t, ChangeDelete, fromWireChangeType(wire.ConfigChangeDeleted))
	assert.Equal(t, ChangeUpdate, fromWireChangeType(wire.ConfigChangeEventType("SOMETHING_NEW")))
}

func TestCloseClearsWatches(t *testing.T) {
	m := NewManager(Config{
		Logger: zap.NewNop(),
		Engine: reconnect.New(zap.NewNop(), nil, time.Millisecond, time.Millisecond, -1),
	})
	m.watches["watch-1"] = &Watch{WatchID: "watch-1"}
	assert.NoError(t, m.Close())
	assert.Empty(t, m.watches)
}
