package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/metadata"
)

func TestNoAuthAttachesNothing(t *testing.T) {
	ctx := attach(t.Context(), NoAuth())
	_, ok := metadata.FromOutgoingContext(ctx)
	assert.False(t, ok)
}

func TestBasicAuthAttachesEncodedHeader(t *testing.T) {
	ctx := attach(t.Context(), BasicAuth("admin", "secret"))
	md, ok := metadata.FromOutgoingContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, []string{"Basic YWRtaW46c2VjcmV0"}, md.Get(authorizationHeader))
}

func TestBearerAuthAttachesToken(t *testing.T) {
	ctx := attach(t.Context(), BearerAuth("token-123"))
	md, _ := metadata.FromOutgoingContext(ctx)
	assert.Equal(t, []string{"Bearer token-123"}, md.Get(authorizationHeader))
}

func TestAttachNilAuthProviderIsANoop(t *testing.T) {
	ctx := attach(t.Context(), nil)
	_, ok := metadata.FromOutgoingContext(ctx)
	assert.False(t, ok)
}
