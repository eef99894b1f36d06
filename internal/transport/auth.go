// auth.go builds the authorization header carried on every call and
// the client interceptor pair that attaches it, mirroring the
// teacher's server-side interceptor package
// (internal/servicecenter/server/interceptor/auth.go) from the other
// direction: the server reads this header, the client writes it.
package transport

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const authorizationHeader = "authorization"

// AuthProvider returns the value to attach to the outgoing
// "authorization" metadata key, or "" to attach nothing.
type AuthProvider func() string

// NoAuth never attaches a header.
func NoAuth() AuthProvider { return func() string { return "" } }

// BasicAuth attaches "Basic base64(username:password)".
func BasicAuth(username, password string) AuthProvider {
	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	value := "Basic " + token
	return func() string { return value }
}

// BearerAuth attaches "Bearer <token>", where token is typically an
// access-key/secret-key derived session token.
func BearerAuth(token string) AuthProvider {
	value := "Bearer " + token
	return func() string { return value }
}

func attach(ctx context.Context, auth AuthProvider) context.Context {
	if auth == nil {
		return ctx
	}
	value := auth()
	if value == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, authorizationHeader, value)
}

// UnaryClientInterceptor attaches the authorization header to every
// unary call's outgoing context.
func UnaryClientInterceptor(auth AuthProvider) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(attach(ctx, auth), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor attaches the authorization header to every
// stream's initial outgoing context.
func StreamClientInterceptor(auth AuthProvider) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		stream, err := streamer(attach(ctx, auth), desc, cc, method, opts...)
		if err != nil {
			return nil, fmt.Errorf("transport: open stream %s: %w", method, err)
		}
		return stream, nil
	}
}
