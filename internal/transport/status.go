package transport

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// IsFatalHeartbeatError reports whether err's gRPC status code is one
// of the codes spec.md §4.3 step 3 lists: the heartbeat reached the
// transport layer but was rejected or dropped outright, so the session
// should be marked disconnected and left for the reconnect engine.
func IsFatalHeartbeatError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.DeadlineExceeded, codes.Unavailable, codes.Unauthenticated, codes.Aborted, codes.Canceled:
		return true
	default:
		return false
	}
}
