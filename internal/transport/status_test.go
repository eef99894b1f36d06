package transport

import (
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsFatalHeartbeatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"non-status error", errors.New("boom"), false},
		{"unavailable", status.Error(codes.Unavailable, "down"), true},
		{"unauthenticated", status.Error(codes.Unauthenticated, "bad token"), true},
		{"deadline exceeded", status.Error(codes.DeadlineExceeded, "slow"), true},
		{"aborted", status.Error(codes.Aborted, "conflict"), true},
		{"canceled", status.Error(codes.Canceled, "gone"), true},
		{"not found is not fatal", status.Error(codes.NotFound, "missing"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatalHeartbeatError(tt.err); got != tt.want {
				t.Errorf("IsFatalHeartbeatError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
