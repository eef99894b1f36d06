package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindAndMessage(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := New(KindTransportUnavailable, "connect failed", cause)

	assert.Equal(t, KindTransportUnavailable, err.Kind())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "transport_unavailable")
	assert.Contains(t, err.Error(), "connect failed")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestErrorWithoutCause(t *testing.T) {
	err := InvalidArgument("port must be 1-65535, got %d", -1)
	assert.Equal(t, KindInvalidArgument, err.Kind())
	assert.Nil(t, err.Unwrap())
	assert.Equal(t, "invalid_argument: port must be 1-65535, got -1", err.Error())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{"timeout", Timeout("deadline exceeded", nil), true},
		{"transport", Transport("unavailable", nil), true},
		{"invalidArgument", InvalidArgument("bad input"), false},
		{"invalidState", InvalidState("not connected"), false},
		{"authFailure", AuthFailure("denied", nil), false},
		{"serverError", Server("server said no"), false},
		{"localFailure", Local("marshal failed", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "invalid_argument", KindInvalidArgument.String())
	assert.Equal(t, "unknown", Kind(999).String())
}
