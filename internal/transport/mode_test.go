package transport

import "testing"

func TestModeString(t *testing.T) {
	tests := map[Mode]string{
		ModeStream: "stream",
		ModeUnary:  "unary",
	}
	for mode, want := range tests {
		if got := mode.String(); got != want {
			t.Errorf("Mode(%d).String() = %q, want %q", mode, got, want)
		}
	}
}
