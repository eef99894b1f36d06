package transport

// Mode selects which of spec.md §4.1's two carrier architectures a
// caller's request/response calls ride on. Push events (service-change,
// config-change) always travel the shared stream in this client
// regardless of Mode; Mode only changes how a Manager's own requests
// are sent.
type Mode int

const (
	// ModeStream sends every request over the shared StreamMux,
	// correlating request and response by request id.
	ModeStream Mode = iota
	// ModeUnary sends every request as its own gRPC unary call with a
	// deadline computed at call time.
	ModeUnary
)

func (m Mode) String() string {
	if m == ModeUnary {
		return "unary"
	}
	return "stream"
}
