package wire

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protowire"
)

func init() {
	encoding.RegisterCodec(Codec{})
}

// CodecName is the gRPC content-subtype this package registers itself
// under. Dialing with grpc.CallContentSubtype(CodecName) routes every
// call through Codec instead of grpc-go's default proto codec, since
// this module has no protoc-generated bindings (out of scope, spec.md
// §1) and speaks its own envelope instead.
const CodecName = "fsc-json-v1"

// schemaVersion is written ahead of every payload as a protobuf-style
// varint, the way a real wire format reserves room to evolve its
// framing without breaking old readers. Only version 1 exists today.
const schemaVersion = 1

// Codec implements google.golang.org/grpc/encoding.Codec. It frames a
// JSON-encoded ClientMessage/ServerMessage with a leading varint
// version tag, using protowire's varint helpers the same way a
// hand-rolled length-delimited record format would — the closest this
// module gets to the protoc-generated wire format it stands in for.
type Codec struct{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal payload: %w", err)
	}
	out := protowire.AppendVarint(nil, schemaVersion)
	out = append(out, body...)
	return out, nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	version, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return fmt.Errorf("wire: malformed frame: truncated version tag")
	}
	if version != schemaVersion {
		return fmt.Errorf("wire: unsupported schema version %d", version)
	}
	if err := json.Unmarshal(data[n:], v); err != nil {
		return fmt.Errorf("wire: unmarshal payload: %w", err)
	}
	return nil
}
