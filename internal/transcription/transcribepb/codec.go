package transcribepb

import (
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/mem"
)

// CodecName is the gRPC content-subtype carried by every TranscribeService call.
const CodecName = "itowire"

type wireMessage interface {
	marshal([]byte) []byte
	unmarshal([]byte) error
}

type codec struct{}

func init() {
	encoding.RegisterCodecV2(codec{})
}

func (codec) Name() string { return CodecName }

func (codec) Marshal(v any) (mem.BufferSlice, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("transcribepb: cannot marshal %T", v)
	}
	return mem.BufferSlice{mem.SliceBuffer(m.marshal(nil))}, nil
}

func (codec) Unmarshal(data mem.BufferSlice, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("transcribepb: cannot unmarshal into %T", v)
	}
	return m.unmarshal(data.Materialize())
}

// Marshal encodes a message outside of gRPC, e.g. for tests and fixtures.
func Marshal(m wireMessage) []byte {
	return m.marshal(nil)
}

func Unmarshal(b []byte, m wireMessage) error {
	return m.unmarshal(b)
}
