package value

import "github.com/harborbridge/wiremux/pkg/buffer"

// Default is a ready-to-use Codec carrying only the five reserved tags.
// Callers needing the msgpack or protobuf extension tags construct their
// own Codec and call RegisterMsgpackTag / RegisterProtoTag explicitly.
var Default = New()

// Encode is a convenience wrapper encoding v with Default into wb.
func Encode(wb *buffer.WriteBuffer, v any) error {
	return Default.Encode(NewWriter(wb), v)
}

// Decode is a convenience wrapper decoding a value with Default from rb.
func Decode(rb *buffer.ReadBuffer) (any, error) {
	return Default.Decode(NewReader(rb))
}
