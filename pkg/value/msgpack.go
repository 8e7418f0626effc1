package value

import (
	"github.com/vmihailenco/msgpack/v5"
)

// TagPacked is the extension tag this repo registers for msgpack-backed
// values, an opaque user tag above the reserved wire tags 0-4.
const TagPacked int32 = 5

// Packed wraps a value that should be encoded through msgpack instead of
// the recursive tag dispatch, for denser wire encoding of large
// homogeneous payloads.
type Packed struct {
	Value any
}

// RegisterMsgpackTag adds the Packed tag to c. Callers opt in per-codec;
// it is not registered by New.
func RegisterMsgpackTag(c *Codec) {
	c.Register(TagPacked, matchPacked, encodePacked, decodePacked)
}

func matchPacked(v any) bool {
	_, ok := v.(Packed)
	return ok
}

func encodePacked(w *Writer, v any, _ func(any) error) error {
	data, err := msgpack.Marshal(v.(Packed).Value)
	if err != nil {
		return err
	}
	w.WriteBytes(data)
	return nil
}

func decodePacked(r *Reader, _ func() (any, error)) (any, error) {
	data, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	var out any
	if err := msgpack.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return Packed{Value: out}, nil
}
