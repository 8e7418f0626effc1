package value

import (
	"github.com/roadrunner-server/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// TagProto is the extension tag this repo registers for protobuf message
// values (same proto.Marshal/proto.Unmarshal calls as a fixed codec-flag
// switch would use, now behind the generic typed-value registry instead).
const TagProto int32 = 6

// ProtoFactory produces an empty, concrete message to unmarshal into for
// a given wire-carried full type name.
type ProtoFactory func(fullName protoreflect.FullName) (proto.Message, error)

// RegisterProtoTag adds the Proto tag to c. factory must resolve any full
// name the peer may send to a concrete proto.Message; decoding a name it
// doesn't recognize is a decode error, not a panic.
func RegisterProtoTag(c *Codec, factory ProtoFactory) {
	c.Register(TagProto, matchProto, encodeProto, decodeProtoWith(factory))
}

func matchProto(v any) bool {
	_, ok := v.(proto.Message)
	return ok
}

func encodeProto(w *Writer, v any, _ func(any) error) error {
	msg := v.(proto.Message)
	w.WriteString(string(msg.ProtoReflect().Descriptor().FullName()))
	data, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	w.WriteBytes(data)
	return nil
}

func decodeProtoWith(factory ProtoFactory) Decoder {
	return func(r *Reader, _ func() (any, error)) (any, error) {
		const op = errors.Op("value: decode proto")
		name, err := r.ReadString()
		if err != nil {
			return nil, errors.E(op, err)
		}
		data, err := r.ReadBytes()
		if err != nil {
			return nil, errors.E(op, err)
		}
		if factory == nil {
			return nil, errors.E(op, errors.Str("no ProtoFactory registered"))
		}
		msg, err := factory(protoreflect.FullName(name))
		if err != nil {
			return nil, errors.E(op, err)
		}
		if err := proto.Unmarshal(data, msg); err != nil {
			return nil, errors.E(op, err)
		}
		return msg, nil
	}
}
