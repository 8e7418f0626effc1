// Package message implements the RPC message frame layer above pkg/value:
// Request, Notification, Reply, ReplyError, and Cancel, each carrying a
// numeric call id, encoded as msgType:byte | id:int32 | payload.
package message

import (
	"fmt"

	"github.com/roadrunner-server/errors"

	"github.com/harborbridge/wiremux/pkg/buffer"
	"github.com/harborbridge/wiremux/pkg/value"
)

// Wire message types.
const (
	TypeRequest      byte = 1
	TypeNotification byte = 2
	TypeReply        byte = 3
	TypeReplyError   byte = 4
	TypeCancel       byte = 5
)

// Message is the tagged union of the five RPC frame variants.
type Message interface {
	isMessage()
}

// Request asks the peer to invoke method with args and expects a Reply or
// ReplyError carrying the same Id.
type Request struct {
	ID     int32
	Method string
	Args   []any
}

// Notification is a Request that expects no reply.
type Notification struct {
	ID     int32
	Method string
	Args   []any
}

// Reply carries the successful result of a prior Request.
type Reply struct {
	ID     int32
	Result any
}

// ReplyError carries a failed Request's error, rehydrated into an
// AppError when the wire value carries the error marker (see AppError).
type ReplyError struct {
	ID    int32
	Error any
}

// Cancel tells the peer the caller no longer awaits the reply for ID; it
// carries no payload.
type Cancel struct {
	ID int32
}

func (Request) isMessage()      {}
func (Notification) isMessage() {}
func (Reply) isMessage()        {}
func (ReplyError) isMessage()   {}
func (Cancel) isMessage()       {}

// Encode writes m to a fresh write buffer and commits it through sink.
// It uses the given value.Codec for the payload; pass value.Default for
// the five reserved tags only.
func Encode(codec *value.Codec, sink buffer.Sink, m Message) error {
	const op = errors.Op("message: encode")
	w := buffer.New(sink)
	if err := encodeBody(codec, w, m); err != nil {
		return errors.E(op, err)
	}
	if err := w.Commit(); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func encodeBody(codec *value.Codec, w *buffer.WriteBuffer, m Message) error {
	switch msg := m.(type) {
	case Request:
		w.WriteByte(TypeRequest).WriteInt(uint32(msg.ID)) //nolint:gosec
		w.WriteString(msg.Method)
		return codec.Encode(value.NewWriter(w), argsOrEmpty(msg.Args))
	case Notification:
		w.WriteByte(TypeNotification).WriteInt(uint32(msg.ID)) //nolint:gosec
		w.WriteString(msg.Method)
		return codec.Encode(value.NewWriter(w), argsOrEmpty(msg.Args))
	case Reply:
		w.WriteByte(TypeReply).WriteInt(uint32(msg.ID)) //nolint:gosec
		return codec.Encode(value.NewWriter(w), msg.Result)
	case ReplyError:
		w.WriteByte(TypeReplyError).WriteInt(uint32(msg.ID)) //nolint:gosec
		return codec.Encode(value.NewWriter(w), msg.Error)
	case Cancel:
		w.WriteByte(TypeCancel).WriteInt(uint32(msg.ID)) //nolint:gosec
		return nil
	default:
		return errors.E(errors.Op("message: encode"), errors.Str("unknown message variant"))
	}
}

func argsOrEmpty(args []any) []any {
	if args == nil {
		return []any{}
	}
	return args
}

// Decode reads the leading byte and dispatches to the matching parser,
// yielding a tagged union value. Unknown types and truncated frames
// produce a parse failure that must be surfaced to the caller; the raw
// frame bytes are folded into the returned error so a caller's logger
// can dump them for diagnosis.
func Decode(codec *value.Codec, r *buffer.ReadBuffer) (Message, error) {
	const op = errors.Op("message: decode")
	raw := append([]byte(nil), r.Remaining()...)
	msg, err := decodeBody(codec, r)
	if err != nil {
		return nil, errors.E(op, errors.Str(fmt.Sprintf("%v (raw frame % x)", err, raw)))
	}
	return msg, nil
}

func decodeBody(codec *value.Codec, r *buffer.ReadBuffer) (Message, error) {
	mtype, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	id, err := r.ReadInt()
	if err != nil {
		return nil, err
	}

	switch mtype {
	case TypeRequest, TypeNotification:
		method, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		args, err := codec.DecodeArgs(value.NewReader(r))
		if err != nil {
			return nil, err
		}
		if mtype == TypeRequest {
			return Request{ID: int32(id), Method: method, Args: args}, nil //nolint:gosec
		}
		return Notification{ID: int32(id), Method: method, Args: args}, nil //nolint:gosec
	case TypeReply:
		result, err := codec.Decode(value.NewReader(r))
		if err != nil {
			return nil, err
		}
		return Reply{ID: int32(id), Result: result}, nil //nolint:gosec
	case TypeReplyError:
		errVal, err := codec.Decode(value.NewReader(r))
		if err != nil {
			return nil, err
		}
		if app, ok := asAppError(errVal); ok {
			return ReplyError{ID: int32(id), Error: app}, nil //nolint:gosec
		}
		return ReplyError{ID: int32(id), Error: errVal}, nil //nolint:gosec
	case TypeCancel:
		return Cancel{ID: int32(id)}, nil //nolint:gosec
	default:
		return nil, errors.Str("unknown message type")
	}
}
