// Package value implements the self-describing typed-value wire codec:
// a tag-dispatched encoder/decoder with extensible registries, supporting
// recursive composite values (arrays and records) alongside JSON-fallback
// scalars, raw byte blobs, and the distinguished absent value.
//
// The JSON-fallback encoder (tag 0) claims every value its predicate sees
// last, so it accepts anything json-iterator can marshal. Register a more
// specific encoder first (via Codec.Register) for any type that should
// not silently round-trip through JSON — cyclic structures or values
// carrying callables will otherwise fail or lose data at that boundary.
package value

import (
	"github.com/roadrunner-server/errors"
)

// Reserved tags, fixed by the wire format.
const (
	TagJSON   int32 = 0
	TagBytes  int32 = 1
	TagArray  int32 = 2
	TagNone   int32 = 3
	TagRecord int32 = 4
)

// None is the distinguished absent value, distinct from any scalar and
// from JSON null once decoded through a Request/Notification args array.
type None struct{}

// Record is a string-keyed map of values. Fields holding a callable are
// dropped on encode, since they are not transportable.
type Record map[string]any

// Predicate reports whether an encoder handles v.
type Predicate func(v any) bool

// Encoder writes v's tag-specific payload using recurse to encode any
// nested values.
type Encoder func(w *Writer, v any, recurse func(any) error) error

// Decoder reads a tag's payload using recurse to decode any nested values.
type Decoder func(r *Reader, recurse func() (any, error)) (any, error)

type registeredEncoder struct {
	tag    int32
	match  Predicate
	encode Encoder
}

// Codec holds the encoder and decoder registries. The zero value is not
// usable; construct with New, which pre-registers the five reserved tags.
type Codec struct {
	encoders []registeredEncoder // registration order; consulted in reverse
	decoders map[int32]Decoder
	usedTags map[int32]bool
}

// New returns a Codec with the JSON fallback, Bytes, Array, None, and
// Record tags registered.
func New() *Codec {
	c := &Codec{
		decoders: make(map[int32]Decoder),
		usedTags: make(map[int32]bool),
	}
	registerBuiltins(c)
	return c
}

// Register adds an encoder/decoder pair under tag. Encoders are consulted
// in reverse registration order when encoding, so an encoder registered
// after New's builtins takes precedence over them. Registering a tag that
// is already in use is a contract violation and panics.
func (c *Codec) Register(tag int32, match Predicate, enc Encoder, dec Decoder) {
	if c.usedTags[tag] {
		panic("value: duplicate tag registration")
	}
	c.usedTags[tag] = true
	c.encoders = append(c.encoders, registeredEncoder{tag: tag, match: match, encode: enc})
	c.decoders[tag] = dec
}

// Encode writes v's tag and payload to w.
func (c *Codec) Encode(w *Writer, v any) error {
	const op = errors.Op("value: encode")
	for i := len(c.encoders) - 1; i >= 0; i-- {
		enc := c.encoders[i]
		if !enc.match(v) {
			continue
		}
		w.writeTag(enc.tag)
		if err := enc.encode(w, v, func(nested any) error { return c.Encode(w, nested) }); err != nil {
			return errors.E(op, err)
		}
		return nil
	}
	return errors.E(op, errors.Str("no encoder matched value"))
}

// Decode reads a tag and its payload from r.
func (c *Codec) Decode(r *Reader) (any, error) {
	const op = errors.Op("value: decode")
	tag, err := r.readTag()
	if err != nil {
		return nil, errors.E(op, err)
	}
	dec, ok := c.decoders[tag]
	if !ok {
		return nil, errors.E(op, errors.Str("unknown tag"))
	}
	v, err := dec(r, func() (any, error) { return c.Decode(r) })
	if err != nil {
		return nil, errors.E(op, err)
	}
	return v, nil
}

// DecodeArgs decodes a Request/Notification argument array, substituting
// the absent value for any element that decodes as JSON null.
func (c *Codec) DecodeArgs(r *Reader) ([]any, error) {
	const op = errors.Op("value: decode args")
	args, err := c.Decode(r)
	if err != nil {
		return nil, errors.E(op, err)
	}
	arr, ok := args.([]any)
	if !ok {
		return nil, errors.E(op, errors.Str("args payload was not an array"))
	}
	for i, a := range arr {
		if isJSONNull(a) {
			arr[i] = None{}
		}
	}
	return arr, nil
}

func isJSONNull(v any) bool {
	return v == nil
}
