// Package buffer implements the framed byte-buffer primitives that every
// higher layer (pkg/value, pkg/message, pkg/mux) writes and reads through:
// fixed-width integers and doubles, UTF-8 strings prefixed by a 4-byte
// length, and varint-prefixed raw byte blobs.
package buffer

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/roadrunner-server/errors"

	"github.com/harborbridge/wiremux/internal/bufpool"
)

// Sink receives the finished contents of a committed WriteBuffer. It is
// invoked exactly once, from Commit, and must not retain data beyond the
// call unless it copies it first.
type Sink func(data []byte) error

// WriteBuffer is a growable, write-once byte region. Callers chain a
// sequence of primitive writes and terminate with exactly one Commit.
// A WriteBuffer is not safe for concurrent use.
type WriteBuffer struct {
	raw       *[]byte
	buf       []byte
	sink      Sink
	committed bool
}

// New returns a WriteBuffer whose Commit publishes to sink.
func New(sink Sink) *WriteBuffer {
	raw := bufpool.GetRaw()
	return &WriteBuffer{raw: raw, buf: *raw, sink: sink}
}

func (w *WriteBuffer) checkLive() {
	if w.committed {
		panic("buffer: write after commit")
	}
}

// WriteByte appends a single octet.
func (w *WriteBuffer) WriteByte(b byte) *WriteBuffer {
	w.checkLive()
	w.buf = append(w.buf, b)
	return w
}

// WriteInt appends v as 4 bytes, big-endian.
func (w *WriteBuffer) WriteInt(v uint32) *WriteBuffer {
	w.checkLive()
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
	return w
}

// WriteNumber appends v as an 8-byte IEEE-754 double, big-endian.
func (w *WriteBuffer) WriteNumber(v float64) *WriteBuffer {
	w.checkLive()
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v))
	w.buf = append(w.buf, tmp[:]...)
	return w
}

// WriteLength appends n as a 7-bit continuation varint: low 7 bits first,
// high bit set while more groups remain.
func (w *WriteBuffer) WriteLength(n uint64) *WriteBuffer {
	w.checkLive()
	for {
		b := byte(n & 0x7F)
		n >>= 7
		if n != 0 {
			w.buf = append(w.buf, b|0x80)
			continue
		}
		w.buf = append(w.buf, b)
		break
	}
	return w
}

// WriteString appends s as UTF-8 bytes prefixed by their byte length as a
// 4-byte big-endian int32. The prefix counts bytes, not runes.
func (w *WriteBuffer) WriteString(s string) *WriteBuffer {
	w.checkLive()
	w.WriteInt(uint32(len(s))) //nolint:gosec
	w.buf = append(w.buf, s...)
	return w
}

// WriteBytes appends b prefixed by a varint byte length.
func (w *WriteBuffer) WriteBytes(b []byte) *WriteBuffer {
	w.checkLive()
	w.WriteLength(uint64(len(b)))
	w.buf = append(w.buf, b...)
	return w
}

// Len returns the number of bytes written so far.
func (w *WriteBuffer) Len() int {
	return len(w.buf)
}

// Commit publishes the written bytes to the sink and spends the buffer.
// Calling Commit twice, or writing after Commit, is a contract violation
// and panics.
func (w *WriteBuffer) Commit() error {
	if w.committed {
		panic("buffer: commit after commit")
	}
	w.committed = true
	err := w.sink(w.buf)
	*w.raw = w.buf[:0]
	bufpool.PutRaw(w.raw)
	w.raw = nil
	w.buf = nil
	if err != nil {
		const op = errors.Op("buffer: commit")
		return errors.E(op, err)
	}
	return nil
}

// ValidUTF8 reports whether s is valid UTF-8; WriteString does not
// validate, callers that need the guarantee check explicitly.
func ValidUTF8(s string) bool {
	return utf8.ValidString(s)
}
