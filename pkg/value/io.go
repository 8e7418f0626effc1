package value

import "github.com/harborbridge/wiremux/pkg/buffer"

// Writer is a thin pass-through over a *buffer.WriteBuffer that the tag
// registry writes through. A Writer never owns or commits its underlying
// buffer — the caller assembling a full frame (see pkg/message) does.
type Writer struct {
	wb *buffer.WriteBuffer
}

// NewWriter wraps wb.
func NewWriter(wb *buffer.WriteBuffer) *Writer {
	return &Writer{wb: wb}
}

func (w *Writer) writeTag(tag int32) {
	w.wb.WriteInt(uint32(tag)) //nolint:gosec
}

// WriteInt writes a fixed-width 4-byte integer, used by composite encoders
// for counts and lengths.
func (w *Writer) WriteInt(v uint32) { w.wb.WriteInt(v) }

// WriteString writes a length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) { w.wb.WriteString(s) }

// WriteBytes writes a varint-length-prefixed raw byte blob.
func (w *Writer) WriteBytes(b []byte) { w.wb.WriteBytes(b) }

// WriteLenString writes b as a 4-byte-length-prefixed blob (the "lenstr"
// wire shape), used by the JSON fallback tag which is textual but not a
// Go string at the call site.
func (w *Writer) WriteLenString(b []byte) { w.wb.WriteString(string(b)) }

// Reader is a thin pass-through over a *buffer.ReadBuffer that the tag
// registry reads through.
type Reader struct {
	rb *buffer.ReadBuffer
}

// NewReader wraps rb.
func NewReader(rb *buffer.ReadBuffer) *Reader {
	return &Reader{rb: rb}
}

func (r *Reader) readTag() (int32, error) {
	v, err := r.rb.ReadInt()
	return int32(v), err //nolint:gosec
}

// ReadInt reads a fixed-width 4-byte integer.
func (r *Reader) ReadInt() (uint32, error) { return r.rb.ReadInt() }

// ReadString reads a length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) { return r.rb.ReadString() }

// ReadBytes reads a varint-length-prefixed raw byte blob. The returned
// slice is a fresh copy, safe to retain past the call.
func (r *Reader) ReadBytes() ([]byte, error) {
	b, err := r.rb.ReadBytes()
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// ReadLenString reads a 4-byte-length-prefixed blob (the "lenstr" wire
// shape) and returns its raw bytes, used by the JSON fallback tag.
func (r *Reader) ReadLenString() ([]byte, error) {
	s, err := r.rb.ReadString()
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}
