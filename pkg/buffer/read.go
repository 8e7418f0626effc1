package buffer

import (
	"encoding/binary"
	"math"

	"github.com/roadrunner-server/errors"
)

// ReadBuffer is an immutable byte slice with a read offset. It is created
// from a single received frame, consumed once by a sequence of reads, and
// discarded; it is not safe for concurrent use.
type ReadBuffer struct {
	data   []byte
	offset int
}

// NewRead wraps data for sequential reading. data is not copied; the
// caller must not mutate it while the ReadBuffer is in use.
func NewRead(data []byte) *ReadBuffer {
	return &ReadBuffer{data: data}
}

func errTruncated(op errors.Op) error {
	return errors.E(op, errors.Str("framing error: read past end of buffer"))
}

// ReadByte reads one octet.
func (r *ReadBuffer) ReadByte() (byte, error) {
	const op = errors.Op("buffer: read byte")
	if r.offset+1 > len(r.data) {
		return 0, errTruncated(op)
	}
	b := r.data[r.offset]
	r.offset++
	return b, nil
}

// ReadInt reads 4 bytes, big-endian.
func (r *ReadBuffer) ReadInt() (uint32, error) {
	const op = errors.Op("buffer: read int")
	if r.offset+4 > len(r.data) {
		return 0, errTruncated(op)
	}
	v := binary.BigEndian.Uint32(r.data[r.offset : r.offset+4])
	r.offset += 4
	return v, nil
}

// ReadNumber reads an 8-byte IEEE-754 double, big-endian.
func (r *ReadBuffer) ReadNumber() (float64, error) {
	const op = errors.Op("buffer: read number")
	if r.offset+8 > len(r.data) {
		return 0, errTruncated(op)
	}
	bits := binary.BigEndian.Uint64(r.data[r.offset : r.offset+8])
	r.offset += 8
	return math.Float64frombits(bits), nil
}

// ReadLength reads a 7-bit continuation varint.
func (r *ReadBuffer) ReadLength() (uint64, error) {
	const op = errors.Op("buffer: read length")
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, errors.E(op, err)
		}
		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, nil
}

// ReadString reads a UTF-8 string prefixed by a 4-byte big-endian byte
// length.
func (r *ReadBuffer) ReadString() (string, error) {
	const op = errors.Op("buffer: read string")
	n, err := r.ReadInt()
	if err != nil {
		return "", errors.E(op, err)
	}
	if r.offset+int(n) > len(r.data) {
		return "", errTruncated(op)
	}
	s := string(r.data[r.offset : r.offset+int(n)])
	r.offset += int(n)
	return s, nil
}

// ReadBytes reads a varint-prefixed raw byte blob. The returned slice
// aliases the underlying ReadBuffer storage and must be copied by the
// caller before the buffer is reused or discarded.
func (r *ReadBuffer) ReadBytes() ([]byte, error) {
	const op = errors.Op("buffer: read bytes")
	n, err := r.ReadLength()
	if err != nil {
		return nil, errors.E(op, err)
	}
	if r.offset+int(n) > len(r.data) {
		return nil, errTruncated(op)
	}
	b := r.data[r.offset : r.offset+int(n)]
	r.offset += int(n)
	return b, nil
}

// Remaining returns the unread tail of the buffer without advancing the
// offset.
func (r *ReadBuffer) Remaining() []byte {
	return r.data[r.offset:]
}

// Len returns the number of unread bytes.
func (r *ReadBuffer) Len() int {
	return len(r.data) - r.offset
}
