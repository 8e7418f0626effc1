package value_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harborbridge/wiremux/pkg/buffer"
	"github.com/harborbridge/wiremux/pkg/value"
)

func encodeDefault(t *testing.T, v any) []byte {
	t.Helper()
	var got []byte
	w := buffer.New(func(data []byte) error {
		got = append([]byte(nil), data...)
		return nil
	})
	require.NoError(t, value.Encode(w, v))
	require.NoError(t, w.Commit())
	return got
}

func TestRecordEncodingIsByteExact(t *testing.T) {
	got := encodeDefault(t, value.Record{"k": "v"})
	want := []byte{
		0x00, 0x00, 0x00, 0x04, // tag 4 = Record
		0x00, 0x00, 0x00, 0x01, // count = 1
		0x00, 0x00, 0x00, 0x01, 0x6B, // "k"
		0x00, 0x00, 0x00, 0x00, // tag 0 = JSON
		0x00, 0x00, 0x00, 0x03, 0x22, 0x76, 0x22, // "v"
	}
	require.Equal(t, want, got)
}

func TestJSONRoundTrip(t *testing.T) {
	cases := []struct{ in, want any }{
		{float64(42), float64(42)},
		{"hello", "hello"},
		{true, true},
		{nil, nil},
		{[]any{float64(1), "two", nil}, []any{float64(1), "two", nil}},
		// A plain map is encoded under the Record tag and decodes as a Record.
		{map[string]any{"a": float64(1)}, value.Record{"a": float64(1)}},
	}
	for _, c := range cases {
		got := encodeDefault(t, c.in)
		decoded, err := value.Decode(buffer.NewRead(got))
		require.NoError(t, err)
		require.Equal(t, c.want, decoded)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	b := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	got := encodeDefault(t, b)
	decoded, err := value.Decode(buffer.NewRead(got))
	require.NoError(t, err)
	require.Equal(t, b, decoded)
}

func TestNoneRoundTrip(t *testing.T) {
	got := encodeDefault(t, value.None{})
	decoded, err := value.Decode(buffer.NewRead(got))
	require.NoError(t, err)
	require.Equal(t, value.None{}, decoded)
}

func TestArrayRoundTrip(t *testing.T) {
	arr := []any{float64(1), "two", value.None{}, []byte{1, 2}}
	got := encodeDefault(t, arr)
	decoded, err := value.Decode(buffer.NewRead(got))
	require.NoError(t, err)
	require.Equal(t, arr, decoded)
}

func TestRecordRoundTrip(t *testing.T) {
	rec := value.Record{"name": "ok", "count": float64(3)}
	got := encodeDefault(t, rec)
	decoded, err := value.Decode(buffer.NewRead(got))
	require.NoError(t, err)
	require.Equal(t, rec, decoded)
}

func TestRecordDropsCallables(t *testing.T) {
	rec := value.Record{"keep": "yes", "fn": func() {}}
	got := encodeDefault(t, rec)
	decoded, err := value.Decode(buffer.NewRead(got))
	require.NoError(t, err)
	require.Equal(t, value.Record{"keep": "yes"}, decoded)
}

func TestDecodeArgsNullNormalization(t *testing.T) {
	var got []byte
	w := buffer.New(func(data []byte) error {
		got = append([]byte(nil), data...)
		return nil
	})
	require.NoError(t, value.Encode(w, []any{float64(1), nil, "x"}))
	require.NoError(t, w.Commit())

	args, err := value.Default.DecodeArgs(value.NewReader(buffer.NewRead(got)))
	require.NoError(t, err)
	require.Equal(t, []any{float64(1), value.None{}, "x"}, args)
}

func TestUnknownTagIsFatal(t *testing.T) {
	var got []byte
	w := buffer.New(func(data []byte) error {
		got = append([]byte(nil), data...)
		return nil
	})
	w.WriteInt(99)
	require.NoError(t, w.Commit())

	_, err := value.Decode(buffer.NewRead(got))
	require.Error(t, err)
}

func TestDuplicateTagRegistrationPanics(t *testing.T) {
	c := value.New()
	require.Panics(t, func() {
		c.Register(value.TagBytes, func(any) bool { return false }, nil, nil)
	})
}

func TestPackedMsgpackTag(t *testing.T) {
	c := value.New()
	value.RegisterMsgpackTag(c)

	var got []byte
	w := buffer.New(func(data []byte) error {
		got = append([]byte(nil), data...)
		return nil
	})
	in := value.Packed{Value: map[string]any{"x": float64(1)}}
	require.NoError(t, c.Encode(value.NewWriter(w), in))
	require.NoError(t, w.Commit())

	decoded, err := c.Decode(value.NewReader(buffer.NewRead(got)))
	require.NoError(t, err)
	packed, ok := decoded.(value.Packed)
	require.True(t, ok)
	require.Equal(t, map[string]any{"x": float64(1)}, packed.Value)
}
