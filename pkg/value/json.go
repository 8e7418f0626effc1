package value

import jsoniter "github.com/json-iterator/go"

// json is json-iterator configured for drop-in compatibility with
// encoding/json, used only by the tag 0 fallback encoder below.
// encoding/json itself is never imported.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

func registerBuiltins(c *Codec) {
	// JSON fallback is registered first so it is consulted last (reverse
	// registration order) and catches anything no other encoder claims.
	c.Register(TagJSON, matchJSON, encodeJSON, decodeJSON)
	c.Register(TagBytes, matchBytes, encodeBytes, decodeBytes)
	c.Register(TagArray, matchArray, encodeArray, decodeArray)
	c.Register(TagNone, matchNone, encodeNone, decodeNone)
	c.Register(TagRecord, matchRecord, encodeRecord, decodeRecord)
}

func matchJSON(any) bool { return true }

func encodeJSON(w *Writer, v any, _ func(any) error) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.WriteLenString(data)
	return nil
}

func decodeJSON(r *Reader, _ func() (any, error)) (any, error) {
	data, err := r.ReadLenString()
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
