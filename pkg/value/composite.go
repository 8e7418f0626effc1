package value

import "reflect"

func matchBytes(v any) bool {
	_, ok := v.([]byte)
	return ok
}

func encodeBytes(w *Writer, v any, _ func(any) error) error {
	w.WriteBytes(v.([]byte))
	return nil
}

func decodeBytes(r *Reader, _ func() (any, error)) (any, error) {
	return r.ReadBytes()
}

func matchArray(v any) bool {
	_, ok := v.([]any)
	return ok
}

func encodeArray(w *Writer, v any, recurse func(any) error) error {
	arr := v.([]any)
	w.WriteInt(uint32(len(arr))) //nolint:gosec
	for _, el := range arr {
		if err := recurse(el); err != nil {
			return err
		}
	}
	return nil
}

func decodeArray(r *Reader, recurse func() (any, error)) (any, error) {
	n, err := r.ReadInt()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, n)
	for i := uint32(0); i < n; i++ {
		el, err := recurse()
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, nil
}

func matchNone(v any) bool {
	_, ok := v.(None)
	return ok
}

func encodeNone(*Writer, any, func(any) error) error { return nil }

func decodeNone(*Reader, func() (any, error)) (any, error) { return None{}, nil }

func matchRecord(v any) bool {
	switch v.(type) {
	case Record, map[string]any:
		return true
	default:
		return false
	}
}

func asRecord(v any) Record {
	switch r := v.(type) {
	case Record:
		return r
	case map[string]any:
		return Record(r)
	default:
		return nil
	}
}

// isCallable reports whether v is a function value, which the Record
// encoder drops as non-transportable.
func isCallable(v any) bool {
	if v == nil {
		return false
	}
	return reflect.ValueOf(v).Kind() == reflect.Func
}

func encodeRecord(w *Writer, v any, recurse func(any) error) error {
	rec := asRecord(v)
	keys := make([]string, 0, len(rec))
	for k, fv := range rec {
		if isCallable(fv) {
			continue
		}
		keys = append(keys, k)
	}
	w.WriteInt(uint32(len(keys))) //nolint:gosec
	for _, k := range keys {
		w.WriteString(k)
		if err := recurse(rec[k]); err != nil {
			return err
		}
	}
	return nil
}

func decodeRecord(r *Reader, recurse func() (any, error)) (any, error) {
	n, err := r.ReadInt()
	if err != nil {
		return nil, err
	}
	rec := make(Record, n)
	for i := uint32(0); i < n; i++ {
		key, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		val, err := recurse()
		if err != nil {
			return nil, err
		}
		rec[key] = val
	}
	return rec, nil
}
