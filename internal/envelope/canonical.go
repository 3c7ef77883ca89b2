// Package envelope implements spec §4.8: envelope verification via
// canonical-JSON HMAC-SHA256, nonce + timestamp window checking. This
// is hand-rolled on the standard library (encoding/json, sort,
// crypto/hmac, crypto/sha256, crypto/subtle) — no library in the
// retrieval pack performs this exact canonicalization (see
// SPEC_FULL.md §B).
package envelope

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Canonicalize re-encodes arbitrary JSON with object keys sorted
// lexicographically, arrays preserved in order, and no insignificant
// whitespace (spec §4.8 step 3).
func Canonicalize(payload []byte) ([]byte, error) {
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []interface{}:
		buf.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}
