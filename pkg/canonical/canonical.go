// Package canonical implements deterministic JSON encoding and the SHA-256
// hash constructions shared by every chain in the ledger (lineage events,
// system events, tenant anchors, anchor digests).
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Marshal encodes v as canonical JSON: UTF-8, object keys sorted
// lexicographically on raw code points, "," and ":" separators with no
// surrounding whitespace, non-ASCII code points preserved unescaped, no
// trailing newline. Numbers are re-emitted verbatim via json.Number so
// integers never pick up float rounding.
func Marshal(v interface{}) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return encode(normalized)
}

// MarshalValue canonicalizes a value that has already been decoded (for
// example the output of Decode), skipping the re-decode step.
func MarshalValue(v interface{}) ([]byte, error) {
	return encode(v)
}

// normalize round-trips v through the strict decoder so maps, structs, and
// raw JSON all funnel through the same key-sorting and number-preserving
// path, and so duplicate object keys are rejected even if v was built from
// a struct that itself came from lenient JSON.
func normalize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal input: %w", err)
	}
	return Decode(raw)
}

// Decode parses raw JSON strictly: object keys must be unique (duplicate
// keys are a validation error, unlike encoding/json which silently keeps
// the last one) and numbers are preserved as json.Number so re-encoding
// does not introduce float rounding.
func Decode(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("canonical: trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (interface{}, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("canonical: unexpected delimiter %q", t)
		}
	default:
		return tok, nil
	}
}

func decodeObject(dec *json.Decoder) (map[string]interface{}, error) {
	obj := make(map[string]interface{})
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("canonical: object key is not a string")
		}
		if _, exists := obj[key]; exists {
			return nil, fmt.Errorf("canonical: duplicate key %q in object", key)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj[key] = val
	}
	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder) ([]interface{}, error) {
	arr := make([]interface{}, 0)
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	// consume closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

// encode writes v (the output of Decode, or anything built from the same
// primitive shapes: map[string]interface{}, []interface{}, json.Number,
// string, bool, nil) as canonical JSON bytes.
func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v interface{}) error {
	switch vv := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if vv {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(vv.String())
	case string:
		encodeString(buf, vv)
	case map[string]interface{}:
		return encodeObject(buf, vv)
	case []interface{}:
		return encodeArray(buf, vv)
	default:
		return fmt.Errorf("canonical: unsupported value type %T", v)
	}
	return nil
}

func encodeObject(buf *bytes.Buffer, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodeString(buf, k)
		buf.WriteByte(':')
		if err := encodeValue(buf, m[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeArray(buf *bytes.Buffer, arr []interface{}) error {
	buf.WriteByte('[')
	for i, e := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(buf, e); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// encodeString writes a JSON string literal without escaping non-ASCII
// code points (the canonical form keeps UTF-8 runes as-is).
func encodeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}
