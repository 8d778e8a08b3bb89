package privacy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Record is an ordered mapping from field name to value.
//
// Text values are held as string. Every other JSON value (numbers, booleans,
// null, nested objects) is held verbatim as json.RawMessage so it can be
// re-serialized without change.
type Record struct {
	fields *orderedmap.OrderedMap[string, any]
}

// NewRecord returns an empty record
func NewRecord() *Record {
	return &Record{fields: orderedmap.New[string, any]()}
}

// Set stores a value. A new key is appended; an existing key keeps its position.
func (r *Record) Set(key string, value any) {
	if r.fields == nil {
		r.fields = orderedmap.New[string, any]()
	}
	r.fields.Set(key, value)
}

// Get returns the value stored under key
func (r *Record) Get(key string) (any, bool) {
	if r == nil || r.fields == nil {
		return nil, false
	}
	return r.fields.Get(key)
}

// Text returns the value under key when it is a non-empty string
func (r *Record) Text(key string) (string, bool) {
	v, ok := r.Get(key)
	if !ok {
		return "", false
	}
	return textValue(v)
}

// Keys returns the field names in insertion order
func (r *Record) Keys() []string {
	if r == nil || r.fields == nil {
		return nil
	}
	keys := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Len returns the number of fields
func (r *Record) Len() int {
	if r == nil || r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// Clone returns a shallow copy. Values are immutable strings or raw JSON, so
// a shallow copy is enough to keep the two records independent.
func (r *Record) Clone() *Record {
	out := NewRecord()
	if r == nil || r.fields == nil {
		return out
	}
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		out.fields.Set(pair.Key, pair.Value)
	}
	return out
}

// MarshalJSON encodes the record as a JSON object preserving field order.
// HTML characters are written as is.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if r != nil && r.fields != nil {
		for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
			if buf.Len() > 1 {
				buf.WriteByte(',')
			}
			key, err := marshalNoEscape(pair.Key)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')

			val, err := marshalNoEscape(pair.Value)
			if err != nil {
				return nil, fmt.Errorf("failed to encode field %q: %w", pair.Key, err)
			}
			buf.Write(val)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the order of its keys.
// A repeated key keeps its first position and its last value.
func (r *Record) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return errors.New("record payload is not valid JSON")
	}
	if trimmed[0] != '{' {
		return errors.New("record payload is not a JSON object")
	}

	raw := orderedmap.New[string, json.RawMessage]()
	if err := raw.UnmarshalJSON(trimmed); err != nil {
		return err
	}

	out := NewRecord()
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		value := bytes.TrimSpace(pair.Value)
		if len(value) > 0 && value[0] == '"' {
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return fmt.Errorf("failed to decode field %q: %w", pair.Key, err)
			}
			out.Set(pair.Key, s)
			continue
		}
		out.Set(pair.Key, json.RawMessage(value))
	}

	*r = *out
	return nil
}

// DecodeRecord decodes a serialized payload. Anything that is not a JSON
// object yields an empty record and the decode error.
func DecodeRecord(payload []byte) (*Record, error) {
	rec := NewRecord()
	if err := rec.UnmarshalJSON(payload); err != nil {
		return NewRecord(), err
	}
	return rec, nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
