package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Record is one row of field name -> scalar value that remembers the order in
// which fields were added. Values are string, float64, bool, time.Time or nil.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord returns an empty record sized for n fields.
func NewRecord(n int) *Record {
	return &Record{
		keys:   make([]string, 0, n),
		values: make(map[string]any, n),
	}
}

// RecordOf builds a record from alternating key, value pairs.
// It is mostly useful in tests.
func RecordOf(pairs ...any) *Record {
	r := NewRecord(len(pairs) / 2)
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(fmt.Sprint(pairs[i]), pairs[i+1])
	}
	return r
}

// Set stores v under key. A new key is appended to the field order; an
// existing key keeps its position.
func (r *Record) Set(key string, v any) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Values returns the values in field order.
func (r *Record) Values() []any {
	if r == nil {
		return nil
	}
	out := make([]any, len(r.keys))
	for i, k := range r.keys {
		out[i] = r.values[k]
	}
	return out
}

// Map returns a copy of the fields as a plain map. Field order is lost.
func (r *Record) Map() map[string]any {
	if r == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(r.keys))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the record as a JSON object in field order.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// recordFromDocument rebuilds a record from stored fields, dropping
// bookkeeping fields. Fields named in order come first, in that order; any
// other fields follow alphabetically.
func recordFromDocument(fields map[string]any, order []string) *Record {
	r := NewRecord(len(fields))
	for _, k := range order {
		if IsBookkeepingField(k) {
			continue
		}
		if v, ok := fields[k]; ok {
			r.Set(k, v)
		}
	}

	var extra []string
	for k := range fields {
		if IsBookkeepingField(k) {
			continue
		}
		if _, ok := r.values[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		r.Set(k, fields[k])
	}
	return r
}

// FormatValue renders a field value the way it is shown and searched.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(t)
	}
}
