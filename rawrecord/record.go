// Package rawrecord wraps arbitrary JSON objects whose field casing is not
// guaranteed to be stable across endpoints or releases. Lookups resolve an
// ordered list of candidate field names case-insensitively, so schema drift
// is absorbed here instead of leaking into the mappers.
package rawrecord

import (
	"encoding/json"
	"strings"

	"github.com/spasys/billing-console/coerce"
)

// Record is an immutable view over a decoded JSON object. The zero value is
// an empty record.
type Record struct {
	fields  map[string]any
	lowered map[string]any
}

// New indexes every key twice, as given and lower-cased, so Lookup resolves
// regardless of the source's casing convention.
func New(fields map[string]any) Record {
	r := Record{
		fields:  make(map[string]any, len(fields)),
		lowered: make(map[string]any, len(fields)),
	}
	for k, v := range fields {
		r.fields[k] = v
		r.lowered[strings.ToLower(k)] = v
	}
	return r
}

// Lookup resolves a single key, trying the exact spelling first and the
// lower-cased spelling second.
func (r Record) Lookup(key string) (any, bool) {
	if v, ok := r.fields[key]; ok {
		return v, true
	}
	if v, ok := r.lowered[strings.ToLower(key)]; ok {
		return v, true
	}
	return nil, false
}

// Text returns the first candidate whose value is non-nil and whose trimmed
// string form is non-empty.
func (r Record) Text(keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := r.Lookup(key)
		if !ok || v == nil {
			continue
		}
		if s := strings.TrimSpace(stringify(v)); s != "" {
			return s, true
		}
	}
	return "", false
}

// Int returns the first candidate that coerces to an integer.
func (r Record) Int(keys ...string) (int64, bool) {
	for _, key := range keys {
		v, ok := r.Lookup(key)
		if !ok {
			continue
		}
		if n, ok := coerce.ToInteger(v); ok {
			return n, true
		}
	}
	return 0, false
}

// Amount returns the first candidate whose coerced amount is non-zero. When
// every present candidate coerces to zero, the first present candidate's
// amount is returned, so a genuine zero survives. Missing candidates yield 0.
func (r Record) Amount(keys ...string) float64 {
	var first float64
	seen := false
	for _, key := range keys {
		v, ok := r.Lookup(key)
		if !ok {
			continue
		}
		amount := coerce.ToAmount(v)
		if amount != 0 {
			return amount
		}
		if !seen {
			first = amount
			seen = true
		}
	}
	return first
}

// Len reports the number of distinct source keys.
func (r Record) Len() int {
	return len(r.fields)
}

// MarshalJSON emits the underlying object unchanged, so records can be passed
// through to callers that want the raw shape.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.fields)
}

// UnmarshalJSON decodes a JSON object and indexes it.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = New(fields)
	return nil
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return strings.Trim(string(b), `"`)
	}
}
