package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

type fieldKind int

const (
	stringField fieldKind = iota
	nullableStringField
	boolField
	intField
	nullableFloatField
	timeField
	nullableTimeField
)

// field maps a JSON key of an update body to its column.
type field struct {
	column string
	kind   fieldKind
}

// Patch is a partial update body. Only keys present in the request are
// applied; an explicit null clears a nullable column.
type Patch map[string]json.RawMessage

// ParsePatch decodes a JSON object body.
func ParsePatch(body []byte) (Patch, error) {
	var p Patch
	if err := json.Unmarshal(body, &p); err != nil || p == nil {
		return nil, newValidationError("body", "must be a JSON object")
	}
	return p, nil
}

func (p Patch) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Keys returns the supplied keys in sorted order.
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ID returns the "id" member every PUT and DELETE body carries.
func (p Patch) ID() (string, error) {
	raw, ok := p["id"]
	if !ok || isNull(raw) {
		return "", newValidationError("id", "is required")
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil || id == "" {
		return "", newValidationError("id", "must be a non-empty string")
	}
	return id, nil
}

// StringList decodes key as a list of IDs. A null list counts as supplied
// and empty.
func (p Patch) StringList(key string) ([]string, bool, error) {
	raw, ok := p[key]
	if !ok {
		return nil, false, nil
	}
	if isNull(raw) {
		return []string{}, true, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, true, newValidationError(key, "must be a list of strings")
	}
	if list == nil {
		list = []string{}
	}
	return list, true, nil
}

// Bool decodes an optional boolean member.
func (p Patch) Bool(key string) (value, ok bool, err error) {
	raw, present := p[key]
	if !present || isNull(raw) {
		return false, false, nil
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, true, newValidationError(key, "must be a boolean")
	}
	return value, true, nil
}

// updates converts the supplied keys known to fields into a column map for
// gorm's Updates. Unknown keys are ignored.
func (p Patch) updates(fields map[string]field) (map[string]any, error) {
	out := make(map[string]any)
	for key, raw := range p {
		f, ok := fields[key]
		if !ok {
			continue
		}
		v, err := decodeField(raw, f.kind)
		if err != nil {
			return nil, newValidationError(key, err.Error())
		}
		out[f.column] = v
	}
	return out, nil
}

// outside returns the supplied keys not in allowed, ignoring "id".
func (p Patch) outside(allowed map[string]field) []string {
	var extra []string
	for _, key := range p.Keys() {
		if key == "id" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			extra = append(extra, key)
		}
	}
	return extra
}

func decodeField(raw json.RawMessage, kind fieldKind) (any, error) {
	null := isNull(raw)

	switch kind {
	case stringField:
		var s string
		if null || json.Unmarshal(raw, &s) != nil {
			return nil, fmt.Errorf("must be a string")
		}
		return s, nil
	case nullableStringField:
		if null {
			return nil, nil
		}
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil, fmt.Errorf("must be a string or null")
		}
		return s, nil
	case boolField:
		var b bool
		if null || json.Unmarshal(raw, &b) != nil {
			return nil, fmt.Errorf("must be a boolean")
		}
		return b, nil
	case intField:
		var f float64
		if null || json.Unmarshal(raw, &f) != nil || f != math.Trunc(f) {
			return nil, fmt.Errorf("must be an integer")
		}
		return int(f), nil
	case nullableFloatField:
		if null {
			return nil, nil
		}
		var f float64
		if json.Unmarshal(raw, &f) != nil {
			return nil, fmt.Errorf("must be a number or null")
		}
		return f, nil
	case timeField, nullableTimeField:
		if null {
			if kind == nullableTimeField {
				return nil, nil
			}
			return nil, fmt.Errorf("must be a timestamp")
		}
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil, fmt.Errorf("must be a timestamp")
		}
		t, err := ParseTimestamp(s)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, fmt.Errorf("unsupported field")
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp accepts ISO-8601 timestamps with or without zone, and bare
// dates.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
