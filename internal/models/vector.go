package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Vector is the canonical embedding representation. Every stored shape is
// converted into a Vector when it is read, so scoring only ever sees []float32.
type Vector []float32

// Scan implements sql.Scanner for pgvector text, float arrays, JSON arrays and
// position-keyed JSON objects.
func (v *Vector) Scan(src any) error {
	parsed, err := ParseVector(src)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Value implements driver.Valuer using the pgvector text format.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return v.String(), nil
}

func (v Vector) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseVector converts any supported embedding shape into a Vector.
// nil and empty input produce a nil Vector.
func ParseVector(src any) (Vector, error) {
	switch s := src.(type) {
	case nil:
		return nil, nil
	case Vector:
		return s, nil
	case []float32:
		return Vector(s), nil
	case []float64:
		out := make(Vector, len(s))
		for i, f := range s {
			out[i] = float32(f)
		}
		return out, nil
	case []any:
		out := make(Vector, len(s))
		for i, el := range s {
			f, err := toFloat(el)
			if err != nil {
				return nil, fmt.Errorf("vector element %d: %w", i, err)
			}
			out[i] = f
		}
		return out, nil
	case map[string]any:
		return fromIndexedMap(s)
	case []byte:
		return parseVectorText(string(s))
	case string:
		return parseVectorText(s)
	default:
		return nil, fmt.Errorf("unsupported vector type %T", src)
	}
}

func parseVectorText(s string) (Vector, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil, nil
	}

	switch s[0] {
	case '[':
		var raw []any
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse vector %q: %w", truncate(s), err)
		}
		return ParseVector(raw)
	case '"':
		var inner string
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			return nil, fmt.Errorf("failed to parse vector string: %w", err)
		}
		return parseVectorText(inner)
	case '{':
		var obj map[string]any
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			return fromIndexedMap(obj)
		}
		// postgres array literal: {1,2,3}
		return parseArrayLiteral(strings.Trim(s, "{}"))
	default:
		return nil, fmt.Errorf("unrecognized vector text %q", truncate(s))
	}
}

func parseArrayLiteral(body string) (Vector, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}
	parts := strings.Split(body, ",")
	out := make(Vector, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("vector element %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// fromIndexedMap handles array-likes serialized as {"0": x, "1": y}.
func fromIndexedMap(m map[string]any) (Vector, error) {
	if len(m) == 0 {
		return nil, nil
	}
	type entry struct {
		idx int
		val float32
	}
	entries := make([]entry, 0, len(m))
	for k, el := range m {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("vector key %q is not a position", k)
		}
		f, err := toFloat(el)
		if err != nil {
			return nil, fmt.Errorf("vector element %q: %w", k, err)
		}
		entries = append(entries, entry{idx: idx, val: f})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })

	out := make(Vector, len(entries))
	for i, e := range entries {
		out[i] = e.val
	}
	return out, nil
}

func toFloat(v any) (float32, error) {
	switch n := v.(type) {
	case float64:
		return float32(n), nil
	case float32:
		return n, nil
	case int:
		return float32(n), nil
	case int64:
		return float32(n), nil
	case json.Number:
		f, err := n.Float64()
		return float32(f), err
	case string:
		f, err := strconv.ParseFloat(n, 32)
		return float32(f), err
	default:
		return 0, fmt.Errorf("unsupported element type %T", v)
	}
}

func truncate(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}
