package partition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"reposplit/internal/dataset"
)

const (
	DefaultField  = "lastCheckedAt"
	DefaultPrefix = "2023"
)

// Predicate selects records for the matched partition. A record matches when
// Field is absent or null, or when Field is a string starting with Prefix.
// Any other value, including non-string values, does not match.
type Predicate struct {
	Field  string
	Prefix string
}

func DefaultPredicate() Predicate {
	return Predicate{Field: DefaultField, Prefix: DefaultPrefix}
}

// Match reports whether rec belongs to the matched partition. It fails only
// when rec is not a JSON object.
func (p Predicate) Match(rec dataset.Record) (bool, error) {
	trimmed := bytes.TrimSpace(rec)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false, fmt.Errorf("record is %s: %w", kindOf(trimmed), dataset.ErrNotObject)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return false, fmt.Errorf("decode record: %w", err)
	}

	v, ok := fields[p.Field]
	if !ok {
		return true, nil
	}
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return true, nil
	}
	if v[0] != '"' {
		return false, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return false, fmt.Errorf("decode %s: %w", p.Field, err)
	}
	return strings.HasPrefix(s, p.Prefix), nil
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s is null or starts with %q", p.Field, p.Prefix)
}

func kindOf(raw []byte) string {
	if len(raw) == 0 {
		return "empty"
	}
	switch raw[0] {
	case '[':
		return "an array"
	case '"':
		return "a string"
	case 't', 'f':
		return "a boolean"
	case 'n':
		return "null"
	default:
		return "a number"
	}
}
