// Package source reads the flat source-of-record store. Entities are
// addressed by kind and a tuple of numeric key components.
package source

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/tphakala/invsync/internal/errors"
)

// IDSeparator joins the kind and key components of an entity id.
const IDSeparator = "-"

// SoftDeleteField marks a logically deleted entity.
const SoftDeleteField = "soft_delete"

// ErrInvalidEntity is returned for entities that cannot be addressed.
var ErrInvalidEntity = errors.NewStd("invalid source entity")

// Entity is a read-only snapshot of one source record.
type Entity struct {
	Kind   string
	Key    []int64
	Fields map[string]any
}

// FormatID renders the cross-store id "<kind>-<k1>-<k2>...".
func FormatID(kind string, key ...int64) string {
	var sb strings.Builder
	sb.WriteString(kind)
	for _, k := range key {
		sb.WriteString(IDSeparator)
		sb.WriteString(strconv.FormatInt(k, 10))
	}
	return sb.String()
}

// ParseID is the inverse of FormatID.
func ParseID(id string) (kind string, key []int64, err error) {
	parts := strings.Split(id, IDSeparator)
	if len(parts) < 2 || parts[0] == "" {
		return "", nil, fmt.Errorf("%w: malformed id %q", ErrInvalidEntity, id)
	}
	key = make([]int64, 0, len(parts)-1)
	for _, p := range parts[1:] {
		n, perr := strconv.ParseInt(p, 10, 64)
		if perr != nil {
			return "", nil, fmt.Errorf("%w: malformed id %q: %w", ErrInvalidEntity, id, perr)
		}
		key = append(key, n)
	}
	return parts[0], key, nil
}

// ID returns the derived entity id.
func (e Entity) ID() string {
	return FormatID(e.Kind, e.Key...)
}

// Validate checks that the entity can be addressed.
func (e Entity) Validate() error {
	switch {
	case e.Kind == "":
		return fmt.Errorf("%w: empty kind", ErrInvalidEntity)
	case strings.Contains(e.Kind, IDSeparator):
		return fmt.Errorf("%w: kind %q contains %q", ErrInvalidEntity, e.Kind, IDSeparator)
	case len(e.Key) == 0:
		return fmt.Errorf("%w: %s has no key components", ErrInvalidEntity, e.Kind)
	}
	// A negative component would render as "--n" and break ParseID and
	// the zero-padded sort key.
	for i, k := range e.Key {
		if k < 0 {
			return fmt.Errorf("%w: %s key component %d is negative (%d)", ErrInvalidEntity, e.Kind, i, k)
		}
	}
	return nil
}

// Clone returns a copy whose top-level field map can be modified freely.
func (e Entity) Clone() Entity {
	return Entity{
		Kind:   e.Kind,
		Key:    append([]int64(nil), e.Key...),
		Fields: maps.Clone(e.Fields),
	}
}

// SoftDeleted reports whether the entity is flagged as logically deleted.
func (e Entity) SoftDeleted() bool {
	v, _ := e.Fields[SoftDeleteField].(bool)
	return v
}

// Has reports whether field is present and non-nil.
func (e Entity) Has(field string) bool {
	v, ok := e.Fields[field]
	return ok && v != nil
}

// String returns field as a string. Numbers are formatted.
func (e Entity) String(field string) string {
	switch v := e.Fields[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns field as an integer. It reports false when the field is
// missing or not integral.
func (e Entity) Int64(field string) (int64, bool) {
	switch v := e.Fields[field].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Float64 returns field as a float.
func (e Entity) Float64(field string) (float64, bool) {
	switch v := e.Fields[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
