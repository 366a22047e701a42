// Package entity defines the read-only boundary to the engineering entity
// store (pipes, structures, details, notes). relset never writes entities;
// it reads records, runs filter predicates, and follows foreign-key-style
// references.
package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/teranos/relset/errors"
)

// Ref identifies one entity.
type Ref struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// String renders the reference as "type/id".
func (r Ref) String() string {
	return r.Type + "/" + r.ID
}

// IsZero reports whether the reference is empty
func (r Ref) IsZero() bool {
	return r.Type == "" && r.ID == ""
}

// ParseRef parses "type/id". The id may itself contain slashes.
func ParseRef(s string) (Ref, error) {
	typ, id, ok := strings.Cut(s, "/")
	if !ok || typ == "" || id == "" {
		return Ref{}, errors.NewInvalidRequestError("invalid entity reference %q (want type/id)", s)
	}
	return Ref{Type: typ, ID: id}, nil
}

// Record is one entity with its field values.
type Record struct {
	Ref
	Fields map[string]any `json:"fields"`
}

// Value returns a field value and whether the field is present at all.
func (r *Record) Value(field string) (any, bool) {
	if r == nil || r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[field]
	return v, ok
}

// Store is the read-only entity store consumed by relset.
//
// Get returns an error marked errors.ErrNotFound when the entity does not
// exist. Any other error is treated as the store being unavailable.
type Store interface {
	Get(ctx context.Context, ref Ref) (*Record, error)
	Query(ctx context.Context, entityType string, p Predicate) ([]*Record, error)
	ForeignKeysOf(ctx context.Context, ref Ref) ([]Ref, error)
}

// NotFound returns the canonical not-found error for ref.
func NotFound(ref Ref) error {
	return errors.NewNotFoundError("entity %s not found", ref)
}

// Number coerces a field value to float64. Strings are parsed; booleans and
// other kinds are not numbers.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Text renders a field value as a string for comparisons and messages.
func Text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
