// Package schema models the field schema registry: which fields exist per
// entity type and what kind of value each holds. The registry is owned by an
// external catalog; relset only reads it, at rule-creation time.
package schema

import (
	"sort"
	"sync"

	"github.com/teranos/relset/errors"
)

// ValueType is the declared type of an entity field.
type ValueType string

const (
	TypeText    ValueType = "text"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
)

// IsValid returns true if v is a known value type
func (v ValueType) IsValid() bool {
	switch v {
	case TypeText, TypeNumber, TypeBoolean:
		return true
	default:
		return false
	}
}

// IsNumeric returns true for value types that support ordering checks
func (v ValueType) IsNumeric() bool {
	return v == TypeNumber
}

// Fields maps field name to declared value type for one entity type.
type Fields map[string]ValueType

// Names returns the field names in sorted order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry answers which fields exist for an entity type.
// FieldsFor returns an error marked errors.ErrNotFound for unknown types.
type Registry interface {
	FieldsFor(entityType string) (Fields, error)
}

// Field looks up one field's value type. Unknown entity types and unknown
// fields are both reported as not found.
func Field(reg Registry, entityType, field string) (ValueType, error) {
	fields, err := reg.FieldsFor(entityType)
	if err != nil {
		return "", err
	}
	vt, ok := fields[field]
	if !ok {
		return "", errors.NewNotFoundError("entity type %q has no field %q", entityType, field)
	}
	return vt, nil
}

// Static is an in-memory registry. It is safe for concurrent use and can be
// swapped wholesale with Replace, which is how FileRegistry reloads.
type Static struct {
	mu    sync.RWMutex
	types map[string]Fields
}

// NewStatic creates a registry from a catalog of entity types.
func NewStatic(types map[string]Fields) *Static {
	s := &Static{}
	s.Replace(types)
	return s
}

// FieldsFor returns a copy of the fields declared for entityType.
func (s *Static) FieldsFor(entityType string) (Fields, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.types[entityType]
	if !ok {
		return nil, errors.NewNotFoundError("unknown entity type %q", entityType)
	}
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out, nil
}

// EntityTypes returns the known entity types in sorted order.
func (s *Static) EntityTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Replace swaps the whole catalog.
func (s *Static) Replace(types map[string]Fields) {
	cloned := make(map[string]Fields, len(types))
	for typ, fields := range types {
		f := make(Fields, len(fields))
		for k, v := range fields {
			f[k] = v
		}
		cloned[typ] = f
	}

	s.mu.Lock()
	s.types = cloned
	s.mu.Unlock()
}
