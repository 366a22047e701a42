// Package relset holds the relationship set aggregate: a named group of
// entity members plus the rules that must hold over them.
package relset

import (
	"time"

	"github.com/teranos/relset/entity"
	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/rule"
	"github.com/teranos/relset/schema"
)

// MemberKind distinguishes fixed references from live filters.
type MemberKind string

const (
	MemberStatic MemberKind = "static"
	MemberFilter MemberKind = "filter"
)

// Set is a relationship set. Rules are ordered; members keep insertion order.
type Set struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Category    string      `json:"category,omitempty"`
	Rules       []rule.Rule `json:"rules"`
	Members     []Member    `json:"members"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// RulesFor returns the set's rules targeting entityType, in order.
func (s *Set) RulesFor(entityType string) []rule.Rule {
	var out []rule.Rule
	for _, r := range s.Rules {
		if r.EntityType == entityType {
			out = append(out, r)
		}
	}
	return out
}

// Member is either a static reference (EntityID set) or a filter group
// (Predicate set) over EntityType. Filter groups are never expanded into
// stored ids; they are re-queried on every sync check.
type Member struct {
	ID         string           `json:"id"`
	SetID      string           `json:"set_id"`
	Kind       MemberKind       `json:"kind"`
	EntityType string           `json:"entity_type"`
	EntityID   string           `json:"entity_id,omitempty"`
	Predicate  entity.Predicate `json:"predicate,omitempty"`
	Position   int              `json:"position"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Ref returns the static reference. Zero for filter groups.
func (m Member) Ref() entity.Ref {
	if m.Kind != MemberStatic {
		return entity.Ref{}
	}
	return entity.Ref{Type: m.EntityType, ID: m.EntityID}
}

// Label names the member in errors.
func (m Member) Label() string {
	switch {
	case m.ID != "":
		return "member " + m.ID
	case m.Kind == MemberStatic:
		return "member " + m.Ref().String()
	default:
		return "filter on " + m.EntityType
	}
}

// ValidateMember checks a membership declaration against the registry.
// Static members must name a known entity type; filter groups must also
// reference only fields that type declares.
func ValidateMember(m Member, reg schema.Registry) error {
	if m.EntityType == "" {
		return errors.ConfigurationErrorf(m.Label(), "entity type is required")
	}
	fields, err := reg.FieldsFor(m.EntityType)
	if err != nil {
		return errors.Mark(errors.Wrap(err, m.Label()), errors.ErrConfiguration)
	}

	switch m.Kind {
	case MemberStatic:
		if m.EntityID == "" {
			return errors.ConfigurationErrorf(m.Label(), "static member needs an entity id")
		}
	case MemberFilter:
		if err := m.Predicate.Validate(); err != nil {
			return errors.Mark(errors.Wrap(err, m.Label()), errors.ErrConfiguration)
		}
		for _, name := range m.Predicate.FieldNames() {
			if _, ok := fields[name]; !ok {
				return errors.ConfigurationErrorf(m.Label(),
					"filter references unknown field %q of %s", name, m.EntityType)
			}
		}
	default:
		return errors.ConfigurationErrorf(m.Label(), "unknown member kind %q", m.Kind)
	}
	return nil
}
