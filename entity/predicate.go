package entity

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/teranos/relset/errors"
)

// Op is a predicate operator.
type Op string

const (
	OpEq       Op = "eq"
	OpNeq      Op = "neq"
	OpContains Op = "contains"
	OpIn       Op = "in"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpExists   Op = "exists"
	OpAnd      Op = "and"
	OpOr       Op = "or"
	OpNot      Op = "not"
)

// IsLogical returns true for operators that combine sub-predicates
func (o Op) IsLogical() bool {
	return o == OpAnd || o == OpOr || o == OpNot
}

// Predicate is a tagged expression tree handed to the entity store by filter
// groups. Leaves compare one field; and/or/not combine sub-predicates.
// The zero Predicate (no op) matches every record of the queried type.
//
//	{"op":"and","args":[
//	    {"op":"eq","field":"system","value":"storm"},
//	    {"op":"gte","field":"diameter","value":300}]}
type Predicate struct {
	Op     Op          `json:"op,omitempty"`
	Field  string      `json:"field,omitempty"`
	Value  any         `json:"value,omitempty"`
	Values []any       `json:"values,omitempty"`
	Args   []Predicate `json:"args,omitempty"`
}

// Builders for readable predicate construction.

func Eq(field string, v any) Predicate     { return Predicate{Op: OpEq, Field: field, Value: v} }
func Neq(field string, v any) Predicate    { return Predicate{Op: OpNeq, Field: field, Value: v} }
func Contains(field, s string) Predicate   { return Predicate{Op: OpContains, Field: field, Value: s} }
func In(field string, vs ...any) Predicate { return Predicate{Op: OpIn, Field: field, Values: vs} }
func Gt(field string, v any) Predicate     { return Predicate{Op: OpGt, Field: field, Value: v} }
func Gte(field string, v any) Predicate    { return Predicate{Op: OpGte, Field: field, Value: v} }
func Lt(field string, v any) Predicate     { return Predicate{Op: OpLt, Field: field, Value: v} }
func Lte(field string, v any) Predicate    { return Predicate{Op: OpLte, Field: field, Value: v} }
func Exists(field string) Predicate        { return Predicate{Op: OpExists, Field: field} }
func And(args ...Predicate) Predicate      { return Predicate{Op: OpAnd, Args: args} }
func Or(args ...Predicate) Predicate       { return Predicate{Op: OpOr, Args: args} }
func Not(arg Predicate) Predicate          { return Predicate{Op: OpNot, Args: []Predicate{arg}} }
func MatchAll() Predicate                  { return Predicate{} }

// Validate checks the tree's shape (known operators, fields on leaves,
// arity of logical nodes). It does not know about schemas.
func (p Predicate) Validate() error {
	switch p.Op {
	case "":
		if p.Field != "" || len(p.Args) > 0 {
			return errors.NewInvalidRequestError("predicate without op must be empty")
		}
		return nil
	case OpAnd, OpOr:
		if len(p.Args) == 0 {
			return errors.NewInvalidRequestError("%s needs at least one argument", p.Op)
		}
	case OpNot:
		if len(p.Args) != 1 {
			return errors.NewInvalidRequestError("not takes exactly one argument, got %d", len(p.Args))
		}
	case OpEq, OpNeq, OpContains, OpGt, OpGte, OpLt, OpLte, OpExists:
		if p.Field == "" {
			return errors.NewInvalidRequestError("%s needs a field", p.Op)
		}
		return nil
	case OpIn:
		if p.Field == "" {
			return errors.NewInvalidRequestError("in needs a field")
		}
		if len(p.Values) == 0 {
			return errors.NewInvalidRequestError("in needs at least one value")
		}
		return nil
	default:
		return errors.NewInvalidRequestError("unknown predicate op %q", p.Op)
	}

	for _, arg := range p.Args {
		if err := arg.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FieldNames returns every field referenced anywhere in the tree, sorted.
func (p Predicate) FieldNames() []string {
	seen := make(map[string]bool)
	p.collectFields(seen)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p Predicate) collectFields(seen map[string]bool) {
	if p.Field != "" {
		seen[p.Field] = true
	}
	for _, arg := range p.Args {
		arg.collectFields(seen)
	}
}

// Match evaluates the predicate against a record. Stores without a native
// query language use this after narrowing by entity type.
func (p Predicate) Match(rec *Record) bool {
	switch p.Op {
	case "":
		return true
	case OpAnd:
		for _, arg := range p.Args {
			if !arg.Match(rec) {
				return false
			}
		}
		return true
	case OpOr:
		for _, arg := range p.Args {
			if arg.Match(rec) {
				return true
			}
		}
		return false
	case OpNot:
		return len(p.Args) == 1 && !p.Args[0].Match(rec)
	}

	v, ok := rec.Value(p.Field)
	present := ok && v != nil && v != ""

	switch p.Op {
	case OpExists:
		return present
	case OpEq:
		return present && equalValues(v, p.Value)
	case OpNeq:
		return !present || !equalValues(v, p.Value)
	case OpContains:
		return present && strings.Contains(strings.ToLower(Text(v)), strings.ToLower(Text(p.Value)))
	case OpIn:
		if !present {
			return false
		}
		for _, candidate := range p.Values {
			if equalValues(v, candidate) {
				return true
			}
		}
		return false
	case OpGt, OpGte, OpLt, OpLte:
		if !present {
			return false
		}
		a, okA := Number(v)
		b, okB := Number(p.Value)
		if !okA || !okB {
			return false
		}
		switch p.Op {
		case OpGt:
			return a > b
		case OpGte:
			return a >= b
		case OpLt:
			return a < b
		default:
			return a <= b
		}
	}
	return false
}

// equalValues compares numerically when both sides are numbers, otherwise as
// case-sensitive text.
func equalValues(a, b any) bool {
	if fa, ok := Number(a); ok {
		if fb, ok := Number(b); ok {
			return fa == fb
		}
	}
	return Text(a) == Text(b)
}

// MarshalPredicate encodes a predicate for storage.
func MarshalPredicate(p Predicate) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal predicate")
	}
	return string(data), nil
}

// UnmarshalPredicate decodes a stored predicate.
func UnmarshalPredicate(s string) (Predicate, error) {
	var p Predicate
	if s == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return p, errors.Wrap(err, "failed to unmarshal predicate")
	}
	return p, nil
}
