// Package rule defines declarative field-level rules and evaluates them
// against entity records.
//
// Rules are checked against the field schema registry once, when they are
// created (Validate). Evaluation never fails with an error: a rule that does
// not hold produces a Result carrying a message fit for users.
package rule

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/schema"
)

// CheckType is the kind of assertion a rule makes about a field.
type CheckType string

const (
	CheckRequired  CheckType = "required"
	CheckEquals    CheckType = "equals"
	CheckNotEquals CheckType = "not_equals"
	CheckContains  CheckType = "contains"
	CheckInList    CheckType = "in_list"
	CheckMin       CheckType = "min"
	CheckMax       CheckType = "max"
	CheckRegex     CheckType = "regex"
)

// AllChecks lists every check type in display order.
var AllChecks = []CheckType{
	CheckRequired, CheckEquals, CheckNotEquals, CheckContains,
	CheckInList, CheckMin, CheckMax, CheckRegex,
}

// IsValid returns true if c is a known check type
func (c CheckType) IsValid() bool {
	for _, known := range AllChecks {
		if c == known {
			return true
		}
	}
	return false
}

// Severity is how seriously a failing rule is reported.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule is one field-level assertion scoped to an entity type.
//
// Expected holds the operand for equals, not_equals, contains, min, max and
// regex. ExpectedList holds the allowed literals for in_list. ValueType is the
// field's declared type, captured from the registry when the rule is validated.
type Rule struct {
	ID           string           `json:"id"`
	EntityType   string           `json:"entity_type"`
	Field        string           `json:"field"`
	Check        CheckType        `json:"check"`
	Expected     string           `json:"expected,omitempty"`
	ExpectedList []string         `json:"expected_list,omitempty"`
	ValueType    schema.ValueType `json:"value_type,omitempty"`
	Severity     Severity         `json:"severity"`
	Description  string           `json:"description,omitempty"`
}

// Label names the rule in errors: its id once it has one, otherwise its target.
func (r Rule) Label() string {
	if r.ID != "" {
		return "rule " + r.ID
	}
	return "rule on " + r.EntityType + "." + r.Field
}

// Validate checks a rule definition against the registry and returns it
// normalized: severity defaulted to error, ValueType filled in. Every problem
// is reported as a configuration error naming the rule.
func Validate(r Rule, reg schema.Registry) (Rule, error) {
	if r.EntityType == "" || r.Field == "" {
		return r, errors.ConfigurationErrorf(r.Label(), "entity type and field are required")
	}
	if !r.Check.IsValid() {
		return r, errors.ConfigurationErrorf(r.Label(), "unknown check type %q", r.Check)
	}

	switch r.Severity {
	case "":
		r.Severity = SeverityError
	case SeverityError, SeverityWarning:
	default:
		return r, errors.ConfigurationErrorf(r.Label(), "unknown severity %q", r.Severity)
	}

	vt, err := schema.Field(reg, r.EntityType, r.Field)
	if err != nil {
		return r, errors.Mark(errors.Wrap(err, r.Label()), errors.ErrConfiguration)
	}
	r.ValueType = vt

	switch r.Check {
	case CheckRequired:
		return r, nil

	case CheckMin, CheckMax:
		if !vt.IsNumeric() {
			return r, errors.ConfigurationErrorf(r.Label(),
				"%s needs a numeric field, %s.%s is %s", r.Check, r.EntityType, r.Field, vt)
		}
		if err := checkNumber(r.Expected); err != nil {
			return r, errors.ConfigurationErrorf(r.Label(), "%s bound: %v", r.Check, err)
		}

	case CheckContains:
		if vt != schema.TypeText {
			return r, errors.ConfigurationErrorf(r.Label(),
				"contains needs a text field, %s.%s is %s", r.EntityType, r.Field, vt)
		}
		if r.Expected == "" {
			return r, errors.ConfigurationErrorf(r.Label(), "contains needs a non-empty substring")
		}

	case CheckRegex:
		if vt != schema.TypeText {
			return r, errors.ConfigurationErrorf(r.Label(),
				"regex needs a text field, %s.%s is %s", r.EntityType, r.Field, vt)
		}
		if _, err := compilePattern(r.Expected); err != nil {
			return r, errors.ConfigurationErrorf(r.Label(), "invalid pattern %q: %v", r.Expected, err)
		}

	case CheckEquals, CheckNotEquals:
		if err := checkLiteral(vt, r.Expected); err != nil {
			return r, errors.ConfigurationErrorf(r.Label(), "%s operand: %v", r.Check, err)
		}

	case CheckInList:
		if len(r.ExpectedList) == 0 {
			return r, errors.ConfigurationErrorf(r.Label(), "in_list needs at least one allowed value")
		}
		for _, v := range r.ExpectedList {
			if err := checkLiteral(vt, v); err != nil {
				return r, errors.ConfigurationErrorf(r.Label(), "in_list value: %v", err)
			}
		}
	}
	return r, nil
}

// checkLiteral verifies an operand can be compared with a field of type vt.
func checkLiteral(vt schema.ValueType, lit string) error {
	switch vt {
	case schema.TypeNumber:
		return checkNumber(lit)
	case schema.TypeBoolean:
		if _, err := strconv.ParseBool(lit); err != nil {
			return errors.Newf("%q is not a boolean", lit)
		}
	}
	return nil
}

// checkNumber accepts finite decimal numbers only; NaN and Inf never compare.
func checkNumber(lit string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(lit), 64)
	if err != nil {
		return errors.Newf("%q is not a number", lit)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.Newf("%q is not a finite number", lit)
	}
	return nil
}

// compilePattern anchors the pattern so it must match the whole value.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + pattern + `)$`)
}
