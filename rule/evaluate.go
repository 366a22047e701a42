package rule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/teranos/relset/entity"
	"github.com/teranos/relset/schema"
)

// Result is the outcome of evaluating one rule against one record.
type Result struct {
	Passed  bool
	Message string
}

func pass() Result { return Result{Passed: true} }

func fail(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...)}
}

var patterns sync.Map // pattern -> *regexp.Regexp

// Evaluate applies r to rec.
//
// A field that is absent, nil or the empty string fails every check:
// required reports it as missing, every other check reports that it cannot
// be evaluated.
func Evaluate(r Rule, rec *entity.Record) Result {
	v, ok := rec.Value(r.Field)
	if !ok || v == nil || v == "" {
		if r.Check == CheckRequired {
			return fail("field '%s' is required but missing", r.Field)
		}
		return fail("cannot evaluate %s on missing field '%s' (expected %s)", r.Check, r.Field, r.condition())
	}

	switch r.Check {
	case CheckRequired:
		return pass()
	case CheckEquals, CheckNotEquals, CheckInList:
		if res, bad := r.mismatch(v); bad {
			return res
		}
	}

	switch r.Check {
	case CheckEquals:
		if r.equal(v, r.Expected) {
			return pass()
		}
		return fail("field '%s' is %s, expected %s", r.Field, display(v), r.condition())

	case CheckNotEquals:
		if !r.equal(v, r.Expected) {
			return pass()
		}
		return fail("field '%s' is %s, expected %s", r.Field, display(v), r.condition())

	case CheckContains:
		if strings.Contains(strings.ToLower(entity.Text(v)), strings.ToLower(r.Expected)) {
			return pass()
		}
		return fail("field '%s' is %s, expected %s", r.Field, display(v), r.condition())

	case CheckInList:
		for _, allowed := range r.ExpectedList {
			if r.equal(v, allowed) {
				return pass()
			}
		}
		return fail("field '%s' is %s, expected %s", r.Field, display(v), r.condition())

	case CheckMin, CheckMax:
		actual, ok := entity.Number(v)
		if !ok {
			return fail("field '%s' is %s, expected a number %s", r.Field, display(v), r.condition())
		}
		bound, _ := strconv.ParseFloat(strings.TrimSpace(r.Expected), 64)
		if (r.Check == CheckMin && actual >= bound) || (r.Check == CheckMax && actual <= bound) {
			return pass()
		}
		return fail("field '%s' is %s, expected %s", r.Field, display(v), r.condition())

	case CheckRegex:
		re, err := pattern(r.Expected)
		if err != nil {
			return fail("field '%s' is %s, pattern %q is invalid", r.Field, display(v), r.Expected)
		}
		if re.MatchString(entity.Text(v)) {
			return pass()
		}
		return fail("field '%s' is %s, expected %s", r.Field, display(v), r.condition())
	}

	return fail("field '%s' is %s, unknown check %q", r.Field, display(v), r.Check)
}

// condition renders what the rule expects, for messages.
func (r Rule) condition() string {
	switch r.Check {
	case CheckRequired:
		return "a value"
	case CheckEquals:
		return r.literal(r.Expected)
	case CheckNotEquals:
		return "anything but " + r.literal(r.Expected)
	case CheckContains:
		return "to contain " + strconv.Quote(r.Expected)
	case CheckInList:
		quoted := make([]string, len(r.ExpectedList))
		for i, v := range r.ExpectedList {
			quoted[i] = r.literal(v)
		}
		return "one of [" + strings.Join(quoted, ", ") + "]"
	case CheckMin:
		return ">= " + strings.TrimSpace(r.Expected)
	case CheckMax:
		return "<= " + strings.TrimSpace(r.Expected)
	case CheckRegex:
		return "to match pattern " + strconv.Quote(r.Expected)
	}
	return string(r.Check)
}

func (r Rule) literal(s string) string {
	if r.ValueType == schema.TypeText || r.ValueType == "" {
		return strconv.Quote(s)
	}
	return s
}

// equal compares a field value with a literal operand, normalized to the
// field's declared type.
func (r Rule) equal(v any, lit string) bool {
	switch r.ValueType {
	case schema.TypeNumber:
		a, okA := entity.Number(v)
		b, errB := strconv.ParseFloat(strings.TrimSpace(lit), 64)
		return okA && errB == nil && a == b
	case schema.TypeBoolean:
		a, errA := strconv.ParseBool(entity.Text(v))
		b, errB := strconv.ParseBool(lit)
		return errA == nil && errB == nil && a == b
	default:
		return entity.Text(v) == lit
	}
}

// mismatch fails a record value that does not read as the field's declared
// type. Such a value is neither equal nor unequal to any literal.
func (r Rule) mismatch(v any) (Result, bool) {
	switch r.ValueType {
	case schema.TypeNumber:
		if _, ok := entity.Number(v); !ok {
			return fail("field '%s' is %s, expected a number", r.Field, display(v)), true
		}
	case schema.TypeBoolean:
		if _, err := strconv.ParseBool(entity.Text(v)); err != nil {
			return fail("field '%s' is %s, expected a boolean", r.Field, display(v)), true
		}
	}
	return Result{}, false
}

func display(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return entity.Text(v)
}

func pattern(expr string) (*regexp.Regexp, error) {
	if cached, ok := patterns.Load(expr); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := compilePattern(expr)
	if err != nil {
		return nil, err
	}
	patterns.Store(expr, re)
	return re, nil
}
