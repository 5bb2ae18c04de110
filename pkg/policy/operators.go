package policy

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Operator is a comparison operator usable in rule conditions.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLessThan     Operator = "<"
	OpGreaterThan  Operator = ">"
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
	OpContains     Operator = "contains"
	OpIn           Operator = "in"
	OpMatches      Operator = "matches"
	OpExists       Operator = "exists"
)

// Valid reports whether the operator is one of the known operators.
func (o Operator) Valid() bool {
	switch o {
	case OpEqual, OpNotEqual, OpLessThan, OpGreaterThan, OpLessEqual,
		OpGreaterEqual, OpContains, OpIn, OpMatches, OpExists:
		return true
	}
	return false
}

// Holds evaluates the condition against an attribute map. It returns
// whether the requirement holds, plus a human-readable description of the
// observed value for the evaluation reason string. A missing attribute
// never holds (except for a negated exists), so absent facts fail closed.
func (c Condition) Holds(attrs map[string]any) (bool, string, error) {
	actual, present := attrs[c.Attribute]

	if c.Operator == OpExists {
		return present, observed(c.Attribute, actual, present), nil
	}

	if !present {
		return false, fmt.Sprintf("%s is not set", c.Attribute), nil
	}

	ok, err := compare(c.Operator, actual, c.Value)
	if err != nil {
		return false, "", fmt.Errorf("condition on %q: %w", c.Attribute, err)
	}
	return ok, observed(c.Attribute, actual, present), nil
}

// String renders the condition as "attribute op value".
func (c Condition) String() string {
	if c.Operator == OpExists {
		return fmt.Sprintf("%s exists", c.Attribute)
	}
	return fmt.Sprintf("%s %s %v", c.Attribute, c.Operator, c.Value)
}

func observed(attribute string, value any, present bool) string {
	if !present {
		return fmt.Sprintf("%s is not set", attribute)
	}
	return fmt.Sprintf("%s is %v", attribute, value)
}

// compare evaluates an operator comparison between actual and expected
// values.
func compare(op Operator, actual, expected any) (bool, error) {
	switch op {
	case OpEqual:
		return equal(actual, expected), nil
	case OpNotEqual:
		return !equal(actual, expected), nil
	case OpLessThan, OpGreaterThan, OpLessEqual, OpGreaterEqual:
		return ordered(op, actual, expected)
	case OpContains:
		return contains(actual, expected)
	case OpIn:
		return in(actual, expected)
	case OpMatches:
		return matches(actual, expected)
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

// equal checks value equality, coercing mixed numeric types first so
// int(2) compares equal to float64(2) regardless of how YAML decoded it.
func equal(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	a, aErr := toFloat64(actual)
	b, bErr := toFloat64(expected)
	if aErr == nil && bErr == nil {
		return a == b
	}
	return reflect.DeepEqual(actual, expected)
}

func ordered(op Operator, actual, expected any) (bool, error) {
	a, err := toFloat64(actual)
	if err != nil {
		return false, fmt.Errorf("operator %q requires a numeric value: %w", op, err)
	}
	b, err := toFloat64(expected)
	if err != nil {
		return false, fmt.Errorf("operator %q requires a numeric value: %w", op, err)
	}
	switch op {
	case OpLessThan:
		return a < b, nil
	case OpGreaterThan:
		return a > b, nil
	case OpLessEqual:
		return a <= b, nil
	default:
		return a >= b, nil
	}
}

// contains checks string containment or slice membership depending on the
// actual value's type.
func contains(actual, expected any) (bool, error) {
	switch v := actual.(type) {
	case string:
		s, ok := expected.(string)
		if !ok {
			return false, fmt.Errorf("contains on a string requires a string value, got %T", expected)
		}
		return strings.Contains(v, s), nil
	case []any:
		for _, item := range v {
			if equal(item, expected) {
				return true, nil
			}
		}
		return false, nil
	case []string:
		s, ok := expected.(string)
		if !ok {
			return false, fmt.Errorf("contains on a string list requires a string value, got %T", expected)
		}
		for _, item := range v {
			if item == s {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("contains requires a string or list, got %T", actual)
	}
}

// in checks whether the actual value is a member of the expected list.
func in(actual, expected any) (bool, error) {
	list, ok := expected.([]any)
	if !ok {
		return false, fmt.Errorf("in requires a list value, got %T", expected)
	}
	for _, item := range list {
		if equal(actual, item) {
			return true, nil
		}
	}
	return false, nil
}

// matches checks the actual string value against an anchored-free regular
// expression.
func matches(actual, expected any) (bool, error) {
	s, ok := actual.(string)
	if !ok {
		return false, fmt.Errorf("matches requires a string attribute, got %T", actual)
	}
	pattern, ok := expected.(string)
	if !ok {
		return false, fmt.Errorf("matches requires a string pattern, got %T", expected)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re.MatchString(s), nil
}

// toFloat64 converts numeric types to float64 for comparison.
func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
