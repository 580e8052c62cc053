package scenario

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Matches reports whether actual satisfies expected. Besides literal
// values, expected strings may be a regular expression written as
// ~pattern~ or a numeric comparison such as ">=500". Maps match when every
// expected key matches; extra actual keys are ignored.
func Matches(actual, expected interface{}) (bool, string) {
	if expected == nil {
		if actual == nil {
			return true, ""
		}
		return false, fmt.Sprintf("expected nil, got %v", actual)
	}
	if actual == nil {
		return false, fmt.Sprintf("expected %v, got nil", expected)
	}

	switch exp := expected.(type) {
	case string:
		if len(exp) >= 2 && strings.HasPrefix(exp, "~") && strings.HasSuffix(exp, "~") {
			return matchRegex(actual, strings.Trim(exp, "~"))
		}
		if strings.HasPrefix(exp, ">") || strings.HasPrefix(exp, "<") {
			return matchComparison(actual, exp)
		}
		got, ok := actual.(string)
		if !ok {
			return false, fmt.Sprintf("expected string, got %T", actual)
		}
		if got != exp {
			return false, fmt.Sprintf("expected %q, got %q", exp, got)
		}
		return true, ""

	case bool:
		got, ok := actual.(bool)
		if !ok {
			return false, fmt.Sprintf("expected bool, got %T", actual)
		}
		if got != exp {
			return false, fmt.Sprintf("expected %v, got %v", exp, got)
		}
		return true, ""

	case map[string]interface{}:
		return matchMap(actual, exp)

	case []interface{}:
		return matchList(actual, exp)
	}

	want, err := toFloat64(expected)
	if err != nil {
		return false, fmt.Sprintf("unsupported expected value %v (%T)", expected, expected)
	}
	got, err := toFloat64(actual)
	if err != nil {
		return false, fmt.Sprintf("expected number, got %T", actual)
	}
	if got != want {
		return false, fmt.Sprintf("expected %v, got %v", want, got)
	}
	return true, ""
}

func matchRegex(actual interface{}, pattern string) (bool, string) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern %q: %v", pattern, err)
	}

	s := fmt.Sprintf("%v", actual)
	if re.MatchString(s) {
		return true, ""
	}
	return false, fmt.Sprintf("value %q does not match pattern ~%s~", s, pattern)
}

func matchComparison(actual interface{}, comparison string) (bool, string) {
	got, err := toFloat64(actual)
	if err != nil {
		return false, fmt.Sprintf("cannot compare non-numeric value: %v", actual)
	}

	var op string
	for _, candidate := range []string{">=", "<=", ">", "<"} {
		if strings.HasPrefix(comparison, candidate) {
			op = candidate
			break
		}
	}

	want, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(comparison, op)), 64)
	if err != nil {
		return false, fmt.Sprintf("invalid comparison: %s", comparison)
	}

	var ok bool
	switch op {
	case ">":
		ok = got > want
	case "<":
		ok = got < want
	case ">=":
		ok = got >= want
	case "<=":
		ok = got <= want
	}
	if ok {
		return true, ""
	}
	return false, fmt.Sprintf("expected value %s %v, got %v", op, want, got)
}

func matchMap(actual interface{}, expected map[string]interface{}) (bool, string) {
	got, ok := actual.(map[string]interface{})
	if !ok {
		return false, fmt.Sprintf("expected map, got %T", actual)
	}

	for key, want := range expected {
		value, exists := got[key]
		if !exists {
			return false, fmt.Sprintf("missing key %q", key)
		}
		if ok, reason := Matches(value, want); !ok {
			return false, fmt.Sprintf("key %q: %s", key, reason)
		}
	}
	return true, ""
}

func matchList(actual interface{}, expected []interface{}) (bool, string) {
	got, ok := actual.([]interface{})
	if !ok {
		return false, fmt.Sprintf("expected list, got %T", actual)
	}
	if len(got) != len(expected) {
		return false, fmt.Sprintf("expected list length %d, got %d", len(expected), len(got))
	}

	for i := range expected {
		if ok, reason := Matches(got[i], expected[i]); !ok {
			return false, fmt.Sprintf("element %d: %s", i, reason)
		}
	}
	return true, ""
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("not a numeric type: %T", v)
	}
}
