package branch

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/mohitkumar/automate/model"
	"github.com/oliveagle/jsonpath"
	"github.com/spf13/cast"
)

const TARGET_VARIABLE = "Variable"
const VARIABLES_KEY = "_variables"

const RULE_EQUAL = "="
const RULE_NOT_EQUAL = "!="
const RULE_GREATER = ">"
const RULE_LESS = "<"
const RULE_GREATER_EQUAL = ">="
const RULE_LESS_EQUAL = "<="
const RULE_BETWEEN = "is between"
const RULE_TRUE = "is true"
const RULE_FALSE = "is false"
const RULE_NULL = "is null"
const RULE_NOT_NULL = "is not null"
const RULE_CONTAINS = "contains"
const RULE_OTHERWISE = "otherwise"

type InvalidRuleError struct {
	Rule string
}

func (e InvalidRuleError) Error() string {
	return fmt.Sprintf("invalid rule specified: %s", e.Rule)
}

type Case struct {
	Rule  string `mapstructure:"rule" json:"rule"`
	Value any    `mapstructure:"value" json:"value"`
	Flow  string `mapstructure:"flow" json:"flow"`
}

type Switch struct {
	Target   string `mapstructure:"target" json:"target"`
	Property string `mapstructure:"property" json:"property"`
	Cases    []Case `mapstructure:"cases" json:"cases"`
}

func Decode(args map[string]any) (Switch, error) {
	var sw Switch
	if err := mapstructure.Decode(args, &sw); err != nil {
		return sw, model.ValidationError{Field: "cases", Message: err.Error()}
	}
	if len(sw.Property) == 0 {
		return sw, model.ValidationError{Field: "property", Message: "must not be empty"}
	}
	return sw, nil
}

// Evaluate returns the flow of the first matching case. otherwise cases are tried last.
// A missing property evaluates as null.
func Evaluate(sw Switch, args map[string]any) (string, bool, error) {
	value := lookup(sw, args)

	cases := append([]Case{}, sw.Cases...)
	sort.SliceStable(cases, func(i, j int) bool {
		return cases[i].Rule != RULE_OTHERWISE && cases[j].Rule == RULE_OTHERWISE
	})
	for _, c := range cases {
		ok, err := match(c.Rule, value, c.Value)
		if err != nil {
			return "", false, err
		}
		if ok {
			return c.Flow, true, nil
		}
	}
	return "", false, nil
}

func lookup(sw Switch, args map[string]any) any {
	target := args
	if sw.Target == TARGET_VARIABLE {
		target, _ = args[VARIABLES_KEY].(map[string]any)
	}
	if target == nil {
		return nil
	}
	if strings.HasPrefix(sw.Property, "$") {
		value, err := jsonpath.JsonPathLookup(target, sw.Property)
		if err != nil {
			return nil
		}
		return value
	}
	return target[sw.Property]
}

func match(rule string, value any, expected any) (bool, error) {
	switch rule {
	case RULE_EQUAL:
		return equal(value, expected), nil
	case RULE_NOT_EQUAL:
		return !equal(value, expected), nil
	case RULE_GREATER, RULE_LESS, RULE_GREATER_EQUAL, RULE_LESS_EQUAL:
		return compare(rule, value, expected), nil
	case RULE_BETWEEN:
		return between(value, expected), nil
	case RULE_TRUE:
		return truthy(value), nil
	case RULE_FALSE:
		return !truthy(value), nil
	case RULE_NULL:
		return value == nil, nil
	case RULE_NOT_NULL:
		return value != nil, nil
	case RULE_CONTAINS:
		if value == nil || expected == nil {
			return false, nil
		}
		return strings.Contains(stringify(value), stringify(expected)), nil
	case RULE_OTHERWISE:
		return true, nil
	}
	return false, InvalidRuleError{Rule: rule}
}

func isComposite(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	}
	return false
}

// equal compares composites deeply and everything else loosely, "10" equals 10.
func equal(a any, b any) bool {
	if isComposite(a) || isComposite(b) {
		return reflect.DeepEqual(a, b)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	fa, errA := cast.ToFloat64E(a)
	fb, errB := cast.ToFloat64E(b)
	if errA == nil && errB == nil {
		return fa == fb
	}
	return stringify(a) == stringify(b)
}

func number(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if s, ok := v.(string); ok && len(strings.TrimSpace(s)) == 0 {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

func compare(rule string, value any, expected any) bool {
	a, ok := number(value)
	if !ok {
		return false
	}
	b, ok := number(expected)
	if !ok {
		return false
	}
	switch rule {
	case RULE_GREATER:
		return a > b
	case RULE_LESS:
		return a < b
	case RULE_GREATER_EQUAL:
		return a >= b
	default:
		return a <= b
	}
}

func between(value any, bounds any) bool {
	if bounds == nil {
		return false
	}
	rv := reflect.ValueOf(bounds)
	if (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Len() < 2 {
		return false
	}
	list := []any{rv.Index(0).Interface(), rv.Index(1).Interface()}
	v, ok := number(value)
	if !ok {
		return false
	}
	low, ok := number(list[0])
	if !ok {
		return false
	}
	high, ok := number(list[1])
	if !ok {
		return false
	}
	return low <= v && v <= high
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return len(val) != 0
	}
	if f, err := cast.ToFloat64E(v); err == nil {
		return f != 0
	}
	return true
}

func stringify(v any) string {
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprintf("%v", v)
}
