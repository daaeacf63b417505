package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var templateToken = regexp.MustCompile("{(.*?)}")

// ResolveTemplate replaces every {$.path} token in s with the value found at path in data.
// Tokens that do not resolve are left as they are.
func ResolveTemplate(data map[string]any, s string) string {
	tokens := templateToken.FindAllString(s, -1)
	if len(tokens) == 0 {
		return s
	}
	out := s
	for _, token := range tokens {
		expr := strings.TrimSuffix(strings.TrimPrefix(token, "{"), "}")
		if !strings.HasPrefix(expr, "$") {
			continue
		}
		value, err := jsonpath.JsonPathLookup(data, expr)
		if err != nil {
			continue
		}
		out = strings.ReplaceAll(out, token, fmt.Sprintf("%v", value))
	}
	return out
}

// ResolveParams resolves templates inside every string of params, walking nested maps and lists.
func ResolveParams(data map[string]any, params map[string]any) map[string]any {
	output := make(map[string]any, len(params))
	for k, v := range params {
		output[k] = resolveValue(data, v)
	}
	return output
}

func resolveValue(data map[string]any, v any) any {
	switch val := v.(type) {
	case map[string]any:
		return ResolveParams(data, val)
	case string:
		return ResolveTemplate(data, val)
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			out = append(out, resolveValue(data, item))
		}
		return out
	default:
		return v
	}
}
