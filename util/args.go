package util

import "github.com/spf13/cast"

const ASSIGN_TO = "$assignTo"
const INDEX_OF = "$indexOf"

// MergeArguments shallow merges static on top of prev when prev is a map.
// prev is never modified.
func MergeArguments(prev any, static map[string]any) map[string]any {
	prevMap, ok := prev.(map[string]any)
	if !ok {
		return static
	}
	merged := make(map[string]any, len(prevMap)+len(static))
	for k, v := range prevMap {
		merged[k] = v
	}
	for k, v := range static {
		merged[k] = v
	}
	return merged
}

func TransformResult(result any, transform map[string]any) any {
	if len(transform) == 0 {
		return result
	}
	output := result
	switch res := result.(type) {
	case map[string]any:
		renamed := make(map[string]any, len(res))
		for k, v := range res {
			key := k
			if to, ok := transform[k].(string); ok && len(to) != 0 {
				key = to
			}
			renamed[key] = v
		}
		output = renamed
	case []any:
		if idx, ok := transform[INDEX_OF]; ok {
			i, err := cast.ToIntE(idx)
			if err == nil && i >= 0 && i < len(res) {
				output = res[i]
			}
		}
	}
	if assignTo, ok := transform[ASSIGN_TO].(string); ok && len(assignTo) != 0 {
		return map[string]any{assignTo: output}
	}
	return output
}

// CopyMap returns a shallow copy, nil stays nil.
func CopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
