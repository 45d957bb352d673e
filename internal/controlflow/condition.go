// ABOUTME: Condition evaluator — a task's `condition` template coerced to boolean truthiness
// ABOUTME: False skips the task; falsy values are false, 0, "", null, and any undefined lookup

package controlflow

import (
	"github.com/spf13/cast"

	"github.com/corewave/orchestrator/internal/template"
)

// EvaluateCondition resolves tmpl in full-expression mode and coerces the result to boolean.
// An empty condition string is treated as always-true (no condition configured).
func EvaluateCondition(tmpl string, ctx template.ContextView) (bool, error) {
	if tmpl == "" {
		return true, nil
	}
	val, err := template.ResolveString(tmpl, ctx)
	if err != nil {
		return false, err
	}
	return truthy(val), nil
}

// truthy mirrors §4.H's falsy set: false, 0, "", null/undefined are false; everything else
// (including non-empty strings, non-zero numbers, non-empty collections) is true.
func truthy(val interface{}) bool {
	if val == nil {
		return false
	}
	switch v := val.(type) {
	case string:
		return v != ""
	case bool:
		return v
	case map[string]interface{}:
		return len(v) > 0
	case []interface{}:
		return len(v) > 0
	default:
		n, err := cast.ToFloat64E(v)
		if err == nil {
			return n != 0
		}
		return true
	}
}
