// ABOUTME: Template Resolver — resolves {{ expr }} expressions against an execution context
// ABOUTME: Permissive by design: only malformed syntax or a frameless $parent/$root fail loudly

package template

import (
	"fmt"
	"strings"

	"github.com/corewave/orchestrator/pkg/types"
)

// ContextView is the narrow read surface the resolver needs from an execution context.
// internal/context's Context satisfies this structurally; no import cycle required.
type ContextView interface {
	Input() map[string]interface{}
	TaskOutput(id string) (types.TaskOutput, bool)
	CurrentFrame() *types.ForEachFrame
}

// undefined is the sentinel returned for any missing lookup that is not a hard error.
type undefined struct{}

var undefinedValue interface{} = undefined{}

// IsUndefined reports whether a resolved value represents an unresolved lookup.
func IsUndefined(v interface{}) bool {
	_, ok := v.(undefined)
	return ok
}

// Resolve recursively walks any value: strings are template-evaluated, maps and slices are
// resolved element-wise, everything else is returned unchanged.
func Resolve(value interface{}, ctx ContextView) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return ResolveString(v, ctx)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, elem := range v {
			resolved, err := Resolve(elem, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			resolved, err := Resolve(elem, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

// ResolveString implements the two resolution modes: a string that is exactly one
// "{{ expr }}" (ignoring surrounding whitespace) returns the raw typed value; otherwise
// every occurrence is substituted with its stringified form, undefined becoming "".
func ResolveString(s string, ctx ContextView) (interface{}, error) {
	if expr, ok := fullMatch(s); ok {
		val, err := evalExpr(expr, ctx)
		if err != nil {
			return nil, err
		}
		if IsUndefined(val) {
			return nil, nil
		}
		return val, nil
	}

	var b strings.Builder
	pos := 0
	for {
		start := strings.Index(s[pos:], "{{")
		if start < 0 {
			b.WriteString(s[pos:])
			break
		}
		start += pos
		b.WriteString(s[pos:start])

		end := strings.Index(s[start:], "}}")
		if end < 0 {
			return nil, types.NewTemplateError(s, "unterminated '{{' in template", nil)
		}
		end += start

		expr := strings.TrimSpace(s[start+2 : end])
		val, err := evalExpr(expr, ctx)
		if err != nil {
			return nil, err
		}
		if !IsUndefined(val) {
			b.WriteString(stringify(val))
		}
		pos = end + 2
	}
	return b.String(), nil
}

// fullMatch reports whether s is exactly one "{{ expr }}" with nothing else around it,
// returning the trimmed inner expression.
func fullMatch(s string) (string, bool) {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "{{") || !strings.HasSuffix(t, "}}") {
		return "", false
	}
	inner := t[2 : len(t)-2]
	if strings.Contains(inner, "}}") {
		return "", false
	}
	return strings.TrimSpace(inner), true
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// evalExpr parses and walks a single dot path against the context.
func evalExpr(expr string, ctx ContextView) (interface{}, error) {
	segs, err := parsePath(expr)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return undefinedValue, nil
	}

	root := segs[0]
	if root.isIndex {
		return undefinedValue, nil
	}

	switch root.name {
	case "input":
		return walkFrom(ctx.Input(), segs[1:]), nil
	case "tasks":
		return resolveTasks(segs[1:], ctx), nil
	case "forEach":
		return resolveForEach(expr, segs[1:], ctx)
	default:
		return undefinedValue, nil
	}
}

func resolveTasks(rest []segment, ctx ContextView) interface{} {
	if len(rest) < 2 || rest[0].isIndex || rest[1].isIndex || rest[1].name != "output" {
		return undefinedValue
	}
	taskID := rest[0].name
	output, ok := ctx.TaskOutput(taskID)
	if !ok {
		return undefinedValue
	}
	return walkFrom(map[string]interface{}(output), rest[2:])
}

func resolveForEach(expr string, rest []segment, ctx ContextView) (interface{}, error) {
	frame := ctx.CurrentFrame()
	if frame == nil {
		if len(rest) > 0 && !rest[0].isIndex && (rest[0].name == "$parent" || rest[0].name == "$root") {
			return nil, types.NewTemplateError(expr, rest[0].name+" used outside any forEach frame", nil)
		}
		return undefinedValue, nil
	}

	i := 0
	for i < len(rest) && !rest[i].isIndex && (rest[i].name == "$parent" || rest[i].name == "$root") {
		if rest[i].name == "$parent" {
			if frame.Parent == nil {
				return nil, types.NewTemplateError(expr, "$parent has no parent frame", nil)
			}
			frame = frame.Parent
		} else {
			frame = frame.Root()
		}
		i++
	}
	if i >= len(rest) || rest[i].isIndex {
		return undefinedValue, nil
	}

	switch rest[i].name {
	case "item":
		return walkFrom(frame.Item, rest[i+1:]), nil
	case "index":
		if i+1 != len(rest) {
			return undefinedValue, nil
		}
		return frame.Index, nil
	default:
		return undefinedValue, nil
	}
}

// walkFrom walks a value through a field/index path, returning undefined as soon as the
// current value can't satisfy the next step.
func walkFrom(cur interface{}, segs []segment) interface{} {
	for _, seg := range segs {
		if cur == nil {
			return undefinedValue
		}
		if seg.isIndex {
			slice, ok := cur.([]interface{})
			if !ok || seg.index < 0 || seg.index >= len(slice) {
				return undefinedValue
			}
			cur = slice[seg.index]
			continue
		}
		m, ok := cur.(map[string]interface{})
		if !ok {
			return undefinedValue
		}
		v, exists := m[seg.name]
		if !exists {
			return undefinedValue
		}
		cur = v
	}
	return cur
}
