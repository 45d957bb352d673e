// ABOUTME: ForEach evaluator — expands a task's forEach.in sequence into per-iteration frames
// ABOUTME: Nesting depth is enforced against the frame stack at evaluation time, not just statically

package controlflow

import (
	"github.com/corewave/orchestrator/internal/template"
	"github.com/corewave/orchestrator/pkg/types"
)

// ExpandForEach resolves spec.In against ctx and returns one frame per element, each linked
// to ctx's current frame as parent. The caller (the Scheduler) is responsible for actually
// running the per-iteration task body and aggregating outputs; this function only computes
// the frames.
func ExpandForEach(spec *types.ForEachSpec, ctx template.ContextView, maxDepth int) ([]*types.ForEachFrame, error) {
	parent := ctx.CurrentFrame()
	depth := 1
	if parent != nil {
		depth = parent.Depth() + 1
	}
	if depth > maxDepth {
		return nil, types.NewBuildError(types.NestingTooDeep, "", nil, "forEach nesting exceeds maximum depth")
	}

	resolved, err := template.ResolveString(spec.In, ctx)
	if err != nil {
		return nil, err
	}

	items, ok := resolved.([]interface{})
	if !ok {
		if resolved == nil {
			items = nil
		} else {
			return nil, types.NewTemplateError(spec.In, "forEach.in did not resolve to a sequence", nil)
		}
	}

	frames := make([]*types.ForEachFrame, len(items))
	for i, item := range items {
		frames[i] = &types.ForEachFrame{Item: item, Index: i, Parent: parent}
	}
	return frames, nil
}
