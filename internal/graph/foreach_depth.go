// ABOUTME: Static validation of forEach nesting depth against the configured maximum
// ABOUTME: Walks each task's ForEachSpec.Body chain independently of runtime frame depth

package graph

import (
	"strconv"

	"github.com/corewave/orchestrator/pkg/types"
)

// validateForEachDepth rejects a workflow containing a forEach whose Body chain nests deeper
// than maxDepth (§8.8: a 4-deep nested forEach must fail to build when the limit is 3). The
// limit is the caller's configured Config.ForEachMaxDepth so build-time enforcement matches
// what controlflow.ExpandForEach enforces at run time.
func validateForEachDepth(workflow *types.WorkflowDefinition, maxDepth int) error {
	for i := range workflow.Tasks {
		step := &workflow.Tasks[i]
		if depth := forEachChainDepth(step); depth > maxDepth {
			return types.NewBuildError(types.NestingTooDeep, step.ID, nil,
				"forEach nesting exceeds maximum depth of "+strconv.Itoa(maxDepth))
		}
	}
	return nil
}

func forEachChainDepth(step *types.TaskStep) int {
	depth := 0
	for cur := step; cur != nil && cur.ForEach != nil; cur = cur.ForEach.Body {
		depth++
	}
	return depth
}
