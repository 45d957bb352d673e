// ABOUTME: Graph Builder — merges explicit and implicit dependencies, detects cycles, computes waves
// ABOUTME: Grounded on a classic DFS gray/black cycle check plus a Kahn's-algorithm layering pass

package graph

import (
	"sort"

	"github.com/corewave/orchestrator/internal/template"
	"github.com/corewave/orchestrator/pkg/types"
)

// color marks a node's DFS state for cycle detection.
type color int

const (
	white color = iota
	gray
	black
)

// Build combines dependsOn with template-inferred dependencies, validates the graph, and
// computes the deterministic wave schedule. It does not run any task.
//
// library is the task catalog the workflow will eventually execute against; every leaf
// step's taskRef (including leaves reached through a forEach.body chain) must resolve in
// it, or Build returns an UnknownTaskRef BuildError before any wave runs. maxDepth is the
// caller's configured forEach nesting limit (Config.ForEachMaxDepth); pass
// types.DefaultForEachMaxDepth for the documented default.
func Build(workflow *types.WorkflowDefinition, library map[string]*types.TaskDefinition, maxDepth int) (*types.ExecutionGraph, error) {
	stepByID := make(map[string]*types.TaskStep, len(workflow.Tasks))
	for i := range workflow.Tasks {
		step := &workflow.Tasks[i]
		stepByID[step.ID] = step
	}

	for i := range workflow.Tasks {
		if err := validateTaskRefs(&workflow.Tasks[i], library); err != nil {
			return nil, err
		}
	}

	deps := make(map[string][]string, len(workflow.Tasks))
	diagnostics := make([]types.GraphDiagnostics, 0, len(workflow.Tasks))

	for i := range workflow.Tasks {
		step := &workflow.Tasks[i]
		implicit := template.ExtractDependencies(map[string]interface{}(step.Input))
		sort.Strings(implicit)

		merged := make(map[string]struct{}, len(step.DependsOn)+len(implicit))
		for _, id := range step.DependsOn {
			merged[id] = struct{}{}
		}
		for _, id := range implicit {
			merged[id] = struct{}{}
		}

		dedup := make([]string, 0, len(merged))
		for id := range merged {
			dedup = append(dedup, id)
		}
		sort.Strings(dedup)
		deps[step.ID] = dedup

		diagnostics = append(diagnostics, types.GraphDiagnostics{
			TaskID:               step.ID,
			ExplicitDependencies: append([]string(nil), step.DependsOn...),
			ImplicitDependencies: implicit,
		})
	}

	for id, ds := range deps {
		for _, dep := range ds {
			if _, ok := stepByID[dep]; !ok {
				return nil, types.NewBuildError(types.UnknownDependency, id, []string{dep},
					"task references unknown dependency '"+dep+"'")
			}
		}
	}

	if cycleIDs := detectCycle(deps); cycleIDs != nil {
		return nil, types.NewBuildError(types.Cycle, "", cycleIDs, "cyclic dependency detected")
	}

	if err := validateForEachDepth(workflow, maxDepth); err != nil {
		return nil, err
	}

	waves, err := computeWaves(deps)
	if err != nil {
		return nil, err
	}

	return &types.ExecutionGraph{
		Deps:        deps,
		Waves:       waves,
		Diagnostics: diagnostics,
	}, nil
}

// validateTaskRefs checks step's taskRef against library, recursing into forEach.body
// chains to find the true leaf step that actually dispatches to an executor — mirroring
// how the scheduler resolves a step at run time (a forEach step never itself carries a
// TaskRef; its body does, possibly several levels of nested forEach down). A nil library
// means the caller has no catalog to validate against yet (e.g. dry-run planning), so the
// check is skipped and left to happen at execution time instead.
func validateTaskRefs(step *types.TaskStep, library map[string]*types.TaskDefinition) error {
	if library == nil {
		return nil
	}
	if step.ForEach != nil {
		return validateTaskRefs(step.ForEach.Body, library)
	}
	if _, ok := library[step.TaskRef]; !ok {
		return types.NewBuildError(types.UnknownTaskRef, step.ID, []string{step.TaskRef},
			"no TaskDefinition registered for taskRef '"+step.TaskRef+"'")
	}
	return nil
}

// detectCycle runs DFS with gray/black coloring. On finding a back-edge into a gray node, it
// returns the nodes in the current recursion stack from that node to the top, for debugging.
func detectCycle(deps map[string][]string) []string {
	colors := make(map[string]color, len(deps))
	var stack []string
	var cyclePath []string

	ids := make([]string, 0, len(deps))
	for id := range deps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = gray
		stack = append(stack, id)

		for _, dep := range deps[id] {
			switch colors[dep] {
			case gray:
				// found a back-edge: report from the re-visited node to the top of the stack.
				for i, s := range stack {
					if s == dep {
						cyclePath = append([]string(nil), stack[i:]...)
						break
					}
				}
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = black
		return false
	}

	for _, id := range ids {
		if colors[id] == white {
			if visit(id) {
				return cyclePath
			}
		}
	}
	return nil
}

// computeWaves implements the §4.C step 5 procedure: repeatedly pull the id-sorted set of
// ready nodes (all dependencies completed) into the next wave.
func computeWaves(deps map[string][]string) ([][]string, error) {
	remaining := make(map[string]struct{}, len(deps))
	for id := range deps {
		remaining[id] = struct{}{}
	}
	completed := make(map[string]struct{}, len(deps))

	var waves [][]string
	for len(remaining) > 0 {
		var ready []string
		for id := range remaining {
			if dependenciesSatisfied(deps[id], completed) {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			// Defensive: cycle detection above should have already caught this.
			ids := make([]string, 0, len(remaining))
			for id := range remaining {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			return nil, types.NewBuildError(types.Cycle, "", ids, "no progress possible; cyclic dependency")
		}

		sort.Strings(ready)
		waves = append(waves, ready)
		for _, id := range ready {
			delete(remaining, id)
			completed[id] = struct{}{}
		}
	}
	return waves, nil
}

func dependenciesSatisfied(deps []string, completed map[string]struct{}) bool {
	for _, dep := range deps {
		if _, ok := completed[dep]; !ok {
			return false
		}
	}
	return true
}
