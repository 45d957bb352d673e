// ABOUTME: Tests for the Scheduler: wave execution, fail-fast, conditions, and forEach expansion
// ABOUTME: Drives every run through the mock executor so outcomes are fully deterministic

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/corewave/orchestrator/internal/executor"
	"github.com/corewave/orchestrator/pkg/types"
)

type stepClock struct{ cur time.Time }

func (c *stepClock) Now() time.Time {
	c.cur = c.cur.Add(time.Millisecond)
	return c.cur
}

func newTestScheduler(mock *executor.Mock) *Scheduler {
	return New(
		WithConfig(types.Config{ConcurrencyLimit: 4, FailFast: true, ForEachMaxDepth: 3}),
		WithExecutor("noop", mock),
		WithClock(&stepClock{}),
	)
}

func TestScheduler_Execute_LinearSuccess(t *testing.T) {
	mock := executor.NewMock(&stepClock{})
	sched := newTestScheduler(mock)

	workflow := &types.WorkflowDefinition{
		Name: "linear",
		Tasks: []types.TaskStep{
			{ID: "a", TaskRef: "fetch"},
			{ID: "b", TaskRef: "use", DependsOn: []string{"a"}},
		},
	}
	library := TaskLibrary{
		"fetch": {Name: "fetch", Kind: "noop"},
		"use":   {Name: "use", Kind: "noop"},
	}

	result, err := sched.Execute(context.Background(), workflow, library, nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Status != types.RunSucceeded {
		t.Fatalf("expected success, got status %s (error=%s)", result.Status, result.Error)
	}
	if len(result.TaskResults) != 2 {
		t.Fatalf("expected 2 task results, got %d", len(result.TaskResults))
	}
	if len(result.ParallelGroups) != 2 {
		t.Fatalf("expected 2 waves, got %d", len(result.ParallelGroups))
	}
}

func TestScheduler_Execute_FailFastSkipsLaterWaves(t *testing.T) {
	mock := executor.NewMock(&stepClock{})
	mock.Enqueue("willFail", types.TaskExecutionResult{Success: false, ErrKind: "boom", ErrMsg: "it broke"})
	sched := newTestScheduler(mock)

	workflow := &types.WorkflowDefinition{
		Name: "fail-fast",
		Tasks: []types.TaskStep{
			{ID: "a", TaskRef: "willFail"},
			{ID: "b", TaskRef: "ok", DependsOn: []string{"a"}},
		},
	}
	library := TaskLibrary{
		"willFail": {Name: "willFail", Kind: "noop"},
		"ok":       {Name: "ok", Kind: "noop"},
	}

	result, err := sched.Execute(context.Background(), workflow, library, nil)
	if err != nil {
		t.Fatalf("expected no error (failures are reported via result, not err), got: %v", err)
	}
	if result.Status != types.RunFailed {
		t.Fatal("expected the run to be marked failed")
	}
	if result.FailedTask != "a" {
		t.Errorf("expected failed task 'a', got %q", result.FailedTask)
	}

	var bSkipped bool
	for _, tr := range result.TaskResults {
		if tr.TaskID == "b" && tr.Status == types.TaskSkipped {
			bSkipped = true
		}
	}
	if !bSkipped {
		t.Error("expected task 'b' to be skipped once its dependency failed under fail-fast")
	}
}

func TestScheduler_Execute_ConditionSkipsTask(t *testing.T) {
	mock := executor.NewMock(&stepClock{})
	sched := newTestScheduler(mock)

	workflow := &types.WorkflowDefinition{
		Name: "conditional",
		Tasks: []types.TaskStep{
			{ID: "maybe", TaskRef: "noop", Condition: "{{ input.enabled }}"},
		},
	}
	library := TaskLibrary{"noop": {Name: "noop", Kind: "noop"}}

	result, err := sched.Execute(context.Background(), workflow, library, map[string]interface{}{"enabled": false})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.TaskResults[0].Status != types.TaskSkipped {
		t.Errorf("expected the task to be skipped by its condition, got %s", result.TaskResults[0].Status)
	}
}

func TestScheduler_Execute_ForEachAggregatesResults(t *testing.T) {
	mock := executor.NewMock(&stepClock{})
	mock.SetDefault(types.TaskExecutionResult{Success: true, Output: types.TaskOutput{"squared": 0}})
	sched := newTestScheduler(mock)

	workflow := &types.WorkflowDefinition{
		Name: "foreach",
		Tasks: []types.TaskStep{
			{
				ID: "loop",
				ForEach: &types.ForEachSpec{
					In: "{{ input.items }}",
					Body: &types.TaskStep{
						ID:      "loop-body",
						TaskRef: "noop",
					},
				},
			},
		},
	}
	library := TaskLibrary{"noop": {Name: "noop", Kind: "noop"}}

	result, err := sched.Execute(context.Background(), workflow, library, map[string]interface{}{
		"items": []interface{}{"a", "b", "c"},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Status != types.RunSucceeded {
		t.Fatalf("expected success, got status %s", result.Status)
	}
	loopResult := result.TaskResults[0]
	if loopResult.TaskID != "loop" {
		t.Fatalf("expected the loop step's own record, got %+v", loopResult)
	}
	results, ok := loopResult.Output["results"].([]interface{})
	if !ok || len(results) != 3 {
		t.Fatalf("expected 3 aggregated results, got %+v", loopResult.Output)
	}
}

func TestScheduler_Execute_UnknownTaskRefFailsAtBuildTime(t *testing.T) {
	mock := executor.NewMock(&stepClock{})
	sched := newTestScheduler(mock)

	workflow := &types.WorkflowDefinition{
		Name:  "bad-ref",
		Tasks: []types.TaskStep{{ID: "a", TaskRef: "does-not-exist"}},
	}

	// graph.Build validates taskRef against the library before any wave runs (§7: caller
	// sees no partial state), so this must fail as a BuildError rather than a TaskFailed
	// result produced after dispatch.
	result, err := sched.Execute(context.Background(), workflow, TaskLibrary{}, nil)
	if err == nil {
		t.Fatal("expected an error when a taskRef doesn't resolve in the library")
	}
	if result != nil {
		t.Errorf("expected no partial ExecutionResult, got %+v", result)
	}
	buildErr, ok := err.(*types.BuildError)
	if !ok {
		t.Fatalf("expected *types.BuildError, got %T", err)
	}
	if buildErr.Kind != types.UnknownTaskRef {
		t.Errorf("expected UnknownTaskRef kind, got %v", buildErr.Kind)
	}
}

func TestScheduler_Execute_UnknownTaskRefInLaterWaveCaughtBeforeAnyTaskRuns(t *testing.T) {
	mock := executor.NewMock(&stepClock{})
	sched := newTestScheduler(mock)

	workflow := &types.WorkflowDefinition{
		Name: "bad-ref-later-wave",
		Tasks: []types.TaskStep{
			{ID: "a", TaskRef: "noop"},
			{ID: "b", TaskRef: "does-not-exist", DependsOn: []string{"a"}},
		},
	}
	library := TaskLibrary{"noop": {Name: "noop", Kind: "noop"}}

	if _, err := sched.Execute(context.Background(), workflow, library, nil); err == nil {
		t.Fatal("expected an error before wave 1 ('a') ever dispatches")
	}
	if invocations := mock.Invocations(); len(invocations) != 0 {
		t.Errorf("expected no task to have run, got invocations: %+v", invocations)
	}
}

func TestScheduler_Execute_RequiredInputMissingFails(t *testing.T) {
	mock := executor.NewMock(&stepClock{})
	sched := newTestScheduler(mock)

	workflow := &types.WorkflowDefinition{
		Name:        "needs-input",
		InputSchema: map[string]types.InputParam{"token": {Type: "string", Required: true}},
		Tasks:       []types.TaskStep{{ID: "a", TaskRef: "noop"}},
	}
	library := TaskLibrary{"noop": {Name: "noop", Kind: "noop"}}

	_, err := sched.Execute(context.Background(), workflow, library, map[string]interface{}{})
	if err == nil {
		t.Fatal("expected an error for missing required input")
	}
	if _, ok := err.(*types.ValidationError); !ok {
		t.Errorf("expected *types.ValidationError, got %T", err)
	}
}

func TestScheduler_Execute_RequiredInputWrongTypeFails(t *testing.T) {
	mock := executor.NewMock(&stepClock{})
	sched := newTestScheduler(mock)

	workflow := &types.WorkflowDefinition{
		Name:        "typed-input",
		InputSchema: map[string]types.InputParam{"count": {Type: "number", Required: true}},
		Tasks:       []types.TaskStep{{ID: "a", TaskRef: "noop"}},
	}
	library := TaskLibrary{"noop": {Name: "noop", Kind: "noop"}}

	_, err := sched.Execute(context.Background(), workflow, library, map[string]interface{}{"count": "abc"})
	if err == nil {
		t.Fatal("expected an error for a wrong-typed input field")
	}
	if _, ok := err.(*types.ValidationError); !ok {
		t.Errorf("expected *types.ValidationError, got %T", err)
	}
}

// TestScheduler_Execute_FailFastFalseSkipsOnlyTransitiveDependents exercises spec scenario
// S5: graph A -> B, plus C independent of both. A fails; under failFast=false, B (a
// transitive dependent of A) must be skipped while C, which shares no edge with A, still
// completes. This is the behavior §7/§8 invariant 5 require and which was previously
// unimplemented (haltWaves was only ever set when FailFast was true).
func TestScheduler_Execute_FailFastFalseSkipsOnlyTransitiveDependents(t *testing.T) {
	mock := executor.NewMock(&stepClock{})
	mock.Enqueue("willFail", types.TaskExecutionResult{Success: false, ErrKind: "boom", ErrMsg: "it broke"})
	sched := New(
		WithConfig(types.Config{ConcurrencyLimit: 4, FailFast: false, ForEachMaxDepth: 3}),
		WithExecutor("noop", mock),
		WithClock(&stepClock{}),
	)

	workflow := &types.WorkflowDefinition{
		Name: "independent-branch",
		Tasks: []types.TaskStep{
			{ID: "a", TaskRef: "willFail"},
			{ID: "b", TaskRef: "dependent", DependsOn: []string{"a"}},
			{ID: "c", TaskRef: "independent"},
		},
	}
	library := TaskLibrary{
		"willFail":    {Name: "willFail", Kind: "noop"},
		"dependent":   {Name: "dependent", Kind: "noop"},
		"independent": {Name: "independent", Kind: "noop"},
	}

	result, err := sched.Execute(context.Background(), workflow, library, nil)
	if err != nil {
		t.Fatalf("expected no error (failures are reported via result, not err), got: %v", err)
	}
	if result.Status != types.RunFailed {
		t.Fatal("expected the run to be marked failed since a failed")
	}

	statuses := make(map[string]types.TaskStatus, len(result.TaskResults))
	for _, tr := range result.TaskResults {
		statuses[tr.TaskID] = tr.Status
	}
	if statuses["a"] != types.TaskFailed {
		t.Errorf("expected 'a' failed, got %s", statuses["a"])
	}
	if statuses["b"] != types.TaskSkipped {
		t.Errorf("expected 'b' skipped as a's transitive dependent, got %s", statuses["b"])
	}
	if statuses["c"] != types.TaskCompleted {
		t.Errorf("expected independent task 'c' to still complete, got %s", statuses["c"])
	}
}

// TestScheduler_Execute_NestedForEachResolvesParentFrame exercises spec scenario S6: a
// forEach nested inside another forEach, whose body references forEach.$parent to read the
// outer iteration's item. Both levels run Sequential so the Mock's invocation log captures
// a deterministic order.
func TestScheduler_Execute_NestedForEachResolvesParentFrame(t *testing.T) {
	mock := executor.NewMock(&stepClock{})
	mock.SetDefault(types.TaskExecutionResult{Success: true, Output: types.TaskOutput{}})
	sched := newTestScheduler(mock)

	workflow := &types.WorkflowDefinition{
		Name: "nested-foreach",
		Tasks: []types.TaskStep{
			{
				ID: "notifyDepartments",
				ForEach: &types.ForEachSpec{
					In:         "{{ input.departments }}",
					Sequential: true,
					Body: &types.TaskStep{
						ID: "notifyMembers",
						ForEach: &types.ForEachSpec{
							In:         "{{ input.members }}",
							Sequential: true,
							Body: &types.TaskStep{
								ID:      "notify",
								TaskRef: "notify",
								Input:   map[string]interface{}{"team": "{{ forEach.$parent.item }}"},
							},
						},
					},
				},
			},
		},
	}
	library := TaskLibrary{"notify": {Name: "notify", Kind: "noop"}}

	result, err := sched.Execute(context.Background(), workflow, library, map[string]interface{}{
		"departments": []interface{}{"Eng", "Ops"},
		"members":     []interface{}{"a", "b"},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Status != types.RunSucceeded {
		t.Fatalf("expected success, got status %s (error=%s)", result.Status, result.Error)
	}

	invocations := mock.Invocations()
	if len(invocations) != 4 {
		t.Fatalf("expected 4 invocations (2 departments x 2 members), got %d: %+v", len(invocations), invocations)
	}
	wantTeams := []string{"Eng", "Eng", "Ops", "Ops"}
	for i, want := range wantTeams {
		if got := invocations[i].ResolvedInput["team"]; got != want {
			t.Errorf("invocation %d: expected team %q, got %v", i, want, got)
		}
	}
}
