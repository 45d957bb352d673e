// ABOUTME: Scheduler — the orchestration core's core: drives a built ExecutionGraph wave by
// ABOUTME: wave, resolving templates, evaluating control flow, and invoking task executors

package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/corewave/orchestrator/internal/accounting"
	execctx "github.com/corewave/orchestrator/internal/context"
	"github.com/corewave/orchestrator/internal/controlflow"
	"github.com/corewave/orchestrator/internal/graph"
	"github.com/corewave/orchestrator/internal/template"
	"github.com/corewave/orchestrator/pkg/types"
)

// Scheduler executes one WorkflowDefinition against a registry of TaskExecutors, producing
// an ExecutionResult. It owns no state across runs; Execute is safe to call repeatedly and
// concurrently on the same Scheduler.
type Scheduler struct {
	config    types.Config
	executors map[string]types.TaskExecutor
	clock     types.Clock
	idGen     types.IdGenerator
	logger    types.Logger
	sink      types.ExecutionSink
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

func WithConfig(cfg types.Config) Option { return func(s *Scheduler) { s.config = cfg } }

func WithExecutor(kind string, exec types.TaskExecutor) Option {
	return func(s *Scheduler) { s.executors[kind] = exec }
}

func WithClock(clock types.Clock) Option { return func(s *Scheduler) { s.clock = clock } }

func WithIdGenerator(gen types.IdGenerator) Option { return func(s *Scheduler) { s.idGen = gen } }

func WithLogger(logger types.Logger) Option { return func(s *Scheduler) { s.logger = logger } }

func WithSink(sink types.ExecutionSink) Option { return func(s *Scheduler) { s.sink = sink } }

// realClock is the production types.Clock.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// New creates a Scheduler with the documented defaults, applying opts on top.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		config:    types.DefaultConfig(),
		executors: make(map[string]types.TaskExecutor),
		clock:     realClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TaskLibrary indexes a workflow's task library by name so TaskStep.TaskRef resolves to a
// TaskDefinition. Callers assemble this from whatever catalog they load tasks from.
type TaskLibrary map[string]*types.TaskDefinition

// Execute runs workflow to completion (or first failure, under fail-fast) against input,
// looking up each step's TaskDefinition in library.
func (s *Scheduler) Execute(ctx context.Context, workflow *types.WorkflowDefinition, library TaskLibrary, input map[string]interface{}) (*types.ExecutionResult, error) {
	acct := accounting.New(s.clock)
	acct.MarkRunStart()

	executionID := "exec-unknown"
	if s.idGen != nil {
		executionID = s.idGen.NextID()
	}

	acct.MarkGraphBuildStart()
	maxDepth := s.config.ForEachMaxDepth
	if maxDepth <= 0 {
		maxDepth = types.DefaultForEachMaxDepth
	}
	execGraph, err := graph.Build(workflow, map[string]*types.TaskDefinition(library), maxDepth)
	acct.MarkGraphBuildEnd()
	if err != nil {
		return nil, err
	}

	if err := validateInput(workflow, input); err != nil {
		return nil, err
	}

	execCtx := execctx.New(input)
	stepByID := make(map[string]*types.TaskStep, len(workflow.Tasks))
	for i := range workflow.Tasks {
		stepByID[workflow.Tasks[i].ID] = &workflow.Tasks[i]
	}

	var (
		mu         sync.Mutex
		records    []types.TaskResultRecord
		failedTask string
		runErr     error
		haltWaves  bool
		blocked    = make(map[string]bool, len(workflow.Tasks))
	)

	for waveNum, wave := range execGraph.Waves {
		if haltWaves {
			for _, id := range wave {
				records = append(records, types.TaskResultRecord{TaskID: id, TaskRef: stepByID[id].TaskRef, Status: types.TaskSkipped})
			}
			continue
		}

		acct.MarkFirstDispatch()
		waveStart := s.clock.Now()

		var runnable []string
		for _, id := range wave {
			if dependsOnBlocked(execGraph.Deps[id], blocked) {
				blocked[id] = true
				records = append(records, types.TaskResultRecord{TaskID: id, TaskRef: stepByID[id].TaskRef, Status: types.TaskSkipped})
				continue
			}
			runnable = append(runnable, id)
		}

		p := pool.New().WithMaxGoroutines(clampConcurrency(s.config.ConcurrencyLimit, len(runnable)))
		for _, id := range runnable {
			step := stepByID[id]
			p.Go(func() {
				record, entry, taskErr := s.runStep(ctx, step, library, execCtx, acct)

				mu.Lock()
				defer mu.Unlock()
				records = append(records, record)
				execCtx.SetTaskEntry(step.ID, entry)
				if taskErr != nil {
					blocked[step.ID] = true
					if runErr == nil {
						runErr = taskErr
						failedTask = step.ID
					}
					if s.config.FailFast {
						haltWaves = true
					}
				}
			})
		}
		p.Wait()

		acct.MarkWave(waveNum+1, wave, waveStart, s.clock.Now())
	}

	sort.Slice(records, func(i, j int) bool { return records[i].TaskID < records[j].TaskID })

	status := types.RunSucceeded
	if runErr != nil {
		status = types.RunFailed
	}

	output := resolveOutputMapping(workflow.OutputMapping, execCtx)

	acct.MarkRunEnd()
	cost := acct.Finalize()

	result := &types.ExecutionResult{
		ExecutionID:              executionID,
		WorkflowName:             workflow.Name,
		Status:                   status,
		Output:                   output,
		TaskResults:              records,
		ParallelGroups:           execGraph.Waves,
		FailedTask:               failedTask,
		ExecutionTimeMs:          acct.ExecutionTimeMs(),
		GraphBuildDurationMicros: acct.GraphBuildDurationMicros(),
		OrchestrationCost:        cost,
		GraphDiagnostics:         execGraph.Diagnostics,
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}

	if s.sink != nil {
		if sinkErr := s.sink.OnResult(ctx, result); sinkErr != nil && s.logger != nil {
			s.logger.Warn().Err(sinkErr).Str("executionId", executionID).Msg("execution sink failed")
		}
	}

	return result, nil
}

// runStep resolves condition/input and either expands a forEach or invokes the task
// executor directly, returning the record to publish and the entry to store in execCtx.
func (s *Scheduler) runStep(ctx context.Context, step *types.TaskStep, library TaskLibrary, execCtx *execctx.Context, acct *accounting.Accountant) (types.TaskResultRecord, types.TaskEntry, error) {
	ok, err := controlflow.EvaluateCondition(step.Condition, execCtx)
	if err != nil {
		return s.templateFailure(step, err)
	}
	if !ok {
		entry := types.TaskEntry{Status: types.TaskSkipped}
		return types.TaskResultRecord{TaskID: step.ID, TaskRef: step.TaskRef, Status: types.TaskSkipped}, entry, nil
	}

	if step.ForEach != nil {
		return s.runForEach(ctx, step, library, execCtx)
	}

	return s.runLeaf(ctx, step, library, execCtx)
}

func (s *Scheduler) templateFailure(step *types.TaskStep, err error) (types.TaskResultRecord, types.TaskEntry, error) {
	entry := types.TaskEntry{Status: types.TaskFailed, Err: err}
	record := types.TaskResultRecord{TaskID: step.ID, TaskRef: step.TaskRef, Status: types.TaskFailed, Error: err.Error()}
	return record, entry, err
}

func (s *Scheduler) runLeaf(ctx context.Context, step *types.TaskStep, library TaskLibrary, execCtx *execctx.Context) (types.TaskResultRecord, types.TaskEntry, error) {
	taskDef, ok := library[step.TaskRef]
	if !ok {
		err := types.NewBuildError(types.UnknownTaskRef, step.ID, []string{step.TaskRef}, "no TaskDefinition registered for taskRef")
		return s.templateFailure(step, err)
	}

	executor, ok := s.executors[taskDef.Kind]
	if !ok {
		err := fmt.Errorf("no executor registered for task kind %q", taskDef.Kind)
		return s.templateFailure(step, err)
	}

	resolved, err := template.Resolve(map[string]interface{}(step.Input), execCtx)
	if err != nil {
		return s.templateFailure(step, err)
	}
	resolvedInput, _ := resolved.(map[string]interface{})

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = s.config.DefaultTaskTimeout
	}
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := s.clock.Now()
	execResult, err := executor.Execute(runCtx, taskDef, resolvedInput, timeout)
	duration := s.clock.Now().Sub(start)

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			terr := types.NewTimeoutError(step.ID)
			entry := types.TaskEntry{Status: types.TaskFailed, Duration: duration, Err: terr}
			record := types.TaskResultRecord{TaskID: step.ID, TaskRef: step.TaskRef, Status: types.TaskFailed, Error: terr.Error(), ResolvedInput: resolvedInput, Duration: duration}
			return record, entry, terr
		}
		if ctx.Err() == context.Canceled {
			cerr := types.NewCancelledError(step.ID)
			entry := types.TaskEntry{Status: types.TaskSkipped, Duration: duration, Err: cerr}
			record := types.TaskResultRecord{TaskID: step.ID, TaskRef: step.TaskRef, Status: types.TaskSkipped, ResolvedInput: resolvedInput, Duration: duration}
			return record, entry, cerr
		}
		entry := types.TaskEntry{Status: types.TaskFailed, Duration: duration, Err: err}
		record := types.TaskResultRecord{TaskID: step.ID, TaskRef: step.TaskRef, Status: types.TaskFailed, Error: err.Error(), ResolvedInput: resolvedInput, Duration: duration}
		return record, entry, err
	}

	if !execResult.Success {
		execErr := types.NewExecutionError(step.ID, execResult.ErrKind, execResult.ErrMsg)
		entry := types.TaskEntry{Output: execResult.Output, Status: types.TaskFailed, Duration: duration, Err: execErr}
		record := types.TaskResultRecord{
			TaskID: step.ID, TaskRef: step.TaskRef, Status: types.TaskFailed, Output: execResult.Output,
			Error: execErr.Error(), ResolvedInput: resolvedInput, Duration: duration,
		}
		return record, entry, execErr
	}

	entry := types.TaskEntry{Output: execResult.Output, Status: types.TaskCompleted, Duration: duration}
	record := types.TaskResultRecord{
		TaskID: step.ID, TaskRef: step.TaskRef, Status: types.TaskCompleted, Output: execResult.Output,
		ResolvedInput: resolvedInput, Duration: duration,
	}
	return record, entry, nil
}

// runForEach expands step.ForEach against the current frame and runs step.ForEach.Body once
// per element, each in its own isolated task namespace (via execCtx.Clone) so a repeated
// inner task id across iterations can't collide. Results are aggregated under step.ID.
func (s *Scheduler) runForEach(ctx context.Context, step *types.TaskStep, library TaskLibrary, execCtx *execctx.Context) (types.TaskResultRecord, types.TaskEntry, error) {
	maxDepth := s.config.ForEachMaxDepth
	if maxDepth <= 0 {
		maxDepth = types.DefaultForEachMaxDepth
	}
	frames, err := controlflow.ExpandForEach(step.ForEach, execCtx, maxDepth)
	if err != nil {
		return s.templateFailure(step, err)
	}

	results := make([]interface{}, len(frames))
	var firstErr error
	start := s.clock.Now()

	runIteration := func(i int) error {
		iterCtx, cloneErr := execCtx.Clone()
		if cloneErr != nil {
			return cloneErr
		}
		iterCtx = iterCtx.WithFrame(frames[i])

		body := step.ForEach.Body
		record, entry, iterErr := s.runLeafOrNested(ctx, body, library, iterCtx)
		iterCtx.SetTaskEntry(body.ID, entry)
		results[i] = record.Output
		return iterErr
	}

	if step.ForEach.Sequential {
		for i := range frames {
			if err := runIteration(i); err != nil && firstErr == nil {
				firstErr = err
				if s.config.FailFast {
					break
				}
			}
		}
	} else {
		p := pool.New().WithMaxGoroutines(clampConcurrency(s.config.ConcurrencyLimit, len(frames)))
		var mu sync.Mutex
		for i := range frames {
			i := i
			p.Go(func() {
				if err := runIteration(i); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			})
		}
		p.Wait()
	}

	duration := s.clock.Now().Sub(start)
	output := types.TaskOutput{"results": results}

	if firstErr != nil {
		entry := types.TaskEntry{Output: output, Status: types.TaskFailed, Duration: duration, Err: firstErr}
		record := types.TaskResultRecord{TaskID: step.ID, TaskRef: step.TaskRef, Status: types.TaskFailed, Output: output, Error: firstErr.Error(), Duration: duration}
		return record, entry, firstErr
	}

	entry := types.TaskEntry{Output: output, Status: types.TaskCompleted, Duration: duration}
	record := types.TaskResultRecord{TaskID: step.ID, TaskRef: step.TaskRef, Status: types.TaskCompleted, Output: output, Duration: duration}
	return record, entry, nil
}

// runLeafOrNested handles a forEach body that is itself a nested forEach, recursing one
// level; otherwise it runs the body as a plain leaf task.
func (s *Scheduler) runLeafOrNested(ctx context.Context, body *types.TaskStep, library TaskLibrary, iterCtx *execctx.Context) (types.TaskResultRecord, types.TaskEntry, error) {
	if body.ForEach != nil {
		return s.runForEach(ctx, body, library, iterCtx)
	}
	return s.runLeaf(ctx, body, library, iterCtx)
}

// dependsOnBlocked reports whether any of deps is in blocked, meaning the task that
// declares them must itself be skipped rather than dispatched.
func dependsOnBlocked(deps []string, blocked map[string]bool) bool {
	for _, dep := range deps {
		if blocked[dep] {
			return true
		}
	}
	return false
}

func clampConcurrency(limit, demand int) int {
	if limit <= 0 {
		limit = types.DefaultConcurrency
	}
	if demand > 0 && demand < limit {
		return demand
	}
	return limit
}

func validateInput(workflow *types.WorkflowDefinition, input map[string]interface{}) error {
	for name, param := range workflow.InputSchema {
		value, present := input[name]
		if !present {
			if param.Required {
				return types.NewValidationError(name, "required input field is missing")
			}
			continue
		}
		if param.Type != "" && !matchesInputType(value, param.Type) {
			return types.NewValidationError(name, fmt.Sprintf("expected type %q, got %T", param.Type, value))
		}
	}
	return nil
}

// matchesInputType reports whether value is assignable to one of the inputSchema types
// (string/number/boolean/object/array). Numbers are checked loosely since YAML/JSON
// decoding can surface them as any concrete numeric kind.
func matchesInputType(value interface{}, kind string) bool {
	switch kind {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return true
		default:
			return false
		}
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		switch value.(type) {
		case map[string]interface{}:
			return true
		default:
			return false
		}
	case "array":
		switch value.(type) {
		case []interface{}:
			return true
		default:
			return false
		}
	default:
		return true
	}
}

func resolveOutputMapping(mapping map[string]string, execCtx *execctx.Context) map[string]interface{} {
	if len(mapping) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(mapping))
	for key, expr := range mapping {
		val, err := template.ResolveString(expr, execCtx)
		if err != nil {
			continue
		}
		out[key] = val
	}
	return out
}
