// ABOUTME: Mock Task Executor — the test-time TaskExecutor variant the test suite exercises
// ABOUTME: FIFO canned responses per taskRef, a default fallback, and an optional simulated delay

package executor

import (
	"context"
	"sync"
	"time"

	"github.com/corewave/orchestrator/pkg/types"
)

// Invocation records one Execute call against a Mock, in the order it was received.
type Invocation struct {
	TaskRef       string
	ResolvedInput map[string]interface{}
}

// Mock implements types.TaskExecutor with pre-registered canned responses, keyed by the
// invoked TaskDefinition's Name (its "taskRef"). Responses are consumed FIFO; once a taskRef's
// queue is empty, DefaultResult is returned if set, otherwise a generic success with an empty
// output. Every call is additionally appended to an invocation log so tests can assert not
// just the outcome but the taskRef/resolvedInput ordering a run produced (e.g. forEach
// iteration order).
type Mock struct {
	mu          sync.Mutex
	queues      map[string][]types.TaskExecutionResult
	fallback    *types.TaskExecutionResult
	delay       time.Duration
	clock       types.Clock
	invocations []Invocation
}

// NewMock creates a Mock executor driven by clock for its recorded durations.
func NewMock(clock types.Clock) *Mock {
	return &Mock{
		queues: make(map[string][]types.TaskExecutionResult),
		clock:  clock,
	}
}

// Invocations returns the calls recorded so far, in the order Execute received them.
func (m *Mock) Invocations() []Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Invocation(nil), m.invocations...)
}

// Enqueue appends a canned response to taskRef's FIFO queue.
func (m *Mock) Enqueue(taskRef string, result types.TaskExecutionResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[taskRef] = append(m.queues[taskRef], result)
}

// SetDefault configures the fallback response returned once a taskRef's queue is exhausted.
func (m *Mock) SetDefault(result types.TaskExecutionResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &result
}

// SetDelay configures a simulated per-invocation delay, useful for exercising concurrency and
// timeout behavior deterministically in tests.
func (m *Mock) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Execute implements types.TaskExecutor.
func (m *Mock) Execute(ctx context.Context, taskDef *types.TaskDefinition, resolvedInput map[string]interface{}, timeout time.Duration) (*types.TaskExecutionResult, error) {
	m.mu.Lock()
	m.invocations = append(m.invocations, Invocation{TaskRef: taskDef.Name, ResolvedInput: resolvedInput})
	delay := m.delay
	var next *types.TaskExecutionResult
	queue := m.queues[taskDef.Name]
	if len(queue) > 0 {
		head := queue[0]
		m.queues[taskDef.Name] = queue[1:]
		next = &head
	} else if m.fallback != nil {
		fb := *m.fallback
		next = &fb
	} else {
		next = &types.TaskExecutionResult{Success: true, Output: types.TaskOutput{}}
	}
	m.mu.Unlock()

	start := m.now()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	next.Duration = m.now().Sub(start)

	return next, nil
}

func (m *Mock) now() time.Time {
	if m.clock != nil {
		return m.clock.Now()
	}
	return time.Now()
}
