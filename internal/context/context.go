// ABOUTME: Execution Context — aggregates workflow input, per-task outputs, and the forEach frame stack
// ABOUTME: Writes are scoped to a task's own id and happen once at completion; reads take a shared read lock

package context

import (
	"sync"

	"github.com/mitchellh/copystructure"

	"github.com/corewave/orchestrator/pkg/types"
)

// taskStore is the shared, lockable backing for a run's task outputs. Every Context view
// (including ones pushed with a forEach frame) points at the same taskStore, so a single
// mutex guards all reads/writes regardless of how many frame-scoped views exist.
type taskStore struct {
	mu    sync.RWMutex
	tasks map[string]types.TaskEntry
}

// Context is the mutable-during-a-run, frozen-per-read state the Scheduler threads through
// the Template Resolver and Control-Flow Evaluators. Writes are scoped to a task's id and
// happen once, at task completion; the invariant that a wave's dependencies lie entirely in
// prior waves means concurrent tasks within a wave only ever read keys already written.
type Context struct {
	input map[string]interface{}
	store *taskStore
	frame *types.ForEachFrame
}

// New creates a Context for a run, rooted at the given validated workflow input.
func New(input map[string]interface{}) *Context {
	if input == nil {
		input = map[string]interface{}{}
	}
	return &Context{
		input: input,
		store: &taskStore{tasks: make(map[string]types.TaskEntry)},
	}
}

// Input returns the workflow input, used by the Template Resolver's input.* lookups.
func (c *Context) Input() map[string]interface{} {
	return c.input
}

// TaskOutput returns a completed task's output by id, satisfying template.ContextView.
func (c *Context) TaskOutput(id string) (types.TaskOutput, bool) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	entry, ok := c.store.tasks[id]
	if !ok {
		return nil, false
	}
	return entry.Output, true
}

// TaskEntry returns the full terminal-state record for a task, if it has one.
func (c *Context) TaskEntry(id string) (types.TaskEntry, bool) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	entry, ok := c.store.tasks[id]
	return entry, ok
}

// AllTaskEntries returns a snapshot copy of every terminal task entry recorded so far.
func (c *Context) AllTaskEntries() map[string]types.TaskEntry {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	out := make(map[string]types.TaskEntry, len(c.store.tasks))
	for k, v := range c.store.tasks {
		out[k] = v
	}
	return out
}

// SetTaskEntry records a task's terminal state. By invariant (§3: "a task entry exists iff
// the task has reached a terminal state") this is called exactly once per task id; a second
// write for the same id is rejected rather than allowed to overwrite silently, since context
// monotonicity is a tested invariant (§8.4).
func (c *Context) SetTaskEntry(id string, entry types.TaskEntry) bool {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if _, exists := c.store.tasks[id]; exists {
		return false
	}
	c.store.tasks[id] = entry
	return true
}

// CurrentFrame returns the innermost forEach frame, or nil outside any forEach expansion.
func (c *Context) CurrentFrame() *types.ForEachFrame {
	return c.frame
}

// WithFrame returns a view of the context with frame as the current forEach frame. The
// returned Context shares the same underlying task store, so outputs written through either
// view are visible through the other; only the frame pointer differs.
func (c *Context) WithFrame(frame *types.ForEachFrame) *Context {
	return &Context{
		input: c.input,
		store: c.store,
		frame: frame,
	}
}

// Clone returns an isolated Context seeded with a deep copy of the current task outputs.
// Used by the forEach evaluator: each iteration's inner sub-plan gets its own task
// namespace so that a repeated inner task id across iterations doesn't collide, while still
// being able to read every task completed before the forEach started.
func (c *Context) Clone() (*Context, error) {
	snapshot := c.AllTaskEntries()
	copied, err := copystructure.Copy(snapshot)
	if err != nil {
		return nil, err
	}
	tasks, ok := copied.(map[string]types.TaskEntry)
	if !ok {
		tasks = snapshot
	}
	return &Context{
		input: c.input,
		store: &taskStore{tasks: tasks},
		frame: c.frame,
	}, nil
}
