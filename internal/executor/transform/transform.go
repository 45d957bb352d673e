// ABOUTME: transform task executor — applies a JMESPath query to its resolved input
// ABOUTME: The other task kind the orchestrator recognizes by name; query language is opaque to it

package transform

import (
	"context"
	"time"

	"github.com/jmespath/go-jmespath"
	"github.com/shopspring/decimal"

	"github.com/corewave/orchestrator/pkg/types"
)

// Executor implements a transform-kind TaskDefinition. Its Spec carries:
//
//	query: a JMESPath expression evaluated against resolvedInput
//
// The result is wrapped under the output key "result"; numeric results are additionally
// exposed as "resultDecimal" via shopspring/decimal for callers that need exact arithmetic
// rather than float64's rounding.
type Executor struct{}

func New() *Executor { return &Executor{} }

func (e *Executor) Execute(ctx context.Context, taskDef *types.TaskDefinition, resolvedInput map[string]interface{}, timeout time.Duration) (*types.TaskExecutionResult, error) {
	start := time.Now()

	query, _ := taskDef.Spec["query"].(string)
	if query == "" {
		return &types.TaskExecutionResult{Success: false, ErrKind: "ExecutionError", ErrMsg: "missing query", Duration: time.Since(start)}, nil
	}

	result, err := jmespath.Search(query, map[string]interface{}(resolvedInput))
	if err != nil {
		return &types.TaskExecutionResult{Success: false, ErrKind: "ExecutionError", ErrMsg: err.Error(), Duration: time.Since(start)}, nil
	}

	output := types.TaskOutput{"result": result}
	if asFloat, ok := result.(float64); ok {
		output["resultDecimal"] = decimal.NewFromFloat(asFloat).String()
	}

	return &types.TaskExecutionResult{Success: true, Output: output, Duration: time.Since(start)}, nil
}
