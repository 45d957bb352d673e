// ABOUTME: http task executor — invokes an HTTP endpoint described by a TaskDefinition's spec
// ABOUTME: One of the two task kinds the orchestrator recognizes by name; body/headers are resolved inputs

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/corewave/orchestrator/pkg/types"
)

// Executor invokes an http-kind TaskDefinition. Its Spec carries:
//   url: string, method: string (default GET), headers: map[string]string, body: any
// resolvedInput values may override the same keys (resolvedInput takes precedence), mirroring
// how the Scheduler hands already-template-resolved task input through to the executor.
type Executor struct {
	Client *http.Client
}

// New creates an Executor with a plain http.Client; each call's timeout is applied through
// the request context.
func New() *Executor {
	return &Executor{Client: &http.Client{}}
}

func (e *Executor) Execute(ctx context.Context, taskDef *types.TaskDefinition, resolvedInput map[string]interface{}, timeout time.Duration) (*types.TaskExecutionResult, error) {
	start := time.Now()

	url, _ := stringField(resolvedInput, taskDef.Spec, "url")
	if url == "" {
		return &types.TaskExecutionResult{Success: false, ErrKind: "ExecutionError", ErrMsg: "missing url", Duration: time.Since(start)}, nil
	}
	method, _ := stringField(resolvedInput, taskDef.Spec, "method")
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if body, ok := anyField(resolvedInput, taskDef.Spec, "body"); ok && body != nil {
		switch b := body.(type) {
		case string:
			bodyReader = strings.NewReader(b)
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return &types.TaskExecutionResult{Success: false, ErrKind: "ExecutionError", ErrMsg: err.Error(), Duration: time.Since(start)}, nil
			}
			bodyReader = bytes.NewReader(encoded)
		}
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, bodyReader)
	if err != nil {
		return &types.TaskExecutionResult{Success: false, ErrKind: "ExecutionError", ErrMsg: err.Error(), Duration: time.Since(start)}, nil
	}

	if headers, ok := anyField(resolvedInput, taskDef.Spec, "headers"); ok {
		if hmap, ok := headers.(map[string]interface{}); ok {
			for k, v := range hmap {
				req.Header.Set(k, fmt.Sprintf("%v", v))
			}
		}
	}

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return nil, &types.TimeoutError{TaskID: taskDef.Name}
		}
		return &types.TaskExecutionResult{Success: false, ErrKind: "ExecutionError", ErrMsg: err.Error(), Duration: time.Since(start)}, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	output := types.TaskOutput{
		"statusCode": resp.StatusCode,
		"body":       string(respBody),
	}
	var parsed interface{}
	if json.Unmarshal(respBody, &parsed) == nil {
		output["json"] = parsed
	}

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	result := &types.TaskExecutionResult{Success: success, Output: output, Duration: time.Since(start)}
	if !success {
		result.ErrKind = "ExecutionError"
		result.ErrMsg = fmt.Sprintf("unexpected status code %d", resp.StatusCode)
	}
	return result, nil
}

func stringField(resolvedInput map[string]interface{}, spec map[string]interface{}, key string) (string, bool) {
	if v, ok := resolvedInput[key]; ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	if v, ok := spec[key]; ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

func anyField(resolvedInput map[string]interface{}, spec map[string]interface{}, key string) (interface{}, bool) {
	if v, ok := resolvedInput[key]; ok {
		return v, true
	}
	if v, ok := spec[key]; ok {
		return v, true
	}
	return nil, false
}
