// ABOUTME: checksum task executor — calculates or verifies a file's hash
// ABOUTME: Supports SHA256, SHA512, MD5, and Blake2b; Spec/resolvedInput carry path/algorithm/expected

package checksum

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/corewave/orchestrator/pkg/types"
)

// Executor implements a checksum-kind TaskDefinition.
type Executor struct{}

func New() *Executor { return &Executor{} }

func (e *Executor) Execute(ctx context.Context, taskDef *types.TaskDefinition, resolvedInput map[string]interface{}, timeout time.Duration) (*types.TaskExecutionResult, error) {
	start := time.Now()

	path, _ := field(resolvedInput, taskDef.Spec, "path")
	if path == "" {
		return fail(start, "path is required"), nil
	}
	algorithm, _ := field(resolvedInput, taskDef.Spec, "algorithm")
	if algorithm == "" {
		algorithm = "sha256"
	}
	expected, _ := field(resolvedInput, taskDef.Spec, "expected")

	sum, err := calculate(path, algorithm)
	if err != nil {
		return fail(start, err.Error()), nil
	}

	output := types.TaskOutput{"checksum": sum, "algorithm": algorithm, "path": path}
	if expected != "" {
		verified := sum == expected
		output["verified"] = verified
		if !verified {
			output["expected"] = expected
			return &types.TaskExecutionResult{Success: false, Output: output, ErrKind: "ExecutionError",
				ErrMsg: fmt.Sprintf("checksum mismatch: expected %s, got %s", expected, sum), Duration: time.Since(start)}, nil
		}
	}

	return &types.TaskExecutionResult{Success: true, Output: output, Duration: time.Since(start)}, nil
}

func fail(start time.Time, msg string) *types.TaskExecutionResult {
	return &types.TaskExecutionResult{Success: false, ErrKind: "ExecutionError", ErrMsg: msg, Duration: time.Since(start)}
}

func field(resolvedInput, spec map[string]interface{}, key string) (string, bool) {
	if v, ok := resolvedInput[key].(string); ok {
		return v, true
	}
	if v, ok := spec[key].(string); ok {
		return v, true
	}
	return "", false
}

func calculate(path, algorithm string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var hasher io.Writer
	var sum []byte

	switch algorithm {
	case "sha256":
		h := sha256.New()
		hasher = h
		if _, err := io.Copy(hasher, file); err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		sum = h.Sum(nil)
	case "sha512":
		h := sha512.New()
		hasher = h
		if _, err := io.Copy(hasher, file); err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		sum = h.Sum(nil)
	case "md5":
		h := md5.New()
		hasher = h
		if _, err := io.Copy(hasher, file); err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		sum = h.Sum(nil)
	case "blake2b":
		h, err := blake2b.New256(nil)
		if err != nil {
			return "", fmt.Errorf("failed to create blake2b hasher: %w", err)
		}
		hasher = h
		if _, err := io.Copy(hasher, file); err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		sum = h.Sum(nil)
	default:
		return "", fmt.Errorf("unsupported algorithm: %s", algorithm)
	}

	return hex.EncodeToString(sum), nil
}
