// ABOUTME: Tests for the checksum task executor
// ABOUTME: Covers computing sha256, a verified match, a mismatch failure, and a missing path

package checksum

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/corewave/orchestrator/pkg/types"
)

func writeTestFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	return path
}

func TestExecutor_Execute_ComputesSHA256ByDefault(t *testing.T) {
	path := writeTestFile(t, "hello world")
	exec := New()
	taskDef := &types.TaskDefinition{Name: "sum", Spec: map[string]interface{}{"path": path}}

	result, err := exec.Execute(context.Background(), taskDef, map[string]interface{}{}, time.Second)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %+v", result)
	}
	const expected = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if result.Output["checksum"] != expected {
		t.Errorf("expected sha256 %s, got %v", expected, result.Output["checksum"])
	}
}

func TestExecutor_Execute_VerifiesExpectedMatch(t *testing.T) {
	path := writeTestFile(t, "hello world")
	exec := New()
	taskDef := &types.TaskDefinition{Name: "sum", Spec: map[string]interface{}{
		"path":     path,
		"expected": "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
	}}

	result, err := exec.Execute(context.Background(), taskDef, map[string]interface{}{}, time.Second)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !result.Success || result.Output["verified"] != true {
		t.Fatalf("expected verified success, got: %+v", result)
	}
}

func TestExecutor_Execute_MismatchFails(t *testing.T) {
	path := writeTestFile(t, "hello world")
	exec := New()
	taskDef := &types.TaskDefinition{Name: "sum", Spec: map[string]interface{}{
		"path":     path,
		"expected": "deadbeef",
	}}

	result, err := exec.Execute(context.Background(), taskDef, map[string]interface{}{}, time.Second)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Success {
		t.Fatal("expected a checksum mismatch to fail the task")
	}
}

func TestExecutor_Execute_MissingPathFails(t *testing.T) {
	exec := New()
	taskDef := &types.TaskDefinition{Name: "sum", Spec: map[string]interface{}{}}

	result, err := exec.Execute(context.Background(), taskDef, map[string]interface{}{}, time.Second)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure when path is missing")
	}
}
