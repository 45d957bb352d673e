// ABOUTME: Tests for the copy task executor against local filesystem.Locate-able paths
// ABOUTME: Covers a basic copy, directory creation, and missing-argument failure

package copy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/corewave/orchestrator/pkg/types"
)

func TestExecutor_Execute_CopiesLocalFile(t *testing.T) {
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "in.txt")
	if err := os.WriteFile(srcPath, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	destPath := filepath.Join(t.TempDir(), "nested", "out.txt")

	exec := New()
	taskDef := &types.TaskDefinition{Name: "cp", Spec: map[string]interface{}{"src": srcPath, "dest": destPath}}

	result, err := exec.Execute(context.Background(), taskDef, map[string]interface{}{}, time.Second)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %+v", result)
	}
	if result.Output["bytesCopied"] != int64(len("payload")) {
		t.Errorf("expected bytesCopied=%d, got %v", len("payload"), result.Output["bytesCopied"])
	}
	contents, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("expected destination file to exist: %v", err)
	}
	if string(contents) != "payload" {
		t.Errorf("expected copied contents 'payload', got %q", contents)
	}
}

func TestExecutor_Execute_MissingSrcOrDestFails(t *testing.T) {
	exec := New()
	taskDef := &types.TaskDefinition{Name: "cp", Spec: map[string]interface{}{"src": "only-src.txt"}}

	result, err := exec.Execute(context.Background(), taskDef, map[string]interface{}{}, time.Second)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure when dest is missing")
	}
}
