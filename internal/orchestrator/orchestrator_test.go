// ABOUTME: End-to-end tests for the Orchestrator coordinator: parse, build input, run, record history
// ABOUTME: Drives a real http-kind task against an httptest server to exercise the full wiring

package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/corewave/orchestrator/pkg/types"
)

func TestOrchestrator_ExecuteYAML_RunsHTTPTaskEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	orch, err := NewOrchestrator(&Config{HistoryDir: filepath.Join(t.TempDir(), "history")})
	if err != nil {
		t.Fatalf("expected no error constructing the orchestrator, got: %v", err)
	}

	doc := fmt.Sprintf(`
workflow:
  name: ping
  tasks:
    - id: check
      taskRef: ping-endpoint
tasks:
  - name: ping-endpoint
    kind: http
    spec:
      url: %q
`, srv.URL)

	result, err := orch.ExecuteYAML(context.Background(), []byte(doc))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Status != types.RunSucceeded {
		t.Fatalf("expected success, got status %s (error=%s)", result.Status, result.Error)
	}
	if len(result.TaskResults) != 1 || result.TaskResults[0].TaskID != "check" {
		t.Fatalf("expected one task result for 'check', got %+v", result.TaskResults)
	}
}

func TestOrchestrator_ExecuteYAML_InvalidDocumentFails(t *testing.T) {
	orch, err := NewOrchestrator(&Config{HistoryDir: filepath.Join(t.TempDir(), "history")})
	if err != nil {
		t.Fatalf("expected no error constructing the orchestrator, got: %v", err)
	}

	_, err = orch.ExecuteYAML(context.Background(), []byte("workflow:\n  name: \"\"\n"))
	if err == nil {
		t.Fatal("expected an error for a workflow document missing required fields")
	}
}

func TestOrchestrator_Plan_ReturnsWavesWithoutExecuting(t *testing.T) {
	orch, err := NewOrchestrator(&Config{HistoryDir: filepath.Join(t.TempDir(), "history")})
	if err != nil {
		t.Fatalf("expected no error constructing the orchestrator, got: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	content := []byte(`
workflow:
  name: chain
  tasks:
    - id: a
      taskRef: noop
    - id: b
      taskRef: noop
      dependsOn: [a]
tasks:
  - name: noop
    kind: transform
    spec:
      query: "'ok'"
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	doc, waves, err := orch.Plan(path)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if doc.Workflow.Name != "chain" {
		t.Errorf("expected the parsed workflow name 'chain', got %q", doc.Workflow.Name)
	}
	if len(waves) != 2 {
		t.Fatalf("expected 2 waves for a linear dependency, got %d: %+v", len(waves), waves)
	}
}

func TestOrchestrator_NewOrchestrator_RejectsInvalidConcurrencyLimit(t *testing.T) {
	_, err := NewOrchestrator(&Config{
		HistoryDir:      filepath.Join(t.TempDir(), "history"),
		SchedulerConfig: types.Config{ConcurrencyLimit: -5},
	})
	if err == nil {
		t.Fatal("expected an error for an invalid concurrency limit")
	}
}
