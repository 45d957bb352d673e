// ABOUTME: Tests for the YAML workflow/task document loader
// ABOUTME: Validates parsing, taskRef resolution, and structural error handling

package parser

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/corewave/orchestrator/pkg/types"
)

func TestParser_Parse_ValidDocument(t *testing.T) {
	yamlContent := `
tasks:
  - name: fetch
    kind: http
    spec:
      url: "https://example.com"

workflow:
  name: test-workflow
  namespace: default
  tasks:
    - id: step-one
      taskRef: fetch
    - id: step-two
      taskRef: fetch
      dependsOn: [step-one]
`

	p := New(nil)
	doc, err := p.Parse([]byte(yamlContent))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if doc.Workflow.Name != "test-workflow" {
		t.Errorf("expected name 'test-workflow', got %q", doc.Workflow.Name)
	}
	if len(doc.Workflow.Tasks) != 2 {
		t.Errorf("expected 2 task steps, got %d", len(doc.Workflow.Tasks))
	}

	lib := Library(doc)
	if _, ok := lib["fetch"]; !ok {
		t.Fatal("expected 'fetch' task definition in library")
	}
}

func TestParser_Parse_UnknownTaskRef(t *testing.T) {
	yamlContent := `
tasks:
  - name: fetch
    kind: http

workflow:
  name: test-workflow
  tasks:
    - id: step-one
      taskRef: does-not-exist
`
	p := New(nil)
	_, err := p.Parse([]byte(yamlContent))
	if err == nil {
		t.Fatal("expected an error for unknown taskRef")
	}
	if _, ok := err.(*types.BuildError); !ok {
		t.Errorf("expected *types.BuildError, got %T: %v", err, err)
	}
}

func TestParser_Parse_DuplicateStepID(t *testing.T) {
	yamlContent := `
tasks:
  - name: fetch
    kind: http

workflow:
  name: test-workflow
  tasks:
    - id: step-one
      taskRef: fetch
    - id: step-one
      taskRef: fetch
`
	p := New(nil)
	_, err := p.Parse([]byte(yamlContent))
	if err == nil {
		t.Fatal("expected an error for duplicate step id")
	}
}

func TestParser_Parse_RejectsUnknownFields(t *testing.T) {
	yamlContent := `
tasks:
  - name: fetch
    kind: http

workflow:
  name: test-workflow
  bogusField: true
  tasks:
    - id: step-one
      taskRef: fetch
`
	p := New(nil)
	if _, err := p.Parse([]byte(yamlContent)); err == nil {
		t.Fatal("expected strict decoding to reject an unknown field")
	}
}

func TestParser_ParseFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := []byte(`
tasks:
  - name: fetch
    kind: http

workflow:
  name: file-workflow
  tasks:
    - id: step-one
      taskRef: fetch
`)
	if err := afero.WriteFile(fs, "workflow.yaml", content, 0o644); err != nil {
		t.Fatalf("seeding memmapfs: %v", err)
	}

	p := New(fs)
	doc, err := p.ParseFile("workflow.yaml")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if doc.Workflow.Name != "file-workflow" {
		t.Errorf("expected name 'file-workflow', got %q", doc.Workflow.Name)
	}
}

func TestParser_Parse_ForEachBodyMustResolveTaskRef(t *testing.T) {
	yamlContent := `
tasks:
  - name: fetch
    kind: http

workflow:
  name: test-workflow
  tasks:
    - id: loop
      forEach:
        in: "{{ input.items }}"
        body:
          id: loop-body
          taskRef: missing
`
	p := New(nil)
	_, err := p.Parse([]byte(yamlContent))
	if err == nil {
		t.Fatal("expected an error for forEach body with unknown taskRef")
	}
}
