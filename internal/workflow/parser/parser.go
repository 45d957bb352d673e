// ABOUTME: YAML loader for a workflow document: its task library plus its step graph
// ABOUTME: Strict-decodes both sections so a typo'd field fails at load time, not at run time

package parser

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/corewave/orchestrator/pkg/types"
)

// Document is the on-disk shape: a workflow plus the task library it draws taskRef from.
// Keeping both in one file matches how the teacher's single-file workflow documents read;
// unlike the teacher, task definitions here are reusable descriptors, not inline task bodies.
type Document struct {
	Workflow types.WorkflowDefinition `yaml:"workflow"`
	Tasks    []types.TaskDefinition   `yaml:"tasks"`
}

// Parser loads Documents from an afero.Fs, defaulting to the OS filesystem.
type Parser struct {
	fs afero.Fs
}

func New(fs afero.Fs) *Parser {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Parser{fs: fs}
}

// Parse strict-decodes raw YAML bytes into a Document.
func (p *Parser) Parse(data []byte) (*Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing workflow document: %w", err)
	}
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseFile reads and parses filename.
func (p *Parser) ParseFile(filename string) (*Document, error) {
	data, err := afero.ReadFile(p.fs, filename)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file %q: %w", filename, err)
	}
	return p.Parse(data)
}

// Validate checks a Document's structural invariants: a workflow name, a non-empty task list,
// named and unique task definitions, unique step ids, and every taskRef resolving to a loaded
// TaskDefinition (the Graph Builder repeats the taskRef check when given a library).
func Validate(doc *Document) error {
	if doc.Workflow.Name == "" {
		return types.NewValidationError("workflow.name", "workflow name is required")
	}
	if len(doc.Workflow.Tasks) == 0 {
		return types.NewValidationError("workflow.tasks", "workflow must declare at least one task step")
	}

	defsByName := make(map[string]*types.TaskDefinition, len(doc.Tasks))
	for i := range doc.Tasks {
		def := &doc.Tasks[i]
		if def.Name == "" {
			return types.NewValidationError("tasks", fmt.Sprintf("task definition at index %d is missing a name", i))
		}
		if _, dup := defsByName[def.Name]; dup {
			return types.NewValidationError("tasks", fmt.Sprintf("duplicate task definition name %q", def.Name))
		}
		defsByName[def.Name] = def
	}

	seenIDs := make(map[string]bool, len(doc.Workflow.Tasks))
	for i := range doc.Workflow.Tasks {
		step := &doc.Workflow.Tasks[i]
		if step.ID == "" {
			return types.NewValidationError("workflow.tasks", fmt.Sprintf("task step at index %d is missing an id", i))
		}
		if seenIDs[step.ID] {
			return types.NewValidationError("workflow.tasks", fmt.Sprintf("duplicate task step id %q", step.ID))
		}
		seenIDs[step.ID] = true

		if err := validateTaskRef(step, defsByName); err != nil {
			return err
		}
	}
	return nil
}

func validateTaskRef(step *types.TaskStep, defsByName map[string]*types.TaskDefinition) error {
	if step.ForEach != nil {
		if step.ForEach.Body == nil {
			return types.NewValidationError("workflow.tasks", fmt.Sprintf("task step %q has forEach but no body", step.ID))
		}
		return validateTaskRef(step.ForEach.Body, defsByName)
	}
	if step.TaskRef == "" {
		return types.NewValidationError("workflow.tasks", fmt.Sprintf("task step %q is missing taskRef", step.ID))
	}
	if _, ok := defsByName[step.TaskRef]; !ok {
		return types.NewBuildError(types.UnknownTaskRef, step.ID, []string{step.TaskRef}, "taskRef does not resolve to a loaded task definition")
	}
	return nil
}

// Library builds the orchestrator.TaskLibrary lookup the Scheduler needs from a Document's
// task definitions.
func Library(doc *Document) map[string]*types.TaskDefinition {
	lib := make(map[string]*types.TaskDefinition, len(doc.Tasks))
	for i := range doc.Tasks {
		lib[doc.Tasks[i].Name] = &doc.Tasks[i]
	}
	return lib
}
