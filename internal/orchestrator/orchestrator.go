// ABOUTME: Orchestrator coordinates loading, validating, and running a workflow document
// ABOUTME: end to end: parser -> config layer -> Scheduler -> history sink, in one call

package orchestrator

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/corewave/orchestrator/internal/config"
	"github.com/corewave/orchestrator/internal/executor/checksum"
	"github.com/corewave/orchestrator/internal/executor/compress"
	"github.com/corewave/orchestrator/internal/executor/copy"
	"github.com/corewave/orchestrator/internal/executor/http"
	"github.com/corewave/orchestrator/internal/executor/ses"
	"github.com/corewave/orchestrator/internal/executor/transform"
	"github.com/corewave/orchestrator/internal/graph"
	"github.com/corewave/orchestrator/internal/history"
	"github.com/corewave/orchestrator/internal/logging"
	"github.com/corewave/orchestrator/internal/workflow/parser"
	"github.com/corewave/orchestrator/pkg/idgen"
	"github.com/corewave/orchestrator/pkg/types"
)

// Config holds the top-level wiring an Orchestrator needs.
type Config struct {
	SchedulerConfig types.Config
	Logger          types.Logger
	HistoryDir      string
	VariableFiles   []string
	Variables       map[string]interface{}
	EnvOverrides    map[string]string
}

// Orchestrator loads a workflow document and drives it to completion through a Scheduler,
// recording the outcome to a history.Store.
type Orchestrator struct {
	parser    *parser.Parser
	scheduler *Scheduler
	varLoader *config.Loader
	varFiles  []string
	variables map[string]interface{}
	envMap    map[string]string
	logger    types.Logger
}

// NewOrchestrator wires the standard executor set (http, transform, checksum, compress, copy,
// ses) and a JSON-file history sink, applying cfg on top of documented defaults.
func NewOrchestrator(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.New(logging.InfoLevel, nil)
	}

	historyDir := cfg.HistoryDir
	if historyDir == "" {
		historyDir = "./history"
	}
	store := history.New(historyDir, 10000)
	if err := store.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing history store: %w", err)
	}

	schedulerConfig := cfg.SchedulerConfig
	if schedulerConfig.ConcurrencyLimit == 0 {
		schedulerConfig = types.DefaultConfig()
	} else if limit, err := types.ValidateConcurrency(schedulerConfig.ConcurrencyLimit); err != nil {
		return nil, fmt.Errorf("invalid scheduler configuration: %w", err)
	} else {
		schedulerConfig.ConcurrencyLimit = limit
	}

	scheduler := New(
		WithConfig(schedulerConfig),
		WithExecutor("http", http.New()),
		WithExecutor("transform", transform.New()),
		WithExecutor("checksum", checksum.New()),
		WithExecutor("compress", compress.New()),
		WithExecutor("copy", copy.New()),
		WithExecutor("ses", ses.New()),
		WithIdGenerator(idgen.New()),
		WithLogger(logger),
		WithSink(store),
	)

	return &Orchestrator{
		parser:    parser.New(afero.NewOsFs()),
		scheduler: scheduler,
		varLoader: config.New("."),
		varFiles:  cfg.VariableFiles,
		variables: cfg.Variables,
		envMap:    cfg.EnvOverrides,
		logger:    logger,
	}, nil
}

// ExecuteFile loads, validates, and runs the workflow document at filename.
func (o *Orchestrator) ExecuteFile(ctx context.Context, filename string) (*types.ExecutionResult, error) {
	doc, err := o.parser.ParseFile(filename)
	if err != nil {
		return nil, fmt.Errorf("loading workflow file %q: %w", filename, err)
	}
	return o.execute(ctx, doc)
}

// ExecuteYAML loads, validates, and runs a workflow document given as raw YAML bytes.
func (o *Orchestrator) ExecuteYAML(ctx context.Context, content []byte) (*types.ExecutionResult, error) {
	doc, err := o.parser.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parsing workflow document: %w", err)
	}
	return o.execute(ctx, doc)
}

func (o *Orchestrator) execute(ctx context.Context, doc *parser.Document) (*types.ExecutionResult, error) {
	input, err := o.buildInput()
	if err != nil {
		return nil, fmt.Errorf("assembling run input: %w", err)
	}

	o.logger.Info().Str("workflow", doc.Workflow.Name).Int("tasks", len(doc.Workflow.Tasks)).Msg("starting workflow execution")

	result, err := o.scheduler.Execute(ctx, &doc.Workflow, parser.Library(doc), input)
	if err != nil {
		return nil, err
	}

	o.logger.Info().Str("workflow", doc.Workflow.Name).Str("status", string(result.Status)).Msg("workflow execution finished")
	return result, nil
}

// buildInput layers configured variable files (later files win) and applies env overrides,
// producing the Scheduler's run input map.
func (o *Orchestrator) buildInput() (map[string]interface{}, error) {
	layers := make([]map[string]interface{}, 0, len(o.varFiles)+1)
	for _, f := range o.varFiles {
		vars, err := o.varLoader.LoadFile(f)
		if err != nil {
			return nil, err
		}
		layers = append(layers, vars)
	}
	if len(o.variables) > 0 {
		layers = append(layers, o.variables)
	}

	merged, err := config.Merge(layers...)
	if err != nil {
		return nil, err
	}
	config.ApplyEnvOverrides(merged, o.envMap)

	return config.EvaluateScalars(merged)
}

// Plan returns the execution-wave breakdown for a workflow document without running it.
func (o *Orchestrator) Plan(filename string) (*parser.Document, [][]string, error) {
	doc, err := o.parser.ParseFile(filename)
	if err != nil {
		return nil, nil, err
	}
	maxDepth := o.scheduler.config.ForEachMaxDepth
	if maxDepth <= 0 {
		maxDepth = types.DefaultForEachMaxDepth
	}
	execGraph, err := graph.Build(&doc.Workflow, parser.Library(doc), maxDepth)
	if err != nil {
		return nil, nil, err
	}
	return doc, execGraph.Waves, nil
}
