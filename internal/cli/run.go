// ABOUTME: Run command for executing workflows
// ABOUTME: Implements the primary workflow execution functionality

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corewave/orchestrator/internal/orchestrator"
	"github.com/corewave/orchestrator/pkg/types"
)

var (
	runVariables []string
	runVarFiles  []string
	runEnvFile   string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [workflow.yaml]",
	Short: "Execute a workflow",
	Long: `Execute a workflow from a YAML file. The workflow will be parsed,
validated, and executed wave by wave according to its dependency graph.

Examples:
  orchestrator run workflow.yaml
  orchestrator run workflow.yaml --var-file vars.yaml
  orchestrator run workflow.yaml --var key=value --var env=prod
  orchestrator run workflow.yaml --env-file .env.prod`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	workflowPath := args[0]
	logger := GetLogger()

	varFiles := append([]string{}, runVarFiles...)
	if runEnvFile != "" {
		varFiles = append(varFiles, runEnvFile)
	}

	orch, err := orchestrator.NewOrchestrator(&orchestrator.Config{
		Logger:        logger,
		HistoryDir:    historyDir,
		VariableFiles: varFiles,
		Variables:     parseVarFlags(runVariables),
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	result, err := orch.ExecuteFile(context.Background(), workflowPath)
	if err != nil {
		return fmt.Errorf("failed to execute workflow: %w", err)
	}

	printExecutionResult(result)

	if result.Status == types.RunFailed {
		os.Exit(1)
	}

	return nil
}

// parseVarFlags turns "key=value" --var pairs into a literal variable overlay, applied after
// any --var-file layers.
func parseVarFlags(pairs []string) map[string]interface{} {
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if found {
			out[key] = value
		}
	}
	return out
}

// printExecutionResult prints a workflow execution summary to stdout.
func printExecutionResult(result *types.ExecutionResult) {
	statusIcon := "OK"
	if result.Status == types.RunFailed {
		statusIcon = "FAILED"
	}

	fmt.Printf("\n[%s] Workflow: %s\n", statusIcon, result.WorkflowName)
	fmt.Printf("   Status: %s\n", result.Status)
	fmt.Printf("   Duration: %dms\n", result.ExecutionTimeMs)
	fmt.Printf("   Tasks: %d\n", len(result.TaskResults))

	if len(result.TaskResults) > 0 {
		fmt.Printf("\nTasks:\n")
		for _, tr := range result.TaskResults {
			icon := "OK"
			switch tr.Status {
			case types.TaskFailed:
				icon = "FAILED"
			case types.TaskSkipped:
				icon = "SKIPPED"
			}
			fmt.Printf("  [%s] %s (taskRef=%s) - %s\n", icon, tr.TaskID, tr.TaskRef, tr.Status)
			if tr.Error != "" {
				fmt.Printf("    Error: %s\n", tr.Error)
			}
		}
	}

	if result.Error != "" {
		fmt.Fprintf(os.Stderr, "Execution error: %s\n", result.Error)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&runVariables, "var", []string{}, "set a literal workflow variable (key=value)")
	runCmd.Flags().StringSliceVar(&runVarFiles, "var-file", []string{}, "load workflow variables from a file (yaml/json/toml/env)")
	runCmd.Flags().StringVar(&runEnvFile, "env-file", "", "load workflow variables from a file, layered after any --var-file files")
}
