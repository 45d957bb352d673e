// ABOUTME: Dry-run command for showing workflow execution plans
// ABOUTME: Allows users to preview what a workflow would do without executing it

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corewave/orchestrator/internal/orchestrator"
)

var dryRunFormat string

// dryRunCmd represents the dry-run command
var dryRunCmd = &cobra.Command{
	Use:   "dry-run [workflow.yaml]",
	Short: "Show execution plan without running tasks",
	Long: `Show what a workflow would do without actually executing any tasks.
This command parses the workflow, builds the dependency graph, and displays
the resulting execution waves.

Output formats:
• text: Human-readable execution plan (default)
• json: Machine-readable JSON format

Examples:
  orchestrator dry-run workflow.yaml
  orchestrator dry-run workflow.yaml --format json`,
	Args: cobra.ExactArgs(1),
	RunE: dryRunWorkflow,
}

func dryRunWorkflow(cmd *cobra.Command, args []string) error {
	workflowPath := args[0]
	logger := GetLogger()

	orch, err := orchestrator.NewOrchestrator(&orchestrator.Config{
		Logger:     logger,
		HistoryDir: historyDir,
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	doc, waves, err := orch.Plan(workflowPath)
	if err != nil {
		return fmt.Errorf("failed to build execution plan: %w", err)
	}

	switch dryRunFormat {
	case "json":
		return displayDryRunJSON(doc.Workflow.Name, waves)
	case "text":
		return displayDryRunText(doc.Workflow.Name, waves)
	default:
		return fmt.Errorf("unknown format: %s", dryRunFormat)
	}
}

func displayDryRunJSON(workflowName string, waves [][]string) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]interface{}{
		"workflow": workflowName,
		"waves":    waves,
	})
}

func displayDryRunText(workflowName string, waves [][]string) error {
	fmt.Printf("DRY RUN - No changes will be made\n\n")
	fmt.Printf("Workflow: %s\n", workflowName)
	fmt.Printf("Waves: %d\n\n", len(waves))

	for i, wave := range waves {
		fmt.Printf("Wave %d (%d task(s), runs concurrently):\n", i+1, len(wave))
		for _, taskID := range wave {
			fmt.Printf("  - %s\n", taskID)
		}
	}

	return nil
}

func init() {
	rootCmd.AddCommand(dryRunCmd)

	dryRunCmd.Flags().StringVar(&dryRunFormat, "format", "text", "output format (text, json)")
}
