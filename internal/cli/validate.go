// ABOUTME: Validate command for checking workflow syntax and dependencies
// ABOUTME: Provides workflow validation without execution

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corewave/orchestrator/internal/orchestrator"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [workflow.yaml]",
	Short: "Validate workflow syntax and dependencies",
	Long: `Validate a workflow file for syntax errors, dependency issues,
and configuration problems without executing any tasks.

The validate command checks:
• YAML syntax and structure (strict field decoding)
• taskRef resolution against the document's task library
• Dependency graph for cycles and unknown dependencies
• forEach nesting depth

Examples:
  orchestrator validate workflow.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: validateWorkflow,
}

func validateWorkflow(cmd *cobra.Command, args []string) error {
	workflowPath := args[0]
	logger := GetLogger()

	logger.Info().Str("workflow", workflowPath).Msg("validating workflow")

	orch, err := orchestrator.NewOrchestrator(&orchestrator.Config{
		Logger:     logger,
		HistoryDir: historyDir,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to create orchestrator")
		return err
	}

	if _, _, err := orch.Plan(workflowPath); err != nil {
		fmt.Printf("Validation failed: %s\n", err)
		return fmt.Errorf("validation failed")
	}

	fmt.Printf("Workflow validation passed\n")
	return nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
