// ABOUTME: List-tasks command for showing available task types
// ABOUTME: Helps users discover what task kinds are available in the system

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// taskKindDescriptions mirrors the executor set wired in orchestrator.NewOrchestrator.
var taskKindDescriptions = map[string]string{
	"http":      "Issue an HTTP request and capture status and body (parsed as JSON when possible)",
	"transform": "Project and reshape task output with JMESPath expressions",
	"checksum":  "Calculate file checksums (SHA-256, SHA-512, MD5, BLAKE2b)",
	"compress":  "Create and extract archives (tar.gz, tar.bz2, zip)",
	"copy":      "Copy files between local, S3, and SFTP locations",
	"ses":       "Send email via Amazon SES",
}

var taskKindOrder = []string{"http", "transform", "checksum", "compress", "copy", "ses"}

// listTasksCmd represents the list-tasks command
var listTasksCmd = &cobra.Command{
	Use:   "list-tasks",
	Short: "Show available task kinds",
	Long: `Display the task kinds a TaskDefinition's "kind" field may reference,
along with what each one does.

Examples:
  orchestrator list-tasks`,
	RunE: listTasks,
}

func listTasks(cmd *cobra.Command, args []string) error {
	fmt.Println("Available task kinds:")
	fmt.Println()
	for _, kind := range taskKindOrder {
		fmt.Printf("  %-10s %s\n", kind, taskKindDescriptions[kind])
	}
	fmt.Printf("\nTotal: %d task kinds available\n", len(taskKindOrder))
	return nil
}

func init() {
	rootCmd.AddCommand(listTasksCmd)
}
