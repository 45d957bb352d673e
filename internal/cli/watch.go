// ABOUTME: Watch command for re-running a workflow file whenever it changes on disk
// ABOUTME: Debounces rapid successive writes (editors often emit several per save) before rerunning

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/corewave/orchestrator/internal/orchestrator"
)

const watchDebounceDelay = 200 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch [workflow.yaml]",
	Short: "Re-run a workflow each time its file changes",
	Long: `Watch a workflow file and re-execute it on every save. Useful while
iterating on a workflow definition without re-invoking the CLI by hand.`,
	Args: cobra.ExactArgs(1),
	RunE: watchWorkflow,
}

func watchWorkflow(cmd *cobra.Command, args []string) error {
	workflowPath := args[0]
	logger := GetLogger()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(workflowPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	orch, err := orchestrator.NewOrchestrator(&orchestrator.Config{
		Logger:        logger,
		HistoryDir:    historyDir,
		VariableFiles: append([]string{}, runVarFiles...),
		Variables:     parseVarFlags(runVariables),
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	ctx := cmd.Context()
	runOnce := func() {
		result, err := orch.ExecuteFile(ctx, workflowPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
			return
		}
		printExecutionResult(result)
	}

	runOnce()

	var debounce *time.Timer
	target := filepath.Clean(workflowPath)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounceDelay, runOnce)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watcher error: %v\n", watchErr)
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
