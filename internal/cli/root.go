// ABOUTME: Root command and CLI setup for the orchestrator workflow engine
// ABOUTME: Configures global flags, subcommands, and application initialization

package cli

import (
	"fmt"
	"os"

	"github.com/corewave/orchestrator/internal/logging"
	"github.com/corewave/orchestrator/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	verboseMode bool
	quietMode   bool
	format      string
	historyDir  string
	logger      types.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "A dependency-graph workflow orchestration core",
	Long: `orchestrator executes declarative YAML workflows with support for:

• Wave-based concurrent task execution with dependency resolution
• A path-expression template mini-language over task outputs and inputs
• Native task types (http, transform, checksum, compress, copy, ses)
• Conditional execution and forEach iteration
• Dry-run mode for execution planning

Examples:
  orchestrator run workflow.yaml              Execute a workflow
  orchestrator dry-run workflow.yaml          Show execution plan
  orchestrator validate workflow.yaml         Validate workflow syntax
  orchestrator list-tasks                     Show available task kinds
  orchestrator watch workflow.yaml            Re-run on every save`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.orchestrator.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "enable quiet mode (only errors)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "text", "output format (text, json)")
	rootCmd.PersistentFlags().StringVar(&historyDir, "history-dir", "./history", "execution history storage directory")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("history-dir", rootCmd.PersistentFlags().Lookup("history-dir"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".orchestrator" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".orchestrator")
	}

	// Read in environment variables that match
	viper.AutomaticEnv()
	viper.SetEnvPrefix("ORCHESTRATOR")

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil && verboseMode {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// initLogger initializes the global logger based on flags
func initLogger() {
	level := logging.InfoLevel

	// Determine log level from flags
	if viper.GetBool("verbose") {
		level = logging.DebugLevel
	} else if viper.GetBool("quiet") {
		level = logging.ErrorLevel
	}

	// Create logger based on output format
	if viper.GetString("format") == "json" {
		logger = logging.NewJSON(level, os.Stderr)
	} else {
		logger = logging.New(level, os.Stderr)
	}
}

// GetLogger returns the global logger instance
func GetLogger() types.Logger {
	if logger == nil {
		initLogger()
	}
	return logger
}
