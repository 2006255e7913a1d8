// -----------------------------------------------------------------------
// Last Modified: Friday, 16th October 2026 5:02:17 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/common"
)

var (
	// Command-line flags
	configFiles []string // later files override earlier ones
	serverPort  int
	serverHost  string

	// Global state, resolved in loadConfig before any subcommand runs
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "macrolens",
	Short: "Deterministic audit layer for daily macro reports",
	Long: `MacroLens turns the daily WisdomTree and CME bulletins into an audited macro
report: signals are classified from open interest, dials are scored from
extracted metrics, and the LLM narrative is filtered against both.

Run without a subcommand to start the server.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runServe,
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().IntVarP(&serverPort, "port", "p", 0, "Server port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&serverHost, "host", "", "Server host (overrides config)")

	rootCmd.AddCommand(serveCmd, versionCmd, auditCmd, classifyCmd, scoreCmd, enforceCmd, runsCmd, pipelineCmd)
}

func main() {
	defer common.RecoverWithCrashFile()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves configuration in order: defaults, files, env, flags.
// The logger is initialized from the final configuration.
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd {
		return nil
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		for _, candidate := range []string{"macrolens.toml", "deployments/local/macrolens.toml"} {
			if _, err := os.Stat(candidate); err == nil {
				configFiles = append(configFiles, candidate)
				break
			}
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	common.ApplyFlagOverrides(config, serverPort, serverHost)

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger = common.InitLogger(config)

	if logsDir, err := common.LogsDir(); err == nil {
		common.InstallCrashHandler(logsDir)
	}

	logger.Debug().
		Strs("config_files", configFiles).
		Str("storage_path", config.Storage.Badger.Path).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Msg("Resolved configuration")

	return nil
}
