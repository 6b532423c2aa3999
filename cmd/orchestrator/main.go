package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orchestrator/internal/common"
)

var (
	configFiles []string
	flagPort    int
	flagHost    string

	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "GPU fleet image-generation orchestrator",
	Long:  "Routes generation jobs across a fleet of GPU workers, tracks progress, and learns model/adapter preferences from feedback.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfigAndLogger()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil,
		"configuration file path (repeatable; later files override earlier ones)")
	rootCmd.PersistentFlags().IntVarP(&flagPort, "port", "p", 0, "server port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "", "server host (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(nodesCmd)
}

// loadConfigAndLogger resolves configuration (defaults -> files -> env ->
// flags) and initializes the global logger, in that priority order.
func loadConfigAndLogger() error {
	if len(configFiles) == 0 {
		if _, err := os.Stat("orchestrator.toml"); err == nil {
			configFiles = append(configFiles, "orchestrator.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	common.ApplyFlagOverrides(config, flagPort, flagHost)

	logger = common.SetupLogger(config)
	common.InitLogger(logger)

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
