package commands

import (
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X .../commands.version=..."
var version = "dev"

var (
	// Global flags
	envFile        string
	trainingConfig string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "mip",
	Short:        "MIP training analytics",
	SilenceUsage: true,
	Version:      version,
	Long: `MIP Training Analytics CLI

Reads recommendation outcomes from the warehouse and reports how far each
(symbol, pattern, horizon) has progressed toward trust.

Usage:
  go run ./cmd/mip [command]

Examples:
  go run ./cmd/mip api
  go run ./cmd/mip training status --market-type STOCK
  go run ./cmd/mip training timeline --symbol AAPL --market-type STOCK --pattern-id 3
  go run ./cmd/mip scheduler start
  go run ./cmd/mip test-db`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", ".env file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&trainingConfig, "training-config", "", "training defaults YAML (overrides TRAINING_CONFIG)")
}
