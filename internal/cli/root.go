// Package cli implements the Stride command-line interface using Cobra.
// Commands run against the configured store directly; `serve` starts the API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	outputFormat string
	configPath   string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "stride",
	Short: "Stride: workout streaks and activation scoring",
	Long: `Stride tracks daily workout streaks (grace windows, freeze tokens,
weekend skip, milestones) and scores new-user activation from product events.

Run 'stride serve' for the HTTP API or use the streak and activation
commands against the local store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "o", "text", "Output format: text, json or yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $STRIDE_HOME/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version
	buildVersion = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
