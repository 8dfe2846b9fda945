package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/corridorwatch/internal/alert"
	"github.com/ppiankov/corridorwatch/internal/config"
	"github.com/ppiankov/corridorwatch/internal/integrity"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "corridorwatch",
	Short: "Non-actuating governance kernel for ecological corridors",
	Long: "Evaluates interface telemetry against a safety envelope, checks proposed\n" +
		"actions against corridor consent and rights preconditions, and evaluates\n" +
		"multi-factor access. Advisory only: it recommends, it never actuates.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := integrity.Verify(configuredAlerts); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(78) // EX_CONFIG
		}
		return nil
	},
}

// configuredAlerts returns the webhooks from --config, or none if it
// cannot be read.
func configuredAlerts() []alert.AlertConfig {
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return nil
	}
	return conf.Alerts
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.corridorwatch/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
