package main

import (
	"github.com/spf13/cobra"

	"github.com/jonwraymond/querystats/config"
)

// rootCmd returns the qstats command tree.
func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qstats",
		Short: "qstats groups executed find commands by query shape.",
		Long: `qstats computes query stats keys for find commands and aggregates
execution samples per key.

Commands and samples are read as MongoDB Extended JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("config", "", "Path to a YAML config file")

	cmd.AddCommand(
		shapeCmd(),
		replayCmd(),
		serveCmd(),
	)
	return cmd
}

// loadConfig loads the file named by --config, or the defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}
