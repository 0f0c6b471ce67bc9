package main

import (
	"fmt"
	"os"

	"carprice/internal/cfg"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
	jsonLogs bool

	// Loaded configuration
	settings cfg.Settings
)

var rootCmd = &cobra.Command{
	Use:   "carprice",
	Short: "Used-car price prediction",
	Long: `carprice predicts the sale price of a used car from its listing attributes,
using a model trained on historical listings, and serves descriptive statistics
about the reference data.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			if err := os.Setenv("CONFIG_FILE", cfgFile); err != nil {
				return err
			}
		}
		s, err := cfg.Load()
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
		settings = s
		if cmd.Flags().Changed("log-level") {
			settings.LogLevel = logLevel
		}
		setupLogging(settings.LogLevel, jsonLogs)
		return nil
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "write logs as JSON instead of console text")
}

func setupLogging(level string, asJSON bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if !asJSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
