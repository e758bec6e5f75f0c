// Package cmd implements the CLI commands for youcube.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmylchreest/youcube/internal/config"
	"github.com/jmylchreest/youcube/internal/observability"
	"github.com/jmylchreest/youcube/internal/version"
)

var (
	// cfgFile holds the config file path from the CLI flag.
	cfgFile string
	// appConfig is loaded before any subcommand runs.
	appConfig *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "youcube",
	Short:   "Media resolution and transcoding server for ComputerCraft",
	Version: version.Short(),
	Long: `youcube resolves URLs and search terms into audio (DFPWM) and video (32vid)
files that ComputerCraft computers can play, and streams progress to clients
over a websocket while it downloads and converts.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// Set here to avoid an initialization cycle through rootCmd.PersistentFlags.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd.Root().PersistentFlags())
	}

	// These flags are not bound to viper; they only override the loaded values
	// when set explicitly, so env and config file values survive flag defaults.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./config.yaml, /etc/youcube, $HOME/.youcube)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// loadConfig reads configuration and installs the default logger.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-format), only if explicitly provided
//  2. Environment variables (YOUCUBE_LOGGING_LEVEL, ...)
//  3. Config file values
//  4. Built-in defaults
func loadConfig(flags *pflag.FlagSet) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		cfg.Logging.Level = strings.ToLower(level)
	}
	if flags.Changed("log-format") {
		format, _ := flags.GetString("log-format")
		cfg.Logging.Format = strings.ToLower(format)
	}
	if cfg.Logging.Level == "warning" {
		cfg.Logging.Level = "warn"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating flags: %w", err)
	}

	logger := observability.NewLoggerWithWriter(cfg.Logging, os.Stderr)
	slog.SetDefault(logger.With(slog.String("app", version.ApplicationName)))

	appConfig = cfg
	return nil
}
