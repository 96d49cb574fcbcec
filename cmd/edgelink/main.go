package main

import (
	"fmt"
	"os"

	"github.com/danmuck/edgelink/internal/config"
	"github.com/danmuck/edgelink/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	logging.ConfigureRuntime()
	if err := rootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "edgelink: %v\n", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	debug      bool
	configPath string
}

func rootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "edgelink",
		Short:         "Station-mode link supervisor and periodic HTTP exchanger",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(flags.debug, config.LogConfig{})
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (.toml, .yaml)")
	cmd.AddCommand(runCmd(flags))
	cmd.AddCommand(simulateCmd(flags))
	cmd.AddCommand(configCmd(flags))
	return cmd
}

// setupLogging installs the process logger. The --debug flag and the
// EDGELINK_LOG_* environment take precedence over the config file.
func setupLogging(debug bool, lc config.LogConfig) zerolog.Logger {
	cfg := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(lc.Level); ok {
		cfg.Level = lvl
	}
	if lc.File != "" {
		cfg.File = lc.File
	}
	cfg.NoColor = lc.NoColor
	logging.ApplyEnvOverrides(&cfg)
	if debug {
		cfg.Level = zerolog.DebugLevel
	}
	return logging.Install(cfg)
}

func loadConfig(flags *rootFlags) (config.Config, error) {
	if flags.configPath == "" {
		cfg := config.Default()
		config.ApplyEnv(&cfg)
		return cfg, cfg.Validate()
	}
	return config.Load(flags.configPath)
}
