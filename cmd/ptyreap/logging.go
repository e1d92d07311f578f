package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/PiranhaCodes/ptyreap/internal/config"
)

// loadConfig reads configuration honouring --config and --socket.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(file)
	if err != nil {
		return nil, err
	}
	if socket, _ := cmd.Flags().GetString("socket"); socket != "" {
		cfg.Set("socket", socket)
	}
	return cfg, nil
}

// configureLogger creates a logger with the appropriate log level based on flags.
// --log-level takes precedence over --verbose; without either, fallback is
// used, or the configured level when fallback is nil.
func configureLogger(cmd *cobra.Command, cfg *config.Config, fallback *logrus.Level) (*logrus.Logger, error) {
	var logLevel logrus.Level

	logLevelStr, _ := cmd.Flags().GetString("log-level")
	verbose, _ := cmd.Flags().GetBool("verbose")
	switch {
	case logLevelStr != "":
		switch logLevelStr {
		case "debug":
			logLevel = logrus.DebugLevel
		case "info":
			logLevel = logrus.InfoLevel
		case "warn":
			logLevel = logrus.WarnLevel
		case "error":
			logLevel = logrus.ErrorLevel
		default:
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevelStr)
		}
	case verbose:
		logLevel = logrus.DebugLevel
	case fallback != nil:
		logLevel = *fallback
	default:
		level, err := cfg.LogLevel()
		if err != nil {
			return nil, err
		}
		logLevel = level
	}

	return config.NewLogger(logLevel, os.Stderr), nil
}
