package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ptyreap",
	Short: "Run programs on pseudo-terminals and reap them cleanly",
	Long: `ptyreap launches programs on a pseudo-terminal (or plain sockets), bridges
their stdin, stdout and stderr, and collects every byte of output before
reporting how they exited.

Run a single program attached to this terminal with "ptyreap run", or start
a daemon with "ptyreap serve" and manage sessions with spawn, list, send,
read, status and kill.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(spawnCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(killCmd)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (default ~/.config/ptyreap/config.yaml)")
	rootCmd.PersistentFlags().String("socket", "", "Path to Unix socket (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output (same as --log-level debug)")
}
