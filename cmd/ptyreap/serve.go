package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/PiranhaCodes/ptyreap/internal/api"
	"github.com/PiranhaCodes/ptyreap/internal/pidfile"
	"github.com/PiranhaCodes/ptyreap/internal/session"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session daemon",
	Long: `Runs the session daemon on a Unix socket. Only one daemon runs per PID
file; a PID file left by a dead daemon is replaced.

On SIGINT, SIGTERM or SIGHUP every session is terminated and reaped before
the daemon exits. "ptyreap serve --stop" signals a running daemon to do so.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveStop            bool
	serveShutdownTimeout time.Duration
)

func init() {
	serveCmd.Flags().BoolVar(&serveStop, "stop", false, "Stop the daemon recorded in the PID file")
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 30*time.Second, "How long to wait for sessions on shutdown")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg, nil)
	if err != nil {
		return err
	}

	pidPath, err := cfg.PIDFile()
	if err != nil {
		return fmt.Errorf("failed to expand PID file path: %w", err)
	}

	if serveStop {
		pid, err := pidfile.Signal(pidPath, syscall.SIGTERM)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("no daemon running (no PID file at %s)", pidPath)
			}
			return err
		}
		logger.Infof("sent SIGTERM to daemon %d", pid)
		return nil
	}

	socketPath, err := cfg.Socket()
	if err != nil {
		return fmt.Errorf("failed to expand socket path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	pid, err := pidfile.Acquire(pidPath)
	if err != nil {
		return err
	}
	defer pid.Release()

	opts, err := cfg.SessionOptions(logger)
	if err != nil {
		return err
	}
	manager := session.NewManager(opts)
	server := api.NewServer(socketPath, manager, logger)
	if err := server.Listen(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	defer os.Remove(socketPath)

	logger.Infof("daemon started (pid %d, socket %s)", os.Getpid(), socketPath)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Infof("received %s, shutting down", sig)
	case err := <-serveErr:
		if err != nil {
			logger.Errorf("server failed: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
	defer cancel()
	shutdownErr := manager.Shutdown(ctx)
	server.Stop()
	logger.Info("server shutdown complete")
	return shutdownErr
}
