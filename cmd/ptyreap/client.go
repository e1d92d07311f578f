package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/PiranhaCodes/ptyreap/internal/api"
)

const clientTimeout = 45 * time.Second

// newClient connects to the daemon socket from config or --socket.
func newClient(cmd *cobra.Command) (*api.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	socketPath, err := cfg.Socket()
	if err != nil {
		return nil, fmt.Errorf("failed to expand socket path: %w", err)
	}
	return api.NewClient(socketPath, clientTimeout), nil
}
