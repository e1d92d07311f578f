package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// killCmd represents the kill command
var killCmd = &cobra.Command{
	Use:   "kill <session-id>...",
	Short: "Terminate sessions",
	Long: `Sends SIGTERM to each session's process group, escalating to SIGKILL
after the configured grace period, and waits until the session is reaped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runKill,
}

func runKill(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	for _, id := range args {
		resp, err := client.Kill(cmd.Context(), id)
		if err != nil {
			return err
		}
		switch {
		case resp.Error != "":
			fmt.Printf("%s: %s\n", id, resp.Error)
		case resp.Exit != nil:
			fmt.Printf("%s: %s\n", id, resp.Exit)
		default:
			fmt.Printf("%s: killed\n", id)
		}
	}
	return nil
}
