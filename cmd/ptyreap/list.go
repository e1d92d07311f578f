package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/PiranhaCodes/ptyreap/internal/api"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show one session",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var listNoColor bool

func init() {
	listCmd.Flags().BoolVar(&listNoColor, "no-color", false, "Disable colored output")
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	resp, err := client.List(cmd.Context())
	if err != nil {
		return err
	}
	if listNoColor {
		color.NoColor = true
	}

	if resp.Count == 0 {
		fmt.Println("No sessions")
		return nil
	}
	printSessions(os.Stdout, resp.Sessions, time.Now())
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	info, err := client.Status(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printSessions(os.Stdout, []api.SessionInfo{info}, time.Now())
	return nil
}

func printSessions(w io.Writer, sessions []api.SessionInfo, now time.Time) {
	fmt.Fprintf(w, "%-36s  %-7s  %-10s  %-8s  %-9s  %s\n", "ID", "PID", "STATUS", "UPTIME", "OUTPUT", "COMMAND")
	for _, s := range sessions {
		status := fmt.Sprintf("%-10s", describeStatus(s))
		fmt.Fprintf(w, "%-36s  %-7d  %s  %-8s  %-9d  %s\n",
			s.ID, s.Pid, statusColor(s).Sprint(status),
			now.Sub(s.StartedAt).Truncate(time.Second), s.Output,
			strings.TrimSpace(s.Command+" "+strings.Join(s.Args, " ")))
	}
}

func describeStatus(s api.SessionInfo) string {
	if s.Exit == nil {
		return s.Status
	}
	if s.Exit.Signaled {
		return fmt.Sprintf("sig %d", int(s.Exit.Signal))
	}
	return fmt.Sprintf("exit %d", s.Exit.Code)
}

func statusColor(s api.SessionInfo) *color.Color {
	switch {
	case s.Exit != nil && s.Exit.Success():
		return color.New(color.FgCyan)
	case s.Exit != nil, s.Error != "":
		return color.New(color.FgRed)
	case s.Status == "draining":
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}
