package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/PiranhaCodes/ptyreap/internal/api"
)

// spawnCmd represents the spawn command
var spawnCmd = &cobra.Command{
	Use:   "spawn [flags] [-- <command> [args...]]",
	Short: "Start a session in the daemon",
	Long: `Starts a session in the running daemon and prints its ID. Without a
command the daemon's shell is started.

Examples:
  ptyreap spawn
  ptyreap spawn --rows 50 --cols 200 -- htop
  ptyreap spawn --follow -- make build`,
	RunE: runSpawn,
}

var (
	spawnRows   uint16
	spawnCols   uint16
	spawnStderr string
	spawnDirect bool
	spawnDir    string
	spawnFollow bool
)

func init() {
	spawnCmd.Flags().Uint16Var(&spawnRows, "rows", 0, "Terminal rows (default from daemon config)")
	spawnCmd.Flags().Uint16Var(&spawnCols, "cols", 0, "Terminal columns (default from daemon config)")
	spawnCmd.Flags().StringVar(&spawnStderr, "stderr", "", "Stderr handling: merged or separate")
	spawnCmd.Flags().BoolVar(&spawnDirect, "direct", false, "Use plain sockets instead of a pseudo-terminal")
	spawnCmd.Flags().StringVar(&spawnDir, "dir", "", "Working directory for the program")
	spawnCmd.Flags().BoolVarP(&spawnFollow, "follow", "f", false, "Print output until the session exits")
}

func runSpawn(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}

	req := api.SpawnRequest{
		Rows:   spawnRows,
		Cols:   spawnCols,
		Stderr: spawnStderr,
		Direct: spawnDirect,
		Dir:    spawnDir,
	}
	if len(args) > 0 {
		req.Command = args[0]
		req.Args = args[1:]
	}

	resp, err := client.Spawn(cmd.Context(), req)
	if err != nil {
		return err
	}

	if !spawnFollow {
		fmt.Println(resp.ID)
		return nil
	}
	fmt.Fprintf(os.Stderr, "session %s (pid %d)\n", resp.ID, resp.Pid)
	return follow(cmd, client, resp.ID, 0)
}

// follow prints a session's output from offset until it exits, then
// returns its exit code as an error when non-zero.
func follow(cmd *cobra.Command, client *api.Client, id string, offset int64) error {
	resp, err := client.Follow(cmd.Context(), id, offset, 100*time.Millisecond, func(b []byte) {
		_, _ = os.Stdout.Write(b)
	})
	if err != nil {
		return err
	}
	if resp.Exit != nil {
		if code := exitCode(*resp.Exit); code != 0 {
			return &exitCodeError{code: code}
		}
	}
	return nil
}
