package main

import (
	"os"

	"github.com/spf13/cobra"
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read <session-id>",
	Short: "Print a session's output",
	Long: `Prints the output a session has produced. The daemon keeps a bounded
backlog per session; --offset resumes from a byte offset reported earlier.`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

var (
	readOffset int64
	readFollow bool
)

func init() {
	readCmd.Flags().Int64Var(&readOffset, "offset", 0, "Byte offset to start from")
	readCmd.Flags().BoolVarP(&readFollow, "follow", "f", false, "Keep printing until the session exits")
}

func runRead(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	if readFollow {
		return follow(cmd, client, args[0], readOffset)
	}
	resp, err := client.Read(cmd.Context(), args[0], readOffset)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(resp.Data)
	return err
}
