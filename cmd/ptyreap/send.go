package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <session-id> [data]",
	Short: "Send input to a session",
	Long: `Sends input to a session's stdin. A newline is appended unless -n is
given. Without data, stdin is sent as is.

Examples:
  ptyreap send 6f1c... "ls -la"
  ptyreap send -n 6f1c... $'\x03'
  cat script.sh | ptyreap send --eof 6f1c...`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

var (
	sendNoNewline bool
	sendEOF       bool
	sendRows      int
	sendCols      int
)

func init() {
	sendCmd.Flags().BoolVarP(&sendNoNewline, "no-newline", "n", false, "Do not append a newline")
	sendCmd.Flags().BoolVar(&sendEOF, "eof", false, "Close the session's input after sending")
	sendCmd.Flags().IntVar(&sendRows, "rows", 0, "Resize the terminal to this many rows")
	sendCmd.Flags().IntVar(&sendCols, "cols", 0, "Resize the terminal to this many columns")
}

func runSend(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	id := args[0]

	if sendRows > 0 || sendCols > 0 {
		if err := client.Resize(cmd.Context(), id, sendRows, sendCols); err != nil {
			return err
		}
	}

	var data string
	switch {
	case len(args) == 2:
		data = args[1]
		if !sendNoNewline {
			data += "\n"
		}
	case sendRows > 0 || sendCols > 0:
		// Resize only.
		if !sendEOF {
			return nil
		}
	default:
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		data = string(b)
	}

	if err := client.Write(cmd.Context(), id, data, sendEOF); err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		fmt.Fprintf(os.Stderr, "sent %d bytes\n", len(data))
	}
	return nil
}
