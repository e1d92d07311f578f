package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/PiranhaCodes/ptyreap/internal/pty"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Run a program attached to this terminal",
	Long: `Runs a program on a new pseudo-terminal and connects it to this one.

The local terminal is put in raw mode while the program runs, window size
changes are forwarded, and ptyreap exits with the program's exit code
(128+N when it was killed by signal N).

Examples:
  ptyreap run -- bash -l
  ptyreap run --stderr separate -- make test
  echo hi | ptyreap run --direct -- cat`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var (
	runStderr       string
	runDirect       bool
	runDrainTimeout time.Duration
	runKillGrace    time.Duration
)

func init() {
	runCmd.Flags().StringVar(&runStderr, "stderr", "", "Stderr handling: merged or separate (default from config)")
	runCmd.Flags().BoolVar(&runDirect, "direct", false, "Use plain sockets instead of a pseudo-terminal")
	runCmd.Flags().DurationVar(&runDrainTimeout, "drain-timeout", 0, "How long to wait for output after the program exits (default from config)")
	runCmd.Flags().DurationVar(&runKillGrace, "kill-grace", 0, "Delay between SIGTERM and SIGKILL on interrupt (default from config)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	quiet := logrus.WarnLevel
	logger, err := configureLogger(cmd, cfg, &quiet)
	if err != nil {
		return err
	}

	stderrMode, err := cfg.Stderr()
	if err != nil {
		return err
	}
	if runStderr != "" {
		if stderrMode, err = pty.ParseStderrMode(runStderr); err != nil {
			return err
		}
	}
	drainTimeout := cfg.DrainTimeout()
	if runDrainTimeout > 0 {
		drainTimeout = runDrainTimeout
	}
	killGrace := cfg.KillGrace()
	if runKillGrace > 0 {
		killGrace = runKillGrace
	}

	stdinFD := int(os.Stdin.Fd())
	interactive := !runDirect && term.IsTerminal(stdinFD)

	size := cfg.Size()
	if interactive {
		if local, err := localSize(); err == nil {
			size = local
		}
	}

	mode := pty.ModePTY
	if runDirect {
		mode = pty.ModeDirect
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	proc, err := pty.Start(pty.Command{Path: args[0], Args: args[1:]}, pty.Options{
		Mode:        mode,
		Size:        size,
		Stderr:      stderrMode,
		InputBuffer: cfg.InputBuffer(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer proc.Close()

	if interactive {
		oldState, err := term.MakeRaw(stdinFD)
		if err != nil {
			_ = proc.Kill()
			_, _ = proc.Wait()
			return fmt.Errorf("failed to set raw mode: %w", err)
		}
		defer func() { _ = term.Restore(stdinFD, oldState) }()

		go forwardResize(ctx, proc, logger)
	}

	go forwardInput(proc.Bridge().In, logger)

	status, err := pty.Reap(ctx, proc, writeEvent, pty.ReapOptions{
		DrainTimeout: drainTimeout,
		KillGrace:    killGrace,
		Logger:       logger,
	})
	if _, ok := proc.TryStatus(); !ok {
		return err
	}
	if err != nil {
		logger.Warnf("child finished with error: %v", err)
	}
	if code := exitCode(status); code != 0 {
		return &exitCodeError{code: code}
	}
	return nil
}

// writeEvent copies output to the matching local stream.
func writeEvent(ev pty.Event) {
	if len(ev.Data) == 0 {
		return
	}
	out := os.Stdout
	if ev.Channel == pty.ChannelErr {
		out = os.Stderr
	}
	_, _ = out.Write(ev.Data)
}

// forwardInput copies local stdin to the child and closes its input at EOF.
func forwardInput(in *pty.Input, logger *logrus.Logger) {
	if _, err := io.Copy(in, os.Stdin); err != nil && !errors.Is(err, pty.ErrInputClosed) {
		logger.Debugf("stdin copy stopped: %v", err)
		return
	}
	_ = in.CloseInput()
}

// forwardResize applies the local window size to the child on SIGWINCH.
func forwardResize(ctx context.Context, proc pty.Process, logger *logrus.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-proc.Done():
			return
		case <-sigCh:
			size, err := localSize()
			if err != nil {
				logger.Debugf("terminal resize read failed: %v", err)
				continue
			}
			if err := proc.Resize(size); err != nil {
				logger.Debugf("resize failed: %v", err)
			}
		}
	}
}

func localSize() (pty.Size, error) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return pty.Size{}, err
	}
	return pty.Size{Rows: uint16(height), Cols: uint16(width)}, nil
}
