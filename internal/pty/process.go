package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ExitStatus is how a child terminated.
type ExitStatus struct {
	Code     int            `json:"code"`
	Signaled bool           `json:"signaled,omitempty"`
	Signal   syscall.Signal `json:"signal,omitempty"`
}

// Success reports a zero exit code.
func (s ExitStatus) Success() bool {
	return !s.Signaled && s.Code == 0
}

func (s ExitStatus) String() string {
	if s.Signaled {
		return fmt.Sprintf("terminated by signal %d (%s)", int(s.Signal), s.Signal)
	}
	return fmt.Sprintf("exited with code %d", s.Code)
}

func exitStatusFrom(ps *os.ProcessState) ExitStatus {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitStatus{Code: -1, Signaled: true, Signal: ws.Signal()}
	}
	return ExitStatus{Code: ps.ExitCode()}
}

// Process is a running child plus the parent's end of its streams.
type Process interface {
	Pid() int
	// TryStatus returns the exit status if the child has been reaped.
	TryStatus() (ExitStatus, bool)
	// Wait blocks until the child has been reaped.
	Wait() (ExitStatus, error)
	// Done is closed once the child has been reaped.
	Done() <-chan struct{}
	// Terminate sends SIGTERM to the child's process group.
	Terminate() error
	// Kill sends SIGKILL to the child's process group.
	Kill() error
	Bridge() *Bridge
	// Resize changes the terminal size, or returns ErrNotTerminal.
	Resize(Size) error
	// Close releases the parent's descriptors. It does not signal the child.
	Close() error
}

// Child is a started child process. Exactly one wait call is made for it;
// its state changes only when that call returns.
type Child struct {
	cmd    *exec.Cmd
	pid    int
	logger *logrus.Entry

	done    chan struct{}
	status  ExitStatus
	waitErr error
}

func newChild(cmd *exec.Cmd, logger *logrus.Logger) *Child {
	c := &Child{
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		logger: loggerOrDiscard(logger).WithField("pid", cmd.Process.Pid),
		done:   make(chan struct{}),
	}
	go c.reap()
	return c
}

func (c *Child) reap() {
	defer close(c.done)

	err := c.cmd.Wait()
	if c.cmd.ProcessState == nil {
		c.waitErr = fmt.Errorf("wait for pid %d: %w", c.pid, err)
		c.logger.Errorf("wait failed: %v", err)
		return
	}
	c.status = exitStatusFrom(c.cmd.ProcessState)
	c.logger.WithField("status", c.status.String()).Info("child reaped")
}

// Pid returns the child's process id.
func (c *Child) Pid() int { return c.pid }

// Done is closed once the child has been reaped.
func (c *Child) Done() <-chan struct{} { return c.done }

// TryStatus returns the status without blocking.
func (c *Child) TryStatus() (ExitStatus, bool) {
	select {
	case <-c.done:
		return c.status, c.waitErr == nil
	default:
		return ExitStatus{}, false
	}
}

// Wait blocks until the child has been reaped.
func (c *Child) Wait() (ExitStatus, error) {
	<-c.done
	return c.status, c.waitErr
}

// Terminate sends SIGTERM.
func (c *Child) Terminate() error {
	return c.Signal(syscall.SIGTERM)
}

// Kill sends SIGKILL.
func (c *Child) Kill() error {
	return c.Signal(syscall.SIGKILL)
}

// Signal delivers sig to the child's process group, falling back to the
// child alone when the group is gone. Signalling a reaped child is a no-op.
func (c *Child) Signal(sig syscall.Signal) error {
	select {
	case <-c.done:
		return nil
	default:
	}
	err := unix.Kill(-c.pid, sig)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.ESRCH) {
		if err := c.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("signal %s to pid %d: %w", sig, c.pid, err)
		}
		return nil
	}
	return fmt.Errorf("signal %s to process group %d: %w", sig, c.pid, err)
}

// ptyProcess is a child running on a pseudo-terminal.
type ptyProcess struct {
	*Child
	pair   *Pair
	bridge *Bridge
}

func (p *ptyProcess) Bridge() *Bridge { return p.bridge }

func (p *ptyProcess) Resize(size Size) error { return p.pair.Resize(size) }

// TTYName returns the terminal device the child sees.
func (p *ptyProcess) TTYName() string { return p.pair.TTYName() }

func (p *ptyProcess) Close() error {
	return errors.Join(p.bridge.Close(), p.pair.Close())
}

// directProcess is a child whose streams are plain socket pairs.
type directProcess struct {
	*Child
	bridge *Bridge
}

func (p *directProcess) Bridge() *Bridge { return p.bridge }

func (p *directProcess) Resize(Size) error { return ErrNotTerminal }

func (p *directProcess) Close() error { return p.bridge.Close() }
