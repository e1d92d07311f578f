package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/PiranhaCodes/ptyreap/internal/pty"
)

// ErrExited is returned when input or a resize is sent to a session whose
// child has already been reaped.
var ErrExited = errors.New("session has exited")

// Status is the lifecycle phase reported for a session.
type Status string

const (
	StatusActive   Status = "active"
	StatusDraining Status = "draining"
	StatusExited   Status = "exited"
)

// Info is a snapshot of a session.
type Info struct {
	ID        string          `json:"id"`
	Pid       int             `json:"pid"`
	Command   string          `json:"command"`
	Args      []string        `json:"args,omitempty"`
	Status    Status          `json:"status"`
	Exit      *pty.ExitStatus `json:"exit,omitempty"`
	Error     string          `json:"error,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	Output    int64           `json:"output"`
}

// Session is a supervised child: the process, its reap loop and the sinks
// its output is copied to.
type Session struct {
	ID        string
	Command   string
	Args      []string
	StartedAt time.Time

	proc    pty.Process
	backlog *Backlog
	logger  *logrus.Entry

	logFile    *os.File
	fifoPath   string
	fifoWriter *os.File

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	state   pty.State
	exit    *pty.ExitStatus
	exitErr error
}

// Write queues data for the child's stdin.
func (s *Session) Write(data []byte) (int, error) {
	if s.Exited() {
		return 0, ErrExited
	}
	return s.proc.Bridge().In.Write(data)
}

// CloseInput signals end of input to the child once queued data is written.
func (s *Session) CloseInput() error {
	return s.proc.Bridge().In.CloseInput()
}

// Resize resizes the terminal to the specified dimensions.
func (s *Session) Resize(rows, cols uint16) error {
	if s.Exited() {
		return ErrExited
	}
	return s.proc.Resize(pty.Size{Rows: rows, Cols: cols})
}

// Read returns output recorded at or after offset, the offset to resume
// from, and whether the session has finished producing output.
func (s *Session) Read(offset int64) ([]byte, int64, bool) {
	data, next := s.backlog.ReadFrom(offset)
	done := s.Exited() && next == s.backlog.End()
	return data, next, done
}

// Terminate cancels the reap loop, which signals the child's process group.
func (s *Session) Terminate() {
	s.cancel()
}

// Wait blocks until the session completes.
func (s *Session) Wait() (pty.ExitStatus, error) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exit == nil {
		return pty.ExitStatus{}, s.exitErr
	}
	return *s.exit, s.exitErr
}

// Done is closed when the reap loop has finished and resources are released.
func (s *Session) Done() <-chan struct{} { return s.done }

// Exited reports whether the reap loop has finished.
func (s *Session) Exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		ID:        s.ID,
		Pid:       s.proc.Pid(),
		Command:   s.Command,
		Args:      s.Args,
		Status:    StatusActive,
		StartedAt: s.StartedAt,
		Output:    s.backlog.End(),
	}
	switch s.state {
	case pty.StateDraining:
		info.Status = StatusDraining
	case pty.StateDone:
		info.Status = StatusExited
	}
	if s.exit != nil {
		exit := *s.exit
		info.Exit = &exit
		info.Status = StatusExited
	}
	if s.exitErr != nil {
		info.Error = s.exitErr.Error()
	}
	return info
}

// run drives the reap loop until the child is gone, then releases the
// session's resources.
func (s *Session) run(ctx context.Context, opts pty.ReapOptions) {
	defer func() {
		s.cancel()
		CleanupSession(s)
		close(s.done)
	}()

	opts.OnState = s.setState
	status, err := pty.Reap(ctx, s.proc, s.handleEvent, opts)

	s.mu.Lock()
	if st, ok := s.proc.TryStatus(); ok {
		s.exit = &st
	}
	s.exitErr = err
	s.mu.Unlock()

	entry := s.logger.WithField("status", status.String())
	if err != nil {
		entry.Warnf("session ended with error: %v", err)
		return
	}
	entry.Info("session ended")
}

func (s *Session) setState(st pty.State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// handleEvent copies one output event to the backlog, the transcript log
// and the FIFO. Only the reap loop calls it.
func (s *Session) handleEvent(ev pty.Event) {
	if ev.Err != nil {
		s.logger.WithField("channel", ev.Channel.String()).Warnf("output error: %v", ev.Err)
		return
	}
	if ev.EOF {
		s.logger.WithField("channel", ev.Channel.String()).Debug("output closed")
		return
	}

	s.backlog.Append(ev.Data)

	if s.logFile != nil {
		if _, err := s.logFile.Write(ev.Data); err != nil {
			s.logger.Warnf("log write error: %v", err)
		}
	}

	// Dropped when no reader keeps up; the transcript has everything.
	if s.fifoWriter != nil {
		if err := writeNonblocking(s.fifoWriter, ev.Data); err != nil {
			s.logger.Debugf("FIFO write error (non-fatal): %v", err)
		}
	}
}

// writeNonblocking makes a single write attempt and never waits for the
// descriptor to become writable.
func writeNonblocking(f *os.File, p []byte) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var werr error
	if err := rc.Write(func(fd uintptr) bool {
		_, werr = unix.Write(int(fd), p)
		return true
	}); err != nil {
		return err
	}
	return werr
}
