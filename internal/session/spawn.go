package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/PiranhaCodes/ptyreap/internal/pty"
)

// Request describes a session to start. An empty Command runs the detected
// shell. Zero fields fall back to the manager's options.
type Request struct {
	Command string
	Args    []string
	Env     []string
	Dir     string
	Size    pty.Size
	Stderr  *pty.StderrMode
	Direct  bool
}

// Spawn starts a new session. It creates the FIFO and transcript, starts
// the child and runs its reap loop in the background.
func (m *Manager) Spawn(req Request) (*Session, error) {
	command := req.Command
	if command == "" {
		shellPath, err := DetectShell(m.opts.Shell)
		if err != nil {
			return nil, fmt.Errorf("shell detection failed: %w", err)
		}
		command = shellPath
	}

	id := uuid.New().String()
	logger := m.logger.WithFields(logrus.Fields{"session": id})

	sess := &Session{
		ID:        id,
		Command:   command,
		Args:      req.Args,
		StartedAt: time.Now(),
		backlog:   NewBacklog(m.opts.BacklogSize),
		logger:    logger,
		done:      make(chan struct{}),
	}

	if err := m.openSinks(sess); err != nil {
		sess.closeSinks()
		return nil, err
	}

	size := req.Size
	if size.Rows == 0 || size.Cols == 0 {
		size = m.opts.Size
	}
	stderr := m.opts.Stderr
	if req.Stderr != nil {
		stderr = *req.Stderr
	}
	mode := pty.ModePTY
	if req.Direct {
		mode = pty.ModeDirect
	}

	proc, err := pty.Start(pty.Command{
		Path: command,
		Args: req.Args,
		Env:  req.Env,
		Dir:  req.Dir,
	}, pty.Options{
		Mode:        mode,
		Size:        size.OrDefault(),
		Stderr:      stderr,
		InputBuffer: m.opts.InputBuffer,
		Logger:      m.logger,
	})
	if err != nil {
		sess.closeSinks()
		return nil, fmt.Errorf("failed to start %s: %w", command, err)
	}
	sess.proc = proc
	sess.logger = logger.WithField("pid", proc.Pid())

	ctx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel

	m.Add(sess)
	go sess.run(ctx, pty.ReapOptions{
		DrainTimeout: m.opts.DrainTimeout,
		KillGrace:    m.opts.KillGrace,
		Logger:       m.logger,
	})

	sess.logger.WithField("command", command).Info("spawned session")
	return sess, nil
}

func (m *Manager) openSinks(sess *Session) error {
	if dir := m.opts.SessionsDir; dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create sessions directory: %w", err)
		}

		fifoPath := filepath.Join(dir, sess.ID+".out")
		if err := os.Remove(fifoPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing FIFO: %w", err)
		}
		if err := syscall.Mkfifo(fifoPath, 0666); err != nil {
			return fmt.Errorf("failed to create FIFO: %w", err)
		}
		sess.fifoPath = fifoPath

		// Opened read-write so the open succeeds and writes never block
		// while no reader is attached.
		fifoWriter, err := os.OpenFile(fifoPath, os.O_RDWR|syscall.O_NONBLOCK, 0)
		if err != nil {
			return fmt.Errorf("failed to open FIFO for writing: %w", err)
		}
		sess.fifoWriter = fifoWriter
	}

	if dir := m.opts.LogDir; dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		logPath := filepath.Join(dir, sess.ID+".log")
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		sess.logFile = logFile
	}
	return nil
}

// closeSinks undoes openSinks for a session that never started.
func (s *Session) closeSinks() {
	if s.logFile != nil {
		s.logFile.Close()
	}
	if s.fifoWriter != nil {
		s.fifoWriter.Close()
	}
	if s.fifoPath != "" {
		os.Remove(s.fifoPath)
	}
}
