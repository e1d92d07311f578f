package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/PiranhaCodes/ptyreap/internal/pty"
)

// ErrNotFound is returned for an unknown session ID.
var ErrNotFound = errors.New("session not found")

// Options configures a Manager.
type Options struct {
	// SessionsDir holds one output FIFO per session. Empty disables FIFOs.
	SessionsDir string
	// LogDir holds one transcript per session. Empty disables transcripts.
	LogDir string
	// Shell is the preferred shell for requests without a command.
	Shell        string
	Size         pty.Size
	Stderr       pty.StderrMode
	DrainTimeout time.Duration
	KillGrace    time.Duration
	InputBuffer  int
	BacklogSize  int
	Logger       *logrus.Logger
}

// Manager manages sessions in a thread-safe manner. Sessions stay listed
// after their child exits until they are removed, so their status and
// output remain readable.
type Manager struct {
	opts     Options
	logger   *logrus.Logger
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewManager returns an empty Manager.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Add adds a session to the manager.
func (m *Manager) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Remove removes a session from the manager.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// List returns all sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})
	return sessions
}

// Count returns the number of sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Kill terminates a session, waits for its reap loop to finish and removes
// it from the manager. Killing an exited session only removes it.
func (m *Manager) Kill(ctx context.Context, id string) (pty.ExitStatus, error) {
	sess, err := m.Get(id)
	if err != nil {
		return pty.ExitStatus{}, err
	}

	sess.Terminate()
	select {
	case <-sess.Done():
	case <-ctx.Done():
		return pty.ExitStatus{}, ctx.Err()
	}

	m.Remove(id)
	return sess.Wait()
}

// Shutdown kills every session concurrently.
func (m *Manager) Shutdown(ctx context.Context) error {
	sessions := m.List()
	if len(sessions) == 0 {
		return nil
	}
	m.logger.Infof("shutting down %d session(s)", len(sessions))

	g, gctx := errgroup.WithContext(ctx)
	for _, sess := range sessions {
		g.Go(func() error {
			if _, err := m.Kill(gctx, sess.ID); err != nil && !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("session %s: %w", sess.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}
