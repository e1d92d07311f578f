// Package pidfile keeps a single daemon instance per PID file.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrRunning is returned when the PID file names a live process.
var ErrRunning = errors.New("daemon already running")

// File is an acquired PID file.
type File struct {
	path string
	pid  int
}

// Acquire records the current process in path. A file left by a process
// that no longer exists is replaced.
func Acquire(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create PID file directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			pid := os.Getpid()
			_, werr := fmt.Fprintf(f, "%d\n", pid)
			cerr := f.Close()
			if err := errors.Join(werr, cerr); err != nil {
				os.Remove(path)
				return nil, fmt.Errorf("failed to write PID file: %w", err)
			}
			return &File{path: path, pid: pid}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create PID file: %w", err)
		}

		pid, rerr := Read(path)
		if rerr == nil && alive(pid) {
			return nil, fmt.Errorf("%w: pid %d (%s)", ErrRunning, pid, path)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale PID file: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to create PID file %s: lost race with another instance", path)
}

// Path returns the file's location.
func (f *File) Path() string { return f.path }

// Release removes the file if it still names this process.
func (f *File) Release() {
	if pid, err := Read(f.path); err == nil && pid == f.pid {
		os.Remove(f.path)
	}
}

// Read returns the pid recorded in path.
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID file %s", path)
	}
	return pid, nil
}

// Signal sends sig to the process recorded in path.
func Signal(path string, sig syscall.Signal) (int, error) {
	pid, err := Read(path)
	if err != nil {
		return 0, err
	}
	if err := unix.Kill(pid, sig); err != nil {
		return pid, fmt.Errorf("signal pid %d: %w", pid, err)
	}
	return pid, nil
}

func alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
