package pty

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

var (
	// ErrSpawn marks a launch that failed to create or exec the child.
	ErrSpawn = errors.New("spawn failed")
	// ErrSessionSetup marks a child that could not become a session leader.
	ErrSessionSetup = errors.New("session setup failed")
	// ErrControllingTerminal marks a child that could not acquire the
	// terminal as its controlling terminal.
	ErrControllingTerminal = errors.New("controlling terminal setup failed")

	// ErrNoData is returned by Stream.TryRead when nothing is buffered.
	ErrNoData = errors.New("no data available")
	// ErrNotTerminal is returned by Resize on processes without a terminal.
	ErrNotTerminal = errors.New("process has no terminal")
	// ErrInputClosed is returned by Input.Write after CloseInput.
	ErrInputClosed = errors.New("input closed")
)

// LaunchErrorKind classifies a failed launch.
type LaunchErrorKind int

const (
	KindSpawn LaunchErrorKind = iota
	KindSessionSetup
	KindControllingTerminal
)

func (k LaunchErrorKind) String() string {
	switch k {
	case KindSessionSetup:
		return "session setup"
	case KindControllingTerminal:
		return "controlling terminal"
	default:
		return "spawn"
	}
}

func (k LaunchErrorKind) sentinel() error {
	switch k {
	case KindSessionSetup:
		return ErrSessionSetup
	case KindControllingTerminal:
		return ErrControllingTerminal
	default:
		return ErrSpawn
	}
}

// LaunchError reports a failed launch attempt. Err carries the OS error,
// so errors.Is(err, syscall.ENOENT) and friends keep working.
type LaunchError struct {
	Kind LaunchErrorKind
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Is matches the sentinel error for the kind.
func (e *LaunchError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Errno returns the OS error number carried by the error, or 0.
func (e *LaunchError) Errno() syscall.Errno {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return errno
	}
	return 0
}

// BridgeError is a read or write failure on one channel that is not the
// terminal end-of-stream condition.
type BridgeError struct {
	Channel Channel
	Op      string
	Err     error
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Channel, e.Op, e.Err)
}

func (e *BridgeError) Unwrap() error { return e.Err }

// classifyStartError maps a fork/exec failure onto a launch kind. The Go
// runtime reports the errno of the first failing step between fork and exec
// without naming the step: setsid only fails with EPERM, TIOCSCTTY fails with
// ENOTTY, EINVAL or ENXIO, anything else comes from locating or executing the
// program. execve itself can also return EPERM (seccomp, file capabilities)
// or EINVAL (bad ELF interpreter), so those errnos are attributed to session
// or terminal setup only when path is an executable the caller may run. The
// errno stays reachable through LaunchError.Errno either way.
func classifyStartError(path string, err error) *LaunchError {
	kind := KindSpawn
	var errno syscall.Errno
	if errors.As(err, &errno) && unix.Access(path, unix.X_OK) == nil {
		switch errno {
		case syscall.EPERM:
			kind = KindSessionSetup
		case syscall.ENOTTY, syscall.EINVAL, syscall.ENXIO:
			kind = KindControllingTerminal
		}
	}
	return &LaunchError{Kind: kind, Path: path, Err: err}
}
