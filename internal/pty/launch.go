package pty

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Command describes the program to launch.
type Command struct {
	Path string
	Args []string
	Env  []string // nil inherits the parent environment
	Dir  string
}

// resetSignals are the signals a terminal child expects at their default
// disposition.
var resetSignals = []os.Signal{
	syscall.SIGCHLD,
	syscall.SIGHUP,
	syscall.SIGINT,
	syscall.SIGQUIT,
	syscall.SIGTERM,
	syscall.SIGALRM,
}

// Launcher starts children on a terminal slave.
type Launcher struct {
	logger *logrus.Logger
}

// NewLauncher returns a Launcher. A nil logger discards output.
func NewLauncher(logger *logrus.Logger) *Launcher {
	return &Launcher{logger: loggerOrDiscard(logger)}
}

// Spawn starts cmd as a session leader with slave as its controlling
// terminal. stdin, stdout and stderr each get their own duplicate of slave;
// a non-nil stderr descriptor replaces the stderr duplicate. Spawn takes
// ownership of slave and stderr and closes the parent's copies before it
// returns, whether or not the launch succeeded.
func (l *Launcher) Spawn(cmd Command, slave *Descriptor, stderr *Descriptor) (*Child, error) {
	defer closeAll(slave, stderr)

	path, err := exec.LookPath(cmd.Path)
	if err != nil {
		return nil, &LaunchError{Kind: KindSpawn, Path: cmd.Path, Err: err}
	}

	// The slave is opened nonblocking; the flag lives on the open file
	// description and would reach the child through every duplicate.
	if err := SetNonblocking(slave.Fd(), false); err != nil {
		return nil, &LaunchError{Kind: KindSpawn, Path: path, Err: err}
	}

	stdio := make([]*Descriptor, 0, 3)
	defer func() { closeAll(stdio...) }()
	for i := 0; i < 3; i++ {
		if i == 2 && stderr != nil {
			stdio = append(stdio, stderr)
			continue
		}
		d, err := slave.Dup()
		if err != nil {
			return nil, &LaunchError{Kind: KindSpawn, Path: path, Err: err}
		}
		stdio = append(stdio, d)
	}

	return l.start(path, cmd, stdio[0], stdio[1], stdio[2], true)
}

// SpawnDirect starts cmd without a terminal, with the given descriptors as
// its standard streams. It takes ownership of all three.
func (l *Launcher) SpawnDirect(cmd Command, stdin, stdout, stderr *Descriptor) (*Child, error) {
	defer closeAll(stdin, stdout, stderr)

	path, err := exec.LookPath(cmd.Path)
	if err != nil {
		return nil, &LaunchError{Kind: KindSpawn, Path: cmd.Path, Err: err}
	}
	for _, d := range []*Descriptor{stdin, stdout, stderr} {
		if err := SetNonblocking(d.Fd(), false); err != nil {
			return nil, &LaunchError{Kind: KindSpawn, Path: path, Err: err}
		}
	}
	return l.start(path, cmd, stdin, stdout, stderr, false)
}

func (l *Launcher) start(path string, cmd Command, stdin, stdout, stderr *Descriptor, terminal bool) (*Child, error) {
	c := exec.Command(path, cmd.Args...)
	c.Env = cmd.Env
	if c.Env == nil {
		c.Env = os.Environ()
	}
	c.Dir = cmd.Dir
	c.Stdin = stdin.File()
	c.Stdout = stdout.File()
	c.Stderr = stderr.File()

	// Between fork and exec the runtime applies, in order: setsid, the stdio
	// dup2s, then TIOCSCTTY on the child's fd 0. Signals handled by the Go
	// runtime are reset to SIG_DFL in the child.
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if terminal {
		c.SysProcAttr.Setctty = true
		c.SysProcAttr.Ctty = 0
	}

	l.resetIgnoredSignals(path)
	markStrayDescriptorsCloexec()

	if err := c.Start(); err != nil {
		lerr := classifyStartError(path, err)
		l.logger.WithFields(logrus.Fields{"path": path, "kind": lerr.Kind.String()}).
			Debugf("launch failed: %v", err)
		return nil, lerr
	}

	// The child holds its own copies now; the ones exec.Cmd was given are
	// not a communication path for the parent.
	c.Stdin, c.Stdout, c.Stderr = nil, nil, nil

	l.logger.WithFields(logrus.Fields{"path": path, "pid": c.Process.Pid}).Info("child started")
	return newChild(c, l.logger), nil
}

// ignoredSignals receives the signals resetIgnoredSignals takes over. It is
// never read, so they stay without effect in this process.
var ignoredSignals = make(chan os.Signal, 1)

// resetIgnoredSignals makes sure the child starts with the default
// disposition for every signal in resetSignals. The runtime resets only the
// handlers it installed itself, so a signal inherited as ignored is handed to
// os/signal instead; the parent keeps dropping it while the child gets
// SIG_DFL.
func (l *Launcher) resetIgnoredSignals(path string) {
	var ignored []os.Signal
	for _, sig := range resetSignals {
		if signal.Ignored(sig) {
			ignored = append(ignored, sig)
		}
	}
	if len(ignored) == 0 {
		return
	}
	signal.Notify(ignoredSignals, ignored...)
	l.logger.WithFields(logrus.Fields{"path": path, "signals": fmt.Sprint(ignored)}).
		Debug("reset ignored signals to default for the child")
}

// markStrayDescriptorsCloexec sets FD_CLOEXEC on every descriptor above the
// standard three that lacks it, so nothing this process inherited leaks into
// the child. Failures are ignored.
func markStrayDescriptorsCloexec() {
	entries, err := os.ReadDir("/dev/fd")
	if err != nil {
		return
	}
	for _, e := range entries {
		fd, err := strconv.Atoi(e.Name())
		if err != nil || fd <= 2 {
			continue
		}
		flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
		if err != nil || flags&unix.FD_CLOEXEC != 0 {
			continue
		}
		_, _ = unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags|unix.FD_CLOEXEC)
	}
}
