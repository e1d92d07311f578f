package pty

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Mode selects how the child's standard streams are provided.
type Mode int

const (
	// ModePTY runs the child on a pseudo-terminal.
	ModePTY Mode = iota
	// ModeDirect runs the child on socket pairs with no terminal.
	ModeDirect
)

// StderrMode decides where a terminal child's stderr goes.
type StderrMode int

const (
	// StderrMerged gives the child the terminal as fd 2. isatty(2) holds and
	// stderr bytes arrive on ChannelOut, interleaved as the terminal saw them.
	StderrMerged StderrMode = iota
	// StderrSeparate gives the child a socket as fd 2. Stderr arrives on
	// ChannelErr, but the child sees a non-terminal stderr and may change
	// its colouring and buffering accordingly.
	StderrSeparate
)

func (m StderrMode) String() string {
	if m == StderrSeparate {
		return "separate"
	}
	return "merged"
}

// ParseStderrMode parses "merged" or "separate".
func ParseStderrMode(s string) (StderrMode, error) {
	switch s {
	case "", "merged":
		return StderrMerged, nil
	case "separate":
		return StderrSeparate, nil
	default:
		return StderrMerged, fmt.Errorf("invalid stderr mode %q (must be merged or separate)", s)
	}
}

// Options configures Start.
type Options struct {
	Mode        Mode
	Size        Size // used as given; see Size.OrDefault
	Stderr      StderrMode
	InputBuffer int
	Logger      *logrus.Logger
}

// Start launches cmd and returns the running process with its bridge. On
// failure every descriptor opened along the way is closed.
func Start(cmd Command, opts Options) (Process, error) {
	launcher := NewLauncher(opts.Logger)
	if opts.Mode == ModeDirect {
		return startDirect(launcher, cmd, opts)
	}
	return startPTY(launcher, cmd, opts)
}

func startPTY(launcher *Launcher, cmd Command, opts Options) (Process, error) {
	pair, err := Allocate(opts.Size)
	if err != nil {
		return nil, err
	}

	var errParent, errChild *Descriptor
	if opts.Stderr == StderrSeparate {
		if errParent, errChild, err = socketPair("stderr"); err != nil {
			pair.Close()
			return nil, err
		}
	}

	child, err := launcher.Spawn(cmd, pair.Slave, errChild)
	if err != nil {
		closeAll(errParent)
		pair.Close()
		return nil, err
	}

	bridge, err := NewPTYBridge(pair.Master, errParent, opts.InputBuffer, opts.Logger)
	if err != nil {
		pair.Close()
		_ = child.Kill()
		_, _ = child.Wait()
		return nil, fmt.Errorf("failed to bridge PTY: %w", err)
	}

	return &ptyProcess{Child: child, pair: pair, bridge: bridge}, nil
}

func startDirect(launcher *Launcher, cmd Command, opts Options) (Process, error) {
	var parents, children []*Descriptor
	for _, name := range []string{"stdin", "stdout", "stderr"} {
		p, c, err := socketPair(name)
		if err != nil {
			closeAll(parents...)
			closeAll(children...)
			return nil, err
		}
		parents = append(parents, p)
		children = append(children, c)
	}

	child, err := launcher.SpawnDirect(cmd, children[0], children[1], children[2])
	if err != nil {
		closeAll(parents...)
		return nil, err
	}

	bridge, err := NewSocketBridge(parents[0], parents[1], parents[2], opts.InputBuffer, opts.Logger)
	if err != nil {
		_ = child.Kill()
		_, _ = child.Wait()
		return nil, fmt.Errorf("failed to bridge sockets: %w", err)
	}

	return &directProcess{Child: child, bridge: bridge}, nil
}
