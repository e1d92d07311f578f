// Package pty launches child processes on a pseudo-terminal and bridges the
// terminal's single byte stream to separate asynchronous in/out/err channels.
//
// The pieces, leaf first:
//
//   - Descriptor: exclusive ownership of one OS file descriptor.
//   - Pair: a master/slave pseudo-terminal with its window size.
//   - WrapForAsync: nonblocking mode plus runtime poller registration.
//   - Launcher: session leader, controlling terminal and stdio setup.
//   - Bridge: Stream readers (EIO reads as EOF) and the queued Input writer.
//   - Reap: the control loop that drains output after the child exits.
//
// Start ties them together and returns a Process.
package pty
