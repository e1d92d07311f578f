package session

import (
	"os"
)

// CleanupSession releases the parent's descriptors for a session, closes its
// transcript and removes its FIFO. The child has already been reaped by the
// time the reap loop calls this.
func CleanupSession(sess *Session) {
	if sess == nil {
		return
	}

	sess.logger.Debug("cleaning up session")

	if err := sess.proc.Close(); err != nil {
		sess.logger.Warnf("failed to close process descriptors: %v", err)
	}

	if sess.logFile != nil {
		if err := sess.logFile.Sync(); err != nil {
			sess.logger.Debugf("log sync failed: %v", err)
		}
		sess.logFile.Close()
	}

	if sess.fifoWriter != nil {
		sess.fifoWriter.Close()
	}

	if sess.fifoPath != "" {
		if err := os.Remove(sess.fifoPath); err != nil && !os.IsNotExist(err) {
			sess.logger.Warnf("failed to remove FIFO %s: %v", sess.fifoPath, err)
		}
	}

	sess.logger.Debug("session cleaned up")
}
