package api

import (
	"encoding/json"
	"time"

	"github.com/PiranhaCodes/ptyreap/internal/pty"
)

// Request represents an incoming request over the UNIX socket.
type Request struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Response represents a response to a request.
type Response struct {
	Ok   bool            `json:"ok"`
	Err  string          `json:"err,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SpawnRequest is the data for a spawn action. An empty command runs the
// daemon's shell; zero rows and cols use the configured size.
type SpawnRequest struct {
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	Env     []string `json:"env,omitempty"`
	Dir     string   `json:"dir,omitempty"`
	Rows    uint16   `json:"rows,omitempty"`
	Cols    uint16   `json:"cols,omitempty"`
	Stderr  string   `json:"stderr,omitempty"` // "merged" or "separate"
	Direct  bool     `json:"direct,omitempty"`
}

// SpawnResponse is the data returned from a spawn action.
type SpawnResponse struct {
	ID  string `json:"id"`
	Pid int    `json:"pid"`
}

// WriteRequest is the data for a write action. EOF closes the session's
// input after Data has been queued.
type WriteRequest struct {
	ID   string `json:"id"`
	Data string `json:"data"`
	EOF  bool   `json:"eof,omitempty"`
}

// ResizeRequest is the data for a resize action.
type ResizeRequest struct {
	ID   string `json:"id"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

// IDRequest is the data for kill and status actions.
type IDRequest struct {
	ID string `json:"id"`
}

// KillResponse is the data returned from a kill action.
type KillResponse struct {
	Exit  *pty.ExitStatus `json:"exit,omitempty"`
	Error string          `json:"error,omitempty"`
}

// ReadRequest is the data for a read action.
type ReadRequest struct {
	ID     string `json:"id"`
	Offset int64  `json:"offset"`
}

// ReadResponse carries session output from Offset up to Next. Done is set
// once the session has exited and every byte has been returned.
type ReadResponse struct {
	Data   []byte          `json:"data"`
	Offset int64           `json:"offset"`
	Next   int64           `json:"next"`
	Done   bool            `json:"done"`
	Exit   *pty.ExitStatus `json:"exit,omitempty"`
}

// ListResponse is the data returned from a list action.
type ListResponse struct {
	Sessions []SessionInfo `json:"sessions"`
	Count    int           `json:"count"`
}

// SessionInfo contains information about a session.
type SessionInfo struct {
	ID        string          `json:"id"`
	Pid       int             `json:"pid"`
	Command   string          `json:"command"`
	Args      []string        `json:"args,omitempty"`
	Status    string          `json:"status"` // "active", "draining" or "exited"
	Exit      *pty.ExitStatus `json:"exit,omitempty"`
	Error     string          `json:"error,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	Output    int64           `json:"output"`
}
