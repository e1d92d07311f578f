package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// Client talks to a Server. Each call uses its own connection.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient returns a client for the socket at socketPath. A zero timeout
// leaves calls bounded only by their context.
func NewClient(socketPath string, timeout time.Duration) *Client {
	return &Client{socketPath: socketPath, timeout: timeout}
}

// Spawn starts a session.
func (c *Client) Spawn(ctx context.Context, req SpawnRequest) (SpawnResponse, error) {
	var resp SpawnResponse
	err := c.call(ctx, "spawn", req, &resp)
	return resp, err
}

// Write sends data to a session's stdin, optionally closing it afterwards.
func (c *Client) Write(ctx context.Context, id, data string, eof bool) error {
	return c.call(ctx, "write", WriteRequest{ID: id, Data: data, EOF: eof}, nil)
}

// Resize changes a session's terminal size.
func (c *Client) Resize(ctx context.Context, id string, rows, cols int) error {
	return c.call(ctx, "resize", ResizeRequest{ID: id, Rows: rows, Cols: cols}, nil)
}

// Kill terminates a session and returns how it ended.
func (c *Client) Kill(ctx context.Context, id string) (KillResponse, error) {
	var resp KillResponse
	err := c.call(ctx, "kill", IDRequest{ID: id}, &resp)
	return resp, err
}

// List returns every session the daemon knows about.
func (c *Client) List(ctx context.Context) (ListResponse, error) {
	var resp ListResponse
	err := c.call(ctx, "list", struct{}{}, &resp)
	return resp, err
}

// Status returns one session.
func (c *Client) Status(ctx context.Context, id string) (SessionInfo, error) {
	var resp SessionInfo
	err := c.call(ctx, "status", IDRequest{ID: id}, &resp)
	return resp, err
}

// Read returns a session's output starting at offset.
func (c *Client) Read(ctx context.Context, id string, offset int64) (ReadResponse, error) {
	var resp ReadResponse
	err := c.call(ctx, "read", ReadRequest{ID: id, Offset: offset}, &resp)
	return resp, err
}

// Follow polls a session's output from offset until it is done, passing
// each chunk to fn.
func (c *Client) Follow(ctx context.Context, id string, offset int64, interval time.Duration, fn func([]byte)) (ReadResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		resp, err := c.Read(ctx, id, offset)
		if err != nil {
			return resp, err
		}
		if len(resp.Data) > 0 {
			fn(resp.Data)
		}
		offset = resp.Next
		if resp.Done {
			return resp, nil
		}
		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) call(ctx context.Context, action string, req, out interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(conn).Encode(Request{Action: action, Data: data}); err != nil {
		return err
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return err
	}
	if !resp.Ok {
		return fmt.Errorf("%s failed: %w", action, errors.New(resp.Err))
	}

	if out != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("failed to parse %s response: %w", action, err)
		}
	}
	return nil
}
