package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PiranhaCodes/ptyreap/internal/pty"
	"github.com/PiranhaCodes/ptyreap/internal/session"
)

// DefaultKillTimeout bounds how long a kill request waits for the session.
const DefaultKillTimeout = 30 * time.Second

// Server handles UNIX socket connections and session management.
type Server struct {
	socketPath string
	manager    *session.Manager
	logger     *logrus.Logger
	listener   net.Listener
	stopChan   chan struct{}
	stopOnce   sync.Once
	conns      sync.WaitGroup
}

// NewServer creates a new server instance.
func NewServer(socketPath string, manager *session.Manager, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		socketPath: socketPath,
		manager:    manager,
		logger:     logger,
		stopChan:   make(chan struct{}),
	}
}

// Listen binds the socket, replacing a stale socket file.
func (s *Server) Listen() error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}

	s.listener = listener
	s.logger.Infof("server listening on %s", s.socketPath)
	return nil
}

// Serve accepts connections until Stop is called.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				return nil
			default:
				return err
			}
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConn(conn)
		}()
	}
}

// Start binds the socket and serves until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Stop stops the server, closes the listener and waits for in-flight
// requests.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.listener != nil {
			s.listener.Close()
		}
		s.conns.Wait()
		s.logger.Info("server stopped")
	})
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		s.reply(encoder, nil, errors.New("invalid request: "+err.Error()))
		return
	}
	s.logger.WithField("action", req.Action).Debug("request")

	var (
		data interface{}
		err  error
	)
	switch req.Action {
	case "spawn":
		data, err = s.handleSpawn(req.Data)
	case "write":
		err = s.handleWrite(req.Data)
	case "resize":
		err = s.handleResize(req.Data)
	case "kill":
		data, err = s.handleKill(req.Data)
	case "list":
		data = s.handleList()
	case "status":
		data, err = s.handleStatus(req.Data)
	case "read":
		data, err = s.handleRead(req.Data)
	default:
		err = errors.New("unknown action: " + req.Action)
	}
	s.reply(encoder, data, err)
}

func (s *Server) reply(encoder *json.Encoder, data interface{}, err error) {
	resp := Response{Ok: err == nil}
	if err != nil {
		resp.Err = err.Error()
	} else if data != nil {
		raw, merr := json.Marshal(data)
		if merr != nil {
			resp = Response{Ok: false, Err: "failed to encode response: " + merr.Error()}
		} else {
			resp.Data = raw
		}
	}
	if err := encoder.Encode(resp); err != nil {
		s.logger.Debugf("failed to send response: %v", err)
	}
}

func decode(data json.RawMessage, v interface{}, what string) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.New("invalid " + what + " request: " + err.Error())
	}
	return nil
}

func (s *Server) lookup(id string) (*session.Session, error) {
	if id == "" {
		return nil, errors.New("session ID is required")
	}
	return s.manager.Get(id)
}

func (s *Server) handleSpawn(data json.RawMessage) (interface{}, error) {
	var req SpawnRequest
	if err := decode(data, &req, "spawn"); err != nil {
		return nil, err
	}

	sreq := session.Request{
		Command: req.Command,
		Args:    req.Args,
		Env:     req.Env,
		Dir:     req.Dir,
		Size:    pty.Size{Rows: req.Rows, Cols: req.Cols},
		Direct:  req.Direct,
	}
	if req.Stderr != "" {
		mode, err := pty.ParseStderrMode(req.Stderr)
		if err != nil {
			return nil, err
		}
		sreq.Stderr = &mode
	}

	sess, err := s.manager.Spawn(sreq)
	if err != nil {
		return nil, err
	}
	return SpawnResponse{ID: sess.ID, Pid: sess.Info().Pid}, nil
}

func (s *Server) handleWrite(data json.RawMessage) error {
	var req WriteRequest
	if err := decode(data, &req, "write"); err != nil {
		return err
	}

	sess, err := s.lookup(req.ID)
	if err != nil {
		return err
	}

	if req.Data != "" {
		if _, err := sess.Write([]byte(req.Data)); err != nil {
			return err
		}
	}
	if req.EOF {
		return sess.CloseInput()
	}
	return nil
}

func (s *Server) handleResize(data json.RawMessage) error {
	var req ResizeRequest
	if err := decode(data, &req, "resize"); err != nil {
		return err
	}

	if req.Cols <= 0 || req.Rows <= 0 || req.Cols > 0xffff || req.Rows > 0xffff {
		return errors.New("cols and rows must be between 1 and 65535")
	}

	sess, err := s.lookup(req.ID)
	if err != nil {
		return err
	}
	return sess.Resize(uint16(req.Rows), uint16(req.Cols))
}

func (s *Server) handleKill(data json.RawMessage) (interface{}, error) {
	var req IDRequest
	if err := decode(data, &req, "kill"); err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, errors.New("session ID is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultKillTimeout)
	defer cancel()

	status, err := s.manager.Kill(ctx, req.ID)
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	resp := KillResponse{Exit: &status}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp, nil
}

func (s *Server) handleList() interface{} {
	sessions := s.manager.List()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, toSessionInfo(sess.Info()))
	}
	return ListResponse{
		Sessions: infos,
		Count:    len(infos),
	}
}

func (s *Server) handleStatus(data json.RawMessage) (interface{}, error) {
	var req IDRequest
	if err := decode(data, &req, "status"); err != nil {
		return nil, err
	}
	sess, err := s.lookup(req.ID)
	if err != nil {
		return nil, err
	}
	return toSessionInfo(sess.Info()), nil
}

func (s *Server) handleRead(data json.RawMessage) (interface{}, error) {
	var req ReadRequest
	if err := decode(data, &req, "read"); err != nil {
		return nil, err
	}
	sess, err := s.lookup(req.ID)
	if err != nil {
		return nil, err
	}

	out, next, done := sess.Read(req.Offset)
	resp := ReadResponse{
		Data:   out,
		Offset: next - int64(len(out)),
		Next:   next,
		Done:   done,
	}
	if done {
		resp.Exit = sess.Info().Exit
	}
	return resp, nil
}

func toSessionInfo(info session.Info) SessionInfo {
	return SessionInfo{
		ID:        info.ID,
		Pid:       info.Pid,
		Command:   info.Command,
		Args:      info.Args,
		Status:    string(info.Status),
		Exit:      info.Exit,
		Error:     info.Error,
		StartedAt: info.StartedAt,
		Output:    info.Output,
	}
}
