package socket

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Server is the daemon that listens on a Unix socket and serves session requests.
type Server struct {
	queries  AppQueries
	listener net.Listener
	sockPath string
	started  time.Time
	log      zerolog.Logger

	// ctx is cancelled by Stop so in-flight scans end with the daemon.
	ctx    context.Context
	cancel context.CancelFunc

	done         chan struct{}
	shutdownCh   chan struct{} // closed when a remote shutdown request is received
	shutdownOnce sync.Once
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewServer creates a daemon server backed by queries.
func NewServer(queries AppQueries, sockPath string, log zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		queries:    queries,
		sockPath:   sockPath,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		shutdownCh: make(chan struct{}),
	}
}

// Start begins listening on the Unix socket. It handles stale sockets by
// attempting a connection first. If the connection fails, the stale socket
// is removed before binding.
func (s *Server) Start() error {
	// Handle stale socket
	if _, err := os.Stat(s.sockPath); err == nil {
		conn, err := net.DialTimeout("unix", s.sockPath, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return fmt.Errorf("daemon already running at %s", s.sockPath)
		}
		// Stale socket, remove it
		os.Remove(s.sockPath)
	}

	ln, err := net.Listen("unix", s.sockPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.started = time.Now()

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop gracefully shuts down the server, closing the listener and removing the socket file.
// Idempotent: safe to call multiple times (e.g., after remote shutdown + signal).
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
		s.cancel()
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		os.Remove(s.sockPath)
	})
	return nil
}

// ShutdownCh returns a channel that is closed when a remote shutdown request
// is received. The daemon's main goroutine should select on this alongside
// OS signals so the process actually exits after a remote stop.
func (s *Server) ShutdownCh() <-chan struct{} {
	return s.shutdownCh
}

// Addr returns the socket path the server is listening on.
func (s *Server) Addr() string {
	return s.sockPath
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// Unblock the scanner when the server stops.
	stop := context.AfterFunc(s.ctx, func() { conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB max message

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(conn, Response{Error: "invalid request JSON"})
			continue
		}

		resp := s.handleRequest(req)
		s.writeResponse(conn, resp)

		if req.Method == MethodShutdown {
			s.shutdownOnce.Do(func() { close(s.shutdownCh) })
			return
		}
	}
}

func (s *Server) handleRequest(req Request) Response {
	if s.queries == nil && req.Method != MethodShutdown {
		return Response{ID: req.ID, Error: "app not available"}
	}

	start := time.Now()
	resp := s.dispatch(req)
	ev := s.log.Debug()
	if resp.Error != "" {
		ev = s.log.Warn().Str("error", resp.Error)
	}
	ev.Str("method", req.Method).Dur("elapsed", time.Since(start)).Msg("socket request")
	return resp
}

func (s *Server) dispatch(req Request) Response {
	ctx := s.ctx
	switch req.Method {
	case MethodHealth:
		h := s.queries.Health()
		h.Uptime = time.Since(s.started).Round(time.Second).String()
		return Response{ID: req.ID, Result: h}
	case MethodShutdown:
		return Response{ID: req.ID, Result: struct{}{}}
	case MethodSessionList:
		return Response{ID: req.ID, Result: s.queries.SessionList()}

	case MethodSessionCreate:
		var p CreateParams
		if err := decodeParams(req.Params, &p); err != nil {
			return errorResponse(req, err)
		}
		v, err := s.queries.CreateSession(ctx, p.Keywords, p.SourceFilter)
		return reply(req, v, err)
	case MethodSessionGet:
		var p SessionParams
		if err := decodeParams(req.Params, &p); err != nil {
			return errorResponse(req, err)
		}
		v, err := s.queries.SessionStatus(p.ID)
		return reply(req, v, err)
	case MethodSessionContinue:
		var p SessionParams
		if err := decodeParams(req.Params, &p); err != nil {
			return errorResponse(req, err)
		}
		v, err := s.queries.ContinueSession(ctx, p.ID)
		return reply(req, v, err)
	case MethodSessionRestart:
		var p SessionParams
		if err := decodeParams(req.Params, &p); err != nil {
			return errorResponse(req, err)
		}
		v, err := s.queries.RestartSession(ctx, p.ID)
		return reply(req, v, err)
	case MethodSessionKeywords:
		var p KeywordsParams
		if err := decodeParams(req.Params, &p); err != nil {
			return errorResponse(req, err)
		}
		v, err := s.queries.SetSessionKeywords(ctx, p.ID, p.Keywords)
		return reply(req, v, err)
	case MethodSessionFilter:
		var p FilterParams
		if err := decodeParams(req.Params, &p); err != nil {
			return errorResponse(req, err)
		}
		v, err := s.queries.SetSessionFilter(ctx, p.ID, p.SourceFilter)
		return reply(req, v, err)
	case MethodSessionDelete:
		var p SessionParams
		if err := decodeParams(req.Params, &p); err != nil {
			return errorResponse(req, err)
		}
		if err := s.queries.DeleteSession(p.ID); err != nil {
			return errorResponse(req, err)
		}
		return Response{ID: req.ID, Result: struct{}{}}

	case MethodContext:
		var p ContextParams
		if err := decodeParams(req.Params, &p); err != nil {
			return errorResponse(req, err)
		}
		v, err := s.queries.Context(ctx, p.RecordingID, p.Offset)
		return reply(req, v, err)
	case MethodStreamers:
		v, err := s.queries.Streamers(ctx)
		return reply(req, v, err)
	default:
		return Response{ID: req.ID, Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}
}

// decodeParams re-marshals the generic params into target.
func decodeParams(params interface{}, target interface{}) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("invalid params")
	}
	if err := json.Unmarshal(paramsJSON, target); err != nil {
		return fmt.Errorf("invalid params")
	}
	return nil
}

func errorResponse(req Request, err error) Response {
	return Response{ID: req.ID, Error: err.Error()}
}

// reply adapts a (value, error) pair into a Response.
func reply(req Request, v interface{}, err error) Response {
	if err != nil {
		return errorResponse(req, err)
	}
	return Response{ID: req.ID, Result: v}
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	data = append(data, '\n')
	conn.Write(data)
}
