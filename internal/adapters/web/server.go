package web

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/corey/chatscan/internal/adapters/socket"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server serves the dashboard, the JSON API and /metrics over HTTP.
type Server struct {
	queries  socket.AppQueries
	log      zerolog.Logger
	listener net.Listener
	httpSrv  *http.Server
	port     int
	started  time.Time
	stopOnce sync.Once

	// ctx bounds scans started through the API; cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc

	portFilePath string // where the bound port is written for discovery
}

// NewServer creates an HTTP server for the API.
// The portFilePath is where the bound port is written for discovery ("" = none).
func NewServer(queries socket.AppQueries, portFilePath string, log zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		queries:      queries,
		log:          log,
		ctx:          ctx,
		cancel:       cancel,
		portFilePath: portFilePath,
		started:      time.Now(),
	}
}

// DefaultPort computes a data-dir-specific port: 19000 + (hash(abs_path) % 1000).
func DefaultPort(dbPath string) int {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		abs = dbPath
	}
	h := sha256.Sum256([]byte(abs))
	// Use first 4 bytes as uint32
	n := uint32(h[0])<<24 | uint32(h[1])<<16 | uint32(h[2])<<8 | uint32(h[3])
	return 19000 + int(n%1000)
}

// Handler builds the router. Exposed for tests.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(recoverMiddleware(s.log), logMiddleware(s.log))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/continue", s.handleContinue).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/restart", s.handleRestart).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/keywords", s.handleSetKeywords).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/filter", s.handleSetFilter).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/share", s.handleShare).Methods(http.MethodGet)
	api.HandleFunc("/context", s.handleContext).Methods(http.MethodGet)
	api.HandleFunc("/streamers", s.handleStreamers).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	static, _ := fs.Sub(staticFS, "static")
	r.PathPrefix("/").Handler(http.FileServerFS(static)).Methods(http.MethodGet)
	return r
}

// Start begins listening on the preferred port (0 = any free port).
func (s *Server) Start(preferredPort int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", preferredPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.started = time.Now()

	s.httpSrv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	// Write port file for discovery
	if s.portFilePath != "" {
		if err := os.WriteFile(s.portFilePath, []byte(fmt.Sprintf("%d", s.port)), 0644); err != nil {
			s.log.Warn().Err(err).Str("path", s.portFilePath).Msg("write port file")
		}
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("http server failed")
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		if s.httpSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.httpSrv.Shutdown(ctx)
		}
		if s.portFilePath != "" {
			os.Remove(s.portFilePath)
		}
	})
}

// Port returns the bound port number.
func (s *Server) Port() int {
	return s.port
}

// URL returns the dashboard URL.
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

// scanContext ties a request to the server lifetime: a scan stops when the
// client disconnects or the server shuts down.
func (s *Server) scanContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
