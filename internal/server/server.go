package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/liftlab/liftlab/internal/store"
)

// Server is the HTTP surface around the engine: a beacon endpoint for
// event ingestion, a public results API, and token-protected admin
// endpoints for lifecycle control.
type Server struct {
	store     *store.SQLiteStore
	port      int
	token     string
	tokenFile string
	router    *http.ServeMux
	logger    *zap.Logger
	startTime time.Time
}

// New builds a server with a fresh admin token.
func New(s *store.SQLiteStore, port int, tokenFile string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := &Server{
		store:     s,
		port:      port,
		token:     generateToken(),
		tokenFile: tokenFile,
		router:    http.NewServeMux(),
		logger:    logger,
		startTime: time.Now(),
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	// Public endpoints
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/b", s.handleBeacon)
	s.router.HandleFunc("/api/tests", s.handleListTests)
	s.router.HandleFunc("/api/tests/", s.handleTestDetail)

	// Admin endpoints (token protected)
	s.router.Handle("/admin/tests/", s.authMiddleware(http.HandlerFunc(s.handleAdminTest)))
}

// Start writes the admin token file (when configured) and serves until
// the listener fails.
func (s *Server) Start() error {
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0600); err != nil {
			s.logger.Warn("failed to write token file", zap.String("path", s.tokenFile), zap.Error(err))
		}
	}

	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("server listening",
		zap.String("addr", addr),
		zap.String("admin_token", s.token),
	)

	return http.ListenAndServe(addr, s.requestLogger(s.router))
}

// Token returns the admin token for this server instance.
func (s *Server) Token() string {
	return s.token
}

// Handler exposes the routed (and logged) handler for tests.
func (s *Server) Handler() http.Handler {
	return s.requestLogger(s.router)
}

func generateToken() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// crypto/rand failing is effectively fatal elsewhere; a fixed
		// fallback keeps local dev alive.
		return "0badc0de0badc0de"
	}
	return hex.EncodeToString(bytes)
}
