package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Status is a snapshot of the bridge state reported on /status
type Status struct {
	Connection     string `json:"connection"`
	Groups         int    `json:"groups"`
	PendingQueries int    `json:"pending_queries"`
}

// StatusFunc returns the current bridge status
type StatusFunc func() Status

// Server is the liveness HTTP endpoint
type Server struct {
	addr    string
	status  StatusFunc
	started time.Time
	logger  *zap.Logger

	server *http.Server
}

// NewServer creates a new liveness server listening on addr
func NewServer(addr string, status StatusFunc, logger *zap.Logger) *Server {
	s := &Server{
		addr:    addr,
		status:  status,
		started: time.Now(),
		logger:  logger.Named("api"),
	}
	s.server = &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes returns the HTTP routes
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	return r
}

// Start serves until Stop is called
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Stop is called
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("liveness server started", zap.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"status":  "online",
		"message": "Telegram userbot is running",
		"service": "TC Kimlik Sorgu Bot",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"status": "healthy",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"bot_status": s.status(),
		"listening":  "group_messages",
		"features": []string{
			"TC kimlik sorgusu",
			"Otomatik yanıt",
			"Inline butonlar",
			"Kopyalama özelliği",
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}
