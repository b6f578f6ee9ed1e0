package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rungroj/internal/config"
	"rungroj/internal/metrics"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type welcomeRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Server is the mail relay HTTP front.
type Server struct {
	sender  Sender
	handler http.Handler
	server  *http.Server
	logger  zerolog.Logger
}

func NewServer(cfg config.MailConfig, sender Sender, logger *zerolog.Logger) *Server {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "mailer").Logger()
	}
	s := &Server{sender: sender, logger: l}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api := r.PathPrefix("/api/mail").Subrouter()
	api.HandleFunc("/welcome", s.handleWelcome).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handleNotFound)

	origin := cfg.CORSOrigin
	if origin == "" {
		origin = "http://localhost:5173"
	}
	s.handler = handlers.CORS(
		handlers.AllowedOrigins([]string{origin}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)(r)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Mail relay listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	var req welcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn().Err(err).Msg("Decode welcome request failed")
		metrics.IncMail("error")
		writeJSON(w, http.StatusInternalServerError, map[string]bool{"success": false})
		return
	}

	if err := s.sender.SendWelcome(r.Context(), req.Email, req.Name); err != nil {
		s.logger.Error().Err(err).Str("to", req.Email).Msg("Welcome mail failed")
		metrics.IncMail("error")
		writeJSON(w, http.StatusInternalServerError, map[string]bool{"success": false})
		return
	}
	metrics.IncMail("sent")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Route not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
