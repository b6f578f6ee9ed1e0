package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"rungroj/internal/auth"
	"rungroj/internal/config"
	"rungroj/internal/domain"
	"rungroj/internal/location"
	"rungroj/internal/metrics"
	"rungroj/internal/realtime"
	"rungroj/internal/service"

	"github.com/gorilla/handlers"
	"github.com/rs/zerolog"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Dependencies is everything the HTTP API needs from the rest of the app.
type Dependencies struct {
	Store        domain.Store
	Drafts       domain.DraftRepository
	Events       domain.EventSource
	Geocoder     domain.Geocoder
	Branches     *location.BranchTable
	Reservations *service.ReservationService
	Verifier     *auth.Verifier
	Payment      config.PaymentConfig
	Location     *time.Location
	LoginPath    string
	Checks       map[string]ReadinessCheck
	Logger       *zerolog.Logger
}

// HTTPServer exposes the booking API consumed by the web front end.
type HTTPServer struct {
	cfg      config.APIConfig
	deps     Dependencies
	streamer *realtime.Streamer
	limiter  *rateLimiter
	server   *http.Server
	handler  http.Handler
	logger   zerolog.Logger

	// submissions in flight keyed by caller and vehicle
	inflight sync.Map
}

func NewHTTPServer(cfg config.APIConfig, deps Dependencies) (*HTTPServer, error) {
	if deps.Store == nil || deps.Branches == nil || deps.Verifier == nil || deps.Reservations == nil {
		return nil, errors.New("api: store, branches, verifier and reservations are required")
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = deps.Logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{
		cfg:     cfg,
		deps:    deps,
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  logger,
	}
	if deps.Events != nil {
		srv.streamer = realtime.NewStreamer(deps.Events, cfg.CORSOrigins, deps.Logger)
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	cors := handlers.CORS(
		handlers.AllowedOrigins(corsOrigins(cfg.CORSOrigins)),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
		handlers.AllowCredentials(),
	)

	srv.handler = requestIDMiddleware(
		loggingMiddleware(&srv.logger,
			cors(
				srv.limiter.Wrap(
					auth.Middleware(deps.Verifier, &srv.logger)(mux),
				),
			),
		),
	)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			metrics.IncHTTP(pattern)
			h(w, r)
		})
	}

	handle("GET /healthz", s.handleHealth)
	handle("GET /readyz", s.handleReady)

	handle("GET /api/v1/vehicles", s.handleListVehicles)
	handle("GET /api/v1/vehicles/{id}", s.handleGetVehicle)
	handle("GET /api/v1/branches", s.handleBranches)
	handle("GET /api/v1/locations/search", s.handleLocationSearch)
	handle("GET /api/v1/locations/reverse", s.handleLocationReverse)

	handle("POST /api/v1/booking/{vehicleId}/validate", s.handleValidateBooking)
	handle("POST /api/v1/booking/{vehicleId}", s.handleSubmitBooking)
	handle("GET /api/v1/booking/drafts/{token}", s.handleRestoreDraft)

	handle("GET /api/v1/profile", s.requireSession(s.handleGetProfile))
	handle("PATCH /api/v1/profile", s.requireSession(s.handleUpdateProfile))

	handle("GET /api/v1/reservations/mine", s.requireSession(s.handleMyReservations))
	handle("GET /api/v1/reservations/stream", s.requireSession(s.handleReservationStream))

	handle("GET /api/v1/admin/reservations", s.requireAdmin(s.handleAdminReservations))
	handle("PATCH /api/v1/admin/reservations/{id}/status", s.requireAdmin(s.handleAdminUpdateStatus))
	handle("GET /api/v1/admin/reservations/export", s.requireAdmin(s.handleAdminExport))
	handle("PATCH /api/v1/admin/vehicles/{id}", s.requireAdmin(s.handleAdminUpdateVehicle))
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	results := map[string]string{}
	ready := true
	if err := s.deps.Store.Ping(ctx); err != nil {
		results["store"] = err.Error()
		ready = false
	} else {
		results["store"] = "ok"
	}
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			ready = false
			continue
		}
		results[name] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": results})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
