package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rungroj/internal/auth"
	"rungroj/internal/domain"
	"rungroj/internal/events"
	"rungroj/internal/export"
	"rungroj/internal/models"
	"rungroj/internal/service"
)

func (s *HTTPServer) handleMyReservations(w http.ResponseWriter, r *http.Request) {
	session := auth.FromContext(r.Context())
	recs, err := s.deps.Reservations.ListMine(r.Context(), session.UserID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", session.UserID).Msg("List reservations failed")
		writeError(w, http.StatusBadGateway, "unable to load reservations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": recs})
}

// handleReservationStream pushes status updates of the caller's own
// reservations; admins receive every change with ?scope=all.
func (s *HTTPServer) handleReservationStream(w http.ResponseWriter, r *http.Request) {
	if s.streamer == nil {
		writeError(w, http.StatusServiceUnavailable, "realtime is not configured")
		return
	}
	session := auth.FromContext(r.Context())
	filter := events.ForUser(session.UserID)
	if r.URL.Query().Get("scope") == "all" {
		if !session.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		filter = events.All()
	}
	s.streamer.Serve(w, r, filter)
}

func (s *HTTPServer) handleAdminReservations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.Reservations.ListAll(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("List all reservations failed")
		writeError(w, http.StatusBadGateway, "unable to load reservations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": recs})
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

func (s *HTTPServer) handleAdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body statusUpdateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status, err := models.ParseReservationStatus(body.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.deps.Reservations.UpdateStatus(r.Context(), r.PathValue("id"), status)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rec)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "reservation not found")
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error().Err(err).Msg("Update reservation status failed")
		writeError(w, http.StatusBadGateway, "unable to update reservation")
	}
}

func (s *HTTPServer) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.Reservations.ListAll(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Export reservations failed")
		writeError(w, http.StatusBadGateway, "unable to load reservations")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteReservations(&buf, recs); err != nil {
		s.logger.Error().Err(err).Msg("Render export failed")
		writeError(w, http.StatusInternalServerError, "unable to render export")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName(time.Now().In(s.deps.Location))))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
