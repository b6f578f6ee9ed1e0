package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"rungroj/internal/auth"
	"rungroj/internal/domain"
	"rungroj/internal/models"
)

// sessionProfile overlays the token's identity on a stored profile. The
// role always comes from the token.
func sessionProfile(session *models.Session, stored *models.Profile) models.Profile {
	p := models.DefaultProfile(*session)
	if stored != nil {
		p.FullName = stored.FullName
		p.Phone = stored.Phone
		p.UpdatedAt = stored.UpdatedAt
		if stored.Email != "" {
			p.Email = stored.Email
		}
	}
	return p
}

func (s *HTTPServer) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	session := auth.FromContext(r.Context())
	stored, err := s.deps.Store.GetProfile(r.Context(), session.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error().Err(err).Str("user_id", session.UserID).Msg("Get profile failed")
		writeError(w, http.StatusBadGateway, "unable to load profile")
		return
	}
	writeJSON(w, http.StatusOK, sessionProfile(session, stored))
}

func (s *HTTPServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update models.ProfileUpdate
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := update.Normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session := auth.FromContext(r.Context())
	stored, err := s.deps.Store.UpdateProfile(r.Context(), session.UserID, update)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", session.UserID).Msg("Update profile failed")
		writeError(w, http.StatusBadGateway, "unable to save profile")
		return
	}
	writeJSON(w, http.StatusOK, sessionProfile(session, stored))
}
