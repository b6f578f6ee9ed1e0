package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"rungroj/internal/domain"
	"rungroj/internal/location"
	"rungroj/internal/models"
)

func (s *HTTPServer) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	vehicles, err := s.deps.Store.ListAvailableVehicles(r.Context(), category)
	if err != nil {
		s.logger.Error().Err(err).Str("category", category).Msg("List vehicles failed")
		writeError(w, http.StatusBadGateway, "unable to load vehicles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vehicles": vehicles})
}

func (s *HTTPServer) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	vehicle, err := s.deps.Store.GetVehicle(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "vehicle not found")
			return
		}
		s.logger.Error().Err(err).Msg("Get vehicle failed")
		writeError(w, http.StatusBadGateway, "unable to load vehicle")
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

// handleAdminUpdateVehicle edits the daily price or photo of one vehicle.
func (s *HTTPServer) handleAdminUpdateVehicle(w http.ResponseWriter, r *http.Request) {
	var patch models.VehiclePatch
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := patch.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	vehicle, err := s.deps.Store.UpdateVehicle(r.Context(), id, patch)
	switch {
	case err == nil:
		s.logger.Info().Str("vehicle_id", id).Int64("price_per_day", vehicle.PricePerDay).Msg("Vehicle updated")
		writeJSON(w, http.StatusOK, vehicle)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "vehicle not found")
	default:
		s.logger.Error().Err(err).Str("vehicle_id", id).Msg("Update vehicle failed")
		writeError(w, http.StatusBadGateway, "unable to update vehicle")
	}
}

func (s *HTTPServer) handleBranches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"branches": s.deps.Branches.Branches()})
}

func (s *HTTPServer) handleLocationSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusOK, map[string]any{"places": []models.Place{}})
		return
	}
	if s.deps.Geocoder == nil {
		writeError(w, http.StatusServiceUnavailable, "place search is not configured")
		return
	}

	places, err := s.deps.Geocoder.Search(r.Context(), query)
	if err != nil {
		s.logger.Warn().Err(err).Str("query", query).Msg("Place search failed")
		writeError(w, http.StatusBadGateway, "place search failed")
		return
	}
	if places == nil {
		places = []models.Place{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"places": places})
}

// handleLocationReverse describes a map point. A geocoder failure still
// answers 200 with the coordinate text.
func (s *HTTPServer) handleLocationReverse(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		writeError(w, http.StatusBadRequest, "lat and lng must be valid coordinates")
		return
	}

	var addr *models.Address
	if s.deps.Geocoder != nil {
		var err error
		addr, err = s.deps.Geocoder.Reverse(r.Context(), lat, lng)
		if err != nil {
			s.logger.Warn().Err(err).Float64("lat", lat).Float64("lng", lng).Msg("Reverse geocode failed")
			addr = nil
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"text":    location.DescribePoint(addr, lat, lng),
		"address": addr,
		"marker":  models.Coordinates{Lat: lat, Lng: lng},
	})
}
