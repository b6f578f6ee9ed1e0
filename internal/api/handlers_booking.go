package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"rungroj/internal/auth"
	"rungroj/internal/booking"
	"rungroj/internal/dates"
	"rungroj/internal/domain"
	"rungroj/internal/location"
	"rungroj/internal/models"
	"rungroj/internal/payment"
)

// bookingRequest is the booking form as the page sends it. Dates use the
// MM/DD/YYYY display format; malformed values count as absent.
type bookingRequest struct {
	PickupDate  string              `json:"pickup_date"`
	DropoffDate string              `json:"dropoff_date"`
	BranchID    string              `json:"branch_id"`
	Location    string              `json:"location"`
	Marker      *models.Coordinates `json:"marker,omitempty"`
	ServiceType models.ServiceType  `json:"service_type"`
	Notes       string              `json:"notes"`
}

type bookingResponse struct {
	Booking  booking.Snapshot      `json:"booking"`
	Vehicle  *models.Vehicle       `json:"vehicle,omitempty"`
	Payment  *payment.Handoff      `json:"payment,omitempty"`
	Redirect *booking.AuthRedirect `json:"redirect,omitempty"`
	Error    string                `json:"error,omitempty"`
	Field    string                `json:"field,omitempty"`
}

var errBadForm = errors.New("invalid booking form")

func (s *HTTPServer) newWorkflow(vehicle models.Vehicle) (*booking.Workflow, error) {
	return booking.New(vehicle, booking.Deps{
		Store:     s.deps.Store,
		Sessions:  auth.ContextSessions{},
		Drafts:    s.deps.Drafts,
		Events:    s.deps.Events,
		Geocoder:  s.deps.Geocoder,
		Branches:  s.deps.Branches,
		LoginPath: s.deps.LoginPath,
		Logger:    s.deps.Logger,
	})
}

// loadVehicle writes the error response itself and returns false on failure.
func (s *HTTPServer) loadVehicle(w http.ResponseWriter, r *http.Request, id string) (*models.Vehicle, bool) {
	vehicle, err := s.deps.Store.GetVehicle(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "vehicle not found")
			return nil, false
		}
		s.logger.Error().Err(err).Str("vehicle_id", id).Msg("Load vehicle failed")
		writeError(w, http.StatusBadGateway, "unable to load vehicle")
		return nil, false
	}
	return vehicle, true
}

func decodeBookingRequest(r *http.Request) (bookingRequest, error) {
	var req bookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return req, fmt.Errorf("%w: %v", errBadForm, err)
	}
	return req, nil
}

// applyForm replays the submitted form onto a fresh workflow.
func (s *HTTPServer) applyForm(ctx context.Context, wf *booking.Workflow, req bookingRequest) error {
	pickup, _ := dates.ParseDisplayFormatIn(req.PickupDate, s.deps.Location)
	dropoff, _ := dates.ParseDisplayFormatIn(req.DropoffDate, s.deps.Location)
	if err := wf.SetDates(pickup, dropoff); err != nil {
		return err
	}

	if req.BranchID != "" {
		branch, ok := s.deps.Branches.Get(req.BranchID)
		if !ok {
			return fmt.Errorf("%w: %w: %s", errBadForm, location.ErrUnknownBranch, req.BranchID)
		}
		if branch.IsCustom() && req.Location == "" && req.Marker != nil {
			if err := wf.SelectBranch(branch.ID); err != nil {
				return err
			}
			if _, err := wf.PlaceMarker(ctx, req.Marker.Lat, req.Marker.Lng); err != nil {
				return err
			}
		} else if err := wf.SetLocation(branch.ID, req.Location, req.Marker); err != nil {
			return err
		}
	}

	if err := wf.SetServiceType(req.ServiceType); err != nil {
		return fmt.Errorf("%w: %v", errBadForm, err)
	}
	return wf.SetNotes(req.Notes)
}

func (s *HTTPServer) handleValidateBooking(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := s.loadVehicle(w, r, r.PathValue("vehicleId"))
	if !ok {
		return
	}
	req, err := decodeBookingRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	wf, err := s.newWorkflow(*vehicle)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer wf.Close()

	if err := s.applyForm(r.Context(), wf, req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse{Booking: wf.Snapshot()})
}

func (s *HTTPServer) handleSubmitBooking(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := s.loadVehicle(w, r, r.PathValue("vehicleId"))
	if !ok {
		return
	}
	req, err := decodeBookingRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := submissionKey(r, vehicle.ID)
	if _, busy := s.inflight.LoadOrStore(key, struct{}{}); busy {
		writeError(w, http.StatusTooManyRequests, booking.ErrSubmitting.Error())
		return
	}
	defer s.inflight.Delete(key)

	wf, err := s.newWorkflow(*vehicle)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer wf.Close()

	if err := s.applyForm(r.Context(), wf, req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := wf.Submit(r.Context())
	status, resp := s.submitResponse(snap, err)
	if err == nil && snap.Reservation != nil {
		s.deps.Reservations.RecordCreated(context.WithoutCancel(r.Context()), snap.Reservation)
		handoff := payment.NewHandoff(s.deps.Payment, *snap.Reservation, vehicle, snap.Total)
		resp.Payment = &handoff
	}
	writeJSON(w, status, resp)
}

// submitResponse maps the workflow outcome onto an HTTP status.
func (s *HTTPServer) submitResponse(snap booking.Snapshot, err error) (int, bookingResponse) {
	resp := bookingResponse{Booking: snap}
	if err == nil {
		return http.StatusCreated, resp
	}
	resp.Error = err.Error()

	var (
		validationErr *booking.ValidationError
		conflictErr   *booking.DateConflictError
	)
	switch {
	case errors.As(err, &validationErr):
		resp.Field = validationErr.Field
		if snap.DateError != "" {
			resp.Error = snap.DateError
		} else if snap.Notice != "" {
			resp.Error = snap.Notice
		}
		return http.StatusUnprocessableEntity, resp
	case errors.Is(err, booking.ErrAuthRequired):
		resp.Redirect = snap.Redirect
		return http.StatusUnauthorized, resp
	case errors.As(err, &conflictErr):
		resp.Error = conflictErr.Message
		return http.StatusConflict, resp
	case errors.Is(err, booking.ErrSubmitting):
		return http.StatusTooManyRequests, resp
	default:
		if snap.Notice != "" {
			resp.Error = snap.Notice
		}
		return http.StatusBadGateway, resp
	}
}

func submissionKey(r *http.Request, vehicleID string) string {
	if session := auth.FromContext(r.Context()); session != nil {
		return "user:" + session.UserID + ":" + vehicleID
	}
	return "client:" + clientKey(r) + ":" + vehicleID
}

func (s *HTTPServer) handleRestoreDraft(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if s.deps.Drafts == nil {
		writeError(w, http.StatusNotFound, booking.ErrDraftNotFound.Error())
		return
	}

	draft, err := s.deps.Drafts.GetDraft(r.Context(), token)
	if err != nil {
		s.logger.Error().Err(err).Msg("Load draft failed")
		writeError(w, http.StatusBadGateway, "unable to load draft")
		return
	}
	if draft == nil {
		writeError(w, http.StatusNotFound, booking.ErrDraftNotFound.Error())
		return
	}

	vehicle, ok := s.loadVehicle(w, r, draft.VehicleID)
	if !ok {
		return
	}
	wf, err := s.newWorkflow(*vehicle)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer wf.Close()

	snap, err := wf.Restore(r.Context(), token)
	if err != nil {
		if errors.Is(err, booking.ErrDraftNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse{Booking: snap, Vehicle: vehicle})
}
