// Package booking drives a single reservation form from editing through
// submission. The store is the only authority on overlap; the workflow
// holds no lock on inventory and never retries a create call.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rungroj/internal/domain"
	"rungroj/internal/events"
	"rungroj/internal/location"
	"rungroj/internal/metrics"
	"rungroj/internal/models"
	"rungroj/internal/pricing"
	"rungroj/internal/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	msgLocationRequired = "⚠️ กรุณาเลือกสถานที่บนแผนที่!"
	msgConflictDefault  = "รถคันนี้ถูกจองในช่วงเวลาดังกล่าวแล้ว"
	msgGenericPrefix    = "❌ เกิดข้อผิดพลาด: "
	msgGenericDefault   = "ไม่สามารถจองได้"
)

// Deps is the explicit context a workflow runs against.
type Deps struct {
	Store    domain.ReservationStore
	Sessions domain.SessionProvider
	Drafts   domain.DraftRepository
	Events   domain.EventSource
	Geocoder domain.Geocoder
	Branches *location.BranchTable

	LoginPath string
	Clock     func() time.Time
	NewToken  func() string
	Logger    *zerolog.Logger
}

// Form is the editable part of the booking page.
type Form struct {
	PickupDate  time.Time           `json:"pickup_date"`
	DropoffDate time.Time           `json:"dropoff_date"`
	BranchID    string              `json:"branch_id"`
	Location    string              `json:"location"`
	Marker      *models.Coordinates `json:"marker,omitempty"`
	ServiceType models.ServiceType  `json:"service_type"`
	Notes       string              `json:"notes"`
}

// AuthRedirect tells the caller where to send an anonymous user and how to
// come back.
type AuthRedirect struct {
	LoginPath  string `json:"login_path"`
	RedirectTo string `json:"redirect_to"`
	DraftToken string `json:"draft_token"`
}

// Snapshot is a consistent read of the workflow.
type Snapshot struct {
	State        State                     `json:"state"`
	Form         Form                      `json:"form"`
	Validation   validation.Result         `json:"validation"`
	DateError    string                    `json:"date_error,omitempty"`
	Notice       string                    `json:"notice,omitempty"`
	CanSubmit    bool                      `json:"can_submit"`
	MinDropoff   time.Time                 `json:"min_dropoff,omitempty"`
	PreviewPrice int64                     `json:"preview_price"`
	Reservation  *models.ReservationRecord `json:"reservation,omitempty"`
	Total        int64                     `json:"total,omitempty"`
	Redirect     *AuthRedirect             `json:"redirect,omitempty"`
}

// Workflow is one booking form for one vehicle. Methods are safe to call
// from multiple goroutines; Submit runs the create call without holding the
// lock so Snapshot stays readable while Submitting.
type Workflow struct {
	deps     Deps
	vehicle  models.Vehicle
	logger   zerolog.Logger
	lifetime context.Context
	cancel   context.CancelFunc

	mu          sync.Mutex
	selector    *location.Selector
	pickup      time.Time
	dropoff     time.Time
	serviceType models.ServiceType
	notes       string
	state       State
	dateError   string
	notice      string
	preview     int64
	reservation *models.ReservationRecord
	total       int64
	redirect    *AuthRedirect
	unsubscribe func()
	closed      bool
}

// New starts a workflow whose lifetime ends with Close.
func New(vehicle models.Vehicle, deps Deps) (*Workflow, error) {
	if deps.Store == nil || deps.Sessions == nil || deps.Branches == nil {
		return nil, errors.New("booking: store, sessions and branches are required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewToken == nil {
		deps.NewToken = uuid.NewString
	}
	if deps.LoginPath == "" {
		deps.LoginPath = "/login"
	}
	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = deps.Logger.With().Str("component", "booking").Str("vehicle_id", vehicle.ID).Logger()
	}

	lifetime, cancel := context.WithCancel(context.Background())
	return &Workflow{
		deps:        deps,
		vehicle:     vehicle,
		logger:      logger,
		lifetime:    lifetime,
		cancel:      cancel,
		selector:    location.NewSelector(deps.Branches, deps.Geocoder, &logger),
		serviceType: models.ServiceSelfDrive,
		state:       Idle,
	}, nil
}

func (w *Workflow) Vehicle() models.Vehicle { return w.vehicle }

// SetPickup changes the pickup date; a zero time clears it.
func (w *Workflow) SetPickup(t time.Time) error {
	return w.edit(func() error {
		w.pickup = t
		w.revalidate()
		return nil
	})
}

// SetDropoff changes the drop-off date; a zero time clears it.
func (w *Workflow) SetDropoff(t time.Time) error {
	return w.edit(func() error {
		w.dropoff = t
		w.revalidate()
		return nil
	})
}

// SetDates changes both dates with a single validation pass.
func (w *Workflow) SetDates(pickup, dropoff time.Time) error {
	return w.edit(func() error {
		w.pickup, w.dropoff = pickup, dropoff
		w.revalidate()
		return nil
	})
}

func (w *Workflow) SelectBranch(id string) error {
	return w.edit(func() error { return w.selector.SelectBranch(id) })
}

// PlaceMarker sets the custom pickup point and returns its description.
func (w *Workflow) PlaceMarker(ctx context.Context, lat, lng float64) (string, error) {
	callCtx, stop := w.callContext(ctx)
	defer stop()

	var text string
	err := w.edit(func() error {
		var err error
		text, err = w.selector.PlaceMarker(callCtx, lat, lng)
		return err
	})
	return text, err
}

// SearchPlaces runs one place search for the custom map.
func (w *Workflow) SearchPlaces(ctx context.Context, query string) ([]models.Place, error) {
	callCtx, stop := w.callContext(ctx)
	defer stop()

	var places []models.Place
	err := w.edit(func() error {
		var err error
		places, err = w.selector.Search(callCtx, query)
		return err
	})
	return places, err
}

// SetLocation applies a location chosen elsewhere. Presets take their text
// from the branch table; custom accepts the caller's text and marker.
func (w *Workflow) SetLocation(branchID, text string, marker *models.Coordinates) error {
	return w.edit(func() error {
		b, ok := w.deps.Branches.Get(branchID)
		if !ok {
			return fmt.Errorf("%w: %s", location.ErrUnknownBranch, branchID)
		}
		if !b.IsCustom() {
			return w.selector.SelectBranch(branchID)
		}
		return w.selector.Restore(branchID, text, marker)
	})
}

func (w *Workflow) SetServiceType(st models.ServiceType) error {
	return w.edit(func() error {
		parsed, err := models.ParseServiceType(string(st))
		if err != nil {
			return err
		}
		w.serviceType = parsed
		return nil
	})
}

func (w *Workflow) SetNotes(notes string) error {
	return w.edit(func() error {
		w.notes = notes
		return nil
	})
}

func (w *Workflow) edit(apply func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if !w.state.editable() {
		return ErrNotEditable
	}
	if err := apply(); err != nil {
		return err
	}
	switch w.state {
	case Blocked, ConflictError, GenericError, AuthRequired:
		w.state = Idle
		w.notice = ""
		w.redirect = nil
	}
	return nil
}

// revalidate runs on every date change. A server conflict message is
// replaced by the local result.
func (w *Workflow) revalidate() {
	w.dateError = validation.Validate(w.pickup, w.dropoff).Message()
}

// Validation returns the current date-pair result.
func (w *Workflow) Validation() validation.Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return validation.Validate(w.pickup, w.dropoff)
}

// CanSubmit reports whether the submit control is enabled.
func (w *Workflow) CanSubmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canSubmitLocked()
}

func (w *Workflow) canSubmitLocked() bool {
	if w.closed || !w.state.editable() {
		return false
	}
	return validation.CanSubmit(w.pickup, w.dropoff, w.selector.Text())
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := Snapshot{
		State:        w.state,
		Form:         w.formLocked(),
		Validation:   validation.Validate(w.pickup, w.dropoff),
		DateError:    w.dateError,
		Notice:       w.notice,
		CanSubmit:    w.canSubmitLocked(),
		MinDropoff:   validation.MinDropoff(w.pickup),
		PreviewPrice: pricing.PreviewPrice(w.vehicle.PricePerDay, w.pickup, w.dropoff),
		Total:        w.total,
	}
	if w.state == Submitting || w.state == Success {
		snap.PreviewPrice = w.preview
	}
	if w.reservation != nil {
		rec := *w.reservation
		snap.Reservation = &rec
	}
	if w.redirect != nil {
		r := *w.redirect
		snap.Redirect = &r
	}
	return snap
}

func (w *Workflow) formLocked() Form {
	return Form{
		PickupDate:  w.pickup,
		DropoffDate: w.dropoff,
		BranchID:    w.selector.BranchID(),
		Location:    w.selector.Text(),
		Marker:      w.selector.Marker(),
		ServiceType: w.serviceType,
		Notes:       w.notes,
	}
}

// Submit validates the form, gates on the session and issues exactly one
// create call. The returned error is nil only on Success.
func (w *Workflow) Submit(ctx context.Context) (Snapshot, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if w.state.inFlight() {
		w.mu.Unlock()
		return w.Snapshot(), ErrSubmitting
	}
	if w.state == Success {
		w.mu.Unlock()
		return w.Snapshot(), ErrNotEditable
	}

	w.state = Validating
	w.notice = ""
	w.redirect = nil
	if err := w.checkLocked(); err != nil {
		w.state = Blocked
		w.mu.Unlock()
		metrics.IncSubmission(Blocked.String())
		return w.Snapshot(), err
	}
	form := w.formLocked()
	w.mu.Unlock()

	callCtx, stop := w.callContext(ctx)
	defer stop()

	session, err := w.deps.Sessions.CurrentSession(callCtx)
	if err != nil {
		return w.fail(fmt.Errorf("session lookup: %w", err))
	}
	if session == nil {
		return w.requireAuth(callCtx, form)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	// Only the call that moved the state to Validating may proceed.
	if w.state != Validating {
		w.mu.Unlock()
		return w.Snapshot(), ErrSubmitting
	}
	w.state = Submitting
	w.preview = pricing.PreviewPrice(w.vehicle.PricePerDay, form.PickupDate, form.DropoffDate)
	preview := w.preview
	w.mu.Unlock()

	req := models.ReservationRequest{
		UserID:         session.UserID,
		VehicleID:      w.vehicle.ID,
		PickupDate:     form.PickupDate,
		DropoffDate:    form.DropoffDate,
		PickupLocation: form.Location,
		ServiceType:    form.ServiceType,
		Notes:          form.Notes,
	}

	w.logger.Debug().Str("user_id", session.UserID).Int64("preview", preview).Msg("Submitting reservation")
	rec, err := w.deps.Store.CreateReservation(callCtx, req)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Debug().Msg("Discarding reservation response after close")
		return Snapshot{}, ErrClosed
	}
	w.mu.Unlock()

	if err != nil {
		if errors.Is(err, domain.ErrOverlap) {
			return w.conflict(err)
		}
		return w.fail(err)
	}
	return w.succeed(rec, preview)
}

// checkLocked applies the submit gate and records inline errors.
func (w *Workflow) checkLocked() error {
	if w.pickup.IsZero() || w.dropoff.IsZero() {
		return &ValidationError{Field: FieldDates, Result: validation.Valid, Reason: "pickup and drop-off dates are required"}
	}
	if res := validation.Validate(w.pickup, w.dropoff); res != validation.Valid {
		w.dateError = res.Message()
		return &ValidationError{Field: FieldDates, Result: res, Reason: res.String()}
	}
	if !w.selector.Valid() {
		w.notice = msgLocationRequired
		return &ValidationError{Field: FieldLocation, Result: validation.Valid, Reason: "pickup location is required"}
	}
	return nil
}

func (w *Workflow) requireAuth(ctx context.Context, form Form) (Snapshot, error) {
	redirectTo := "/booking/" + w.vehicle.ID
	redirect := &AuthRedirect{LoginPath: w.deps.LoginPath, RedirectTo: redirectTo}

	if w.deps.Drafts != nil {
		draft := &models.BookingDraft{
			Token:        w.deps.NewToken(),
			VehicleID:    w.vehicle.ID,
			PickupDate:   form.PickupDate,
			DropoffDate:  form.DropoffDate,
			BranchID:     form.BranchID,
			LocationText: form.Location,
			Marker:       form.Marker,
			ServiceType:  form.ServiceType,
			Notes:        form.Notes,
			RedirectTo:   redirectTo,
			CreatedAt:    w.deps.Clock(),
		}
		if err := w.deps.Drafts.SaveDraft(ctx, draft); err != nil {
			w.logger.Error().Err(err).Msg("Failed to save booking draft")
		} else {
			redirect.DraftToken = draft.Token
		}
	}

	w.mu.Lock()
	w.state = AuthRequired
	w.redirect = redirect
	w.mu.Unlock()

	metrics.IncSubmission(AuthRequired.String())
	return w.Snapshot(), ErrAuthRequired
}

func (w *Workflow) conflict(err error) (Snapshot, error) {
	msg := msgConflictDefault
	var overlap *domain.OverlapError
	if errors.As(err, &overlap) && overlap.Message != "" {
		msg = overlap.Message
	}

	w.mu.Lock()
	w.state = ConflictError
	w.dateError = msg
	w.notice = msg
	w.mu.Unlock()

	w.logger.Info().Str("message", msg).Msg("Reservation conflicts with an existing booking")
	metrics.IncSubmission(ConflictError.String())
	return w.Snapshot(), &DateConflictError{Message: msg, Err: err}
}

func (w *Workflow) fail(err error) (Snapshot, error) {
	detail := err.Error()
	if detail == "" {
		detail = msgGenericDefault
	}

	w.mu.Lock()
	w.state = GenericError
	w.notice = msgGenericPrefix + detail
	w.mu.Unlock()

	w.logger.Error().Err(err).Msg("Reservation submission failed")
	metrics.IncSubmission(GenericError.String())
	return w.Snapshot(), &SubmissionError{Err: err}
}

func (w *Workflow) succeed(rec *models.ReservationRecord, preview int64) (Snapshot, error) {
	if rec == nil {
		return w.fail(errors.New("store returned no reservation"))
	}
	record := *rec
	if record.Vehicle == nil {
		v := w.vehicle
		record.Vehicle = &v
	}

	total := pricing.ResolveTotal(record.TotalPrice, preview)

	w.mu.Lock()
	w.state = Success
	w.reservation = &record
	w.total = total
	w.dateError = ""
	w.dropSubscriptionLocked()
	if w.deps.Events != nil {
		w.unsubscribe = w.deps.Events.Subscribe(events.ForReservation(record.ID), w.applyChange)
	}
	w.mu.Unlock()

	w.logger.Info().Str("reservation_id", record.ID).Int64("total", total).Msg("Reservation created")
	metrics.IncSubmission(Success.String())
	return w.Snapshot(), nil
}

// applyChange merges a realtime update into the created reservation.
func (w *Workflow) applyChange(change models.ReservationChange) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.reservation == nil || w.reservation.ID != change.New.ID {
		return
	}
	merged := w.reservation.Merge(change.New)
	w.reservation = &merged
	if merged.TotalPrice != nil && *merged.TotalPrice > 0 {
		w.total = *merged.TotalPrice
	}
}

// Restore reloads a form saved before an auth redirect and returns to Idle.
func (w *Workflow) Restore(ctx context.Context, token string) (Snapshot, error) {
	if w.deps.Drafts == nil {
		return Snapshot{}, ErrDraftNotFound
	}

	callCtx, stop := w.callContext(ctx)
	defer stop()

	draft, err := w.deps.Drafts.GetDraft(callCtx, token)
	if err != nil {
		return Snapshot{}, fmt.Errorf("booking: load draft: %w", err)
	}
	if draft == nil {
		return Snapshot{}, ErrDraftNotFound
	}
	if draft.VehicleID != w.vehicle.ID {
		return Snapshot{}, ErrDraftMismatch
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if !w.state.editable() {
		w.mu.Unlock()
		return Snapshot{}, ErrNotEditable
	}
	if err := w.selector.Restore(draft.BranchID, draft.LocationText, draft.Marker); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}
	w.pickup = draft.PickupDate
	w.dropoff = draft.DropoffDate
	w.serviceType = draft.ServiceType
	if w.serviceType == "" {
		w.serviceType = models.ServiceSelfDrive
	}
	w.notes = draft.Notes
	w.state = Idle
	w.notice = ""
	w.redirect = nil
	w.revalidate()
	w.mu.Unlock()

	if err := w.deps.Drafts.DeleteDraft(callCtx, token); err != nil {
		w.logger.Warn().Err(err).Str("token", token).Msg("Failed to delete restored draft")
	}
	return w.Snapshot(), nil
}

// Dismiss closes the current notification. After Success it also clears
// the form for the next booking.
func (w *Workflow) Dismiss() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	switch w.state {
	case Success:
		w.dropSubscriptionLocked()
		w.pickup, w.dropoff = time.Time{}, time.Time{}
		w.selector.Reset()
		w.notes = ""
		w.serviceType = models.ServiceSelfDrive
		w.reservation = nil
		w.total = 0
		w.preview = 0
		w.dateError = ""
		w.state = Idle
	case Blocked, AuthRequired, ConflictError, GenericError:
		w.state = Idle
	}
	w.notice = ""
	w.redirect = nil
}

// Close ends the workflow lifetime: in-flight calls are cancelled, late
// responses are discarded and the realtime subscription is released.
func (w *Workflow) Close() {
	w.cancel()
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.dropSubscriptionLocked()
	w.mu.Unlock()
}

func (w *Workflow) dropSubscriptionLocked() {
	if w.unsubscribe != nil {
		w.unsubscribe()
		w.unsubscribe = nil
	}
}

// callContext derives a context cancelled by either ctx or Close.
func (w *Workflow) callContext(ctx context.Context) (context.Context, func()) {
	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(w.lifetime, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}
