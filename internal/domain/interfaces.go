package domain

import (
	"context"
	"errors"

	"rungroj/internal/models"
)

var (
	// ErrOverlap is returned by a ReservationStore when the requested range
	// collides with a reservation that still holds the vehicle.
	ErrOverlap = errors.New("reservation overlaps an existing booking")
	// ErrNotFound is returned when a vehicle or reservation does not exist.
	ErrNotFound = errors.New("not found")
)

// OverlapError carries the store's own conflict message and matches
// ErrOverlap under errors.Is.
type OverlapError struct {
	Code    string
	Message string
}

func (e *OverlapError) Error() string {
	if e.Message == "" {
		return ErrOverlap.Error()
	}
	return e.Message
}

func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlap
}

type Catalog interface {
	ListAvailableVehicles(ctx context.Context, category string) ([]models.Vehicle, error)
	GetVehicle(ctx context.Context, id string) (*models.Vehicle, error)
}

type ReservationStore interface {
	CreateReservation(ctx context.Context, req models.ReservationRequest) (*models.ReservationRecord, error)
	GetReservation(ctx context.Context, id string) (*models.ReservationRecord, error)
	ListReservationsByUser(ctx context.Context, userID string) ([]models.ReservationRecord, error)
	ListReservations(ctx context.Context) ([]models.ReservationRecord, error)
	UpdateReservationStatus(ctx context.Context, id string, status models.ReservationStatus) (*models.ReservationRecord, error)
}

// VehicleEditor applies admin edits to the catalog.
type VehicleEditor interface {
	UpdateVehicle(ctx context.Context, id string, patch models.VehiclePatch) (*models.Vehicle, error)
}

// ProfileStore keeps customer contact details. GetProfile returns
// ErrNotFound for a user who never saved a profile.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error)
}

type Store interface {
	Catalog
	VehicleEditor
	ReservationStore
	ProfileStore
	Ping(ctx context.Context) error
}

// SessionProvider returns the current session, or nil without error when
// the caller is anonymous.
type SessionProvider interface {
	CurrentSession(ctx context.Context) (*models.Session, error)
}

// DraftRepository preserves booking forms across a sign-in redirect.
// GetDraft returns nil without error for an unknown or expired token.
type DraftRepository interface {
	SaveDraft(ctx context.Context, draft *models.BookingDraft) error
	GetDraft(ctx context.Context, token string) (*models.BookingDraft, error)
	DeleteDraft(ctx context.Context, token string) error
}

type EventPublisher interface {
	Publish(change models.ReservationChange)
}

// EventSource delivers reservation changes matching filter to handler until
// the returned function is called.
type EventSource interface {
	Subscribe(filter func(models.ReservationChange) bool, handler func(models.ReservationChange)) (unsubscribe func())
}

type Geocoder interface {
	Search(ctx context.Context, query string) ([]models.Place, error)
	Reverse(ctx context.Context, lat, lng float64) (*models.Address, error)
}

type Notifier interface {
	NotifyReservation(ctx context.Context, change models.ReservationChange) error
}

type SheetsWriter interface {
	AppendReservation(ctx context.Context, rec *models.ReservationRecord) error
	UpdateReservationStatus(ctx context.Context, id string, status models.ReservationStatus) error
}

type SyncWorker interface {
	EnqueueReservation(ctx context.Context, taskType string, rec *models.ReservationRecord) error
}
