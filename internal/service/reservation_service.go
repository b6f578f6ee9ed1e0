package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rungroj/internal/domain"
	"rungroj/internal/models"
	"rungroj/internal/worker"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("reservation belongs to another user")
)

// DefaultNotifyTimeout bounds one admin notification fan-out.
const DefaultNotifyTimeout = 10 * time.Second

// Admins may return a car straight from confirmed and may reopen a
// confirmed or cancelled booking back to pending.
var transitions = map[models.ReservationStatus][]models.ReservationStatus{
	models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed: {models.StatusActive, models.StatusCompleted, models.StatusCancelled, models.StatusPending},
	models.StatusActive:    {models.StatusCompleted},
	models.StatusCancelled: {models.StatusPending},
}

// CanTransition reports whether an admin may move a reservation from one
// status to another.
func CanTransition(from, to models.ReservationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from s.
func NextStatuses(s models.ReservationStatus) []models.ReservationStatus {
	return append([]models.ReservationStatus(nil), transitions[s]...)
}

// ReservationService backs the profile and admin pages. Side channels
// (events, Telegram, Sheets) never change the result of an operation.
type ReservationService struct {
	store    domain.ReservationStore
	events   domain.EventPublisher
	notifier domain.Notifier
	sync     domain.SyncWorker
	logger   *zerolog.Logger

	notifyTimeout time.Duration
	notifying     sync.WaitGroup
}

func NewReservationService(
	store domain.ReservationStore,
	events domain.EventPublisher,
	notifier domain.Notifier,
	sync domain.SyncWorker,
	logger *zerolog.Logger,
) *ReservationService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "reservation_service").Logger()
	return &ReservationService{
		store:    store,
		events:   events,
		notifier: notifier,
		sync:     sync,
		logger:   &l,

		notifyTimeout: DefaultNotifyTimeout,
	}
}

// ListMine returns the user's reservations, newest first.
func (s *ReservationService) ListMine(ctx context.Context, userID string) ([]models.ReservationRecord, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	return s.store.ListReservationsByUser(ctx, userID)
}

func (s *ReservationService) ListAll(ctx context.Context) ([]models.ReservationRecord, error) {
	return s.store.ListReservations(ctx)
}

// Get returns a reservation owned by userID. An empty userID skips the
// ownership check.
func (s *ReservationService) Get(ctx context.Context, id, userID string) (*models.ReservationRecord, error) {
	rec, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != "" && rec.UserID != userID {
		return nil, ErrForbidden
	}
	return rec, nil
}

// UpdateStatus applies an admin status change after checking the
// transition table.
func (s *ReservationService) UpdateStatus(ctx context.Context, id string, status models.ReservationStatus) (*models.ReservationRecord, error) {
	if _, err := models.ParseReservationStatus(string(status)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}

	current, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	updated, err := s.store.UpdateReservationStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	merged := current.Merge(*updated)

	s.logger.Info().
		Str("reservation_id", id).
		Str("from", string(current.Status)).
		Str("to", string(status)).
		Msg("Reservation status changed")

	s.propagate(ctx, models.ReservationChange{Type: models.ChangeUpdate, New: merged}, worker.TaskUpdateStatus)
	return &merged, nil
}

// RecordCreated fans a freshly created reservation out to the side channels.
func (s *ReservationService) RecordCreated(ctx context.Context, rec *models.ReservationRecord) {
	if rec == nil {
		return
	}
	s.propagate(ctx, models.ReservationChange{Type: models.ChangeInsert, New: *rec}, worker.TaskAppend)
}

func (s *ReservationService) propagate(ctx context.Context, change models.ReservationChange, taskType string) {
	if s.events != nil {
		s.events.Publish(change)
	}

	if s.notifier != nil {
		s.notifying.Add(1)
		go s.notify(context.WithoutCancel(ctx), change)
	}

	if s.sync != nil {
		rec := change.New
		if err := s.sync.EnqueueReservation(ctx, taskType, &rec); err != nil {
			s.logger.Error().Err(err).Str("reservation_id", rec.ID).Str("task", taskType).Msg("sheets enqueue error")
		}
	}
}

// notify runs off the request path so a slow Telegram API never delays
// the caller.
func (s *ReservationService) notify(ctx context.Context, change models.ReservationChange) {
	defer s.notifying.Done()

	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	if err := s.notifier.NotifyReservation(ctx, change); err != nil {
		s.logger.Error().Err(err).Str("reservation_id", change.New.ID).Msg("notify error")
	}
}

// SetNotifyTimeout overrides DefaultNotifyTimeout. Non-positive values are
// ignored.
func (s *ReservationService) SetNotifyTimeout(d time.Duration) {
	if d > 0 {
		s.notifyTimeout = d
	}
}

// Drain blocks until every pending notification has finished or timed out.
func (s *ReservationService) Drain() {
	s.notifying.Wait()
}
