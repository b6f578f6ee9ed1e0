package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"rungroj/internal/domain"
	"rungroj/internal/models"
	"rungroj/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateReservation(ctx context.Context, req models.ReservationRequest) (*models.ReservationRecord, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReservationRecord), args.Error(1)
}
func (m *mockStore) GetReservation(ctx context.Context, id string) (*models.ReservationRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReservationRecord), args.Error(1)
}
func (m *mockStore) ListReservationsByUser(ctx context.Context, userID string) ([]models.ReservationRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ReservationRecord), args.Error(1)
}
func (m *mockStore) ListReservations(ctx context.Context) ([]models.ReservationRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ReservationRecord), args.Error(1)
}
func (m *mockStore) UpdateReservationStatus(ctx context.Context, id string, status models.ReservationStatus) (*models.ReservationRecord, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReservationRecord), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(change models.ReservationChange) {
	m.Called(change)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyReservation(ctx context.Context, change models.ReservationChange) error {
	return m.Called(ctx, change).Error(0)
}

type mockSync struct {
	mock.Mock
}

func (m *mockSync) EnqueueReservation(ctx context.Context, taskType string, rec *models.ReservationRecord) error {
	return m.Called(ctx, taskType, rec).Error(0)
}

func reservation(status models.ReservationStatus) *models.ReservationRecord {
	total := int64(1798)
	return &models.ReservationRecord{
		ID:          "r-1",
		UserID:      "u-1",
		VehicleID:   "fb-1",
		PickupDate:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		DropoffDate: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		Status:      status,
		TotalPrice:  &total,
		CreatedAt:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Vehicle:     &models.Vehicle{ID: "fb-1", Name: "Toyota Yaris"},
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]models.ReservationStatus{
		{models.StatusPending, models.StatusConfirmed},
		{models.StatusPending, models.StatusCancelled},
		{models.StatusConfirmed, models.StatusActive},
		{models.StatusConfirmed, models.StatusCompleted},
		{models.StatusConfirmed, models.StatusCancelled},
		{models.StatusConfirmed, models.StatusPending},
		{models.StatusActive, models.StatusCompleted},
		{models.StatusCancelled, models.StatusPending},
	}
	for _, pair := range allowed {
		assert.True(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	denied := [][2]models.ReservationStatus{
		{models.StatusPending, models.StatusActive},
		{models.StatusPending, models.StatusCompleted},
		{models.StatusActive, models.StatusCancelled},
		{models.StatusActive, models.StatusPending},
		{models.StatusCompleted, models.StatusPending},
		{models.StatusCompleted, models.StatusActive},
		{models.StatusCancelled, models.StatusConfirmed},
		{models.StatusCancelled, models.StatusCompleted},
		{models.StatusConfirmed, models.StatusConfirmed},
	}
	for _, pair := range denied {
		assert.False(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	assert.Empty(t, NextStatuses(models.StatusCompleted))
	assert.Equal(t, []models.ReservationStatus{models.StatusCompleted}, NextStatuses(models.StatusActive))
	assert.Equal(t, []models.ReservationStatus{models.StatusPending}, NextStatuses(models.StatusCancelled))
}

func TestReservationService_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		store := new(mockStore)
		pub := new(mockPublisher)
		notifier := new(mockNotifier)
		sync := new(mockSync)
		svc := NewReservationService(store, pub, notifier, sync, nil)

		updated := reservation(models.StatusConfirmed)
		updated.Vehicle = nil
		store.On("GetReservation", ctx, "r-1").Return(reservation(models.StatusPending), nil)
		store.On("UpdateReservationStatus", ctx, "r-1", models.StatusConfirmed).Return(updated, nil)

		isUpdate := mock.MatchedBy(func(c models.ReservationChange) bool {
			return c.Type == models.ChangeUpdate && c.New.Status == models.StatusConfirmed && c.New.Vehicle != nil
		})
		pub.On("Publish", isUpdate).Return()
		notifier.On("NotifyReservation", mock.Anything, isUpdate).Return(nil)
		sync.On("EnqueueReservation", ctx, worker.TaskUpdateStatus, mock.AnythingOfType("*models.ReservationRecord")).Return(nil)

		rec, err := svc.UpdateStatus(ctx, "r-1", models.StatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, rec.Status)
		require.NotNil(t, rec.Vehicle)
		assert.Equal(t, "Toyota Yaris", rec.Vehicle.Name)

		svc.Drain()
		store.AssertExpectations(t)
		pub.AssertExpectations(t)
		notifier.AssertExpectations(t)
		sync.AssertExpectations(t)
	})

	t.Run("ReturnFromConfirmed", func(t *testing.T) {
		store := new(mockStore)
		svc := NewReservationService(store, nil, nil, nil, nil)
		store.On("GetReservation", ctx, "r-1").Return(reservation(models.StatusConfirmed), nil)
		store.On("UpdateReservationStatus", ctx, "r-1", models.StatusCompleted).Return(reservation(models.StatusCompleted), nil)

		rec, err := svc.UpdateStatus(ctx, "r-1", models.StatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, rec.Status)
	})

	t.Run("ReopenCancelled", func(t *testing.T) {
		store := new(mockStore)
		svc := NewReservationService(store, nil, nil, nil, nil)
		store.On("GetReservation", ctx, "r-1").Return(reservation(models.StatusCancelled), nil)
		store.On("UpdateReservationStatus", ctx, "r-1", models.StatusPending).Return(reservation(models.StatusPending), nil)

		rec, err := svc.UpdateStatus(ctx, "r-1", models.StatusPending)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, rec.Status)
	})

	t.Run("InvalidTransition", func(t *testing.T) {
		store := new(mockStore)
		svc := NewReservationService(store, nil, nil, nil, nil)
		store.On("GetReservation", ctx, "r-1").Return(reservation(models.StatusCompleted), nil)

		_, err := svc.UpdateStatus(ctx, "r-1", models.StatusActive)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		store.AssertNotCalled(t, "UpdateReservationStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		store := new(mockStore)
		svc := NewReservationService(store, nil, nil, nil, nil)

		_, err := svc.UpdateStatus(ctx, "r-1", models.ReservationStatus("lost"))
		assert.ErrorIs(t, err, ErrInvalidTransition)
		store.AssertNotCalled(t, "GetReservation", mock.Anything, mock.Anything)
	})

	t.Run("NotFound", func(t *testing.T) {
		store := new(mockStore)
		svc := NewReservationService(store, nil, nil, nil, nil)
		store.On("GetReservation", ctx, "r-9").Return(nil, domain.ErrNotFound)

		_, err := svc.UpdateStatus(ctx, "r-9", models.StatusConfirmed)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("SideChannelFailuresAreIgnored", func(t *testing.T) {
		store := new(mockStore)
		notifier := new(mockNotifier)
		sync := new(mockSync)
		svc := NewReservationService(store, nil, notifier, sync, nil)

		store.On("GetReservation", ctx, "r-1").Return(reservation(models.StatusConfirmed), nil)
		store.On("UpdateReservationStatus", ctx, "r-1", models.StatusCancelled).Return(reservation(models.StatusCancelled), nil)
		notifier.On("NotifyReservation", mock.Anything, mock.Anything).Return(errors.New("telegram down"))
		sync.On("EnqueueReservation", ctx, worker.TaskUpdateStatus, mock.Anything).Return(errors.New("queue full"))

		rec, err := svc.UpdateStatus(ctx, "r-1", models.StatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, rec.Status)

		svc.Drain()
		notifier.AssertExpectations(t)
	})
}

func TestReservationService_RecordCreated(t *testing.T) {
	ctx := context.Background()
	pub := new(mockPublisher)
	sync := new(mockSync)
	svc := NewReservationService(new(mockStore), pub, nil, sync, nil)

	rec := reservation(models.StatusPending)
	pub.On("Publish", models.ReservationChange{Type: models.ChangeInsert, New: *rec}).Return()
	sync.On("EnqueueReservation", ctx, worker.TaskAppend, mock.MatchedBy(func(r *models.ReservationRecord) bool {
		return r.ID == "r-1"
	})).Return(nil)

	svc.RecordCreated(ctx, rec)
	svc.RecordCreated(ctx, nil)

	pub.AssertNumberOfCalls(t, "Publish", 1)
	sync.AssertExpectations(t)
}

type blockingNotifier struct {
	release chan struct{}
	done    chan error
}

func (n *blockingNotifier) NotifyReservation(ctx context.Context, _ models.ReservationChange) error {
	select {
	case <-n.release:
		n.done <- nil
		return nil
	case <-ctx.Done():
		n.done <- ctx.Err()
		return ctx.Err()
	}
}

func TestReservationService_RecordCreatedDoesNotWaitForNotifier(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	notifier := &blockingNotifier{release: make(chan struct{}), done: make(chan error, 1)}
	pub := new(mockPublisher)
	sync := new(mockSync)
	svc := NewReservationService(new(mockStore), pub, notifier, sync, nil)

	pub.On("Publish", mock.Anything).Return()
	sync.On("EnqueueReservation", ctx, worker.TaskAppend, mock.Anything).Return(nil)

	returned := make(chan struct{})
	go func() {
		svc.RecordCreated(ctx, reservation(models.StatusPending))
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("RecordCreated blocked on the notifier")
	}
	sync.AssertExpectations(t)

	// A finished request must not cancel the notification.
	cancel()
	close(notifier.release)
	svc.Drain()
	assert.NoError(t, <-notifier.done)
}

func TestReservationService_NotifyTimeout(t *testing.T) {
	notifier := &blockingNotifier{release: make(chan struct{}), done: make(chan error, 1)}
	svc := NewReservationService(new(mockStore), nil, notifier, nil, nil)
	svc.SetNotifyTimeout(20 * time.Millisecond)
	svc.SetNotifyTimeout(0)

	svc.RecordCreated(context.Background(), reservation(models.StatusPending))
	svc.Drain()
	assert.ErrorIs(t, <-notifier.done, context.DeadlineExceeded)
}

func TestReservationService_Lists(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	svc := NewReservationService(store, nil, nil, nil, nil)

	mine := []models.ReservationRecord{*reservation(models.StatusPending)}
	store.On("ListReservationsByUser", ctx, "u-1").Return(mine, nil)
	store.On("ListReservations", ctx).Return([]models.ReservationRecord{}, nil)

	got, err := svc.ListMine(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = svc.ListMine(ctx, "")
	assert.Error(t, err)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReservationService_Get(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	svc := NewReservationService(store, nil, nil, nil, nil)
	store.On("GetReservation", ctx, "r-1").Return(reservation(models.StatusPending), nil)

	rec, err := svc.Get(ctx, "r-1", "u-1")
	require.NoError(t, err)
	assert.Equal(t, "r-1", rec.ID)

	_, err = svc.Get(ctx, "r-1", "u-2")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(ctx, "r-1", "")
	assert.NoError(t, err)
}
