package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"rungroj/internal/database"
	"rungroj/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
)

func sampleReservation(id string) *models.ReservationRecord {
	total := int64(1798)
	return &models.ReservationRecord{
		ID:             id,
		UserID:         "u-1",
		VehicleID:      "fb-1",
		PickupDate:     time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
		DropoffDate:    time.Date(2025, 2, 12, 0, 0, 0, 0, time.UTC),
		PickupLocation: "17.386613, 102.776114",
		Status:         models.StatusPending,
		TotalPrice:     &total,
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, SyncBackoff{}, nil)

	ctx := context.Background()
	if err := worker.EnqueueReservation(ctx, TaskAppend, sampleReservation("r-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if sheets.appendCalls != 1 || sheets.lastAppended != "r-1" {
		t.Fatalf("expected append of r-1, got %d calls (%q)", sheets.appendCalls, sheets.lastAppended)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("boom")}
	worker := NewSheetsWorker(db, sheets, nil, SyncBackoff{MaxAttempts: 3, Base: time.Second}, nil)

	ctx := context.Background()
	if err := worker.EnqueueReservation(ctx, TaskAppend, sampleReservation("r-2")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("fatal")}
	worker := NewSheetsWorker(db, sheets, nil, SyncBackoff{MaxAttempts: 1}, nil)

	ctx := context.Background()
	if err := worker.EnqueueReservation(ctx, TaskAppend, sampleReservation("r-3")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, _ := worker.tryLocalQueue()
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
	failed, err := db.GetFailedSyncTasks(ctx)
	if err != nil || len(failed) != 1 {
		t.Fatalf("expected one failed task, got %d (%v)", len(failed), err)
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, SyncBackoff{}, nil)
	ctx := context.Background()

	task := models.SyncTask{TaskType: TaskAppend, ReservationID: "r-x", Payload: "{"}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestSheetsWorker_RedisQueue(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer s.Close()
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("down")}
	worker := NewSheetsWorker(db, sheets, rdb, SyncBackoff{MaxAttempts: 1}, nil)
	ctx := context.Background()

	if err := worker.EnqueueReservation(ctx, TaskAppend, sampleReservation("r-4")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, ok := worker.tryLocalQueue(); ok {
		t.Fatalf("task should go to redis, not the local queue")
	}
	if n, _ := rdb.LLen(ctx, worker.redisQueueKey).Result(); n != 1 {
		t.Fatalf("expected 1 task in redis, got %d", n)
	}

	task, ok := worker.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task from redis")
	}
	worker.processTask(ctx, &task)

	if n, _ := rdb.LLen(ctx, worker.deadLetterKey).Result(); n != 1 {
		t.Fatalf("expected dead letter entry, got %d", n)
	}
}

func TestSheetsWorker_Start(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{statusCalls: make(chan struct{}, 16)}
	worker := NewSheetsWorker(db, sheets, nil, SyncBackoff{}, nil)
	worker.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	rec := sampleReservation("r-5")
	rec.Status = models.StatusConfirmed
	if err := worker.EnqueueReservation(ctx, TaskUpdateStatus, rec); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sheets.statusCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if sheets.statusCount() != 1 {
		t.Fatalf("expected one status update, got %d", sheets.statusCount())
	}
}

func TestSheetsWorker_HandleSheetTask(t *testing.T) {
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(nil, sheets, nil, SyncBackoff{}, nil)
	ctx := context.Background()

	if err := worker.handleSheetTask(ctx, TaskAppend, sheetTaskPayload{Reservation: sampleReservation("r-1")}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := worker.handleSheetTask(ctx, TaskUpdateStatus, sheetTaskPayload{ReservationID: "r-1", Status: models.StatusActive}); err != nil {
		t.Fatalf("status: %v", err)
	}
	if sheets.appendCalls != 1 || sheets.statusCount() != 1 {
		t.Fatalf("unexpected calls: append=%d status=%d", sheets.appendCalls, sheets.statusCount())
	}
	if err := worker.handleSheetTask(ctx, TaskAppend, sheetTaskPayload{}); err == nil {
		t.Fatalf("expected error for missing reservation")
	}
	if err := worker.handleSheetTask(ctx, TaskUpdateStatus, sheetTaskPayload{ReservationID: "r-1"}); err == nil {
		t.Fatalf("expected error for missing status")
	}
	if err := worker.handleSheetTask(ctx, "nope", sheetTaskPayload{}); err == nil {
		t.Fatalf("expected error for unknown task type")
	}
}

func TestSyncBackoffDelay(t *testing.T) {
	b := SyncBackoff{Base: time.Second, Cap: 5 * time.Second, QuotaDelay: 30 * time.Second}
	cases := []struct {
		attempt int
		cause   error
		want    time.Duration
	}{
		{0, errors.New("boom"), time.Second},
		{1, errors.New("boom"), time.Second},
		{2, errors.New("boom"), 2 * time.Second},
		{5, errors.New("boom"), 5 * time.Second},
		{64, errors.New("boom"), 5 * time.Second},
		{1, &googleapi.Error{Code: http.StatusTooManyRequests}, 30 * time.Second},
		{1, fmt.Errorf("append: %w", &googleapi.Error{Code: http.StatusServiceUnavailable}), time.Second},
	}
	for _, tc := range cases {
		if got := b.Delay(tc.attempt, tc.cause); got != tc.want {
			t.Fatalf("attempt %d (%v): expected %s, got %s", tc.attempt, tc.cause, tc.want, got)
		}
	}

	if got := (SyncBackoff{}).Delay(1, nil); got != 2*time.Second {
		t.Fatalf("zero backoff expected 2s default, got %s", got)
	}
}

func TestProcessTaskPermanentSheetsError(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: fmt.Errorf("append: %w", &googleapi.Error{Code: http.StatusForbidden, Message: "caller does not have permission"})}
	worker := NewSheetsWorker(db, sheets, nil, SyncBackoff{MaxAttempts: 5}, nil)

	ctx := context.Background()
	if err := worker.EnqueueReservation(ctx, TaskAppend, sampleReservation("r-4")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, _ := worker.tryLocalQueue()
	worker.processTask(ctx, &task)

	status, _, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncFailed {
		t.Fatalf("expected status=failed on 403, got %s", status)
	}
	if nextRetry.Valid {
		t.Fatalf("expected no retry scheduled, got %v", nextRetry)
	}
}

func TestProcessTaskQuotaRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: &googleapi.Error{Code: http.StatusTooManyRequests}}
	worker := NewSheetsWorker(db, sheets, nil, SyncBackoff{MaxAttempts: 5, Base: time.Second, QuotaDelay: time.Hour}, nil)

	ctx := context.Background()
	if err := worker.EnqueueReservation(ctx, TaskAppend, sampleReservation("r-5")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, _ := worker.tryLocalQueue()
	worker.processTask(ctx, &task)

	status, _, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncRetry {
		t.Fatalf("expected status=retry on 429, got %s", status)
	}
	if !nextRetry.Valid || time.Until(nextRetry.Time) < 30*time.Minute {
		t.Fatalf("expected quota delay, got %v", nextRetry)
	}
}

func TestSheetsWorker_EnqueueValidation(t *testing.T) {
	worker := NewSheetsWorker(newTestDB(t), &fakeSheets{}, nil, SyncBackoff{}, nil)
	ctx := context.Background()

	if err := worker.EnqueueReservation(ctx, "", sampleReservation("r-1")); err == nil {
		t.Fatalf("expected error for empty task type")
	}
	if err := worker.EnqueueReservation(ctx, TaskAppend, nil); err == nil {
		t.Fatalf("expected error for missing reservation")
	}
	if err := worker.EnqueueReservation(ctx, TaskAppend, &models.ReservationRecord{}); err == nil {
		t.Fatalf("expected error for missing reservation id")
	}
}

func TestSheetsWorker_DecodePayload(t *testing.T) {
	worker := NewSheetsWorker(nil, nil, nil, SyncBackoff{}, nil)

	decoded, err := worker.decodePayload(`{"reservation_id":"r-9","status":"confirmed"}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ReservationID != "r-9" || decoded.Status != models.StatusConfirmed {
		t.Fatalf("unexpected decoded payload: %+v", decoded)
	}

	if _, err := worker.decodePayload(`invalid json`); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

// Helpers

type fakeSheets struct {
	err          error
	appendCalls  int
	lastAppended string
	statusCalls  chan struct{}
}

func (f *fakeSheets) AppendReservation(_ context.Context, rec *models.ReservationRecord) error {
	f.appendCalls++
	f.lastAppended = rec.ID
	return f.err
}

func (f *fakeSheets) UpdateReservationStatus(_ context.Context, _ string, _ models.ReservationStatus) error {
	if f.statusCalls == nil {
		f.statusCalls = make(chan struct{}, 16)
	}
	f.statusCalls <- struct{}{}
	return f.err
}

func (f *fakeSheets) statusCount() int {
	if f.statusCalls == nil {
		return 0
	}
	return len(f.statusCalls)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	logger := zerolog.Nop()
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
