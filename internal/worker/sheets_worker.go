package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rungroj/internal/domain"
	"rungroj/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
)

const (
	TaskAppend       = "append"
	TaskUpdateStatus = "update_status"
)

// TaskStore persists sync tasks so a restart does not lose them.
type TaskStore interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// sheetTaskPayload is persisted in SyncTask.Payload as JSON.
type sheetTaskPayload struct {
	ReservationID string                    `json:"reservation_id"`
	Reservation   *models.ReservationRecord `json:"reservation,omitempty"`
	Status        models.ReservationStatus  `json:"status,omitempty"`
}

// SyncBackoff schedules retries of failed spreadsheet writes. Each retry
// doubles the wait from Base up to Cap. A Sheets quota error (HTTP 429)
// waits at least QuotaDelay, since the per-minute quota has to refill.
type SyncBackoff struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
	QuotaDelay  time.Duration
}

func (b SyncBackoff) withDefaults() SyncBackoff {
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = 5
	}
	if b.Base <= 0 {
		b.Base = 2 * time.Second
	}
	if b.Cap <= 0 {
		b.Cap = time.Minute
	}
	if b.QuotaDelay <= 0 {
		b.QuotaDelay = time.Minute
	}
	return b
}

// Delay returns the wait before the given retry (1-based) of a task that
// failed with cause.
func (b SyncBackoff) Delay(attempt int, cause error) time.Duration {
	b = b.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	d := b.Cap
	if shift := attempt - 1; shift < 30 && b.Base<<shift < b.Cap {
		d = b.Base << shift
	}
	if isQuotaError(cause) && d < b.QuotaDelay {
		d = b.QuotaDelay
	}
	return d
}

func isQuotaError(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}

// isPermanent reports Sheets rejections that retrying cannot fix, such as a
// missing spreadsheet or revoked access.
func isPermanent(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests
}

// SheetsWorker consumes sync_queue tasks and mirrors reservations to Google Sheets.
type SheetsWorker struct {
	store         TaskStore
	sheets        domain.SheetsWriter
	redis         *redis.Client
	backoff       SyncBackoff
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

var _ domain.SyncWorker = (*SheetsWorker)(nil)

// NewSheetsWorker builds a worker with sane defaults.
func NewSheetsWorker(store TaskStore, sheets domain.SheetsWriter, redisClient *redis.Client, backoff SyncBackoff, logger *zerolog.Logger) *SheetsWorker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "sheets_worker").Logger()

	return &SheetsWorker{
		store:         store,
		sheets:        sheets,
		redis:         redisClient,
		backoff:       backoff.withDefaults(),
		queue:         make(chan models.SyncTask, 128),
		redisQueueKey: "rungroj:sheets:queue",
		deadLetterKey: "rungroj:sheets:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        &l,
	}
}

// EnqueueReservation persists a task for rec and schedules it via redis or
// the in-memory queue.
func (w *SheetsWorker) EnqueueReservation(ctx context.Context, taskType string, rec *models.ReservationRecord) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if rec == nil || rec.ID == "" {
		return errors.New("reservation id is required")
	}

	payload := sheetTaskPayload{ReservationID: rec.ID, Reservation: rec}
	if taskType == TaskUpdateStatus {
		payload.Status = rec.Status
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	syncTask := models.SyncTask{
		TaskType:      taskType,
		ReservationID: rec.ID,
		Payload:       string(payloadBytes),
		Status:        models.SyncPending,
		CreatedAt:     time.Now(),
	}
	if err := w.store.CreateSyncTask(ctx, &syncTask); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, syncTask); err != nil {
			w.logger.Warn().Err(err).Msg("Redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- syncTask:
	default:
		w.logger.Warn().Int64("task_id", syncTask.ID).Msg("In-memory queue full, task left to polling")
	}
	return nil
}

// Start launches the main loop; it stops when ctx is done.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Sheets worker started")
	defer w.logger.Info().Msg("Sheets worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.store.GetPendingSyncTasks(ctx, w.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error().Err(err).Msg("Fetch pending tasks failed")
			w.sleep(ctx)
			continue
		}
		if len(tasks) == 0 {
			w.sleep(ctx)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *SheetsWorker) sleep(ctx context.Context) {
	t := time.NewTimer(w.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *SheetsWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SheetsWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			w.logger.Warn().Err(err).Msg("Redis BRPOP failed")
		}
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Warn().Err(err).Msg("Decode redis task failed")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *SheetsWorker) processTask(ctx context.Context, task *models.SyncTask) {
	payload, err := w.decodePayload(task.Payload)
	if err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.handleSheetTask(ctx, task.TaskType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Mark completed failed")
	}
}

func (w *SheetsWorker) handleSheetTask(ctx context.Context, taskType string, payload sheetTaskPayload) error {
	switch taskType {
	case TaskAppend:
		if payload.Reservation == nil {
			return errors.New("reservation payload missing")
		}
		return w.sheets.AppendReservation(ctx, payload.Reservation)
	case TaskUpdateStatus:
		if payload.ReservationID == "" || payload.Status == "" {
			return errors.New("reservation id or status missing")
		}
		return w.sheets.UpdateReservationStatus(ctx, payload.ReservationID, payload.Status)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *SheetsWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.backoff.MaxAttempts || isPermanent(cause) {
		w.failTask(ctx, task, cause)
		return
	}

	nextTime := time.Now().Add(w.backoff.Delay(attempt, cause))
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Mark retry failed")
	}
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry", nextTime).Msg("Sheets task will be retried")
}

func (w *SheetsWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Mark failed status update failed")
	}
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("reservation_id", task.ReservationID).Msg("Sheets task failed permanently")
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.deadLetterKey, *task); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Dead letter push failed")
		}
	}
}

func (w *SheetsWorker) decodePayload(raw string) (sheetTaskPayload, error) {
	var payload sheetTaskPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

func (w *SheetsWorker) pushRedis(ctx context.Context, key string, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
