package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"rungroj/internal/domain"
	"rungroj/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverDraftRepository writes to primary until it fails, then serves from
// fallback and probes primary again after recoveryInterval.
type FailoverDraftRepository struct {
	primary   domain.DraftRepository
	fallback  domain.DraftRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverDraftRepository(primary, fallback domain.DraftRepository, logger *zerolog.Logger) *FailoverDraftRepository {
	return &FailoverDraftRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverDraftRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary draft repository failed, falling back to memory")
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

func (r *FailoverDraftRepository) shouldProbe() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) <= recoveryInterval {
		return false
	}
	r.lastCheck = time.Now()
	return true
}

func (r *FailoverDraftRepository) GetDraft(ctx context.Context, token string) (*models.BookingDraft, error) {
	if !r.isDown.Load() {
		draft, err := r.primary.GetDraft(ctx, token)
		if err == nil {
			return draft, nil
		}
		r.markDown(err)
	} else if r.shouldProbe() {
		draft, err := r.primary.GetDraft(ctx, token)
		if err == nil {
			r.isDown.Store(false)
			r.logger.Info().Msg("Primary draft repository recovered")
			if draft != nil {
				return draft, nil
			}
		}
	}

	return r.fallback.GetDraft(ctx, token)
}

func (r *FailoverDraftRepository) SaveDraft(ctx context.Context, draft *models.BookingDraft) error {
	if !r.isDown.Load() {
		err := r.primary.SaveDraft(ctx, draft)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SaveDraft(ctx, draft)
}

func (r *FailoverDraftRepository) DeleteDraft(ctx context.Context, token string) error {
	// Drafts saved during an outage live in fallback.
	_ = r.fallback.DeleteDraft(ctx, token)

	if !r.isDown.Load() {
		err := r.primary.DeleteDraft(ctx, token)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return nil
}
