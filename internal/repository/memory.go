package repository

import (
	"context"
	"sync"
	"time"

	"rungroj/internal/models"
)

type memoryEntry struct {
	draft     models.BookingDraft
	expiresAt time.Time
}

type MemoryDraftRepository struct {
	drafts sync.Map
	ttl    time.Duration
	now    func() time.Time
}

func NewMemoryDraftRepository(ttl time.Duration) *MemoryDraftRepository {
	return &MemoryDraftRepository{
		ttl: ttl,
		now: time.Now,
	}
}

func (r *MemoryDraftRepository) GetDraft(ctx context.Context, token string) (*models.BookingDraft, error) {
	val, ok := r.drafts.Load(token)
	if !ok {
		return nil, nil
	}
	entry := val.(memoryEntry)
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		r.drafts.Delete(token)
		return nil, nil
	}
	draft := entry.draft
	return &draft, nil
}

func (r *MemoryDraftRepository) SaveDraft(ctx context.Context, draft *models.BookingDraft) error {
	r.drafts.Store(draft.Token, memoryEntry{
		draft:     *draft,
		expiresAt: r.now().Add(r.ttl),
	})
	return nil
}

func (r *MemoryDraftRepository) DeleteDraft(ctx context.Context, token string) error {
	r.drafts.Delete(token)
	return nil
}
