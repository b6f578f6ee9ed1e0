package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rungroj/internal/domain"
	"rungroj/internal/models"
)

func (db *DB) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p := models.Profile{ID: userID}
	err := db.QueryRowContext(ctx,
		`SELECT full_name, phone, updated_at FROM profiles WHERE id = ?`, userID,
	).Scan(&p.FullName, &p.Phone, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// UpdateProfile creates the row on first save. Unset fields keep their
// stored value.
func (db *DB) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	if err := update.Normalize(); err != nil {
		return nil, err
	}
	query := `INSERT INTO profiles (id, full_name, phone, updated_at)
              VALUES (?, COALESCE(?, ''), COALESCE(?, ''), ?)
              ON CONFLICT(id) DO UPDATE SET
                full_name = COALESCE(?, full_name),
                phone = COALESCE(?, phone),
                updated_at = excluded.updated_at`
	now := time.Now().UTC()
	if _, err := db.ExecContext(ctx, query,
		userID, update.FullName, update.Phone, now,
		update.FullName, update.Phone,
	); err != nil {
		return nil, fmt.Errorf("failed to save profile %s: %w", userID, err)
	}
	return db.GetProfile(ctx, userID)
}
