package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rungroj/internal/domain"
	"rungroj/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

var ErrInvalidReservation = errors.New("invalid reservation")

// DB is the local SQLite implementation of domain.Store.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

var _ domain.Store = (*DB)(nil)

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_busy_timeout=5000&_foreign_keys=on"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serialises writers and keeps :memory: databases shared.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, logger: logger}
	if err := db.createTables(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := db.seedVehicles(context.Background(), models.FallbackFleet()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to seed vehicles: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS vehicles (
            id TEXT PRIMARY KEY,
            model_id TEXT NOT NULL DEFAULT '',
            name TEXT NOT NULL,
            brand TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL DEFAULT '',
            price_per_day INTEGER NOT NULL DEFAULT 0,
            seats INTEGER NOT NULL DEFAULT 5,
            luggage INTEGER NOT NULL DEFAULT 0,
            fuel_type TEXT NOT NULL DEFAULT '',
            transmission TEXT NOT NULL DEFAULT '',
            image_url TEXT NOT NULL DEFAULT '',
            rating REAL NOT NULL DEFAULT 0,
            review_count INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'available',
            license_plate TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS reservations (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            vehicle_id TEXT NOT NULL REFERENCES vehicles(id),
            pickup_date DATETIME NOT NULL,
            dropoff_date DATETIME NOT NULL,
            pickup_location TEXT NOT NULL,
            service_type TEXT NOT NULL DEFAULT 'self_drive',
            notes TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'pending',
            total_price INTEGER,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS profiles (
            id TEXT PRIMARY KEY,
            full_name TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            reservation_id TEXT NOT NULL,
            payload TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_vehicles_status ON vehicles(status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_vehicle ON reservations(vehicle_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_user ON reservations(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", firstLine(query), err)
		}
	}
	return nil
}

// seedVehicles inserts the vehicles into an empty catalog.
func (db *DB) seedVehicles(ctx context.Context, vehicles []models.Vehicle) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vehicles`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for i := range vehicles {
		if err := db.UpsertVehicle(ctx, &vehicles[i]); err != nil {
			return err
		}
	}
	db.logger.Info().Int("count", len(vehicles)).Msg("Seeded catalog with the fallback fleet")
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func firstLine(q string) string {
	q = strings.TrimSpace(q)
	if i := strings.IndexByte(q, '\n'); i >= 0 {
		return q[:i]
	}
	return q
}
