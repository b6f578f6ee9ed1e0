package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rungroj/internal/domain"
	"rungroj/internal/models"
)

const vehicleColumns = `id, model_id, name, brand, category, price_per_day, seats, luggage,
	fuel_type, transmission, image_url, rating, review_count, status, license_plate`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row rowScanner) (models.Vehicle, error) {
	var v models.Vehicle
	err := row.Scan(
		&v.ID, &v.ModelID, &v.Name, &v.Brand, &v.Category, &v.PricePerDay,
		&v.Features.Seats, &v.Features.Luggage, &v.Features.Fuel, &v.Features.Transmission,
		&v.ImageURL, &v.Rating.Average, &v.Rating.Count, &v.Status, &v.LicensePlate,
	)
	return v, err
}

// UpsertVehicle inserts or replaces a catalog entry.
func (db *DB) UpsertVehicle(ctx context.Context, v *models.Vehicle) error {
	if v.ID == "" || v.Name == "" {
		return errors.New("vehicle id and name are required")
	}
	status := v.Status
	if status == "" {
		status = models.VehicleAvailable
	}
	query := `INSERT INTO vehicles (` + vehicleColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                model_id = excluded.model_id,
                name = excluded.name,
                brand = excluded.brand,
                category = excluded.category,
                price_per_day = excluded.price_per_day,
                seats = excluded.seats,
                luggage = excluded.luggage,
                fuel_type = excluded.fuel_type,
                transmission = excluded.transmission,
                image_url = excluded.image_url,
                rating = excluded.rating,
                review_count = excluded.review_count,
                status = excluded.status,
                license_plate = excluded.license_plate`
	_, err := db.ExecContext(ctx, query,
		v.ID, v.ModelID, v.Name, v.Brand, v.Category, v.PricePerDay,
		v.Features.Seats, v.Features.Luggage, v.Features.Fuel, v.Features.Transmission,
		v.ImageURL, v.Rating.Average, v.Rating.Count, status, v.LicensePlate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert vehicle %s: %w", v.ID, err)
	}
	return nil
}

// SetVehicleStatus moves a vehicle in or out of the bookable catalog.
func (db *DB) SetVehicleStatus(ctx context.Context, id, status string) error {
	res, err := db.ExecContext(ctx, `UPDATE vehicles SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update vehicle status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("vehicle %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateVehicle applies an admin price or photo edit and returns the
// stored vehicle.
func (db *DB) UpdateVehicle(ctx context.Context, id string, patch models.VehiclePatch) (*models.Vehicle, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE vehicles SET price_per_day = COALESCE(?, price_per_day), image_url = COALESCE(?, image_url) WHERE id = ?`,
		patch.PricePerDay, patch.ImageURL, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update vehicle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("vehicle %s: %w", id, domain.ErrNotFound)
	}
	return db.GetVehicle(ctx, id)
}

func (db *DB) ListAvailableVehicles(ctx context.Context, category string) ([]models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE status = ?`
	args := []any{models.VehicleAvailable}
	if !models.AllCategories(category) {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer rows.Close()

	vehicles := []models.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (db *DB) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	row := db.QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, id)
	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vehicle %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	return &v, nil
}
