package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rungroj/internal/dates"
	"rungroj/internal/domain"
	"rungroj/internal/models"

	"github.com/google/uuid"
)

const msgOverlap = "รถคันนี้ถูกจองแล้วในช่วงวันที่เลือก กรุณาเลือกวันอื่น"

const reservationColumns = `r.id, r.user_id, r.vehicle_id, r.pickup_date, r.dropoff_date,
	r.pickup_location, r.service_type, r.notes, r.status, r.total_price, r.created_at, r.updated_at`

// Vehicle columns in join order, prefixed with the table alias.
const joinedVehicleColumns = `v.id, v.model_id, v.name, v.brand, v.category, v.price_per_day, v.seats, v.luggage,
	v.fuel_type, v.transmission, v.image_url, v.rating, v.review_count, v.status, v.license_plate`

const reservationSelect = `SELECT ` + reservationColumns + `, ` + joinedVehicleColumns + `
	FROM reservations r LEFT JOIN vehicles v ON v.id = r.vehicle_id`

func holdingStatuses() []any {
	var out []any
	for _, s := range models.ReservationStatuses() {
		if s.Holds() {
			out = append(out, string(s))
		}
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// CreateReservation inserts a pending reservation. The overlap check and the
// insert share one transaction; the total is days * price_per_day.
func (db *DB) CreateReservation(ctx context.Context, req models.ReservationRequest) (*models.ReservationRecord, error) {
	if req.UserID == "" || req.VehicleID == "" {
		return nil, fmt.Errorf("%w: user and vehicle are required", ErrInvalidReservation)
	}
	if req.PickupDate.IsZero() || req.DropoffDate.IsZero() || !req.DropoffDate.After(req.PickupDate) {
		return nil, fmt.Errorf("%w: drop-off must be after pickup", ErrInvalidReservation)
	}
	serviceType := req.ServiceType
	if serviceType == "" {
		serviceType = models.ServiceSelfDrive
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var price int64
	err = tx.QueryRowContext(ctx, `SELECT price_per_day FROM vehicles WHERE id = ?`, req.VehicleID).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vehicle %s: %w", req.VehicleID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicle price in tx: %w", err)
	}

	pickup := req.PickupDate.UTC()
	dropoff := req.DropoffDate.UTC()

	holds := holdingStatuses()
	overlapQuery := `SELECT COUNT(*) FROM reservations
                     WHERE vehicle_id = ? AND pickup_date < ? AND dropoff_date > ?
                     AND status IN (` + placeholders(len(holds)) + `)`
	args := append([]any{req.VehicleID, dropoff, pickup}, holds...)

	var overlapping int
	if err := tx.QueryRowContext(ctx, overlapQuery, args...).Scan(&overlapping); err != nil {
		return nil, fmt.Errorf("failed to check overlap in tx: %w", err)
	}
	if overlapping > 0 {
		return nil, &domain.OverlapError{Code: "OVERLAP", Message: msgOverlap}
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	total := int64(dates.DaysBetween(pickup, dropoff)) * price

	insert := `INSERT INTO reservations (
                 id, user_id, vehicle_id, pickup_date, dropoff_date, pickup_location,
                 service_type, notes, status, total_price, created_at, updated_at
               ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, insert,
		id, req.UserID, req.VehicleID, pickup, dropoff, req.PickupLocation,
		string(serviceType), req.Notes, string(models.StatusPending), total, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reservation in tx: %w", err)
	}

	rec, err := getReservation(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}
	return rec, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getReservation(ctx context.Context, q queryRower, id string) (*models.ReservationRecord, error) {
	rec, err := scanReservation(q.QueryRowContext(ctx, reservationSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return rec, nil
}

func (db *DB) GetReservation(ctx context.Context, id string) (*models.ReservationRecord, error) {
	return getReservation(ctx, db, id)
}

func (db *DB) ListReservationsByUser(ctx context.Context, userID string) ([]models.ReservationRecord, error) {
	return db.listReservations(ctx, reservationSelect+` WHERE r.user_id = ? ORDER BY r.created_at DESC`, userID)
}

func (db *DB) ListReservations(ctx context.Context) ([]models.ReservationRecord, error) {
	return db.listReservations(ctx, reservationSelect+` ORDER BY r.created_at DESC`)
}

func (db *DB) listReservations(ctx context.Context, query string, args ...any) ([]models.ReservationRecord, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	out := []models.ReservationRecord{}
	for rows.Next() {
		rec, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (db *DB) UpdateReservationStatus(ctx context.Context, id string, status models.ReservationStatus) (*models.ReservationRecord, error) {
	if _, err := models.ParseReservationStatus(string(status)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReservation, err)
	}
	res, err := db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update reservation status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	return db.GetReservation(ctx, id)
}

func scanReservation(row rowScanner) (*models.ReservationRecord, error) {
	var (
		rec     models.ReservationRecord
		service string
		status  string
		total   sql.NullInt64

		vID, vModel, vName, vBrand, vCategory         sql.NullString
		vFuel, vTransmission, vImage, vStatus, vPlate sql.NullString
		vPrice, vSeats, vLuggage, vReviews            sql.NullInt64
		vRating                                       sql.NullFloat64
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.VehicleID, &rec.PickupDate, &rec.DropoffDate,
		&rec.PickupLocation, &service, &rec.Notes, &status, &total, &rec.CreatedAt, &rec.UpdatedAt,
		&vID, &vModel, &vName, &vBrand, &vCategory, &vPrice, &vSeats, &vLuggage,
		&vFuel, &vTransmission, &vImage, &vRating, &vReviews, &vStatus, &vPlate,
	)
	if err != nil {
		return nil, err
	}

	rec.ServiceType = models.ServiceType(service)
	parsed, err := models.ParseReservationStatus(status)
	if err != nil {
		return nil, err
	}
	rec.Status = parsed
	if total.Valid {
		t := total.Int64
		rec.TotalPrice = &t
	}
	if vID.Valid {
		rec.Vehicle = &models.Vehicle{
			ID:          vID.String,
			ModelID:     vModel.String,
			Name:        vName.String,
			Brand:       vBrand.String,
			Category:    vCategory.String,
			PricePerDay: vPrice.Int64,
			ImageURL:    vImage.String,
			Rating:      models.RatingSummary{Average: vRating.Float64, Count: int(vReviews.Int64)},
			Features: models.FeatureSet{
				Seats:        int(vSeats.Int64),
				Luggage:      int(vLuggage.Int64),
				Fuel:         vFuel.String,
				Transmission: vTransmission.String,
			},
			Status:       vStatus.String,
			LicensePlate: vPlate.String,
		}
	}
	return &rec, nil
}
