package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"rungroj/internal/models"
)

type carModelRow struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Brand        string          `json:"brand"`
	Category     string          `json:"category"`
	PricePerDay  float64         `json:"price_per_day"`
	Seats        int             `json:"seats"`
	FuelType     string          `json:"fuel_type"`
	Transmission string          `json:"transmission"`
	ImageURL     string          `json:"image_url"`
	Features     json.RawMessage `json:"features"`
	Rating       *float64        `json:"rating"`
	ReviewCount  int             `json:"review_count"`
}

type vehicleRow struct {
	ID            string       `json:"id"`
	ModelID       string       `json:"model_id"`
	Status        string       `json:"status"`
	LicensePlate  string       `json:"license_plate"`
	VehicleNumber string       `json:"vehicle_number"`
	PricePerDay   *float64     `json:"price_per_day"`
	ImageURL      *string      `json:"image_url"`
	CarModel      *carModelRow `json:"car_models"`
}

func (r vehicleRow) toModel() models.Vehicle {
	v := models.Vehicle{
		ID:           r.ID,
		ModelID:      r.ModelID,
		Status:       r.Status,
		LicensePlate: r.LicensePlate,
		Features:     models.FeatureSet{Seats: 5, Fuel: "เบนซิน", Transmission: "Automatic"},
	}
	if v.LicensePlate == "" {
		v.LicensePlate = r.VehicleNumber
	}

	m := r.CarModel
	if m == nil {
		v.Name = "รถเช่า"
		r.applyOverrides(&v)
		if v.ImageURL == "" {
			v.ImageURL = models.DefaultImage("")
		}
		return v
	}
	v.Name = m.Name
	v.Brand = m.Brand
	v.Category = m.Category
	v.PricePerDay = int64(math.Round(m.PricePerDay))
	if m.Seats > 0 {
		v.Features.Seats = m.Seats
	}
	if m.FuelType != "" {
		v.Features.Fuel = m.FuelType
	}
	if m.Transmission != "" {
		v.Features.Transmission = m.Transmission
	}
	v.Features.Luggage = luggage(m.Features)
	if m.Rating != nil {
		v.Rating = models.RatingSummary{Average: *m.Rating, Count: m.ReviewCount}
	}
	v.ImageURL = m.ImageURL
	r.applyOverrides(&v)
	if v.ImageURL == "" {
		v.ImageURL = models.DefaultImage(m.Name)
	}
	return v
}

// applyOverrides lets an admin edit on the vehicle row win over the shared
// car model.
func (r vehicleRow) applyOverrides(v *models.Vehicle) {
	if r.PricePerDay != nil && *r.PricePerDay > 0 {
		v.PricePerDay = int64(math.Round(*r.PricePerDay))
	}
	if r.ImageURL != nil && *r.ImageURL != "" {
		v.ImageURL = *r.ImageURL
	}
}

// luggage reads the luggage count out of the free-form features column.
func luggage(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var f struct {
		Luggage int `json:"luggage"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	return f.Luggage
}

type reservationInsert struct {
	UserID         string                   `json:"user_id"`
	VehicleID      string                   `json:"vehicle_id"`
	PickupDate     string                   `json:"pickup_date"`
	DropoffDate    string                   `json:"dropoff_date"`
	PickupLocation string                   `json:"pickup_location"`
	ServiceType    models.ServiceType       `json:"service_type"`
	Notes          string                   `json:"notes"`
	Status         models.ReservationStatus `json:"status"`
}

type reservationRow struct {
	ID             string                   `json:"id"`
	UserID         string                   `json:"user_id"`
	VehicleID      string                   `json:"vehicle_id"`
	PickupDate     timestamp                `json:"pickup_date"`
	DropoffDate    timestamp                `json:"dropoff_date"`
	PickupLocation string                   `json:"pickup_location"`
	ServiceType    models.ServiceType       `json:"service_type"`
	Notes          *string                  `json:"notes"`
	Status         models.ReservationStatus `json:"status"`
	TotalPrice     *float64                 `json:"total_price"`
	CreatedAt      timestamp                `json:"created_at"`
	UpdatedAt      timestamp                `json:"updated_at"`
	Vehicle        *vehicleRow              `json:"vehicles"`
}

func (r reservationRow) toModel() models.ReservationRecord {
	rec := models.ReservationRecord{
		ID:             r.ID,
		UserID:         r.UserID,
		VehicleID:      r.VehicleID,
		PickupDate:     r.PickupDate.Time,
		DropoffDate:    r.DropoffDate.Time,
		PickupLocation: r.PickupLocation,
		ServiceType:    r.ServiceType,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt.Time,
		UpdatedAt:      r.UpdatedAt.Time,
	}
	if rec.ServiceType == "" {
		rec.ServiceType = models.ServiceSelfDrive
	}
	if r.Notes != nil {
		rec.Notes = *r.Notes
	}
	if r.TotalPrice != nil {
		total := int64(math.Round(*r.TotalPrice))
		rec.TotalPrice = &total
	}
	if r.Vehicle != nil {
		v := r.Vehicle.toModel()
		rec.Vehicle = &v
	}
	return rec
}

type profileRow struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FullName    *string   `json:"full_name"`
	Phone       *string   `json:"phone"`
	PhoneNumber *string   `json:"phone_number"`
	Role        string    `json:"role"`
	UpdatedAt   timestamp `json:"updated_at"`
}

func (r profileRow) toModel() models.Profile {
	p := models.Profile{ID: r.ID, Email: r.Email, Role: r.Role, UpdatedAt: r.UpdatedAt.Time}
	if r.FullName != nil {
		p.FullName = *r.FullName
	}
	switch {
	case r.Phone != nil && *r.Phone != "":
		p.Phone = *r.Phone
	case r.PhoneNumber != nil:
		p.Phone = *r.PhoneNumber
	}
	return p
}

// timestamp accepts the date and timestamptz renderings the backend emits.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02",
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", raw)
}
