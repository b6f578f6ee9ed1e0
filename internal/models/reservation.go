package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReservationStatus is the lifecycle state of a persisted reservation.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusActive    ReservationStatus = "active"
	StatusCompleted ReservationStatus = "completed"
	StatusCancelled ReservationStatus = "cancelled"
)

var reservationStatuses = []ReservationStatus{
	StatusPending,
	StatusConfirmed,
	StatusActive,
	StatusCompleted,
	StatusCancelled,
}

// ReservationStatuses returns every known status in lifecycle order.
func ReservationStatuses() []ReservationStatus {
	return append([]ReservationStatus(nil), reservationStatuses...)
}

// ParseReservationStatus rejects anything outside the known set.
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	for _, s := range reservationStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown reservation status %q", raw)
}

func (s *ReservationStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseReservationStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Holds reports whether a reservation in this status still occupies the vehicle.
func (s ReservationStatus) Holds() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusActive:
		return true
	default:
		return false
	}
}

// ServiceType distinguishes self drive from chauffeured rentals.
type ServiceType string

const (
	ServiceSelfDrive  ServiceType = "self_drive"
	ServiceWithDriver ServiceType = "with_driver"
)

// ParseServiceType defaults to self drive for an empty value.
func ParseServiceType(raw string) (ServiceType, error) {
	switch ServiceType(raw) {
	case "":
		return ServiceSelfDrive, nil
	case ServiceSelfDrive, ServiceWithDriver:
		return ServiceType(raw), nil
	default:
		return "", fmt.Errorf("unknown service type %q", raw)
	}
}

// ReservationRequest is what the submission workflow sends to the store.
type ReservationRequest struct {
	UserID         string      `json:"user_id"`
	VehicleID      string      `json:"vehicle_id"`
	PickupDate     time.Time   `json:"pickup_date"`
	DropoffDate    time.Time   `json:"dropoff_date"`
	PickupLocation string      `json:"pickup_location"`
	ServiceType    ServiceType `json:"service_type"`
	Notes          string      `json:"notes"`
}

// ReservationRecord is the authoritative reservation as persisted by the store.
// TotalPrice is nil when the store did not return a computed price.
type ReservationRecord struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	VehicleID      string            `json:"vehicle_id"`
	PickupDate     time.Time         `json:"pickup_date"`
	DropoffDate    time.Time         `json:"dropoff_date"`
	PickupLocation string            `json:"pickup_location"`
	ServiceType    ServiceType       `json:"service_type"`
	Notes          string            `json:"notes"`
	Status         ReservationStatus `json:"status"`
	TotalPrice     *int64            `json:"total_price"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Vehicle        *Vehicle          `json:"vehicle,omitempty"`
}

// Price returns the authoritative total or zero when it is missing.
func (r ReservationRecord) Price() int64 {
	if r.TotalPrice == nil {
		return 0
	}
	return *r.TotalPrice
}

// Merge applies a realtime update on top of r, keeping the joined vehicle.
func (r ReservationRecord) Merge(update ReservationRecord) ReservationRecord {
	vehicle := r.Vehicle
	if update.Vehicle != nil {
		vehicle = update.Vehicle
	}
	update.Vehicle = vehicle
	if update.TotalPrice == nil {
		update.TotalPrice = r.TotalPrice
	}
	if update.CreatedAt.IsZero() {
		update.CreatedAt = r.CreatedAt
	}
	return update
}
