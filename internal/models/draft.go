package models

import "time"

// Coordinates is a map point chosen in custom location mode.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BookingDraft is the in-progress reservation form preserved across an
// authentication round-trip.
type BookingDraft struct {
	Token        string       `json:"token"`
	VehicleID    string       `json:"vehicle_id"`
	PickupDate   time.Time    `json:"pickup_date"`
	DropoffDate  time.Time    `json:"dropoff_date"`
	BranchID     string       `json:"branch_id"`
	LocationText string       `json:"location_text"`
	Marker       *Coordinates `json:"marker,omitempty"`
	ServiceType  ServiceType  `json:"service_type"`
	Notes        string       `json:"notes"`
	RedirectTo   string       `json:"redirect_to"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Session is the authenticated identity as issued by the auth provider.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsAdmin reports whether the session may use the admin dashboard.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}
