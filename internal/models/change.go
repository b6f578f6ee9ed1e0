package models

// ChangeType is the kind of row change carried by a realtime event.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
)

// ReservationChange is a realtime notification about one reservation row.
type ReservationChange struct {
	Type ChangeType        `json:"type"`
	New  ReservationRecord `json:"new"`
}
