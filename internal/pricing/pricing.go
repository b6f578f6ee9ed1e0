// Package pricing computes the advisory price shown before a reservation is
// persisted. The store's computed total always wins once it is known.
package pricing

import (
	"time"

	"rungroj/internal/dates"
)

// PreviewPrice returns days * dailyRate, counting partial days as full days.
// It returns 0 when either date is absent or the rate is not positive.
func PreviewPrice(dailyRate int64, pickup, dropoff time.Time) int64 {
	if dailyRate <= 0 || pickup.IsZero() || dropoff.IsZero() {
		return 0
	}
	return int64(dates.DaysBetween(pickup, dropoff)) * dailyRate
}

// ResolveTotal replaces the preview with the authoritative total. The preview
// is used only when the authoritative value is missing or zero.
func ResolveTotal(authoritative *int64, preview int64) int64 {
	if authoritative != nil && *authoritative > 0 {
		return *authoritative
	}
	return preview
}
