// Package validation holds the date-range and location rules that gate the
// booking submit action.
package validation

import (
	"fmt"
	"strings"
	"time"
)

// MinRentalPeriod is the shortest rental accepted.
const MinRentalPeriod = 24 * time.Hour

// Result is the outcome of validating a pickup/drop-off pair.
type Result int

const (
	Valid Result = iota
	InvalidOrder
	InvalidDuration
)

func (r Result) String() string {
	switch r {
	case Valid:
		return "VALID"
	case InvalidOrder:
		return "INVALID_ORDER"
	case InvalidDuration:
		return "INVALID_DURATION"
	default:
		return "UNKNOWN"
	}
}

// Message is the inline error shown under the date fields; empty when valid.
func (r Result) Message() string {
	switch r {
	case InvalidOrder:
		return "❌ วันคืนรถต้องหลังวันรับรถ"
	case InvalidDuration:
		return "❌ ระยะเวลาเช่าขั้นต่ำ 1 วัน"
	default:
		return ""
	}
}

func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Result) UnmarshalText(text []byte) error {
	for _, candidate := range []Result{Valid, InvalidOrder, InvalidDuration} {
		if candidate.String() == string(text) {
			*r = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown validation result %q", text)
}

// Validate checks a date pair. A missing field never produces an error on its
// own. Drop-off before pickup is an order error; a gap shorter than
// MinRentalPeriod (including identical dates) is a duration error. Exactly
// one day is accepted.
func Validate(pickup, dropoff time.Time) Result {
	if pickup.IsZero() || dropoff.IsZero() {
		return Valid
	}
	if dropoff.Before(pickup) {
		return InvalidOrder
	}
	if dropoff.Sub(pickup) < MinRentalPeriod {
		return InvalidDuration
	}
	return Valid
}

// CanSubmit reports whether the submit control is enabled.
func CanSubmit(pickup, dropoff time.Time, location string) bool {
	if pickup.IsZero() || dropoff.IsZero() {
		return false
	}
	if strings.TrimSpace(location) == "" {
		return false
	}
	return Validate(pickup, dropoff) == Valid
}

// MinDropoff is the earliest drop-off the date picker offers for pickup.
func MinDropoff(pickup time.Time) time.Time {
	if pickup.IsZero() {
		return time.Time{}
	}
	return pickup.AddDate(0, 0, 1)
}
