package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPreviewPrice(t *testing.T) {
	day1 := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		rate    int64
		pickup  time.Time
		dropoff time.Time
		want    int64
	}{
		{"TwoDays", 500, day1, day1.AddDate(0, 0, 2), 1000},
		{"OneDay", 900, day1, day1.AddDate(0, 0, 1), 900},
		{"SameDay", 900, day1, day1, 0},
		{"PartialDayRoundsUp", 1000, day1, day1.Add(30 * time.Hour), 2000},
		{"ZeroRate", 0, day1, day1.AddDate(0, 0, 3), 0},
		{"NegativeRate", -10, day1, day1.AddDate(0, 0, 3), 0},
		{"MissingPickup", 500, time.Time{}, day1, 0},
		{"MissingDropoff", 500, day1, time.Time{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PreviewPrice(tt.rate, tt.pickup, tt.dropoff))
		})
	}
}

func TestPreviewPrice_SameDayAnyRate(t *testing.T) {
	p := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for _, rate := range []int64{1, 800, 2500, 1 << 40} {
		assert.Zero(t, PreviewPrice(rate, p, p))
	}
}

func TestResolveTotal(t *testing.T) {
	price := int64(2700)
	zero := int64(0)

	assert.Equal(t, int64(2700), ResolveTotal(&price, 1800), "authoritative replaces preview")
	assert.Equal(t, int64(1800), ResolveTotal(nil, 1800))
	assert.Equal(t, int64(1800), ResolveTotal(&zero, 1800))
}
