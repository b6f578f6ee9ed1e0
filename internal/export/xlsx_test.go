package export

import (
	"bytes"
	"testing"
	"time"

	"rungroj/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteReservations(t *testing.T) {
	total := int64(5000)
	recs := []models.ReservationRecord{
		{
			ID:             "r-1",
			UserID:         "u-1",
			VehicleID:      "fb-2",
			PickupDate:     time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
			DropoffDate:    time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC),
			PickupLocation: "สนามบินอุดรธานี",
			ServiceType:    models.ServiceWithDriver,
			Status:         models.StatusConfirmed,
			TotalPrice:     &total,
			CreatedAt:      time.Date(2025, 3, 20, 10, 30, 0, 0, time.UTC),
			Vehicle:        &models.Vehicle{Name: "Honda City", LicensePlate: "กข 1234"},
		},
		{
			ID:          "r-2",
			UserID:      "u-2",
			VehicleID:   "fb-5",
			PickupDate:  time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC),
			DropoffDate: time.Date(2025, 4, 6, 0, 0, 0, 0, time.UTC),
			Status:      models.StatusPending,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReservations(&buf, recs))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, headers, rows[0])

	first := rows[1]
	assert.Equal(t, "r-1", first[0])
	assert.Equal(t, "Honda City", first[2])
	assert.Equal(t, "กข 1234", first[3])
	assert.Equal(t, "2025-04-01", first[4])
	assert.Equal(t, "2", first[6])
	assert.Equal(t, "พร้อมคนขับ", first[8])
	assert.Equal(t, "✅ ยืนยันแล้ว", first[9])
	assert.Equal(t, "5000", first[10])
	assert.Equal(t, "2025-03-20 10:30", first[12])

	second := rows[2]
	assert.Equal(t, "fb-5", second[2])
	assert.Equal(t, "ขับเอง", second[8])
	assert.Equal(t, "0", second[10])
}

func TestWriteReservations_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReservations(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "reservations_2025-04-01_0930.xlsx", FileName(time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)))
}
