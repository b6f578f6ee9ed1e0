// Package export renders reservation lists for the admin dashboard.
package export

import (
	"fmt"
	"io"
	"time"

	"rungroj/internal/dates"
	"rungroj/internal/models"
	"rungroj/internal/notify"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "การจอง"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var headers = []string{
	"รหัสการจอง", "ผู้ใช้", "รถ", "ทะเบียน", "วันรับรถ", "วันคืนรถ", "จำนวนวัน",
	"สถานที่รับรถ", "บริการ", "สถานะ", "ยอดรวม (บาท)", "หมายเหตุ", "สร้างเมื่อ",
}

var statusFill = map[models.ReservationStatus]string{
	models.StatusPending:   "#FFF2CC",
	models.StatusConfirmed: "#DDEBF7",
	models.StatusActive:    "#E2EFDA",
	models.StatusCompleted: "#EDEDED",
	models.StatusCancelled: "#F8CBAD",
}

// FileName is the download name for an export generated at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("reservations_%s.xlsx", now.Format("2006-01-02_1504"))
}

// WriteReservations writes recs as a single-sheet workbook to w.
func WriteReservations(w io.Writer, recs []models.ReservationRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#1F4E78"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating header style: %w", err)
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle)

	styles := make(map[models.ReservationStatus]int, len(statusFill))
	for status, color := range statusFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("error creating status style: %w", err)
		}
		styles[status] = id
	}

	for i := range recs {
		row := i + 2
		if err := writeRow(f, row, &recs[i]); err != nil {
			return err
		}
		if style, ok := styles[recs[i].Status]; ok {
			cell, _ := excelize.CoordinatesToCellName(10, row)
			_ = f.SetCellStyle(SheetName, cell, cell, style)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 38)
	_ = f.SetColWidth(SheetName, "B", "D", 20)
	_ = f.SetColWidth(SheetName, "E", "G", 14)
	_ = f.SetColWidth(SheetName, "H", "H", 40)
	_ = f.SetColWidth(SheetName, "I", "K", 16)
	_ = f.SetColWidth(SheetName, "L", "M", 24)
	_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, row int, rec *models.ReservationRecord) error {
	vehicle, plate := rec.VehicleID, ""
	if rec.Vehicle != nil {
		if rec.Vehicle.Name != "" {
			vehicle = rec.Vehicle.Name
		}
		plate = rec.Vehicle.LicensePlate
	}
	service := "ขับเอง"
	if rec.ServiceType == models.ServiceWithDriver {
		service = "พร้อมคนขับ"
	}
	created := ""
	if !rec.CreatedAt.IsZero() {
		created = rec.CreatedAt.Format("2006-01-02 15:04")
	}

	values := []interface{}{
		rec.ID,
		rec.UserID,
		vehicle,
		plate,
		rec.PickupDate.Format("2006-01-02"),
		rec.DropoffDate.Format("2006-01-02"),
		dates.DaysBetween(rec.PickupDate, rec.DropoffDate),
		rec.PickupLocation,
		service,
		notify.StatusLabel(rec.Status),
		rec.Price(),
		rec.Notes,
		created,
	}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("error writing row %d: %w", row, err)
	}
	return nil
}
