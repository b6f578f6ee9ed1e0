// Package google mirrors reservations into a Google Sheets spreadsheet for
// the rental office.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"rungroj/internal/config"
	"rungroj/internal/domain"
	"rungroj/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var ErrRowNotFound = errors.New("reservation row not found")

const timestampLayout = "2006-01-02 15:04:05"

var reservationHeaders = []interface{}{
	"ID", "User ID", "Vehicle ID", "Vehicle", "Pickup", "Drop-off",
	"Location", "Service", "Status", "Total", "Created At", "Updated At",
}

type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	rowCache      map[string]int
	cacheMu       sync.RWMutex
	now           func() time.Time
}

var _ domain.SheetsWriter = (*SheetsService)(nil)

// NewSheetsService authenticates with a service account key file.
func NewSheetsService(ctx context.Context, cfg config.GoogleConfig) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return newSheetsService(srv, cfg.ReservationSpreadsheetID, cfg.SheetName), nil
}

func newSheetsService(srv *sheets.Service, spreadsheetID, sheetName string) *SheetsService {
	if sheetName == "" {
		sheetName = "Reservations"
	}
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		rowCache:      make(map[string]int),
		now:           time.Now,
	}
}

func (s *SheetsService) rng(a1 string) string {
	return s.sheetName + "!" + a1
}

// TestConnection reads the header cell.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	if _, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rng("A1")).Context(ctx).Do(); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// WarmUpCache populates the row index cache from the ID column.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rng("A:A")).Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
	for i, row := range resp.Values {
		if id := cellString(row); id != "" && i > 0 {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

// AppendReservation adds a row for rec.
func (s *SheetsService) AppendReservation(ctx context.Context, rec *models.ReservationRecord) error {
	if rec == nil || rec.ID == "" {
		return errors.New("reservation is required")
	}
	valueRange := &sheets.ValueRange{Values: [][]interface{}{reservationRowValues(rec)}}

	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.rng("A:A"), valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return err
	}
	if resp.Updates != nil {
		if row, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(rec.ID, row)
		}
	}
	return nil
}

// UpdateReservationStatus rewrites the status and updated-at cells.
func (s *SheetsService) UpdateReservationStatus(ctx context.Context, id string, status models.ReservationStatus) error {
	rowIdx, err := s.FindReservationRow(ctx, id)
	if err != nil {
		return err
	}

	statusRange := s.rng(fmt.Sprintf("I%d:I%d", rowIdx, rowIdx))
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, statusRange, &sheets.ValueRange{
		Values: [][]interface{}{{string(status)}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return err
	}

	updatedRange := s.rng(fmt.Sprintf("L%d:L%d", rowIdx, rowIdx))
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, updatedRange, &sheets.ValueRange{
		Values: [][]interface{}{{s.now().Format(timestampLayout)}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// FindReservationRow locates the 1-based row for id in column A.
func (s *SheetsService) FindReservationRow(ctx context.Context, id string) (int, error) {
	if id == "" {
		return 0, errors.New("reservation id is required")
	}
	if row, ok := s.getCachedRow(id); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rng("A:A")).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for i, row := range resp.Values {
		if cellString(row) == id {
			s.setCachedRow(id, i+1)
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%s: %w", id, ErrRowNotFound)
}

// ReplaceReservationsSheet rewrites the whole sheet from recs.
func (s *SheetsService) ReplaceReservationsSheet(ctx context.Context, recs []models.ReservationRecord) error {
	if _, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, s.rng("A:L"), &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}

	values := make([][]interface{}, 0, len(recs)+1)
	values = append(values, reservationHeaders)
	for i := range recs {
		values = append(values, reservationRowValues(&recs[i]))
	}

	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.rng("A1"), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheet: %w", err)
	}

	s.cacheMu.Lock()
	s.rowCache = make(map[string]int, len(recs))
	for i := range recs {
		s.rowCache[recs[i].ID] = i + 2
	}
	s.cacheMu.Unlock()
	return nil
}

func (s *SheetsService) getCachedRow(id string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

// ClearCache clears the row index cache.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
}

func reservationRowValues(rec *models.ReservationRecord) []interface{} {
	vehicleName := ""
	if rec.Vehicle != nil {
		vehicleName = rec.Vehicle.Name
	}
	return []interface{}{
		rec.ID,
		rec.UserID,
		rec.VehicleID,
		vehicleName,
		rec.PickupDate.Format("2006-01-02"),
		rec.DropoffDate.Format("2006-01-02"),
		rec.PickupLocation,
		string(rec.ServiceType),
		string(rec.Status),
		rec.Price(),
		formatTimestamp(rec.CreatedAt),
		formatTimestamp(rec.UpdatedAt),
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timestampLayout)
}

func cellString(row []interface{}) string {
	if len(row) == 0 {
		return ""
	}
	switch v := row[0].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return fmt.Sprint(v)
	}
}

var rangeRowPattern = regexp.MustCompile(`![A-Z]+(\d+)`)

// rowFromRange extracts the first row number from "Sheet!A10:L10".
func rowFromRange(a1 string) (int, bool) {
	m := rangeRowPattern.FindStringSubmatch(a1)
	if m == nil {
		return 0, false
	}
	row, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return row, true
}
