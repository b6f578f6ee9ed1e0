// Package location captures the pickup location, either from a preset
// branch or from a map point described by reverse geocoding.
package location

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rungroj/internal/domain"
	"rungroj/internal/models"

	"github.com/rs/zerolog"
)

var ErrUnknownBranch = errors.New("unknown branch")

// ErrNotCustom is returned for map interaction while a preset is selected.
var ErrNotCustom = errors.New("map selection requires the custom branch")

// Mode tells whether the location comes from a preset or the map.
type Mode int

const (
	ModeNone Mode = iota
	ModePreset
	ModeCustom
)

// CoordinateText is the fallback description of a point.
func CoordinateText(lat, lng float64) string {
	return fmt.Sprintf("Lat: %.4f, Lng: %.4f", lat, lng)
}

// DescribePoint renders a reverse-geocoded address for a point.
func DescribePoint(addr *models.Address, lat, lng float64) string {
	if addr == nil {
		return CoordinateText(lat, lng)
	}
	place := strings.Trim(strings.Join(nonEmpty(addr.Locality(), addr.State), ", "), " ")
	if place == "" {
		return CoordinateText(lat, lng)
	}
	return place + " — " + CoordinateText(lat, lng)
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Selector holds a LocationSelection. It is not safe for concurrent use;
// callers own one Selector per form.
type Selector struct {
	table    *BranchTable
	geocoder domain.Geocoder
	logger   *zerolog.Logger

	branchID    string
	text        string
	marker      *models.Coordinates
	suggestions []models.Place
}

func NewSelector(table *BranchTable, geocoder domain.Geocoder, logger *zerolog.Logger) *Selector {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Selector{table: table, geocoder: geocoder, logger: logger}
}

// SelectBranch switches to a preset or to the custom map mode. A preset
// fills the text from the branch table; switching to custom clears it until
// a point is placed.
func (s *Selector) SelectBranch(id string) error {
	b, ok := s.table.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBranch, id)
	}

	s.branchID = b.ID
	if b.IsCustom() {
		s.text = ""
		s.marker = nil
		return nil
	}

	s.marker = nil
	s.suggestions = nil
	if b.Location != "" {
		s.text = b.Location
	}
	return nil
}

// PlaceMarker moves the single marker to lat/lng and describes the point.
// A geocoder failure degrades to the coordinate text.
func (s *Selector) PlaceMarker(ctx context.Context, lat, lng float64) (string, error) {
	if s.Mode() != ModeCustom {
		return "", ErrNotCustom
	}

	s.marker = &models.Coordinates{Lat: lat, Lng: lng}

	var addr *models.Address
	if s.geocoder != nil {
		var err error
		addr, err = s.geocoder.Reverse(ctx, lat, lng)
		if err != nil {
			s.logger.Warn().Err(err).Float64("lat", lat).Float64("lng", lng).Msg("Reverse geocode failed, using coordinates")
			addr = nil
		}
	}

	s.text = DescribePoint(addr, lat, lng)
	return s.text, nil
}

// ChooseSuggestion places the marker on a search result.
func (s *Selector) ChooseSuggestion(ctx context.Context, place models.Place) (string, error) {
	text, err := s.PlaceMarker(ctx, place.Lat, place.Lng)
	if err != nil {
		return "", err
	}
	s.suggestions = nil
	return text, nil
}

// Search issues one place-search request per call and replaces the
// suggestion list with its result.
func (s *Selector) Search(ctx context.Context, query string) ([]models.Place, error) {
	if strings.TrimSpace(query) == "" {
		s.suggestions = nil
		return nil, nil
	}
	if s.geocoder == nil {
		return nil, errors.New("place search is not configured")
	}
	places, err := s.geocoder.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	s.suggestions = places
	return places, nil
}

// Restore reapplies a saved selection without calling the geocoder.
func (s *Selector) Restore(branchID, text string, marker *models.Coordinates) error {
	if branchID == "" {
		s.branchID, s.text, s.marker = "", text, nil
		return nil
	}
	if _, ok := s.table.Get(branchID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBranch, branchID)
	}
	s.branchID = branchID
	s.text = text
	s.marker = nil
	if marker != nil && s.Mode() == ModeCustom {
		m := *marker
		s.marker = &m
	}
	return nil
}

func (s *Selector) Mode() Mode {
	if s.branchID == "" {
		return ModeNone
	}
	b, _ := s.table.Get(s.branchID)
	if b.IsCustom() {
		return ModeCustom
	}
	return ModePreset
}

func (s *Selector) BranchID() string { return s.branchID }

func (s *Selector) Text() string { return s.text }

// Marker returns a copy of the marker position, or nil.
func (s *Selector) Marker() *models.Coordinates {
	if s.marker == nil {
		return nil
	}
	m := *s.marker
	return &m
}

func (s *Selector) Suggestions() []models.Place {
	return append([]models.Place(nil), s.suggestions...)
}

// Valid reports whether a non-empty location text is selected.
func (s *Selector) Valid() bool {
	return strings.TrimSpace(s.text) != ""
}

// Reset clears the selection.
func (s *Selector) Reset() {
	s.branchID = ""
	s.text = ""
	s.marker = nil
	s.suggestions = nil
}
