// Package geocode talks to a Nominatim compatible place-search service.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rungroj/internal/config"
	"rungroj/internal/metrics"
	"rungroj/internal/models"

	"github.com/rs/zerolog"
)

const searchLimit = 5

var ErrEmptyQuery = errors.New("geocode: empty query")

// Client is a Nominatim client. It carries no cache and no debounce: every
// call is one upstream request.
type Client struct {
	baseURL    string
	userAgent  string
	language   string
	httpClient *http.Client
	logger     *zerolog.Logger
}

func NewClient(cfg config.GeocodeConfig, logger *zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		language:   cfg.Language,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type searchResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

type reverseResult struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
	Error string `json:"error"`
}

// Search returns up to five candidates for a free-text query.
func (c *Client) Search(ctx context.Context, query string) ([]models.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("accept-language", c.language)
	params.Set("limit", strconv.Itoa(searchLimit))

	var raw []searchResult
	if err := c.get(ctx, "/search", params, &raw); err != nil {
		metrics.IncGeocode("search", "error")
		return nil, err
	}

	places := make([]models.Place, 0, len(raw))
	for _, r := range raw {
		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lng, errLng := strconv.ParseFloat(r.Lon, 64)
		if errLat != nil || errLng != nil {
			c.logger.Warn().Str("display_name", r.DisplayName).Msg("Skipping place with bad coordinates")
			continue
		}
		places = append(places, models.Place{DisplayName: r.DisplayName, Lat: lat, Lng: lng})
	}
	metrics.IncGeocode("search", "ok")
	return places, nil
}

// Reverse describes the point at lat/lng.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (*models.Address, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("accept-language", c.language)

	var raw reverseResult
	if err := c.get(ctx, "/reverse", params, &raw); err != nil {
		metrics.IncGeocode("reverse", "error")
		return nil, err
	}
	if raw.Error != "" {
		metrics.IncGeocode("reverse", "error")
		return nil, fmt.Errorf("geocode: reverse: %s", raw.Error)
	}

	metrics.IncGeocode("reverse", "ok")
	return &models.Address{
		DisplayName: raw.DisplayName,
		City:        raw.Address.City,
		Town:        raw.Address.Town,
		Village:     raw.Address.Village,
		State:       raw.Address.State,
		Country:     raw.Address.Country,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("geocode: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("geocode: %s: http %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("geocode: %s: decode: %w", path, err)
	}
	return nil
}
