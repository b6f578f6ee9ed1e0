// Package store talks to the hosted PostgREST backend that owns the catalog
// and reservations.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rungroj/internal/auth"
	"rungroj/internal/config"
	"rungroj/internal/domain"
	"rungroj/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	vehicleSelect     = "*,car_models!inner(*)"
	reservationSelect = "*,vehicles(*,car_models(*))"

	codeOverlap           = "OVERLAP"
	codeExclusionViolated = "23P01"
)

// Client implements domain.Store against the backend's REST interface.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

var _ domain.Store = (*Client)(nil)

func NewClient(cfg config.StoreConfig, logger *zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "store").Logger()
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     &l,
	}
}

// UseRedisCache configures optional Redis caching for catalog reads.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d", e.Status)
}

// ListAvailableVehicles returns bookable vehicles newest first. An empty or
// failing catalog degrades to the built-in fleet.
func (c *Client) ListAvailableVehicles(ctx context.Context, category string) ([]models.Vehicle, error) {
	q := url.Values{}
	q.Set("select", vehicleSelect)
	q.Set("status", "eq."+models.VehicleAvailable)
	q.Set("order", "created_at.desc")
	cacheKey := "catalog:vehicles:all"
	if !models.AllCategories(category) {
		q.Set("car_models.category", "eq."+category)
		cacheKey = "catalog:vehicles:" + category
	}

	var vehicles []models.Vehicle
	if c.readCache(ctx, cacheKey, &vehicles) {
		return vehicles, nil
	}

	var rows []vehicleRow
	if err := c.doGet(ctx, c.endpoint("vehicles", q), &rows); err != nil {
		c.logger.Warn().Err(err).Str("category", category).Msg("Catalog unavailable, serving fallback fleet")
		return models.FilterByCategory(models.FallbackFleet(), category), nil
	}
	if len(rows) == 0 {
		return models.FilterByCategory(models.FallbackFleet(), category), nil
	}

	vehicles = make([]models.Vehicle, 0, len(rows))
	for _, row := range rows {
		vehicles = append(vehicles, row.toModel())
	}
	c.writeCache(ctx, cacheKey, vehicles)
	return vehicles, nil
}

// GetVehicle loads one vehicle; unknown ids are looked up in the fallback fleet.
func (c *Client) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	cacheKey := "catalog:vehicle:" + id
	var cached models.Vehicle
	if c.readCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	q := url.Values{}
	q.Set("select", "*,car_models(*)")
	q.Set("id", "eq."+id)

	var rows []vehicleRow
	err := c.doGet(ctx, c.endpoint("vehicles", q), &rows)
	if err == nil && len(rows) > 0 {
		v := rows[0].toModel()
		c.writeCache(ctx, cacheKey, v)
		return &v, nil
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("vehicle_id", id).Msg("Vehicle lookup failed, checking fallback fleet")
	}
	if v, ok := models.FallbackVehicle(id); ok {
		return &v, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("vehicle %s: %w", id, domain.ErrNotFound)
}

// UpdateVehicle patches the vehicle row and drops every cached catalog
// read that may include it.
func (c *Client) UpdateVehicle(ctx context.Context, id string, patch models.VehiclePatch) (*models.Vehicle, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("select", "*,car_models(*)")

	var rows []vehicleRow
	if err := c.doJSON(ctx, http.MethodPatch, c.endpoint("vehicles", q), patch, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("vehicle %s: %w", id, domain.ErrNotFound)
	}
	c.invalidateCatalog(ctx, id)
	v := rows[0].toModel()
	return &v, nil
}

// CreateReservation inserts a pending reservation and returns the stored row
// with the backend's computed total.
func (c *Client) CreateReservation(ctx context.Context, req models.ReservationRequest) (*models.ReservationRecord, error) {
	body := reservationInsert{
		UserID:         req.UserID,
		VehicleID:      req.VehicleID,
		PickupDate:     req.PickupDate.Format(time.RFC3339),
		DropoffDate:    req.DropoffDate.Format(time.RFC3339),
		PickupLocation: req.PickupLocation,
		ServiceType:    req.ServiceType,
		Notes:          req.Notes,
		Status:         models.StatusPending,
	}
	if body.ServiceType == "" {
		body.ServiceType = models.ServiceSelfDrive
	}

	var rows []reservationRow
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("reservations", nil), body, &rows); err != nil {
		return nil, mapError(err)
	}
	if len(rows) == 0 {
		return nil, errors.New("create reservation: empty response")
	}
	rec := rows[0].toModel()
	return &rec, nil
}

func (c *Client) GetReservation(ctx context.Context, id string) (*models.ReservationRecord, error) {
	q := url.Values{}
	q.Set("select", reservationSelect)
	q.Set("id", "eq."+id)

	var rows []reservationRow
	if err := c.doGet(ctx, c.endpoint("reservations", q), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	rec := rows[0].toModel()
	return &rec, nil
}

func (c *Client) ListReservationsByUser(ctx context.Context, userID string) ([]models.ReservationRecord, error) {
	q := url.Values{}
	q.Set("select", reservationSelect)
	q.Set("user_id", "eq."+userID)
	q.Set("order", "created_at.desc")
	return c.listReservations(ctx, q)
}

func (c *Client) ListReservations(ctx context.Context) ([]models.ReservationRecord, error) {
	q := url.Values{}
	q.Set("select", reservationSelect)
	q.Set("order", "created_at.desc")
	return c.listReservations(ctx, q)
}

func (c *Client) listReservations(ctx context.Context, q url.Values) ([]models.ReservationRecord, error) {
	var rows []reservationRow
	if err := c.doGet(ctx, c.endpoint("reservations", q), &rows); err != nil {
		return nil, err
	}
	out := make([]models.ReservationRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (c *Client) UpdateReservationStatus(ctx context.Context, id string, status models.ReservationStatus) (*models.ReservationRecord, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("select", reservationSelect)

	body := map[string]any{"status": status}
	var rows []reservationRow
	if err := c.doJSON(ctx, http.MethodPatch, c.endpoint("reservations", q), body, &rows); err != nil {
		return nil, mapError(err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	rec := rows[0].toModel()
	return &rec, nil
}

func (c *Client) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+userID)

	var rows []profileRow
	if err := c.doGet(ctx, c.endpoint("profiles", q), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("profile %s: %w", userID, domain.ErrNotFound)
	}
	p := rows[0].toModel()
	return &p, nil
}

// UpdateProfile upserts the caller's row; the backend merges on id.
func (c *Client) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	if err := update.Normalize(); err != nil {
		return nil, err
	}
	body := map[string]any{"id": userID}
	if update.FullName != nil {
		body["full_name"] = *update.FullName
	}
	if update.Phone != nil {
		body["phone"] = *update.Phone
	}

	q := url.Values{}
	q.Set("on_conflict", "id")
	var rows []profileRow
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("profiles", q), body, &rows, "resolution=merge-duplicates"); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("update profile: empty response")
	}
	p := rows[0].toModel()
	return &p, nil
}

// Ping issues the cheapest catalog query.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("limit", "1")
	return c.doGet(ctx, c.endpoint("vehicles", q), nil)
}

func (c *Client) endpoint(table string, q url.Values) string {
	u := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// mapError turns the backend's overlap signal into domain.ErrOverlap.
func mapError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case codeOverlap, codeExclusionViolated:
			return &domain.OverlapError{Code: apiErr.Code, Message: apiErr.Message}
		}
	}
	return err
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) invalidateCatalog(ctx context.Context, vehicleID string) {
	if c.redis == nil {
		return
	}
	keys := []string{"catalog:vehicle:" + vehicleID}
	iter := c.redis.Scan(ctx, 0, "catalog:vehicles:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Catalog cache scan failed")
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Str("vehicle_id", vehicleID).Msg("Catalog cache invalidation failed")
	}
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("Catalog cache write failed")
	}
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.addHeaders(ctx, req)
	return c.do(req, out)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body any, out any, prefer ...string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", strings.Join(append([]string{"return=representation"}, prefer...), ","))
	c.addHeaders(ctx, req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// addHeaders forwards the caller's access token so row level security
// applies; the service key is used otherwise.
func (c *Client) addHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if token := auth.TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
