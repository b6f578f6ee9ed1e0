package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"rungroj/internal/auth"
	"rungroj/internal/config"
	"rungroj/internal/domain"
	"rungroj/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vehiclesPayload = `[
  {"id":"v-1","model_id":"m-1","status":"available","license_plate":"กข 1234",
   "car_models":{"id":"m-1","name":"Toyota Yaris Ativ","brand":"Toyota","category":"เก๋ง",
     "price_per_day":899.00,"seats":5,"fuel_type":"เบนซิน","transmission":"Automatic",
     "image_url":"","features":{"luggage":3},"rating":4.9}},
  {"id":"v-2","status":"available","vehicle_number":"V-02",
   "car_models":{"id":"m-2","name":"Toyota Fortuner","category":"SUV","price_per_day":2500}}
]`

const reservationPayload = `[{"id":"r-1","user_id":"u-1","vehicle_id":"v-1",
  "pickup_date":"2025-02-10","dropoff_date":"2025-02-12T00:00:00+00:00",
  "pickup_location":"17.386613, 102.776114","service_type":"self_drive","notes":null,
  "status":"pending","total_price":1798.00,"created_at":"2025-02-01T09:00:00.123456+07:00"}]`

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	return NewClient(config.StoreConfig{BaseURL: url + "/", APIKey: "anon", Timeout: time.Second}, nil)
}

func TestListAvailableVehicles(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/rest/v1/vehicles", r.URL.Path)
		assert.Equal(t, "eq.available", r.URL.Query().Get("status"))
		assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, vehiclesPayload)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	vehicles, err := c.ListAvailableVehicles(context.Background(), "ทั้งหมด")
	require.NoError(t, err)
	require.Len(t, vehicles, 2)

	yaris := vehicles[0]
	assert.Equal(t, "Toyota Yaris Ativ", yaris.Name)
	assert.Equal(t, int64(899), yaris.PricePerDay)
	assert.Equal(t, 3, yaris.Features.Luggage)
	assert.Equal(t, 4.9, yaris.Rating.Average)
	assert.Equal(t, models.DefaultImage("Toyota Yaris Ativ"), yaris.ImageURL)

	fortuner := vehicles[1]
	assert.Equal(t, 5, fortuner.Features.Seats, "seat default")
	assert.Equal(t, "เบนซิน", fortuner.Features.Fuel, "fuel default")
	assert.Equal(t, "V-02", fortuner.LicensePlate)
	assert.Equal(t, int32(1), hits.Load())
}

func TestListAvailableVehicles_CategoryFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.SUV", r.URL.Query().Get("car_models.category"))
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	vehicles, err := newTestClient(t, srv.URL).ListAvailableVehicles(context.Background(), "SUV")
	require.NoError(t, err)
	require.Len(t, vehicles, 1, "empty catalog serves the fallback fleet filtered by category")
	assert.Equal(t, "fb-3", vehicles[0].ID)
}

func TestListAvailableVehicles_Fallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	vehicles, err := newTestClient(t, srv.URL).ListAvailableVehicles(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, vehicles, len(models.FallbackFleet()))
}

func TestListAvailableVehicles_Cache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, vehiclesPayload)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.UseRedisCache(rdb, time.Minute)
	ctx := context.Background()

	first, err := c.ListAvailableVehicles(ctx, "")
	require.NoError(t, err)
	second, err := c.ListAvailableVehicles(ctx, "All")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
	assert.True(t, s.Exists("catalog:vehicles:all"))
	assert.Equal(t, time.Minute, s.TTL("catalog:vehicles:all"))
}

func TestGetVehicle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "eq.v-1":
			_, _ = io.WriteString(w, vehiclesPayload)
		default:
			_, _ = io.WriteString(w, `[]`)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	t.Run("Remote", func(t *testing.T) {
		v, err := c.GetVehicle(ctx, "v-1")
		require.NoError(t, err)
		assert.Equal(t, "v-1", v.ID)
	})

	t.Run("FallbackFleet", func(t *testing.T) {
		v, err := c.GetVehicle(ctx, "fb-5")
		require.NoError(t, err)
		assert.Equal(t, "Honda HR-V", v.Name)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := c.GetVehicle(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestUpdateVehicle(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/rest/v1/vehicles", r.URL.Path)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		if r.URL.Query().Get("id") != "eq.v-1" {
			_, _ = io.WriteString(w, `[]`)
			return
		}
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"price_per_day": float64(1250), "image_url": "https://cdn.example.com/v-1.jpg"}, body)
		_, _ = io.WriteString(w, `[{"id":"v-1","status":"available","price_per_day":1250,"image_url":"https://cdn.example.com/v-1.jpg",
		  "car_models":{"id":"m-1","name":"Toyota Yaris Ativ","category":"เก๋ง","price_per_day":899}}]`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.UseRedisCache(rdb, time.Minute)
	ctx := context.Background()
	require.NoError(t, s.Set("catalog:vehicles:all", "[]"))
	require.NoError(t, s.Set("catalog:vehicles:SUV", "[]"))
	require.NoError(t, s.Set("catalog:vehicle:v-1", "{}"))
	require.NoError(t, s.Set("catalog:vehicle:v-2", "{}"))

	price := int64(1250)
	img := "https://cdn.example.com/v-1.jpg"
	v, err := c.UpdateVehicle(ctx, "v-1", models.VehiclePatch{PricePerDay: &price, ImageURL: &img})
	require.NoError(t, err)
	assert.Equal(t, int64(1250), v.PricePerDay)
	assert.Equal(t, img, v.ImageURL)
	assert.Equal(t, "Toyota Yaris Ativ", v.Name)

	assert.False(t, s.Exists("catalog:vehicles:all"))
	assert.False(t, s.Exists("catalog:vehicles:SUV"))
	assert.False(t, s.Exists("catalog:vehicle:v-1"))
	assert.True(t, s.Exists("catalog:vehicle:v-2"))

	_, err = c.UpdateVehicle(ctx, "missing", models.VehiclePatch{PricePerDay: &price})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	negative := int64(-1)
	_, err = c.UpdateVehicle(ctx, "v-1", models.VehiclePatch{PricePerDay: &negative})
	assert.Error(t, err)
}

func TestProfiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/profiles", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("id") != "eq.u-1" {
				_, _ = io.WriteString(w, `[]`)
				return
			}
			_, _ = io.WriteString(w, `[{"id":"u-1","email":"u1@example.com","full_name":"สมชาย","phone":null,
			  "phone_number":"0812345678","role":"authenticated","updated_at":"2025-02-01T09:00:00+07:00"}]`)
		case http.MethodPost:
			assert.Equal(t, "id", r.URL.Query().Get("on_conflict"))
			assert.Equal(t, "return=representation,resolution=merge-duplicates", r.Header.Get("Prefer"))
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]any{"id": "u-1", "phone": "086-634-8619"}, body)
			_, _ = io.WriteString(w, `[{"id":"u-1","full_name":"สมชาย","phone":"086-634-8619"}]`)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	p, err := c.GetProfile(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "สมชาย", p.FullName)
	assert.Equal(t, "0812345678", p.Phone)
	assert.Equal(t, "u1@example.com", p.Email)

	_, err = c.GetProfile(ctx, "u-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	phone := " 086-634-8619 "
	p, err = c.UpdateProfile(ctx, "u-1", models.ProfileUpdate{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "086-634-8619", p.Phone)

	_, err = c.UpdateProfile(ctx, "u-1", models.ProfileUpdate{})
	assert.Error(t, err)
}

func TestCreateReservation(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/reservations", r.URL.Path)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, reservationPayload)
	}))
	defer srv.Close()

	ctx := auth.WithToken(context.Background(), "user-token")
	req := models.ReservationRequest{
		UserID:         "u-1",
		VehicleID:      "v-1",
		PickupDate:     time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
		DropoffDate:    time.Date(2025, 2, 12, 0, 0, 0, 0, time.UTC),
		PickupLocation: "17.386613, 102.776114",
	}
	rec, err := newTestClient(t, srv.URL).CreateReservation(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "self_drive", body["service_type"])
	assert.Equal(t, "2025-02-10T00:00:00Z", body["pickup_date"])

	assert.Equal(t, "r-1", rec.ID)
	assert.Equal(t, models.StatusPending, rec.Status)
	require.NotNil(t, rec.TotalPrice)
	assert.Equal(t, int64(1798), *rec.TotalPrice)
	assert.Equal(t, 10, rec.PickupDate.Day())
	assert.Equal(t, 12, rec.DropoffDate.Day())
	assert.Empty(t, rec.Notes)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestCreateReservation_Errors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		overlap bool
	}{
		{"OverlapCode", http.StatusConflict, `{"code":"OVERLAP","message":"รถคันนี้ถูกจองแล้วในช่วงเวลาดังกล่าว"}`, true},
		{"ExclusionViolation", http.StatusConflict, `{"code":"23P01","message":"conflicting key value violates exclusion constraint"}`, true},
		{"Other", http.StatusInternalServerError, `{"code":"XX000","message":"boom"}`, false},
		{"NoBody", http.StatusBadGateway, ``, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL).CreateReservation(context.Background(), models.ReservationRequest{})
			require.Error(t, err)
			assert.Equal(t, tc.overlap, errors.Is(err, domain.ErrOverlap))

			if tc.overlap {
				var oe *domain.OverlapError
				require.ErrorAs(t, err, &oe)
				assert.NotEmpty(t, oe.Message)
				return
			}
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.Status)
		})
	}
}

func TestReservationQueries(t *testing.T) {
	var lastQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastQuery = r.URL.RawQuery
		if r.Method == http.MethodPatch {
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "confirmed", body["status"])
			if r.URL.Query().Get("id") == "eq.missing" {
				_, _ = io.WriteString(w, `[]`)
				return
			}
			_, _ = io.WriteString(w, `[{"id":"r-1","status":"confirmed"}]`)
			return
		}
		if r.URL.Query().Get("id") == "eq.missing" {
			_, _ = io.WriteString(w, `[]`)
			return
		}
		_, _ = io.WriteString(w, reservationPayload)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	mine, err := c.ListReservationsByUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Contains(t, lastQuery, "user_id=eq.u-1")
	assert.Contains(t, lastQuery, "order=created_at.desc")

	all, err := c.ListReservations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.NotContains(t, lastQuery, "user_id")

	got, err := c.GetReservation(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "r-1", got.ID)

	_, err = c.GetReservation(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	updated, err := c.UpdateReservationStatus(ctx, "r-1", models.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)

	_, err = c.UpdateReservationStatus(ctx, "missing", models.StatusConfirmed)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPing(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		_, _ = io.WriteString(w, `[]`)
	}))
	defer up.Close()
	assert.NoError(t, newTestClient(t, up.URL).Ping(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()
	assert.Error(t, newTestClient(t, down.URL).Ping(context.Background()))
}

func TestTimestamp(t *testing.T) {
	for _, raw := range []string{
		`"2025-02-10"`,
		`"2025-02-10T08:30:00Z"`,
		`"2025-02-10T08:30:00.123456"`,
		`"2025-02-10 08:30:00.123+07"`,
	} {
		var ts timestamp
		require.NoError(t, json.Unmarshal([]byte(raw), &ts), raw)
		assert.Equal(t, 10, ts.Day(), raw)
	}

	var ts timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
	assert.Error(t, json.Unmarshal([]byte(`"10/02/2025"`), &ts))
}
