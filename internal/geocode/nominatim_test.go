package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"rungroj/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	logger := zerolog.Nop()
	return NewClient(config.GeocodeConfig{BaseURL: srv.URL + "/", UserAgent: "rungroj-test", Language: "en"}, &logger)
}

func TestSearch(t *testing.T) {
	t.Run("ParsesCandidates", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/search", r.URL.Path)
			assert.Equal(t, "json", r.URL.Query().Get("format"))
			assert.Equal(t, "udon", r.URL.Query().Get("q"))
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			assert.Equal(t, "en", r.URL.Query().Get("accept-language"))
			assert.Equal(t, "rungroj-test", r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte(`[
				{"display_name":"Udon Thani","lat":"17.4138","lon":"102.7872"},
				{"display_name":"Broken","lat":"x","lon":"1"}
			]`))
		})

		places, err := c.Search(context.Background(), " udon ")
		require.NoError(t, err)
		require.Len(t, places, 1)
		assert.Equal(t, "Udon Thani", places[0].DisplayName)
		assert.InDelta(t, 17.4138, places[0].Lat, 1e-9)
		assert.InDelta(t, 102.7872, places[0].Lng, 1e-9)
	})

	t.Run("EmptyQuery", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		})
		_, err := c.Search(context.Background(), "  ")
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("UpstreamError", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		_, err := c.Search(context.Background(), "udon")
		assert.Error(t, err)
	})
}

func TestReverse(t *testing.T) {
	t.Run("ParsesAddress", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/reverse", r.URL.Path)
			assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
			assert.Equal(t, "17.5", r.URL.Query().Get("lat"))
			assert.Equal(t, "102.75", r.URL.Query().Get("lon"))
			_, _ = w.Write([]byte(`{"display_name":"Somewhere","address":{"town":"Nong Han","state":"Udon Thani"}}`))
		})

		addr, err := c.Reverse(context.Background(), 17.5, 102.75)
		require.NoError(t, err)
		assert.Equal(t, "Nong Han", addr.Locality())
		assert.Equal(t, "Udon Thani", addr.State)
	})

	t.Run("UnableToGeocode", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
		})
		_, err := c.Reverse(context.Background(), 0, 0)
		assert.Error(t, err)
	})

	t.Run("BadJSON", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		})
		_, err := c.Reverse(context.Background(), 1, 1)
		assert.Error(t, err)
	})
}
