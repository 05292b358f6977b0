package netatmo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/models"
	_ "liyu1981.xyz/home-state-monitor/pkg/testing"
)

const stationsFixture = `{
  "status": "ok",
  "body": {
    "devices": [{
      "_id": "70:ee:50:00:00:01",
      "station_name": "Home",
      "module_name": "Living",
      "type": "NAMain",
      "dashboard_data": {"time_utc": 1717243200, "Temperature": 23.1, "Humidity": 48, "CO2": 640, "Pressure": 1012.3, "Noise": 38},
      "modules": [
        {"_id": "02:00:00:00:00:01", "module_name": "Garden", "type": "NAModule1", "battery_percent": 71,
         "dashboard_data": {"time_utc": 1717243150, "Temperature": 17.4, "Humidity": 80}},
        {"_id": "03:00:00:00:00:01", "module_name": "Rain", "type": "NAModule3", "battery_percent": 90,
         "dashboard_data": {"time_utc": 1717243150, "Rain": 0.2, "sum_rain_24": 3.1}},
        {"_id": "03:00:00:00:00:02", "module_name": "Bedroom", "type": "NAModule4"}
      ]
    }]
  }
}`

type fakeNetatmo struct {
	tokenCalls atomic.Int32
	apiCalls   atomic.Int32
	failAPI    int32
	rotate     bool
}

func (f *fakeNetatmo) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/token":
			f.tokenCalls.Add(1)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "initial-refresh", r.PostForm.Get("refresh_token"))
			assert.Equal(t, "cid", r.PostForm.Get("client_id"))
			assert.Equal(t, "csecret", r.PostForm.Get("client_secret"))

			resp := map[string]any{"access_token": "access-1", "token_type": "Bearer", "expires_in": 10800}
			if f.rotate {
				resp["refresh_token"] = "rotated-refresh"
			} else {
				resp["refresh_token"] = "initial-refresh"
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		case "/api/getstationsdata":
			n := f.apiCalls.Add(1)
			assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
			if n <= f.failAPI {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(stationsFixture))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestClient(t *testing.T, fake *fakeNetatmo, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	opts = append([]Option{
		WithBaseURL(srv.URL),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	}, opts...)
	c, err := NewClient(Credentials{ClientID: "cid", ClientSecret: "csecret", RefreshToken: "initial-refresh"}, opts...)
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Credentials{ClientID: "a", ClientSecret: "b"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestFetchReadings(t *testing.T) {
	common.SetTestLoggerNop()

	fake := &fakeNetatmo{}
	c := newTestClient(t, fake)

	snaps, err := c.FetchReadings(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	main := snaps[0]
	assert.Equal(t, "70:ee:50:00:00:01", main.DeviceID)
	assert.Equal(t, "Living", main.Name)
	assert.Equal(t, models.DeviceTypeStation, main.Type)
	assert.Equal(t, models.SourceNetatmo, main.Source)
	assert.Equal(t, ModuleMain, main.ModuleType)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), main.ObservedAt)
	assert.Equal(t, map[string]any{
		models.FieldTemperature: 23.1,
		models.FieldHumidity:    float64(48),
		models.FieldCO2:         float64(640),
		models.FieldPressure:    1012.3,
		models.FieldNoise:       float64(38),
	}, main.Fields)

	garden := snaps[1]
	assert.Equal(t, models.DeviceTypeOutdoorModule, garden.Type)
	assert.Equal(t, float64(71), garden.Fields[models.FieldBattery])
	assert.Equal(t, 17.4, garden.Fields[models.FieldTemperature])

	rain := snaps[2]
	assert.Equal(t, models.DeviceTypeOutdoorModule, rain.Type)
	assert.Equal(t, 3.1, rain.Fields["rain_24h"])

	// the access token is reused across calls
	_, err = c.FetchReadings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.tokenCalls.Load())
}

func TestFetchReadingsRetriesGatewayErrors(t *testing.T) {
	common.SetTestLoggerNop()

	fake := &fakeNetatmo{failAPI: 2}
	c := newTestClient(t, fake)

	snaps, err := c.FetchReadings(context.Background())
	require.NoError(t, err)
	assert.Len(t, snaps, 3)
	assert.Equal(t, int32(3), fake.apiCalls.Load())
}

func TestRefreshTokenRotation(t *testing.T) {
	common.SetTestLoggerNop()

	var rotated string
	fake := &fakeNetatmo{rotate: true}
	c := newTestClient(t, fake, WithOnRotate(func(token string) { rotated = token }))

	_, err := c.FetchReadings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rotated-refresh", rotated)
	assert.Equal(t, "rotated-refresh", c.RefreshToken())
}

func TestTokenRefreshFailureIsNotRetried(t *testing.T) {
	common.SetTestLoggerNop()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Credentials{ClientID: "cid", ClientSecret: "csecret", RefreshToken: "revoked"},
		WithBaseURL(srv.URL),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))
	require.NoError(t, err)

	_, err = c.FetchReadings(context.Background())
	assert.ErrorContains(t, err, "refresh access token")
	assert.Equal(t, int32(1), calls.Load())
}
