package chart

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

func co2Request() models.ChartRequest {
	jst := time.FixedZone("JST", 9*3600)
	return models.ChartRequest{
		Kind:  models.ChartIndoorCO2,
		Title: "室内 CO2",
		Unit:  "ppm",
		Series: []models.Series{{
			DeviceID: "co2",
			Label:    "リビング",
			Color:    "#4a90e2",
			Points: []models.Point{
				{At: time.Date(2024, 6, 1, 21, 0, 0, 0, jst), Value: 650},
				{At: time.Date(2024, 6, 1, 21, 15, 0, 0, jst), Value: 1100},
			},
		}},
		Annotations: []models.Annotation{{Value: 1000, Label: "1000ppm", Color: "#f5a623"}},
	}
}

func TestRenderPostsConfig(t *testing.T) {
	common.SetTestLoggerNop()

	payloads := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chart/create", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		payloads <- body
		_, _ = w.Write([]byte(`{"success":true,"url":"https://quickchart.io/chart/render/zf-abc"}`))
	}))
	defer srv.Close()

	q := New(srv.URL + "/")
	url, err := q.Render(context.Background(), co2Request())
	require.NoError(t, err)
	assert.Equal(t, "https://quickchart.io/chart/render/zf-abc", url)

	body := <-payloads
	assert.Equal(t, "4", body["version"])
	assert.Equal(t, float64(800), body["width"])

	chart := body["chart"].(map[string]any)
	datasets := chart["data"].(map[string]any)["datasets"].([]any)
	require.Len(t, datasets, 1)
	first := datasets[0].(map[string]any)
	assert.Equal(t, "リビング", first["label"])
	points := first["data"].([]any)
	assert.Equal(t, map[string]any{"x": "2024-06-01T21:00:00", "y": float64(650)}, points[0])

	plugins := chart["options"].(map[string]any)["plugins"].(map[string]any)
	lines := plugins["annotation"].(map[string]any)["annotations"].(map[string]any)
	assert.Equal(t, float64(1000), lines["line0"].(map[string]any)["yMin"])
}

func TestRenderRetriesServerErrors(t *testing.T) {
	common.SetTestLoggerNop()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"url":"https://qc/x"}`))
	}))
	defer srv.Close()

	q := New(srv.URL, WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))
	url, err := q.Render(context.Background(), co2Request())
	require.NoError(t, err)
	assert.Equal(t, "https://qc/x", url)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRenderBadRequestIsPermanent(t *testing.T) {
	common.SetTestLoggerNop()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	q := New(srv.URL, WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))
	_, err := q.Render(context.Background(), co2Request())
	assert.ErrorContains(t, err, "http 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRenderWithoutSeries(t *testing.T) {
	_, err := New("").Render(context.Background(), models.ChartRequest{Kind: models.ChartIndoorCO2})
	assert.ErrorIs(t, err, ErrNoSeries)
}

func TestConfigLegendOnlyForSeveralSeries(t *testing.T) {
	req := co2Request()
	cfg := Config(req)
	legend := cfg.Options["plugins"].(map[string]any)["legend"].(map[string]any)
	assert.Equal(t, false, legend["display"])

	req.Series = append(req.Series, models.Series{Label: "寝室"})
	cfg = Config(req)
	legend = cfg.Options["plugins"].(map[string]any)["legend"].(map[string]any)
	assert.Equal(t, true, legend["display"])
}
