package iot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liyu1981.xyz/home-state-monitor/pkg/models"
)

func TestMetricSummaryEmpty(t *testing.T) {
	var m MetricSummary
	_, ok := m.Avg()
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	samples := []models.SensorSample{
		{DeviceID: "a", DeviceName: "寝室", Source: models.SourceSwitchBot, Temperature: ptr(20), Humidity: ptr(40)},
		{DeviceID: "a", DeviceName: "寝室", Source: models.SourceSwitchBot, Temperature: ptr(24)},
		{DeviceID: "a", DeviceName: "寝室", Source: models.SourceSwitchBot, Temperature: ptr(22.5)},
		{DeviceID: "b", DeviceName: "Indoor", Source: models.SourceNetatmo, CO2: ptr(700)},
	}

	out := Summarize(samples)
	require.Len(t, out, 2)
	assert.Equal(t, "[NA] Indoor", out[0].Label)

	temp := out[1].Metrics[models.FieldTemperature]
	assert.Equal(t, 3, temp.Count)
	assert.Equal(t, 20.0, temp.Min)
	assert.Equal(t, 24.0, temp.Max)
	avg, ok := temp.Avg()
	require.True(t, ok)
	assert.InDelta(t, 22.1666, avg, 0.001)

	assert.Equal(t, 1, out[1].Metrics[models.FieldHumidity].Count)
	assert.NotContains(t, out[1].Metrics, models.FieldCO2)
}

func TestFormatSummary(t *testing.T) {
	assert.Equal(t, "データなし", FormatSummary(nil, "ja"))
	assert.Equal(t, "no data", FormatSummary(nil, "en"))

	out := Summarize([]models.SensorSample{
		{DeviceID: "a", DeviceName: "寝室", Source: models.SourceSwitchBot, Temperature: ptr(20), Humidity: ptr(41)},
		{DeviceID: "a", DeviceName: "寝室", Source: models.SourceSwitchBot, Temperature: ptr(21), Humidity: ptr(44)},
	})
	assert.Equal(t,
		"[SB] 寝室: temperature min 20.0 / max 21.0 / avg 20.5, humidity min 41 / max 44 / avg 43",
		FormatSummary(out, "en"))

	empty := []DeviceSummary{{DeviceID: "x", Label: "[SB] x", Metrics: map[string]MetricSummary{}}}
	assert.Equal(t, "[SB] x: no data", FormatSummary(empty, "en"))
}

func TestStartupMessage(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	msg := StartupMessage(12, at, "en")
	assert.Equal(t, "Home monitor started", msg.Title)
	assert.Equal(t, "Started monitoring 12 devices at 2024-05-01 09:30:00", msg.Text)
	assert.Empty(t, msg.ImageURL)

	msg = StartupMessage(3, at, "ja")
	assert.Contains(t, msg.Text, "3 台")
}
