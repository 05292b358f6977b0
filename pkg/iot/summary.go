package iot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"liyu1981.xyz/home-state-monitor/pkg/models"
)

var summaryFields = []string{
	models.FieldTemperature,
	models.FieldHumidity,
	models.FieldCO2,
	models.FieldPressure,
	models.FieldNoise,
}

// MetricSummary accumulates min, max and mean without keeping the readings.
type MetricSummary struct {
	Count int
	Min   float64
	Max   float64
	Sum   float64
}

func (m *MetricSummary) Add(v float64) {
	if m.Count == 0 || v < m.Min {
		m.Min = v
	}
	if m.Count == 0 || v > m.Max {
		m.Max = v
	}
	m.Sum += v
	m.Count++
}

// Avg is false for an empty window.
func (m MetricSummary) Avg() (float64, bool) {
	if m.Count == 0 {
		return 0, false
	}
	return m.Sum / float64(m.Count), true
}

type DeviceSummary struct {
	DeviceID string
	Label    string
	Metrics  map[string]MetricSummary
}

func Summarize(samples []models.SensorSample) []DeviceSummary {
	byDevice := map[string]*DeviceSummary{}
	for _, s := range samples {
		d, ok := byDevice[s.DeviceID]
		if !ok {
			d = &DeviceSummary{DeviceID: s.DeviceID, Label: seriesLabel(s), Metrics: map[string]MetricSummary{}}
			byDevice[s.DeviceID] = d
		}
		for _, field := range summaryFields {
			v := sampleValue(s, field)
			if v == nil {
				continue
			}
			m := d.Metrics[field]
			m.Add(*v)
			d.Metrics[field] = m
		}
	}

	out := make([]DeviceSummary, 0, len(byDevice))
	for _, d := range byDevice {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].DeviceID < out[j].DeviceID
	})
	return out
}

func summaryTitle(locale string) string {
	if locale == "en" {
		return "Daily summary"
	}
	return "日次サマリー"
}

func FormatSummary(summaries []DeviceSummary, locale string) string {
	noData := "データなし"
	if locale == "en" {
		noData = "no data"
	}

	var b strings.Builder
	for _, d := range summaries {
		var parts []string
		for _, field := range summaryFields {
			m, ok := d.Metrics[field]
			if !ok {
				continue
			}
			avg, ok := m.Avg()
			if !ok {
				parts = append(parts, fmt.Sprintf("%s %s", field, noData))
				continue
			}
			spec, _ := models.LookupField(field)
			parts = append(parts, fmt.Sprintf("%s min %s / max %s / avg %s", field,
				spec.FormatValue(m.Min), spec.FormatValue(m.Max), spec.FormatValue(avg)))
		}
		if len(parts) == 0 {
			parts = append(parts, noData)
		}
		fmt.Fprintf(&b, "%s: %s\n", d.Label, strings.Join(parts, ", "))
	}
	if b.Len() == 0 {
		return noData
	}
	return strings.TrimRight(b.String(), "\n")
}

// StartupMessage announces the process start on the update channel.
func StartupMessage(deviceCount int, at time.Time, locale string) models.Message {
	if locale == "en" {
		return models.Message{
			Title: "Home monitor started",
			Text:  fmt.Sprintf("Started monitoring %d devices at %s", deviceCount, at.Format("2006-01-02 15:04:05")),
		}
	}
	return models.Message{
		Title: "ホームモニター起動",
		Text:  fmt.Sprintf("%d 台のデバイスの監視を開始しました (%s)", deviceCount, at.Format("2006-01-02 15:04:05")),
	}
}
