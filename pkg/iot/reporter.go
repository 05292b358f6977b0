package iot

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/metrics"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

// CO2 reference lines drawn on the indoor CO2 chart.
const (
	co2Caution = 1000
	co2Warning = 1500
)

var seriesPalette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231", "#911eb4",
	"#42d4f4", "#f032e6", "#bfef45", "#469990", "#9a6324",
}

type SampleReader interface {
	SamplesSince(since, until time.Time, outdoor bool) ([]models.SensorSample, error)
}

type chartDef struct {
	kind    models.ChartKind
	outdoor bool
	field   string
	unit    string
}

var chartDefs = []chartDef{
	{models.ChartOutdoorTemperature, true, models.FieldTemperature, "°C"},
	{models.ChartOutdoorHumidity, true, models.FieldHumidity, "%"},
	{models.ChartIndoorTemperature, false, models.FieldTemperature, "°C"},
	{models.ChartIndoorHumidity, false, models.FieldHumidity, "%"},
	{models.ChartIndoorCO2, false, models.FieldCO2, "ppm"},
}

var chartTitles = map[string]map[models.ChartKind]string{
	"ja": {
		models.ChartOutdoorTemperature: "屋外 気温",
		models.ChartOutdoorHumidity:    "屋外 湿度",
		models.ChartIndoorTemperature:  "室内 気温",
		models.ChartIndoorHumidity:     "室内 湿度",
		models.ChartIndoorCO2:          "室内 CO2",
	},
	"en": {
		models.ChartOutdoorTemperature: "Outdoor temperature",
		models.ChartOutdoorHumidity:    "Outdoor humidity",
		models.ChartIndoorTemperature:  "Indoor temperature",
		models.ChartIndoorHumidity:     "Indoor humidity",
		models.ChartIndoorCO2:          "Indoor CO2",
	},
}

type Report struct {
	From    time.Time
	To      time.Time
	Daily   bool
	Charts  []models.ChartRequest
	Summary []DeviceSummary
}

// Reporter builds the periodic chart report. Series timestamps are converted
// to Location; storage stays in UTC.
type Reporter struct {
	Store    SampleReader
	Renderer Renderer
	Poster   Poster
	Location *time.Location
	Interval time.Duration
	Daily    bool
	Bucket   time.Duration
	Locale   string

	mu       sync.Mutex
	lastTick time.Time
}

func (r *Reporter) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

func (r *Reporter) windowStart(now time.Time) time.Time {
	if r.Daily {
		y, m, d := now.In(r.location()).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, r.location())
	}

	r.mu.Lock()
	last := r.lastTick
	r.mu.Unlock()
	if !last.IsZero() {
		return last
	}

	interval := r.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	return now.Add(-interval)
}

func (r *Reporter) BuildReport(now time.Time) (*Report, error) {
	from := r.windowStart(now)

	outdoor, err := r.Store.SamplesSince(from, now, true)
	if err != nil {
		return nil, fmt.Errorf("query outdoor samples: %w", err)
	}
	indoor, err := r.Store.SamplesSince(from, now, false)
	if err != nil {
		return nil, fmt.Errorf("query indoor samples: %w", err)
	}

	titles, ok := chartTitles[r.Locale]
	if !ok {
		titles = chartTitles["ja"]
	}

	report := &Report{From: from, To: now, Daily: r.Daily}
	for _, def := range chartDefs {
		samples := indoor
		if def.outdoor {
			samples = outdoor
		}

		series := buildSeries(samples, def.field, from, r.Bucket, r.location())
		if len(series) == 0 {
			metrics.IncReportChart(metrics.ChartEmpty)
			continue
		}

		chart := models.ChartRequest{
			Kind:   def.kind,
			Title:  titles[def.kind],
			Unit:   def.unit,
			Series: series,
		}
		if def.kind == models.ChartIndoorCO2 {
			chart.Annotations = []models.Annotation{
				{Value: co2Caution, Label: "1000ppm", Color: "#f5a623"},
				{Value: co2Warning, Label: "1500ppm", Color: "#d0021b"},
			}
		}
		report.Charts = append(report.Charts, chart)
	}

	if r.Daily {
		report.Summary = Summarize(append(append([]models.SensorSample{}, outdoor...), indoor...))
	}

	return report, nil
}

// RunTick builds and delivers one report. Render or delivery failures skip
// that chart only.
func (r *Reporter) RunTick(ctx context.Context, now time.Time) error {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryReporter),
	)

	report, err := r.BuildReport(now)
	if err != nil {
		logger.Error("Failed to build report", zap.Error(err))
		return err
	}

	r.mu.Lock()
	r.lastTick = now
	r.mu.Unlock()

	logger.Info("Report built",
		zap.Time("from", report.From),
		zap.Time("to", report.To),
		zap.Int("charts", len(report.Charts)))

	window := fmt.Sprintf("%s - %s",
		report.From.In(r.location()).Format("2006-01-02 15:04"),
		report.To.In(r.location()).Format("2006-01-02 15:04"))

	for _, chart := range report.Charts {
		url, err := r.Renderer.Render(ctx, chart)
		if err != nil {
			logger.Warn("Failed to render chart", zap.String("kind", string(chart.Kind)), zap.Error(err))
			metrics.IncReportChart(metrics.ChartFailed)
			continue
		}
		metrics.IncReportChart(metrics.ChartRendered)

		msg := models.Message{Title: chart.Title, Text: window, ImageURL: url}
		if err := r.Poster.Post(ctx, models.ChannelUpdate, msg); err != nil {
			logger.Warn("Failed to post chart", zap.String("kind", string(chart.Kind)), zap.Error(err))
			metrics.IncNotification(models.ChannelUpdate, metrics.NotifyFailed)
			continue
		}
		metrics.IncNotification(models.ChannelUpdate, metrics.NotifySent)
	}

	if report.Daily {
		msg := models.Message{
			Title: summaryTitle(r.Locale),
			Text:  FormatSummary(report.Summary, r.Locale),
		}
		if err := r.Poster.Post(ctx, models.ChannelUpdate, msg); err != nil {
			logger.Warn("Failed to post daily summary", zap.Error(err))
			metrics.IncNotification(models.ChannelUpdate, metrics.NotifyFailed)
		} else {
			metrics.IncNotification(models.ChannelUpdate, metrics.NotifySent)
		}
	}

	return nil
}

func seriesLabel(s models.SensorSample) string {
	prefix := "[SB]"
	if s.Source == models.SourceNetatmo {
		prefix = "[NA]"
	}
	name := s.DeviceName
	if name == "" {
		name = s.DeviceID
	}
	return prefix + " " + name
}

// seriesColor is derived from the device id so a device keeps its color
// across reports.
func seriesColor(deviceID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(deviceID))
	return seriesPalette[h.Sum32()%uint32(len(seriesPalette))]
}

func sampleValue(s models.SensorSample, field string) *float64 {
	switch field {
	case models.FieldTemperature:
		return s.Temperature
	case models.FieldHumidity:
		return s.Humidity
	case models.FieldCO2:
		return s.CO2
	case models.FieldPressure:
		return s.Pressure
	case models.FieldNoise:
		return s.Noise
	}
	return nil
}

// buildSeries groups samples per device. With a positive bucket, readings in
// the same bucket (aligned to from) are averaged into one point.
func buildSeries(samples []models.SensorSample, field string, from time.Time, bucket time.Duration, loc *time.Location) []models.Series {
	type acc struct {
		series  models.Series
		buckets map[int64]*MetricSummary
		order   []int64
	}
	byDevice := map[string]*acc{}

	for _, s := range samples {
		v := sampleValue(s, field)
		if v == nil {
			continue
		}
		a, ok := byDevice[s.DeviceID]
		if !ok {
			a = &acc{
				series: models.Series{
					DeviceID: s.DeviceID,
					Label:    seriesLabel(s),
					Color:    seriesColor(s.DeviceID),
				},
				buckets: map[int64]*MetricSummary{},
			}
			byDevice[s.DeviceID] = a
		}

		if bucket <= 0 {
			a.series.Points = append(a.series.Points, models.Point{At: s.RecordedAt.In(loc), Value: *v})
			continue
		}

		idx := int64(s.RecordedAt.Sub(from) / bucket)
		m, ok := a.buckets[idx]
		if !ok {
			m = &MetricSummary{}
			a.buckets[idx] = m
			a.order = append(a.order, idx)
		}
		m.Add(*v)
	}

	out := make([]models.Series, 0, len(byDevice))
	for _, a := range byDevice {
		if bucket > 0 {
			sort.Slice(a.order, func(i, j int) bool { return a.order[i] < a.order[j] })
			for _, idx := range a.order {
				avg, _ := a.buckets[idx].Avg()
				at := from.Add(time.Duration(idx) * bucket).In(loc)
				a.series.Points = append(a.series.Points, models.Point{At: at, Value: avg})
			}
		}
		if len(a.series.Points) > 0 {
			out = append(out, a.series)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].DeviceID < out[j].DeviceID
	})
	return out
}
