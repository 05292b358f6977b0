package iot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/db"
	"liyu1981.xyz/home-state-monitor/pkg/iot/mocks"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

func newReportStore(t *testing.T) *db.DB {
	store, err := db.Open(db.UseNamedMemorySqliteDialector(uuid.NewString()))
	require.NoError(t, err)
	return store
}

func seedSample(t *testing.T, store *db.DB, s models.SensorSample) {
	s.RecordedAt = s.RecordedAt.UTC()
	require.NoError(t, store.Conn.Create(&s).Error)
}

func TestBuildReportOmitsEmptyCO2Chart(t *testing.T) {
	common.SetTestLoggerNop()

	store := newReportStore(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	seedSample(t, store, models.SensorSample{DeviceID: "out", DeviceName: "ベランダ", Source: models.SourceSwitchBot,
		RecordedAt: now.Add(-30 * time.Minute), Temperature: ptr(25.1), Humidity: ptr(60), IsOutdoor: true})
	seedSample(t, store, models.SensorSample{DeviceID: "in", DeviceName: "寝室", Source: models.SourceSwitchBot,
		RecordedAt: now.Add(-20 * time.Minute), Temperature: ptr(24.0), Humidity: ptr(45)})
	// outside the window
	seedSample(t, store, models.SensorSample{DeviceID: "in", DeviceName: "寝室", Source: models.SourceSwitchBot,
		RecordedAt: now.Add(-3 * time.Hour), CO2: ptr(800)})

	r := &Reporter{Store: store, Interval: time.Hour, Locale: "en"}
	report, err := r.BuildReport(now)
	require.NoError(t, err)

	var kinds []models.ChartKind
	for _, c := range report.Charts {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []models.ChartKind{
		models.ChartOutdoorTemperature,
		models.ChartOutdoorHumidity,
		models.ChartIndoorTemperature,
		models.ChartIndoorHumidity,
	}, kinds)
	assert.Equal(t, "Outdoor temperature", report.Charts[0].Title)
	assert.Nil(t, report.Summary)
}

func TestBuildReportSeriesPerDevice(t *testing.T) {
	common.SetTestLoggerNop()

	store := newReportStore(t)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := range 3 {
		at := now.Add(-time.Duration(50-i*10) * time.Minute)
		seedSample(t, store, models.SensorSample{DeviceID: "sb-1", DeviceName: "リビング", Source: models.SourceSwitchBot,
			RecordedAt: at, CO2: ptr(900 + float64(i)*100)})
		seedSample(t, store, models.SensorSample{DeviceID: "na-1", DeviceName: "Indoor", Source: models.SourceNetatmo,
			RecordedAt: at, CO2: ptr(600)})
	}

	r := &Reporter{Store: store, Interval: time.Hour, Location: tokyo}
	report, err := r.BuildReport(now)
	require.NoError(t, err)
	require.Len(t, report.Charts, 1)

	chart := report.Charts[0]
	assert.Equal(t, models.ChartIndoorCO2, chart.Kind)
	assert.Equal(t, "室内 CO2", chart.Title)
	require.Len(t, chart.Annotations, 2)
	assert.Equal(t, 1000.0, chart.Annotations[0].Value)
	assert.Equal(t, 1500.0, chart.Annotations[1].Value)

	require.Len(t, chart.Series, 2)
	assert.Equal(t, "[NA] Indoor", chart.Series[0].Label)
	assert.Equal(t, "[SB] リビング", chart.Series[1].Label)
	assert.Equal(t, seriesColor("sb-1"), chart.Series[1].Color)
	require.Len(t, chart.Series[1].Points, 3)
	assert.Equal(t, 1100.0, chart.Series[1].Points[2].Value)
	assert.Equal(t, tokyo, chart.Series[1].Points[0].At.Location())
}

func TestBuildReportBucketsAverage(t *testing.T) {
	common.SetTestLoggerNop()

	store := newReportStore(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	from := now.Add(-time.Hour)

	for _, m := range []int{1, 5, 20} {
		seedSample(t, store, models.SensorSample{DeviceID: "in", Source: models.SourceSwitchBot,
			RecordedAt: from.Add(time.Duration(m) * time.Minute), Temperature: ptr(float64(m))})
	}

	r := &Reporter{Store: store, Interval: time.Hour, Bucket: 15 * time.Minute}
	report, err := r.BuildReport(now)
	require.NoError(t, err)
	require.Len(t, report.Charts, 1)

	points := report.Charts[0].Series[0].Points
	require.Len(t, points, 2)
	assert.Equal(t, 3.0, points[0].Value)
	assert.True(t, points[0].At.Equal(from))
	assert.Equal(t, 20.0, points[1].Value)
	assert.True(t, points[1].At.Equal(from.Add(15*time.Minute)))
}

func TestReporterWindowFollowsLastTick(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := newReportStore(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	r := &Reporter{Store: store, Interval: time.Hour, Renderer: mocks.NewMockRenderer(ctrl), Poster: mocks.NewMockPoster(ctrl)}
	assert.Equal(t, now.Add(-time.Hour), r.windowStart(now))

	require.NoError(t, r.RunTick(context.Background(), now))
	assert.Equal(t, now, r.windowStart(now.Add(90*time.Minute)))

	tokyo, _ := time.LoadLocation("Asia/Tokyo")
	daily := &Reporter{Daily: true, Location: tokyo}
	start := daily.windowStart(now)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, tokyo), start)
}

func TestRunTickSkipsFailedChart(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := newReportStore(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	seedSample(t, store, models.SensorSample{DeviceID: "out", Source: models.SourceNetatmo,
		RecordedAt: now.Add(-10 * time.Minute), Temperature: ptr(18), Humidity: ptr(70), IsOutdoor: true})

	renderer := mocks.NewMockRenderer(ctrl)
	poster := mocks.NewMockPoster(ctrl)

	renderer.EXPECT().Render(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, chart models.ChartRequest) (string, error) {
			if chart.Kind == models.ChartOutdoorTemperature {
				return "", errors.New("render failed")
			}
			return "https://quickchart.io/chart/render/abc", nil
		}).Times(2)
	poster.EXPECT().
		Post(gomock.Any(), models.ChannelUpdate, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ models.Channel, msg models.Message) error {
			assert.Equal(t, "https://quickchart.io/chart/render/abc", msg.ImageURL)
			return nil
		}).Times(1)

	r := &Reporter{Store: store, Renderer: renderer, Poster: poster, Interval: time.Hour, Locale: "en"}
	require.NoError(t, r.RunTick(context.Background(), now))
}

func TestRunTickDailySummary(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := newReportStore(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	renderer := mocks.NewMockRenderer(ctrl)
	poster := mocks.NewMockPoster(ctrl)
	poster.EXPECT().
		Post(gomock.Any(), models.ChannelUpdate, models.Message{Title: "Daily summary", Text: "no data"}).
		Return(nil).Times(1)

	r := &Reporter{Store: store, Renderer: renderer, Poster: poster, Daily: true, Locale: "en"}
	require.NoError(t, r.RunTick(context.Background(), now))
}
