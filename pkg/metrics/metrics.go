package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

const (
	metricPrefix = "home_monitor_"

	ResultAccepted  = "accepted"
	ResultIgnored   = "ignored"
	ResultMalformed = "malformed"
	ResultError     = "error"
	ResultSuccess   = "success"

	NotifySent       = "sent"
	NotifyFailed     = "failed"
	NotifySuppressed = "suppressed"
	NotifyDropped    = "dropped"

	ChartRendered = "rendered"
	ChartEmpty    = "empty"
	ChartFailed   = "failed"
)

// RowCounter is satisfied by the store.
type RowCounter interface {
	CountRows(model any, where ...any) (int64, error)
}

var (
	registerOnce sync.Once

	snapshotsTotal    *prometheus.CounterVec
	ingestLatency     *prometheus.HistogramVec
	transitionsTotal  *prometheus.CounterVec
	samplesTotal      *prometheus.CounterVec
	notificationTotal *prometheus.CounterVec
	pollTotal         *prometheus.CounterVec
	pruneDeleted      *prometheus.CounterVec
	reportCharts      *prometheus.CounterVec
	mirroredTotal     *prometheus.CounterVec
	ingressState      *prometheus.GaugeVec
)

// Init registers collectors on the default registry. Row gauges are only
// registered when a store is given.
func Init(store RowCounter) {
	registerOnce.Do(func() {
		snapshotsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "snapshots_total",
				Help: "Snapshots received by source, arrival mode and result",
			},
			[]string{"source", "arrival", "result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Snapshot ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		transitionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transitions_total",
				Help: "State change events recorded by class",
			},
			[]string{"class"},
		)
		samplesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "samples_total",
				Help: "Sensor samples recorded by source",
			},
			[]string{"source"},
		)
		notificationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Notifications by channel and outcome",
			},
			[]string{"channel", "result"},
		)
		pollTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "polls_total",
				Help: "Vendor poll cycles by source and result",
			},
			[]string{"source", "result"},
		)
		pruneDeleted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pruned_rows_total",
				Help: "Rows deleted by retention pruning",
			},
			[]string{"table"},
		)
		reportCharts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_charts_total",
				Help: "Report charts by outcome",
			},
			[]string{"result"},
		)
		mirroredTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mirrored_events_total",
				Help: "Transitions mirrored to the event bus by outcome",
			},
			[]string{"result"},
		)
		ingressState = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "ingress_state",
				Help: "1 for the current push endpoint lifecycle state",
			},
			[]string{"state"},
		)

		prometheus.MustRegister(
			snapshotsTotal,
			ingestLatency,
			transitionsTotal,
			samplesTotal,
			notificationTotal,
			pollTotal,
			pruneDeleted,
			reportCharts,
			mirroredTotal,
			ingressState,
		)

		if store != nil {
			registerRowGauges(store)
		}
	})
}

func registerRowGauges(store RowCounter) {
	logger := common.GetLoggerWith(common.LoggerNameStore)

	tables := map[string]any{
		"device_states":       &models.DeviceState{},
		"state_change_events": &models.StateChangeEvent{},
		"sensor_samples":      &models.SensorSample{},
	}
	for table, model := range tables {
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        metricPrefix + "store_rows",
				Help:        "Rows currently held per table",
				ConstLabels: prometheus.Labels{"table": table},
			},
			func() float64 {
				n, err := store.CountRows(model)
				if err != nil {
					logger.Warn("Failed to count rows", zap.String("table", table), zap.Error(err))
					return 0
				}
				return float64(n)
			},
		))
	}
}

func ObserveSnapshot(source models.Source, arrival models.MonitoringMode, result string, duration time.Duration) {
	if result == "" {
		result = ResultAccepted
	}
	if snapshotsTotal != nil {
		snapshotsTotal.WithLabelValues(string(source), string(arrival), result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

func IncTransition(class models.EventClass) {
	if transitionsTotal != nil {
		transitionsTotal.WithLabelValues(string(class)).Inc()
	}
}

func IncSample(source models.Source) {
	if samplesTotal != nil {
		samplesTotal.WithLabelValues(string(source)).Inc()
	}
}

func IncNotification(channel models.Channel, result string) {
	if notificationTotal != nil {
		notificationTotal.WithLabelValues(string(channel), result).Inc()
	}
}

func IncMirror(result string) {
	if mirroredTotal != nil {
		mirroredTotal.WithLabelValues(result).Inc()
	}
}

func IncPoll(source models.Source, result string) {
	if pollTotal != nil {
		pollTotal.WithLabelValues(string(source), result).Inc()
	}
}

func AddPruned(table string, count int64) {
	if count <= 0 {
		return
	}
	if pruneDeleted != nil {
		pruneDeleted.WithLabelValues(table).Add(float64(count))
	}
}

func IncReportChart(result string) {
	if reportCharts != nil {
		reportCharts.WithLabelValues(result).Inc()
	}
}

// SetIngressState marks state as current and clears every other known state.
func SetIngressState(state string, known []string) {
	if ingressState == nil {
		return
	}
	for _, s := range known {
		v := 0.0
		if s == state {
			v = 1
		}
		ingressState.WithLabelValues(s).Set(v)
	}
}
