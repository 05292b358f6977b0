package iot

import (
	"time"

	"go.uber.org/zap"
	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/metrics"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

type RetentionStore interface {
	PruneHistory(cutoff time.Time) (int64, error)
	PruneSamples(source models.Source, cutoff time.Time) (int64, error)
}

type PruneResult struct {
	History   int64
	SwitchBot int64
	Netatmo   int64
}

// Pruner enforces the retention windows. Device state rows are never touched.
type Pruner struct {
	Store           RetentionStore
	HistoryDays     int
	SensorDataDays  int
	NetatmoDataDays int
}

func (p *Pruner) Prune(now time.Time) (PruneResult, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryPruner),
	)

	var result PruneResult
	var err error

	if p.HistoryDays > 0 {
		if result.History, err = p.Store.PruneHistory(daysBefore(now, p.HistoryDays)); err != nil {
			return result, err
		}
	}
	if p.SensorDataDays > 0 {
		if result.SwitchBot, err = p.Store.PruneSamples(models.SourceSwitchBot, daysBefore(now, p.SensorDataDays)); err != nil {
			return result, err
		}
	}
	if p.NetatmoDataDays > 0 {
		if result.Netatmo, err = p.Store.PruneSamples(models.SourceNetatmo, daysBefore(now, p.NetatmoDataDays)); err != nil {
			return result, err
		}
	}

	metrics.AddPruned("state_change_events", result.History)
	metrics.AddPruned("sensor_samples", result.SwitchBot+result.Netatmo)

	logger.Info("Retention pruning completed",
		zap.Int64("history", result.History),
		zap.Int64("switchbot_samples", result.SwitchBot),
		zap.Int64("netatmo_samples", result.Netatmo))

	return result, nil
}

func daysBefore(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}
