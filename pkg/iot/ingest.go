package iot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/db"
	"liyu1981.xyz/home-state-monitor/pkg/metrics"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

func (i *IOT) ingest(ctx context.Context, snap models.Snapshot, arrival models.MonitoringMode) (*models.IngestResult, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryDetector),
	)
	started := time.Now()

	if snap.ObservedAt.IsZero() {
		snap.ObservedAt = i.now()
	}

	reject := func(err error) (*models.IngestResult, error) {
		logger.Warn("Rejected snapshot", zap.String("device_id", snap.DeviceID), zap.Error(err))
		metrics.ObserveSnapshot(snap.Source, arrival, metrics.ResultMalformed, time.Since(started))
		return nil, err
	}

	if err := ValidateIdentity(snap); err != nil {
		return reject(err)
	}

	i.resolveDirectory(&snap)

	// ignored devices are discarded before their fields are looked at
	rules := i.Rules.Get()
	mode := ClassifySnapshot(snap, rules)
	if mode == models.MonitoringModeIgnored {
		logger.Debug("Ignored device", zap.String("device_id", snap.DeviceID), zap.String("name", snap.Name))
		metrics.ObserveSnapshot(snap.Source, arrival, metrics.ResultIgnored, time.Since(started))
		return &models.IngestResult{Mode: mode, Discarded: true}, nil
	}

	fields, err := NormalizeSnapshot(snap)
	if err != nil {
		return reject(err)
	}

	opts := DetectOptions{Mode: mode, Arrival: arrival, Outdoor: IsOutdoor(snap, rules)}
	if mode != arrival {
		logger.Debug("Snapshot arrived outside the device's monitoring mode",
			zap.String("device_id", snap.DeviceID),
			zap.String("mode", string(mode)),
			zap.String("arrival", string(arrival)))
	}

	applied, err := i.Db.ApplySnapshot(snap.DeviceID, func(prior *models.DeviceState) (*db.Apply, error) {
		return Detect(prior, snap, fields, opts), nil
	})
	if err != nil {
		logger.Error("Failed to apply snapshot", zap.String("device_id", snap.DeviceID), zap.Error(err))
		metrics.ObserveSnapshot(snap.Source, arrival, metrics.ResultError, time.Since(started))
		return nil, err
	}

	result := &models.IngestResult{Mode: mode, Events: applied.Events, Sample: applied.Sample}

	for _, ev := range result.Events {
		logger.Info("Transition detected",
			zap.String("device_id", ev.DeviceID),
			zap.String("device_name", ev.DeviceName),
			zap.String("field", ev.Field),
			zap.String("previous", ev.PreviousValue),
			zap.String("new", ev.NewValue),
			zap.String("class", string(ev.EventClass)))
		metrics.IncTransition(ev.EventClass)
	}
	if result.Sample != nil {
		metrics.IncSample(result.Sample.Source)
	}
	metrics.ObserveSnapshot(snap.Source, arrival, metrics.ResultAccepted, time.Since(started))

	if len(result.Events) > 0 {
		if i.Notifier != nil {
			i.Notifier.Notify(ctx, result.Events)
		}
		if i.Mirror != nil {
			for _, ev := range result.Events {
				i.Mirror.Enqueue(ev)
			}
		}
	}

	return result, nil
}

// resolveDirectory fills name and type for push deliveries, which only carry
// the device id.
func (i *IOT) resolveDirectory(snap *models.Snapshot) {
	if snap.Name != "" && snap.Type != "" {
		return
	}
	device, err := i.Db.GetDevice(snap.DeviceID)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			common.GetLoggerWith(common.LoggerNameStore).
				Warn("Device directory lookup failed", zap.String("device_id", snap.DeviceID), zap.Error(err))
		}
		return
	}
	if snap.Name == "" {
		snap.Name = device.Name
	}
	if snap.Type == "" {
		snap.Type = device.Type
	}
	if snap.ModuleType == "" {
		snap.ModuleType = device.ModuleType
	}
}

type IIngestImpl struct {
	iot *IOT
}

func (ii *IIngestImpl) Ingest(ctx context.Context, snapshot models.Snapshot, arrival models.MonitoringMode) (*models.IngestResult, error) {
	return ii.iot.ingest(ctx, snapshot, arrival)
}

func (i *IOT) GetIIngest() IIngest {
	return &IIngestImpl{iot: i}
}
