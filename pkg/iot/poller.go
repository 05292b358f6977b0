package iot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/metrics"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

type DirectoryStore interface {
	UpsertDevices(devices []models.Device) error
}

type PollResult struct {
	Devices  int
	Ingested int
	Skipped  int
	Failed   int
}

// SwitchBotPoller refreshes the device directory and polls the devices
// classified as polled. Pushed devices are left to the listener to save the
// daily request quota.
type SwitchBotPoller struct {
	Fetcher   StatusFetcher
	Directory DirectoryStore
	Ingest    IIngest
	Rules     *RulesStore
}

func (p *SwitchBotPoller) Poll(ctx context.Context) (PollResult, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryPoller),
		zap.String("source", string(models.SourceSwitchBot)),
	)

	var result PollResult

	devices, err := p.Fetcher.ListDevices(ctx)
	if err != nil {
		metrics.IncPoll(models.SourceSwitchBot, metrics.ResultError)
		return result, fmt.Errorf("list devices: %w", err)
	}
	result.Devices = len(devices)

	if err := p.Directory.UpsertDevices(devices); err != nil {
		logger.Warn("Failed to refresh device directory", zap.Error(err))
	}

	rules := p.Rules.Get()
	for _, device := range devices {
		if ctx.Err() != nil {
			break
		}

		mode := ModeFor(Classify(device.Name, rules), device.Source)
		if mode != models.MonitoringModePolled {
			result.Skipped++
			continue
		}

		snap, err := p.Fetcher.FetchSnapshot(ctx, device)
		if err != nil {
			logger.Warn("Failed to fetch device status", zap.String("device_id", device.ID), zap.Error(err))
			result.Failed++
			continue
		}

		if _, err := p.Ingest.Ingest(ctx, *snap, models.MonitoringModePolled); err != nil {
			result.Failed++
			continue
		}
		result.Ingested++
	}

	metrics.IncPoll(models.SourceSwitchBot, metrics.ResultSuccess)
	logger.Info("Poll completed",
		zap.Int("devices", result.Devices),
		zap.Int("ingested", result.Ingested),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))

	return result, nil
}

// NetatmoPoller ingests every station and module reading from one call.
type NetatmoPoller struct {
	Fetcher   ReadingsFetcher
	Directory DirectoryStore
	Ingest    IIngest
}

func (p *NetatmoPoller) Poll(ctx context.Context) (PollResult, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryPoller),
		zap.String("source", string(models.SourceNetatmo)),
	)

	var result PollResult

	snapshots, err := p.Fetcher.FetchReadings(ctx)
	if err != nil {
		metrics.IncPoll(models.SourceNetatmo, metrics.ResultError)
		return result, fmt.Errorf("fetch readings: %w", err)
	}
	result.Devices = len(snapshots)

	devices := make([]models.Device, 0, len(snapshots))
	for _, s := range snapshots {
		devices = append(devices, models.Device{
			ID:         s.DeviceID,
			Name:       s.Name,
			VendorType: s.ModuleType,
			Type:       s.Type,
			Source:     models.SourceNetatmo,
			ModuleType: s.ModuleType,
			UpdatedAt:  time.Now(),
		})
	}
	if err := p.Directory.UpsertDevices(devices); err != nil {
		logger.Warn("Failed to refresh device directory", zap.Error(err))
	}

	for _, s := range snapshots {
		if ctx.Err() != nil {
			break
		}
		res, err := p.Ingest.Ingest(ctx, s, models.MonitoringModePolled)
		if err != nil {
			result.Failed++
			continue
		}
		if res.Discarded {
			result.Skipped++
			continue
		}
		result.Ingested++
	}

	metrics.IncPoll(models.SourceNetatmo, metrics.ResultSuccess)
	logger.Info("Poll completed",
		zap.Int("devices", result.Devices),
		zap.Int("ingested", result.Ingested),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))

	return result, nil
}
