package iot

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

func TestPruneIsIdempotentAndKeepsState(t *testing.T) {
	var buf = &bytes.Buffer{}
	common.SetTestCaptureLogger(buf, zapcore.InfoLevel)

	store := newReportStore(t)
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-24 * time.Hour)

	require.NoError(t, store.Conn.Create(&models.DeviceState{DeviceID: "lock", Name: "Lock", LastSeenAt: old}).Error)
	for _, at := range []time.Time{old, recent} {
		require.NoError(t, store.Conn.Create(&models.StateChangeEvent{
			DeviceID: "lock", OccurredAt: at, Field: models.FieldLockStatus, EventClass: models.EventClassSecurity,
		}).Error)
		seedSample(t, store, models.SensorSample{DeviceID: "sb", Source: models.SourceSwitchBot, RecordedAt: at, Temperature: ptr(20)})
		seedSample(t, store, models.SensorSample{DeviceID: "na", Source: models.SourceNetatmo, RecordedAt: at, Temperature: ptr(20)})
	}

	p := &Pruner{Store: store, HistoryDays: 30, SensorDataDays: 30, NetatmoDataDays: 60}

	first, err := p.Prune(now)
	require.NoError(t, err)
	assert.Equal(t, PruneResult{History: 1, SwitchBot: 1, Netatmo: 0}, first)

	second, err := p.Prune(now)
	require.NoError(t, err)
	assert.Equal(t, PruneResult{}, second)

	events, _ := store.CountRows(&models.StateChangeEvent{})
	samples, _ := store.CountRows(&models.SensorSample{})
	states, _ := store.CountRows(&models.DeviceState{})
	assert.EqualValues(t, 1, events)
	assert.EqualValues(t, 3, samples)
	assert.EqualValues(t, 1, states)

	logs := ParseLogs(buf)
	assert.True(t, findLog(logs, func(l map[string]any) bool {
		return l["logger"] == "monitor_core" &&
			l["category"] == "pruner" &&
			l["msg"] == "Retention pruning completed" &&
			l["history"] == 1.0 &&
			l["switchbot_samples"] == 1.0
	}), "log not found")
}

func TestPruneDisabledWindows(t *testing.T) {
	common.SetTestLoggerNop()

	store := newReportStore(t)
	now := time.Now()
	require.NoError(t, store.Conn.Create(&models.StateChangeEvent{
		DeviceID: "lock", OccurredAt: now.Add(-1000 * 24 * time.Hour).UTC(), Field: models.FieldContact, EventClass: models.EventClassSecurity,
	}).Error)

	p := &Pruner{Store: store}
	result, err := p.Prune(now)
	require.NoError(t, err)
	assert.Zero(t, result.History)
}
