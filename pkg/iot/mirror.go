package iot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/metrics"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

const defaultMirrorTimeout = 5 * time.Second

// Mirror hands transitions to an EventPublisher from a bounded queue. A slow
// or unreachable bus drops mirrored events instead of holding up ingest.
type Mirror struct {
	Publisher EventPublisher
	Timeout   time.Duration

	queue chan models.StateChangeEvent
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewMirror(publisher EventPublisher, size int) *Mirror {
	return &Mirror{
		Publisher: publisher,
		Timeout:   defaultMirrorTimeout,
		queue:     make(chan models.StateChangeEvent, size),
		done:      make(chan struct{}),
	}
}

func (m *Mirror) Enqueue(event models.StateChangeEvent) bool {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryMirror),
	)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		logger.Warn("Mirror closed, event dropped", zap.String("device_id", event.DeviceID))
		metrics.IncMirror(metrics.NotifyDropped)
		return false
	}

	select {
	case m.queue <- event:
		return true
	default:
		logger.Warn("Mirror queue full, event dropped", zap.String("device_id", event.DeviceID))
		metrics.IncMirror(metrics.NotifyDropped)
		return false
	}
}

// Run publishes until Drain closes the queue.
func (m *Mirror) Run(ctx context.Context) {
	defer close(m.done)

	base := context.WithoutCancel(ctx)
	for event := range m.queue {
		m.publish(base, event)
	}
}

func (m *Mirror) publish(ctx context.Context, event models.StateChangeEvent) {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = defaultMirrorTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := m.Publisher.Publish(ctx, event); err != nil {
		common.GetLoggerWith(
			common.LoggerNameMonitorCore,
			zap.String(common.LoggerFieldCategory, common.LoggerCategoryMirror),
		).Warn("Failed to mirror event", zap.String("device_id", event.DeviceID), zap.Error(err))
		metrics.IncMirror(metrics.NotifyFailed)
		return
	}
	metrics.IncMirror(metrics.NotifySent)
}

// Drain stops accepting events and waits for queued ones to be published.
func (m *Mirror) Drain(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
