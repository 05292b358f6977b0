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

const defaultDeliveryTimeout = 15 * time.Second

// Dispatcher delivers routed messages from a bounded queue on its own
// goroutine, so ingest never waits on the delivery collaborator. A full queue
// drops the message; the transition itself is already persisted.
type Dispatcher struct {
	Poster  Poster
	Timeout time.Duration

	queue chan Route
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(poster Poster, size int) *Dispatcher {
	return &Dispatcher{
		Poster:  poster,
		Timeout: defaultDeliveryTimeout,
		queue:   make(chan Route, size),
		done:    make(chan struct{}),
	}
}

func (d *Dispatcher) Enqueue(route Route) bool {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryDispatcher),
	)

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		logger.Warn("Dispatcher closed, message dropped", zap.String("device_id", route.Event.DeviceID))
		metrics.IncNotification(route.Channel, metrics.NotifyDropped)
		return false
	}

	select {
	case d.queue <- route:
		return true
	default:
		logger.Warn("Dispatch queue full, message dropped", zap.String("device_id", route.Event.DeviceID))
		metrics.IncNotification(route.Channel, metrics.NotifyDropped)
		return false
	}
}

// Run delivers until Drain closes the queue. Cancelling ctx does not abort a
// delivery in flight.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	base := context.WithoutCancel(ctx)
	for route := range d.queue {
		d.deliver(base, route)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, route Route) {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryDispatcher),
	)

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := d.Poster.Post(ctx, route.Channel, route.Message); err != nil {
		logger.Warn("Delivery failed",
			zap.String("channel", string(route.Channel)),
			zap.String("device_id", route.Event.DeviceID),
			zap.Error(err))
		metrics.IncNotification(route.Channel, metrics.NotifyFailed)
		return
	}
	metrics.IncNotification(route.Channel, metrics.NotifySent)
}

// Drain stops accepting messages and waits for queued ones to be delivered.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (i *IOT) notify(ctx context.Context, events []models.StateChangeEvent) {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryRouter),
	)

	if i.Router == nil || i.Dispatcher == nil {
		logger.Warn("No router or dispatcher configured, transitions not announced", zap.Int("events", len(events)))
		return
	}

	for _, ev := range events {
		route, ok := i.Router.Route(ev)
		if !ok {
			continue
		}
		i.Dispatcher.Enqueue(route)
	}
}

type INotifierImpl struct {
	iot *IOT
}

func (in *INotifierImpl) Notify(ctx context.Context, events []models.StateChangeEvent) {
	in.iot.notify(ctx, events)
}

func (i *IOT) GetINotifier() INotifier {
	return &INotifierImpl{iot: i}
}
