package iot

import (
	"context"
	"time"

	"liyu1981.xyz/home-state-monitor/pkg/db"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

// IIngest accepts raw snapshots from pollers and the push listener.
type IIngest interface {
	Ingest(ctx context.Context, snapshot models.Snapshot, arrival models.MonitoringMode) (*models.IngestResult, error)
}

// IState is the read side used by the REST API.
type IState interface {
	ListDeviceStates() ([]models.DeviceState, error)
	GetDeviceState(deviceID string) (*models.DeviceState, error)
	GetDeviceHistory(deviceID string, limit int) ([]models.StateChangeEvent, error)
	RecentSecurityEvents(since time.Time, limit int) ([]models.SecurityEvent, error)
}

// INotifier turns freshly persisted transitions into channel messages.
type INotifier interface {
	Notify(ctx context.Context, events []models.StateChangeEvent)
}

// Poster delivers one message to a channel.
type Poster interface {
	Post(ctx context.Context, channel models.Channel, msg models.Message) error
}

// Renderer turns a chart request into an image reference.
type Renderer interface {
	Render(ctx context.Context, chart models.ChartRequest) (string, error)
}

// PushRegistrar manages the vendor side push endpoint registration.
type PushRegistrar interface {
	QueryPushURLs(ctx context.Context) ([]string, error)
	RegisterPushURL(ctx context.Context, url string) error
	DeregisterPushURL(ctx context.Context, url string) error
}

// Tunnel reports the current public URL, ok is false while pending.
type Tunnel interface {
	PublicURL() (url string, ok bool)
}

// StatusFetcher is the primary vendor's polling surface.
type StatusFetcher interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	FetchSnapshot(ctx context.Context, device models.Device) (*models.Snapshot, error)
}

// ReadingsFetcher is the secondary vendor's polling surface: one call returns
// every station and module.
type ReadingsFetcher interface {
	FetchReadings(ctx context.Context) ([]models.Snapshot, error)
}

// EventPublisher mirrors transitions to an external bus.
type EventPublisher interface {
	Publish(ctx context.Context, event models.StateChangeEvent) error
}

//go:generate mockgen -source=iot.go -destination=mocks/iot.go -package=mocks

type IOT struct {
	Db    db.DB
	Rules *RulesStore
	Now   func() time.Time

	Ingest   IIngest
	State    IState
	Notifier INotifier

	Router     *Router
	Dispatcher *Dispatcher
	Mirror     *Mirror
}

type ServiceOpts struct {
	Ingest   IIngest
	State    IState
	Notifier INotifier
}

func (i *IOT) WithServices(opts ServiceOpts) *IOT {
	if opts.Ingest != nil {
		i.Ingest = opts.Ingest
	}
	if opts.State != nil {
		i.State = opts.State
	}
	if opts.Notifier != nil {
		i.Notifier = opts.Notifier
	}
	return i
}

func (i *IOT) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}
