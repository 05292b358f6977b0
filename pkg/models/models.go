package models

import (
	"time"

	"gorm.io/datatypes"
)

type MonitoringMode string

const (
	MonitoringModeIgnored MonitoringMode = "ignored"
	MonitoringModePolled  MonitoringMode = "polled"
	MonitoringModePushed  MonitoringMode = "pushed"
)

type Source string

const (
	SourceSwitchBot Source = "switchbot"
	SourceNetatmo   Source = "netatmo"
)

type EventClass string

const (
	EventClassSecurity      EventClass = "security"
	EventClassEnvironmental EventClass = "environmental"
)

type DeviceType string

const (
	DeviceTypeThermoHygrometer DeviceType = "thermo_hygrometer"
	DeviceTypeCO2Sensor        DeviceType = "co2_sensor"
	DeviceTypeStation          DeviceType = "station"
	DeviceTypeLock             DeviceType = "lock"
	DeviceTypeContactSensor    DeviceType = "contact_sensor"
	DeviceTypeMotionSensor     DeviceType = "motion_sensor"
	DeviceTypeDoorbell         DeviceType = "doorbell"
	DeviceTypeHub              DeviceType = "hub"
	DeviceTypeOutdoorModule    DeviceType = "outdoor_module"
	DeviceTypeOther            DeviceType = "other"
)

// Device is the directory entry refreshed from the vendor device list. Push
// deliveries only carry a device id, so names and types are resolved here.
type Device struct {
	ID         string `gorm:"primaryKey"`
	Name       string
	VendorType string
	Type       DeviceType `gorm:"type:varchar(32)"`
	Source     Source     `gorm:"type:varchar(16)"`
	ModuleType string
	UpdatedAt  time.Time
}

type DeviceState struct {
	DeviceID   string `gorm:"primaryKey"`
	Name       string
	Type       DeviceType `gorm:"type:varchar(32)"`
	Source     Source     `gorm:"type:varchar(16)"`
	LastSeenAt time.Time
	Attributes datatypes.JSONMap
}

type StateChangeEvent struct {
	ID            uint   `gorm:"primaryKey"`
	DeviceID      string `gorm:"index"`
	DeviceName    string
	DeviceType    DeviceType `gorm:"type:varchar(32)"`
	OccurredAt    time.Time  `gorm:"index"`
	Field         string
	PreviousValue string
	NewValue      string
	EventClass    EventClass `gorm:"type:varchar(16);index;check:event_class IN ('security','environmental')"`
}

type SensorSample struct {
	ID          uint   `gorm:"primaryKey"`
	DeviceID    string `gorm:"index"`
	DeviceName  string
	Source      Source    `gorm:"type:varchar(16);index"`
	RecordedAt  time.Time `gorm:"index"`
	Temperature *float64
	Humidity    *float64
	CO2         *float64 `gorm:"column:co2"`
	Pressure    *float64
	Noise       *float64
	IsOutdoor   bool
	ModuleType  string
}

type PushEndpointRegistration struct {
	ID           uint `gorm:"primaryKey"`
	URL          string
	RegisteredAt time.Time `gorm:"index"`
}

// Snapshot is one raw reading of a device as delivered by a poller or the push
// listener, after vendor field names were mapped to attribute names.
type Snapshot struct {
	DeviceID   string
	Name       string
	Type       DeviceType
	Source     Source
	ModuleType string
	ObservedAt time.Time
	Fields     map[string]any
}

// IngestResult reports what one snapshot produced. Discarded is set for
// devices classified as ignored.
type IngestResult struct {
	Mode      MonitoringMode
	Discarded bool
	Events    []StateChangeEvent
	Sample    *SensorSample
}

// SecurityEvent is a stored security transition with its rendered message.
type SecurityEvent struct {
	StateChangeEvent
	Message string `json:"message"`
}

// AllModels lists every table managed by AutoMigrate.
func AllModels() []any {
	return []any{
		&Device{},
		&DeviceState{},
		&StateChangeEvent{},
		&SensorSample{},
		&PushEndpointRegistration{},
	}
}
