package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

var ErrNotFound = errors.New("record not found")

// Apply is the outcome of one accepted snapshot. State is always written;
// Events and Sample only when present.
type Apply struct {
	State  *models.DeviceState
	Events []models.StateChangeEvent
	Sample *models.SensorSample
}

// ApplySnapshot performs the read-modify-write for one device. It holds the
// device's lock for the whole transaction so a push and a poll for the same
// device are applied one after the other. fn receives the prior state (nil
// for a first sighting). Returning an error or a nil Apply writes nothing.
func (d *DB) ApplySnapshot(deviceID string, fn func(prior *models.DeviceState) (*Apply, error)) (*Apply, error) {
	unlock := d.locks.Lock(deviceID)
	defer unlock()

	var result *Apply
	err := d.Conn.Transaction(func(tx *gorm.DB) error {
		var prior *models.DeviceState
		var rows []models.DeviceState
		if err := tx.Where("device_id = ?", deviceID).Limit(1).Find(&rows).Error; err != nil {
			return fmt.Errorf("load device state: %w", err)
		}
		if len(rows) > 0 {
			prior = &rows[0]
		}

		apply, err := fn(prior)
		if err != nil {
			return err
		}
		if apply == nil || apply.State == nil {
			return nil
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}},
			UpdateAll: true,
		}).Create(apply.State).Error; err != nil {
			return fmt.Errorf("save device state: %w", err)
		}

		if len(apply.Events) > 0 {
			if err := tx.Create(&apply.Events).Error; err != nil {
				return fmt.Errorf("append history: %w", err)
			}
		}

		if apply.Sample != nil {
			if err := tx.Create(apply.Sample).Error; err != nil {
				return fmt.Errorf("append sample: %w", err)
			}
		}

		result = apply
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (d *DB) UpsertDevices(devices []models.Device) error {
	if len(devices) == 0 {
		return nil
	}
	return d.Conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&devices).Error
}

func (d *DB) GetDevice(id string) (*models.Device, error) {
	var devices []models.Device
	if err := d.Conn.Where("id = ?", id).Limit(1).Find(&devices).Error; err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrNotFound
	}
	return &devices[0], nil
}

func (d *DB) ListDevices() ([]models.Device, error) {
	var devices []models.Device
	err := d.Conn.Order("name asc").Find(&devices).Error
	return devices, err
}

func (d *DB) GetDeviceState(deviceID string) (*models.DeviceState, error) {
	var states []models.DeviceState
	if err := d.Conn.Where("device_id = ?", deviceID).Limit(1).Find(&states).Error; err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, ErrNotFound
	}
	return &states[0], nil
}

func (d *DB) ListDeviceStates() ([]models.DeviceState, error) {
	var states []models.DeviceState
	err := d.Conn.Order("name asc").Order("device_id asc").Find(&states).Error
	return states, err
}

func (d *DB) ListHistory(deviceID string, limit int) ([]models.StateChangeEvent, error) {
	var events []models.StateChangeEvent
	err := d.Conn.
		Where("device_id = ?", deviceID).
		Order("occurred_at desc").
		Order("id desc").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (d *DB) SecurityEventsSince(since time.Time, limit int) ([]models.StateChangeEvent, error) {
	var events []models.StateChangeEvent
	err := d.Conn.
		Where("event_class = ? AND occurred_at >= ?", models.EventClassSecurity, since.UTC()).
		Order("occurred_at desc").
		Order("id desc").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// SamplesSince returns samples recorded in [since, until) for the given
// location class, oldest first. Timestamps are stored as UTC text, so bounds
// are converted before comparison.
func (d *DB) SamplesSince(since, until time.Time, outdoor bool) ([]models.SensorSample, error) {
	var samples []models.SensorSample
	err := d.Conn.
		Where("recorded_at >= ? AND recorded_at < ? AND is_outdoor = ?", since.UTC(), until.UTC(), outdoor).
		Order("recorded_at asc").
		Order("id asc").
		Find(&samples).Error
	return samples, err
}

func (d *DB) PruneHistory(cutoff time.Time) (int64, error) {
	result := d.Conn.Where("occurred_at < ?", cutoff.UTC()).Delete(&models.StateChangeEvent{})
	return result.RowsAffected, result.Error
}

func (d *DB) PruneSamples(source models.Source, cutoff time.Time) (int64, error) {
	result := d.Conn.Where("source = ? AND recorded_at < ?", source, cutoff.UTC()).Delete(&models.SensorSample{})
	return result.RowsAffected, result.Error
}

func (d *DB) RecordPushRegistration(url string, at time.Time) error {
	return d.Conn.Create(&models.PushEndpointRegistration{URL: url, RegisteredAt: at.UTC()}).Error
}

func (d *DB) LatestPushRegistration() (*models.PushEndpointRegistration, error) {
	var regs []models.PushEndpointRegistration
	if err := d.Conn.Order("registered_at desc").Order("id desc").Limit(1).Find(&regs).Error; err != nil {
		return nil, err
	}
	if len(regs) == 0 {
		return nil, ErrNotFound
	}
	return &regs[0], nil
}

// CountRows counts rows of model, optionally narrowed by a where clause.
func (d *DB) CountRows(model any, where ...any) (int64, error) {
	var count int64
	q := d.Conn.Model(model)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	err := q.Count(&count).Error
	return count, err
}

func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.Conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
