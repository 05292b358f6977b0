package iot

import (
	"time"

	"liyu1981.xyz/home-state-monitor/pkg/models"
)

func (i *IOT) recentSecurityEvents(since time.Time, limit int) ([]models.SecurityEvent, error) {
	events, err := i.Db.SecurityEventsSince(since, limit)
	if err != nil {
		return nil, err
	}

	router := i.Router
	if router == nil {
		router = NewRouter("", i.Rules)
	}

	out := make([]models.SecurityEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, models.SecurityEvent{StateChangeEvent: ev, Message: router.Describe(ev)})
	}
	return out, nil
}

type IStateImpl struct {
	iot *IOT
}

func (is *IStateImpl) ListDeviceStates() ([]models.DeviceState, error) {
	return is.iot.Db.ListDeviceStates()
}

func (is *IStateImpl) GetDeviceState(deviceID string) (*models.DeviceState, error) {
	return is.iot.Db.GetDeviceState(deviceID)
}

func (is *IStateImpl) GetDeviceHistory(deviceID string, limit int) ([]models.StateChangeEvent, error) {
	return is.iot.Db.ListHistory(deviceID, limit)
}

func (is *IStateImpl) RecentSecurityEvents(since time.Time, limit int) ([]models.SecurityEvent, error) {
	return is.iot.recentSecurityEvents(since, limit)
}

func (i *IOT) GetIState() IState {
	return &IStateImpl{iot: i}
}
