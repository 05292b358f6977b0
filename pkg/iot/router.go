package iot

import (
	"math"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/metrics"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

type Route struct {
	Channel models.Channel
	Message models.Message
	Event   models.StateChangeEvent
}

// Router maps transitions to a channel and a localized message, and drops
// environmental noise below the configured thresholds.
//
// Thresholds compare against the value last announced for the device field,
// not the previous reading, so slow drift is reported once it adds up. The
// baselines live only in memory and are guarded by mu.
type Router struct {
	Locale string
	Rules  *RulesStore

	mu        sync.Mutex
	baselines map[string]float64
}

func NewRouter(locale string, rules *RulesStore) *Router {
	return &Router{Locale: locale, Rules: rules, baselines: make(map[string]float64)}
}

func (r *Router) Route(ev models.StateChangeEvent) (Route, bool) {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryRouter),
	)

	table := tableFor(r.Locale)
	channel := models.ChannelFor(ev.EventClass)

	if p, ok := table.lookup(ev); ok && p.silent {
		logger.Debug("Transition has no announcement", zap.String("device_id", ev.DeviceID), zap.String("field", ev.Field))
		metrics.IncNotification(channel, metrics.NotifySuppressed)
		return Route{}, false
	}

	if ev.EventClass == models.EventClassEnvironmental && !r.passesThreshold(ev) {
		logger.Debug("Transition below notify threshold",
			zap.String("device_id", ev.DeviceID),
			zap.String("field", ev.Field),
			zap.String("new", ev.NewValue))
		metrics.IncNotification(channel, metrics.NotifySuppressed)
		return Route{}, false
	}

	return Route{
		Channel: channel,
		Message: models.Message{
			Title: table.titles[channel],
			Text:  table.describe(ev),
		},
		Event: ev,
	}, true
}

// Describe renders ev without any suppression.
func (r *Router) Describe(ev models.StateChangeEvent) string {
	return tableFor(r.Locale).describe(ev)
}

func (r *Router) passesThreshold(ev models.StateChangeEvent) bool {
	spec, ok := models.LookupField(ev.Field)
	if !ok || spec.Kind != models.FieldKindContinuous {
		return true
	}

	newValue, err := strconv.ParseFloat(ev.NewValue, 64)
	if err != nil {
		return true
	}
	prevValue, prevErr := strconv.ParseFloat(ev.PreviousValue, 64)

	notify := r.Rules.Get().Notify

	if ev.Field == models.FieldBattery {
		if newValue > notify.BatteryLow {
			return false
		}
		return prevErr != nil || newValue < prevValue
	}

	minDelta := notify.MinDelta[ev.Field]
	if minDelta <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := ev.DeviceID + "/" + ev.Field
	base, ok := r.baselines[key]
	if !ok {
		if prevErr != nil {
			r.baselines[key] = newValue
			return true
		}
		base = prevValue
		r.baselines[key] = base
	}

	if math.Abs(newValue-base) >= minDelta-1e-9 {
		r.baselines[key] = newValue
		return true
	}
	return false
}
