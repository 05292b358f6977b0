package iot

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
	"liyu1981.xyz/home-state-monitor/pkg/db"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

var (
	ErrMalformedSnapshot = errors.New("malformed snapshot")
	ErrTunnelNotReady    = errors.New("tunnel not ready")
)

// ValidateIdentity checks the parts of a snapshot needed to classify it.
func ValidateIdentity(snap models.Snapshot) error {
	if strings.TrimSpace(snap.DeviceID) == "" {
		return fmt.Errorf("%w: missing device id", ErrMalformedSnapshot)
	}
	switch snap.Source {
	case models.SourceSwitchBot, models.SourceNetatmo:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrMalformedSnapshot, snap.Source)
	}
	return nil
}

// NormalizeSnapshot validates every field and returns the values to store.
// Any failure rejects the whole snapshot.
func NormalizeSnapshot(snap models.Snapshot) (map[string]any, error) {
	if err := ValidateIdentity(snap); err != nil {
		return nil, err
	}

	fields := make(map[string]any, len(snap.Fields))
	for name, raw := range snap.Fields {
		if raw == nil {
			continue
		}
		spec, ok := models.LookupField(name)
		if !ok {
			// unknown vendor fields are kept verbatim but never compared
			fields[name] = raw
			continue
		}
		v, err := spec.Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
		}
		fields[name] = v
	}
	return fields, nil
}

type DetectOptions struct {
	Mode    models.MonitoringMode
	Arrival models.MonitoringMode
	Outdoor bool
}

// Detect diffs normalized fields against the prior state and builds
// everything the store should write for this snapshot. It is pure: the caller
// supplies the prior state read inside the device's transaction.
func Detect(prior *models.DeviceState, snap models.Snapshot, fields map[string]any, opts DetectOptions) *db.Apply {
	observedAt := snap.ObservedAt.UTC()
	schema := models.SchemaFor(snap.Type)

	state := &models.DeviceState{
		DeviceID:   snap.DeviceID,
		Name:       snap.Name,
		Type:       snap.Type,
		Source:     snap.Source,
		LastSeenAt: observedAt,
		Attributes: datatypes.JSONMap{},
	}
	if prior != nil {
		for k, v := range prior.Attributes {
			state.Attributes[k] = v
		}
		if state.Name == "" {
			state.Name = prior.Name
		}
		if state.Type == "" {
			state.Type = prior.Type
		}
	}
	if state.Name == "" {
		state.Name = snap.DeviceID
	}
	if state.Type == "" {
		state.Type = models.DeviceTypeOther
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var events []models.StateChangeEvent
	for _, name := range names {
		value := fields[name]
		spec, known := models.LookupField(name)
		if known {
			var prev any
			var hadPrev bool
			if prior != nil {
				prev, hadPrev = prior.Attributes[name]
			}

			transition := false
			switch spec.Kind {
			case models.FieldKindEdge:
				transition = isActivePulse(value)
			default:
				transition = hadPrev && !spec.Equal(prev, value)
			}

			if transition {
				events = append(events, models.StateChangeEvent{
					DeviceID:      snap.DeviceID,
					DeviceName:    state.Name,
					DeviceType:    state.Type,
					OccurredAt:    observedAt,
					Field:         name,
					PreviousValue: spec.FormatValue(prev),
					NewValue:      spec.FormatValue(value),
					EventClass:    spec.Class,
				})
			}
		}
		state.Attributes[name] = value
	}

	apply := &db.Apply{State: state, Events: events}

	if opts.Mode == opts.Arrival && (schema.HasNumericCapability() || hasSampledField(fields)) {
		apply.Sample = buildSample(snap, fields, state.Name, observedAt, opts.Outdoor)
	}

	return apply
}

func isActivePulse(v any) bool {
	switch p := v.(type) {
	case bool:
		return p
	case string:
		switch p {
		case "", "false", "none", "idle", "released":
			return false
		}
		return true
	}
	return v != nil
}

func hasSampledField(fields map[string]any) bool {
	for name := range fields {
		if spec, ok := models.LookupField(name); ok && spec.Sampled {
			return true
		}
	}
	return false
}

// buildSample copies this snapshot's readings. Readings missing from the
// snapshot stay NULL rather than repeating an older value.
func buildSample(snap models.Snapshot, fields map[string]any, name string, at time.Time, outdoor bool) *models.SensorSample {
	reading := func(field string) *float64 {
		v, ok := fields[field]
		if !ok {
			return nil
		}
		f, ok := models.ToFloat(v)
		if !ok {
			return nil
		}
		return &f
	}

	sample := &models.SensorSample{
		DeviceID:    snap.DeviceID,
		DeviceName:  name,
		Source:      snap.Source,
		RecordedAt:  at,
		Temperature: reading(models.FieldTemperature),
		Humidity:    reading(models.FieldHumidity),
		CO2:         reading(models.FieldCO2),
		Pressure:    reading(models.FieldPressure),
		Noise:       reading(models.FieldNoise),
		IsOutdoor:   outdoor,
		ModuleType:  snap.ModuleType,
	}
	if sample.Temperature == nil && sample.Humidity == nil && sample.CO2 == nil &&
		sample.Pressure == nil && sample.Noise == nil {
		return nil
	}
	return sample
}
