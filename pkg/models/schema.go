package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	FieldLockStatus  = "lock_status"
	FieldContact     = "contact"
	FieldMotion      = "motion"
	FieldDoorbell    = "doorbell"
	FieldBattery     = "battery"
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
	FieldCO2         = "co2"
	FieldPressure    = "pressure"
	FieldNoise       = "noise"
)

type FieldKind int

const (
	// FieldKindDiscrete fields hold a stable value; any change is a transition.
	FieldKindDiscrete FieldKind = iota
	// FieldKindEdge fields are pulses without a previous value; every occurrence is a transition.
	FieldKindEdge
	// FieldKindContinuous fields are numeric readings compared after rounding to Precision.
	FieldKindContinuous
)

func (k FieldKind) String() string {
	switch k {
	case FieldKindDiscrete:
		return "discrete"
	case FieldKindEdge:
		return "edge"
	case FieldKindContinuous:
		return "continuous"
	}
	return "unknown"
}

type FieldSpec struct {
	Name      string
	Kind      FieldKind
	Class     EventClass
	Precision int
	// Sampled fields are copied into SensorSample rows.
	Sampled bool
}

var fieldCatalog = map[string]FieldSpec{
	FieldLockStatus:  {Name: FieldLockStatus, Kind: FieldKindDiscrete, Class: EventClassSecurity},
	FieldContact:     {Name: FieldContact, Kind: FieldKindDiscrete, Class: EventClassSecurity},
	FieldMotion:      {Name: FieldMotion, Kind: FieldKindDiscrete, Class: EventClassSecurity},
	FieldDoorbell:    {Name: FieldDoorbell, Kind: FieldKindEdge, Class: EventClassSecurity},
	FieldBattery:     {Name: FieldBattery, Kind: FieldKindContinuous, Class: EventClassEnvironmental, Precision: 0},
	FieldTemperature: {Name: FieldTemperature, Kind: FieldKindContinuous, Class: EventClassEnvironmental, Precision: 1, Sampled: true},
	FieldHumidity:    {Name: FieldHumidity, Kind: FieldKindContinuous, Class: EventClassEnvironmental, Precision: 0, Sampled: true},
	FieldCO2:         {Name: FieldCO2, Kind: FieldKindContinuous, Class: EventClassEnvironmental, Precision: 0, Sampled: true},
	FieldPressure:    {Name: FieldPressure, Kind: FieldKindContinuous, Class: EventClassEnvironmental, Precision: 1, Sampled: true},
	FieldNoise:       {Name: FieldNoise, Kind: FieldKindContinuous, Class: EventClassEnvironmental, Precision: 0, Sampled: true},
}

// Schema is the set of fields a device type is expected to report.
type Schema struct {
	Type   DeviceType
	Fields []string
}

var schemas = map[DeviceType]Schema{
	DeviceTypeThermoHygrometer: {DeviceTypeThermoHygrometer, []string{FieldBattery, FieldTemperature, FieldHumidity}},
	DeviceTypeCO2Sensor:        {DeviceTypeCO2Sensor, []string{FieldBattery, FieldTemperature, FieldHumidity, FieldCO2}},
	DeviceTypeStation:          {DeviceTypeStation, []string{FieldTemperature, FieldHumidity, FieldCO2, FieldPressure, FieldNoise}},
	DeviceTypeLock:             {DeviceTypeLock, []string{FieldBattery, FieldLockStatus, FieldContact}},
	DeviceTypeContactSensor:    {DeviceTypeContactSensor, []string{FieldBattery, FieldContact, FieldMotion}},
	DeviceTypeMotionSensor:     {DeviceTypeMotionSensor, []string{FieldBattery, FieldMotion}},
	DeviceTypeDoorbell:         {DeviceTypeDoorbell, []string{FieldBattery, FieldDoorbell, FieldMotion}},
	DeviceTypeHub:              {DeviceTypeHub, []string{FieldTemperature, FieldHumidity}},
	DeviceTypeOutdoorModule:    {DeviceTypeOutdoorModule, []string{FieldBattery, FieldTemperature, FieldHumidity}},
	DeviceTypeOther:            {DeviceTypeOther, nil},
}

func SchemaFor(t DeviceType) Schema {
	if s, ok := schemas[t]; ok {
		return s
	}
	return Schema{Type: DeviceTypeOther}
}

// HasNumericCapability reports whether readings of this type belong in the
// time-series store.
func (s Schema) HasNumericCapability() bool {
	for _, f := range s.Fields {
		if fieldCatalog[f].Sampled {
			return true
		}
	}
	return false
}

// LookupField resolves the comparison policy for name. It does not consult the
// device type: a field outside the type's schema still resolves, so a
// mis-typed device keeps producing transitions.
func LookupField(name string) (FieldSpec, bool) {
	spec, ok := fieldCatalog[name]
	return spec, ok
}

func Round(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}

// ToFloat accepts the numeric shapes that survive JSON decoding.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// FormatValue renders an attribute value the way it is stored in history rows.
func (f FieldSpec) FormatValue(v any) string {
	if v == nil {
		return ""
	}
	if f.Kind == FieldKindContinuous {
		if n, ok := ToFloat(v); ok {
			return strconv.FormatFloat(Round(n, f.Precision), 'f', f.Precision, 64)
		}
	}
	switch b := v.(type) {
	case bool:
		return strconv.FormatBool(b)
	case string:
		return b
	}
	return fmt.Sprint(v)
}

// Normalize validates v against the field kind and returns the value to keep
// in DeviceState attributes.
func (f FieldSpec) Normalize(v any) (any, error) {
	switch f.Kind {
	case FieldKindContinuous:
		n, ok := ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("field %s: %v is not numeric", f.Name, v)
		}
		return n, nil
	default:
		switch d := v.(type) {
		case bool:
			return d, nil
		case string:
			if strings.TrimSpace(d) == "" {
				return nil, fmt.Errorf("field %s: empty value", f.Name)
			}
			return strings.ToLower(strings.TrimSpace(d)), nil
		}
		return nil, fmt.Errorf("field %s: unsupported value %v", f.Name, v)
	}
}

// Equal compares two normalized values under the field's policy.
func (f FieldSpec) Equal(a, b any) bool {
	if f.Kind == FieldKindEdge {
		return false
	}
	return f.FormatValue(a) == f.FormatValue(b)
}
