package switchbot

import (
	"strings"

	"liyu1981.xyz/home-state-monitor/pkg/models"
)

// deviceTypes covers both the device list names and the short names used in
// webhook deliveries.
var deviceTypes = map[string]models.DeviceType{
	"Meter":           models.DeviceTypeThermoHygrometer,
	"MeterPlus":       models.DeviceTypeThermoHygrometer,
	"Meter Plus":      models.DeviceTypeThermoHygrometer,
	"MeterPro":        models.DeviceTypeThermoHygrometer,
	"WoIOSensor":      models.DeviceTypeThermoHygrometer,
	"WoMeter":         models.DeviceTypeThermoHygrometer,
	"WoMeterPlus":     models.DeviceTypeThermoHygrometer,
	"WoMeterPro":      models.DeviceTypeThermoHygrometer,
	"MeterPro(CO2)":   models.DeviceTypeCO2Sensor,
	"WoMeterProCO2":   models.DeviceTypeCO2Sensor,
	"Smart Lock":      models.DeviceTypeLock,
	"Smart Lock Pro":  models.DeviceTypeLock,
	"Smart Lock Lite": models.DeviceTypeLock,
	"Lock":            models.DeviceTypeLock,
	"WoLock":          models.DeviceTypeLock,
	"WoLockPro":       models.DeviceTypeLock,
	"Contact Sensor":  models.DeviceTypeContactSensor,
	"WoContact":       models.DeviceTypeContactSensor,
	"Motion Sensor":   models.DeviceTypeMotionSensor,
	"WoPresence":      models.DeviceTypeMotionSensor,
	"Video Doorbell":  models.DeviceTypeDoorbell,
	"WoDoorbell":      models.DeviceTypeDoorbell,
	"Hub":             models.DeviceTypeHub,
	"Hub Plus":        models.DeviceTypeHub,
	"Hub Mini":        models.DeviceTypeHub,
	"Hub 2":           models.DeviceTypeHub,
	"WoHub2":          models.DeviceTypeHub,
}

func DeviceTypeFor(vendorType string) models.DeviceType {
	if t, ok := deviceTypes[strings.TrimSpace(vendorType)]; ok {
		return t
	}
	return models.DeviceTypeOther
}

// NormalizeDeviceID maps "c2:71:11:1e:c0:ab" and "C271111EC0AB" to the same id.
func NormalizeDeviceID(id string) string {
	id = strings.NewReplacer(":", "", "-", "").Replace(strings.TrimSpace(id))
	return strings.ToUpper(id)
}

var contactStates = map[string]string{
	"open":            "open",
	"opened":          "open",
	"close":           "closed",
	"closed":          "closed",
	"timeoutnotclose": "open_timeout",
}

// envelope keys that describe the delivery rather than the device
var skippedKeys = map[string]bool{
	"deviceId":     true,
	"deviceMac":    true,
	"deviceType":   true,
	"deviceName":   true,
	"hubDeviceId":  true,
	"timeOfSample": true,
	"version":      true,
}

// NormalizeFields maps vendor status keys onto attribute names. Scalar keys
// with no mapping are kept verbatim.
func NormalizeFields(raw map[string]any) map[string]any {
	fields := make(map[string]any, len(raw))

	for key, value := range raw {
		if skippedKeys[key] {
			continue
		}
		switch key {
		case "lockState":
			if s, ok := value.(string); ok {
				fields[models.FieldLockStatus] = strings.ToLower(s)
			}
		case "openState", "doorState":
			if s, ok := value.(string); ok {
				if mapped, ok := contactStates[strings.ToLower(s)]; ok {
					fields[models.FieldContact] = mapped
				} else {
					fields[models.FieldContact] = strings.ToLower(s)
				}
			}
		case "moveDetected":
			if b, ok := value.(bool); ok {
				fields[models.FieldMotion] = b
			}
		case "detectionState":
			if s, ok := value.(string); ok {
				fields[models.FieldMotion] = strings.EqualFold(s, "DETECTED")
			}
		case "battery":
			fields[models.FieldBattery] = value
		case "temperature":
			fields[models.FieldTemperature] = value
		case "humidity":
			fields[models.FieldHumidity] = value
		case "CO2", "co2":
			fields[models.FieldCO2] = value
		default:
			switch value.(type) {
			case string, bool, float64:
				fields[key] = value
			}
		}
	}

	return fields
}
