package switchbot

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	z "github.com/Oudwins/zog"

	"liyu1981.xyz/home-state-monitor/pkg/models"
)

var ErrInvalidPayload = errors.New("switchbot: invalid webhook payload")

type webhookEnvelope struct {
	EventType    string         `json:"eventType"`
	EventVersion string         `json:"eventVersion"`
	Context      map[string]any `json:"context"`
}

type webhookHeader struct {
	EventType  string
	DeviceMac  string
	DeviceType string
}

var webhookHeaderSchema = z.Struct(z.Shape{
	"EventType": z.String().Required(),
	"DeviceMac": z.String().Required().Min(1),
})

// ParseWebhook decodes one push delivery into a snapshot. now stands in for
// timeOfSample when the vendor omits it.
func ParseWebhook(body []byte, now time.Time) (models.Snapshot, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.Context == nil {
		return models.Snapshot{}, fmt.Errorf("%w: missing context", ErrInvalidPayload)
	}

	hdr := webhookHeader{EventType: env.EventType}
	hdr.DeviceMac, _ = env.Context["deviceMac"].(string)
	hdr.DeviceType, _ = env.Context["deviceType"].(string)
	hdr.DeviceMac = strings.TrimSpace(hdr.DeviceMac)

	if issues := webhookHeaderSchema.Validate(&hdr); len(issues) > 0 {
		var msgs []string
		for field, list := range issues {
			for _, issue := range list {
				msgs = append(msgs, fmt.Sprintf("%s: %s", field, issue.Message))
			}
		}
		sort.Strings(msgs)
		return models.Snapshot{}, fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(msgs, "; "))
	}

	observed := now
	if ms, ok := models.ToFloat(env.Context["timeOfSample"]); ok && ms > 0 {
		observed = time.UnixMilli(int64(ms))
	}

	typ := DeviceTypeFor(hdr.DeviceType)
	if hdr.DeviceType == "" {
		// resolved from the device directory during ingest
		typ = ""
	}

	fields := NormalizeFields(env.Context)
	if typ == models.DeviceTypeDoorbell && isDoorbellPress(fields) {
		fields[models.FieldDoorbell] = "pressed"
	}

	return models.Snapshot{
		DeviceID:   NormalizeDeviceID(hdr.DeviceMac),
		Type:       typ,
		Source:     models.SourceSwitchBot,
		ObservedAt: observed.UTC(),
		Fields:     fields,
	}, nil
}

// isDoorbellPress reports whether a doorbell delivery is a button press. The
// vendor sends presses with no state of their own; motion and status reports
// carry attributes.
func isDoorbellPress(fields map[string]any) bool {
	return len(fields) == 0
}
