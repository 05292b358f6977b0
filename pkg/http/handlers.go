package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zhttp"

	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/db"
	"liyu1981.xyz/home-state-monitor/pkg/iot"
	"liyu1981.xyz/home-state-monitor/pkg/metrics"
	"liyu1981.xyz/home-state-monitor/pkg/models"
	"liyu1981.xyz/home-state-monitor/pkg/switchbot"
)

const maxPushBody = 1 << 20

// PostPush accepts one vendor delivery. The response acknowledges the store
// write only; notifications go out through the dispatcher afterwards.
func (rs *RestfulServer) PostPush(c *gin.Context) {
	logger := common.GetLoggerWith(
		common.LoggerNameRestfulServer,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryPushListener),
	)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxPushBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	snap, err := switchbot.ParseWebhook(body, rs.now())
	if err != nil {
		logger.Warn("Rejected push payload", zap.Error(err))
		metrics.ObserveSnapshot(models.SourceSwitchBot, models.MonitoringModePushed, metrics.ResultMalformed, 0)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// the store write finishes even if the sender hangs up
	ctx := context.WithoutCancel(c.Request.Context())
	result, err := rs.Iot.Ingest.Ingest(ctx, snap, models.MonitoringModePushed)
	if err != nil {
		if errors.Is(err, iot.ErrMalformedSnapshot) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Failed to store push delivery", zap.String("device_id", snap.DeviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
		return
	}

	status := "accepted"
	if result.Discarded {
		status = "discarded"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "events": len(result.Events)})
}

type deviceStateView struct {
	DeviceID   string         `json:"device_id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Source     string         `json:"source"`
	LastSeenAt time.Time      `json:"last_seen_at"`
	Attributes map[string]any `json:"attributes"`
}

func toStateView(s models.DeviceState) deviceStateView {
	return deviceStateView{
		DeviceID:   s.DeviceID,
		Name:       s.Name,
		Type:       string(s.Type),
		Source:     string(s.Source),
		LastSeenAt: s.LastSeenAt,
		Attributes: s.Attributes,
	}
}

type eventView struct {
	ID            uint      `json:"id"`
	DeviceID      string    `json:"device_id"`
	DeviceName    string    `json:"device_name"`
	DeviceType    string    `json:"device_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	Field         string    `json:"field"`
	PreviousValue string    `json:"previous_value"`
	NewValue      string    `json:"new_value"`
	EventClass    string    `json:"event_class"`
	Message       string    `json:"message,omitempty"`
}

func toEventView(e models.StateChangeEvent, message string) eventView {
	return eventView{
		ID:            e.ID,
		DeviceID:      e.DeviceID,
		DeviceName:    e.DeviceName,
		DeviceType:    string(e.DeviceType),
		OccurredAt:    e.OccurredAt,
		Field:         e.Field,
		PreviousValue: e.PreviousValue,
		NewValue:      e.NewValue,
		EventClass:    string(e.EventClass),
		Message:       message,
	}
}

func (rs *RestfulServer) ListDevices(c *gin.Context) {
	states, err := rs.Iot.State.ListDeviceStates()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, common.Mapper(states, toStateView))
}

func (rs *RestfulServer) GetDevice(c *gin.Context) {
	state, err := rs.Iot.State.GetDeviceState(c.Param("device_id"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toStateView(*state))
}

type HistoryQuery struct {
	Limit int `zog:"limit"`
}

var historyQuerySchema = z.Struct(z.Shape{
	"Limit": z.Int().Default(50).GTE(1).LTE(1000),
})

func (rs *RestfulServer) GetDeviceHistory(c *gin.Context) {
	var q HistoryQuery
	if err := historyQuerySchema.Parse(zhttp.Request(c.Request), &q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	events, err := rs.Iot.State.GetDeviceHistory(c.Param("device_id"), q.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, common.Mapper(events, func(e models.StateChangeEvent) eventView {
		return toEventView(e, "")
	}))
}

type EventsQuery struct {
	Since time.Time `zog:"since"`
	Limit int       `zog:"limit"`
}

var eventsQuerySchema = z.Struct(z.Shape{
	"Since": z.Time().Optional(),
	"Limit": z.Int().Default(100).GTE(1).LTE(1000),
})

// GetSecurityEvents lists security transitions since ?since (RFC3339),
// defaulting to the last 24 hours.
func (rs *RestfulServer) GetSecurityEvents(c *gin.Context) {
	var q EventsQuery
	if err := eventsQuerySchema.Parse(zhttp.Request(c.Request), &q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}
	if q.Since.IsZero() {
		q.Since = rs.now().Add(-24 * time.Hour)
	}

	events, err := rs.Iot.State.RecentSecurityEvents(q.Since, q.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, common.Mapper(events, func(e models.SecurityEvent) eventView {
		return toEventView(e.StateChangeEvent, e.Message)
	}))
}

type LimiterRequest struct {
	Rate  float64 `json:"rate"`
	Burst int     `json:"burst"`
}

var limiterRequestSchema = z.Struct(z.Shape{
	"rate":  z.Float64().Required(),
	"burst": z.Int().Required(),
})

// PostLimiter overrides the read API budget for one client address.
func (rs *RestfulServer) PostLimiter(c *gin.Context) {
	key := c.Param("key")

	var req LimiterRequest
	if err := limiterRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	rs.SetLimiter(key, req.Rate, req.Burst)

	c.Status(http.StatusOK)
}

func (rs *RestfulServer) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
