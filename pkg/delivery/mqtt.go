package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

var ErrPublishTimeout = errors.New("mqtt: publish timed out")

type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// MQTTPublisher mirrors every persisted transition to
// <prefix>/<device_id>/events.
type MQTTPublisher struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
}

type eventPayload struct {
	DeviceID      string    `json:"device_id"`
	DeviceName    string    `json:"device_name"`
	DeviceType    string    `json:"device_type"`
	Field         string    `json:"field"`
	PreviousValue string    `json:"previous_value"`
	NewValue      string    `json:"new_value"`
	EventClass    string    `json:"event_class"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameDelivery,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryMQTT),
	)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("Connected to broker", zap.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("Connection to broker lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, token.Error())
	}

	return NewMQTTPublisherWithClient(client, cfg.TopicPrefix), nil
}

func NewMQTTPublisherWithClient(client mqtt.Client, prefix string) *MQTTPublisher {
	return &MQTTPublisher{
		client:  client,
		prefix:  strings.Trim(prefix, "/"),
		qos:     1,
		timeout: 5 * time.Second,
	}
}

func (p *MQTTPublisher) Topic(deviceID string) string {
	if p.prefix == "" {
		return deviceID + "/events"
	}
	return p.prefix + "/" + deviceID + "/events"
}

// Publish implements iot.EventPublisher.
func (p *MQTTPublisher) Publish(ctx context.Context, event models.StateChangeEvent) error {
	payload, err := json.Marshal(eventPayload{
		DeviceID:      event.DeviceID,
		DeviceName:    event.DeviceName,
		DeviceType:    string(event.DeviceType),
		Field:         event.Field,
		PreviousValue: event.PreviousValue,
		NewValue:      event.NewValue,
		EventClass:    string(event.EventClass),
		OccurredAt:    event.OccurredAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("mqtt: encode event: %w", err)
	}

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	topic := p.Topic(event.DeviceID)
	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
