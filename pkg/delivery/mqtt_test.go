package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liyu1981.xyz/home-state-monitor/pkg/models"
)

type fakeToken struct {
	done    chan struct{}
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool { return true }

func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }

func (t *fakeToken) Done() <-chan struct{} { return t.done }

func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient only implements Publish; any other call panics on the nil
// embedded interface.
type fakeClient struct {
	mqtt.Client
	sent  []published
	token *fakeToken
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return c.token
}

func TestMQTTPublish(t *testing.T) {
	client := &fakeClient{token: &fakeToken{}}
	p := NewMQTTPublisherWithClient(client, "/home/")

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	err := p.Publish(context.Background(), models.StateChangeEvent{
		DeviceID: "C271111EC0AB", DeviceName: "玄関", DeviceType: models.DeviceTypeLock,
		Field: models.FieldLockStatus, PreviousValue: "locked", NewValue: "unlocked",
		EventClass: models.EventClassSecurity, OccurredAt: at,
	})
	require.NoError(t, err)

	require.Len(t, client.sent, 1)
	assert.Equal(t, "home/C271111EC0AB/events", client.sent[0].topic)
	assert.Equal(t, byte(1), client.sent[0].qos)

	var body map[string]any
	require.NoError(t, json.Unmarshal(client.sent[0].payload, &body))
	assert.Equal(t, "unlocked", body["new_value"])
	assert.Equal(t, "security", body["event_class"])
	assert.Equal(t, "2024-06-01T12:00:00Z", body["occurred_at"])
}

func TestMQTTPublishFailures(t *testing.T) {
	client := &fakeClient{token: &fakeToken{timeout: true}}
	p := NewMQTTPublisherWithClient(client, "")
	assert.Equal(t, "dev/events", p.Topic("dev"))

	err := p.Publish(context.Background(), models.StateChangeEvent{DeviceID: "dev"})
	assert.ErrorIs(t, err, ErrPublishTimeout)

	client.token = &fakeToken{err: errors.New("not connected")}
	err = p.Publish(context.Background(), models.StateChangeEvent{DeviceID: "dev"})
	assert.ErrorContains(t, err, "not connected")
}
