package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

// Slack posts messages to one incoming webhook per channel.
type Slack struct {
	webhooks map[models.Channel]string
	client   *http.Client
	maxTries uint
	backOff  func() backoff.BackOff
}

type SlackOption func(*Slack)

func WithHTTPClient(hc *http.Client) SlackOption {
	return func(s *Slack) {
		if hc != nil {
			s.client = hc
		}
	}
}

func WithMaxTries(n uint) SlackOption {
	return func(s *Slack) {
		if n > 0 {
			s.maxTries = n
		}
	}
}

func WithBackOff(factory func() backoff.BackOff) SlackOption {
	return func(s *Slack) {
		if factory != nil {
			s.backOff = factory
		}
	}
}

func NewSlack(securityURL, updateURL string, opts ...SlackOption) *Slack {
	s := &Slack{
		webhooks: map[models.Channel]string{
			models.ChannelSecurity: strings.TrimSpace(securityURL),
			models.ChannelUpdate:   strings.TrimSpace(updateURL),
		},
		client:   &http.Client{Timeout: 10 * time.Second},
		maxTries: 3,
		backOff:  func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type     string     `json:"type"`
	Text     *slackText `json:"text,omitempty"`
	ImageURL string     `json:"image_url,omitempty"`
	AltText  string     `json:"alt_text,omitempty"`
	Title    *slackText `json:"title,omitempty"`
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks,omitempty"`
}

func buildPayload(msg models.Message) slackPayload {
	text := msg.Text
	if msg.Title != "" {
		text = strings.TrimSpace(msg.Title + "\n" + msg.Text)
	}

	payload := slackPayload{Text: text}
	if msg.ImageURL == "" {
		return payload
	}

	if text != "" {
		payload.Blocks = append(payload.Blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: text},
		})
	}
	alt := msg.Title
	if alt == "" {
		alt = "chart"
	}
	payload.Blocks = append(payload.Blocks, slackBlock{
		Type:     "image",
		ImageURL: msg.ImageURL,
		AltText:  alt,
		Title:    &slackText{Type: "plain_text", Text: alt},
	})
	return payload
}

// Post implements iot.Poster. A channel without a webhook drops the message.
func (s *Slack) Post(ctx context.Context, channel models.Channel, msg models.Message) error {
	logger := common.GetLoggerWith(
		common.LoggerNameDelivery,
		zap.String(common.LoggerFieldCategory, common.LoggerCategorySlack),
		zap.String("channel", string(channel)),
	)

	url := s.webhooks[channel]
	if url == "" {
		logger.Debug("Channel not configured, message dropped")
		return nil
	}

	body, err := json.Marshal(buildPayload(msg))
	if err != nil {
		return fmt.Errorf("slack: encode: %w", err)
	}

	operation := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("slack: post: %w", err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return struct{}{}, fmt.Errorf("slack: post: http %d", resp.StatusCode)
		case resp.StatusCode >= 300:
			return struct{}{}, backoff.Permanent(fmt.Errorf("slack: post: http %d", resp.StatusCode))
		}
		return struct{}{}, nil
	}

	_, err = backoff.Retry(ctx, operation,
		backoff.WithBackOff(s.backOff()),
		backoff.WithMaxTries(s.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("Retrying post", zap.Duration("next", next), zap.Error(err))
		}),
	)
	return err
}
