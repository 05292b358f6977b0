package switchbot

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

const (
	DefaultBaseURL = "https://api.switch-bot.com/v1.1"

	statusSuccess = 100

	defaultMaxTries   = 3
	defaultDailyQuota = 10000
)

var ErrMissingCredentials = errors.New("switchbot: token and secret are required")

// APIError is a well-formed response whose statusCode is not success.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("switchbot: status %d: %s", e.StatusCode, e.Message)
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Body       json.RawMessage `json:"body"`
}

// Client talks to the SwitchBot cloud API. Every request spends one token of
// the daily quota limiter, including retries.
type Client struct {
	baseURL  string
	token    string
	secret   string
	client   *http.Client
	quota    *rate.Limiter
	maxTries uint
	backOff  func() backoff.BackOff
	now      func() time.Time
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithDailyQuota spreads n requests over 24 hours with a small burst for poll
// cycles.
func WithDailyQuota(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.quota = quotaLimiter(n)
		}
	}
}

func WithMaxTries(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTries = n
		}
	}
}

func WithBackOff(factory func() backoff.BackOff) Option {
	return func(c *Client) {
		if factory != nil {
			c.backOff = factory
		}
	}
}

func NewClient(token, secret string, opts ...Option) (*Client, error) {
	if token == "" || secret == "" {
		return nil, ErrMissingCredentials
	}
	c := &Client{
		baseURL:  DefaultBaseURL,
		token:    token,
		secret:   secret,
		client:   &http.Client{Timeout: 30 * time.Second},
		quota:    quotaLimiter(defaultDailyQuota),
		maxTries: defaultMaxTries,
		backOff:  func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func quotaLimiter(perDay int) *rate.Limiter {
	burst := min(perDay, 50)
	return rate.NewLimiter(rate.Every(24*time.Hour/time.Duration(perDay)), burst)
}

// sign computes base64(HMAC-SHA256(secret, token + t + nonce)).
func (c *Client) sign(t int64, nonce string) string {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(c.token + strconv.FormatInt(t, 10) + nonce))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	t := c.now().UnixMilli()
	nonce := uuid.NewString()
	req.Header.Set("Authorization", c.token)
	req.Header.Set("t", strconv.FormatInt(t, 10))
	req.Header.Set("nonce", nonce)
	req.Header.Set("sign", c.sign(t, nonce))
	req.Header.Set("Content-Type", "application/json; charset=utf8")
	return req, nil
}

// doJSON sends one API call with bounded retries. Transport errors, 429 and
// 5xx are retried; other HTTP errors and API status codes are permanent.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	logger := common.GetLoggerWith(
		common.LoggerNameVendorClient,
		zap.String(common.LoggerFieldCategory, common.LoggerCategorySwitchBot),
	)

	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("switchbot: encode request: %w", err)
		}
	}

	operation := func() (json.RawMessage, error) {
		if err := c.quota.Wait(ctx); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("switchbot: daily quota: %w", err))
		}

		req, err := c.newRequest(ctx, method, path, payload)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("switchbot: %s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("switchbot: read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, fmt.Errorf("switchbot: %s %s: http %d", method, path, resp.StatusCode)
		case resp.StatusCode >= 300:
			return nil, backoff.Permanent(fmt.Errorf("switchbot: %s %s: http %d", method, path, resp.StatusCode))
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("switchbot: decode response: %w", err))
		}
		if env.StatusCode != statusSuccess {
			return nil, backoff.Permanent(&APIError{StatusCode: env.StatusCode, Message: env.Message})
		}
		return env.Body, nil
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("Retrying request", zap.String("path", path), zap.Duration("next", next), zap.Error(err))
		}),
	)
	if err != nil {
		return err
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("switchbot: decode body: %w", err)
		}
	}
	return nil
}

type deviceListBody struct {
	DeviceList []struct {
		DeviceID   string `json:"deviceId"`
		DeviceName string `json:"deviceName"`
		DeviceType string `json:"deviceType"`
	} `json:"deviceList"`
}

// ListDevices returns the physical devices. Infrared remotes have no state and
// are left out.
func (c *Client) ListDevices(ctx context.Context) ([]models.Device, error) {
	var body deviceListBody
	if err := c.doJSON(ctx, http.MethodGet, "/devices", nil, &body); err != nil {
		return nil, err
	}

	now := c.now()
	devices := make([]models.Device, 0, len(body.DeviceList))
	for _, d := range body.DeviceList {
		devices = append(devices, models.Device{
			ID:         NormalizeDeviceID(d.DeviceID),
			Name:       d.DeviceName,
			VendorType: d.DeviceType,
			Type:       DeviceTypeFor(d.DeviceType),
			Source:     models.SourceSwitchBot,
			UpdatedAt:  now,
		})
	}
	return devices, nil
}

func (c *Client) FetchSnapshot(ctx context.Context, device models.Device) (*models.Snapshot, error) {
	var status map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/devices/"+device.ID+"/status", nil, &status); err != nil {
		return nil, err
	}

	typ := device.Type
	if typ == "" {
		typ = DeviceTypeFor(device.VendorType)
	}
	return &models.Snapshot{
		DeviceID:   device.ID,
		Name:       device.Name,
		Type:       typ,
		Source:     models.SourceSwitchBot,
		ObservedAt: c.now(),
		Fields:     NormalizeFields(status),
	}, nil
}

type queryWebhookBody struct {
	URLs []string `json:"urls"`
}

func (c *Client) QueryPushURLs(ctx context.Context) ([]string, error) {
	var body queryWebhookBody
	req := map[string]any{"action": "queryUrl"}
	if err := c.doJSON(ctx, http.MethodPost, "/webhook/queryWebhook", req, &body); err != nil {
		return nil, err
	}
	return body.URLs, nil
}

func (c *Client) RegisterPushURL(ctx context.Context, url string) error {
	req := map[string]any{"action": "setupWebhook", "url": url, "deviceList": "ALL"}
	return c.doJSON(ctx, http.MethodPost, "/webhook/setupWebhook", req, nil)
}

func (c *Client) DeregisterPushURL(ctx context.Context, url string) error {
	req := map[string]any{"action": "deleteWebhook", "url": url}
	return c.doJSON(ctx, http.MethodPost, "/webhook/deleteWebhook", req, nil)
}
