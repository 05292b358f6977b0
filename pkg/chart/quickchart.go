package chart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

const DefaultBaseURL = "https://quickchart.io"

// point timestamps are sent as wall clock without offset so the renderer
// keeps the display timezone the reporter already applied
const wallClockLayout = "2006-01-02T15:04:05"

var ErrNoSeries = errors.New("chart: request has no series")

// QuickChart renders Chart.js configs through the QuickChart short URL API.
type QuickChart struct {
	baseURL  string
	client   *http.Client
	width    int
	height   int
	maxTries uint
	backOff  func() backoff.BackOff
}

type Option func(*QuickChart)

func WithHTTPClient(hc *http.Client) Option {
	return func(q *QuickChart) {
		if hc != nil {
			q.client = hc
		}
	}
}

func WithSize(width, height int) Option {
	return func(q *QuickChart) {
		if width > 0 && height > 0 {
			q.width, q.height = width, height
		}
	}
}

func WithMaxTries(n uint) Option {
	return func(q *QuickChart) {
		if n > 0 {
			q.maxTries = n
		}
	}
}

func WithBackOff(factory func() backoff.BackOff) Option {
	return func(q *QuickChart) {
		if factory != nil {
			q.backOff = factory
		}
	}
}

func New(baseURL string, opts ...Option) *QuickChart {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	q := &QuickChart{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
		width:    800,
		height:   400,
		maxTries: 3,
		backOff:  func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

type xy struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

type dataset struct {
	Label       string  `json:"label"`
	Data        []xy    `json:"data"`
	BorderColor string  `json:"borderColor"`
	Fill        bool    `json:"fill"`
	Tension     float64 `json:"tension"`
	PointRadius int     `json:"pointRadius"`
}

type annotationLabel struct {
	Display  bool   `json:"display"`
	Content  string `json:"content"`
	Position string `json:"position"`
}

type annotation struct {
	Type        string          `json:"type"`
	YMin        float64         `json:"yMin"`
	YMax        float64         `json:"yMax"`
	BorderColor string          `json:"borderColor"`
	BorderWidth int             `json:"borderWidth"`
	BorderDash  []int           `json:"borderDash"`
	Label       annotationLabel `json:"label"`
}

type ChartConfig struct {
	Type string `json:"type"`
	Data struct {
		Datasets []dataset `json:"datasets"`
	} `json:"data"`
	Options map[string]any `json:"options"`
}

type createRequest struct {
	Version         string      `json:"version"`
	BackgroundColor string      `json:"backgroundColor"`
	Width           int         `json:"width"`
	Height          int         `json:"height"`
	Format          string      `json:"format"`
	Chart           ChartConfig `json:"chart"`
}

type createResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

// Config builds the Chart.js config for one chart request.
func Config(req models.ChartRequest) ChartConfig {
	var cfg ChartConfig
	cfg.Type = "line"

	for _, s := range req.Series {
		ds := dataset{Label: s.Label, BorderColor: s.Color, Tension: 0.3, PointRadius: 0}
		ds.Data = make([]xy, 0, len(s.Points))
		for _, p := range s.Points {
			ds.Data = append(ds.Data, xy{X: p.At.Format(wallClockLayout), Y: p.Value})
		}
		cfg.Data.Datasets = append(cfg.Data.Datasets, ds)
	}

	annotations := make(map[string]annotation, len(req.Annotations))
	for i, a := range req.Annotations {
		annotations[fmt.Sprintf("line%d", i)] = annotation{
			Type:        "line",
			YMin:        a.Value,
			YMax:        a.Value,
			BorderColor: a.Color,
			BorderWidth: 2,
			BorderDash:  []int{5, 5},
			Label:       annotationLabel{Display: true, Content: a.Label, Position: "end"},
		}
	}

	cfg.Options = map[string]any{
		"plugins": map[string]any{
			"title":      map[string]any{"display": req.Title != "", "text": req.Title},
			"legend":     map[string]any{"display": len(req.Series) > 1},
			"annotation": map[string]any{"annotations": annotations},
		},
		"scales": map[string]any{
			"x": map[string]any{
				"type": "time",
				"time": map[string]any{"unit": "hour", "displayFormats": map[string]string{"hour": "HH:mm"}},
			},
			"y": map[string]any{"title": map[string]any{"display": req.Unit != "", "text": req.Unit}},
		},
	}
	return cfg
}

// Render implements iot.Renderer and returns the short image URL.
func (q *QuickChart) Render(ctx context.Context, req models.ChartRequest) (string, error) {
	if len(req.Series) == 0 {
		return "", ErrNoSeries
	}

	logger := common.GetLoggerWith(
		common.LoggerNameDelivery,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryChart),
		zap.String("chart", string(req.Kind)),
	)

	body, err := json.Marshal(createRequest{
		Version:         "4",
		BackgroundColor: "white",
		Width:           q.width,
		Height:          q.height,
		Format:          "png",
		Chart:           Config(req),
	})
	if err != nil {
		return "", fmt.Errorf("chart: encode: %w", err)
	}

	operation := func() (string, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, q.baseURL+"/chart/create", bytes.NewReader(body))
		if err != nil {
			return "", backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := q.client.Do(httpReq)
		if err != nil {
			return "", fmt.Errorf("chart: create: %w", err)
		}
		defer resp.Body.Close()

		raw, _ := io.ReadAll(resp.Body)
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return "", fmt.Errorf("chart: create: http %d", resp.StatusCode)
		case resp.StatusCode >= 300:
			return "", backoff.Permanent(fmt.Errorf("chart: create: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
		}

		var out createResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", backoff.Permanent(fmt.Errorf("chart: decode: %w", err))
		}
		if !out.Success || out.URL == "" {
			return "", backoff.Permanent(errors.New("chart: create: no url returned"))
		}
		return out.URL, nil
	}

	url, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(q.backOff()),
		backoff.WithMaxTries(q.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("Retrying chart render", zap.Duration("next", next), zap.Error(err))
		}),
	)
	if err != nil {
		return "", err
	}

	logger.Debug("Chart rendered", zap.String("url", url), zap.Int("series", len(req.Series)))
	return url, nil
}
