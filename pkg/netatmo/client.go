package netatmo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

const (
	DefaultBaseURL = "https://api.netatmo.com"

	ModuleMain    = "NAMain"
	ModuleOutdoor = "NAModule1"
	ModuleWind    = "NAModule2"
	ModuleRain    = "NAModule3"
	ModuleIndoor  = "NAModule4"
)

var ErrMissingCredentials = errors.New("netatmo: client id, client secret and refresh token are required")

type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Client reads every station and module of the account in one call. Access
// tokens are refreshed through oauth2; a rotated refresh token is handed to
// OnRotate.
type Client struct {
	baseURL  string
	client   *http.Client
	maxTries uint
	backOff  func() backoff.BackOff

	mu       sync.Mutex
	refresh  string
	onRotate func(refreshToken string)
}

type Option func(*clientOpts)

type clientOpts struct {
	baseURL    string
	httpClient *http.Client
	maxTries   uint
	backOff    func() backoff.BackOff
	onRotate   func(string)
}

func WithBaseURL(u string) Option {
	return func(o *clientOpts) {
		if u != "" {
			o.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets the transport used for both token refresh and API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOpts) {
		if hc != nil {
			o.httpClient = hc
		}
	}
}

func WithMaxTries(n uint) Option {
	return func(o *clientOpts) {
		if n > 0 {
			o.maxTries = n
		}
	}
}

func WithBackOff(factory func() backoff.BackOff) Option {
	return func(o *clientOpts) {
		if factory != nil {
			o.backOff = factory
		}
	}
}

func WithOnRotate(fn func(refreshToken string)) Option {
	return func(o *clientOpts) { o.onRotate = fn }
}

func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, ErrMissingCredentials
	}

	o := clientOpts{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxTries:   3,
		backOff:    func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		baseURL:  o.baseURL,
		maxTries: o.maxTries,
		backOff:  o.backOff,
		refresh:  creds.RefreshToken,
		onRotate: o.onRotate,
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  o.baseURL + "/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	// oauth2 picks the refresh transport up from the context
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, o.httpClient)
	source := oauth2.ReuseTokenSource(nil, &rotationSource{
		base:   conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken}),
		client: c,
	})
	c.client = oauth2.NewClient(ctx, source)
	c.client.Timeout = o.httpClient.Timeout

	return c, nil
}

// RefreshToken is the latest refresh token seen, rotated or not.
func (c *Client) RefreshToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refresh
}

type rotationSource struct {
	base   oauth2.TokenSource
	client *Client
}

func (s *rotationSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	c := s.client
	c.mu.Lock()
	rotated := tok.RefreshToken != "" && tok.RefreshToken != c.refresh
	if rotated {
		c.refresh = tok.RefreshToken
	}
	onRotate := c.onRotate
	c.mu.Unlock()

	if rotated {
		common.GetLoggerWith(
			common.LoggerNameVendorClient,
			zap.String(common.LoggerFieldCategory, common.LoggerCategoryNetatmo),
		).Info("Refresh token rotated")
		if onRotate != nil {
			onRotate(tok.RefreshToken)
		}
	}
	return tok, nil
}

type dashboard map[string]any

type module struct {
	ID             string    `json:"_id"`
	ModuleName     string    `json:"module_name"`
	Type           string    `json:"type"`
	BatteryPercent *float64  `json:"battery_percent"`
	Dashboard      dashboard `json:"dashboard_data"`
}

type station struct {
	module
	StationName string   `json:"station_name"`
	HomeName    string   `json:"home_name"`
	Modules     []module `json:"modules"`
}

type stationsData struct {
	Status string `json:"status"`
	Body   struct {
		Devices []station `json:"devices"`
	} `json:"body"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) getStationsData(ctx context.Context) (*stationsData, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameVendorClient,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryNetatmo),
	)

	operation := func() (*stationsData, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/getstationsdata", nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) {
				return nil, backoff.Permanent(fmt.Errorf("netatmo: refresh access token: %w", err))
			}
			return nil, fmt.Errorf("netatmo: getstationsdata: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("netatmo: read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, fmt.Errorf("netatmo: getstationsdata: http %d", resp.StatusCode)
		case resp.StatusCode >= 300:
			return nil, backoff.Permanent(fmt.Errorf("netatmo: getstationsdata: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
		}

		var data stationsData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("netatmo: decode response: %w", err))
		}
		if data.Error != nil {
			return nil, backoff.Permanent(fmt.Errorf("netatmo: error %d: %s", data.Error.Code, data.Error.Message))
		}
		return &data, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("Retrying request", zap.Duration("next", next), zap.Error(err))
		}),
	)
}

// FetchReadings returns one snapshot per station and module that reported
// dashboard data. Unreachable modules carry no dashboard and are left out.
func (c *Client) FetchReadings(ctx context.Context) ([]models.Snapshot, error) {
	data, err := c.getStationsData(ctx)
	if err != nil {
		return nil, err
	}

	var snaps []models.Snapshot
	for _, st := range data.Body.Devices {
		stationName := firstNonEmpty(st.StationName, st.HomeName, "Unknown")
		if len(st.Dashboard) > 0 {
			if st.Type == "" {
				st.Type = ModuleMain
			}
			snaps = append(snaps, toSnapshot(st.module, firstNonEmpty(st.ModuleName, stationName)))
		}
		for _, m := range st.Modules {
			if len(m.Dashboard) == 0 {
				continue
			}
			snaps = append(snaps, toSnapshot(m, firstNonEmpty(m.ModuleName, "Module")))
		}
	}
	return snaps, nil
}

var dashboardFields = map[string]string{
	"Temperature":  models.FieldTemperature,
	"Humidity":     models.FieldHumidity,
	"CO2":          models.FieldCO2,
	"Pressure":     models.FieldPressure,
	"Noise":        models.FieldNoise,
	"WindStrength": "wind_strength",
	"WindAngle":    "wind_angle",
	"GustStrength": "gust_strength",
	"GustAngle":    "gust_angle",
	"Rain":         "rain",
	"sum_rain_1":   "rain_1h",
	"sum_rain_24":  "rain_24h",
}

func DeviceTypeFor(moduleType string) models.DeviceType {
	switch moduleType {
	case ModuleOutdoor, ModuleWind, ModuleRain:
		return models.DeviceTypeOutdoorModule
	case ModuleMain, ModuleIndoor:
		return models.DeviceTypeStation
	}
	return models.DeviceTypeOther
}

func toSnapshot(m module, name string) models.Snapshot {
	fields := make(map[string]any, len(m.Dashboard)+1)
	for vendorKey, field := range dashboardFields {
		if v, ok := m.Dashboard[vendorKey]; ok && v != nil {
			fields[field] = v
		}
	}
	if m.BatteryPercent != nil {
		fields[models.FieldBattery] = *m.BatteryPercent
	}

	observed := time.Now().UTC()
	if ts, ok := models.ToFloat(m.Dashboard["time_utc"]); ok && ts > 0 {
		observed = time.Unix(int64(ts), 0).UTC()
	}

	return models.Snapshot{
		DeviceID:   m.ID,
		Name:       name,
		Type:       DeviceTypeFor(m.Type),
		Source:     models.SourceNetatmo,
		ModuleType: m.Type,
		ObservedAt: observed,
		Fields:     fields,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
