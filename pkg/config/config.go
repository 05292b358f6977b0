package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	z "github.com/Oudwins/zog"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

var ErrMissingCredentials = errors.New("missing credentials")

// NotifyRules holds the noise filters applied before a transition is delivered.
type NotifyRules struct {
	MinDelta   map[string]float64 `yaml:"min_delta"`
	BatteryLow float64            `yaml:"battery_low"`
}

// Rules is the operator-editable part of the configuration, read from the
// rules file.
type Rules struct {
	IgnorePatterns  []string    `yaml:"ignore_patterns"`
	PollPatterns    []string    `yaml:"poll_patterns"`
	OutdoorKeywords []string    `yaml:"outdoor_keywords"`
	Notify          NotifyRules `yaml:"notify"`
}

type SwitchBot struct {
	Token      string
	Secret     string
	DailyQuota int
}

type Netatmo struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func (n Netatmo) Enabled() bool {
	return n.ClientID != "" && n.ClientSecret != "" && n.RefreshToken != ""
}

type Slack struct {
	SecurityWebhookURL string
	UpdateWebhookURL   string
}

type MQTT struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

func (m MQTT) Enabled() bool {
	return m.Broker != ""
}

type Config struct {
	DBType string
	DBPath string

	HTTPHostPort string
	GRPCHostPort string

	PushPath       string
	PushEnabled    bool
	PushMandatory  bool
	TunnelHostname string
	TunnelWait     time.Duration

	RulesFile string
	Locale    string
	DisplayTZ string

	SwitchBotInterval time.Duration
	NetatmoInterval   time.Duration
	ReportInterval    time.Duration
	ReportDaily       bool
	ChartBucket       time.Duration
	PruneInterval     time.Duration

	HistoryDays     int
	SensorDataDays  int
	NetatmoDataDays int

	DefaultRate  float64
	DefaultBurst int

	SwitchBot     SwitchBot
	Netatmo       Netatmo
	Slack         Slack
	QuickChartURL string
	MQTT          MQTT

	Rules Rules
}

var configSchema = z.Struct(z.Shape{
	"DBType":          z.String().Required().OneOf([]string{"file", "memory"}),
	"PushPath":        z.String().Required().HasPrefix("/"),
	"Locale":          z.String().Required().OneOf([]string{"ja", "en"}),
	"HistoryDays":     z.Int().Required().GTE(1),
	"SensorDataDays":  z.Int().Required().GTE(1),
	"NetatmoDataDays": z.Int().Required().GTE(1),
	"DefaultRate":     z.Float64().Required().GT(0),
	"DefaultBurst":    z.Int().Required().GTE(1),
})

func DefaultRules() Rules {
	return Rules{
		OutdoorKeywords: []string{"防水温湿度計", "屋外", "Outdoor", "outdoor"},
		Notify: NotifyRules{
			MinDelta: map[string]float64{
				models.FieldTemperature: 1.0,
				models.FieldHumidity:    5,
				models.FieldCO2:         200,
				models.FieldPressure:    2,
				models.FieldNoise:       10,
			},
			BatteryLow: 20,
		},
	}
}

// Load reads .env when present, then environment variables, then the rules
// file named by MONITOR_RULES_FILE.
func Load() (Config, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryConfig),
	)

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}

	cfg := FromEnv()

	if cfg.RulesFile != "" {
		rules, err := LoadRules(cfg.RulesFile)
		if err != nil {
			return cfg, err
		}
		cfg.Rules = rules
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	logger.Info("Configuration loaded",
		zap.String("db_type", cfg.DBType),
		zap.Bool("push_enabled", cfg.PushEnabled),
		zap.Bool("netatmo_enabled", cfg.Netatmo.Enabled()),
		zap.Bool("mqtt_enabled", cfg.MQTT.Enabled()),
		zap.Int("ignore_patterns", len(cfg.Rules.IgnorePatterns)),
		zap.Int("poll_patterns", len(cfg.Rules.PollPatterns)))

	return cfg, nil
}

func FromEnv() Config {
	return Config{
		DBType: getenvDefault(common.EnvKeyMonitorDBType, "file"),
		DBPath: getenvDefault(common.EnvKeyMonitorDbPath, "monitor.db"),

		HTTPHostPort: getenvDefault(common.EnvKeyMonitorHttpHostPort, ":1080"),
		GRPCHostPort: strings.TrimSpace(os.Getenv(common.EnvKeyMonitorGrpcHostPort)),

		PushPath:       getenvDefault(common.EnvKeyMonitorPushPath, "/webhook/switchbot"),
		PushEnabled:    getenvBoolDefault(common.EnvKeyMonitorPushEnabled, true),
		PushMandatory:  getenvBoolDefault(common.EnvKeyMonitorPushMandatory, false),
		TunnelHostname: os.Getenv(common.EnvKeyMonitorTunnelHost),
		TunnelWait:     getenvDurationDefault(common.EnvKeyMonitorTunnelWait, 30*time.Second),

		RulesFile: os.Getenv(common.EnvKeyMonitorRulesFile),
		Locale:    getenvDefault(common.EnvKeyMonitorLocale, "ja"),
		DisplayTZ: getenvDefault(common.EnvKeyMonitorDisplayTZ, "Asia/Tokyo"),

		SwitchBotInterval: getenvDurationDefault(common.EnvKeyMonitorSwitchBotInterval, 5*time.Minute),
		NetatmoInterval:   getenvDurationDefault(common.EnvKeyMonitorNetatmoInterval, 10*time.Minute),
		ReportInterval:    getenvDurationDefault(common.EnvKeyMonitorReportInterval, time.Hour),
		ReportDaily:       getenvBoolDefault(common.EnvKeyMonitorReportDaily, false),
		ChartBucket:       getenvDurationDefault(common.EnvKeyMonitorChartBucket, 15*time.Minute),
		PruneInterval:     getenvDurationDefault(common.EnvKeyMonitorPruneInterval, 24*time.Hour),

		HistoryDays:     getenvIntDefault(common.EnvKeyMonitorHistoryDays, 30),
		SensorDataDays:  getenvIntDefault(common.EnvKeyMonitorSensorDataDays, 30),
		NetatmoDataDays: getenvIntDefault(common.EnvKeyMonitorNetatmoDataDays, 30),

		DefaultRate:  getenvFloatDefault(common.EnvKeyMonitorDefaultRate, 5),
		DefaultBurst: getenvIntDefault(common.EnvKeyMonitorDefaultBurst, 10),

		SwitchBot: SwitchBot{
			Token:      os.Getenv(common.EnvKeySwitchBotToken),
			Secret:     os.Getenv(common.EnvKeySwitchBotSecret),
			DailyQuota: getenvIntDefault(common.EnvKeySwitchBotDailyQuota, 10000),
		},
		Netatmo: Netatmo{
			ClientID:     os.Getenv(common.EnvKeyNetatmoClientID),
			ClientSecret: os.Getenv(common.EnvKeyNetatmoClientSecret),
			RefreshToken: os.Getenv(common.EnvKeyNetatmoRefreshToken),
		},
		Slack: Slack{
			SecurityWebhookURL: os.Getenv(common.EnvKeySlackSecurityWebhookURL),
			UpdateWebhookURL:   os.Getenv(common.EnvKeySlackUpdateWebhookURL),
		},
		QuickChartURL: getenvDefault(common.EnvKeyQuickChartURL, "https://quickchart.io"),
		MQTT: MQTT{
			Broker:      os.Getenv(common.EnvKeyMQTTBroker),
			ClientID:    getenvDefault(common.EnvKeyMQTTClientID, "home-state-monitor"),
			TopicPrefix: getenvDefault(common.EnvKeyMQTTTopicPrefix, "home"),
		},

		Rules: DefaultRules(),
	}
}

// LoadRules reads a YAML rules file. Keys missing from the file keep their
// defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read rules file: %w", err)
	}

	var fromFile Rules
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return rules, fmt.Errorf("parse rules file: %w", err)
	}

	rules.IgnorePatterns = fromFile.IgnorePatterns
	rules.PollPatterns = fromFile.PollPatterns
	if len(fromFile.OutdoorKeywords) > 0 {
		rules.OutdoorKeywords = fromFile.OutdoorKeywords
	}
	for field, delta := range fromFile.Notify.MinDelta {
		rules.Notify.MinDelta[field] = delta
	}
	if fromFile.Notify.BatteryLow != 0 {
		rules.Notify.BatteryLow = fromFile.Notify.BatteryLow
	}

	return rules, nil
}

func (c Config) Validate() error {
	if issues := configSchema.Validate(&c); len(issues) > 0 {
		var msgs []string
		for field, list := range issues {
			for _, issue := range list {
				msgs = append(msgs, fmt.Sprintf("%s: %s", field, issue.Message))
			}
		}
		sort.Strings(msgs)
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}

	if _, err := time.LoadLocation(c.DisplayTZ); err != nil {
		return fmt.Errorf("invalid display timezone %q: %w", c.DisplayTZ, err)
	}

	for name, d := range map[string]time.Duration{
		common.EnvKeyMonitorSwitchBotInterval: c.SwitchBotInterval,
		common.EnvKeyMonitorNetatmoInterval:   c.NetatmoInterval,
		common.EnvKeyMonitorReportInterval:    c.ReportInterval,
		common.EnvKeyMonitorPruneInterval:     c.PruneInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid configuration: %s must be positive", name)
		}
	}

	return nil
}

// RequireCredentials fails when the primary vendor cannot be reached at all.
func (c Config) RequireCredentials() error {
	if c.SwitchBot.Token == "" || c.SwitchBot.Secret == "" {
		return fmt.Errorf("%w: %s and %s are required", ErrMissingCredentials,
			common.EnvKeySwitchBotToken, common.EnvKeySwitchBotSecret)
	}
	return nil
}

// PersistEnv sets key in the dotenv file at path, keeping the other entries.
// A missing file is created.
func PersistEnv(path, key, value string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read %s: %w", path, err)
		}
		env = map[string]string{}
	}
	env[key] = value
	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getenvDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
