package common

const (
	EnvKeyGoEnv string = "GO_ENV"

	EnvKeyRunIntegrationTests string = "RUN_INTEGRATION_TESTS"

	EnvKeyMonitorLogDir   string = "MONITOR_LOG_DIR"
	EnvKeyMonitorLogLevel string = "MONITOR_LOG_LEVEL"

	EnvKeyMonitorDBType string = "MONITOR_DB_TYPE"
	EnvKeyMonitorDbPath string = "MONITOR_DB_PATH"

	EnvKeyMonitorHttpHostPort string = "MONITOR_HTTP_HOST_PORT"
	EnvKeyMonitorGrpcHostPort string = "MONITOR_GRPC_HOST_PORT"

	EnvKeyMonitorPushPath      string = "MONITOR_PUSH_PATH"
	EnvKeyMonitorPushEnabled   string = "MONITOR_PUSH_ENABLED"
	EnvKeyMonitorPushMandatory string = "MONITOR_PUSH_MANDATORY"
	EnvKeyMonitorTunnelHost    string = "MONITOR_TUNNEL_HOSTNAME"
	EnvKeyMonitorTunnelWait    string = "MONITOR_TUNNEL_WAIT"

	EnvKeyMonitorRulesFile string = "MONITOR_RULES_FILE"
	EnvKeyMonitorLocale    string = "MONITOR_LOCALE"
	EnvKeyMonitorDisplayTZ string = "MONITOR_DISPLAY_TZ"

	EnvKeyMonitorSwitchBotInterval string = "MONITOR_SWITCHBOT_INTERVAL"
	EnvKeyMonitorNetatmoInterval   string = "MONITOR_NETATMO_INTERVAL"
	EnvKeyMonitorReportInterval    string = "MONITOR_REPORT_INTERVAL"
	EnvKeyMonitorReportDaily       string = "MONITOR_REPORT_DAILY"
	EnvKeyMonitorChartBucket       string = "MONITOR_CHART_BUCKET"
	EnvKeyMonitorPruneInterval     string = "MONITOR_PRUNE_INTERVAL"

	EnvKeyMonitorHistoryDays     string = "MONITOR_HISTORY_DAYS"
	EnvKeyMonitorSensorDataDays  string = "MONITOR_SENSOR_DATA_DAYS"
	EnvKeyMonitorNetatmoDataDays string = "MONITOR_NETATMO_DATA_DAYS"

	EnvKeyMonitorDefaultRate  string = "MONITOR_DEFAULT_RATE"
	EnvKeyMonitorDefaultBurst string = "MONITOR_DEFAULT_BURST"

	EnvKeySwitchBotToken      string = "SWITCHBOT_TOKEN"
	EnvKeySwitchBotSecret     string = "SWITCHBOT_SECRET"
	EnvKeySwitchBotDailyQuota string = "SWITCHBOT_DAILY_QUOTA"

	EnvKeyNetatmoClientID     string = "NETATMO_CLIENT_ID"
	EnvKeyNetatmoClientSecret string = "NETATMO_CLIENT_SECRET"
	EnvKeyNetatmoRefreshToken string = "NETATMO_REFRESH_TOKEN"

	EnvKeySlackSecurityWebhookURL string = "SLACK_SECURITY_WEBHOOK_URL"
	EnvKeySlackUpdateWebhookURL   string = "SLACK_UPDATE_WEBHOOK_URL"

	EnvKeyQuickChartURL string = "QUICKCHART_URL"

	EnvKeyMQTTBroker      string = "MQTT_BROKER"
	EnvKeyMQTTClientID    string = "MQTT_CLIENT_ID"
	EnvKeyMQTTTopicPrefix string = "MQTT_TOPIC_PREFIX"

	LoggerNameMonitorCore   string = "monitor_core"
	LoggerNameRestfulServer string = "restful_server"
	LoggerNameGrpcServer    string = "grpc_server"
	LoggerNameVendorClient  string = "vendor_client"
	LoggerNameDelivery      string = "delivery"
	LoggerNameStore         string = "store"

	LoggerFieldCategory        string = "category"
	LoggerCategoryClassifier   string = "classifier"
	LoggerCategoryDetector     string = "detector"
	LoggerCategoryRouter       string = "router"
	LoggerCategoryDispatcher   string = "dispatcher"
	LoggerCategoryMirror       string = "mirror"
	LoggerCategoryReporter     string = "reporter"
	LoggerCategoryPruner       string = "pruner"
	LoggerCategoryIngress      string = "ingress"
	LoggerCategoryPoller       string = "poller"
	LoggerCategoryScheduler    string = "scheduler"
	LoggerCategoryConfig       string = "config"
	LoggerCategorySwitchBot    string = "switchbot"
	LoggerCategoryNetatmo      string = "netatmo"
	LoggerCategoryTunnel       string = "tunnel"
	LoggerCategorySlack        string = "slack"
	LoggerCategoryMQTT         string = "mqtt"
	LoggerCategoryChart        string = "chart"
	LoggerCategoryPushListener string = "push_listener"
)
