package common

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "home-state-monitor"

var (
	logger *zap.Logger
	once   sync.Once
)

func getLogger() *zap.Logger {
	if logger == nil {
		initLogger()
	}
	return logger
}

func GetLogger() *zap.Logger {
	logger = getLogger()
	return logger.Named("default")
}

// GetLoggerWith returns a named child of the process logger, e.g.
//
//	common.GetLoggerWith(common.LoggerNameMonitorCore,
//		zap.String(common.LoggerFieldCategory, common.LoggerCategoryDetector))
func GetLoggerWith(name string, fields ...zap.Field) *zap.Logger {
	logger = getLogger()
	return logger.Named(name).With(fields...)
}

// logLevel reads MONITOR_LOG_LEVEL, falling back to debug in development and
// info elsewhere.
func logLevel() zapcore.Level {
	if raw := strings.TrimSpace(os.Getenv(EnvKeyMonitorLogLevel)); raw != "" {
		if level, err := zapcore.ParseLevel(raw); err == nil {
			return level
		}
	}
	if IsDevelopment() {
		return zap.DebugLevel
	}
	return zap.InfoLevel
}

// logDir is MONITOR_LOG_DIR, or ./logs under the working directory.
func logDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvKeyMonitorLogDir)); dir != "" {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, "logs"), nil
}

func newFileCore(dir string, level zapcore.Level) (zapcore.Core, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "app.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28,   // days
		Compress:   true, // gzip
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(logFile), level), nil
}

func initLogger() {
	once.Do(func() {
		dir, err := logDir()
		if err != nil {
			log.Fatalf("Error getting current directory: %v", err)
		}

		level := logLevel()
		fileCore, err := newFileCore(dir, level)
		if err != nil {
			log.Fatalf("Error find/create logs directory: %v", err)
		}

		opts := []zap.Option{
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
			zap.Fields(zap.String("service", serviceName)),
		}

		if IsProduction() {
			logger = zap.New(fileCore, opts...)
			return
		}

		consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		consoleCore := zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), zap.DebugLevel)
		logger = zap.New(zapcore.NewTee(fileCore, consoleCore), opts...)
	})
}

// SetTestCaptureLogger routes all subsequent log output as JSON lines into buf.
func SetTestCaptureLogger(buf *bytes.Buffer, level zapcore.Level) {
	_ = GetLogger()

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	logger = zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(buf), level))
}

// SetTestLoggerNop silences every logger handed out after the call.
func SetTestLoggerNop() {
	_ = GetLogger()

	logger = zap.NewNop()
}
