package db

import (
	"os"
	"path/filepath"
	"testing"

	"liyu1981.xyz/home-state-monitor/pkg/common"
)

func TestWithEnvPath(t *testing.T) {
	common.SetTestLoggerNop()

	if os.Getenv(common.EnvKeyRunIntegrationTests) != "true" {
		t.Skip("Skipping integration test: RUN_INTEGRATION_TESTS environment variable not set")
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}

	testPath := filepath.Join(wd, "test.db")

	originalDBPath, hadOriginal := os.LookupEnv(common.EnvKeyMonitorDbPath)

	if err := os.Setenv(common.EnvKeyMonitorDbPath, testPath); err != nil {
		t.Fatalf("Failed to set MONITOR_DB_PATH: %v", err)
	}

	defer func() {
		if hadOriginal {
			_ = os.Setenv(common.EnvKeyMonitorDbPath, originalDBPath)
		} else {
			_ = os.Unsetenv(common.EnvKeyMonitorDbPath)
		}
		_ = os.Remove(testPath)
		_ = os.Remove(testPath + "-wal")
		_ = os.Remove(testPath + "-shm")
	}()

	instance, err := Open(UseSqliteDialector())
	if err != nil {
		t.Fatalf("Failed to open file database: %v", err)
	}
	if instance == nil || instance.Conn == nil {
		t.Fatal("Expected non-nil DB connection")
	}

	if _, err := os.Stat(testPath); os.IsNotExist(err) {
		t.Errorf("Expected database file to be created at %s", testPath)
	}

	var journalMode string
	if err := instance.Conn.Raw("PRAGMA journal_mode").Scan(&journalMode).Error; err != nil {
		t.Fatalf("Failed to read journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected wal journal mode, got %s", journalMode)
	}
}
