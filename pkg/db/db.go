package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

type DB struct {
	Conn *gorm.DB

	locks *keyedMutex
}

var (
	instance *DB
	once     sync.Once
)

// Open connects, applies the additive schema migration and configures sqlite
// for concurrent timers. Most callers want the process-wide GetInstance.
func Open(dialector gorm.Dialector) (*DB, error) {
	logger := common.GetLoggerWith(common.LoggerNameStore)

	conn, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	logger.Info("Connected to database with dialector:", zap.String("dialector", dialector.Name()))

	if isMemory(dialector) {
		// every connection to a shared-cache memory database contends on table
		// locks that busy_timeout does not cover
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, fmt.Errorf("access connection pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := conn.AutoMigrate(models.AllModels()...); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Info("Database migration completed")

	if err := conn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("enable sqlite foreign key support: %w", err)
	}

	if err := conn.Exec("PRAGMA journal_mode = WAL").Error; err != nil {
		return nil, fmt.Errorf("set sqlite journal mode: %w", err)
	}

	return &DB{Conn: conn, locks: newKeyedMutex()}, nil
}

// GetInstance returns the process-wide store. A store that cannot be opened is
// fatal.
func GetInstance(dialector gorm.Dialector) *DB {
	once.Do(func() {
		var err error
		instance, err = Open(dialector)
		if err != nil {
			log.Fatal("Failed to open database: ", err)
		}
	})
	return instance
}

func UseSqliteDialector() gorm.Dialector {
	var dbPath string
	var found bool
	if dbPath, found = os.LookupEnv(common.EnvKeyMonitorDbPath); !found {
		dbPath = "monitor.db"
	}
	return sqlite.Open(dbPath + "?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on")
}

func UseMemorySqliteDialector() gorm.Dialector {
	return sqlite.Open("file::memory:?cache=shared")
}

// UseNamedMemorySqliteDialector gives each name its own memory database, so
// tests can run against isolated stores.
func UseNamedMemorySqliteDialector(name string) gorm.Dialector {
	return sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
}

func isMemory(dialector gorm.Dialector) bool {
	d, ok := dialector.(*sqlite.Dialector)
	if !ok {
		return false
	}
	return strings.Contains(d.DSN, ":memory:") || strings.Contains(d.DSN, "mode=memory")
}
