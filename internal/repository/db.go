package repository

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskboard/internal/model"
)

const defaultDSN = "taskboard.db"

// sqlitePragmas are appended to file DSNs. The bot, the HTTP API and the
// correction retries write concurrently, so writers wait instead of failing
// with SQLITE_BUSY.
var sqlitePragmas = []string{"_busy_timeout=5000", "_journal_mode=WAL"}

// schema lists every table the board keeps locally.
var schema = []any{
	&model.User{},
	&model.PendingCorrection{},
	&model.TaskRecord{},
}

// NewDB opens the database used by the running app. Only warnings and slow
// queries are logged.
func NewDB(dsn string) (*gorm.DB, error) {
	return Open(dsn, logger.Warn)
}

// Open connects to the SQLite database at dsn and brings the schema up to date.
// An empty dsn means taskboard.db in the working directory.
func Open(dsn string, level logger.LogLevel) (*gorm.DB, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	if path, ok := sqliteFilePath(dsn); ok {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir for %s: %w", path, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(withPragmas(dsn)), &gorm.Config{Logger: gormLogger(level)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}

	if isMemoryDSN(dsn) {
		// Each connection to :memory: sees its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(schema...); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

func gormLogger(level logger.LogLevel) logger.Interface {
	return logger.New(log.New(log.Writer(), "[db] ", log.LstdFlags), logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// sqliteFilePath returns the on-disk file behind dsn, or false for in-memory
// databases.
func sqliteFilePath(dsn string) (string, bool) {
	if isMemoryDSN(dsn) {
		return "", false
	}
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path == "" {
		return "", false
	}
	return path, true
}

// withPragmas adds the driver options from sqlitePragmas that dsn does not
// already set.
func withPragmas(dsn string) string {
	if isMemoryDSN(dsn) {
		return dsn
	}
	var extra []string
	for _, p := range sqlitePragmas {
		key, _, _ := strings.Cut(p, "=")
		if !strings.Contains(dsn, key+"=") {
			extra = append(extra, p)
		}
	}
	if len(extra) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(extra, "&")
}
