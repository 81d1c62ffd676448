// Package db opens the metadata database and migrates its tables
package db

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"bitwise74/file-api/config"
	"bitwise74/file-api/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func New(cfg config.Database) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(cfg.DSN))
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s database, %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql handle, %w", err)
		}

		// SQLite allows one writer at a time
		sqlDB.SetMaxOpenConns(1)
	}

	err = db.AutoMigrate(model.User{}, model.File{}, model.DownloadToken{})
	if err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return db, nil
}

// CheckMounted refuses to let a containerized server create its SQLite file.
// The host should instead mount it using volumes.
func CheckMounted(cfg config.Database) error {
	return checkMounted(cfg, runningInDocker())
}

func checkMounted(cfg config.Database, inDocker bool) error {
	if !inDocker || cfg.Driver != "sqlite" || strings.HasPrefix(cfg.DSN, ":memory:") {
		return nil
	}

	if _, err := os.Stat(sqlitePath(cfg.DSN)); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("SQLite database file not mounted, please use docker volumes to mount it to %s", sqlitePath(cfg.DSN))
	}

	return nil
}

// sqliteDSN turns on foreign keys so download tokens follow their file.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	return dsn + sep + "_foreign_keys=1&_busy_timeout=5000"
}

func sqlitePath(dsn string) string {
	p, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	return p
}

func runningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}
