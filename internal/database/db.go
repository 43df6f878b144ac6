package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Config selects a driver and carries its connection settings. DSN, when
// set, overrides the individual fields for every driver.
type Config struct {
	Driver string
	Path   string // sqlite file path
	DSN    string

	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Options  map[string]string
}

// Open connects to the configured database. The driver defaults to sqlite
// so a fresh checkout runs without any external services.
func Open(cfg Config) (*gorm.DB, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		return openSQLite(cfg)
	case "postgres", "postgresql":
		return openPostgres(cfg)
	case "mysql", "mariadb":
		return openMySQL(cfg)
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Migrate applies the schema. Both server start-up and the one-shot migrate
// command go through here.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
