package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Settings holds database connection settings.
type Settings struct {
	Driver   string // "sqlite" (default) or "mysql"
	Path     string // sqlite file path
	Host     string
	Port     int
	User     string
	Database string
}

// DSN builds a MySQL DSN from settings.
func DSN(s Settings) string {
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true", s.User, s.Host, s.Port, s.Database)
}

// Connect opens a GORM connection using the configured driver. SQLite is the
// default for single-machine deployments; MySQL is available for hosted ones.
func Connect(s Settings) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	switch s.Driver {
	case "", "sqlite":
		path := s.Path
		if path == "" {
			path = "inkwell.db"
		}
		db, err := gorm.Open(sqlite.Open(path), cfg)
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
		}
		return db, nil
	case "mysql":
		db, err := gorm.Open(mysql.Open(DSN(s)), cfg)
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", s.Host, s.Port, s.Database, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("db: unknown driver %q", s.Driver)
	}
}

// ConnectAdmin opens a MySQL connection with no database selected, for
// create-database bootstrapping.
func ConnectAdmin(user, host string, port int) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s@tcp(%s:%d)/?parseTime=true", user, host, port)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s:%d: %w", host, port, err)
	}
	return db, nil
}

// CreateDatabase creates the named database if it doesn't already exist.
func CreateDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}
