// Package storage открывает базу данных по DATABASE_URL.
package storage

import (
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// IsPostgres - строка подключения указывает на PostgreSQL
func IsPostgres(databaseURL string) bool {
	url := strings.TrimSpace(databaseURL)
	return strings.HasPrefix(url, "postgres://") ||
		strings.HasPrefix(url, "postgresql://") ||
		strings.Contains(url, "host=")
}

// Open подключается к sqlite-файлу или к PostgreSQL
func Open(databaseURL string, log *logrus.Logger) (*gorm.DB, error) {
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	}

	if IsPostgres(databaseURL) {
		db, err := gorm.Open(postgres.Open(databaseURL), cfg)
		if err != nil {
			return nil, err
		}
		log.Info("Connected to PostgreSQL")
		return db, nil
	}

	db, err := gorm.Open(sqlite.Open(databaseURL), cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite не любит параллельную запись
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		log.Warnf("Failed to enable foreign keys: %v", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Warnf("Failed to enable WAL: %v", err)
	}

	log.WithField("path", databaseURL).Info("Connected to SQLite")
	return db, nil
}

// Close закрывает пул соединений
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
