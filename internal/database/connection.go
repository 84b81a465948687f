package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/franciscosanchezn/signflow-api/internal/models"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// SetLogger replaces the package logger
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}

// InitDatabase opens the configured database, retrying with exponential backoff
// until it answers a ping, then configures the pool
func InitDatabase(cfg DatabaseConfig) (*gorm.DB, error) {
	driver := strings.ToLower(cfg.Driver)
	dialector, err := dialectorFor(driver, cfg.DSN())
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"db_driver": driver,
		"db_host":   cfg.Host,
		"db_name":   cfg.Name,
		"db_path":   cfg.Path,
	}).Info("Initializing database connection")

	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = 5
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	for attempt := 1; ; attempt++ {
		var db *gorm.DB
		db, err = connect(dialector, gormConfig)
		if err == nil {
			sqlDB, _ := db.DB()
			configureConnectionPool(sqlDB, driver)
			log.WithFields(logrus.Fields{
				"db_driver": driver,
				"attempt":   attempt,
			}).Info("Database initialized successfully")
			return db, nil
		}

		log.WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": attempts,
		}).WithError(err).Warn("Database connection attempt failed")
		if attempt == attempts {
			break
		}
		log.WithField("delay", delay.String()).Info("Retrying database connection")
		time.Sleep(delay)
		delay *= 2
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres", "postgresql":
		return postgres.Open(dsn), nil
	case "sqlite", "":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, sqlite)", driver)
	}
}

func connect(dialector gorm.Dialector, gormConfig *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// configureConnectionPool sizes the pool. SQLite allows a single writer, so it gets one connection.
func configureConnectionPool(sqlDB *sql.DB, driver string) {
	maxOpen, maxIdle := 25, 5
	if driver == "sqlite" || driver == "" {
		maxOpen, maxIdle = 1, 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	log.WithFields(logrus.Fields{
		"max_open_conns":    maxOpen,
		"max_idle_conns":    maxIdle,
		"conn_max_lifetime": "5m",
	}).Debug("Connection pool configured")
}

// Migrate creates or updates the token and envelope tables
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.ProviderToken{}, &models.Envelope{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	log.Info("Database schema migrated")
	return nil
}
