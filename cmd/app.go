package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/franciscosanchezn/signflow-api/internal/config"
	"github.com/franciscosanchezn/signflow-api/internal/database"
	"github.com/franciscosanchezn/signflow-api/internal/esign"
	"github.com/franciscosanchezn/signflow-api/internal/metrics"
	"github.com/franciscosanchezn/signflow-api/internal/provider"
	"github.com/franciscosanchezn/signflow-api/internal/services"
	"github.com/franciscosanchezn/signflow-api/internal/tokens"
)

// application holds the wired components shared by the commands
type application struct {
	cfg      *config.Config
	db       *gorm.DB
	recorder metrics.Recorder
	manager  *tokens.Manager
	envelope *esign.Service
	states   services.StateStore
	redis    redis.UniversalClient
}

// newApplication connects the database and builds every service from cfg
func newApplication(cfg *config.Config) (*application, error) {
	db, err := setupDatabase(cfg)
	if err != nil {
		return nil, err
	}
	return buildApplication(cfg, db)
}

func buildApplication(cfg *config.Config, db *gorm.DB) (*application, error) {
	recorder := metrics.Init(cfg.MetricsEnabled)

	sealer, err := tokens.NewSealer(cfg.TokenEncryptionKey)
	if err != nil {
		return nil, err
	}
	if cfg.TokenEncryptionKey == "" {
		log.Warn("TOKEN_ENCRYPTION_KEY not set, DocuSign tokens are stored unencrypted")
	}

	api := provider.NewClient(&http.Client{Timeout: cfg.DocuSign.Timeout}, recorder)
	oauth := tokens.NewOAuthClient(tokens.OAuthConfig{
		ClientID:     cfg.DocuSign.IntegrationKey,
		ClientSecret: cfg.DocuSign.ClientSecret,
		RedirectURL:  cfg.RedirectURL(),
		BaseURL:      cfg.DocuSign.OAuthBaseURL,
		Scopes:       cfg.DocuSign.Scopes,
	}, api)

	manager := tokens.NewManager(tokens.NewGormRepository(db, sealer), oauth, tokens.ManagerConfig{
		Environment:   cfg.DocuSign.Environment,
		AccountID:     cfg.DocuSign.AccountID,
		UserID:        cfg.DocuSign.UserID,
		APIBaseURL:    cfg.DocuSign.APIBaseURL,
		RefreshMargin: cfg.DocuSign.RefreshMargin,
		Timeout:       cfg.DocuSign.Timeout,
	}, recorder)

	// nil lets DocuSign email the signer itself
	var mailer esign.Mailer
	switch {
	case cfg.SMTP.Enabled():
		mailer = services.NewSMTPMailer(services.SMTPSettings{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Timeout:  cfg.DocuSign.Timeout,
		})
	case cfg.AppEnv == "development":
		mailer = services.NewLogMailer()
	default:
		if cfg.Signing.SuppressProviderEmail {
			log.Warn("SMTP not configured, DocuSign will send signer emails")
		}
	}

	envelope := esign.NewService(
		esign.NewDocuSignClient(api),
		tokens.NewRunner(manager),
		esign.NewGormRepository(db),
		esign.NewLinkSigner(cfg.Signing.LinkSecret, cfg.Signing.LinkTTL),
		mailer,
		recorder,
		esign.Config{
			PublicBaseURL:         cfg.BaseURL,
			ReturnURL:             cfg.Signing.ReturnURL,
			SuppressProviderEmail: cfg.Signing.SuppressProviderEmail,
			Notification: esign.NotificationPolicy{
				ReminderDelayDays:     cfg.Signing.ReminderDelayDays,
				ReminderFrequencyDays: cfg.Signing.ReminderFrequencyDays,
				ExpireAfterDays:       cfg.Signing.ExpireAfterDays,
				ExpireWarnDays:        cfg.Signing.ExpireWarnDays,
			},
		},
	)

	app := &application{
		cfg:      cfg,
		db:       db,
		recorder: recorder,
		manager:  manager,
		envelope: envelope,
	}

	switch cfg.StateStore {
	case config.StateStoreRedis:
		app.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    strings.Split(cfg.RedisAddr, ","),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		app.states = services.NewRedisStateStore(app.redis)
	default:
		app.states = services.NewMemoryStateStore(10 * time.Minute)
	}
	return app, nil
}

// authURL is the public consent entry point returned with every 401
func (a *application) authURL() string {
	return a.cfg.BaseURL + "/api/docusign/auth"
}

// Close releases the database and Redis connections
func (a *application) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.WithError(err).Warn("Failed to close Redis client")
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// setupDatabase opens and migrates the configured database
func setupDatabase(conf *config.Config) (*gorm.DB, error) {
	db, err := database.InitDatabase(database.DatabaseConfig{
		Driver:   conf.DBDriver,
		Host:     conf.DBHost,
		Port:     conf.DBPort,
		User:     conf.DBUser,
		Password: conf.DBPassword,
		Name:     conf.DBName,
		SSLMode:  conf.DBSSLMode,
		Path:     conf.DBPath,
	})
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
