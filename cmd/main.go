package main

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/franciscosanchezn/signflow-api/internal/config"
	"github.com/franciscosanchezn/signflow-api/internal/controllers"
	"github.com/franciscosanchezn/signflow-api/internal/database"
	"github.com/franciscosanchezn/signflow-api/internal/esign"
	"github.com/franciscosanchezn/signflow-api/internal/middleware"
	"github.com/franciscosanchezn/signflow-api/internal/provider"
	"github.com/franciscosanchezn/signflow-api/internal/services"
	"github.com/franciscosanchezn/signflow-api/internal/tokens"
)

// @title Signflow API
// @version 1.0
// @description DocuSign token lifecycle and envelope signing gateway
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and an operator token.
func main() {
	// Load environment variables
	loadDotenvFile()

	// Initialize logger
	setUpLogger()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "signflow",
		Short:         "DocuSign token lifecycle and envelope signing gateway",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCommand(), newTokensCommand(), newOperatorCommand())
	return root
}

// loadDotenvFile loads environment variables from a .env file
// If the file is not found, it will log a warning and use system environment variables
func loadDotenvFile() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system environment variables")
	}
}

// setUpLogger configures the standard logger from APP_ENV and LOG_LEVEL
// and hands it to every package that logs
func setUpLogger() {
	logger := log.StandardLogger()
	logger.SetFormatter(&log.JSONFormatter{})
	environment := config.GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		logger.SetLevel(log.DebugLevel)
	case "production":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	if level, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}

	provider.SetLogger(logger)
	tokens.SetLogger(logger)
	esign.SetLogger(logger)
	services.SetLogger(logger)
	middleware.SetLogger(logger)
	controllers.SetLogger(logger)
	database.SetLogger(logger)
}

// loadConfig loads the application configuration from environment variables
func loadConfig() (*config.Config, error) {
	conf, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Error("Invalid configuration")
		return nil, err
	}
	return conf, nil
}
