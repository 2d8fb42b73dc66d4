package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	appconfig "github.com/lewisedginton/livechat-bridge/internal/config"
	"github.com/lewisedginton/livechat-bridge/internal/server"
	pkgconfig "github.com/lewisedginton/livechat-bridge/pkg/config"
	"github.com/lewisedginton/livechat-bridge/pkg/logger"
)

func main() {
	// A missing .env file is fine; real deployments set variables directly.
	_ = godotenv.Load()

	var cfg appconfig.AppConfig
	if err := pkgconfig.GetConfig(&cfg, os.Getenv("CONFIG_FILE"), true); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logConfig := logger.Config{
		Level:   cfg.GetLogLevel(),
		Format:  cfg.Logging.Format,
		Service: cfg.ServiceName,
	}
	appLogger := logger.NewLogger(logConfig)

	appLogger.Info("Starting livechat bridge",
		logger.StringField("version", cfg.Version),
		logger.StringField("environment", cfg.Environment))
	cfg.LogConfig(appLogger)

	srv, err := server.New(&cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to create server", logger.ErrorField(err))
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		appLogger.Error("Server exited with error", logger.ErrorField(err))
		os.Exit(1)
	}

	appLogger.Info("Bridge stopped")
}
