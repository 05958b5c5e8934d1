// File: cmd/activity-feed/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/smartdevs17/activity-feed/internal/config"
	"github.com/smartdevs17/activity-feed/internal/feed"
	"github.com/smartdevs17/activity-feed/internal/metrics"
	"github.com/smartdevs17/activity-feed/internal/server"
	"github.com/smartdevs17/activity-feed/internal/storage"
	"github.com/smartdevs17/activity-feed/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// Application represents the main application
type Application struct {
	config  *config.Config
	logger  *logrus.Logger
	metrics *metrics.Manager
	storage storage.Storage
	feed    *feed.Service
	server  *server.HTTPServer
}

// NewApplication creates a new application instance with storage connected
// and migrated. The HTTP server is only built when withServer is set.
func NewApplication(cfg *config.Config, withServer bool) (*Application, error) {
	app := &Application{config: cfg}

	// Initialize logger
	if err := app.initializeLogger(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.metrics = metrics.NewManager()

	// Initialize storage
	if err := app.initializeStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.feed = feed.NewService(app.storage, cfg.Feed.Retry, app.metrics)

	if withServer {
		app.initializeServer()
	}

	app.logger.Info("All components initialized successfully")
	return app, nil
}

// initializeLogger initializes the application logger
func (app *Application) initializeLogger() error {
	logCfg := app.config.Logging
	if viper.IsSet("log-level") {
		logCfg.Level = viper.GetString("log-level")
	}
	if viper.GetBool("debug") {
		logCfg.Level = "debug"
	}

	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.logger = utils.GetLogger()
	app.logger.WithFields(logrus.Fields{
		"level":  logCfg.Level,
		"format": logCfg.Format,
		"output": logCfg.Output,
	}).Debug("Logger initialized")

	return nil
}

// initializeStorage connects and migrates the configured backend
func (app *Application) initializeStorage() error {
	app.logger.WithField("type", app.config.Storage.Type).Info("Initializing storage")

	store, err := storage.NewStorage(&app.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}

	if err := store.Connect(); err != nil {
		return fmt.Errorf("failed to connect to storage: %w", err)
	}

	if err := store.Migrate(); err != nil {
		store.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	app.storage = storage.NewStorageWithMetrics(store, app.metrics)
	return nil
}

// initializeServer builds the HTTP server
func (app *Application) initializeServer() {
	serverCfg := &server.ServerConfig{
		Port:          app.config.Server.Port,
		Host:          app.config.Server.Host,
		ReadTimeout:   app.config.Server.ReadTimeout,
		WriteTimeout:  app.config.Server.WriteTimeout,
		EnableMetrics: app.config.Server.EnableMetrics,
		EnableHealth:  app.config.Server.EnableHealth,
		CORSOrigins:   app.config.Server.CORSOrigins,
		JWTSecret:     app.config.Auth.JWTSecret,
		JWTIssuer:     app.config.Auth.Issuer,
		Version:       AppVersion,
	}
	app.server = server.NewHTTPServer(serverCfg, app.feed, app.storage, app.metrics)
}

// Start starts the HTTP server
func (app *Application) Start() error {
	app.logger.WithField("version", AppVersion).Info("Starting activity feed")
	if app.server == nil {
		return fmt.Errorf("application was built without an HTTP server")
	}
	return app.server.Start()
}

// Stop stops the application gracefully
func (app *Application) Stop() error {
	app.logger.Info("Stopping activity feed")

	// Stop components in reverse order
	if app.server != nil {
		if err := app.server.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop HTTP server")
		}
	}

	if app.storage != nil {
		if err := app.storage.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close storage")
		}
	}

	app.logger.Info("Activity feed stopped successfully")
	return nil
}

// runServer runs the server until SIGINT or SIGTERM
func runServer(cfg *config.Config) error {
	app, err := NewApplication(cfg, true)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Start(); err != nil {
		app.Stop()
		return fmt.Errorf("failed to start application: %w", err)
	}

	// Wait for shutdown signal
	<-ctx.Done()
	app.logger.Info("Received shutdown signal, stopping application")

	return app.Stop()
}

// main is the entry point
func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
