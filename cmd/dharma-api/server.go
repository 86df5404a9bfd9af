package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/dharma/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/dharma/backend/internal/config"
	"github.com/MarcoPoloResearchLab/dharma/backend/internal/content"
	"github.com/MarcoPoloResearchLab/dharma/backend/internal/database"
	"github.com/MarcoPoloResearchLab/dharma/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/dharma/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/dharma/backend/internal/server"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	metricsNamespace = "dharma"
	shutdownTimeout  = 10 * time.Second
)

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	store, closeStore, err := openDocumentStore(appConfig, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	contentService, err := content.NewService(content.ServiceConfig{
		Store:      store,
		Clock:      time.Now,
		IDProvider: content.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer contentService.Close()

	adminGate, err := auth.NewAdminGate(auth.AdminGateConfig{
		Password:      appConfig.AdminPassword,
		SigningSecret: []byte(appConfig.SigningSecret),
		CookieName:    appConfig.CookieName,
		CookieTTL:     appConfig.CookieTTL,
	})
	if err != nil {
		return err
	}
	if appConfig.AdminPassword == auth.DefaultAdminPassword {
		logger.Warn("admin password is the default; set ADMIN_PASSWORD")
	}

	var collector *metrics.Collector
	if appConfig.MetricsEnabled {
		collector = metrics.NewCollector(metricsNamespace)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		AdminGate:      adminGate,
		ContentService: contentService,
		Metrics:        collector,
		Logger:         logger,
		AllowedOrigins: appConfig.AllowedOrigins,
		CookieSecure:   appConfig.CookieSecure,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("storage_driver", appConfig.StorageDriver))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// openDocumentStore builds the configured backend. The returned func releases
// any resources it holds.
func openDocumentStore(appConfig config.AppConfig, logger *zap.Logger) (content.DocumentStore, func(), error) {
	switch appConfig.StorageDriver {
	case config.StorageDriverSQLite:
		db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		store, err := database.NewDocumentStore(database.DocumentStoreConfig{Database: db, Logger: logger})
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
		return store, func() { _ = sqlDB.Close() }, nil
	case config.StorageDriverFile:
		store, err := content.NewFileStore(content.FileStoreConfig{Path: appConfig.StoragePath, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("file document store ready", zap.String("path", store.Path()))
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", appConfig.StorageDriver)
	}
}
