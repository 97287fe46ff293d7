package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/beyondfire/cloud-platform/booking-service/internal/client"
	"github.com/beyondfire/cloud-platform/booking-service/internal/config"
	"github.com/beyondfire/cloud-platform/booking-service/internal/db"
	httpapi "github.com/beyondfire/cloud-platform/booking-service/internal/http"
	"github.com/beyondfire/cloud-platform/booking-service/internal/logger"
	"github.com/beyondfire/cloud-platform/booking-service/internal/repository"
	"github.com/beyondfire/cloud-platform/booking-service/internal/service"
)

func main() {
	// Load configuration
	cfg := config.Load()

	if _, err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.L().Fatal("invalid configuration", zap.Error(err))
	}

	logger.L().Info("starting booking service", zap.String("port", cfg.Server.Port))

	ctx := context.Background()

	// Run database migrations before opening the pool
	if err := db.Migrate(ctx, cfg.Database.DSN(), cfg.Database.MigrationsDir); err != nil {
		logger.L().Fatal("migrations failed", zap.Error(err))
	}

	pool, err := db.NewPool(ctx, cfg.Database.DSN())
	if err != nil {
		logger.L().Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	// Repositories
	templateRepo := repository.NewTemplateRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	logRepo := repository.NewLogRepository(pool)

	// External clients
	orchestratorClient := client.NewOrchestratorClient(
		cfg.Orchestrator.URL,
		cfg.Orchestrator.Username,
		cfg.Orchestrator.Password,
		cfg.Orchestrator.EndpointName,
	)

	dnsClient := client.NewDNSClient(
		cfg.DNS.BaseURL,
		cfg.DNS.APIToken,
		cfg.DNS.ZoneID,
		cfg.DNS.Enabled,
	)

	// Services
	catalogService := service.NewCatalogService(templateRepo)
	bookingService := service.NewBookingService(
		cfg,
		templateRepo,
		bookingRepo,
		logRepo,
		orchestratorClient,
		dnsClient,
	)

	// HTTP server
	apiServer := httpapi.NewServer(cfg, pool, bookingService, catalogService)
	defer apiServer.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: apiServer.Handler(),
	}

	go func() {
		logger.L().Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.L().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L().Error("shutdown error", zap.Error(err))
	}

	logger.L().Info("server exited")
}
