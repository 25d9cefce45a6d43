package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taximeter/internal/app"
	"taximeter/internal/config"
	"taximeter/internal/handler"
	"taximeter/internal/meter"
	internalRedis "taximeter/internal/redis"
	"taximeter/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the meter HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)

	// Initialize New Relic first so Redis can be instrumented.
	nrApp := app.NewNewRelicApp(cfg.NewRelic)
	if nrApp != nil {
		defer nrApp.Shutdown(5 * time.Second)
	}

	// Redis only backs idempotency keys; without it the server still runs.
	var idempotencyStore internalRedis.IdempotencyStoreInterface
	if cfg.Redis.Enabled {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		redisClient, err := app.NewRedisClient(connectCtx, cfg.Redis, nrApp)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		log.Infof("Connected to Redis at %s", cfg.Redis.Addr)
		idempotencyStore = internalRedis.NewIdempotencyStore(redisClient)
	}

	publishers, closePublishers := app.NewPublishers(cfg.AMQP)
	defer closePublishers()

	server, meterService, err := wireServer(cfg, publishers, idempotencyStore, nrApp)
	if err != nil {
		return err
	}

	// Start server in goroutine.
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown.
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	releaseMeter(shutdownCtx, meterService)

	log.Info("Server exited")
	return nil
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	cfg *config.Config,
	publishers []service.Publisher,
	idempotencyStore internalRedis.IdempotencyStoreInterface,
	nrApp *newrelic.Application,
) (*http.Server, *service.MeterService, error) {
	tripMeter, err := meter.New(cfg.Meter.Rates())
	if err != nil {
		return nil, nil, err
	}

	// Initialize services.
	notificationService := service.NewNotificationService(publishers...)
	receiptService := service.NewReceiptService(tripMeter.Fares(), notificationService, cfg.Meter.CurrencySymbol)
	meterService := service.NewMeterService(tripMeter, receiptService, notificationService, cfg.Meter.CurrencySymbol)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		MeterHandler:     handler.NewMeterHandler(meterService),
		FareHandler:      handler.NewFareHandler(meterService),
		IdempotencyStore: idempotencyStore,
		NewRelicApp:      nrApp,
		Logger:           log.StandardLogger(),
		CORSOrigins:      cfg.Server.CORSOrigins,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, meterService, nil
}

// releaseMeter logs a trip still running at shutdown and returns the meter
// to inactive. The trip is not priced.
func releaseMeter(ctx context.Context, meterService *service.MeterService) {
	if trip, ok := meterService.CurrentTrip(ctx); ok && trip.EndedAt.IsZero() {
		snapshot := meterService.Snapshot(ctx)
		log.WithFields(log.Fields{
			"trip_id":         trip.ID,
			"stopped_seconds": snapshot.Stopped.Seconds(),
			"moving_seconds":  snapshot.Moving.Seconds(),
		}).Warn("trip abandoned at shutdown")
	}
	meterService.Reset()
}
