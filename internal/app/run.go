package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"climate-api/internal/config"
	"climate-api/internal/db"
	"climate-api/internal/httpapi"
	"climate-api/internal/modules/climate"
	"climate-api/internal/modules/climate/repository"
	"climate-api/internal/mqtt"
)

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"requestTimeout", cfg.RequestTimeout,
		"dbDriver", cfg.Driver,
		"sqlitePath", cfg.Path,
		"dbMaxOpenConns", cfg.MaxOpenConns,
		"dbMaxIdleConns", cfg.MaxIdleConns,
		"referenceDate", cfg.ReferenceDate.Format(config.DateLayout),
		"trailingDays", cfg.TrailingDays,
		"rateLimitRPS", cfg.RateLimitRPS,
		"mqttBroker", cfg.MQTTBroker,
		"mqttTopic", cfg.MQTTTopic,
	)

	dbConn, err := db.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	monitor := db.NewSchemaMonitor(dbConn, repository.Schema)
	if err := monitor.Check(ctx); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	slog.Info("database schema validated", "tables", len(repository.Schema))

	var subscriber *mqtt.Subscriber
	if cfg.MQTTBroker != "" {
		subscriber = mqtt.NewSubscriber(cfg, logger)
		climate.RegisterMQTTHandler(subscriber, monitor, logger)

		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = subscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			// paho keeps retrying in the background.
			slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	metrics := httpapi.NewMetrics()
	mux := httpapi.NewMux(dbConn, monitor, metrics)
	climate.RegisterFeature(mux, dbConn, cfg, logger)

	var limiter *httpapi.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpapi.NewRateLimiter(httpapi.RateLimiterConfig{Rate: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst})
		defer limiter.Stop()
	}

	srv := httpapi.NewServer(cfg, httpapi.NewHandler(cfg, mux, metrics, limiter))

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if subscriber != nil {
		slog.Info("mqtt disconnecting")
		subscriber.Disconnect()
	}

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
