// climatectl prepares a development copy of the climate database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"climate-api/internal/config"
	"climate-api/internal/db"
	"climate-api/internal/logging"
	"climate-api/internal/migrate"
	"climate-api/internal/mqtt"
	"climate-api/internal/seed"
)

const usage = `usage: %s <command>
  migrate                                  apply pending schema migrations
  seed <stations.csv> <measurements.csv>   load station and measurement CSV exports

seed announces the load on MQTT_TOPIC when MQTT_BROKER is set.
`

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg, version, "climatectl")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	switch args[0] {
	case "migrate":
		if len(args) != 1 {
			return fmt.Errorf("migrate takes no arguments")
		}
	case "seed":
		if len(args) != 3 {
			return fmt.Errorf("seed needs <stations.csv> <measurements.csv>")
		}
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	conn, err := db.OpenReadWrite(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	applied, err := migrate.Run(ctx, conn)
	if err != nil {
		return err
	}
	slog.Info("migrations applied", "versions", applied)

	if args[0] != "seed" {
		return nil
	}

	stations, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer stations.Close()
	measurements, err := os.Open(args[2])
	if err != nil {
		return err
	}
	defer measurements.Close()

	res, err := seed.Load(ctx, conn, stations, measurements)
	if err != nil {
		return err
	}
	slog.Info("dataset loaded", "stations", res.Stations, "measurements", res.Measurements)

	if cfg.MQTTBroker == "" {
		return nil
	}
	return announce(ctx, cfg, logger, filepath.Base(cfg.Path))
}

func announce(ctx context.Context, cfg config.Config, logger *slog.Logger, dataset string) error {
	publisher := mqtt.NewPublisher(cfg, logger)
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := publisher.Connect(connectCtx); err != nil {
		return fmt.Errorf("announce: %w", err)
	}
	defer publisher.Disconnect()

	return publisher.PublishDatasetLoaded(mqtt.DatasetLoaded{Dataset: dataset, LoadedAt: time.Now().UTC()})
}
