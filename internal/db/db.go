package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"climate-api/internal/config"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Open returns a pooled, read-only handle on the configured store and
// verifies connectivity before returning.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	return open(ctx, cfg, logger, true)
}

// OpenReadWrite is Open for the maintenance tool, which creates and loads
// the tables. A missing SQLite file is created.
func OpenReadWrite(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	return open(ctx, cfg, logger, false)
}

func open(ctx context.Context, cfg config.Config, logger *slog.Logger, readOnly bool) (*sql.DB, error) {
	dsn, err := buildDSN(cfg, readOnly)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.LogSQL && cfg.Driver == "sqlite3" {
		connector, err := NewLoggingConnector(dsn, logger)
		if err != nil {
			return nil, fmt.Errorf("db connector: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		db, err = sql.Open(cfg.Driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func buildDSN(cfg config.Config, readOnly bool) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	var params []string
	switch cfg.Driver {
	case "sqlite3":
		params = []string{"_busy_timeout=5000"}
		if !readOnly {
			params = append(params, "_foreign_keys=on")
		}
	case "sqlite":
		params = []string{"_pragma=busy_timeout(5000)"}
		if !readOnly {
			params = append(params, "_pragma=foreign_keys(1)")
		}
	default:
		return "", fmt.Errorf("DB_DSN is required for driver %q", cfg.Driver)
	}

	path := cfg.Path
	if path == "" {
		return "", fmt.Errorf("SQLITE_PATH is empty")
	}
	if readOnly {
		params = append([]string{"mode=ro"}, params...)
	}

	// "file:/data/hawaii.sqlite?x=y" is accepted as-is and extended.
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
