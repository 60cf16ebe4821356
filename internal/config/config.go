package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DateLayout is the ISO calendar date format used by the measurement table.
const DateLayout = "2006-01-02"

type Config struct {
	AppEnv         string
	LogLevel       slog.Level
	HTTPAddr       string
	RequestTimeout time.Duration

	Driver          string
	DSN             string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool

	// ReferenceDate is the last date present in the dataset; the trailing
	// window used by the precipitation and tobs routes ends here.
	ReferenceDate time.Time
	TrailingDays  int

	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	MQTTBroker   string
	MQTTPort     int
	MQTTTopic    string
	MQTTClientID string
}

// LoadFromEnv reads an optional .env file and then the process environment.
func LoadFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	appEnv := getenv("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	requestTimeout, err := parseDuration("REQUEST_TIMEOUT", "5s")
	if err != nil {
		return Config{}, err
	}
	if requestTimeout <= 0 {
		return Config{}, fmt.Errorf("REQUEST_TIMEOUT must be > 0")
	}

	driver := getenv("DB_DRIVER", "sqlite3")
	switch driver {
	case "sqlite3", "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q (allowed: sqlite3, sqlite, postgres)", driver)
	}
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if driver == "postgres" && dsn == "" {
		return Config{}, errors.New("DB_DSN is required when DB_DRIVER=postgres")
	}

	maxOpenConns, err := parseInt("DB_MAX_OPEN_CONNS", "4")
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := parseInt("DB_MAX_IDLE_CONNS", "4")
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := parseDuration("DB_CONN_MAX_LIFETIME", "0s")
	if err != nil {
		return Config{}, err
	}
	logSQL, err := parseBool("DB_LOG_SQL", "false")
	if err != nil {
		return Config{}, err
	}

	refStr := getenv("REFERENCE_DATE", "2017-08-23")
	referenceDate, err := time.Parse(DateLayout, refStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid REFERENCE_DATE %q (expected YYYY-MM-DD): %w", refStr, err)
	}
	trailingDays, err := parseInt("TRAILING_DAYS", "366")
	if err != nil {
		return Config{}, err
	}
	if trailingDays <= 0 {
		return Config{}, fmt.Errorf("TRAILING_DAYS must be > 0")
	}

	breakerMaxFailures, err := parseInt("BREAKER_MAX_FAILURES", "5")
	if err != nil {
		return Config{}, err
	}
	if breakerMaxFailures <= 0 {
		return Config{}, fmt.Errorf("BREAKER_MAX_FAILURES must be > 0")
	}
	breakerOpenTimeout, err := parseDuration("BREAKER_OPEN_TIMEOUT", "30s")
	if err != nil {
		return Config{}, err
	}

	rpsStr := getenv("RATE_LIMIT_RPS", "0")
	rps, err := strconv.ParseFloat(rpsStr, 64)
	if err != nil || rps < 0 {
		return Config{}, fmt.Errorf("invalid RATE_LIMIT_RPS %q", rpsStr)
	}
	burst, err := parseInt("RATE_LIMIT_BURST", "20")
	if err != nil {
		return Config{}, err
	}

	mqttPort, err := parseInt("MQTT_PORT", "1883")
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:             appEnv,
		LogLevel:           level,
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		RequestTimeout:     requestTimeout,
		Driver:             driver,
		DSN:                dsn,
		Path:               getenv("SQLITE_PATH", "Resources/hawaii.sqlite"),
		MaxOpenConns:       maxOpenConns,
		MaxIdleConns:       maxIdleConns,
		ConnMaxLifetime:    connMaxLifetime,
		LogSQL:             logSQL,
		ReferenceDate:      referenceDate,
		TrailingDays:       trailingDays,
		BreakerMaxFailures: uint32(breakerMaxFailures),
		BreakerOpenTimeout: breakerOpenTimeout,
		RateLimitRPS:       rps,
		RateLimitBurst:     burst,
		MQTTBroker:         strings.TrimSpace(os.Getenv("MQTT_BROKER")),
		MQTTPort:           mqttPort,
		MQTTTopic:          getenv("MQTT_TOPIC", "climate/dataset/loaded"),
		MQTTClientID:       getenv("MQTT_CLIENT_ID", "climate-api"),
	}, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func parseInt(key, def string) (int, error) {
	s := getenv(key, def)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	s := getenv(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func parseBool(key, def string) (bool, error) {
	s := getenv(key, def)
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
