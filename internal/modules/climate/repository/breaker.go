package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"climate-api/internal/modules/climate/types"
)

// BreakerSettings configures the circuit breaker placed in front of the store.
type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

type breakerRepository struct {
	next ClimateRepository
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker trips after MaxFailures consecutive store failures and then
// fails every call with types.ErrStoreUnavailable until OpenTimeout elapses.
// Empty results and cancelled requests do not count as failures.
func WithBreaker(next ClimateRepository, s BreakerSettings, logger *slog.Logger) ClimateRepository {
	if logger == nil {
		logger = slog.Default()
	}
	maxFailures := s.MaxFailures
	if maxFailures == 0 {
		maxFailures = 1
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "climate-store",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, types.ErrNoRows) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &breakerRepository{next: next, cb: cb}
}

func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return zero, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
		case errors.Is(err, types.ErrNoRows),
			errors.Is(err, context.Canceled),
			errors.Is(err, context.DeadlineExceeded):
			return zero, err
		default:
			return zero, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
		}
	}
	return out.(T), nil
}

func (b *breakerRepository) GetPrecipitationSince(ctx context.Context, since string) ([]types.Precipitation, error) {
	return execute(b.cb, func() ([]types.Precipitation, error) {
		return b.next.GetPrecipitationSince(ctx, since)
	})
}

func (b *breakerRepository) GetStationActivity(ctx context.Context) ([]types.StationActivity, error) {
	return execute(b.cb, func() ([]types.StationActivity, error) {
		return b.next.GetStationActivity(ctx)
	})
}

func (b *breakerRepository) GetMostActiveStation(ctx context.Context) (types.StationActivity, error) {
	return execute(b.cb, func() (types.StationActivity, error) {
		return b.next.GetMostActiveStation(ctx)
	})
}

func (b *breakerRepository) GetStationTemperaturesSince(ctx context.Context, stationID string, since string) ([]float64, error) {
	return execute(b.cb, func() ([]float64, error) {
		return b.next.GetStationTemperaturesSince(ctx, stationID, since)
	})
}

func (b *breakerRepository) GetTemperatureSummary(ctx context.Context, r types.DateRange) (types.TemperatureSummary, error) {
	return execute(b.cb, func() (types.TemperatureSummary, error) {
		return b.next.GetTemperatureSummary(ctx, r)
	})
}
