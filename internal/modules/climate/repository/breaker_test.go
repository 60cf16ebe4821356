package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"climate-api/internal/modules/climate/types"
)

type stubRepo struct {
	calls int
	err   error
}

func (s *stubRepo) GetPrecipitationSince(ctx context.Context, since string) ([]types.Precipitation, error) {
	s.calls++
	return []types.Precipitation{}, s.err
}

func (s *stubRepo) GetStationActivity(ctx context.Context) ([]types.StationActivity, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []types.StationActivity{{StationID: "USC00519397", Observations: 2}}, nil
}

func (s *stubRepo) GetMostActiveStation(ctx context.Context) (types.StationActivity, error) {
	s.calls++
	return types.StationActivity{}, s.err
}

func (s *stubRepo) GetStationTemperaturesSince(ctx context.Context, stationID string, since string) ([]float64, error) {
	s.calls++
	return []float64{}, s.err
}

func (s *stubRepo) GetTemperatureSummary(ctx context.Context, r types.DateRange) (types.TemperatureSummary, error) {
	s.calls++
	return types.TemperatureSummary{}, s.err
}

func TestWithBreaker_PassesThroughResults(t *testing.T) {
	stub := &stubRepo{}
	repo := WithBreaker(stub, BreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute}, nil)

	got, err := repo.GetStationActivity(context.Background())
	if err != nil {
		t.Fatalf("GetStationActivity: %v", err)
	}
	if len(got) != 1 || got[0].StationID != "USC00519397" {
		t.Fatalf("got %+v", got)
	}
}

func TestWithBreaker_TripsOnConsecutiveFailures(t *testing.T) {
	stub := &stubRepo{err: errors.New("disk I/O error")}
	repo := WithBreaker(stub, BreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		_, err := repo.GetStationActivity(context.Background())
		if !errors.Is(err, types.ErrStoreUnavailable) {
			t.Fatalf("call %d: err = %v, want ErrStoreUnavailable", i, err)
		}
	}

	_, err := repo.GetStationActivity(context.Background())
	if !errors.Is(err, types.ErrStoreUnavailable) || !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want ErrStoreUnavailable wrapping ErrOpenState", err)
	}
	if stub.calls != 2 {
		t.Fatalf("calls = %d, want 2 (open breaker must not reach the store)", stub.calls)
	}
}

func TestWithBreaker_NoRowsDoesNotTrip(t *testing.T) {
	stub := &stubRepo{err: types.ErrNoRows}
	repo := WithBreaker(stub, BreakerSettings{MaxFailures: 1, OpenTimeout: time.Minute}, nil)

	for i := 0; i < 3; i++ {
		_, err := repo.GetTemperatureSummary(context.Background(), types.DateRange{Start: "2018-01-01"})
		if !errors.Is(err, types.ErrNoRows) {
			t.Fatalf("call %d: err = %v, want ErrNoRows", i, err)
		}
		if errors.Is(err, types.ErrStoreUnavailable) {
			t.Fatalf("call %d: ErrNoRows reported as ErrStoreUnavailable", i)
		}
	}
	if stub.calls != 3 {
		t.Fatalf("calls = %d, want 3", stub.calls)
	}
}

func TestWithBreaker_HalfOpenRecovers(t *testing.T) {
	stub := &stubRepo{err: errors.New("connection refused")}
	repo := WithBreaker(stub, BreakerSettings{MaxFailures: 1, OpenTimeout: 20 * time.Millisecond}, nil)

	if _, err := repo.GetMostActiveStation(context.Background()); err == nil {
		t.Fatal("first call: err = nil, want failure")
	}
	time.Sleep(50 * time.Millisecond)

	stub.err = nil
	if _, err := repo.GetMostActiveStation(context.Background()); err != nil {
		t.Fatalf("half-open probe: err = %v, want nil", err)
	}
}
