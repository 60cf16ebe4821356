package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"climate-api/internal/config"
	"climate-api/internal/modules/climate/repository"
	"climate-api/internal/modules/climate/types"
)

// Window is the trailing period ending at the dataset's last date.
type Window struct {
	Reference time.Time
	Days      int
}

// Cutoff is the first date inside the window, inclusive.
func (w Window) Cutoff() string {
	return w.Reference.AddDate(0, 0, -w.Days).Format(config.DateLayout)
}

type Service struct {
	repository repository.ClimateRepository
	window     Window
	validate   *validator.Validate
}

func NewService(repository repository.ClimateRepository, window Window) *Service {
	return &Service{
		repository: repository,
		window:     window,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Precipitation maps each date in the window to a precipitation reading.
// Rows arrive ordered by date then station, so when several stations report
// on the same date the last station's value is kept.
func (s *Service) Precipitation(ctx context.Context) (map[string]*float64, error) {
	rows, err := s.repository.GetPrecipitationSince(ctx, s.window.Cutoff())
	if err != nil {
		return nil, err
	}
	out := make(map[string]*float64, len(rows))
	for _, p := range rows {
		out[p.Date] = p.Value
	}
	return out, nil
}

// StationIDs lists station identifiers, busiest first.
func (s *Service) StationIDs(ctx context.Context) ([]string, error) {
	activity, err := s.repository.GetStationActivity(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(activity))
	for _, a := range activity {
		ids = append(ids, a.StationID)
	}
	return ids, nil
}

// MostActiveTemperatures returns the busiest station's observed temperatures
// within the window, in date order. types.ErrNoRows when no station exists.
func (s *Service) MostActiveTemperatures(ctx context.Context) (string, []float64, error) {
	top, err := s.repository.GetMostActiveStation(ctx)
	if err != nil {
		return "", nil, err
	}
	tobs, err := s.repository.GetStationTemperaturesSince(ctx, top.StationID, s.window.Cutoff())
	if err != nil {
		return "", nil, err
	}
	return top.StationID, tobs, nil
}

// TemperatureSummary aggregates observed temperatures from start, through end
// when end is non-empty.
func (s *Service) TemperatureSummary(ctx context.Context, start, end string) (types.TemperatureSummary, error) {
	r, err := s.ParseDateRange(start, end)
	if err != nil {
		return types.TemperatureSummary{}, err
	}
	return s.repository.GetTemperatureSummary(ctx, r)
}

// ParseDateRange validates raw path segments. Errors wrap types.ErrInvalidDate.
func (s *Service) ParseDateRange(start, end string) (types.DateRange, error) {
	r := types.DateRange{Start: start, End: end}
	if err := s.validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return types.DateRange{}, fmt.Errorf("%w: %s %q must be a YYYY-MM-DD date",
				types.ErrInvalidDate, strings.ToLower(fe.Field()), fe.Value())
		}
		return types.DateRange{}, fmt.Errorf("%w: %v", types.ErrInvalidDate, err)
	}
	if end != "" && end < start {
		return types.DateRange{}, fmt.Errorf("%w: end %q is before start %q", types.ErrInvalidDate, end, start)
	}
	return r, nil
}
