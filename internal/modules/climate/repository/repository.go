package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"climate-api/internal/db"
	"climate-api/internal/modules/climate/types"
)

//go:embed sql/get-precipitation.sql
var getPrecipitationSQL string

//go:embed sql/get-station-activity.sql
var getStationActivitySQL string

//go:embed sql/get-most-active-station.sql
var getMostActiveStationSQL string

//go:embed sql/get-station-temperatures.sql
var getStationTemperaturesSQL string

//go:embed sql/get-temperature-summary-from.sql
var getTemperatureSummaryFromSQL string

//go:embed sql/get-temperature-summary-range.sql
var getTemperatureSummaryRangeSQL string

// Schema lists the externally owned tables and the columns read from them.
var Schema = []db.Table{
	{Name: "station", Columns: []string{"station", "name", "latitude", "longitude", "elevation"}},
	{Name: "measurement", Columns: []string{"station", "date", "prcp", "tobs"}},
}

// ClimateRepository is the read-only query surface over station and
// measurement. Dates are YYYY-MM-DD strings compared lexicographically.
type ClimateRepository interface {
	GetPrecipitationSince(ctx context.Context, since string) ([]types.Precipitation, error)
	GetStationActivity(ctx context.Context) ([]types.StationActivity, error)
	GetMostActiveStation(ctx context.Context) (types.StationActivity, error)
	GetStationTemperaturesSince(ctx context.Context, stationID string, since string) ([]float64, error)
	GetTemperatureSummary(ctx context.Context, r types.DateRange) (types.TemperatureSummary, error)
}

type queries struct {
	precipitation         string
	stationActivity       string
	mostActiveStation     string
	stationTemperatures   string
	temperatureSummary    string
	temperatureSummaryEnd string
}

type repositoryImpl struct {
	db *sql.DB
	q  queries
}

// NewRepository binds the embedded queries to the placeholder syntax of driver.
func NewRepository(conn *sql.DB, driver string) ClimateRepository {
	return &repositoryImpl{
		db: conn,
		q: queries{
			precipitation:         db.Rebind(driver, getPrecipitationSQL),
			stationActivity:       db.Rebind(driver, getStationActivitySQL),
			mostActiveStation:     db.Rebind(driver, getMostActiveStationSQL),
			stationTemperatures:   db.Rebind(driver, getStationTemperaturesSQL),
			temperatureSummary:    db.Rebind(driver, getTemperatureSummaryFromSQL),
			temperatureSummaryEnd: db.Rebind(driver, getTemperatureSummaryRangeSQL),
		},
	}
}

func (r *repositoryImpl) GetPrecipitationSince(ctx context.Context, since string) ([]types.Precipitation, error) {
	rows, err := r.db.QueryContext(ctx, r.q.precipitation, since)
	if err != nil {
		return nil, fmt.Errorf("query precipitation: %w", err)
	}
	defer closeRows(rows, "precipitation")

	out := []types.Precipitation{}
	for rows.Next() {
		var p types.Precipitation
		var prcp sql.NullFloat64
		if err := rows.Scan(&p.Date, &prcp); err != nil {
			return nil, fmt.Errorf("scan precipitation: %w", err)
		}
		if prcp.Valid {
			v := prcp.Float64
			p.Value = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetStationActivity(ctx context.Context) ([]types.StationActivity, error) {
	rows, err := r.db.QueryContext(ctx, r.q.stationActivity)
	if err != nil {
		return nil, fmt.Errorf("query station activity: %w", err)
	}
	defer closeRows(rows, "station activity")

	out := []types.StationActivity{}
	for rows.Next() {
		var a types.StationActivity
		if err := rows.Scan(&a.StationID, &a.Observations); err != nil {
			return nil, fmt.Errorf("scan station activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetMostActiveStation(ctx context.Context) (types.StationActivity, error) {
	var a types.StationActivity
	err := r.db.QueryRowContext(ctx, r.q.mostActiveStation).Scan(&a.StationID, &a.Observations)
	if errors.Is(err, sql.ErrNoRows) {
		return types.StationActivity{}, types.ErrNoRows
	}
	if err != nil {
		return types.StationActivity{}, fmt.Errorf("query most active station: %w", err)
	}
	return a, nil
}

func (r *repositoryImpl) GetStationTemperaturesSince(ctx context.Context, stationID string, since string) ([]float64, error) {
	rows, err := r.db.QueryContext(ctx, r.q.stationTemperatures, stationID, since)
	if err != nil {
		return nil, fmt.Errorf("query station temperatures: %w", err)
	}
	defer closeRows(rows, "station temperatures")

	out := []float64{}
	for rows.Next() {
		var tobs sql.NullFloat64
		if err := rows.Scan(&tobs); err != nil {
			return nil, fmt.Errorf("scan station temperatures: %w", err)
		}
		if tobs.Valid {
			out = append(out, tobs.Float64)
		}
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetTemperatureSummary(ctx context.Context, dr types.DateRange) (types.TemperatureSummary, error) {
	var row *sql.Row
	if dr.End == "" {
		row = r.db.QueryRowContext(ctx, r.q.temperatureSummary, dr.Start)
	} else {
		row = r.db.QueryRowContext(ctx, r.q.temperatureSummaryEnd, dr.Start, dr.End)
	}

	var minT, avgT, maxT sql.NullFloat64
	var n int64
	if err := row.Scan(&minT, &avgT, &maxT, &n); err != nil {
		return types.TemperatureSummary{}, fmt.Errorf("query temperature summary: %w", err)
	}
	if n == 0 || !minT.Valid || !avgT.Valid || !maxT.Valid {
		return types.TemperatureSummary{}, types.ErrNoRows
	}
	return types.TemperatureSummary{Min: minT.Float64, Avg: avgT.Float64, Max: maxT.Float64}, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Error("close "+what+" rows", "error", err)
	}
}
