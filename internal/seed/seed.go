// Package seed loads the Hawaii climate CSV exports into a store created by
// package migrate. It stands in for the external loader during development.
package seed

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	stationHeader     = []string{"station", "name", "latitude", "longitude", "elevation"}
	measurementHeader = []string{"station", "date", "prcp", "tobs"}
)

// Result counts the rows inserted per table.
type Result struct {
	Stations     int
	Measurements int
}

// Load inserts both CSV streams in a single transaction. Either reader may be
// nil to skip that table.
func Load(ctx context.Context, db *sql.DB, stations, measurements io.Reader) (res Result, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if stations != nil {
		if res.Stations, err = loadStations(ctx, tx, stations); err != nil {
			return Result{}, fmt.Errorf("stations: %w", err)
		}
	}
	if measurements != nil {
		if res.Measurements, err = loadMeasurements(ctx, tx, measurements); err != nil {
			return Result{}, fmt.Errorf("measurements: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

func loadStations(ctx context.Context, tx *sql.Tx, r io.Reader) (int, error) {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO station (station, name, latitude, longitude, elevation) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	return eachRecord(r, stationHeader, func(line int, rec []string) error {
		lat, err := parseFloat(rec[2])
		if err != nil {
			return fmt.Errorf("line %d: latitude: %w", line, err)
		}
		lon, err := parseFloat(rec[3])
		if err != nil {
			return fmt.Errorf("line %d: longitude: %w", line, err)
		}
		elev, err := parseFloat(rec[4])
		if err != nil {
			return fmt.Errorf("line %d: elevation: %w", line, err)
		}
		_, err = stmt.ExecContext(ctx, rec[0], rec[1], lat, lon, elev)
		return err
	})
}

func loadMeasurements(ctx context.Context, tx *sql.Tx, r io.Reader) (int, error) {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO measurement (station, date, prcp, tobs) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	return eachRecord(r, measurementHeader, func(line int, rec []string) error {
		if _, err := time.Parse(dateLayout, rec[1]); err != nil {
			return fmt.Errorf("line %d: date %q is not YYYY-MM-DD", line, rec[1])
		}
		prcp, err := parseFloat(rec[2])
		if err != nil {
			return fmt.Errorf("line %d: prcp: %w", line, err)
		}
		tobs, err := parseFloat(rec[3])
		if err != nil {
			return fmt.Errorf("line %d: tobs: %w", line, err)
		}
		if tobs == nil {
			return fmt.Errorf("line %d: tobs is required", line)
		}
		_, err = stmt.ExecContext(ctx, rec[0], rec[1], prcp, *tobs)
		return err
	})
}

// eachRecord checks the header row and calls fn for every data row with its
// 1-based line number.
func eachRecord(r io.Reader, header []string, fn func(line int, rec []string) error) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	cr.TrimLeadingSpace = true

	got, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, errors.New("missing header row")
		}
		return 0, err
	}
	for i, col := range header {
		if strings.TrimSpace(strings.ToLower(got[i])) != col {
			return 0, fmt.Errorf("header column %d = %q, want %q", i+1, got[i], col)
		}
	}

	n := 0
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := fn(line, rec); err != nil {
			return n, err
		}
		n++
	}
}

// parseFloat returns nil for an empty field, which the CSV export uses for NULL.
func parseFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
