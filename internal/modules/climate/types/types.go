package types

import "errors"

var (
	// ErrInvalidDate reports a start/end path segment that is not a
	// YYYY-MM-DD calendar date, or an end that precedes its start.
	ErrInvalidDate = errors.New("invalid date")
	// ErrNoRows reports an aggregate that matched no measurements.
	ErrNoRows = errors.New("no matching measurements")
	// ErrStoreUnavailable reports a failed or short-circuited store query.
	ErrStoreUnavailable = errors.New("data store unavailable")
)

// StationActivity is one station's measurement row count.
type StationActivity struct {
	StationID    string `json:"station"`
	Observations int64  `json:"observations"`
}

// Precipitation is one measurement's date and rainfall; Value is nil when
// the station did not report precipitation that day.
type Precipitation struct {
	Date  string
	Value *float64
}

type TemperatureSummary struct {
	Min float64 `json:"TMIN"`
	Avg float64 `json:"TAVG"`
	Max float64 `json:"TMAX"`
}

// DateRange bounds a temperature aggregate. End is empty when open-ended.
type DateRange struct {
	Start string `validate:"required,datetime=2006-01-02"`
	End   string `validate:"omitempty,datetime=2006-01-02"`
}
