package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Table declares the columns the service reads from an externally owned table.
type Table struct {
	Name    string
	Columns []string
}

// ValidateSchema probes every declared table with a zero-row SELECT so a
// missing table or column fails at startup instead of on the first request.
func ValidateSchema(ctx context.Context, db *sql.DB, tables []Table) error {
	var errs []error
	for _, t := range tables {
		q := fmt.Sprintf("SELECT %s FROM %s LIMIT 0", strings.Join(t.Columns, ", "), t.Name)
		rows, err := db.QueryContext(ctx, q)
		if err != nil {
			errs = append(errs, fmt.Errorf("table %s: %w", t.Name, err))
			continue
		}
		if err := rows.Close(); err != nil {
			errs = append(errs, fmt.Errorf("table %s: close: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}

// SchemaMonitor keeps the outcome of the most recent schema validation.
// The health check reports it; dataset-reload notifications refresh it.
type SchemaMonitor struct {
	db     *sql.DB
	tables []Table

	mu        sync.RWMutex
	lastErr   error
	checkedAt time.Time
}

func NewSchemaMonitor(db *sql.DB, tables []Table) *SchemaMonitor {
	return &SchemaMonitor{db: db, tables: tables}
}

// Check re-validates the schema and records the result.
func (m *SchemaMonitor) Check(ctx context.Context) error {
	err := ValidateSchema(ctx, m.db, m.tables)
	m.mu.Lock()
	m.lastErr = err
	m.checkedAt = time.Now().UTC()
	m.mu.Unlock()
	return err
}

// Status returns when validation last ran and its error (nil when valid).
// A zero time means Check has never run.
func (m *SchemaMonitor) Status() (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkedAt, m.lastErr
}
