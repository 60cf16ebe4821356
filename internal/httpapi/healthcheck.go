package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"climate-api/internal/utils"
)

// SchemaStatus reports the outcome of the latest schema validation.
type SchemaStatus interface {
	Status() (time.Time, error)
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db     *sql.DB
	schema SchemaStatus
}

func NewHealthchecker(db *sql.DB, schema SchemaStatus) healthchecker {
	return &healthcheckerImpl{db: db, schema: schema}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var ok int
	if err := h.db.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
		slog.Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}

	body := map[string]string{"status": "ok"}
	if h.schema != nil {
		checkedAt, err := h.schema.Status()
		if err != nil {
			slog.Error("schema invalid", "error", err)
			utils.WriteError(w, http.StatusServiceUnavailable, "schema invalid: "+err.Error())
			return
		}
		if !checkedAt.IsZero() {
			body["schema_checked_at"] = checkedAt.Format(time.RFC3339)
		}
	}
	utils.WriteJSON(w, http.StatusOK, body)
}

func registerHealthcheck(mux *http.ServeMux, db *sql.DB, schema SchemaStatus) {
	healthchecker := NewHealthchecker(db, schema)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
