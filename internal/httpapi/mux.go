package httpapi

import (
	"database/sql"
	"net/http"
)

func NewMux(db *sql.DB, schema SchemaStatus, metrics *Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, schema)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}
