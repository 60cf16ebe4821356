package seed

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	"climate-api/internal/migrate"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if _, err := migrate.Run(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func openFile(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Open(name)
	if err != nil {
		t.Fatalf("open %s: %v", name, err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestLoad_Testdata(t *testing.T) {
	db := setupTestDB(t)

	res, err := Load(context.Background(), db,
		openFile(t, "testdata/stations.csv"),
		openFile(t, "testdata/measurements.csv"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Stations != 3 || res.Measurements != 10 {
		t.Fatalf("Load = %+v, want 3 stations and 10 measurements", res)
	}

	var nulls int
	if err := db.QueryRow(`SELECT COUNT(*) FROM measurement WHERE prcp IS NULL`).Scan(&nulls); err != nil {
		t.Fatalf("count nulls: %v", err)
	}
	if nulls != 2 {
		t.Fatalf("NULL prcp rows = %d, want 2", nulls)
	}

	var name string
	if err := db.QueryRow(`SELECT name FROM station WHERE station = 'USC00519397'`).Scan(&name); err != nil {
		t.Fatalf("select station: %v", err)
	}
	if name != "WAIKIKI 717.2, HI US" {
		t.Fatalf("name = %q", name)
	}
}

func TestLoad_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name         string
		measurements string
		wantErr      string
	}{
		{name: "wrong header", measurements: "station,day,prcp,tobs\n", wantErr: "header column 2"},
		{name: "empty stream", measurements: "", wantErr: "missing header"},
		{name: "bad date", measurements: "station,date,prcp,tobs\nUSC00519397,08/23/2017,0,81\n", wantErr: "line 2"},
		{name: "missing tobs", measurements: "station,date,prcp,tobs\nUSC00519397,2017-08-23,0,\n", wantErr: "tobs is required"},
		{name: "bad number", measurements: "station,date,prcp,tobs\nUSC00519397,2017-08-23,lots,81\n", wantErr: "prcp"},
		{name: "short row", measurements: "station,date,prcp,tobs\nUSC00519397,2017-08-23\n", wantErr: "wrong number of fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)

			_, err := Load(context.Background(), db, nil, strings.NewReader(tt.measurements))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load error = %v, want it to contain %q", err, tt.wantErr)
			}

			var n int
			if err := db.QueryRow(`SELECT COUNT(*) FROM measurement`).Scan(&n); err != nil {
				t.Fatalf("count: %v", err)
			}
			if n != 0 {
				t.Fatalf("measurement rows = %d after failed load, want 0 (rolled back)", n)
			}
		})
	}
}
