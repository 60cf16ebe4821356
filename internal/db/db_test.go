package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"climate-api/internal/config"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		rw      bool
		want    string
		wantErr bool
	}{
		{
			name: "explicit dsn wins",
			cfg:  config.Config{Driver: "sqlite3", DSN: "file:x.db?cache=shared", Path: "ignored.db"},
			want: "file:x.db?cache=shared",
		},
		{
			name: "mattn read-only path",
			cfg:  config.Config{Driver: "sqlite3", Path: "Resources/hawaii.sqlite"},
			want: "file:Resources/hawaii.sqlite?mode=ro&_busy_timeout=5000",
		},
		{
			name: "modernc read-only path",
			cfg:  config.Config{Driver: "sqlite", Path: "/data/hawaii.sqlite"},
			want: "file:/data/hawaii.sqlite?mode=ro&_pragma=busy_timeout(5000)",
		},
		{
			name: "file uri with query",
			cfg:  config.Config{Driver: "sqlite3", Path: "file:/data/hawaii.sqlite?cache=private"},
			want: "file:/data/hawaii.sqlite?cache=private&mode=ro&_busy_timeout=5000",
		},
		{
			name: "mattn read-write path",
			cfg:  config.Config{Driver: "sqlite3", Path: "hawaii.sqlite"},
			rw:   true,
			want: "file:hawaii.sqlite?_busy_timeout=5000&_foreign_keys=on",
		},
		{
			name: "modernc read-write path",
			cfg:  config.Config{Driver: "sqlite", Path: "hawaii.sqlite"},
			rw:   true,
			want: "file:hawaii.sqlite?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		},
		{
			name:    "postgres needs dsn",
			cfg:     config.Config{Driver: "postgres"},
			wantErr: true,
		},
		{
			name:    "empty path",
			cfg:     config.Config{Driver: "sqlite3"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.cfg, !tt.rw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("buildDSN error = nil, want non-nil (dsn %q)", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildDSN: %v", err)
			}
			if got != tt.want {
				t.Errorf("buildDSN = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpen_MissingFileFailsFast(t *testing.T) {
	cfg := config.Config{
		Driver:       "sqlite3",
		Path:         filepath.Join(t.TempDir(), "absent.sqlite"),
		MaxOpenConns: 1,
	}
	db, err := Open(context.Background(), cfg, nil)
	if err == nil {
		_ = Close(db)
		t.Fatal("Open on a missing read-only file succeeded")
	}
	if !strings.Contains(err.Error(), "db ping") {
		t.Fatalf("Open error = %q, want ping failure", err)
	}
}

func TestOpenReadWrite_CreatesFile(t *testing.T) {
	cfg := config.Config{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "new.sqlite"),
		MaxOpenConns: 1,
	}
	db, err := OpenReadWrite(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("OpenReadWrite: %v", err)
	}
	defer Close(db)

	if _, err := db.Exec(`CREATE TABLE t (x INTEGER)`); err != nil {
		t.Fatalf("create table on read-write handle: %v", err)
	}
}

func TestClose_Nil(t *testing.T) {
	if err := Close(nil); err != nil {
		t.Fatalf("Close(nil) = %v, want nil", err)
	}
}
