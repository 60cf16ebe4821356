//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"climate-api/internal/config"
	"climate-api/internal/db"
	"climate-api/internal/migrate"
	"climate-api/internal/seed"

	"github.com/docker/docker/api/types/container"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const repoRootRel = ".."   // relative to ./e2e
const mainPkgRel = "./cmd" // main.go lives in cmd/

func TestSmoke_ClimateAPI(t *testing.T) {
	repoRoot := repoRootPath(t)

	sqlitePath := startSQLite(t)
	loadDataset(t, repoRoot, sqlitePath)

	bin := buildBinary(t, repoRoot)
	addr := pickFreeAddr(t)

	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(),
		"APP_ENV=dev",
		"LOG_LEVEL=info",
		"HTTP_ADDR="+addr,
		"DB_DRIVER=sqlite3",
		"SQLITE_PATH="+sqlitePath,
		"MQTT_BROKER=",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})

	client := &http.Client{Timeout: 2 * time.Second}
	base := "http://" + addr

	waitForOK(t, client, base+"/healthz", 5*time.Second)

	var health map[string]string
	getJSON(t, client, base+"/healthz", http.StatusOK, &health)
	if health["status"] != "ok" {
		t.Fatalf("healthz status=%q want=%q", health["status"], "ok")
	}

	var stations []string
	getJSON(t, client, base+"/api/v1.0/stations", http.StatusOK, &stations)
	if len(stations) != 3 || stations[0] != "USC00519281" {
		t.Fatalf("stations=%v, want USC00519281 first of 3", stations)
	}

	var tobs []float64
	getJSON(t, client, base+"/api/v1.0/tobs", http.StatusOK, &tobs)
	if len(tobs) != 4 {
		t.Fatalf("tobs=%v, want 4 observations", tobs)
	}

	var prcp map[string]*float64
	getJSON(t, client, base+"/api/v1.0/precipitation", http.StatusOK, &prcp)
	if v, ok := prcp["2017-08-19"]; !ok || v != nil {
		t.Fatalf("precipitation[2017-08-19]=%v ok=%v, want null", v, ok)
	}

	var summary map[string]float64
	getJSON(t, client, base+"/api/v1.0/2017-08-22/2017-08-23", http.StatusOK, &summary)
	if summary["TMIN"] != 75 || summary["TMAX"] != 82 || summary["TMIN"] > summary["TAVG"] || summary["TAVG"] > summary["TMAX"] {
		t.Fatalf("summary=%v", summary)
	}

	var errBody map[string]string
	getJSON(t, client, base+"/api/v1.0/not-a-date", http.StatusBadRequest, &errBody)
	getJSON(t, client, base+"/api/v1.0/2030-01-01", http.StatusNotFound, &errBody)

	stopServer(t, cmd)
}

// startSQLite creates an empty database file in a host directory through a
// throwaway sqlite3 container.
func startSQLite(t *testing.T) string {
	t.Helper()

	hostDir := t.TempDir()
	dbPath := filepath.Join(hostDir, "hawaii.sqlite")

	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:      "nouchka/sqlite3:latest",
		WorkingDir: "/data",
		Entrypoint: []string{"sh", "-c"},
		Cmd: []string{
			"sqlite3 /data/hawaii.sqlite \"PRAGMA user_version=1;\" && " +
				"chmod 666 /data/hawaii.sqlite && " +
				"echo 'sqlite ready' && " +
				"tail -f /dev/null",
		},

		HostConfigModifier: func(hc *container.HostConfig) {
			hc.Binds = append(hc.Binds, hostDir+":/data")
		},
		WaitingFor: wait.ForLog("sqlite ready").WithStartupTimeout(30 * time.Second),
	}

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start sqlite container: %v", err)
	}

	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("sqlite db file not created: %v", err)
	}

	return dbPath
}

// loadDataset plays the external loader: schema plus the seed CSVs.
func loadDataset(t *testing.T, repoRoot, dbPath string) {
	t.Helper()

	ctx := context.Background()
	cfg := config.Config{Driver: "sqlite3", Path: dbPath, MaxOpenConns: 1}
	conn, err := db.OpenReadWrite(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open dataset: %v", err)
	}
	defer db.Close(conn)

	if _, err := migrate.Run(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stations, err := os.Open(filepath.Join(repoRoot, "internal/seed/testdata/stations.csv"))
	if err != nil {
		t.Fatalf("open stations: %v", err)
	}
	defer stations.Close()
	measurements, err := os.Open(filepath.Join(repoRoot, "internal/seed/testdata/measurements.csv"))
	if err != nil {
		t.Fatalf("open measurements: %v", err)
	}
	defer measurements.Close()

	if _, err := seed.Load(ctx, conn, stations, measurements); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func getJSON(t *testing.T, client *http.Client, url string, wantStatus int, out any) {
	t.Helper()

	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status=%d want=%d", url, resp.StatusCode, wantStatus)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("GET %s: missing X-Request-ID", url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("GET %s decode json: %v", url, err)
	}
}

func repoRootPath(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	repo := filepath.Clean(filepath.Join(wd, repoRootRel))
	if _, err := os.Stat(filepath.Join(repo, "go.mod")); err != nil {
		t.Fatalf("repo root %q does not contain go.mod: %v", repo, err)
	}

	return repo
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()

	tmp := t.TempDir()
	out := filepath.Join(tmp, "climate-api")

	build := exec.Command("go", "build", "-o", out, mainPkgRel)
	build.Dir = repoRoot
	build.Env = os.Environ()

	b, err := build.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(b))
	}

	return out
}

func pickFreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen :0: %v", err)
	}
	defer ln.Close()

	return ln.Addr().String()
}

func waitForOK(t *testing.T, client *http.Client, url string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server not healthy after %s: %s", timeout, url)
}

func stopServer(t *testing.T, cmd *exec.Cmd) {
	t.Helper()

	_ = cmd.Process.Signal(syscall.SIGTERM)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		t.Fatalf("server did not exit in time")
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				t.Fatalf("server exited non-zero: %v", err)
			}
			t.Fatalf("server wait error: %v", err)
		}
	}
}
