package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "2025-07", cfg.DataRef)
	assert.Equal(t, "http://localhost:5000", cfg.OSRM.BaseURL)
	assert.Equal(t, "driving", cfg.OSRM.Profile)
	assert.Equal(t, 100, cfg.OSRM.Chunk)
	assert.InDelta(t, 5.0, cfg.OSRM.RateLimit, 0.001)
	assert.InDelta(t, 2.0, cfg.Join.KmTol, 0.001)
	assert.Equal(t, 4674, cfg.Join.TargetSRID)
	assert.Equal(t, 500, cfg.OD.TopN)
	assert.Equal(t, "sqlite", cfg.RunLog.Driver)
	assert.Equal(t, 3, cfg.Fetch.Concurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	require.Len(t, cfg.OD.Origins, 2)
	assert.Equal(t, "Recife-PE", cfg.OD.Origins[0].Name)
	assert.InDelta(t, -8.0476, cfg.OD.Origins[0].Lat, 0.0001)
	assert.InDelta(t, -34.8770, cfg.OD.Origins[0].Lon, 0.0001)
	assert.Equal(t, "Salvador-BA", cfg.OD.Origins[1].Name)

	assert.Equal(t, []string{"PE", "PB", "AL"}, cfg.Board.Influence["recife"])
	assert.Equal(t, []string{"BA", "SE", "AL"}, cfg.Board.Influence["salvador"])
}

func TestLoadFromYAML(t *testing.T) {
	chdirTemp(t)

	yaml := `
data_dir: /srv/lake
osrm:
  base_url: http://osrm.internal:5000
  chunk: 50
join:
  km_tol: 0.5
od:
  top_n: 300
  origins:
    - name: Fortaleza-CE
      lat: -3.7319
      lon: -38.5267
runlog:
  driver: postgres
  dsn: postgres://localhost/cdcase
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/lake", cfg.DataDir)
	assert.Equal(t, "http://osrm.internal:5000", cfg.OSRM.BaseURL)
	assert.Equal(t, 50, cfg.OSRM.Chunk)
	assert.InDelta(t, 0.5, cfg.Join.KmTol, 0.001)
	assert.Equal(t, 300, cfg.OD.TopN)
	require.Len(t, cfg.OD.Origins, 1)
	assert.Equal(t, "Fortaleza-CE", cfg.OD.Origins[0].Name)
	assert.Equal(t, "postgres", cfg.RunLog.Driver)
	// Defaults still apply for unset values.
	assert.Equal(t, "2025-07", cfg.DataRef)
	assert.Equal(t, 4674, cfg.Join.TargetSRID)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chdirTemp(t)

	yaml := `
osrm:
  base_url: http://osrm.internal:5000
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CDCASE_OSRM_BASE_URL", "http://router:5000")
	t.Setenv("CDCASE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://router:5000", cfg.OSRM.BaseURL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CDCASE_DATA_REF", "2026-01")
	t.Setenv("CDCASE_OSRM_CHUNK", "25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "2026-01", cfg.DataRef)
	assert.Equal(t, 25, cfg.OSRM.Chunk)
}

func TestValidate_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_BadValues(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	cfg.Join.KmTol = 0
	cfg.OSRM.Chunk = 0
	cfg.RunLog.Driver = "oracle"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "join.km_tol must be > 0")
	assert.Contains(t, err.Error(), "osrm.chunk must be between 1 and 500")
	assert.Contains(t, err.Error(), "runlog.driver must be sqlite or postgres")
}

func TestValidate_PostgresNeedsDSN(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	cfg.RunLog.Driver = "postgres"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runlog.dsn is required")

	cfg.RunLog.DSN = "postgres://localhost/cdcase"
	assert.NoError(t, cfg.Validate())
}

func TestPathHelpers(t *testing.T) {
	cfg := &Config{DataDir: "lake"}

	assert.Equal(t, filepath.Join("lake", "raw"), cfg.RawDir())
	assert.Equal(t, filepath.Join("lake", "interim"), cfg.InterimDir())
	assert.Equal(t, filepath.Join("lake", "processed"), cfg.ProcessedDir())
}

func TestRunLogDSN(t *testing.T) {
	cfg := &Config{DataDir: "lake"}
	assert.Equal(t, filepath.Join("lake", "runs.db"), cfg.RunLogDSN())

	cfg.RunLog.DSN = "postgres://localhost/cdcase"
	assert.Equal(t, "postgres://localhost/cdcase", cfg.RunLogDSN())

	cfg.RunLog.DSN = ""
	cfg.RunLog.Driver = "postgres"
	assert.Equal(t, "", cfg.RunLogDSN())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
