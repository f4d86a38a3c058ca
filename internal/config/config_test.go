package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "", cfg.Reproject.SourceCRS)
	assert.False(t, cfg.Reproject.VerifyRepairs)
	assert.False(t, cfg.Reproject.IrregularZones)
	assert.Equal(t, -1, cfg.Output.MaxDecimalDigits)
	assert.Equal(t, "json", cfg.Output.ReportFormat)
	assert.Equal(t, "", cfg.Store.DatabaseURL)
	assert.Equal(t, "public", cfg.Store.Schema)
	assert.Equal(t, "reprojected_features", cfg.Store.Table)
	assert.Equal(t, 50000, cfg.Store.BatchSize)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 32, cfg.Server.MaxBodyMB)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 4, cfg.Batch.Concurrency)

	assert.NoError(t, cfg.Validate("cli"))
	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
reproject:
  source_crs: EPSG:4326
  verify_repairs: true
output:
  max_decimal_digits: 3
  report_format: yaml
log:
  level: debug
  format: console
server:
  port: 9090
  allowed_origins:
    - https://maps.example.com
batch:
  concurrency: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "EPSG:4326", cfg.Reproject.SourceCRS)
	assert.True(t, cfg.Reproject.VerifyRepairs)
	assert.Equal(t, 3, cfg.Output.MaxDecimalDigits)
	assert.Equal(t, "yaml", cfg.Output.ReportFormat)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://maps.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	// Defaults still apply for unset values
	assert.Equal(t, "reprojected_features", cfg.Store.Table)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  schema: staging
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("REPROJECT_STORE_SCHEMA", "geo")
	t.Setenv("REPROJECT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "geo", cfg.Store.Schema)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("REPROJECT_SERVER_PORT", "3000")
	t.Setenv("REPROJECT_REPROJECT_IRREGULAR_ZONES", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.True(t, cfg.Reproject.IrregularZones)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
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

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Output.MaxDecimalDigits = -1
	cfg.Output.ReportFormat = "json"
	cfg.Store.Schema = "public"
	cfg.Store.Table = "reprojected_features"
	cfg.Store.BatchSize = 50000
	cfg.Server.Port = 8080
	cfg.Server.MaxBodyMB = 32
	cfg.Batch.Concurrency = 4
	return cfg
}

func TestValidatePostGIS(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("postgis")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/gis"
	assert.NoError(t, cfg.Validate("postgis"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
	assert.NoError(t, cfg.Validate("cli"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format must be json or console"},
		{"report format", func(c *Config) { c.Output.ReportFormat = "csv" }, "output.report_format must be json or yaml"},
		{"decimal digits", func(c *Config) { c.Output.MaxDecimalDigits = -2 }, "output.max_decimal_digits"},
		{"batch size", func(c *Config) { c.Store.BatchSize = -1 }, "store.batch_size must be >= 0"},
		{"concurrency", func(c *Config) { c.Batch.Concurrency = 0 }, "batch.concurrency must be >= 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate("cli")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Log.Format = "xml"
	cfg.Batch.Concurrency = 0

	err := cfg.Validate("cli")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")
	assert.Contains(t, err.Error(), "batch.concurrency")
}
