package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

func TestDefault_IsValid(t *testing.T) {
	isolate(t)
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DriverDRF, cfg.Corpus.Driver)
	assert.Equal(t, 500, cfg.Scan.PageSize)
	assert.Equal(t, 50, cfg.Scan.BatchPages)
	assert.Equal(t, 1000, cfg.Scan.MaxPages)
	assert.InDelta(t, 0.70, cfg.Scan.Threshold, 1e-9)
	assert.Equal(t, 3, cfg.Corpus.RetryAttempts)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestPaths_XDG(t *testing.T) {
	dir := isolate(t)
	assert.Equal(t, filepath.Join(dir, "config", "chatscan", "config.yaml"), DefaultPath())
	assert.Equal(t, filepath.Join(dir, "data", "chatscan"), DataDir())
	assert.Equal(t, filepath.Join(dir, "data", "chatscan", "sessions.db"), Default().Store.DBPath)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	dir := isolate(t)
	cfg, err := Load(filepath.Join(dir, "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
corpus:
  driver: sqlite
  sqlite_path: /tmp/mirror.db
scan:
  threshold: 0.8
  page_size: 100
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Corpus.Driver)
	assert.Equal(t, "/tmp/mirror.db", cfg.Corpus.SQLitePath)
	assert.InDelta(t, 0.8, cfg.Scan.Threshold, 1e-9)
	assert.Equal(t, 100, cfg.Scan.PageSize)
	// untouched keys keep their defaults
	assert.Equal(t, 50, cfg.Scan.BatchPages)
	assert.Equal(t, 30*time.Second, cfg.Corpus.Timeout)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan: [unclosed"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  threshold: 1.5\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan.threshold")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  page_size: 100\n"), 0644))

	t.Setenv("CHATSCAN_SCAN_PAGE_SIZE", "250")
	t.Setenv("CHATSCAN_CORPUS_BASE_URL", "http://corpus.test/api")
	t.Setenv("CHATSCAN_CORPUS_TIMEOUT", "5s")
	t.Setenv("CHATSCAN_STORE_DB_PATH", "/tmp/s.db")
	t.Setenv("CHATSCAN_SERVER_HTTP_PORT", "19123")
	t.Setenv("CHATSCAN_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Scan.PageSize)
	assert.Equal(t, "http://corpus.test/api", cfg.Corpus.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Corpus.Timeout)
	assert.Equal(t, "/tmp/s.db", cfg.Store.DBPath)
	assert.Equal(t, 19123, cfg.Server.HTTPPort)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_BadEnvValue(t *testing.T) {
	dir := isolate(t)
	t.Setenv("CHATSCAN_SCAN_PAGE_SIZE", "lots")

	_, err := Load(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "process environment")
}

func TestValidate(t *testing.T) {
	isolate(t)
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"unknown driver", func(c *Config) { c.Corpus.Driver = "mongo" }, "corpus.driver"},
		{"drf without url", func(c *Config) { c.Corpus.BaseURL = "" }, "corpus.base_url"},
		{"sqlite without path", func(c *Config) {
			c.Corpus.Driver = DriverSQLite
			c.Corpus.SQLitePath = ""
		}, "corpus.sqlite_path"},
		{"negative rate", func(c *Config) { c.Corpus.RateLimit = -1 }, "corpus.rate_limit"},
		{"zero attempts", func(c *Config) { c.Corpus.RetryAttempts = 0 }, "corpus.retry_attempts"},
		{"zero page size", func(c *Config) { c.Scan.PageSize = 0 }, "scan.page_size"},
		{"max below batch", func(c *Config) { c.Scan.MaxPages = 10 }, "scan.max_pages"},
		{"zero threshold", func(c *Config) { c.Scan.Threshold = 0 }, "scan.threshold"},
		{"no db path", func(c *Config) { c.Store.DBPath = "" }, "store.db_path"},
		{"port range", func(c *Config) { c.Server.HTTPPort = 70000 }, "server.http_port"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestGetSet(t *testing.T) {
	isolate(t)
	cfg := Default()

	v, err := cfg.Get("scan.threshold")
	require.NoError(t, err)
	assert.Equal(t, "0.7", v)

	require.NoError(t, cfg.Set("scan.threshold", "0.85"))
	assert.InDelta(t, 0.85, cfg.Scan.Threshold, 1e-9)

	require.NoError(t, cfg.Set("corpus.timeout", "2m"))
	v, err = cfg.Get("corpus.timeout")
	require.NoError(t, err)
	assert.Equal(t, "2m0s", v)

	require.NoError(t, cfg.Set("Corpus.Driver", "sqlite"))
	assert.Equal(t, DriverSQLite, cfg.Corpus.Driver)
}

func TestSet_RejectsAndRestores(t *testing.T) {
	isolate(t)
	cfg := Default()

	err := cfg.Set("scan.page_size", "many")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an integer")

	err = cfg.Set("scan.threshold", "2")
	require.Error(t, err)
	assert.InDelta(t, 0.70, cfg.Scan.Threshold, 1e-9, "failed Set must restore the old value")

	_, err = cfg.Get("scan.nope")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("nope", "1"))
}

func TestListKeys_AllGettable(t *testing.T) {
	isolate(t)
	cfg := Default()
	keys := ListKeys()
	require.NotEmpty(t, keys)
	assert.IsIncreasing(t, keys)
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := Default()
	cfg.Corpus.RateLimit = 2.5
	cfg.Scan.BatchPages = 20
	cfg.Server.HTTPPort = 19999
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFile_IgnoresEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  page_size: 100\n"), 0644))
	t.Setenv("CHATSCAN_SCAN_PAGE_SIZE", "250")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Scan.PageSize)
}
