package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/contentsync/pkg/models"
)

// isolate points the default config and state locations at a temp dir and
// clears the secret variables
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("AIRTABLE_TOKEN", "")
	t.Setenv("GOOGLE_SHEETS_API_KEY", "")
	return dir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, models.PolicyNewestWins, cfg.Sync.Policy)
	assert.Equal(t, models.StoreA, cfg.Sync.DefaultMaster)
	assert.Equal(t, 10, cfg.Sync.BatchSize)
	assert.Equal(t, "Primary Keyword", cfg.StoreA.Fields.PrimaryKeyword)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown policy", func(c *Config) { c.Sync.Policy = "loudest-wins" }, "sync.policy"},
		{"bad master", func(c *Config) { c.Sync.DefaultMaster = "C" }, "sync.default_master"},
		{"bad direction", func(c *Config) { c.Sync.Direction = "sideways" }, "sync.direction"},
		{"zero batch", func(c *Config) { c.Sync.BatchSize = 0 }, "sync.batch_size"},
		{"bad delay", func(c *Config) { c.Sync.InterBatchDelay = "soon" }, "sync.inter_batch_delay"},
		{"negative ttl", func(c *Config) { c.StoreB.CacheTTL = "-1m" }, "store_b.cache_ttl"},
		{"bad comparison", func(c *Config) { c.Sync.Comparison = "md5" }, "sync.comparison"},
		{"bad store A type", func(c *Config) { c.StoreA.Type = "notion" }, "store_a.type"},
		{"local without path", func(c *Config) { c.StoreB.Type = TypeLocal }, "store_b.path"},
		{"bad output", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr), "Validate() = %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLoadMissingDefaultFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Sync, cfg.Sync)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, `
store_a:
  base_id: appXYZ
  table: Posts
  fields:
    title: Headline
sync:
  policy: b-wins
  batch_size: 5
  inter_batch_delay: 250ms
state:
  dir: /var/lib/contentsync
  metrics_file: contentsync.prom
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "appXYZ", cfg.StoreA.BaseID)
	assert.Equal(t, "Headline", cfg.StoreA.Fields.Title)
	assert.Equal(t, "Author", cfg.StoreA.Fields.Author, "unset keys keep defaults")
	assert.Equal(t, models.PolicyBWins, cfg.Sync.Policy)
	assert.Equal(t, 5, cfg.Sync.BatchSize)
	assert.Equal(t, "250ms", cfg.Sync.InterBatchDelay)
	assert.Equal(t, models.DirectionBoth, cfg.Sync.Direction)
	assert.Equal(t, filepath.Join("/var/lib/contentsync", "contentsync.prom"), cfg.State.MetricsPath())
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "sync:\n  policy: a-wins\n")

	t.Setenv("CONTENTSYNC_SYNC_POLICY", "newest-wins")
	t.Setenv("CONTENTSYNC_SYNC_BATCH_SIZE", "3")
	t.Setenv("CONTENTSYNC_STORE_A_APPROVED_ONLY", "true")
	t.Setenv("AIRTABLE_TOKEN", "pat-secret")
	t.Setenv("GOOGLE_SHEETS_API_KEY", "sheets-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, models.PolicyNewestWins, cfg.Sync.Policy)
	assert.Equal(t, 3, cfg.Sync.BatchSize)
	assert.True(t, cfg.StoreA.ApprovedOnly)
	assert.Equal(t, "pat-secret", cfg.StoreA.Token)
	assert.Equal(t, "sheets-key", cfg.StoreB.APIKey)
}

func TestLoadPrefixedSecretWins(t *testing.T) {
	isolate(t)
	t.Setenv("CONTENTSYNC_STORE_A_TOKEN", "prefixed")
	t.Setenv("AIRTABLE_TOKEN", "provider")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.StoreA.Token)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "sync:\n  direction: sideways\n")

	_, err := Load(path)
	require.Error(t, err)
	var verr *models.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestSaveToFileRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := Default()
	cfg.StoreA.Token = "pat-secret"
	cfg.Sync.Direction = models.DirectionAToB
	require.NoError(t, SaveToFile(cfg, path))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSaveToFileRejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.Sync.BatchSize = -1
	assert.Error(t, SaveToFile(cfg, filepath.Join(t.TempDir(), "config.yaml")))
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.StoreA.Token = "pat-secret"

	shown := cfg.Redacted()
	assert.Equal(t, redacted, shown.StoreA.Token)
	assert.Empty(t, shown.StoreB.APIKey, "unset secrets stay empty")
	assert.Equal(t, "pat-secret", cfg.StoreA.Token, "original untouched")
}

func TestDuration(t *testing.T) {
	assert.Equal(t, int64(0), int64(Duration("")))
	assert.Equal(t, "1s", Duration("1s").String())
}
