package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvPrefix+"_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.HTTP.Port)
	require.Equal(t, "finance", cfg.GCP.Dataset)
	require.Equal(t, 8, cfg.Envelope.Concurrency)
	require.False(t, cfg.Envelope.ExactSum)
	require.Equal(t, 6, cfg.Analytics.Months)
	require.Equal(t, 6, cfg.Analytics.TopCategories)
	require.Empty(t, cfg.Data.RawFile)
	require.False(t, cfg.UseBigQuery())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "findash.toml")
	content := `
[http]
port = "9090"

[envelope]
concurrency = 2
exact_sum = true

[gcp]
project_id = "demo-project"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(EnvPrefix+"_HTTP_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "7070", cfg.HTTP.Port, "env must override file")
	require.Equal(t, 2, cfg.Envelope.Concurrency)
	require.True(t, cfg.Envelope.ExactSum)
	require.Equal(t, "demo-project", cfg.GCP.ProjectID)
	require.True(t, cfg.UseBigQuery())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FINDASH_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv(EnvPrefix+"_CONFIG", "")
	t.Cleanup(func() { os.Unsetenv(EnvPrefix + "_LOG_LEVEL") })

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{
		Envelope:  EnvelopeConfig{Concurrency: 1},
		Analytics: AnalyticsConfig{Months: 6, TopCategories: 6},
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.Envelope.Concurrency = 0
	require.Error(t, bad.Validate())

	bad = base
	bad.Analytics.Months = 1
	require.Error(t, bad.Validate())
}
