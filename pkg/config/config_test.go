package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadParsesDurationsAndDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `
db:
  host: dbhost
  port: 5433
agent:
  base_url: http://agent:9000
  timeout: 2s
dashboard:
  monthly_goal: 15000
  lifecycle_interval: 30m
  invalidation_debounce: 250ms
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "dbhost", cfg.DB.Host)
	assert.Equal(t, 5433, cfg.DB.Port)
	assert.Equal(t, 2*time.Second, cfg.Agent.Timeout.Std())
	assert.Equal(t, 15000.0, cfg.Dashboard.MonthlyGoal)
	assert.Equal(t, 30*time.Minute, cfg.Dashboard.LifecycleInterval.Std())
	assert.Equal(t, 250*time.Millisecond, cfg.Dashboard.InvalidationDebounce.Std())

	// Untouched keys keep their defaults.
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 100, cfg.Dashboard.OutboxFlushBatch)
	assert.Equal(t, 10*time.Second, cfg.Calendar.Timeout.Std())
}

func TestLoadOverlaysEnvironmentFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `
db:
  host: basehost
  name: prodash
`)
	writeConfig(t, dir, "staging.yaml", `
db:
  host: staginghost
`)
	t.Setenv("CONFIG_ENV", "staging")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "staginghost", cfg.DB.Host)
	assert.Equal(t, "prodash", cfg.DB.Name, "keys absent from the overlay survive")
}

func TestEnvironmentVariablesWin(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `
db:
  host: filehost
dashboard:
  monthly_goal: 10000
`)
	t.Setenv("DB_HOST", "envhost")
	t.Setenv("MONTHLY_GOAL", "22500")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "envhost", cfg.DB.Host)
	assert.Equal(t, 22500.0, cfg.Dashboard.MonthlyGoal)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `
agent:
  timeout: banana
`)
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoadFailsWithoutBaseFile(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}
