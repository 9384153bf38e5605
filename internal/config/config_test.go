package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "talent.db", cfg.Store.SQLitePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.InDelta(t, 2.0, cfg.Anthropic.RequestsPerSec, 0.001)
	assert.Equal(t, 4, cfg.Anthropic.Burst)
	assert.Equal(t, 200, cfg.Quota.DefaultDailyLimit)
	assert.Equal(t, "default", cfg.Pipeline.OrgID)
	assert.Equal(t, 4, cfg.Pipeline.MaxConcurrency)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/talent
log:
  level: debug
  format: console
server:
  port: 9090
quota:
  default_daily_limit: 50
  limits:
    role_fit: 10
    plan_generation: -1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Quota.DefaultDailyLimit)
	assert.Equal(t, 10, cfg.Quota.Limits["role_fit"])
	assert.Equal(t, -1, cfg.Quota.Limits["plan_generation"])
	// Defaults still apply for unset values
	assert.Equal(t, 4, cfg.Pipeline.MaxConcurrency)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("TALENT_STORE_DRIVER", "postgres")
	t.Setenv("TALENT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("TALENT_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
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
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = "talent.db"
	cfg.Quota.DefaultDailyLimit = 200
	cfg.Pipeline.MaxConcurrency = 4
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateGenerate_AllPresent(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = "sk-ant-key"

	assert.NoError(t, cfg.Validate("generate"))
}

func TestValidateGenerate_MissingKey(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidatePostgres_RequiresURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/talent"
	assert.NoError(t, cfg.Validate("generate"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateRead_NoKeyRequired(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("read"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateQuotaLimits(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = "sk-ant-key"

	cfg.Quota.Limits = map[string]int{"role_fit": -2}
	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "quota.limits.role_fit must be >= -1")

	cfg.Quota.Limits["role_fit"] = -1
	assert.NoError(t, cfg.Validate("generate"))
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = "sk-ant-key"

	cfg.Pipeline.MaxConcurrency = 0
	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.max_concurrency must be between 1 and 32")

	cfg.Pipeline.MaxConcurrency = 33
	err = cfg.Validate("generate")
	assert.Error(t, err)

	cfg.Pipeline.MaxConcurrency = 32
	assert.NoError(t, cfg.Validate("generate"))
}
