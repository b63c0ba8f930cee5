package config_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-magnet/framework/config"
)

// ── helpers ──────────────────────────────────────────────────────────────────

// clearEnv unsets every key Load reads and restores them after the test.
// godotenv never overrides a key that is present, even when empty.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_NAME", "APP_ENV", "APP_DEBUG", "APP_PORT", "APP_SHUTDOWN_TIMEOUT",
		"LOG_LEVEL", "LOG_FORMAT", "METRICS_ENABLED",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

// ── Load ─────────────────────────────────────────────────────────────────────

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := config.Load("testdata/missing.env")

	assert.Equal(t, "magnet", cfg.App.Name)
	assert.Equal(t, "local", cfg.App.Env)
	assert.True(t, cfg.App.Debug)
	assert.Equal(t, "8000", cfg.App.Port)
	assert.Equal(t, ":8000", cfg.App.Addr())
	assert.Equal(t, 10*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_NAME", "MyApp")
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_DEBUG", "false")
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "3")
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("METRICS_ENABLED", "0")

	cfg := config.Load("testdata/missing.env")

	assert.Equal(t, "MyApp", cfg.App.Name)
	assert.Equal(t, "production", cfg.App.Env)
	assert.False(t, cfg.App.Debug)
	assert.Equal(t, 3*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	clearEnv(t)
	cfg := config.Load("testdata/app.env")

	assert.Equal(t, "pages", cfg.App.Name)
	assert.Equal(t, "9100", cfg.App.Port)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
}

func TestLogConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, config.LogConfig{Level: tt.level}.SlogLevel())
		})
	}
}

// ── Get / GetInt / GetBool ───────────────────────────────────────────────────

func TestGet(t *testing.T) {
	t.Setenv("CUSTOM_KEY", "hello")
	assert.Equal(t, "hello", config.Get("CUSTOM_KEY", "default"))

	t.Setenv("CUSTOM_KEY", "")
	assert.Equal(t, "fallback", config.Get("CUSTOM_KEY", "fallback"))
}

func TestGetInt(t *testing.T) {
	t.Setenv("SOME_INT", "42")
	assert.Equal(t, 42, config.GetInt("SOME_INT", 0))

	t.Setenv("SOME_INT", "notanint")
	assert.Equal(t, 99, config.GetInt("SOME_INT", 99))
}

func TestGetBool(t *testing.T) {
	for _, val := range []string{"true", "1", "True", "TRUE"} {
		t.Setenv("BOOL_KEY", val)
		assert.True(t, config.GetBool("BOOL_KEY", false), val)
	}

	t.Setenv("BOOL_KEY", "false")
	assert.False(t, config.GetBool("BOOL_KEY", true))

	t.Setenv("BOOL_KEY", "notabool")
	assert.True(t, config.GetBool("BOOL_KEY", true))
}
