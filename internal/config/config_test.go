package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medbill/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.False(t, cfg.DB.Enabled)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 4096, cfg.Gemini.MaxOutputTokens)

	assert.Equal(t, 120, cfg.Extract.BudgetSecs)
	assert.Equal(t, 15, cfg.Extract.SafetyMarginSecs)
	assert.Equal(t, 28, cfg.Extract.PageTimeoutSecs)
	assert.Equal(t, 3, cfg.Extract.Workers)
	assert.Equal(t, 250, cfg.Extract.StaggerMS)
	assert.Equal(t, 4, cfg.Extract.SequentialBelow)
	assert.Equal(t, 3, cfg.Extract.MaxAttempts)
	assert.Equal(t, 20, cfg.Extract.MaxPages)
	assert.Equal(t, 1600, cfg.Extract.MaxDim)
	assert.Equal(t, 800, cfg.Extract.MinDim)
	assert.Equal(t, 2.0, cfg.Extract.Zoom)

	assert.Equal(t, 20, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, int64(50), cfg.Fetch.MaxSizeMB)

	assert.Contains(t, cfg.CORS.AllowedOrigins, "http://localhost:3000")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MEDBILL_SERVER_PORT", ":9090")
	t.Setenv("MEDBILL_GEMINI_API_KEY", "secret-key")
	t.Setenv("MEDBILL_EXTRACT_WORKERS", "5")
	t.Setenv("MEDBILL_DB_ENABLED", "true")
	t.Setenv("MEDBILL_S3_ARCHIVE_BUCKET", "medbill-archive")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "secret-key", cfg.Gemini.APIKey)
	assert.Equal(t, 5, cfg.Extract.Workers)
	assert.True(t, cfg.DB.Enabled)
	assert.Equal(t, "medbill-archive", cfg.S3.ArchiveBucket)
}

func TestLoad_PaaSPortFallback(t *testing.T) {
	t.Setenv("PORT", "7070")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Port)
}

func TestLoad_ExplicitPortBeatsPaaSPort(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("MEDBILL_SERVER_PORT", ":9090")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Port)
}

func TestDSN(t *testing.T) {
	db := config.DBConfig{
		Host: "localhost", Port: 5432,
		User: "medbill", Password: "pw",
		Name: "medbill_db", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://medbill:pw@localhost:5432/medbill_db?sslmode=disable", db.DSN())
}
