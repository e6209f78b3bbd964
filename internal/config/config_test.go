package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuankeMiao/Marmotshop-backend/internal/config"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_PASSWORD", "123456")
	t.Setenv("DB_NAME", "marmotshop")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "5432", cfg.Postgres.Port)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
	assert.Equal(t, 5*time.Second, cfg.Tx.Timeout)
	assert.Equal(t, 1, cfg.Tx.RetryAttempts)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "host=localhost port=5432 user=postgres password=123456 dbname=marmotshop sslmode=disable", cfg.Postgres.DSN())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DB_HOST", "")
	os.Unsetenv("DB_HOST")

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_HOST")
}

func TestLoad_DotEnvFile(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_PORT", "")
	os.Unsetenv("APP_PORT")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_PORT=9090\nTX_TIMEOUT=2s\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("APP_PORT")
		os.Unsetenv("TX_TIMEOUT")
	})

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 2*time.Second, cfg.Tx.Timeout)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	setRequired(t)

	_, err := config.Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}

func TestLoad_RejectsZeroRetryAttempts(t *testing.T) {
	setRequired(t)
	t.Setenv("TX_RETRY_ATTEMPTS", "0")

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TX_RETRY_ATTEMPTS")
}
