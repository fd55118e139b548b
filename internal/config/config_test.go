package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 10, cfg.OrderSpacing)
	assert.Equal(t, 1, cfg.MinOrderGap)
	assert.Equal(t, 5*time.Minute, cfg.ExecutionTolerance)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("STOP_ORDER_SPACING", "100")
	t.Setenv("STOP_ORDER_MIN_GAP", "5")
	t.Setenv("DELAY_THRESHOLD", "15m")
	t.Setenv("CORS_ORIGINS", "https://ops.example.com, https://admin.example.com")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 100, cfg.OrderSpacing)
	assert.Equal(t, 5, cfg.MinOrderGap)
	assert.Equal(t, 15*time.Minute, cfg.DelayThreshold)
	assert.Len(t, cfg.CORSOrigins, 2)
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Setenv("STOP_ORDER_SPACING", "ten")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("STOP_ORDER_SPACING", "10")
	t.Setenv("STOP_ORDER_MIN_GAP", "11")
	_, err = FromEnv()
	assert.Error(t, err)

	t.Setenv("STOP_ORDER_MIN_GAP", "1")
	t.Setenv("CACHE_BACKEND", "memcached")
	_, err = FromEnv()
	assert.Error(t, err)
}
