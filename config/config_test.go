package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_TTL", "")
	t.Setenv("LOGIN_BURST", "not-a-number")

	cfg := Load()

	assert.Equal(t, time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 10, cfg.Login.Burst)
	assert.Equal(t, "admin@example.com", cfg.Admin.Email)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("JWT_TTL", "720h")
	t.Setenv("TOKEN_STORE", "Redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOGIN_RATE", "0.5")

	cfg := Load()

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, 720*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, "redis", cfg.TokenStore.Kind)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 0.5, cfg.Login.Rate)
}
