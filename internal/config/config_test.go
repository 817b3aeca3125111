package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.InviteLinkTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.InvitePurgeAfter)
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("JWT_SECRET", "hunter2")

	cfg := Load()
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "hunter2", cfg.JWTSecret)
	assert.True(t, cfg.RedisEnabled())
}

func TestLoadIgnoresBadPort(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	assert.Equal(t, 8080, Load().Port)
}
