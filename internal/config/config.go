package config

import (
	"database/sql"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cast"
)

type Config struct {
	Port        int
	DatabaseURL string
	JWTSecret   string
	RedisAddr   string
	IdentityURL string

	// Tunables, overridable from the settings table.
	InviteLinkTTL    time.Duration
	InvitePurgeAfter time.Duration
	ProfileCacheTTL  time.Duration
	PurgeJobSchedule string
}

func Load() *Config {
	return &Config{
		Port:        envInt("PORT", 8080),
		DatabaseURL: env("DATABASE_URL", "postgres://watchcrew:watchcrew@db:5432/watchcrew?sslmode=disable"),
		JWTSecret:   env("JWT_SECRET", "change-me-in-production"),
		RedisAddr:   env("REDIS_ADDR", ""),
		IdentityURL: env("IDENTITY_URL", ""),

		InviteLinkTTL:    7 * 24 * time.Hour,
		InvitePurgeAfter: 30 * 24 * time.Hour,
		ProfileCacheTTL:  15 * time.Minute,
		PurgeJobSchedule: "@every 24h",
	}
}

// MergeFromDB overlays operator tunables stored in the settings table.
func (c *Config) MergeFromDB(db *sql.DB) {
	rows, err := db.Query("SELECT key, value FROM settings")
	if err != nil {
		log.Printf("config: skipping DB merge: %v", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		switch key {
		case "invite_link_ttl_days":
			if d := cast.ToInt(value); d > 0 {
				c.InviteLinkTTL = time.Duration(d) * 24 * time.Hour
			}
		case "invite_purge_after_days":
			if d := cast.ToInt(value); d > 0 {
				c.InvitePurgeAfter = time.Duration(d) * 24 * time.Hour
			}
		case "profile_cache_ttl_minutes":
			if m := cast.ToInt(value); m > 0 {
				c.ProfileCacheTTL = time.Duration(m) * time.Minute
			}
		case "purge_job_schedule":
			if value != "" {
				c.PurgeJobSchedule = value
			}
		}
	}
}

func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
