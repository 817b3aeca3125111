package identity

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedDirectory wraps a Directory with a redis read-through cache.
//
// Staleness contract: a profile served from the cache may lag the directory
// by at most TTL. Rows denormalized onto memberships and invites are written
// from this cache, so their display fields inherit the same bound at write
// time and then age with the row.
type CachedDirectory struct {
	inner Directory
	rdb   *redis.Client
	ttl   time.Duration
}

func NewCachedDirectory(inner Directory, rdb *redis.Client, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{inner: inner, rdb: rdb, ttl: ttl}
}

func profileKey(userID string) string {
	return "identity:profile:" + userID
}

func (c *CachedDirectory) ResolveProfile(ctx context.Context, userID string) (Profile, error) {
	if raw, err := c.rdb.Get(ctx, profileKey(userID)).Result(); err == nil {
		var p Profile
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return p, nil
		}
	} else if err != redis.Nil {
		log.Printf("[identity] cache read failed for %s: %v", userID, err)
	}

	p, err := c.inner.ResolveProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	if raw, err := json.Marshal(p); err == nil {
		if err := c.rdb.Set(ctx, profileKey(userID), raw, c.ttl).Err(); err != nil {
			log.Printf("[identity] cache write failed for %s: %v", userID, err)
		}
	}
	return p, nil
}

// SearchUsers is not cached: results are prefix-dependent and the invite
// composer expects fresh matches.
func (c *CachedDirectory) SearchUsers(ctx context.Context, prefix, excludingUserID string) ([]Profile, error) {
	return c.inner.SearchUsers(ctx, prefix, excludingUserID)
}

// Invalidate drops a cached profile, e.g. after the user edits theirs.
func (c *CachedDirectory) Invalidate(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, profileKey(userID)).Err()
}
