package identity

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingDirectory wraps Static and counts upstream resolutions.
type countingDirectory struct {
	Static
	resolves int
}

func (d *countingDirectory) ResolveProfile(ctx context.Context, userID string) (Profile, error) {
	d.resolves++
	return d.Static.ResolveProfile(ctx, userID)
}

func newCacheFixture(t *testing.T, ttl time.Duration) (*CachedDirectory, *countingDirectory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	inner := &countingDirectory{Static: Static{
		"u1": {UserID: "u1", Username: "frodo", DisplayName: "Frodo Baggins"},
	}}
	return NewCachedDirectory(inner, rdb, ttl), inner, mr
}

func TestCachedDirectoryReadThrough(t *testing.T) {
	dir, inner, _ := newCacheFixture(t, time.Minute)
	ctx := context.Background()

	p, err := dir.ResolveProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "frodo", p.Username)
	assert.Equal(t, 1, inner.resolves)

	// Second hit is served from redis.
	p, err = dir.ResolveProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "frodo", p.Username)
	assert.Equal(t, 1, inner.resolves)
}

func TestCachedDirectoryTTL(t *testing.T) {
	dir, inner, mr := newCacheFixture(t, time.Minute)
	ctx := context.Background()

	_, err := dir.ResolveProfile(ctx, "u1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = dir.ResolveProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.resolves, "expired entries are re-fetched")
}

func TestCachedDirectoryInvalidate(t *testing.T) {
	dir, inner, _ := newCacheFixture(t, time.Minute)
	ctx := context.Background()

	_, err := dir.ResolveProfile(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, dir.Invalidate(ctx, "u1"))

	_, err = dir.ResolveProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.resolves)
}

func TestCachedDirectoryUpstreamError(t *testing.T) {
	dir, _, _ := newCacheFixture(t, time.Minute)

	_, err := dir.ResolveProfile(context.Background(), "missing")
	require.Error(t, err, "upstream misses are not cached as successes")
}

func TestStaticSearch(t *testing.T) {
	dir := Static{
		"u1": {UserID: "u1", Username: "frodo", DisplayName: "Frodo Baggins"},
		"u2": {UserID: "u2", Username: "francis", DisplayName: "Francis"},
		"u3": {UserID: "u3", Username: "sam", DisplayName: "Samwise"},
	}

	out, err := dir.SearchUsers(context.Background(), "fr", "")
	require.NoError(t, err)
	assert.Len(t, out, 2)

	// The excluded id never shows up in its own search results.
	out, err = dir.SearchUsers(context.Background(), "fr", "u1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "francis", out[0].Username)
}
