package testutil

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// TestRedis is a Redis client for tests plus control over key expiry. It
// targets a live server when one is reachable and an in-process miniredis
// otherwise.
type TestRedis struct {
	Client *redis.Client
	mini   *miniredis.Miniredis
}

// InMemory reports whether the client talks to miniredis.
func (r *TestRedis) InMemory() bool { return r.mini != nil }

// Advance lets d pass for key TTLs. miniredis only expires keys when its
// clock is moved, so sleeping is not enough there.
func (r *TestRedis) Advance(d time.Duration) {
	if r.mini != nil {
		r.mini.FastForward(d)
		return
	}
	time.Sleep(d)
}

// StartTestRedis connects to TEST_REDIS_ADDR (or localhost:56379) and falls
// back to miniredis. TEST_REQUIRE_REDIS=1 makes an unreachable live server
// fatal instead.
func StartTestRedis(t testing.TB) *TestRedis {
	t.Helper()

	addr := getEnvOrDefault("TEST_REDIS_ADDR", "localhost:56379")
	if client, ok := dialTestRedis(t, addr); ok {
		return &TestRedis{Client: client}
	}
	if requireRedis() {
		t.Fatalf("Redis not available for testing at %s", addr)
	}

	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() {
		closeAndLog(t, "miniredis client", client)
		mini.Close()
	})
	return &TestRedis{Client: client, mini: mini}
}

// SetupTestRedis is StartTestRedis for tests that do not depend on expiry.
func SetupTestRedis(t testing.TB) *redis.Client {
	t.Helper()
	return StartTestRedis(t).Client
}

func dialTestRedis(t testing.TB, addr string) (*redis.Client, bool) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: testRedisDB()})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Logf("Redis not available at %s, using miniredis: %v", addr, err)
		closeAndLog(t, "redis client", client)
		return nil, false
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Logf("warning: flush test redis db: %v", err)
	}
	t.Cleanup(func() { closeAndLog(t, "redis client", client) })
	return client, true
}

// testRedisDB keeps test data away from DB 0 unless TEST_REDIS_DB says otherwise.
func testRedisDB() int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
	}
	return 1
}
