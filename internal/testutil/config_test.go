package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTestDBConfig(t *testing.T) {
	for _, key := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
		t.Setenv(key, "")
	}

	assert.Equal(t, TestDBConfig{
		Host:     "localhost",
		Port:     "55432",
		User:     "pds",
		Password: "pds",
		DBName:   "pds",
	}, DefaultTestDBConfig())

	t.Setenv("TEST_DB_HOST", "postgres")
	t.Setenv("TEST_DB_PORT", "5432")
	cfg := DefaultTestDBConfig()
	assert.Equal(t, "postgres", cfg.Host)
	assert.Equal(t, "5432", cfg.Port)
}

func TestTestRedisDB(t *testing.T) {
	t.Setenv("TEST_REDIS_DB", "")
	assert.Equal(t, 1, testRedisDB())

	t.Setenv("TEST_REDIS_DB", "4")
	assert.Equal(t, 4, testRedisDB())

	t.Setenv("TEST_REDIS_DB", "-2")
	assert.Equal(t, 1, testRedisDB())
}

func TestStartTestRedisFallsBackToMiniredis(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "127.0.0.1:1")
	t.Setenv("TEST_REQUIRE_REDIS", "")
	t.Setenv("TEST_REQUIRE_INFRA", "")

	r := StartTestRedis(t)
	require.True(t, r.InMemory())

	ctx := context.Background()
	require.NoError(t, r.Client.Set(ctx, "k", "v", 100*time.Millisecond).Err())
	assert.Equal(t, "v", r.Client.Get(ctx, "k").Val())

	r.Advance(200 * time.Millisecond)
	assert.Equal(t, int64(0), r.Client.Exists(ctx, "k").Val())
}

func TestTestDBConfigDSN(t *testing.T) {
	t.Setenv("DB_SSL_MODE", "")
	cfg := TestDBConfig{Host: "db", Port: "5432", User: "u", Password: "p w", DBName: "pds"}

	assert.Equal(t, "postgres://u:p%20w@db:5432/pds?sslmode=disable", cfg.DSN(""))
	assert.Contains(t, cfg.DSN("t_1,public"), "search_path=t_1%2Cpublic")
}

func TestSchemaName(t *testing.T) {
	name := schemaName()
	assert.Regexp(t, `^t_[0-9a-f]{8}$`, name)
	assert.NotEqual(t, name, schemaName())
}
