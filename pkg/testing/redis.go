package testing

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/require"
)

// GetRedisClientAndCtx connects to REDIS_HOST when set, otherwise it starts
// a throwaway redis container. The returned client is closed on test cleanup.
func GetRedisClientAndCtx(t *testing.T) (context.Context, *redis.Client) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	addr := ""
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		addr = net.JoinHostPort(redisHost, "6379")
	} else {
		addr = startRedisContainer(t)
	}
	t.Logf("using redis: [%s]", addr)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASS"),
		DB:       0, // use default DB
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	pingRes, err := rdb.Ping(ctx).Result()
	require.NoError(t, err)
	t.Logf("redis ping res: %s", pingRes)

	return ctx, rdb
}

func startRedisContainer(t *testing.T) string {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err)
	require.NoError(t, pool.Client.Ping())

	resource, err := pool.Run("redis", "7-alpine", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("could not purge redis container: %s", err)
		}
	})

	addr := net.JoinHostPort("localhost", resource.GetPort("6379/tcp"))
	require.NoError(t, pool.Retry(func() error {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
		return rdb.Ping(context.Background()).Err()
	}))

	return addr
}
