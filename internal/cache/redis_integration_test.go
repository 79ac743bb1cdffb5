//go:build integration
// +build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/next-chapter/resume-engine/internal/models"
)

func setupRedis(t *testing.T, ttl time.Duration) *RedisCache {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Redis container")
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	c, err := NewRedisCache(ctx, RedisConfig{Address: fmt.Sprintf("%s:%s", host, port.Port()), TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return c
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c := setupRedis(t, time.Minute)
	ctx := context.Background()

	key := Key("v1", models.AthleteInput{Sport: "tennis"})

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	want := models.TranslationResult{Summary: "summary", BulletPoints: []string{"a", "b"}}
	require.NoError(t, c.Set(ctx, key, want))

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, *got)

	ttl, err := c.client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisCachePurge(t *testing.T) {
	c := setupRedis(t, 0)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, c.Set(ctx, Key("v1", models.AthleteInput{Sport: "golf", YearsPlayed: i + 1}), models.TranslationResult{}))
	}
	require.NoError(t, c.client.Set(ctx, "unrelated", "1", 0).Err())

	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250, n)

	exists, err := c.client.Exists(ctx, "unrelated").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}
