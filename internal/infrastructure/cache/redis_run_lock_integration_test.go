//go:build integration

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

	"github.com/eshop/backend/internal/infrastructure/config"
)

func startRedis(t *testing.T) config.RedisConfig {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	var p int
	_, err = fmt.Sscan(port.Port(), &p)
	require.NoError(t, err)
	return config.RedisConfig{Enabled: true, Host: host, Port: p}
}

func TestRedisRunLock(t *testing.T) {
	cfg := startRedis(t)
	client, err := NewRedisClient(cfg)
	require.NoError(t, err)
	lock := NewRedisRunLock(client, "test:")
	defer lock.Close()
	ctx := context.Background()

	unlock, ok, err := lock.TryLock(ctx, "import:cpi", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	other := NewRedisRunLock(client, "test:")
	_, ok, err = other.TryLock(ctx, "import:cpi", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, unlock(ctx))
	_, ok, err = other.TryLock(ctx, "import:cpi", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, unlock(ctx), "releasing a lock we no longer own is a no-op")
	assert.Equal(t, int64(1), client.Exists(ctx, "test:import:cpi").Val())
}
