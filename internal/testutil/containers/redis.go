//go:build integration

package containers

import (
	"context"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/redis"
)

// NewRedis starts a Redis container and returns a connected client.
func NewRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "failed to start redis container")

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := goredis.ParseURL(addr)
	require.NoError(t, err)

	client, err := redis.NewClientFromRedis(ctx, goredis.NewClient(opts), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}
