//+build integration

package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	rd "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pheme-net/pheme/internal/cache"
)

var (
	ctx    = context.Background()
	client *rd.Client
	c      cache.Cache
)

func TestMain(m *testing.M) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to start container")
	}

	host, err := container.Host(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("failed to get host")
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		logrus.WithError(err).Fatal("failed to map port")
	}

	client = rd.NewClient(&rd.Options{Addr: fmt.Sprintf("%s:%d", host, port.Int())})
	c = NewWithClient(client)

	code := m.Run()
	container.Terminate(ctx)
	os.Exit(code)
}

func cleanup(t *testing.T) {
	require.NoError(t, client.FlushAll(ctx).Err())
}

func TestRd_GetSet(t *testing.T) {
	defer cleanup(t)

	_, err := c.Get(ctx, "missing")
	assert.True(t, errors.Is(err, cache.ErrCacheMiss))

	require.NoError(t, c.Set(ctx, "key", []byte("value")))

	v, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), v)
}

func TestRd_Delete(t *testing.T) {
	defer cleanup(t)

	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	require.NoError(t, c.Set(ctx, "b", []byte("2")))

	require.NoError(t, c.Delete(ctx, "a", "b"))
	require.NoError(t, c.Delete(ctx)) // no keys is a no-op

	_, err := c.Get(ctx, "a")
	assert.True(t, errors.Is(err, cache.ErrCacheMiss))
}

func TestRd_DeletePattern(t *testing.T) {
	defer cleanup(t)

	// more keys than one scan batch
	for i := 0; i < 250; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("posts:limit=10:offset=%d", i), []byte("v")))
	}
	require.NoError(t, c.Set(ctx, "post:1", []byte("keep")))

	require.NoError(t, c.DeletePattern(ctx, "posts:*"))

	keys, err := client.Keys(ctx, "posts:*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)

	v, err := c.Get(ctx, "post:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("keep"), v)
}
