package lease

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	var l Noop

	ok, err := l.Acquire(context.Background(), "incident:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(context.Background(), "incident:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, l.Release(context.Background(), "incident:1"))
}

func TestRedis_ReleaseUnknownKey(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	l := NewRedisWithClient(client, "")
	assert.Equal(t, "oncall:lease:", l.prefix)
	assert.NoError(t, l.Release(context.Background(), "never-acquired"))
}

func TestRedis_AcquireUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewRedisWithClient(client, "test:")
	ok, err := l.Acquire(context.Background(), "incident:1", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}
