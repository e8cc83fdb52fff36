package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskroster/pkg/config"
)

func TestNewRedisFailsWhenUnreachable(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{Host: "127.0.0.1", Port: 1})
	assert.Error(t, err)
}

func TestStoreWrapsTransportErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	store := NewStore(client, "taskroster:")

	_, err := store.Get(context.Background(), "tasks")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get tasks")

	err = store.Set(context.Background(), "tasks", []byte("[]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set tasks")
}
