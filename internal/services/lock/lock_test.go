package lock

import (
	"context"
	"testing"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestNoopLock(t *testing.T) {
	release, acquired, err := NoopLock{}.Acquire(context.Background(), "ACT-IFIB")
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NotNil(t, release)
	release()
}

func TestNewRedisLock_InvalidURL(t *testing.T) {
	_, err := NewRedisLock(context.Background(), &common.RedisConfig{URL: "not-a-redis-url"}, arbor.NewLogger())
	assert.Error(t, err)
}

func TestRedisLock_Key(t *testing.T) {
	l := &RedisLock{prefix: "nato-scraper"}
	assert.Equal(t, "nato-scraper:lock:ACT-NOI", l.Key("ACT-NOI"))
}
