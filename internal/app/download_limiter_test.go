package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisDownloadLimiter_BucketsByCalendarMinute(t *testing.T) {
	limiter := NewRedisDownloadLimiter(nil, "banksystem:downloads:")
	at := time.Date(2025, time.March, 3, 10, 15, 5, 0, time.UTC)

	key, reset := limiter.bucket(" user_1 ", at)
	assert.Equal(t, "banksystem:downloads:user_1:1740996900", key)
	assert.Equal(t, time.Date(2025, time.March, 3, 10, 16, 0, 0, time.UTC), reset)

	sameMinute, _ := limiter.bucket("user_1", at.Add(54*time.Second))
	assert.Equal(t, key, sameMinute)

	nextMinute, _ := limiter.bucket("user_1", at.Add(55*time.Second))
	assert.NotEqual(t, key, nextMinute)
}

func TestRedisDownloadLimiter_DefaultPrefix(t *testing.T) {
	key, _ := NewRedisDownloadLimiter(nil, " ").bucket("a", time.Unix(120, 0))
	assert.Equal(t, "banksystem:downloads:a:120", key)
}

func TestRedisDownloadLimiter_NilClientIsUnmetered(t *testing.T) {
	quota, err := NewRedisDownloadLimiter(nil, "").TakeDownload(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Zero(t, quota.Used)
}
